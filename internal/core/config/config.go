package config

import (
	"time"
)

const DefaultFile = "dagestimator.toml"

type Config struct {
	Version       int           `toml:"version"`
	Input         string        `toml:"input"`
	Analysis      Analysis      `toml:"analysis"`
	Frontend      Frontend      `toml:"frontend"`
	Output        Output        `toml:"output"`
	History       History       `toml:"history"`
	Observability Observability `toml:"observability"`
	Watch         Watch         `toml:"watch"`
}

type Analysis struct {
	// Workers bounds concurrently analyzed routines. Zero uses GOMAXPROCS.
	Workers int      `toml:"workers"`
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
	Loops   *bool    `toml:"loops"`
}

func (a Analysis) LoopsEnabled() bool {
	return a.Loops == nil || *a.Loops
}

type Frontend struct {
	Kind     string   `toml:"kind"`
	GoTests  bool     `toml:"go_tests"`
	Patterns []string `toml:"patterns"`
}

const (
	FrontendJSON = "json"
	FrontendGo   = "go"
)

type Output struct {
	Dir     string `toml:"dir"`
	DOT     bool   `toml:"dot"`
	Mermaid bool   `toml:"mermaid"`
	JSON    string `toml:"json"`
	TSV     string `toml:"tsv"`
	Table   *bool  `toml:"table"`
}

func (o Output) TableEnabled() bool {
	return o.Table == nil || *o.Table
}

type History struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	Project     string        `toml:"project"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Observability struct {
	MetricsAddress string  `toml:"metrics_address"`
	OTLPEndpoint   string  `toml:"otlp_endpoint"`
	ServiceName    string  `toml:"service_name"`
	SampleRate     float64 `toml:"sample_rate"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// MaxRate caps re-analysis runs per second; Burst allows short spikes.
	MaxRate float64 `toml:"max_rate"`
	Burst   int     `toml:"burst"`
}
