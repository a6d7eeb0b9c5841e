package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads path, fills defaults, applies DAGEST_* overrides and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	// The input is relative to the config file, not the working directory.
	if in := strings.TrimSpace(cfg.Input); in != "" {
		cfg.Input = ResolveRelative(filepath.Dir(path), in)
	}
	return finish(&cfg)
}

// LoadOrDefault behaves like Load but falls back to the defaults when path is
// empty or does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return finish(&Config{})
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return finish(&Config{})
	}
	return cfg, err
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func finish(cfg *Config) (*Config, error) {
	applyDefaults(cfg)
	ApplyEnvOverrides(cfg)
	normalize(cfg)
	if errs := Validate(cfg); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	if strings.TrimSpace(cfg.Frontend.Kind) == "" {
		cfg.Frontend.Kind = FrontendJSON
	}
	if len(cfg.Frontend.Patterns) == 0 {
		cfg.Frontend.Patterns = []string{"./..."}
	}

	if strings.TrimSpace(cfg.Output.Dir) == "" {
		cfg.Output.Dir = "out"
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "dagestimator.db"
	}
	if strings.TrimSpace(cfg.History.Project) == "" {
		cfg.History.Project = "default"
	}
	if cfg.History.BusyTimeout <= 0 {
		cfg.History.BusyTimeout = 5 * time.Second
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "dagestimator"
	}
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MaxRate == 0 {
		cfg.Watch.MaxRate = 1
	}
	if cfg.Watch.Burst == 0 {
		cfg.Watch.Burst = 1
	}
}

func normalize(cfg *Config) {
	cfg.Input = strings.TrimSpace(cfg.Input)
	cfg.Frontend.Kind = strings.ToLower(strings.TrimSpace(cfg.Frontend.Kind))
	cfg.Analysis.Include = trimAll(cfg.Analysis.Include)
	cfg.Analysis.Exclude = trimAll(cfg.Analysis.Exclude)
	cfg.Output.Dir = strings.TrimSpace(cfg.Output.Dir)
	cfg.Output.JSON = strings.TrimSpace(cfg.Output.JSON)
	cfg.Output.TSV = strings.TrimSpace(cfg.Output.TSV)
	cfg.History.Project = strings.TrimSpace(cfg.History.Project)
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
