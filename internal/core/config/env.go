package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: DAGEST_[SECTION]_[KEY] (e.g., DAGEST_ANALYSIS_WORKERS).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Input, "DAGEST_INPUT")

	// Analysis
	setEnvInt(&cfg.Analysis.Workers, "DAGEST_ANALYSIS_WORKERS")
	setEnvList(&cfg.Analysis.Include, "DAGEST_ANALYSIS_INCLUDE")
	setEnvList(&cfg.Analysis.Exclude, "DAGEST_ANALYSIS_EXCLUDE")
	setEnvBoolPtr(&cfg.Analysis.Loops, "DAGEST_ANALYSIS_LOOPS")

	// Frontend
	setEnvString(&cfg.Frontend.Kind, "DAGEST_FRONTEND_KIND")
	setEnvBool(&cfg.Frontend.GoTests, "DAGEST_FRONTEND_GO_TESTS")

	// Output
	setEnvString(&cfg.Output.Dir, "DAGEST_OUTPUT_DIR")
	setEnvBool(&cfg.Output.DOT, "DAGEST_OUTPUT_DOT")
	setEnvBool(&cfg.Output.Mermaid, "DAGEST_OUTPUT_MERMAID")
	setEnvString(&cfg.Output.JSON, "DAGEST_OUTPUT_JSON")
	setEnvString(&cfg.Output.TSV, "DAGEST_OUTPUT_TSV")
	setEnvBoolPtr(&cfg.Output.Table, "DAGEST_OUTPUT_TABLE")

	// History
	setEnvBool(&cfg.History.Enabled, "DAGEST_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "DAGEST_HISTORY_PATH")
	setEnvString(&cfg.History.Project, "DAGEST_HISTORY_PROJECT")
	setEnvDuration(&cfg.History.BusyTimeout, "DAGEST_HISTORY_BUSY_TIMEOUT")

	// Observability
	setEnvString(&cfg.Observability.MetricsAddress, "DAGEST_OBSERVABILITY_METRICS_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "DAGEST_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "DAGEST_OBSERVABILITY_SERVICE_NAME")
	setEnvFloat64(&cfg.Observability.SampleRate, "DAGEST_OBSERVABILITY_SAMPLE_RATE")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "DAGEST_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.MaxRate, "DAGEST_WATCH_MAX_RATE")
	setEnvInt(&cfg.Watch.Burst, "DAGEST_WATCH_BURST")
}

func applied(key, val string) {
	slog.Debug("applying env override", "key", key, "value", val)
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		applied(key, val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		applied(key, val)
		*target = strings.Split(val, ",")
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			applied(key, val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			applied(key, val)
			*target = b
		}
	}
}

func setEnvBoolPtr(target **bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			applied(key, val)
			*target = &b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			applied(key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			applied(key, val)
			*target = d
		}
	}
}
