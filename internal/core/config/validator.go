package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/gobwas/glob"
)

// Validate reports every problem in cfg rather than stopping at the first.
func Validate(cfg *Config) []error {
	var errs []error

	if err := validateVersion(cfg); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, validateAnalysis(cfg)...)
	if err := validateFrontend(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateOutput(cfg); err != nil {
		errs = append(errs, err)
	}
	if err := validateHistory(cfg); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, validateObservability(cfg)...)
	errs = append(errs, validateWatch(cfg)...)
	errs = append(errs, validatePaths(cfg)...)

	return errs
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateAnalysis(cfg *Config) []error {
	var errs []error
	if cfg.Analysis.Workers < 0 {
		errs = append(errs, fmt.Errorf("analysis.workers must be >= 0, got %d", cfg.Analysis.Workers))
	}
	for i, p := range cfg.Analysis.Include {
		if _, err := glob.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("analysis.include[%d] %q: %w", i, p, err))
		}
	}
	for i, p := range cfg.Analysis.Exclude {
		if _, err := glob.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("analysis.exclude[%d] %q: %w", i, p, err))
		}
	}
	return errs
}

func validateFrontend(cfg *Config) error {
	switch cfg.Frontend.Kind {
	case FrontendJSON, FrontendGo:
		return nil
	default:
		return fmt.Errorf("frontend.kind must be one of: %s, %s; got %q", FrontendJSON, FrontendGo, cfg.Frontend.Kind)
	}
}

func validateOutput(cfg *Config) error {
	if cfg.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	if strings.ContainsAny(cfg.Output.JSON, `/\`) {
		return fmt.Errorf("output.json must be a file name inside output.dir, got %q", cfg.Output.JSON)
	}
	if strings.ContainsAny(cfg.Output.TSV, `/\`) {
		return fmt.Errorf("output.tsv must be a file name inside output.dir, got %q", cfg.Output.TSV)
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if !cfg.History.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		return fmt.Errorf("history.path must not be empty when history is enabled")
	}
	if cfg.History.Project == "" {
		return fmt.Errorf("history.project must not be empty when history is enabled")
	}
	return nil
}

func validateObservability(cfg *Config) []error {
	var errs []error
	o := cfg.Observability
	if o.MetricsAddress != "" {
		if _, _, err := net.SplitHostPort(o.MetricsAddress); err != nil {
			errs = append(errs, fmt.Errorf("observability.metrics_address %q: %w", o.MetricsAddress, err))
		}
	}
	if o.SampleRate < 0 || o.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("observability.sample_rate must be within [0, 1], got %v", o.SampleRate))
	}
	return errs
}

func validateWatch(cfg *Config) []error {
	var errs []error
	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must not be negative"))
	}
	if cfg.Watch.MaxRate < 0 {
		errs = append(errs, fmt.Errorf("watch.max_rate must not be negative"))
	}
	if cfg.Watch.Burst < 1 {
		errs = append(errs, fmt.Errorf("watch.burst must be >= 1, got %d", cfg.Watch.Burst))
	}
	return errs
}

func validatePaths(cfg *Config) []error {
	var errs []error
	if cfg.Input == "" {
		return nil
	}
	stat, err := os.Stat(cfg.Input)
	switch {
	case os.IsNotExist(err):
		errs = append(errs, fmt.Errorf("input %q does not exist", cfg.Input))
	case err == nil && cfg.Frontend.Kind == FrontendGo && !stat.IsDir():
		errs = append(errs, fmt.Errorf("input %q must be a module directory for the go frontend", cfg.Input))
	case err == nil && cfg.Frontend.Kind == FrontendJSON && stat.IsDir():
		errs = append(errs, fmt.Errorf("input %q must be a file for the json frontend", cfg.Input))
	}
	return errs
}
