package config

import (
	"path/filepath"
	"strings"
)

type ResolvedPaths struct {
	Input     string
	OutputDir string
	History   string
}

// ResolvePaths anchors the relative paths of cfg at base, normally the
// directory holding the config file.
func ResolvePaths(cfg *Config, base string) ResolvedPaths {
	resolved := ResolvedPaths{
		OutputDir: ResolveRelative(base, cfg.Output.Dir),
		History:   ResolveRelative(base, cfg.History.Path),
	}
	if cfg.Input != "" {
		resolved.Input = ResolveRelative(base, cfg.Input)
	}
	return resolved
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}
