package app

import (
	"path/filepath"

	"dagestimator/internal/core/app/helpers"
	"dagestimator/internal/core/config"
)

type outputTargets struct {
	Dir     string
	DOT     string
	Mermaid string
	JSON    string
	TSV     string
}

func resolveOutputTargets(cfg *config.Config, base string) outputTargets {
	dir := config.ResolvePaths(cfg, base).OutputDir
	targets := outputTargets{
		Dir:  dir,
		JSON: helpers.ResolveOutputPath(cfg.Output.JSON, dir),
		TSV:  helpers.ResolveOutputPath(cfg.Output.TSV, dir),
	}
	if cfg.Output.DOT {
		targets.DOT = filepath.Join(dir, "dot")
	}
	if cfg.Output.Mermaid {
		targets.Mermaid = filepath.Join(dir, "mermaid")
	}
	return targets
}

func (t outputTargets) graphs() bool {
	return t.DOT != "" || t.Mermaid != ""
}
