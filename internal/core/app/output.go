package app

import (
	"fmt"
	"time"

	"dagestimator/internal/core/app/helpers"
	"dagestimator/internal/engine/analysis"
	"dagestimator/internal/output"
	"dagestimator/internal/shared/observability"
)

// writeOutputs writes every enabled artifact and returns the written paths.
func writeOutputs(targets outputTargets, runID, frontend string, res *analysis.Result) ([]string, error) {
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("output").Observe(time.Since(start).Seconds())
	}()

	var written []string
	write := func(path string, content []byte) error {
		if err := helpers.WriteArtifact(path, content); err != nil {
			return fmt.Errorf("write %q: %w", path, err)
		}
		written = append(written, path)
		return nil
	}

	if targets.JSON != "" {
		data, err := output.GenerateJSON(output.NewReport(runID, frontend, res))
		if err != nil {
			return written, fmt.Errorf("generate JSON output: %w", err)
		}
		if err := write(targets.JSON, data); err != nil {
			return written, err
		}
	}

	if targets.TSV != "" {
		tsv, err := output.NewTSVGenerator(res.Module).Generate()
		if err != nil {
			return written, fmt.Errorf("generate TSV output: %w", err)
		}
		if err := write(targets.TSV, []byte(tsv)); err != nil {
			return written, err
		}
	}

	dotGen := output.NewDOTGenerator()
	mermaidGen := output.NewMermaidGenerator()
	for _, g := range res.Graphs {
		if targets.DOT != "" {
			dag, err := dotGen.GenerateDAG(g.Path, g.DAG)
			if err != nil {
				return written, fmt.Errorf("generate DOT output for %s: %w", g.Path, err)
			}
			graph, err := dotGen.GenerateGraph(g.Path, g.Graph)
			if err != nil {
				return written, fmt.Errorf("generate DOT output for %s: %w", g.Path, err)
			}
			if err := write(helpers.RegionFile(targets.DOT, g.Path, "dag", "dot"), []byte(dag)); err != nil {
				return written, err
			}
			if err := write(helpers.RegionFile(targets.DOT, g.Path, "graph", "dot"), []byte(graph)); err != nil {
				return written, err
			}
		}
		if targets.Mermaid != "" {
			dag, err := mermaidGen.GenerateDAG(g.Path, g.DAG)
			if err != nil {
				return written, fmt.Errorf("generate Mermaid output for %s: %w", g.Path, err)
			}
			graph, err := mermaidGen.GenerateGraph(g.Path, g.Graph)
			if err != nil {
				return written, fmt.Errorf("generate Mermaid output for %s: %w", g.Path, err)
			}
			if err := write(helpers.RegionFile(targets.Mermaid, g.Path, "dag", "mmd"), []byte(dag)); err != nil {
				return written, err
			}
			if err := write(helpers.RegionFile(targets.Mermaid, g.Path, "graph", "mmd"), []byte(graph)); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}
