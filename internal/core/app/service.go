package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dagestimator/internal/core/config"
	"dagestimator/internal/core/errors"
	"dagestimator/internal/core/ports"
	"dagestimator/internal/data/history"
	"dagestimator/internal/engine/analysis"
	"dagestimator/internal/shared/observability"
)

type analysisService struct {
	app *App
}

var _ ports.AnalysisService = (*analysisService)(nil)

func NewAnalysisService(app *App) ports.AnalysisService {
	return &analysisService{app: app}
}

func (a *App) AnalysisService() ports.AnalysisService {
	return NewAnalysisService(a)
}

func (s *analysisService) Analyze(ctx context.Context, req ports.AnalyzeRequest) (ports.AnalyzeResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysisService.Analyze")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return ports.AnalyzeResult{}, err
	}
	if s.app == nil {
		return ports.AnalyzeResult{}, fmt.Errorf("app is required")
	}
	cfg, frontend, filter := s.app.snapshot()

	input := strings.TrimSpace(req.Input)
	if input == "" {
		input = config.ResolvePaths(cfg, s.app.Base).Input
	}
	if input == "" {
		return ports.AnalyzeResult{}, errors.AddContext(
			errors.New(errors.CodeValidationError, "no input given and none configured"),
			errors.CtxOperation, "analyze",
		)
	}
	span.SetAttributes(attribute.String("input", input), attribute.String("frontend", frontend.Name()))

	start := time.Now()
	loadStart := time.Now()
	prog, err := frontend.Load(ctx, input)
	observability.AnalysisDuration.WithLabelValues("load").Observe(time.Since(loadStart).Seconds())
	if err != nil {
		return ports.AnalyzeResult{}, errors.AddContext(err, errors.CtxOperation, "load")
	}

	targets := resolveOutputTargets(cfg, s.app.Base)
	analyzer := analysis.NewAnalyzer(analysis.Options{
		Workers:    cfg.Analysis.Workers,
		Loops:      cfg.Analysis.LoopsEnabled(),
		Filter:     filter,
		KeepGraphs: targets.graphs(),
	})
	res, err := analyzer.Run(ctx, prog)
	if err != nil {
		return ports.AnalyzeResult{}, errors.AddContext(err, errors.CtxOperation, "analyze")
	}

	out := ports.AnalyzeResult{
		RunID:    uuid.NewString(),
		Program:  prog.Name,
		Frontend: frontend.Name(),
		Duration: time.Since(start),
		Result:   res,
	}
	span.SetAttributes(attribute.String("run_id", out.RunID))
	slog.Info("analysis finished",
		"program", prog.Name,
		"routines", len(res.Routines),
		"failures", len(res.Failures),
		"width", res.Module.Width,
		"depth", res.Module.Depth,
		"duration", out.Duration,
	)

	written, err := writeOutputs(targets, out.RunID, out.Frontend, res)
	out.Written = written
	if err != nil {
		return out, errors.AddContext(err, errors.CtxOperation, "write_outputs")
	}

	if store := s.app.historyStore(); store != nil {
		run := toHistoryRun(out, cfg.History.Project, input)
		if _, err := store.SaveRun(ctx, run); err != nil {
			return out, errors.AddContext(err, errors.CtxOperation, "save_history")
		}
		out.Saved = true
	}
	return out, nil
}

func toHistoryRun(res ports.AnalyzeResult, project, input string) history.Run {
	module := res.Result.Module
	run := history.Run{
		ID:           res.RunID,
		Project:      project,
		Program:      res.Program,
		Frontend:     res.Frontend,
		Input:        input,
		Timestamp:    time.Now().UTC(),
		Duration:     res.Duration,
		Routines:     len(res.Result.Routines),
		Failures:     len(res.Result.Failures),
		Instructions: module.Instructions,
		Reads:        module.Reads,
		Writes:       module.Writes,
		Calls:        module.Calls,
		Width:        module.Width,
		Depth:        module.Depth,
	}
	module.Walk(func(path string, rec *analysis.Record) {
		run.Regions = append(run.Regions, history.Region{
			Path:         path,
			Kind:         string(rec.Kind),
			Instructions: rec.Instructions,
			Blocks:       rec.Blocks,
			Reads:        rec.Reads,
			Writes:       rec.Writes,
			Calls:        rec.Calls,
			Width:        rec.Width,
			Depth:        rec.Depth,
			Skipped:      rec.Skipped,
			Error:        rec.Error,
		})
	})
	return run
}

func (s *analysisService) History(ctx context.Context, req ports.HistoryRequest) ([]history.Run, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysisService.History", trace.WithAttributes(
		attribute.String("project", req.Project),
	))
	defer span.End()

	store, err := s.requireHistory()
	if err != nil {
		return nil, err
	}
	project := req.Project
	if project == "" {
		project = s.app.Config().History.Project
	}
	return store.ListRuns(ctx, project, req.Limit)
}

func (s *analysisService) Run(ctx context.Context, id string) (*history.Run, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysisService.Run", trace.WithAttributes(
		attribute.String("run_id", id),
	))
	defer span.End()

	store, err := s.requireHistory()
	if err != nil {
		return nil, err
	}
	return store.LoadRun(ctx, id)
}

func (s *analysisService) requireHistory() (ports.HistoryStore, error) {
	if s.app == nil {
		return nil, fmt.Errorf("app is required")
	}
	store := s.app.historyStore()
	if store == nil {
		return nil, errors.New(errors.CodeNotSupported, "history is disabled; set [history] enabled = true")
	}
	return store, nil
}
