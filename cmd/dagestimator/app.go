package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"dagestimator/internal/core/app"
	"dagestimator/internal/core/config"
	"dagestimator/internal/core/ports"
	"dagestimator/internal/output"
	"dagestimator/internal/shared/observability"
)

const defaultConfigName = config.DefaultFile

// runtime is the process-level wiring shared by every command.
type runtime struct {
	app     *app.App
	tracing *observability.TracerProvider
	metrics *observability.Server
}

func newRuntime(ctx context.Context, opts *rootOptions, input string, logOut io.Writer) (*runtime, error) {
	logLevel := slog.LevelInfo
	if opts.verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "path", opts.configPath, "error", err)
		return nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	base, configPath := cwd, ""
	if abs, err := filepath.Abs(opts.configPath); err == nil {
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			base, configPath = filepath.Dir(abs), abs
		}
	}
	if input != "" {
		cfg.Input = config.ResolveRelative(cwd, input)
	}

	a, err := app.New(cfg, base)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return nil, err
	}
	a.ConfigPath = configPath
	rt := &runtime{app: a}

	rt.tracing, err = observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: VERSION,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		SampleRate:     cfg.Observability.SampleRate,
	})
	if err != nil {
		slog.Warn("tracing disabled", "endpoint", cfg.Observability.OTLPEndpoint, "error", err)
	}

	if addr := cfg.Observability.MetricsAddress; addr != "" {
		srv := observability.NewServer(addr)
		health := app.NewHealthService(a)
		srv.SetHealthCheck(func(ctx context.Context) any { return health.Check(ctx) })
		if err := srv.Start(ctx); err != nil {
			slog.Warn("metrics server unavailable", "addr", addr, "error", err)
		} else {
			rt.metrics = srv
		}
	}
	return rt, nil
}

func (rt *runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rt.metrics != nil {
		if err := rt.metrics.Stop(ctx); err != nil {
			slog.Warn("stop metrics server", "error", err)
		}
	}
	if rt.tracing != nil {
		if err := rt.tracing.Shutdown(ctx); err != nil {
			slog.Warn("flush traces", "error", err)
		}
	}
	if err := rt.app.Close(); err != nil {
		slog.Warn("close history", "error", err)
	}
}

func (rt *runtime) analyze(ctx context.Context, out io.Writer, jsonOut bool) error {
	res, err := rt.app.AnalysisService().Analyze(ctx, ports.AnalyzeRequest{})
	if err != nil {
		slog.Error("analysis failed", "error", err)
		return err
	}
	if jsonOut {
		data, err := output.GenerateJSON(output.NewReport(res.RunID, res.Frontend, res.Result))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	printResult(out, res, rt.app.Config().Output.TableEnabled())
	return nil
}

func (rt *runtime) watch(ctx context.Context, out io.Writer) error {
	table := rt.app.Config().Output.TableEnabled()
	return rt.app.AnalysisService().Watch(ctx, func(u ports.WatchUpdate) {
		if u.Err != nil {
			fmt.Fprintln(out, errorLine(u.Err))
			return
		}
		printResult(out, u.Result, table)
	})
}

func (rt *runtime) listRuns(ctx context.Context, out io.Writer, project string, limit int) error {
	runs, err := rt.app.AnalysisService().History(ctx, ports.HistoryRequest{Project: project, Limit: limit})
	if err != nil {
		return err
	}
	fmt.Fprint(out, renderRuns(runs))
	return nil
}

func (rt *runtime) showRun(ctx context.Context, out io.Writer, id string) error {
	run, err := rt.app.AnalysisService().Run(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprint(out, renderRun(run))
	return nil
}

func (rt *runtime) health(ctx context.Context, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(app.NewHealthService(rt.app).Check(ctx))
}
