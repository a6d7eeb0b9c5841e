package app

import (
	"context"
	"log/slog"
	"os"

	"dagestimator/internal/core/config"
	"dagestimator/internal/core/errors"
	"dagestimator/internal/core/ports"
	"dagestimator/internal/core/watcher"
	"dagestimator/internal/shared/observability"
	"dagestimator/internal/shared/util"
)

var watchExcludeDirs = []string{".git", "vendor", "testdata", "node_modules", ".*"}

// Watch analyzes the configured input once and again whenever it changes,
// until ctx is done. Re-analysis is rate limited by [watch] max_rate/burst.
// A changed config file is reloaded and triggers a run as well.
func (s *analysisService) Watch(ctx context.Context, handler func(ports.WatchUpdate)) error {
	if handler == nil {
		return errors.New(errors.CodeValidationError, "watch handler is required")
	}
	cfg := s.app.Config()
	input := config.ResolvePaths(cfg, s.app.Base).Input
	if input == "" {
		return errors.AddContext(
			errors.New(errors.CodeValidationError, "watch mode needs a configured input"),
			errors.CtxOperation, "watch",
		)
	}

	trigger := make(chan struct{}, 1)
	notify := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}

	w, err := watcher.NewWatcher(cfg.Watch.Debounce, watchExcludeDirs, func(paths []string) {
		slog.Debug("input changed", "paths", paths)
		notify()
	})
	if err != nil {
		return err
	}
	defer w.Close()
	if cfg.Frontend.Kind == config.FrontendGo {
		w.SetFilters([]string{".go"}, []string{"go.mod", "go.sum"}, !cfg.Frontend.GoTests)
	}
	if err := w.Watch([]string{input}); err != nil {
		return errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "cannot watch input"), errors.CtxPath, input)
	}

	if s.app.ConfigPath != "" {
		if _, err := os.Stat(s.app.ConfigPath); err == nil {
			cw := config.NewWatcher(s.app.ConfigPath, func(next *config.Config) {
				if err := s.app.Reload(next); err != nil {
					slog.Error("config reload rejected", "error", err)
					return
				}
				notify()
			})
			if err := cw.Start(ctx); err != nil {
				slog.Warn("config watcher unavailable", "path", s.app.ConfigPath, "error", err)
			} else {
				defer cw.Stop()
			}
		}
	}

	limiter := util.NewLimiter(cfg.Watch.MaxRate, cfg.Watch.Burst)
	run := func() {
		res, err := s.Analyze(ctx, ports.AnalyzeRequest{Input: input})
		if err != nil {
			slog.Error("watch analysis failed", "input", input, "error", err)
		}
		handler(ports.WatchUpdate{Result: res, Err: err})
	}

	slog.Info("watching input", "path", input)
	run()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			if !limiter.Allow(1) {
				observability.WatchRunsThrottledTotal.Inc()
				if err := limiter.Wait(ctx, 1); err != nil {
					return nil
				}
			}
			run()
		}
	}
}
