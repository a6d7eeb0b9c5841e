package app

import (
	"fmt"
	"log/slog"
	"sync"

	"dagestimator/internal/core/config"
	"dagestimator/internal/core/ports"
	"dagestimator/internal/data/history"
	"dagestimator/internal/engine/analysis"
	"dagestimator/internal/engine/frontend/gossa"
	"dagestimator/internal/engine/frontend/irjson"
)

// App wires configuration, the selected frontend and the optional history
// store. Relative config paths are anchored at Base.
type App struct {
	Base       string
	ConfigPath string

	mu       sync.RWMutex
	config   *config.Config
	frontend ports.Frontend
	filter   *analysis.Filter

	history ports.HistoryStore
	store   *history.Store
}

// New builds an App for cfg. base is the directory relative paths resolve
// against, normally the config file's directory or the working directory.
func New(cfg *config.Config, base string) (*App, error) {
	a := &App{Base: base}
	if err := a.apply(cfg); err != nil {
		return nil, err
	}

	if cfg.History.Enabled {
		paths := config.ResolvePaths(cfg, base)
		store, err := history.Open(paths.History, cfg.History.BusyTimeout)
		if err != nil {
			if history.IsCorruptError(err) {
				slog.Error("history database looks corrupt; move it aside to start fresh", "path", paths.History, "error", err)
			}
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.store = store
		a.history = history.NewAdapter(store)
	}
	return a, nil
}

// apply swaps in cfg and everything derived from it.
func (a *App) apply(cfg *config.Config) error {
	filter, err := analysis.NewFilter(cfg.Analysis.Include, cfg.Analysis.Exclude)
	if err != nil {
		return fmt.Errorf("routine filter: %w", err)
	}
	frontend, err := selectFrontend(cfg)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = cfg
	a.filter = filter
	a.frontend = frontend
	return nil
}

// Reload applies a new configuration. History settings only take effect on
// restart.
func (a *App) Reload(cfg *config.Config) error {
	if err := a.apply(cfg); err != nil {
		return err
	}
	slog.Info("configuration reloaded", "frontend", cfg.Frontend.Kind, "workers", cfg.Analysis.Workers)
	return nil
}

func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

func (a *App) snapshot() (*config.Config, ports.Frontend, *analysis.Filter) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config, a.frontend, a.filter
}

// SetFrontend overrides the configured frontend.
func (a *App) SetFrontend(f ports.Frontend) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frontend = f
}

// SetHistory overrides the history store.
func (a *App) SetHistory(h ports.HistoryStore) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = h
}

func (a *App) historyStore() ports.HistoryStore {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.history
}

func selectFrontend(cfg *config.Config) (ports.Frontend, error) {
	switch cfg.Frontend.Kind {
	case config.FrontendJSON, "":
		return irjson.Frontend{}, nil
	case config.FrontendGo:
		return gossa.Frontend{Patterns: cfg.Frontend.Patterns, Tests: cfg.Frontend.GoTests}, nil
	default:
		return nil, fmt.Errorf("unknown frontend %q", cfg.Frontend.Kind)
	}
}

func (a *App) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.Close()
}
