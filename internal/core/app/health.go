package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"dagestimator/internal/core/config"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}
	cfg, frontend, _ := s.app.snapshot()

	if frontend == nil {
		status.Status = "degraded"
		status.Components["frontend"] = "missing"
	} else {
		status.Components["frontend"] = "ok (" + frontend.Name() + ")"
	}

	input := config.ResolvePaths(cfg, s.app.Base).Input
	switch {
	case input == "":
		status.Components["input"] = "not configured"
	default:
		if _, err := os.Stat(input); err != nil {
			status.Status = "degraded"
			status.Components["input"] = fmt.Sprintf("unavailable: %v", err)
		} else {
			status.Components["input"] = "ok"
		}
	}

	if store := s.app.historyStore(); store != nil {
		if _, err := store.ListRuns(ctx, cfg.History.Project, 1); err != nil {
			status.Status = "degraded"
			status.Components["history"] = fmt.Sprintf("error: %v", err)
		} else {
			status.Components["history"] = "ok"
		}
	} else if cfg.History.Enabled {
		status.Status = "degraded"
		status.Components["history"] = "missing but enabled in config"
	}

	return status
}
