package ports

import (
	"context"
	"time"

	"dagestimator/internal/data/history"
	"dagestimator/internal/engine/analysis"
	"dagestimator/internal/engine/ir"
)

// Frontend materializes a program's operation stream from an input path.
type Frontend interface {
	Name() string
	Load(ctx context.Context, path string) (*ir.Program, error)
}

// HistoryStore abstracts run persistence for the history workflows.
type HistoryStore interface {
	SaveRun(ctx context.Context, run history.Run) (string, error)
	LoadRun(ctx context.Context, id string) (*history.Run, error)
	ListRuns(ctx context.Context, project string, limit int) ([]history.Run, error)
}

// AnalyzeRequest defines an analysis run for driving adapters. An empty
// Input falls back to the configured input.
type AnalyzeRequest struct {
	Input string
}

// AnalyzeResult is a finished run together with the files it produced.
type AnalyzeResult struct {
	RunID    string
	Program  string
	Frontend string
	Duration time.Duration
	Result   *analysis.Result
	Written  []string
	Saved    bool
}

// HistoryRequest selects runs of a project, newest first.
type HistoryRequest struct {
	Project string
	Limit   int
}

// WatchUpdate is emitted after every re-analysis in watch mode.
type WatchUpdate struct {
	Result AnalyzeResult
	Err    error
}

// AnalysisService is the driving-port surface over the analysis use cases.
type AnalysisService interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error)
	History(ctx context.Context, req HistoryRequest) ([]history.Run, error)
	Run(ctx context.Context, id string) (*history.Run, error)
	Watch(ctx context.Context, handler func(WatchUpdate)) error
}
