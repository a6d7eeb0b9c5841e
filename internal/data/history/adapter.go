package history

import (
	"context"
)

// Adapter bridges Store to the core HistoryStore port.
type Adapter struct {
	store *Store
}

func NewAdapter(store *Store) *Adapter {
	return &Adapter{store: store}
}

func (a *Adapter) SaveRun(ctx context.Context, run Run) (string, error) {
	return a.store.SaveRun(ctx, run)
}

func (a *Adapter) LoadRun(ctx context.Context, id string) (*Run, error) {
	return a.store.LoadRun(ctx, id)
}

func (a *Adapter) ListRuns(ctx context.Context, project string, limit int) ([]Run, error) {
	return a.store.ListRuns(ctx, project, limit)
}

func (a *Adapter) Close() error {
	return a.store.Close()
}
