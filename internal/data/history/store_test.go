package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	domainerrors "dagestimator/internal/core/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), time.Second)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun(project string, ts time.Time) Run {
	return Run{
		Project:      project,
		Program:      "kernels",
		Frontend:     "json",
		Input:        "kernels.json",
		Timestamp:    ts,
		Duration:     1500 * time.Millisecond,
		Routines:     2,
		Instructions: 12,
		Reads:        4,
		Writes:       2,
		Calls:        1,
		Width:        3,
		Depth:        4,
		Regions: []Region{
			{Path: "axpy", Kind: "function", Instructions: 6, Blocks: 1, Reads: 2, Writes: 1, Width: 2, Depth: 3},
			{Path: "main/loop", Kind: "loop", Instructions: 3, Blocks: 2, Width: 1, Depth: 1},
			{Path: "printf", Kind: "function", Skipped: true},
			{Path: "bad", Kind: "function", Error: "[CONTRACT_VIOLATION] boom"},
		},
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := store.SaveRun(ctx, sampleRun("bench", ts))
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated run id")
	}

	got, err := store.LoadRun(ctx, id)
	if err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	if got.Project != "bench" || got.Program != "kernels" || !got.Timestamp.Equal(ts) {
		t.Errorf("unexpected run header: %+v", got)
	}
	if got.Duration != 1500*time.Millisecond {
		t.Errorf("expected duration 1.5s, got %v", got.Duration)
	}
	if got.Width != 3 || got.Depth != 4 || got.Instructions != 12 {
		t.Errorf("unexpected totals: %+v", got)
	}
	if len(got.Regions) != 4 {
		t.Fatalf("expected 4 regions, got %d", len(got.Regions))
	}
	if got.Regions[1].Path != "main/loop" || got.Regions[1].Kind != "loop" {
		t.Errorf("regions should keep insertion order, got %+v", got.Regions[1])
	}
	if !got.Regions[2].Skipped || got.Regions[3].Error == "" {
		t.Errorf("skipped/error flags lost: %+v", got.Regions[2:])
	}
}

func TestLoadRunMissing(t *testing.T) {
	store := openTestStore(t)
	_, err := store.LoadRun(context.Background(), "nope")
	if !domainerrors.IsCode(err, domainerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestListAndPruneRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := store.SaveRun(ctx, sampleRun("bench", base.Add(time.Duration(i)*time.Hour)))
		if err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
		ids = append(ids, id)
	}
	if _, err := store.SaveRun(ctx, sampleRun("", base)); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	runs, err := store.ListRuns(ctx, "bench", 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Fatalf("expected newest two runs first, got %+v", runs)
	}
	if runs[0].Regions != nil {
		t.Error("ListRuns should not load regions")
	}

	defaults, err := store.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(defaults) != 1 || defaults[0].Project != "default" {
		t.Errorf("expected one run in default project, got %+v", defaults)
	}

	removed, err := store.Prune(ctx, "bench", 1)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 runs pruned, got %d", removed)
	}
	if _, err := store.LoadRun(ctx, ids[0]); !domainerrors.IsCode(err, domainerrors.CodeNotFound) {
		t.Errorf("pruned run should be gone, got %v", err)
	}
	if _, err := store.LoadRun(ctx, ids[2]); err != nil {
		t.Errorf("newest run should survive prune: %v", err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := Open(path, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	id, err := store.SaveRun(context.Background(), sampleRun("bench", time.Now()))
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	_ = store.Close()

	store, err = Open(path, 0)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer store.Close()
	if store.Path() != path {
		t.Errorf("unexpected path %q", store.Path())
	}
	if _, err := store.LoadRun(context.Background(), id); err != nil {
		t.Errorf("run lost across reopen: %v", err)
	}
}

func TestOpenRejectsBadPaths(t *testing.T) {
	if _, err := Open(" ", time.Second); err == nil {
		t.Error("expected empty path to fail")
	}
	if _, err := Open(t.TempDir(), time.Second); err == nil {
		t.Error("expected directory path to fail")
	}

	corrupt := filepath.Join(t.TempDir(), "corrupt.db")
	if err := os.WriteFile(corrupt, []byte("definitely not sqlite, padded out to look like a header......"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(corrupt, time.Second)
	if err == nil {
		t.Fatal("expected corrupt file to fail")
	}
	if !IsCorruptError(err) {
		t.Errorf("expected corrupt error, got %v", err)
	}
}

func TestAdapter(t *testing.T) {
	a := NewAdapter(openTestStore(t))
	ctx := context.Background()
	id, err := a.SaveRun(ctx, sampleRun("bench", time.Now()))
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if _, err := a.LoadRun(ctx, id); err != nil {
		t.Fatalf("LoadRun failed: %v", err)
	}
	runs, err := a.ListRuns(ctx, "bench", 10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns = %v, %v", runs, err)
	}
}
