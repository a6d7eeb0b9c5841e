package analysis

import (
	"sync"

	"dagestimator/internal/engine/dag"
	"dagestimator/internal/shared/util"
)

type RegionKind string

const (
	RegionModule   RegionKind = "module"
	RegionFunction RegionKind = "function"
	RegionLoop     RegionKind = "loop"
)

// Record holds the counts and metrics of one analyzed region. Records are
// not modified once the region that owns them has finished.
type Record struct {
	Name         string     `json:"name"`
	Kind         RegionKind `json:"kind"`
	Instructions int        `json:"instructions"`
	Blocks       int        `json:"blocks"`
	Reads        int        `json:"reads"`
	Writes       int        `json:"writes"`
	Calls        int        `json:"calls"`
	Width        int        `json:"width"`
	Depth        int        `json:"depth"`
	Skipped      bool       `json:"skipped,omitempty"`
	Error        string     `json:"error,omitempty"`

	SubLoops []*Record          `json:"sub_loops,omitempty"`
	Callees  map[string]*Record `json:"-"`
	Routines []*Record          `json:"routines,omitempty"`
}

// Summary is the view a caller's call site sees of this record.
func (r *Record) Summary() dag.CallSummary {
	return dag.CallSummary{
		Callee: r.Name,
		Width:  r.Width,
		Depth:  r.Depth,
		Reads:  r.Reads,
		Writes: r.Writes,
	}
}

// CalleeNames returns the names of the attached callee records, sorted.
func (r *Record) CalleeNames() []string {
	return util.SortedStringKeys(r.Callees)
}

// Walk visits r and its nested loops and routines depth-first. Callee
// records are not descended into; they are visited under their own routine.
func (r *Record) Walk(fn func(path string, rec *Record)) {
	r.walk(r.Name, fn)
}

func (r *Record) walk(path string, fn func(string, *Record)) {
	fn(path, r)
	for _, sub := range r.SubLoops {
		sub.walk(path+"/"+sub.Name, fn)
	}
	for _, routine := range r.Routines {
		routine.walk(routine.Name, fn)
	}
}

// table is the set of finished routine records, consulted by call sites.
type table struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func newTable() *table {
	return &table{records: make(map[string]*Record)}
}

// Record implements Callees.
func (t *table) Record(name string) (*Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[name]
	return rec, ok
}

func (t *table) put(rec *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[rec.Name] = rec
}
