package analysis

import (
	"time"

	"dagestimator/internal/core/errors"
	"dagestimator/internal/engine/dag"
	"dagestimator/internal/engine/depgraph"
	"dagestimator/internal/engine/ir"
	"dagestimator/internal/shared/observability"
)

// Region is one basic-block sequence analyzed as a unit.
type Region struct {
	Name   string
	Kind   RegionKind
	Blocks []*ir.Block
}

// Callees resolves routines that have already been analyzed.
type Callees interface {
	Record(name string) (*Record, bool)
}

// RegionGraphs keeps the graphs of one region for export.
type RegionGraphs struct {
	Routine string
	Path    string
	DAG     *dag.DAG
	Graph   *depgraph.Graph
}

// AnalyzeRegion builds, locks, reduces and measures one region. A contract
// violation inside the engine is recovered and returned as a
// CONTRACT_VIOLATION error; the record then carries the counts gathered so
// far and the error text.
func AnalyzeRegion(reg Region, callees Callees) (rec *Record, graphs *RegionGraphs, err error) {
	rec = &Record{Name: reg.Name, Kind: reg.Kind}
	defer func() {
		if r := recover(); r != nil {
			err = errors.AddContext(errors.FromPanic(r), errors.CtxRegion, reg.Name)
			rec.Error = err.Error()
			rec.Width, rec.Depth = 0, 0
			graphs = nil
			observability.RegionFailuresTotal.WithLabelValues(string(reg.Kind)).Inc()
		}
	}()
	start := time.Now()

	builder := dag.NewBuilder(lookupFor(callees))
	builder.Init()
	for _, blk := range reg.Blocks {
		for _, op := range blk.Ops {
			rec.Instructions++
			switch op.Kind {
			case ir.KindLoad:
				rec.Reads++
			case ir.KindStore:
				rec.Writes++
			case ir.KindCall:
				rec.Calls++
				rec.attachCallee(op.Callee, callees)
			}
			builder.Add(op)
		}
		rec.Blocks++
	}

	d := builder.Lock()
	g := depgraph.Reduce(d)
	rec.Width = depgraph.Width(g)
	rec.Depth = depgraph.Depth(g)

	observability.RegionsAnalyzedTotal.WithLabelValues(string(reg.Kind)).Inc()
	observability.DAGNodes.Observe(float64(d.Len()))
	observability.DependencyGraphNodes.Observe(float64(g.Len()))
	observability.RegionWidth.Observe(float64(rec.Width))
	observability.RegionDepth.Observe(float64(rec.Depth))
	observability.AnalysisDuration.WithLabelValues("region").Observe(time.Since(start).Seconds())

	return rec, &RegionGraphs{Path: reg.Name, DAG: d, Graph: g}, nil
}

func (r *Record) attachCallee(name string, callees Callees) {
	if name == "" || callees == nil {
		return
	}
	callee, ok := callees.Record(name)
	if !ok {
		return
	}
	if r.Callees == nil {
		r.Callees = make(map[string]*Record)
	}
	r.Callees[name] = callee
}

func lookupFor(callees Callees) dag.CalleeLookup {
	if callees == nil {
		return nil
	}
	return dag.LookupFunc(func(name string) (dag.CallSummary, bool) {
		rec, ok := callees.Record(name)
		if !ok {
			return dag.CallSummary{}, false
		}
		return rec.Summary(), true
	})
}
