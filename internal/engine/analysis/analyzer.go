package analysis

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"dagestimator/internal/core/errors"
	"dagestimator/internal/engine/ir"
	"dagestimator/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Workers bounds the routines analyzed concurrently within one call
	// level. Zero means GOMAXPROCS.
	Workers int
	// Loops enables one nested record per natural loop.
	Loops bool
	// Filter selects routines; excluded routines get a skipped record.
	Filter *Filter
	// KeepGraphs retains every region's DAG and dependency graph on the
	// result for export.
	KeepGraphs bool
}

// Failure is a region that could not be analyzed. The rest of the run is
// unaffected.
type Failure struct {
	Routine string
	Path    string
	Err     error
}

type Result struct {
	Module   *Record
	Routines []*Record
	Failures []Failure
	Graphs   []*RegionGraphs
}

// Routine returns the record of the named routine.
func (r *Result) Routine(name string) (*Record, bool) {
	for _, rec := range r.Routines {
		if rec.Name == name {
			return rec, true
		}
	}
	return nil, false
}

type Analyzer struct {
	opts Options
}

func NewAnalyzer(opts Options) *Analyzer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Analyzer{opts: opts}
}

// Run analyzes every routine of prog bottom-up over the call graph, so that a
// call site always sees its callee's finished record.
func (a *Analyzer) Run(ctx context.Context, prog *ir.Program) (*Result, error) {
	ctx, span := observability.Tracer.Start(ctx, "analysis.Run", trace.WithAttributes(
		attribute.String("program", prog.Name),
		attribute.Int("routines", len(prog.Routines)),
	))
	defer span.End()
	start := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("program").Observe(time.Since(start).Seconds())
	}()

	records := newTable()
	levels, blocked := Levels(prog)

	var (
		mu       sync.Mutex
		failures []Failure
		graphs   []*RegionGraphs
	)
	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.opts.Workers)
		for _, r := range level {
			r := r
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				out := a.analyzeRoutine(gctx, r, records)
				records.put(out.record)
				mu.Lock()
				failures = append(failures, out.failures...)
				graphs = append(graphs, out.graphs...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	for _, r := range blocked {
		err := errors.AddContext(
			errors.New(errors.CodeCyclicCalls, "routine is on or depends on a recursive call cycle"),
			errors.CtxRoutine, r.Name,
		)
		slog.Warn("routine not analyzed", "routine", r.Name, "error", err)
		records.put(&Record{Name: r.Name, Kind: RegionFunction, Error: err.Error()})
		failures = append(failures, Failure{Routine: r.Name, Path: r.Name, Err: err})
	}

	res := &Result{Failures: failures, Graphs: graphs}
	module := &Record{Name: prog.Name, Kind: RegionModule}
	for _, r := range prog.Routines {
		rec, _ := records.Record(r.Name)
		res.Routines = append(res.Routines, rec)
		module.Instructions += rec.Instructions
		module.Blocks += rec.Blocks
		module.Reads += rec.Reads
		module.Writes += rec.Writes
		module.Calls += rec.Calls
		module.Width = max(module.Width, rec.Width)
		module.Depth = max(module.Depth, rec.Depth)
	}
	module.Routines = res.Routines
	res.Module = module

	order := make(map[string]int, len(prog.Routines))
	for i, r := range prog.Routines {
		order[r.Name] = i
	}
	sort.SliceStable(res.Failures, func(i, j int) bool {
		return lessRegion(order, res.Failures[i].Routine, res.Failures[i].Path, res.Failures[j].Routine, res.Failures[j].Path)
	})
	sort.SliceStable(res.Graphs, func(i, j int) bool {
		return lessRegion(order, res.Graphs[i].Routine, res.Graphs[i].Path, res.Graphs[j].Routine, res.Graphs[j].Path)
	})

	span.SetAttributes(
		attribute.Int("failures", len(res.Failures)),
		attribute.Int("width", module.Width),
		attribute.Int("depth", module.Depth),
	)
	return res, nil
}

func lessRegion(order map[string]int, ra, pa, rb, pb string) bool {
	if order[ra] != order[rb] {
		return order[ra] < order[rb]
	}
	return pa < pb
}

type routineOutcome struct {
	record   *Record
	failures []Failure
	graphs   []*RegionGraphs
}

func (a *Analyzer) analyzeRoutine(ctx context.Context, r *ir.Routine, records Callees) routineOutcome {
	_, span := observability.Tracer.Start(ctx, "analysis.routine", trace.WithAttributes(
		attribute.String("routine", r.Name),
	))
	defer span.End()

	if r.External {
		return routineOutcome{record: &Record{Name: r.Name, Kind: RegionFunction}}
	}
	if !a.opts.Filter.Match(r.Name) {
		slog.Debug("routine excluded", "routine", r.Name)
		return routineOutcome{record: &Record{Name: r.Name, Kind: RegionFunction, Skipped: true}}
	}

	var out routineOutcome
	out.record = a.region(&out, r.Name, r.Name, Region{Name: r.Name, Kind: RegionFunction, Blocks: r.Blocks}, records)
	if a.opts.Loops {
		for _, l := range r.Loops {
			out.record.SubLoops = append(out.record.SubLoops, a.loop(&out, r.Name, r.Name, l, records))
		}
	}
	return out
}

func (a *Analyzer) loop(out *routineOutcome, routine, parent string, l *ir.Loop, records Callees) *Record {
	path := parent + "/" + l.Name
	rec := a.region(out, routine, path, Region{Name: l.Name, Kind: RegionLoop, Blocks: l.Blocks}, records)
	for _, sub := range l.SubLoops {
		rec.SubLoops = append(rec.SubLoops, a.loop(out, routine, path, sub, records))
	}
	return rec
}

func (a *Analyzer) region(out *routineOutcome, routine, path string, reg Region, records Callees) *Record {
	rec, graphs, err := AnalyzeRegion(reg, records)
	if err != nil {
		err = errors.AddContext(err, errors.CtxRoutine, routine)
		slog.Error("region analysis failed", "routine", routine, "region", path, "error", err)
		out.failures = append(out.failures, Failure{Routine: routine, Path: path, Err: err})
		return rec
	}
	if a.opts.KeepGraphs {
		graphs.Routine = routine
		graphs.Path = path
		out.graphs = append(out.graphs, graphs)
	}
	return rec
}
