package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagestimator/internal/core/errors"
	"dagestimator/internal/engine/ir"
)

// addLeaf adds a routine computing *c = *a + *b.
func addLeaf(p *ir.Program, name string) *ir.Routine {
	r := p.NewRoutine(name)
	a := p.Param(r, "a", ir.Ptr)
	b := p.Param(r, "b", ir.Ptr)
	c := p.Param(r, "c", ir.Ptr)
	blk := p.NewBlock(r, "entry")
	sum := blk.Arith("add", "s", ir.I32, blk.Load("la", ir.I32, a), blk.Load("lb", ir.I32, b))
	blk.Store(sum, c)
	blk.Return()
	return r
}

func addCaller(p *ir.Program, name string, callees ...string) *ir.Routine {
	r := p.NewRoutine(name)
	x := p.Param(r, "x", ir.Ptr)
	blk := p.NewBlock(r, "entry")
	for _, callee := range callees {
		blk.Call(callee, "", ir.Void, x)
	}
	blk.Return()
	return r
}

func TestAnalyzer_BottomUp(t *testing.T) {
	p := ir.NewProgram("prog")
	addCaller(p, "main", "leaf")
	addLeaf(p, "leaf")

	res, err := NewAnalyzer(Options{Workers: 2}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, res.Failures)

	require.Len(t, res.Routines, 2)
	assert.Equal(t, "main", res.Routines[0].Name)
	assert.Equal(t, "leaf", res.Routines[1].Name)

	leaf, ok := res.Routine("leaf")
	require.True(t, ok)
	assert.Equal(t, 5, leaf.Instructions)
	assert.Equal(t, 1, leaf.Blocks)
	assert.Equal(t, 2, leaf.Reads)
	assert.Equal(t, 1, leaf.Writes)
	assert.Equal(t, 2, leaf.Width)
	assert.Equal(t, 2, leaf.Depth)

	main, ok := res.Routine("main")
	require.True(t, ok)
	assert.Equal(t, 2, main.Instructions)
	assert.Equal(t, 1, main.Calls)
	assert.Same(t, leaf, main.Callees["leaf"])
	assert.Equal(t, 0, main.Width)

	mod := res.Module
	assert.Equal(t, RegionModule, mod.Kind)
	assert.Equal(t, 7, mod.Instructions)
	assert.Equal(t, 2, mod.Reads)
	assert.Equal(t, 1, mod.Calls)
	assert.Equal(t, 2, mod.Width)
	assert.Equal(t, 2, mod.Depth)
}

func TestAnalyzer_CallCycleIsReported(t *testing.T) {
	p := ir.NewProgram("prog")
	addCaller(p, "a", "b")
	addCaller(p, "b", "a")
	addLeaf(p, "c")

	res, err := NewAnalyzer(Options{}).Run(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, res.Failures, 2)
	assert.Equal(t, "a", res.Failures[0].Routine)
	assert.Equal(t, "b", res.Failures[1].Routine)
	for _, f := range res.Failures {
		assert.True(t, errors.IsCode(f.Err, errors.CodeCyclicCalls))
	}

	a, _ := res.Routine("a")
	assert.NotEmpty(t, a.Error)
	c, _ := res.Routine("c")
	assert.Empty(t, c.Error)
	assert.Equal(t, 2, c.Width)
}

func TestAnalyzer_ValueCallIntoCycleIsBlocked(t *testing.T) {
	p := ir.NewProgram("prog")
	addCaller(p, "rec", "rec")
	r := p.NewRoutine("user")
	x := p.Param(r, "x", ir.Ptr)
	blk := p.NewBlock(r, "entry")
	_, v := blk.Call("rec", "v", ir.I32, x)
	blk.Store(v, x)
	blk.Return()
	addLeaf(p, "leaf")

	res, err := NewAnalyzer(Options{Workers: 2}).Run(context.Background(), p)
	require.NoError(t, err, "blocked routines are recorded as failures, the run goes on")

	require.Len(t, res.Failures, 2)
	assert.Equal(t, "rec", res.Failures[0].Routine)
	assert.Equal(t, "user", res.Failures[1].Routine)
	for _, f := range res.Failures {
		assert.True(t, errors.IsCode(f.Err, errors.CodeCyclicCalls))
	}
	leaf, _ := res.Routine("leaf")
	assert.Empty(t, leaf.Error)
	assert.Equal(t, 5, leaf.Instructions)
	assert.Equal(t, 5, res.Module.Instructions)
}

func TestAnalyzer_RegionFailureIsIsolated(t *testing.T) {
	p := ir.NewProgram("prog")
	addCaller(p, "broken", "nowhere")
	addLeaf(p, "fine")

	res, err := NewAnalyzer(Options{}).Run(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, "broken", res.Failures[0].Routine)
	assert.True(t, errors.IsCode(res.Failures[0].Err, errors.CodeContractViolation))

	broken, _ := res.Routine("broken")
	assert.Contains(t, broken.Error, "nowhere")
	fine, _ := res.Routine("fine")
	assert.Equal(t, 2, fine.Depth)
	assert.Equal(t, 2, res.Module.Depth)
}

func TestAnalyzer_ExternalAndFiltered(t *testing.T) {
	p := ir.NewProgram("prog")
	ext := p.NewRoutine("ext")
	ext.External = true
	addCaller(p, "main", "ext")
	addLeaf(p, "skip_me")

	filter, err := NewFilter(nil, []string{"skip_*"})
	require.NoError(t, err)

	res, err := NewAnalyzer(Options{Filter: filter}).Run(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, res.Failures)

	skipped, _ := res.Routine("skip_me")
	assert.True(t, skipped.Skipped)
	assert.Zero(t, skipped.Instructions)

	extRec, _ := res.Routine("ext")
	assert.False(t, extRec.Skipped)
	assert.Zero(t, extRec.Width)

	main, _ := res.Routine("main")
	assert.Contains(t, main.Callees, "ext")
}

func TestAnalyzer_LoopRecords(t *testing.T) {
	p := ir.NewProgram("prog")
	r := p.NewRoutine("main")
	x := p.Param(r, "x", ir.Ptr)
	y := p.Param(r, "y", ir.Ptr)

	entry := p.NewBlock(r, "entry")
	entry.Branch()
	outer := p.NewBlock(r, "outer")
	outer.Store(outer.Load("lx", ir.I32, x), y)
	outer.Branch()
	inner := p.NewBlock(r, "inner")
	inner.Store(inner.Arith("add", "s", ir.I32, inner.Load("ly", ir.I32, y), p.Int(1, 32)), y)
	inner.Branch()

	innerLoop := &ir.Loop{Name: "inner", Blocks: []*ir.Block{inner.Block}}
	r.Loops = []*ir.Loop{{
		Name:     "outer",
		Blocks:   []*ir.Block{outer.Block, inner.Block},
		SubLoops: []*ir.Loop{innerLoop},
	}}

	res, err := NewAnalyzer(Options{Loops: true, KeepGraphs: true}).Run(context.Background(), p)
	require.NoError(t, err)

	main, _ := res.Routine("main")
	require.Len(t, main.SubLoops, 1)
	outerRec := main.SubLoops[0]
	assert.Equal(t, RegionLoop, outerRec.Kind)
	assert.Equal(t, 2, outerRec.Blocks)
	assert.Equal(t, 2, outerRec.Writes)
	require.Len(t, outerRec.SubLoops, 1)
	assert.Equal(t, "inner", outerRec.SubLoops[0].Name)
	assert.Equal(t, 1, outerRec.SubLoops[0].Writes)

	var paths []string
	for _, g := range res.Graphs {
		assert.Equal(t, "main", g.Routine)
		paths = append(paths, g.Path)
	}
	assert.Equal(t, []string{"main", "main/outer", "main/outer/inner"}, paths)

	var walked []string
	res.Module.Walk(func(path string, _ *Record) { walked = append(walked, path) })
	assert.Equal(t, []string{"prog", "main", "main/outer", "main/outer/inner"}, walked)
}

func TestAnalyzer_LoopsDisabled(t *testing.T) {
	p := ir.NewProgram("prog")
	r := addLeaf(p, "main")
	r.Loops = []*ir.Loop{{Name: "l", Blocks: r.Blocks}}

	res, err := NewAnalyzer(Options{}).Run(context.Background(), p)
	require.NoError(t, err)
	main, _ := res.Routine("main")
	assert.Empty(t, main.SubLoops)
	assert.Empty(t, res.Graphs)
}

func TestAnalyzer_Cancelled(t *testing.T) {
	p := ir.NewProgram("prog")
	addLeaf(p, "main")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAnalyzer(Options{}).Run(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeRegion_NilCallees(t *testing.T) {
	p := ir.NewProgram("prog")
	r := addLeaf(p, "main")

	rec, graphs, err := AnalyzeRegion(Region{Name: "main", Kind: RegionFunction, Blocks: r.Blocks}, nil)
	require.NoError(t, err)
	require.NotNil(t, graphs)
	assert.Equal(t, 2, rec.Width)
	assert.Nil(t, rec.Callees)

	r2 := addCaller(p, "caller", "main")
	rec, graphs, err = AnalyzeRegion(Region{Name: "caller", Kind: RegionFunction, Blocks: r2.Blocks}, nil)
	require.Error(t, err)
	assert.Nil(t, graphs)
	assert.Equal(t, 1, rec.Calls)
	assert.Equal(t, err.Error(), rec.Error)
}
