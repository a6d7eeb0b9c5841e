package output

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagestimator/internal/engine/analysis"
	"dagestimator/internal/engine/ir"
)

// analyzed runs main -> leaf, where leaf computes *c = *a + *b in a block
// that is also its only loop.
func analyzed(t *testing.T) *analysis.Result {
	t.Helper()
	p := ir.NewProgram("prog")

	main := p.NewRoutine("main")
	x := p.Param(main, "x", ir.Ptr)
	mb := p.NewBlock(main, "entry")
	mb.Call("leaf", "", ir.Void, x)
	mb.Return()

	leaf := p.NewRoutine("leaf")
	a := p.Param(leaf, "a", ir.Ptr)
	b := p.Param(leaf, "b", ir.Ptr)
	c := p.Param(leaf, "c", ir.Ptr)
	body := p.NewBlock(leaf, "body")
	sum := body.Arith("add", "t3", ir.I32, body.Load("la", ir.I32, a), body.Load("lb", ir.I32, b))
	body.Store(sum, c)
	body.Return()
	leaf.Loops = []*ir.Loop{{Name: "for.body", Blocks: leaf.Blocks}}

	res, err := analysis.NewAnalyzer(analysis.Options{Loops: true, KeepGraphs: true}).Run(context.Background(), p)
	require.NoError(t, err)
	return res
}

func graphsFor(t *testing.T, res *analysis.Result, path string) *analysis.RegionGraphs {
	t.Helper()
	for _, g := range res.Graphs {
		if g.Path == path {
			return g
		}
	}
	t.Fatalf("no graphs for %s", path)
	return nil
}

func TestDOTGenerator(t *testing.T) {
	res := analyzed(t)
	gen := NewDOTGenerator()

	t.Run("reduced graph", func(t *testing.T) {
		dot, err := gen.GenerateGraph("leaf", graphsFor(t, res, "leaf").Graph)
		require.NoError(t, err)
		assert.Contains(t, dot, "digraph region {")
		assert.Contains(t, dot, `label="leaf";`)
		assert.Contains(t, dot, `v0 [label="c", fillcolor="mistyrose"`)
		assert.Contains(t, dot, `v1 [label="add t3", shape=ellipse`)
		assert.Contains(t, dot, "v0 -> v1;")
		assert.Contains(t, dot, "v1 -> v2;")
		assert.Contains(t, dot, "v1 -> v3;")
	})

	t.Run("dag with call site", func(t *testing.T) {
		dot, err := gen.GenerateDAG("main", graphsFor(t, res, "main").DAG)
		require.NoError(t, err)
		assert.Contains(t, dot, "shape=component")
		assert.Contains(t, dot, `call leaf\nw=2 d=2`)
	})

	t.Run("nil input", func(t *testing.T) {
		_, err := gen.GenerateDAG("x", nil)
		assert.Error(t, err)
		_, err = gen.GenerateGraph("x", nil)
		assert.Error(t, err)
	})
}

func TestMermaidGenerator(t *testing.T) {
	res := analyzed(t)
	gen := NewMermaidGenerator()

	out, err := gen.GenerateGraph("leaf/for.body", graphsFor(t, res, "leaf/for.body").Graph)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "---\ntitle: leaf/for.body\n---\nflowchart TB\n"))
	assert.Contains(t, out, `v1(["add t3"])`)
	assert.Contains(t, out, "v0 --> v1")
	assert.Contains(t, out, "class v0 rootNode;")

	dagOut, err := gen.GenerateDAG("main", graphsFor(t, res, "main").DAG)
	require.NoError(t, err)
	assert.Contains(t, dagOut, `[["call leaf<br/>w=2 d=2"]]`)
	assert.Contains(t, dagOut, "classDef callNode")
}

func TestSanitizeID(t *testing.T) {
	tests := map[string]string{
		"":                  "m",
		"main":              "main",
		"leaf/for.body":     "leaf_for_body",
		"9lives":            "m_9lives",
		"example.com/p.add": "example_com_p_add",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, SanitizeID(in))
		})
	}
}

func TestEscapeMermaidLabel(t *testing.T) {
	assert.Equal(t, "#lt;unnamed #3#gt; #quot;q#quot;", escapeMermaidLabel(`<unnamed #3> "q"`))
}

func TestGenerateJSON(t *testing.T) {
	res := analyzed(t)
	data, err := GenerateJSON(NewReport("run-1", "json", res))
	require.NoError(t, err)

	var doc struct {
		RunID  string `json:"run_id"`
		Module struct {
			Name     string `json:"name"`
			Width    int    `json:"width"`
			Routines []struct {
				Name     string   `json:"name"`
				Callees  []string `json:"callees"`
				SubLoops []struct {
					Name string `json:"name"`
					Kind string `json:"kind"`
				} `json:"sub_loops"`
			} `json:"routines"`
		} `json:"module"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "run-1", doc.RunID)
	assert.Equal(t, "prog", doc.Module.Name)
	assert.Equal(t, 2, doc.Module.Width)
	require.Len(t, doc.Module.Routines, 2)
	assert.Equal(t, []string{"leaf"}, doc.Module.Routines[0].Callees)
	require.Len(t, doc.Module.Routines[1].SubLoops, 1)
	assert.Equal(t, "loop", doc.Module.Routines[1].SubLoops[0].Kind)
}

func TestNewReportFailures(t *testing.T) {
	p := ir.NewProgram("prog")
	r := p.NewRoutine("bad")
	blk := p.NewBlock(r, "entry")
	blk.Call("missing", "", ir.Void)

	res, err := analysis.NewAnalyzer(analysis.Options{}).Run(context.Background(), p)
	require.NoError(t, err)
	report := NewReport("", "json", res)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "bad", report.Failures[0].Path)
	assert.Equal(t, "CONTRACT_VIOLATION", report.Failures[0].Code)
	assert.Contains(t, report.Failures[0].Error, "routine=bad")
}

func TestTSVGenerator(t *testing.T) {
	res := analyzed(t)
	tsv, err := NewTSVGenerator(res.Module).Generate()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(tsv), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "Path\tKind"))
	assert.Equal(t, "prog\tmodule\t7\t2\t2\t1\t1\t2\t2\tok", lines[1])
	assert.Equal(t, "leaf/for.body\tloop\t5\t1\t2\t1\t0\t2\t2\tok", lines[4])

	_, err = NewTSVGenerator(nil).Generate()
	assert.Error(t, err)
}

func TestRenderSummary(t *testing.T) {
	res := analyzed(t)
	out := RenderSummary(res)
	assert.Contains(t, out, "Program prog")
	assert.Contains(t, out, "REGION")
	assert.Contains(t, out, "for.body")
	assert.Contains(t, out, "2 routines analyzed, width 2, depth 2")

	assert.Empty(t, RenderSummary(nil))
}
