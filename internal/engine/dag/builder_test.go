package dag

import (
	"math/big"
	"strings"
	"testing"

	"dagestimator/internal/engine/ir"
)

// scenarioA: load x -> t1, load y -> t2, add t1 t2 -> t3, store t3 -> z.
func scenarioA() (*ir.Program, *ir.Routine) {
	p := ir.NewProgram("scenario-a")
	r := p.NewRoutine("main")
	x := p.Param(r, "x", ir.Ptr)
	y := p.Param(r, "y", ir.Ptr)
	z := p.Param(r, "z", ir.Ptr)
	b := p.NewBlock(r, "entry")
	t1 := b.Load("t1", ir.I32, x)
	t2 := b.Load("t2", ir.I32, y)
	t3 := b.Arith("add", "t3", ir.I32, t1, t2)
	b.Store(t3, z)
	b.Return()
	return p, r
}

func build(t *testing.T, r *ir.Routine, lookup CalleeLookup) *DAG {
	t.Helper()
	b := NewBuilder(lookup)
	b.Init()
	for _, blk := range r.Blocks {
		for _, op := range blk.Ops {
			b.Add(op)
		}
	}
	return b.Lock()
}

func findNode(d *DAG, kind NodeKind, name string) *Node {
	for _, n := range d.Nodes() {
		if n.Kind == kind && n.Name == name {
			return n
		}
	}
	return nil
}

func TestBuilder_ScenarioA(t *testing.T) {
	_, r := scenarioA()
	d := build(t, r, nil)

	if d.State() != StateLocked {
		t.Fatalf("expected locked DAG, got %s", d.State())
	}
	if d.Len() != 10 {
		t.Errorf("expected 10 nodes, got %d", d.Len())
	}
	if d.EdgeCount() != 9 {
		t.Errorf("expected 9 edges, got %d", d.EdgeCount())
	}

	z := findNode(d, KindValue, "z")
	if z == nil {
		t.Fatal("expected a value node for z")
	}
	store := findNode(d, KindOperator, "store(t3 to z)")
	if store == nil {
		t.Fatal("expected store operator named store(t3 to z)")
	}
	if !z.HasSuccessor(store.ID) {
		t.Error("expected z -> store edge")
	}
	if store.Target != z.ID {
		t.Error("expected store target to be z")
	}

	t3 := findNode(d, KindValue, "t3")
	if !store.HasSuccessor(t3.ID) {
		t.Error("expected store -> t3 edge")
	}
	add := d.Node(t3.Pair)
	if add.Kind != KindOperator || add.Opcode != "add" {
		t.Fatalf("expected t3 to pair with the add operator, got %+v", add)
	}
	if len(add.Successors()) != 2 {
		t.Errorf("expected add to use two operands, got %d", len(add.Successors()))
	}

	x := findNode(d, KindValue, "x")
	load := d.Node(findNode(d, KindValue, "t1").Pair)
	if load.Target != x.ID || !load.HasSuccessor(x.ID) {
		t.Error("expected load of t1 to link to x")
	}
	if preds := x.Predecessors(); len(preds) != 1 || preds[0] != load.ID {
		t.Errorf("expected x to be used only by its load, got %v", preds)
	}
}

func TestBuilder_Deterministic(t *testing.T) {
	_, r1 := scenarioA()
	_, r2 := scenarioA()
	a := build(t, r1, nil)
	b := build(t, r2, nil)

	if a.Len() != b.Len() || a.EdgeCount() != b.EdgeCount() {
		t.Fatalf("expected identical shapes, got %d/%d vs %d/%d", a.Len(), a.EdgeCount(), b.Len(), b.EdgeCount())
	}
	for i, n := range a.Nodes() {
		m := b.Node(NodeID(i))
		if n.Label() != m.Label() || n.Kind != m.Kind {
			t.Fatalf("node %d differs: %q vs %q", i, n.Label(), m.Label())
		}
		ns, ms := n.Successors(), m.Successors()
		if len(ns) != len(ms) {
			t.Fatalf("node %d successor count differs", i)
		}
		for j := range ns {
			if ns[j] != ms[j] {
				t.Fatalf("node %d successor order differs", i)
			}
		}
	}
}

func TestBuilder_IdempotentAdd(t *testing.T) {
	_, r := scenarioA()
	b := NewBuilder(nil)
	b.Init()
	for _, op := range r.Blocks[0].Ops {
		b.Add(op)
	}
	nodes, edges := b.dag.Len(), b.dag.EdgeCount()
	for _, op := range r.Blocks[0].Ops {
		b.Add(op)
	}
	if b.dag.Len() != nodes || b.dag.EdgeCount() != edges {
		t.Fatalf("re-adding grew the graph: %d/%d -> %d/%d", nodes, edges, b.dag.Len(), b.dag.EdgeCount())
	}
}

func TestBuilder_SkippedKinds(t *testing.T) {
	p := ir.NewProgram("skips")
	r := p.NewRoutine("main")
	b := p.NewBlock(r, "entry")
	slot := b.Alloca("slot")
	cond := b.Compare("icmp", "c", p.Int(1, 32), p.Int(2, 32))
	br := b.Branch(cond)
	ret := b.Return()

	builder := NewBuilder(nil)
	builder.Init()
	for _, op := range []*ir.Operation{slot.Def, cond.Def, br, ret, {ID: 999, Kind: ir.KindInvalid}} {
		if builder.Add(op) {
			t.Errorf("expected %s to be skipped", op.Kind)
		}
	}
	if builder.dag.Len() != 0 {
		t.Errorf("expected empty DAG, got %d nodes", builder.dag.Len())
	}
}

func TestBuilder_NestedCompareIsKept(t *testing.T) {
	p := ir.NewProgram("cmp")
	r := p.NewRoutine("main")
	dst := p.Param(r, "dst", ir.Ptr)
	b := p.NewBlock(r, "entry")
	c := b.Compare("icmp", "c", p.Int(1, 32), p.Int(2, 32))
	ext := b.Arith("zext", "e", ir.I32, c)
	b.Store(ext, dst)

	d := build(t, r, nil)
	cmp := findNode(d, KindOperator, "c")
	if cmp == nil || cmp.Op != ir.KindCompare {
		t.Fatal("expected comparison used as an operand to be in the DAG")
	}
}

func TestBuilder_ConstantNaming(t *testing.T) {
	p := ir.NewProgram("consts")
	r := p.NewRoutine("main")
	a := p.Param(r, "a", ir.Ptr)
	b := p.NewBlock(r, "entry")

	wide := new(big.Int).Lsh(big.NewInt(1), 100)
	b.Store(p.Int(42, 32), a)
	b.Store(p.Int(-1, 8), a)
	b.Store(p.Int(255, 8), a)
	b.Store(p.BigInt(wide, 128), a)
	b.Store(p.Float(1.5, 64), a)

	d := build(t, r, nil)
	for _, name := range []string{"store(42 to a)", "store(-1 to a)", "store( to a)"} {
		if findNode(d, KindOperator, name) == nil {
			t.Errorf("expected operator %q", name)
		}
	}
	if findNode(d, KindValue, "255") != nil {
		t.Error("expected 8-bit 255 to be sign-extended to -1")
	}

	unnamed := 0
	for _, n := range d.Nodes() {
		if n.Kind == KindValue && n.Name == "" {
			unnamed++
		}
	}
	if unnamed != 2 {
		t.Errorf("expected the wide and float constants as two distinct unnamed leaves, got %d", unnamed)
	}
}

func TestBuilder_SynthesizedNamesAreStable(t *testing.T) {
	p := ir.NewProgram("anon")
	r := p.NewRoutine("main")
	out := p.Param(r, "out", ir.Ptr)
	in := p.Param(r, "in", ir.Ptr)
	b := p.NewBlock(r, "entry")
	v := b.Load("", ir.I32, in)
	w := b.Arith("mul", "", ir.I32, v, v)
	b.Store(w, out)
	b.Store(v, out)

	d := build(t, r, nil)
	if findNode(d, KindOperator, "store(tmp2 to out)") == nil {
		t.Error("expected the product to be named tmp2")
	}
	if findNode(d, KindOperator, "store(tmp1 to out)") == nil {
		t.Error("expected the load result to keep its synthesized name tmp1")
	}
	mul := d.Node(findNode(d, KindValue, "tmp2").Pair)
	if len(mul.Successors()) != 1 {
		t.Errorf("expected v*v to link the same operand once, got %d edges", len(mul.Successors()))
	}

	// A fresh Init restarts the counter.
	again := build(t, r, nil)
	if findNode(again, KindValue, "tmp1") == nil {
		t.Error("expected counter reset on Init")
	}
}

func TestBuilder_CallSite(t *testing.T) {
	p := ir.NewProgram("calls")
	r := p.NewRoutine("main")
	z := p.Param(r, "z", ir.Ptr)
	b := p.NewBlock(r, "entry")
	call, _ := b.Call("helper", "", ir.Void)
	b.Store(p.Int(1, 32), z)

	lookups := 0
	lookup := LookupFunc(func(callee string) (CallSummary, bool) {
		lookups++
		if callee != "helper" {
			return CallSummary{}, false
		}
		return CallSummary{Width: 3, Depth: 2, Reads: 4, Writes: 1}, true
	})

	builder := NewBuilder(lookup)
	builder.Init()
	for _, op := range r.Blocks[0].Ops {
		builder.Add(op)
	}
	builder.Add(call)
	d := builder.Lock()

	sites := d.CallSites()
	if len(sites) != 1 {
		t.Fatalf("expected one call site, got %d", len(sites))
	}
	site := sites[0]
	if site.Call.Width != 3 || site.Call.Depth != 2 || site.Call.Reads != 4 || site.Call.Writes != 1 {
		t.Errorf("unexpected annotations %+v", site.Call)
	}
	if len(site.Successors()) != 0 || len(site.Predecessors()) != 0 {
		t.Error("call site must float free of the computation")
	}
	if lookups != 1 {
		t.Errorf("expected one lookup, got %d", lookups)
	}
}

func TestBuilder_CallWithResultIsComputed(t *testing.T) {
	p := ir.NewProgram("calls")
	r := p.NewRoutine("main")
	z := p.Param(r, "z", ir.Ptr)
	in := p.Param(r, "in", ir.Ptr)
	b := p.NewBlock(r, "entry")
	arg := b.Load("a", ir.I32, in)
	_, res := b.Call("square", "s", ir.I32, arg)
	b.Store(res, z)

	d := build(t, r, nil)
	call := d.Node(findNode(d, KindValue, "s").Pair)
	if call.Opcode != "call square" {
		t.Errorf("expected call operator, got %q", call.Opcode)
	}
	if len(d.CallSites()) != 0 {
		t.Error("calls with results must not create call sites")
	}
}

func TestBuilder_ContractViolations(t *testing.T) {
	_, r := scenarioA()
	op := r.Blocks[0].Ops[0]

	cases := []struct {
		name string
		run  func()
		want string
	}{
		{
			name: "AddBeforeInit",
			run:  func() { NewBuilder(nil).Add(op) },
			want: "before Init",
		},
		{
			name: "AddAfterLock",
			run: func() {
				b := NewBuilder(nil)
				b.Init()
				b.Lock()
				b.Add(op)
			},
			want: "locked",
		},
		{
			name: "RetrieveBeforeLock",
			run: func() {
				b := NewBuilder(nil)
				b.Init()
				b.DAG()
			},
			want: "before lock",
		},
		{
			name: "MissingCallee",
			run: func() {
				b := NewBuilder(LookupFunc(func(string) (CallSummary, bool) { return CallSummary{}, false }))
				b.Init()
				b.Add(&ir.Operation{ID: 1, Kind: ir.KindCall, Opcode: "call", Callee: "ghost"})
			},
			want: "ghost",
		},
		{
			name: "StoreDefinedOperand",
			run: func() {
				p := ir.NewProgram("bad")
				rt := p.NewRoutine("main")
				bb := p.NewBlock(rt, "entry")
				st := bb.Store(p.Int(1, 32), p.Param(rt, "a", ir.Ptr))
				bogus := &ir.Value{ID: 77, Name: "bogus", Type: ir.I32, Def: st}
				bb.Arith("add", "s", ir.I32, bogus, bogus)
				b := NewBuilder(nil)
				b.Init()
				b.Add(bb.Block.Ops[1])
			},
			want: "store",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("expected panic")
				}
				if msg, _ := r.(string); !strings.Contains(msg, tc.want) {
					t.Fatalf("panic %q does not mention %q", msg, tc.want)
				}
			}()
			tc.run()
		})
	}
}

func TestDAG_MarkReduced(t *testing.T) {
	_, r := scenarioA()
	d := build(t, r, nil)
	d.MarkReduced()
	if d.State() != StateReduced {
		t.Fatalf("expected reduced state, got %s", d.State())
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected second reduction to panic")
		}
	}()
	d.MarkReduced()
}
