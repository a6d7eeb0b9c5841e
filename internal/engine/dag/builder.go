package dag

import (
	"fmt"
	"math/big"

	"dagestimator/internal/engine/ir"
)

// CalleeLookup returns the analysis of an already analyzed routine.
type CalleeLookup interface {
	Summary(callee string) (CallSummary, bool)
}

// LookupFunc adapts a function to CalleeLookup.
type LookupFunc func(callee string) (CallSummary, bool)

func (f LookupFunc) Summary(callee string) (CallSummary, bool) { return f(callee) }

const indirectCallName = "indirect call"

// Builder ingests the operations of one region into a DAG.
//
// Operations are deduplicated by identity and operand leaves by resolved
// name, so adding the same operation twice leaves the graph unchanged.
// Contract violations (adding after Lock, malformed operands, a callee with
// no analysis) panic.
type Builder struct {
	lookup CalleeLookup
	dag    *DAG

	ops     map[int]NodeID    // operation id -> operator or call-site node
	leaves  map[string]NodeID // leaf key -> value node
	names   map[int]string    // value id -> synthesized name
	counter int
}

func NewBuilder(lookup CalleeLookup) *Builder {
	return &Builder{lookup: lookup}
}

// Init starts a fresh DAG and resets name synthesis.
func (b *Builder) Init() {
	b.dag = &DAG{state: StateBuilding}
	b.ops = make(map[int]NodeID)
	b.leaves = make(map[string]NodeID)
	b.names = make(map[int]string)
	b.counter = 0
}

// Lock freezes the DAG and returns it.
func (b *Builder) Lock() *DAG {
	b.mustBuild("lock")
	b.dag.state = StateLocked
	return b.dag
}

// DAG returns the graph once it has been locked.
func (b *Builder) DAG() *DAG {
	if b.dag == nil || b.dag.state < StateLocked {
		panic("dag: graph retrieved before lock")
	}
	return b.dag
}

func (b *Builder) mustBuild(op string) {
	if b.dag == nil {
		panic(fmt.Sprintf("dag: %s before Init", op))
	}
	if b.dag.state != StateBuilding {
		panic(fmt.Sprintf("dag: %s on a %s graph", op, b.dag.state))
	}
}

// Add inserts op and reports whether it contributed to the graph. Branches,
// returns, allocations, control-only comparisons and invalid operations are
// skipped.
func (b *Builder) Add(op *ir.Operation) bool {
	b.mustBuild("add")
	if op == nil {
		panic("dag: nil operation")
	}
	switch op.Kind {
	case ir.KindStore:
		b.addStore(op)
	case ir.KindLoad, ir.KindArith:
		b.addComputed(op)
	case ir.KindCall:
		if op.HasResult() {
			b.addComputed(op)
		} else {
			b.addCallSite(op)
		}
	default:
		return false
	}
	return true
}

func (b *Builder) addStore(op *ir.Operation) {
	if _, ok := b.ops[op.ID]; ok {
		return
	}
	if len(op.Operands) != 2 || op.Operands[0] == nil || op.Operands[1] == nil {
		panic(fmt.Sprintf("dag: store %d needs a value and an address", op.ID))
	}
	val, addr := op.Operands[0], op.Operands[1]

	target := b.addressNode(addr)
	store := b.dag.newNode(KindOperator)
	store.Op = ir.KindStore
	store.Opcode = "store"
	store.Name = fmt.Sprintf("store(%s to %s)", b.nameOf(val), b.dag.nodes[target].Name)
	store.Target = target
	b.ops[op.ID] = store.ID

	b.dag.link(target, store.ID)
	b.addOperand(val, store.ID)
}

// addComputed returns the value node of op, creating the value/operator pair
// and walking its operands on first sight.
func (b *Builder) addComputed(op *ir.Operation) NodeID {
	if id, ok := b.ops[op.ID]; ok {
		return b.dag.nodes[id].Pair
	}
	if !op.HasResult() {
		panic(fmt.Sprintf("dag: %s operation %d produces no value", op.Kind, op.ID))
	}

	val := b.dag.newNode(KindValue)
	val.Name = b.nameOf(op.Result)
	val.Type = op.Result.Type

	opr := b.dag.newNode(KindOperator)
	opr.Name = val.Name
	opr.Op = op.Kind
	opr.Opcode = op.Opcode
	if op.Kind == ir.KindCall {
		opr.Opcode = "call " + op.Callee
	}

	val.Pair, opr.Pair = opr.ID, val.ID
	b.ops[op.ID] = opr.ID
	b.dag.link(val.ID, opr.ID)

	switch op.Kind {
	case ir.KindLoad:
		if len(op.Operands) != 1 || op.Operands[0] == nil {
			panic(fmt.Sprintf("dag: load %d needs exactly one address", op.ID))
		}
		opr.Target = b.addressNode(op.Operands[0])
		b.dag.link(opr.ID, opr.Target)
	case ir.KindCall:
		for _, arg := range op.Operands {
			b.addOperand(arg, opr.ID)
		}
	default:
		if n := len(op.Operands); n < 1 || n > 2 {
			panic(fmt.Sprintf("dag: %s %d has %d operands, want 1 or 2", op.Opcode, op.ID, n))
		}
		for _, v := range op.Operands {
			b.addOperand(v, opr.ID)
		}
	}
	return val.ID
}

func (b *Builder) addOperand(v *ir.Value, parent NodeID) {
	if v == nil {
		panic(fmt.Sprintf("dag: nil operand under %q", b.dag.nodes[parent].Name))
	}
	if v.IsComputed() {
		b.dag.link(parent, b.addComputed(b.checkDef(v)))
		return
	}
	b.dag.link(parent, b.leafNode(v))
}

// addressNode resolves the value node of a load or store address. Addresses
// computed by an operation outside the ingested set are treated as live-in
// and walked on demand.
func (b *Builder) addressNode(v *ir.Value) NodeID {
	if v.IsComputed() {
		return b.addComputed(b.checkDef(v))
	}
	return b.leafNode(v)
}

func (b *Builder) checkDef(v *ir.Value) *ir.Operation {
	switch v.Def.Kind {
	case ir.KindArith, ir.KindCompare, ir.KindLoad, ir.KindCall:
		return v.Def
	default:
		panic(fmt.Sprintf("dag: operand %s is defined by a %s operation", v, v.Def.Kind))
	}
}

func (b *Builder) leafNode(v *ir.Value) NodeID {
	name := b.nameOf(v)
	key := name
	if key == "" {
		key = fmt.Sprintf("#%d", v.ID)
	}
	if id, ok := b.leaves[key]; ok {
		return id
	}
	n := b.dag.newNode(KindValue)
	n.Name = name
	n.Type = v.Type
	b.leaves[key] = n.ID
	return n.ID
}

func (b *Builder) addCallSite(op *ir.Operation) {
	if _, ok := b.ops[op.ID]; ok {
		return
	}
	n := b.dag.newNode(KindCallSite)
	n.Opcode = "call"
	n.Op = ir.KindCall
	if op.Callee == "" {
		n.Name = indirectCallName
		n.Call = &CallSummary{Callee: indirectCallName}
	} else {
		if b.lookup == nil {
			panic(fmt.Sprintf("dag: call to %q with no callee lookup", op.Callee))
		}
		summary, ok := b.lookup.Summary(op.Callee)
		if !ok {
			panic(fmt.Sprintf("dag: no analysis available for callee %q", op.Callee))
		}
		summary.Callee = op.Callee
		n.Name = op.Callee
		n.Call = &summary
	}
	b.ops[op.ID] = n.ID
}

// nameOf resolves the display name of v. Names synthesized for anonymous
// values are remembered, so repeated calls return the same name.
func (b *Builder) nameOf(v *ir.Value) string {
	if v.Name != "" {
		return v.Name
	}
	if v.Const != nil {
		return constName(v)
	}
	if name, ok := b.names[v.ID]; ok {
		return name
	}
	b.counter++
	name := fmt.Sprintf("tmp%d", b.counter)
	b.names[v.ID] = name
	return name
}

// constName renders integer constants of at most 64 bits as their
// sign-extended decimal value. Wider integers and floats stay unnamed.
func constName(v *ir.Value) string {
	c := v.Const
	if c.Int == nil {
		return ""
	}
	bits := v.Type.Bits
	if bits <= 0 {
		bits = 64
	}
	if bits > 64 {
		return ""
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	x := new(big.Int).Mod(c.Int, mod)
	if x.Bit(bits-1) == 1 {
		x.Sub(x, mod)
	}
	return x.String()
}
