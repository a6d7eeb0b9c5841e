package gossa

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"math/big"
	"sort"
	"strings"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"dagestimator/internal/engine/ir"
)

// Lower converts every function with a body in pkgs into a routine. Callees
// outside the set, builtins included, become external routines.
func Lower(name string, pkgs []*ssa.Package) *ir.Program {
	out := ir.NewProgram(name)

	members := make(map[*ssa.Package]bool, len(pkgs))
	var sprog *ssa.Program
	for _, p := range pkgs {
		if p == nil {
			continue
		}
		members[p] = true
		sprog = p.Prog
	}
	if sprog == nil {
		return out
	}

	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(sprog) {
		if fn.Synthetic != "" || !members[fn.Package()] {
			continue
		}
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool {
		if fns[i].Pos() != fns[j].Pos() {
			return fns[i].Pos() < fns[j].Pos()
		}
		return fns[i].String() < fns[j].String()
	})

	globals := make(map[*ssa.Global]*ir.Value)
	for _, fn := range fns {
		if len(fn.Blocks) == 0 {
			out.NewRoutine(routineName(fn)).External = true
			continue
		}
		l := &lowerer{prog: out, globals: globals, values: make(map[ssa.Value]*ir.Value), used: make(map[string]bool)}
		l.routine(fn)
	}
	out.DeclareExternals()
	return out
}

func routineName(fn *ssa.Function) string {
	return fn.String()
}

// fixup is an operand whose definition had not been lowered yet.
type fixup struct {
	op    *ir.Operation
	index int
	v     ssa.Value
}

type lowerer struct {
	prog    *ir.Program
	globals map[*ssa.Global]*ir.Value
	values  map[ssa.Value]*ir.Value
	used    map[string]bool
	fixups  []fixup
	blocks  map[*ssa.BasicBlock]*ir.Block
}

func (l *lowerer) routine(fn *ssa.Function) {
	r := l.prog.NewRoutine(routineName(fn))
	for _, p := range fn.Params {
		l.values[p] = l.prog.Param(r, l.unique(p.Name()), irType(p.Type()))
	}
	for _, fv := range fn.FreeVars {
		l.values[fv] = l.prog.Param(r, l.unique(fv.Name()), irType(fv.Type()))
	}

	l.blocks = make(map[*ssa.BasicBlock]*ir.Block, len(fn.Blocks))
	for _, b := range fn.Blocks {
		bb := l.prog.NewBlock(r, blockLabel(b))
		l.blocks[b] = bb.Block
		for _, instr := range b.Instrs {
			l.instr(bb, instr)
		}
	}

	for _, f := range l.fixups {
		v, ok := l.values[f.v]
		if !ok {
			v = l.prog.Opaque(f.v.Name(), irType(f.v.Type()))
		}
		f.op.Operands[f.index] = v
	}
	r.Loops = l.loops(fn)
}

func blockLabel(b *ssa.BasicBlock) string {
	if b.Comment == "" {
		return fmt.Sprintf("b%d", b.Index)
	}
	return fmt.Sprintf("b%d.%s", b.Index, b.Comment)
}

// unique keeps leaf names distinct within one routine.
func (l *lowerer) unique(name string) string {
	candidate := name
	for i := 1; l.used[candidate]; i++ {
		candidate = fmt.Sprintf("%s.%d", name, i)
	}
	l.used[candidate] = true
	return candidate
}

// operands resolves vs. Values not lowered yet come back nil with the
// original recorded in pending at the same index.
func (l *lowerer) operands(vs ...ssa.Value) (resolved []*ir.Value, pending []ssa.Value) {
	resolved = make([]*ir.Value, len(vs))
	pending = make([]ssa.Value, len(vs))
	for i, v := range vs {
		if rv := l.value(v); rv != nil {
			resolved[i] = rv
		} else {
			pending[i] = v
		}
	}
	return resolved, pending
}

func (l *lowerer) later(op *ir.Operation, pending []ssa.Value) {
	for i, v := range pending {
		if v != nil {
			l.fixups = append(l.fixups, fixup{op: op, index: i, v: v})
		}
	}
}

func (l *lowerer) value(v ssa.Value) *ir.Value {
	if rv, ok := l.values[v]; ok {
		return rv
	}
	var rv *ir.Value
	switch v := v.(type) {
	case *ssa.Const:
		rv = l.constant(v)
	case *ssa.Global:
		g, ok := l.globals[v]
		if !ok {
			g = l.prog.NewGlobal(globalName(v))
			l.globals[v] = g
		}
		rv = g
	case *ssa.Function:
		rv = l.prog.Opaque(v.Name(), ir.Ptr)
	case *ssa.Builtin:
		rv = l.prog.Opaque(v.Name(), ir.Type{Kind: ir.TypeOther})
	default:
		return nil
	}
	l.values[v] = rv
	return rv
}

func globalName(g *ssa.Global) string {
	if g.Pkg != nil {
		return g.Pkg.Pkg.Name() + "." + g.Name()
	}
	return g.Name()
}

func (l *lowerer) constant(c *ssa.Const) *ir.Value {
	t := irType(c.Type())
	if c.Value == nil {
		return l.prog.Int(0, max(t.Bits, 1))
	}
	switch c.Value.Kind() {
	case constant.Bool:
		if constant.BoolVal(c.Value) {
			return l.prog.Int(1, 1)
		}
		return l.prog.Int(0, 1)
	case constant.Int:
		bits := t.Bits
		if t.Kind != ir.TypeInt {
			bits = 64
		}
		switch x := constant.Val(c.Value).(type) {
		case int64:
			return l.prog.Int(x, bits)
		case *big.Int:
			return l.prog.BigInt(x, bits)
		}
	case constant.Float:
		f, _ := constant.Float64Val(c.Value)
		bits := t.Bits
		if t.Kind != ir.TypeFloat {
			bits = 64
		}
		return l.prog.Float(f, bits)
	}
	return l.prog.Opaque(c.Value.ExactString(), t)
}

func (l *lowerer) instr(bb *ir.BlockBuilder, instr ssa.Instruction) {
	switch v := instr.(type) {
	case *ssa.Alloc:
		name := v.Name()
		if v.Comment != "" && !l.used[v.Comment] {
			name = v.Comment
		}
		l.values[v] = bb.Alloca(l.unique(name))
	case *ssa.Store:
		ops, pending := l.operands(v.Val, v.Addr)
		l.later(bb.Store(ops[0], ops[1]), pending)
	case *ssa.MapUpdate:
		ops, pending := l.operands(v.Value, v.Map)
		l.later(bb.Store(ops[0], ops[1]), pending)
	case *ssa.Send:
		ops, pending := l.operands(v.X, v.Chan)
		l.later(bb.Store(ops[0], ops[1]), pending)
	case *ssa.UnOp:
		l.unop(bb, v)
	case *ssa.BinOp:
		l.binop(bb, v)
	case *ssa.FieldAddr:
		ops, pending := l.operands(v.X)
		res := bb.Arith("fieldaddr", l.unique(v.Name()), ir.Ptr, ops[0], l.prog.Int(int64(v.Field), 32))
		l.bind(v, res, pending)
	case *ssa.IndexAddr:
		ops, pending := l.operands(v.X, v.Index)
		l.bind(v, bb.Arith("indexaddr", l.unique(v.Name()), ir.Ptr, ops...), pending)
	case *ssa.Call:
		l.call(bb, &v.Call, v)
	case *ssa.Go:
		l.call(bb, &v.Call, nil)
	case *ssa.Defer:
		l.call(bb, &v.Call, nil)
	case *ssa.Phi:
		l.phi(bb, v)
	case *ssa.If:
		ops, pending := l.operands(v.Cond)
		l.later(bb.Branch(ops...), pending)
	case *ssa.Jump:
		bb.Branch()
	case *ssa.Return:
		ops, pending := l.operands(v.Results...)
		l.later(bb.Return(ops...), pending)
	case *ssa.Panic:
		ops, pending := l.operands(v.X)
		l.later(bb.Return(ops...), pending)
	case *ssa.DebugRef, *ssa.RunDefers:
	case ssa.Value:
		l.generic(bb, v, instr)
	}
}

// bind records res as the lowering of v and schedules its pending operands.
func (l *lowerer) bind(v ssa.Value, res *ir.Value, pending []ssa.Value) {
	l.values[v] = res
	l.later(res.Def, pending)
}

var arithOps = map[token.Token]string{
	token.ADD:     "add",
	token.SUB:     "sub",
	token.MUL:     "mul",
	token.QUO:     "div",
	token.REM:     "rem",
	token.AND:     "and",
	token.OR:      "or",
	token.XOR:     "xor",
	token.SHL:     "shl",
	token.SHR:     "shr",
	token.AND_NOT: "andnot",
}

var compareOps = map[token.Token]string{
	token.EQL: "eq",
	token.NEQ: "ne",
	token.LSS: "lt",
	token.LEQ: "le",
	token.GTR: "gt",
	token.GEQ: "ge",
}

var unaryOps = map[token.Token]string{
	token.SUB:   "neg",
	token.NOT:   "not",
	token.XOR:   "xor",
	token.ARROW: "recv",
}

func (l *lowerer) unop(bb *ir.BlockBuilder, v *ssa.UnOp) {
	ops, pending := l.operands(v.X)
	name := l.unique(v.Name())
	if v.Op == token.MUL {
		l.bind(v, bb.Load(name, irType(v.Type()), ops[0]), pending)
		return
	}
	opcode, ok := unaryOps[v.Op]
	if !ok {
		opcode = v.Op.String()
	}
	l.bind(v, bb.Arith(opcode, name, irType(v.Type()), ops[0]), pending)
}

func (l *lowerer) binop(bb *ir.BlockBuilder, v *ssa.BinOp) {
	ops, pending := l.operands(v.X, v.Y)
	name := l.unique(v.Name())
	if opcode, ok := compareOps[v.Op]; ok {
		l.bind(v, bb.Compare(opcode, name, ops[0], ops[1]), pending)
		return
	}
	opcode, ok := arithOps[v.Op]
	if !ok {
		opcode = v.Op.String()
	}
	l.bind(v, bb.Arith(opcode, name, irType(v.Type()), ops[0], ops[1]), pending)
}

// call lowers calls, go and defer statements. result is nil for the latter
// two, which never produce a value.
func (l *lowerer) call(bb *ir.BlockBuilder, common *ssa.CallCommon, result *ssa.Call) {
	callee := ""
	switch {
	case common.IsInvoke():
	case common.StaticCallee() != nil:
		callee = routineName(common.StaticCallee())
	default:
		if b, ok := common.Value.(*ssa.Builtin); ok {
			callee = "builtin." + b.Name()
		}
	}

	args := common.Args
	if common.IsInvoke() {
		args = append([]ssa.Value{common.Value}, common.Args...)
	}
	ops, pending := l.operands(args...)

	t, name := ir.Void, ""
	if result != nil && common.Signature().Results().Len() > 0 {
		t, name = irType(result.Type()), l.unique(result.Name())
	}
	op, res := bb.Call(callee, name, t, ops...)
	l.later(op, pending)
	if res != nil {
		l.values[result] = res
	}
}

// phi keeps only edges that do not come around a loop back edge, so the
// lowered operands never depend on the phi itself. Edges past the second are
// folded into a chain of binary phis.
func (l *lowerer) phi(bb *ir.BlockBuilder, v *ssa.Phi) {
	var edges []ssa.Value
	for i, e := range v.Edges {
		if v.Block().Dominates(v.Block().Preds[i]) {
			continue
		}
		edges = append(edges, e)
	}
	if len(edges) == 0 && len(v.Edges) > 0 {
		edges = v.Edges[:1]
	}
	t := irType(v.Type())
	name := l.unique(v.Name())
	if len(edges) == 0 {
		l.values[v] = bb.Alloca(name)
		return
	}
	l.values[v] = l.fold(bb, "phi", name, t, edges)
}

// generic lowers any other value-producing instruction to an operation
// named after the instruction type over its value operands.
func (l *lowerer) generic(bb *ir.BlockBuilder, v ssa.Value, instr ssa.Instruction) {
	var vs []ssa.Value
	for _, p := range instr.Operands(nil) {
		if p != nil && *p != nil {
			vs = append(vs, *p)
		}
	}
	name := l.unique(v.Name())
	if len(vs) == 0 {
		l.values[v] = bb.Alloca(name)
		return
	}
	opcode := strings.ToLower(strings.TrimPrefix(fmt.Sprintf("%T", instr), "*ssa."))
	l.values[v] = l.fold(bb, opcode, name, irType(v.Type()), vs)
}

// fold emits opcode over vs as a left-leaning chain of operations with at
// most two operands each. Only the last operation carries name.
func (l *lowerer) fold(bb *ir.BlockBuilder, opcode, name string, t ir.Type, vs []ssa.Value) *ir.Value {
	ops, pending := l.operands(vs...)
	if len(ops) <= 2 {
		res := bb.Arith(opcode, name, t, ops...)
		l.later(res.Def, pending)
		return res
	}
	acc := bb.Arith(opcode, "", t, ops[0], ops[1])
	l.later(acc.Def, pending[:2])
	for i := 2; i < len(ops); i++ {
		step := ""
		if i == len(ops)-1 {
			step = name
		}
		acc = bb.Arith(opcode, step, t, acc, ops[i])
		if pending[i] != nil {
			l.fixups = append(l.fixups, fixup{op: acc.Def, index: 1, v: pending[i]})
		}
	}
	return acc
}

// irType maps Go types onto the operation stream's type lattice. Reference
// types count as pointers.
func irType(t types.Type) ir.Type {
	switch u := t.Underlying().(type) {
	case *types.Pointer, *types.Map, *types.Chan, *types.Signature:
		return ir.Ptr
	case *types.Basic:
		info := u.Info()
		switch {
		case u.Kind() == types.UnsafePointer || u.Kind() == types.UntypedNil:
			return ir.Ptr
		case info&types.IsBoolean != 0:
			return ir.I1
		case info&types.IsInteger != 0:
			return ir.Type{Kind: ir.TypeInt, Bits: intBits(u.Kind())}
		case info&types.IsFloat != 0:
			if u.Kind() == types.Float32 {
				return ir.Type{Kind: ir.TypeFloat, Bits: 32}
			}
			return ir.F64
		}
	}
	return ir.Type{Kind: ir.TypeOther}
}

func intBits(k types.BasicKind) int {
	switch k {
	case types.Int8, types.Uint8:
		return 8
	case types.Int16, types.Uint16:
		return 16
	case types.Int32, types.Uint32:
		return 32
	default:
		return 64
	}
}
