// Package irjson decodes a JSON operation stream into an ir.Program.
//
// Operands are strings naming a parameter, a global or the result of an
// earlier operation in the same routine, or literals such as "5", "5:i128"
// and "1.5:f64". Parameters and globals are pointers unless typed with a
// ":type" suffix.
package irjson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"strconv"
	"strings"

	"dagestimator/internal/core/errors"
	"dagestimator/internal/engine/ir"
)

type document struct {
	Name     string        `json:"name"`
	Globals  []string      `json:"globals"`
	Routines []routineSpec `json:"routines"`
}

type routineSpec struct {
	Name     string      `json:"name"`
	Params   []string    `json:"params"`
	External bool        `json:"external"`
	Blocks   []blockSpec `json:"blocks"`
	Loops    []loopSpec  `json:"loops"`
}

type blockSpec struct {
	Label string   `json:"label"`
	Ops   []opSpec `json:"ops"`
}

type opSpec struct {
	Op       string   `json:"op"`
	Opcode   string   `json:"opcode"`
	Result   string   `json:"result"`
	Type     string   `json:"type"`
	Operands []string `json:"operands"`
	Callee   string   `json:"callee"`
}

type loopSpec struct {
	Name     string     `json:"name"`
	Blocks   []string   `json:"blocks"`
	SubLoops []loopSpec `json:"subloops"`
}

// Frontend reads operation streams from files.
type Frontend struct{}

func (Frontend) Name() string { return "json" }

func (Frontend) Load(ctx context.Context, path string) (*ir.Program, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "cannot open operation stream"), errors.CtxPath, path)
	}
	defer f.Close()
	prog, err := Decode(f)
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return prog, nil
}

// Decode reads one JSON document from r.
func Decode(r io.Reader) (*ir.Program, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "malformed operation stream")
	}
	return build(&doc)
}

func invalid(loc, format string, args ...interface{}) error {
	return errors.AddContext(errors.New(errors.CodeValidationError, fmt.Sprintf(format, args...)), errors.CtxOperation, loc)
}

func fail(format string, args ...interface{}) error {
	return errors.New(errors.CodeValidationError, fmt.Sprintf(format, args...))
}

func build(doc *document) (*ir.Program, error) {
	name := doc.Name
	if name == "" {
		name = "module"
	}
	prog := ir.NewProgram(name)

	globals := make(map[string]*ir.Value, len(doc.Globals))
	for i, g := range doc.Globals {
		gname, t, err := splitTyped(g)
		if err != nil {
			return nil, invalid(fmt.Sprintf("globals[%d]", i), "%v", err)
		}
		if !t.IsPointer() {
			return nil, invalid(fmt.Sprintf("globals[%d]", i), "global %q must be a pointer", gname)
		}
		if _, dup := globals[gname]; dup {
			return nil, invalid(fmt.Sprintf("globals[%d]", i), "duplicate global %q", gname)
		}
		globals[gname] = prog.NewGlobal(gname)
	}

	seen := make(map[string]bool, len(doc.Routines))
	for i := range doc.Routines {
		rs := &doc.Routines[i]
		loc := fmt.Sprintf("routines[%d]", i)
		if rs.Name == "" {
			return nil, invalid(loc, "routine without a name")
		}
		if seen[rs.Name] {
			return nil, invalid(loc, "duplicate routine %q", rs.Name)
		}
		seen[rs.Name] = true
		if err := buildRoutine(prog, globals, rs, loc); err != nil {
			return nil, errors.AddContext(err, errors.CtxRoutine, rs.Name)
		}
	}

	prog.DeclareExternals()
	return prog, nil
}

type scope struct {
	prog    *ir.Program
	globals map[string]*ir.Value
	locals  map[string]*ir.Value
}

func buildRoutine(prog *ir.Program, globals map[string]*ir.Value, rs *routineSpec, loc string) error {
	r := prog.NewRoutine(rs.Name)
	r.External = rs.External
	if rs.External && len(rs.Blocks) > 0 {
		return invalid(loc, "external routine %q has blocks", rs.Name)
	}

	sc := &scope{prog: prog, globals: globals, locals: make(map[string]*ir.Value)}
	for j, p := range rs.Params {
		pname, t, err := splitTyped(p)
		if err != nil {
			return invalid(fmt.Sprintf("%s.params[%d]", loc, j), "%v", err)
		}
		if err := sc.define(pname, prog.Param(r, pname, t)); err != nil {
			return invalid(fmt.Sprintf("%s.params[%d]", loc, j), "%v", err)
		}
	}

	labels := make(map[string]*ir.Block, len(rs.Blocks))
	for j := range rs.Blocks {
		bs := &rs.Blocks[j]
		bloc := fmt.Sprintf("%s.blocks[%d]", loc, j)
		label := bs.Label
		if label == "" {
			label = fmt.Sprintf("bb%d", j)
		}
		if _, dup := labels[label]; dup {
			return invalid(bloc, "duplicate block label %q", label)
		}
		bb := prog.NewBlock(r, label)
		labels[label] = bb.Block
		for k := range bs.Ops {
			if err := sc.emit(bb, &bs.Ops[k]); err != nil {
				return errors.AddContext(err, errors.CtxOperation, fmt.Sprintf("%s.ops[%d]", bloc, k))
			}
		}
	}

	for j := range rs.Loops {
		l, err := buildLoop(&rs.Loops[j], labels, fmt.Sprintf("%s.loops[%d]", loc, j))
		if err != nil {
			return err
		}
		r.Loops = append(r.Loops, l)
	}
	return nil
}

func buildLoop(ls *loopSpec, labels map[string]*ir.Block, loc string) (*ir.Loop, error) {
	if len(ls.Blocks) == 0 {
		return nil, invalid(loc, "loop without blocks")
	}
	l := &ir.Loop{Name: ls.Name}
	if l.Name == "" {
		l.Name = ls.Blocks[0]
	}
	for _, label := range ls.Blocks {
		b, ok := labels[label]
		if !ok {
			return nil, invalid(loc, "loop references unknown block %q", label)
		}
		l.Blocks = append(l.Blocks, b)
	}
	for j := range ls.SubLoops {
		sub, err := buildLoop(&ls.SubLoops[j], labels, fmt.Sprintf("%s.subloops[%d]", loc, j))
		if err != nil {
			return nil, err
		}
		l.SubLoops = append(l.SubLoops, sub)
	}
	return l, nil
}

func (sc *scope) define(name string, v *ir.Value) error {
	if name == "" {
		return nil
	}
	if _, dup := sc.locals[name]; dup {
		return fmt.Errorf("value %q defined twice", name)
	}
	sc.locals[name] = v
	return nil
}

func (sc *scope) operands(refs []string) ([]*ir.Value, error) {
	out := make([]*ir.Value, 0, len(refs))
	for _, ref := range refs {
		v, err := sc.resolve(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (sc *scope) resolve(ref string) (*ir.Value, error) {
	if v, ok := sc.locals[ref]; ok {
		return v, nil
	}
	if v, ok := sc.globals[ref]; ok {
		return v, nil
	}
	if v, ok := sc.literal(ref); ok {
		return v, nil
	}
	return nil, fail("undefined value %q", ref)
}

// literal parses "5", "-3:i8", "1.5" or "2.0:f32".
func (sc *scope) literal(ref string) (*ir.Value, bool) {
	text, suffix := ref, ""
	if i := strings.LastIndexByte(ref, ':'); i >= 0 {
		text, suffix = ref[:i], ref[i+1:]
	}
	if x, ok := new(big.Int).SetString(text, 10); ok {
		t := ir.I64
		if suffix != "" {
			var err error
			if t, err = ParseType(suffix); err != nil || t.Kind != ir.TypeInt {
				return nil, false
			}
		}
		return sc.prog.BigInt(x, t.Bits), true
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		t := ir.F64
		if suffix != "" {
			if t, err = ParseType(suffix); err != nil || t.Kind != ir.TypeFloat {
				return nil, false
			}
		}
		return sc.prog.Float(f, t.Bits), true
	}
	return nil, false
}

func (sc *scope) emit(bb *ir.BlockBuilder, op *opSpec) error {
	kind := ir.ParseKind(op.Op)
	if kind == ir.KindInvalid {
		return fail("unknown operation kind %q", op.Op)
	}
	args, err := sc.operands(op.Operands)
	if err != nil {
		return err
	}
	want := func(n int) error {
		if len(args) != n {
			return fail("%s takes %d operands, got %d", kind, n, len(args))
		}
		return nil
	}
	t, err := sc.resultType(kind, op.Type)
	if err != nil {
		return fail("%v", err)
	}

	var result *ir.Value
	switch kind {
	case ir.KindAlloca:
		if err := want(0); err != nil {
			return err
		}
		result = bb.Alloca(op.Result)
	case ir.KindLoad:
		if err := want(1); err != nil {
			return err
		}
		result = bb.Load(op.Result, t, args[0])
	case ir.KindStore:
		if err := want(2); err != nil {
			return err
		}
		bb.Store(args[0], args[1])
	case ir.KindArith:
		if op.Opcode == "" {
			return fail("arith without an opcode")
		}
		if len(args) == 0 || len(args) > 2 {
			return fail("arith takes 1 or 2 operands, got %d", len(args))
		}
		result = bb.Arith(op.Opcode, op.Result, t, args...)
	case ir.KindCompare:
		if err := want(2); err != nil {
			return err
		}
		opcode := op.Opcode
		if opcode == "" {
			opcode = "icmp"
		}
		result = bb.Compare(opcode, op.Result, args[0], args[1])
	case ir.KindCall:
		_, result = bb.Call(op.Callee, op.Result, t, args...)
	case ir.KindBranch:
		bb.Branch(args...)
	case ir.KindReturn:
		bb.Return(args...)
	}

	if result != nil {
		if err := sc.define(op.Result, result); err != nil {
			return fail("%v", err)
		}
	} else if op.Result != "" {
		return fail("%s produces no value to name %q", kind, op.Result)
	}
	return nil
}

func (sc *scope) resultType(kind ir.Kind, name string) (ir.Type, error) {
	if name != "" {
		t, err := ParseType(name)
		if err != nil {
			return t, err
		}
		switch kind {
		case ir.KindAlloca, ir.KindLoad, ir.KindArith, ir.KindCompare:
			if t.Kind == ir.TypeVoid {
				return t, fmt.Errorf("%s cannot produce a void value", kind)
			}
		}
		return t, nil
	}
	switch kind {
	case ir.KindAlloca:
		return ir.Ptr, nil
	case ir.KindCompare:
		return ir.I1, nil
	case ir.KindCall:
		return ir.Void, nil
	default:
		return ir.I64, nil
	}
}

// ParseType parses "void", "ptr", "iN", "fN" and "other".
func ParseType(s string) (ir.Type, error) {
	switch s {
	case "void":
		return ir.Void, nil
	case "ptr":
		return ir.Ptr, nil
	case "other":
		return ir.Type{Kind: ir.TypeOther}, nil
	}
	if len(s) > 1 && (s[0] == 'i' || s[0] == 'f') {
		bits, err := strconv.Atoi(s[1:])
		if err == nil && bits > 0 {
			if s[0] == 'i' {
				return ir.Type{Kind: ir.TypeInt, Bits: bits}, nil
			}
			return ir.Type{Kind: ir.TypeFloat, Bits: bits}, nil
		}
	}
	return ir.Type{}, fmt.Errorf("unknown type %q", s)
}

func splitTyped(s string) (string, ir.Type, error) {
	name, typ, ok := strings.Cut(s, ":")
	if name == "" {
		return "", ir.Type{}, fmt.Errorf("empty name in %q", s)
	}
	if !ok {
		return name, ir.Ptr, nil
	}
	t, err := ParseType(typ)
	return name, t, err
}
