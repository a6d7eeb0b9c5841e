// Package ir is the materialized operation stream consumed by the graph builder:
// routines made of basic blocks holding typed operations, plus loop nesting.
package ir

import (
	"fmt"
	"math/big"
)

// Kind is the closed set of operation kinds the engine dispatches on.
type Kind int

const (
	KindInvalid Kind = iota
	KindArith
	KindCompare
	KindLoad
	KindStore
	KindAlloca
	KindBranch
	KindReturn
	KindCall
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindArith:   "arith",
	KindCompare: "compare",
	KindLoad:    "load",
	KindStore:   "store",
	KindAlloca:  "alloca",
	KindBranch:  "branch",
	KindReturn:  "return",
	KindCall:    "call",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a kind name back to its Kind. Unknown names yield KindInvalid.
func ParseKind(s string) Kind {
	for k, name := range kindNames {
		if name == s {
			return Kind(k)
		}
	}
	return KindInvalid
}

type TypeKind int

const (
	TypeVoid TypeKind = iota
	TypeInt
	TypeFloat
	TypePointer
	TypeOther
)

// Type is the declared type of a value. Bits is meaningful for Int and Float.
type Type struct {
	Kind TypeKind
	Bits int
}

var (
	Void = Type{Kind: TypeVoid}
	I1   = Type{Kind: TypeInt, Bits: 1}
	I32  = Type{Kind: TypeInt, Bits: 32}
	I64  = Type{Kind: TypeInt, Bits: 64}
	F64  = Type{Kind: TypeFloat, Bits: 64}
	Ptr  = Type{Kind: TypePointer, Bits: 64}
)

func (t Type) IsPointer() bool { return t.Kind == TypePointer }

func (t Type) String() string {
	switch t.Kind {
	case TypeVoid:
		return "void"
	case TypeInt:
		return fmt.Sprintf("i%d", t.Bits)
	case TypeFloat:
		return fmt.Sprintf("f%d", t.Bits)
	case TypePointer:
		return "ptr"
	default:
		return "other"
	}
}

// Constant is a literal operand. Int is nil for floating point literals.
type Constant struct {
	Int   *big.Int
	Float float64
}

// Value is anything an operation can reference: a parameter, a global, a
// constant, or the result of another operation (Def != nil).
type Value struct {
	ID    int
	Name  string
	Type  Type
	Const *Constant
	Def   *Operation
}

func (v *Value) IsConst() bool { return v != nil && v.Const != nil }

// IsComputed reports whether v is produced by an operation the builder must walk.
// Allocation results are addresses, not computations.
func (v *Value) IsComputed() bool {
	return v != nil && v.Def != nil && v.Def.Kind != KindAlloca
}

func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	if v.Name != "" {
		return v.Name
	}
	if v.Const != nil && v.Const.Int != nil {
		return v.Const.Int.String()
	}
	return fmt.Sprintf("v%d", v.ID)
}

// Operation is one typed unit of work. For KindLoad Operands[0] is the address;
// for KindStore Operands[0] is the stored value and Operands[1] the address.
type Operation struct {
	ID       int
	Kind     Kind
	Opcode   string
	Operands []*Value
	Result   *Value
	Callee   string
}

func (op *Operation) HasResult() bool {
	return op.Result != nil && op.Result.Type.Kind != TypeVoid
}

func (op *Operation) String() string {
	if op.HasResult() {
		return fmt.Sprintf("%s = %s %v", op.Result, op.Opcode, op.Operands)
	}
	return fmt.Sprintf("%s %v", op.Opcode, op.Operands)
}

type Block struct {
	Label string
	Ops   []*Operation
}

// Loop groups the blocks of a natural loop. Blocks includes the blocks of sub-loops.
type Loop struct {
	Name     string
	Blocks   []*Block
	SubLoops []*Loop
}

type Routine struct {
	Name     string
	Params   []*Value
	Blocks   []*Block
	Loops    []*Loop
	External bool
}

// Callees returns the names of called routines in first-appearance order.
func (r *Routine) Callees() []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range r.Blocks {
		for _, op := range b.Ops {
			if op.Kind != KindCall || op.Callee == "" || seen[op.Callee] {
				continue
			}
			seen[op.Callee] = true
			out = append(out, op.Callee)
		}
	}
	return out
}

// OpCount returns the number of operations across all blocks.
func (r *Routine) OpCount() int {
	n := 0
	for _, b := range r.Blocks {
		n += len(b.Ops)
	}
	return n
}

type Program struct {
	Name     string
	Globals  []*Value
	Routines []*Routine

	nextID int
}

func NewProgram(name string) *Program {
	return &Program{Name: name}
}

// Routine returns the routine with the given name, or nil.
func (p *Program) Routine(name string) *Routine {
	for _, r := range p.Routines {
		if r.Name == name {
			return r
		}
	}
	return nil
}

func (p *Program) id() int {
	p.nextID++
	return p.nextID
}
