package ir

import (
	"math/big"
)

// NewGlobal declares a program-level addressable value.
func (p *Program) NewGlobal(name string) *Value {
	v := &Value{ID: p.id(), Name: name, Type: Ptr}
	p.Globals = append(p.Globals, v)
	return v
}

// NewRoutine appends an empty routine to the program.
func (p *Program) NewRoutine(name string) *Routine {
	r := &Routine{Name: name}
	p.Routines = append(p.Routines, r)
	return r
}

// Param declares a routine parameter.
func (p *Program) Param(r *Routine, name string, t Type) *Value {
	v := &Value{ID: p.id(), Name: name, Type: t}
	r.Params = append(r.Params, v)
	return v
}

// Int returns an integer constant of the given bit width.
func (p *Program) Int(x int64, bits int) *Value {
	return p.BigInt(big.NewInt(x), bits)
}

func (p *Program) BigInt(x *big.Int, bits int) *Value {
	return &Value{ID: p.id(), Type: Type{Kind: TypeInt, Bits: bits}, Const: &Constant{Int: new(big.Int).Set(x)}}
}

func (p *Program) Float(x float64, bits int) *Value {
	return &Value{ID: p.id(), Type: Type{Kind: TypeFloat, Bits: bits}, Const: &Constant{Float: x}}
}

// BlockBuilder appends operations to one block, allocating program-wide ids.
type BlockBuilder struct {
	prog  *Program
	Block *Block
}

// NewBlock appends a block to r and returns a builder for it.
func (p *Program) NewBlock(r *Routine, label string) *BlockBuilder {
	b := &Block{Label: label}
	r.Blocks = append(r.Blocks, b)
	return &BlockBuilder{prog: p, Block: b}
}

func (b *BlockBuilder) emit(kind Kind, opcode string, result *Value, operands ...*Value) *Operation {
	op := &Operation{ID: b.prog.id(), Kind: kind, Opcode: opcode, Operands: operands}
	if result != nil {
		result.Def = op
		op.Result = result
	}
	b.Block.Ops = append(b.Block.Ops, op)
	return op
}

func (b *BlockBuilder) result(name string, t Type) *Value {
	return &Value{ID: b.prog.id(), Name: name, Type: t}
}

func (b *BlockBuilder) Alloca(name string) *Value {
	v := b.result(name, Ptr)
	b.emit(KindAlloca, "alloca", v)
	return v
}

func (b *BlockBuilder) Load(name string, t Type, addr *Value) *Value {
	v := b.result(name, t)
	b.emit(KindLoad, "load", v, addr)
	return v
}

func (b *BlockBuilder) Store(val, addr *Value) *Operation {
	return b.emit(KindStore, "store", nil, val, addr)
}

func (b *BlockBuilder) Arith(opcode, name string, t Type, operands ...*Value) *Value {
	v := b.result(name, t)
	b.emit(KindArith, opcode, v, operands...)
	return v
}

func (b *BlockBuilder) Compare(opcode, name string, lhs, rhs *Value) *Value {
	v := b.result(name, I1)
	b.emit(KindCompare, opcode, v, lhs, rhs)
	return v
}

// Call emits a call. A Void result type produces a call without a result value.
func (b *BlockBuilder) Call(callee, name string, t Type, args ...*Value) (*Operation, *Value) {
	var v *Value
	if t.Kind != TypeVoid {
		v = b.result(name, t)
	}
	op := b.emit(KindCall, "call", v, args...)
	op.Callee = callee
	return op, v
}

func (b *BlockBuilder) Branch(cond ...*Value) *Operation {
	return b.emit(KindBranch, "br", nil, cond...)
}

func (b *BlockBuilder) Return(vals ...*Value) *Operation {
	return b.emit(KindReturn, "ret", nil, vals...)
}

// Opaque returns a named value with no defining operation, such as a function
// reference or a string literal.
func (p *Program) Opaque(name string, t Type) *Value {
	return &Value{ID: p.id(), Name: name, Type: t}
}

// DeclareExternals appends an external routine for every callee that no
// routine of p defines, in first-call order.
func (p *Program) DeclareExternals() {
	known := make(map[string]bool, len(p.Routines))
	for _, r := range p.Routines {
		known[r.Name] = true
	}
	for _, r := range p.Routines {
		for _, callee := range r.Callees() {
			if !known[callee] {
				known[callee] = true
				p.NewRoutine(callee).External = true
			}
		}
	}
}
