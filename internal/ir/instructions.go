package ir

import (
	"fmt"
	"strings"
)

// Instruction is a value with an operation kind, ordered operand slots, and a
// position inside a basic block. Operands returns pointers to the operand
// slots so that rewriting passes can redirect edges in place.
type Instruction interface {
	Value
	SetName(string)
	Operands() []*Value
	Parent() *BasicBlock
	setParent(*BasicBlock)
	IsTerminator() bool
	String() string
}

// Terminator is an instruction that ends a basic block.
type Terminator interface {
	Instruction
	Successors() []*BasicBlock
}

// local carries the result name and block membership shared by all
// instructions.
type local struct {
	Name  string
	block *BasicBlock
}

func (l *local) Ident() string           { return "%" + l.Name }
func (l *local) SetName(name string)     { l.Name = name }
func (l *local) Parent() *BasicBlock     { return l.block }
func (l *local) setParent(b *BasicBlock) { l.block = b }
func (l *local) IsTerminator() bool      { return false }

// operand prints a value reference the way the assembler accepts it.
func operand(v Value) string {
	return v.Ident()
}

// Alloca reserves stack storage for one value of the allocated type and
// yields a pointer to it.
type Alloca struct {
	local
	Allocated Type
	Addr      int
}

func (i *Alloca) Type() Type         { return &PointerType{AddrSpace: i.Addr} }
func (i *Alloca) Operands() []*Value { return nil }
func (i *Alloca) String() string {
	if i.Addr != 0 {
		return fmt.Sprintf("%s = alloca %s, addrspace(%d)", i.Ident(), i.Allocated, i.Addr)
	}
	return fmt.Sprintf("%s = alloca %s", i.Ident(), i.Allocated)
}

// Load reads a value of type Ty through a pointer.
type Load struct {
	local
	Ty  Type
	Ptr Value
}

func (i *Load) Type() Type         { return i.Ty }
func (i *Load) Operands() []*Value { return []*Value{&i.Ptr} }
func (i *Load) String() string {
	return fmt.Sprintf("%s = load %s, %s", i.Ident(), i.Ty, operand(i.Ptr))
}

// Store writes a value through a pointer. It has no result.
type Store struct {
	local
	Val Value
	Ptr Value
}

func (i *Store) Type() Type         { return Void }
func (i *Store) Operands() []*Value { return []*Value{&i.Val, &i.Ptr} }
func (i *Store) String() string {
	return fmt.Sprintf("store %s %s, %s", i.Val.Type(), operand(i.Val), operand(i.Ptr))
}

// AtomicRMW atomically combines the value at Ptr with Val and yields the old
// value.
type AtomicRMW struct {
	local
	Op  string // "add", "sub", "and", "or", "xor", "xchg"
	Ptr Value
	Val Value
}

func (i *AtomicRMW) Type() Type         { return i.Val.Type() }
func (i *AtomicRMW) Operands() []*Value { return []*Value{&i.Ptr, &i.Val} }
func (i *AtomicRMW) String() string {
	return fmt.Sprintf("%s = atomicrmw %s %s, %s %s", i.Ident(), i.Op, operand(i.Ptr), i.Val.Type(), operand(i.Val))
}

// CmpXchg atomically replaces the value at Ptr with New if it equals Cmp.
// Its result is the pair (old value, success flag).
type CmpXchg struct {
	local
	Ptr Value
	Cmp Value
	New Value
}

func (i *CmpXchg) Type() Type         { return &StructType{Fields: []Type{i.New.Type(), I1}} }
func (i *CmpXchg) Operands() []*Value { return []*Value{&i.Ptr, &i.Cmp, &i.New} }
func (i *CmpXchg) String() string {
	return fmt.Sprintf("%s = cmpxchg %s, %s %s, %s %s", i.Ident(), operand(i.Ptr),
		i.Cmp.Type(), operand(i.Cmp), i.New.Type(), operand(i.New))
}

// GEP computes the address of an element relative to a base pointer. Src is
// the declared type of the memory the base points at; Elem is the type of the
// memory the result points at.
type GEP struct {
	local
	Src     Type
	Elem    Type
	Ptr     Value
	Indices []Value
}

func (i *GEP) Type() Type { return &PointerType{AddrSpace: AddrSpace(i.Ptr.Type())} }
func (i *GEP) Operands() []*Value {
	ops := make([]*Value, 0, len(i.Indices)+1)
	ops = append(ops, &i.Ptr)
	for j := range i.Indices {
		ops = append(ops, &i.Indices[j])
	}
	return ops
}
func (i *GEP) String() string {
	parts := []string{i.Src.String(), operand(i.Ptr)}
	for _, idx := range i.Indices {
		parts = append(parts, operand(idx))
	}
	return fmt.Sprintf("%s = gep %s", i.Ident(), strings.Join(parts, ", "))
}

// BitCast reinterprets a value as another type of the same representation.
// A bitcast whose source and destination types are equal is the no-op marker
// the rewriter inserts for the legacy serializer.
type BitCast struct {
	local
	Val Value
	To  Type
}

func (i *BitCast) Type() Type         { return i.To }
func (i *BitCast) Operands() []*Value { return []*Value{&i.Val} }
func (i *BitCast) String() string {
	return fmt.Sprintf("%s = bitcast %s, %s", i.Ident(), operand(i.Val), i.To)
}

// AddrSpaceCast converts a pointer between address spaces.
type AddrSpaceCast struct {
	local
	Val Value
	To  Type
}

func (i *AddrSpaceCast) Type() Type         { return i.To }
func (i *AddrSpaceCast) Operands() []*Value { return []*Value{&i.Val} }
func (i *AddrSpaceCast) String() string {
	return fmt.Sprintf("%s = addrspacecast %s, %s", i.Ident(), operand(i.Val), i.To)
}

// IntToPtr converts an integer to a pointer.
type IntToPtr struct {
	local
	Val Value
	To  Type
}

func (i *IntToPtr) Type() Type         { return i.To }
func (i *IntToPtr) Operands() []*Value { return []*Value{&i.Val} }
func (i *IntToPtr) String() string {
	return fmt.Sprintf("%s = inttoptr %s, %s", i.Ident(), operand(i.Val), i.To)
}

// PtrToInt converts a pointer to an integer.
type PtrToInt struct {
	local
	Val Value
	To  Type
}

func (i *PtrToInt) Type() Type         { return i.To }
func (i *PtrToInt) Operands() []*Value { return []*Value{&i.Val} }
func (i *PtrToInt) String() string {
	return fmt.Sprintf("%s = ptrtoint %s, %s", i.Ident(), operand(i.Val), i.To)
}

// Select picks one of two values based on a boolean condition.
type Select struct {
	local
	Cond Value
	Then Value
	Else Value
}

func (i *Select) Type() Type         { return i.Then.Type() }
func (i *Select) Operands() []*Value { return []*Value{&i.Cond, &i.Then, &i.Else} }
func (i *Select) String() string {
	return fmt.Sprintf("%s = select %s, %s %s, %s", i.Ident(), operand(i.Cond),
		i.Then.Type(), operand(i.Then), operand(i.Else))
}

// PhiEdge is one incoming value of a phi node, tagged with the predecessor
// block it flows in from.
type PhiEdge struct {
	V    Value
	From *BasicBlock
}

// Phi merges values flowing in from predecessor blocks.
type Phi struct {
	local
	Ty       Type
	Incoming []PhiEdge
}

func (i *Phi) Type() Type { return i.Ty }
func (i *Phi) Operands() []*Value {
	ops := make([]*Value, len(i.Incoming))
	for j := range i.Incoming {
		ops[j] = &i.Incoming[j].V
	}
	return ops
}

// IncomingBlock returns the predecessor block of operand slot idx.
func (i *Phi) IncomingBlock(idx int) *BasicBlock {
	return i.Incoming[idx].From
}

func (i *Phi) String() string {
	edges := make([]string, len(i.Incoming))
	for j, e := range i.Incoming {
		edges[j] = fmt.Sprintf("[%s, %s]", operand(e.V), e.From.Name)
	}
	return fmt.Sprintf("%s = phi %s %s", i.Ident(), i.Ty, strings.Join(edges, ", "))
}

// Call invokes a callee with arguments. Args come first in the operand order
// so that an argument's operand index equals its parameter index; the callee
// occupies the final slot.
type Call struct {
	local
	Sig    *FuncType
	Args   []Value
	Callee Value
}

func (i *Call) Type() Type { return i.Sig.Return }
func (i *Call) Operands() []*Value {
	ops := make([]*Value, 0, len(i.Args)+1)
	for j := range i.Args {
		ops = append(ops, &i.Args[j])
	}
	ops = append(ops, &i.Callee)
	return ops
}
func (i *Call) String() string {
	args := make([]string, len(i.Args))
	for j, a := range i.Args {
		args[j] = fmt.Sprintf("%s %s", a.Type(), operand(a))
	}
	callsite := fmt.Sprintf("call %s %s(%s)", i.Sig.Return, operand(i.Callee), strings.Join(args, ", "))
	if Equal(i.Sig.Return, Void) || i.Name == "" {
		return callsite
	}
	return fmt.Sprintf("%s = %s", i.Ident(), callsite)
}

// BinOp is a two-operand arithmetic or bitwise operation.
type BinOp struct {
	local
	Op string // "add", "sub", "mul", "and", "or", "xor", "fadd", "fsub", "fmul"
	Ty Type
	X  Value
	Y  Value
}

func (i *BinOp) Type() Type         { return i.Ty }
func (i *BinOp) Operands() []*Value { return []*Value{&i.X, &i.Y} }
func (i *BinOp) String() string {
	return fmt.Sprintf("%s = %s %s %s, %s", i.Ident(), i.Op, i.Ty, operand(i.X), operand(i.Y))
}

// FNeg is the deprecated unary float negation. The legalizer rewrites it as a
// subtraction from negative zero before serialization.
type FNeg struct {
	local
	Val Value
}

func (i *FNeg) Type() Type         { return i.Val.Type() }
func (i *FNeg) Operands() []*Value { return []*Value{&i.Val} }
func (i *FNeg) String() string {
	return fmt.Sprintf("%s = fneg %s %s", i.Ident(), i.Val.Type(), operand(i.Val))
}

// Freeze stops the propagation of undefined values. The legacy formats do not
// know it; the legalizer replaces it with its operand.
type Freeze struct {
	local
	Val Value
}

func (i *Freeze) Type() Type         { return i.Val.Type() }
func (i *Freeze) Operands() []*Value { return []*Value{&i.Val} }
func (i *Freeze) String() string {
	return fmt.Sprintf("%s = freeze %s", i.Ident(), operand(i.Val))
}

// ICmp compares two integers or pointers.
type ICmp struct {
	local
	Pred string // "eq", "ne", "lt", "le", "gt", "ge"
	X    Value
	Y    Value
}

func (i *ICmp) Type() Type         { return I1 }
func (i *ICmp) Operands() []*Value { return []*Value{&i.X, &i.Y} }
func (i *ICmp) String() string {
	return fmt.Sprintf("%s = icmp %s %s %s, %s", i.Ident(), i.Pred, i.X.Type(), operand(i.X), operand(i.Y))
}

// Br transfers control to another block, conditionally when Cond is set.
type Br struct {
	local
	Cond Value // nil for an unconditional branch
	Then *BasicBlock
	Else *BasicBlock
}

func (i *Br) Type() Type { return Void }
func (i *Br) Operands() []*Value {
	if i.Cond == nil {
		return nil
	}
	return []*Value{&i.Cond}
}
func (i *Br) IsTerminator() bool { return true }
func (i *Br) Successors() []*BasicBlock {
	if i.Cond == nil {
		return []*BasicBlock{i.Then}
	}
	return []*BasicBlock{i.Then, i.Else}
}
func (i *Br) String() string {
	if i.Cond == nil {
		return fmt.Sprintf("br %s", i.Then.Name)
	}
	return fmt.Sprintf("br %s, %s, %s", operand(i.Cond), i.Then.Name, i.Else.Name)
}

// Ret returns from the enclosing function, with V when it is non-void.
type Ret struct {
	local
	V Value // nil for void returns
}

func (i *Ret) Type() Type { return Void }
func (i *Ret) Operands() []*Value {
	if i.V == nil {
		return nil
	}
	return []*Value{&i.V}
}
func (i *Ret) IsTerminator() bool        { return true }
func (i *Ret) Successors() []*BasicBlock { return nil }
func (i *Ret) String() string {
	if i.V == nil {
		return "ret"
	}
	return fmt.Sprintf("ret %s %s", i.V.Type(), operand(i.V))
}

// GEPResultElem computes the element type a GEP result points at, given the
// source element type and the index operands. The first index steps over the
// base pointer and does not change the element type; later indices descend
// into aggregates. Non-constant (or not-yet-resolved) indices are fine where
// the element type does not depend on the index value.
func GEPResultElem(src Type, indices []Value) (Type, error) {
	elem := src
	if len(indices) == 0 {
		return elem, nil
	}
	for _, idx := range indices[1:] {
		switch t := elem.(type) {
		case *StructType:
			ci, ok := idx.(*ConstInt)
			if !ok {
				return nil, fmt.Errorf("struct gep index must be an integer constant")
			}
			if ci.V < 0 || int(ci.V) >= len(t.Fields) {
				return nil, fmt.Errorf("struct gep index %d out of range", ci.V)
			}
			elem = t.Fields[ci.V]
		case *ArrayType:
			elem = t.Elem
		case *VectorType:
			elem = t.Elem
		default:
			return nil, fmt.Errorf("gep cannot index into %s", elem)
		}
	}
	return elem, nil
}
