package ir

import (
	"fmt"
	"strings"
)

// The type system mirrors what the legacy serializer can express. Pointers are
// opaque: a PointerType carries only an address space, never a pointee type.
// TypedPointerType is the reconstructed form produced by the analysis; it is
// never installed back into the graph.

type Type interface {
	String() string
}

// IntType is an integer type of a fixed bit width.
type IntType struct {
	Bits int
}

// FloatType is a floating point type of a fixed bit width (32 or 64).
type FloatType struct {
	Bits int
}

// VoidType is the type of functions that return nothing.
type VoidType struct{}

// PointerType is an opaque pointer. It knows its address space and nothing
// about the memory it references.
type PointerType struct {
	AddrSpace int
}

// StructType is an anonymous aggregate with ordered fields.
type StructType struct {
	Fields []Type
}

// ArrayType is a fixed-length sequence of a single element type.
type ArrayType struct {
	Elem Type
	Len  int
}

// VectorType is a fixed-length vector of a scalar element type.
type VectorType struct {
	Elem Type
	Len  int
}

// FuncType describes a function signature.
type FuncType struct {
	Return Type
	Params []Type
}

// TypedPointerType pairs a reconstructed pointee type with an address space.
// It exists only inside the pointer type map and as an argument to marker
// insertion; the printer and the assembler never see it.
type TypedPointerType struct {
	Elem      Type
	AddrSpace int
}

// Common scalar types, shared so tests and the assembler don't allocate fresh
// instances for every literal.
var (
	I1   = &IntType{Bits: 1}
	I8   = &IntType{Bits: 8}
	I16  = &IntType{Bits: 16}
	I32  = &IntType{Bits: 32}
	I64  = &IntType{Bits: 64}
	F32  = &FloatType{Bits: 32}
	F64  = &FloatType{Bits: 64}
	Void = &VoidType{}
)

func (t *IntType) String() string   { return fmt.Sprintf("i%d", t.Bits) }
func (t *FloatType) String() string { return fmt.Sprintf("f%d", t.Bits) }
func (t *VoidType) String() string  { return "void" }

func (t *PointerType) String() string {
	if t.AddrSpace == 0 {
		return "ptr"
	}
	return fmt.Sprintf("ptr(%d)", t.AddrSpace)
}

func (t *StructType) String() string {
	fields := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = f.String()
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

func (t *ArrayType) String() string {
	return fmt.Sprintf("[%d x %s]", t.Len, t.Elem)
}

func (t *VectorType) String() string {
	return fmt.Sprintf("<%d x %s>", t.Len, t.Elem)
}

func (t *FuncType) String() string {
	params := make([]string, len(t.Params))
	for i, p := range t.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("%s (%s)", t.Return, strings.Join(params, ", "))
}

func (t *TypedPointerType) String() string {
	return fmt.Sprintf("typedptr(%s, %d)", t.Elem, t.AddrSpace)
}

// Equal reports structural type equality. Types are not interned, so
// comparisons always recurse.
func Equal(a, b Type) bool {
	switch at := a.(type) {
	case *IntType:
		bt, ok := b.(*IntType)
		return ok && at.Bits == bt.Bits
	case *FloatType:
		bt, ok := b.(*FloatType)
		return ok && at.Bits == bt.Bits
	case *VoidType:
		_, ok := b.(*VoidType)
		return ok
	case *PointerType:
		bt, ok := b.(*PointerType)
		return ok && at.AddrSpace == bt.AddrSpace
	case *StructType:
		bt, ok := b.(*StructType)
		if !ok || len(at.Fields) != len(bt.Fields) {
			return false
		}
		for i := range at.Fields {
			if !Equal(at.Fields[i], bt.Fields[i]) {
				return false
			}
		}
		return true
	case *ArrayType:
		bt, ok := b.(*ArrayType)
		return ok && at.Len == bt.Len && Equal(at.Elem, bt.Elem)
	case *VectorType:
		bt, ok := b.(*VectorType)
		return ok && at.Len == bt.Len && Equal(at.Elem, bt.Elem)
	case *FuncType:
		bt, ok := b.(*FuncType)
		if !ok || len(at.Params) != len(bt.Params) || !Equal(at.Return, bt.Return) {
			return false
		}
		for i := range at.Params {
			if !Equal(at.Params[i], bt.Params[i]) {
				return false
			}
		}
		return true
	case *TypedPointerType:
		bt, ok := b.(*TypedPointerType)
		return ok && at.AddrSpace == bt.AddrSpace && Equal(at.Elem, bt.Elem)
	}
	return false
}

// IsPointer reports whether t is an opaque pointer type.
func IsPointer(t Type) bool {
	_, ok := t.(*PointerType)
	return ok
}

// AddrSpace returns the address space of a pointer type, or 0 for anything
// else.
func AddrSpace(t Type) int {
	if pt, ok := t.(*PointerType); ok {
		return pt.AddrSpace
	}
	return 0
}
