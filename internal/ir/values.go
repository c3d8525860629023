package ir

import (
	"fmt"
	"strings"
	"sync"
)

// Value is any graph node that can be referenced: an instruction result, a
// function argument, a global, a function, or a constant. Identity is by
// reference.
type Value interface {
	Type() Type
	// Ident returns the printed reference form of the value ("%x" for
	// locals, "@g" for globals, the literal for constants).
	Ident() string
}

// Constant is a value known at compile time.
type Constant interface {
	Value
	isConstant()
}

// Global is a module-level variable. Its value type is the declared storage
// type; its own type is always an opaque pointer into Addr.
type Global struct {
	Name      string
	ValueType Type
	Addr      int
	Init      Constant // nil for external declarations
}

func (g *Global) Type() Type    { return &PointerType{AddrSpace: g.Addr} }
func (g *Global) Ident() string { return "@" + g.Name }
func (g *Global) isConstant()   {}

// TypeHint pairs a parameter index with a witness value whose type is the
// intended pointee type of that parameter. Hints come from the frontend for
// parameters whose type cannot be inferred from call sites (custom low-level
// operations, mostly).
type TypeHint struct {
	Param   int
	Witness Value
}

// Function is a function definition or declaration. A declaration has no
// blocks.
type Function struct {
	Name   string
	Sig    *FuncType
	Params []*Argument
	Blocks []*BasicBlock
	Hints  []TypeHint

	locals int // counter for generated local names
}

func (f *Function) Type() Type    { return &PointerType{} }
func (f *Function) Ident() string { return "@" + f.Name }
func (f *Function) isConstant()   {}

// IsDecl reports whether f is an external declaration without a body.
func (f *Function) IsDecl() bool { return len(f.Blocks) == 0 }

// HintFor returns the type hint witness for parameter i, if any.
func (f *Function) HintFor(i int) (Value, bool) {
	for _, h := range f.Hints {
		if h.Param == i {
			return h.Witness, true
		}
	}
	return nil, false
}

// NewBlock appends a fresh basic block to the function.
func (f *Function) NewBlock(name string) *BasicBlock {
	b := &BasicBlock{Name: name, Parent: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewName generates a deterministic fresh local name. Generated names use a
// dotted suffix so they cannot collide with assembler-accepted identifiers
// written by hand in common style.
func (f *Function) NewName(prefix string) string {
	f.locals++
	return fmt.Sprintf("%s.%d", prefix, f.locals)
}

// Argument is a formal parameter of a function.
type Argument struct {
	Name   string
	Ty     Type
	Index  int
	Parent *Function
}

func (a *Argument) Type() Type    { return a.Ty }
func (a *Argument) Ident() string { return "%" + a.Name }

// Scalar constants.

type ConstInt struct {
	Ty *IntType
	V  int64
}

func (c *ConstInt) Type() Type    { return c.Ty }
func (c *ConstInt) Ident() string { return fmt.Sprintf("%d", c.V) }
func (c *ConstInt) isConstant()   {}

type ConstFloat struct {
	Ty *FloatType
	V  float64
}

func (c *ConstFloat) Type() Type    { return c.Ty }
func (c *ConstFloat) Ident() string { return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", c.V), "0"), ".") + ".0" }
func (c *ConstFloat) isConstant()   {}

// NullPtr is the null pointer constant of an address space. Null constants
// are interned per address space: the same null object may appear at many,
// differently typed use sites, which is exactly the per-value ambiguity the
// analysis documents as an accepted approximation.
type NullPtr struct {
	Addr int
}

var (
	nullMu    sync.Mutex
	nullCache = map[int]*NullPtr{}
)

// Null returns the interned null pointer constant for an address space.
func Null(addrSpace int) *NullPtr {
	nullMu.Lock()
	defer nullMu.Unlock()
	if n, ok := nullCache[addrSpace]; ok {
		return n
	}
	n := &NullPtr{Addr: addrSpace}
	nullCache[addrSpace] = n
	return n
}

func (c *NullPtr) Type() Type    { return &PointerType{AddrSpace: c.Addr} }
func (c *NullPtr) Ident() string { return "null" }
func (c *NullPtr) isConstant()   {}

// Undef is an unspecified value of a given type.
type Undef struct {
	Ty Type
}

func (c *Undef) Type() Type    { return c.Ty }
func (c *Undef) Ident() string { return "undef" }
func (c *Undef) isConstant()   {}

// Aggregate constants.

type ConstStruct struct {
	Ty     *StructType
	Fields []Constant
}

func (c *ConstStruct) Type() Type  { return c.Ty }
func (c *ConstStruct) isConstant() {}
func (c *ConstStruct) Ident() string {
	fields := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		fields[i] = f.Ident()
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

type ConstArray struct {
	Ty    *ArrayType
	Elems []Constant
}

func (c *ConstArray) Type() Type  { return c.Ty }
func (c *ConstArray) isConstant() {}
func (c *ConstArray) Ident() string {
	elems := make([]string, len(c.Elems))
	for i, e := range c.Elems {
		elems[i] = e.Ident()
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

type ConstVector struct {
	Ty    *VectorType
	Elems []Constant
}

func (c *ConstVector) Type() Type  { return c.Ty }
func (c *ConstVector) isConstant() {}
func (c *ConstVector) Ident() string {
	elems := make([]string, len(c.Elems))
	for i, e := range c.Elems {
		elems[i] = e.Ident()
	}
	return "<" + strings.Join(elems, ", ") + ">"
}

// ConstExpr is a constant expression: an operation applied to constants whose
// result is itself a constant. The demoter turns every pointer-producing
// constant expression operand into a real instruction before markers are
// inserted, because the legacy format cannot attach a cast to a constant.
type ConstExpr struct {
	Op   string // "gep", "bitcast", "addrspacecast", "inttoptr", "ptrtoint"
	Src  Type   // gep only: source element type
	Elem Type   // gep only: result element type
	Args []Constant
	To   Type // cast result type
}

func (c *ConstExpr) isConstant() {}

func (c *ConstExpr) Type() Type {
	if c.Op == "gep" {
		return &PointerType{AddrSpace: AddrSpace(c.Args[0].Type())}
	}
	return c.To
}

func (c *ConstExpr) Ident() string {
	switch c.Op {
	case "gep":
		parts := []string{c.Src.String(), c.Args[0].Ident()}
		for _, a := range c.Args[1:] {
			parts = append(parts, a.Ident())
		}
		return fmt.Sprintf("gep(%s)", strings.Join(parts, ", "))
	default:
		return fmt.Sprintf("%s(%s, %s)", c.Op, c.Args[0].Ident(), c.To)
	}
}

// Instruction materializes the constant expression as an equivalent
// instruction. The caller is responsible for inserting it into a block.
func (c *ConstExpr) Instruction(name string) Instruction {
	switch c.Op {
	case "gep":
		indices := make([]Value, len(c.Args)-1)
		for i, a := range c.Args[1:] {
			indices[i] = a
		}
		return &GEP{local: local{Name: name}, Src: c.Src, Elem: c.Elem, Ptr: c.Args[0], Indices: indices}
	case "bitcast":
		return &BitCast{local: local{Name: name}, Val: c.Args[0], To: c.To}
	case "addrspacecast":
		return &AddrSpaceCast{local: local{Name: name}, Val: c.Args[0], To: c.To}
	case "inttoptr":
		return &IntToPtr{local: local{Name: name}, Val: c.Args[0], To: c.To}
	case "ptrtoint":
		return &PtrToInt{local: local{Name: name}, Val: c.Args[0], To: c.To}
	}
	panic("ir: unknown constant expression op " + c.Op)
}
