package asm

import (
	"fmt"
	"os"
	"strings"

	"relic/internal/ir"
)

// Parse assembles textual IR into a module. Local references may appear
// before their definition (loop-carried phi inputs); they are resolved with a
// fixup pass once the whole function has been built.
func Parse(filename, source string) (*ir.Module, error) {
	file, err := parser.ParseString(filename, source)
	if err != nil {
		return nil, err
	}
	b := &builder{m: &ir.Module{Name: filename}}
	if err := b.build(file); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return b.m, nil
}

// ParseFile reads and assembles a textual IR file.
func ParseFile(path string) (*ir.Module, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(path, string(source))
}

type builder struct {
	m *ir.Module
}

func (b *builder) build(file *fileRef) error {
	// First pass: declare globals and function shells so that references
	// between them resolve regardless of declaration order.
	for _, d := range file.Decls {
		switch {
		case d.Global != nil:
			if err := b.declareGlobal(d.Global); err != nil {
				return err
			}
		case d.Func != nil:
			if err := b.declareFunc(d.Func); err != nil {
				return err
			}
		}
	}

	// Second pass: initializers and bodies.
	for _, d := range file.Decls {
		switch {
		case d.Global != nil:
			g := b.m.Global(strings.TrimPrefix(d.Global.Name, "@"))
			if d.Global.Init != nil {
				init, err := b.constant(d.Global.Init, g.ValueType)
				if err != nil {
					return fmt.Errorf("global %s: %w", g.Ident(), err)
				}
				g.Init = init
			}
		case d.Func != nil:
			f := b.m.Func(strings.TrimPrefix(d.Func.Name, "@"))
			if d.Func.Body != nil {
				fb := &funcBuilder{
					b:      b,
					f:      f,
					blocks: map[string]*ir.BasicBlock{},
					locals: map[string]ir.Value{},
				}
				if err := fb.buildBody(d.Func.Body); err != nil {
					return fmt.Errorf("func %s: %w", f.Ident(), err)
				}
			}
		}
	}
	return nil
}

func (b *builder) declareGlobal(ref *globalRef) error {
	name := strings.TrimPrefix(ref.Name, "@")
	if b.m.Global(name) != nil || b.m.Func(name) != nil {
		return fmt.Errorf("duplicate global @%s", name)
	}
	ty, err := b.typ(ref.Type)
	if err != nil {
		return err
	}
	addr := 0
	if ref.Addr != nil {
		addr = *ref.Addr
	}
	b.m.Globals = append(b.m.Globals, &ir.Global{Name: name, ValueType: ty, Addr: addr})
	return nil
}

func (b *builder) declareFunc(ref *funcRef) error {
	name := strings.TrimPrefix(ref.Name, "@")
	if b.m.Global(name) != nil || b.m.Func(name) != nil {
		return fmt.Errorf("duplicate global @%s", name)
	}
	f := &ir.Function{Name: name}
	params := make([]ir.Type, len(ref.Params))
	for i, p := range ref.Params {
		ty, err := b.typ(p.Type)
		if err != nil {
			return err
		}
		params[i] = ty
		f.Params = append(f.Params, &ir.Argument{
			Name:   strings.TrimPrefix(p.Name, "%"),
			Ty:     ty,
			Index:  i,
			Parent: f,
		})
	}
	var ret ir.Type = ir.Void
	if ref.Ret != nil {
		ty, err := b.typ(ref.Ret)
		if err != nil {
			return err
		}
		ret = ty
	}
	f.Sig = &ir.FuncType{Return: ret, Params: params}
	for _, h := range ref.Hints {
		ty, err := b.typ(h.Type)
		if err != nil {
			return err
		}
		if h.Param < 0 || h.Param >= len(params) {
			return fmt.Errorf("func @%s: hint for parameter %d out of range", name, h.Param)
		}
		f.Hints = append(f.Hints, ir.TypeHint{Param: h.Param, Witness: &ir.Undef{Ty: ty}})
	}
	b.m.Funcs = append(b.m.Funcs, f)
	return nil
}

func (b *builder) typ(ref *typeRef) (ir.Type, error) {
	switch {
	case ref.Ptr != nil:
		addr := 0
		if ref.Ptr.Addr != nil {
			addr = *ref.Ptr.Addr
		}
		return &ir.PointerType{AddrSpace: addr}, nil
	case ref.Array != nil:
		elem, err := b.typ(ref.Array.Elem)
		if err != nil {
			return nil, err
		}
		return &ir.ArrayType{Elem: elem, Len: ref.Array.Len}, nil
	case ref.Vector != nil:
		elem, err := b.typ(ref.Vector.Elem)
		if err != nil {
			return nil, err
		}
		return &ir.VectorType{Elem: elem, Len: ref.Vector.Len}, nil
	case ref.Struct != nil:
		fields := make([]ir.Type, len(ref.Struct.Fields))
		for i, fr := range ref.Struct.Fields {
			f, err := b.typ(fr)
			if err != nil {
				return nil, err
			}
			fields[i] = f
		}
		return &ir.StructType{Fields: fields}, nil
	}
	switch ref.Name {
	case "i1":
		return ir.I1, nil
	case "i8":
		return ir.I8, nil
	case "i16":
		return ir.I16, nil
	case "i32":
		return ir.I32, nil
	case "i64":
		return ir.I64, nil
	case "f32":
		return ir.F32, nil
	case "f64":
		return ir.F64, nil
	case "void":
		return ir.Void, nil
	}
	return nil, fmt.Errorf("unknown type %q", ref.Name)
}

func (b *builder) globalValue(sym string) (ir.Value, error) {
	name := strings.TrimPrefix(sym, "@")
	if g := b.m.Global(name); g != nil {
		return g, nil
	}
	if f := b.m.Func(name); f != nil {
		return f, nil
	}
	return nil, fmt.Errorf("undefined global @%s", name)
}

// constant assembles a constant reference. Scalar literals take their type
// from the surrounding context (want); aggregates require it.
func (b *builder) constant(ref *constRef, want ir.Type) (ir.Constant, error) {
	switch {
	case ref.Null:
		return ir.Null(ir.AddrSpace(want)), nil
	case ref.Undef != nil:
		ty, err := b.typ(ref.Undef)
		if err != nil {
			return nil, err
		}
		return &ir.Undef{Ty: ty}, nil
	case ref.Expr != nil:
		return b.constExpr(ref.Expr)
	case ref.Global != "":
		v, err := b.globalValue(ref.Global)
		if err != nil {
			return nil, err
		}
		return v.(ir.Constant), nil
	case ref.Float != nil:
		ty := ir.F64
		if ft, ok := want.(*ir.FloatType); ok {
			ty = ft
		}
		return &ir.ConstFloat{Ty: ty, V: *ref.Float}, nil
	case ref.Int != nil:
		ty := ir.I64
		if it, ok := want.(*ir.IntType); ok {
			ty = it
		}
		return &ir.ConstInt{Ty: ty, V: *ref.Int}, nil
	case ref.Struct != nil:
		st, ok := want.(*ir.StructType)
		if !ok || len(st.Fields) != len(ref.Struct.Elems) {
			return nil, fmt.Errorf("struct constant does not match expected type %s", want)
		}
		fields := make([]ir.Constant, len(ref.Struct.Elems))
		for i, e := range ref.Struct.Elems {
			c, err := b.constant(e, st.Fields[i])
			if err != nil {
				return nil, err
			}
			fields[i] = c
		}
		return &ir.ConstStruct{Ty: st, Fields: fields}, nil
	case ref.Array != nil:
		at, ok := want.(*ir.ArrayType)
		if !ok || at.Len != len(ref.Array.Elems) {
			return nil, fmt.Errorf("array constant does not match expected type %s", want)
		}
		elems := make([]ir.Constant, len(ref.Array.Elems))
		for i, e := range ref.Array.Elems {
			c, err := b.constant(e, at.Elem)
			if err != nil {
				return nil, err
			}
			elems[i] = c
		}
		return &ir.ConstArray{Ty: at, Elems: elems}, nil
	case ref.Vector != nil:
		vt, ok := want.(*ir.VectorType)
		if !ok || vt.Len != len(ref.Vector.Elems) {
			return nil, fmt.Errorf("vector constant does not match expected type %s", want)
		}
		elems := make([]ir.Constant, len(ref.Vector.Elems))
		for i, e := range ref.Vector.Elems {
			c, err := b.constant(e, vt.Elem)
			if err != nil {
				return nil, err
			}
			elems[i] = c
		}
		return &ir.ConstVector{Ty: vt, Elems: elems}, nil
	}
	return nil, fmt.Errorf("malformed constant")
}

func (b *builder) constExpr(ref *constExprRef) (ir.Constant, error) {
	if ref.Gep != nil {
		src, err := b.typ(ref.Gep.Src)
		if err != nil {
			return nil, err
		}
		base, err := b.constant(ref.Gep.Base, nil)
		if err != nil {
			return nil, err
		}
		if !ir.IsPointer(base.Type()) {
			return nil, fmt.Errorf("gep base %s is not a pointer", base.Ident())
		}
		args := []ir.Constant{base}
		indices := make([]ir.Value, 0, len(ref.Gep.Indices))
		for _, idx := range ref.Gep.Indices {
			ci := &ir.ConstInt{Ty: ir.I64, V: idx}
			args = append(args, ci)
			indices = append(indices, ci)
		}
		elem, err := ir.GEPResultElem(src, indices)
		if err != nil {
			return nil, err
		}
		return &ir.ConstExpr{Op: "gep", Src: src, Elem: elem, Args: args}, nil
	}
	arg, err := b.constant(ref.Cast.Arg, nil)
	if err != nil {
		return nil, err
	}
	to, err := b.typ(ref.Cast.To)
	if err != nil {
		return nil, err
	}
	return &ir.ConstExpr{Op: ref.Cast.Op, Args: []ir.Constant{arg}, To: to}, nil
}
