package analysis

import (
	"relic/internal/ir"
)

// CtorListGlobal is the constructor-registration list. Its element type is not
// recoverable from its uses, only from the shape of its initializer, so it
// gets structural classification instead of the normal seeding.
const CtorListGlobal = "llvm.global_ctors"

// Run reconstructs a pointee type for every opaque-pointer-valued definition
// in the module: globals seed their declared storage type, allocations their
// allocated type, address computations their result element type; known types
// flow forward to select/phi/addrspacecast consumers and implied types flow
// backward from loads, stores and address computations to their transitive
// producers. Values the analysis cannot reach keep no entry and resolve to the
// single-byte fallback on lookup.
func Run(m *ir.Module) *PointerMap {
	a := &analysis{
		m:    m,
		pm:   NewPointerMap(),
		uses: map[ir.Value][]ir.Use{},
	}
	a.indexUses()

	for _, g := range m.Globals {
		a.seedForward(g)
		if g.Name == CtorListGlobal {
			a.classifyCtorList(g)
		}
	}

	for _, f := range m.Funcs {
		for _, arg := range f.Params {
			a.seedForward(arg)
		}
		for _, b := range f.Blocks {
			for _, ins := range b.Insts {
				a.seedForward(ins)
			}
		}
		for _, b := range f.Blocks {
			for _, ins := range b.Insts {
				a.implyBackward(ins)
			}
		}
		a.classifyFunction(f)
	}

	return a.pm
}

type analysis struct {
	m    *ir.Module
	pm   *PointerMap
	uses map[ir.Value][]ir.Use
}

// indexUses builds the value → use-sites index once, in program order, so that
// propagation visits users deterministically.
func (a *analysis) indexUses() {
	a.m.EachInst(func(ins ir.Instruction) {
		for idx, slot := range ins.Operands() {
			if *slot == nil {
				continue
			}
			a.uses[*slot] = append(a.uses[*slot], ir.Use{User: ins, Index: idx})
		}
	})
}

// typed returns the reconstructed pointer type of v: its map entry when one
// exists, the single-byte fallback otherwise.
func (a *analysis) typed(v ir.Value) ir.Type {
	return a.pm.Lookup(v)
}

// seedForward derives a pointee type from the shape of a definition and, when
// one is found, records it and floods it forward.
func (a *analysis) seedForward(v ir.Value) {
	if !ir.IsPointer(v.Type()) {
		return
	}
	if _, ok := a.pm.Entry(v); ok {
		return
	}

	var elem ir.Type
	switch d := v.(type) {
	case *ir.GEP:
		if !ir.IsPointer(d.Elem) {
			elem = d.Elem
		}
	case *ir.Alloca:
		elem = d.Allocated
	case *ir.Global:
		elem = d.ValueType
	case *ir.Argument:
		if w, ok := d.Parent.HintFor(d.Index); ok {
			elem = w.Type()
		}
	}
	if elem == nil {
		return
	}
	a.pm.Put(v, &ir.TypedPointerType{Elem: elem, AddrSpace: ir.AddrSpace(v.Type())})
	a.propagateForward(v, elem)
}

// propagateForward floods a known pointee type from a producer to its
// transitive select/phi/addrspacecast consumers. First writer wins: a consumer
// that already has an entry keeps it, and serves as the visited marker that
// terminates loop-carried phi cycles.
func (a *analysis) propagateForward(v ir.Value, elem ir.Type) {
	work := []ir.Value{v}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		for _, use := range a.uses[cur] {
			switch use.User.(type) {
			case *ir.Select:
				if use.Index == 0 {
					continue // condition operand, not a pointer edge
				}
			case *ir.Phi, *ir.AddrSpaceCast:
			default:
				continue
			}
			dst := ir.Value(use.User)
			if !ir.IsPointer(dst.Type()) {
				continue
			}
			if _, ok := a.pm.Entry(dst); ok {
				continue
			}
			a.pm.Put(dst, &ir.TypedPointerType{Elem: elem, AddrSpace: ir.AddrSpace(dst.Type())})
			work = append(work, dst)
		}
	}
}

// implyBackward derives the pointee type an instruction imposes on its pointer
// operand and floods it backward to the operand's transitive producers.
func (a *analysis) implyBackward(ins ir.Instruction) {
	var elem ir.Type
	var ptr ir.Value
	switch i := ins.(type) {
	case *ir.Load:
		elem, ptr = i.Ty, i.Ptr
	case *ir.Store:
		// A stored pointer says nothing about the pointee beyond
		// "pointer"; no inference from this site.
		if ir.IsPointer(i.Val.Type()) {
			return
		}
		elem, ptr = i.Val.Type(), i.Ptr
	case *ir.GEP:
		elem, ptr = i.Src, i.Ptr
	default:
		return
	}
	a.propagateBackward(ptr, elem)
}

// propagateBackward walks producer edges (select arms, phi incoming values,
// addrspacecast operands) from a consumer-implied pointer, recording the
// implied pointee type on every transitive producer that has no entry yet. An
// existing entry doubles as the visited marker.
func (a *analysis) propagateBackward(v ir.Value, elem ir.Type) {
	work := []ir.Value{v}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		if cur == nil || !ir.IsPointer(cur.Type()) {
			continue
		}
		if _, ok := a.pm.Entry(cur); ok {
			continue
		}
		a.pm.Put(cur, &ir.TypedPointerType{Elem: elem, AddrSpace: ir.AddrSpace(cur.Type())})

		switch p := cur.(type) {
		case *ir.Select:
			work = append(work, p.Then, p.Else)
		case *ir.Phi:
			for _, e := range p.Incoming {
				work = append(work, e.V)
			}
		case *ir.AddrSpaceCast:
			work = append(work, p.Val)
		}
	}
}

// classifyFunction builds the reconstructed signature of a function: pointer
// parameters and returns become typed pointers, everything else keeps its
// declared type. Disagreeing return sites and unknowable parameters fall back
// to the single-byte pointee.
func (a *analysis) classifyFunction(f *ir.Function) {
	if a.pm.HasFunction(f) {
		return
	}

	ret := f.Sig.Return
	if ir.IsPointer(ret) {
		var got ir.Type
		for _, b := range f.Blocks {
			r, ok := b.Terminator().(*ir.Ret)
			if !ok || r.V == nil {
				continue
			}
			t := a.typed(r.V)
			if got == nil {
				got = t
			} else if !ir.Equal(got, t) {
				got = &ir.TypedPointerType{Elem: ir.I8, AddrSpace: ir.AddrSpace(ret)}
			}
		}
		if got == nil {
			// External declaration, or no value-returning exits.
			got = &ir.TypedPointerType{Elem: ir.I8, AddrSpace: ir.AddrSpace(ret)}
		}
		ret = got
	}

	params := make([]ir.Type, len(f.Sig.Params))
	for i, arg := range f.Params {
		if !ir.IsPointer(arg.Ty) {
			params[i] = arg.Ty
			continue
		}
		as := ir.AddrSpace(arg.Ty)
		if w, ok := f.HintFor(i); ok {
			params[i] = &ir.TypedPointerType{Elem: w.Type(), AddrSpace: as}
		} else if e, ok := a.pm.Entry(arg); ok {
			params[i] = e
		} else {
			params[i] = a.paramFromCallSites(f, i, as)
		}
	}

	a.pm.PutFunction(f, &ir.FuncType{Return: ret, Params: params})
}

// paramFromCallSites reconstructs a parameter type from the classified values
// passed at call sites. All sites must agree; a conflict is a fallback, never
// a silent pick.
func (a *analysis) paramFromCallSites(f *ir.Function, i, addrSpace int) ir.Type {
	fallback := &ir.TypedPointerType{Elem: ir.I8, AddrSpace: addrSpace}
	var got *ir.TypedPointerType
	for _, use := range a.uses[f] {
		call, ok := use.User.(*ir.Call)
		if !ok || use.Index != len(call.Args) || i >= len(call.Args) {
			continue
		}
		e, ok := a.pm.Entry(call.Args[i])
		if !ok {
			continue
		}
		tp, ok := e.(*ir.TypedPointerType)
		if !ok {
			continue
		}
		if got == nil {
			got = &ir.TypedPointerType{Elem: tp.Elem, AddrSpace: addrSpace}
		} else if !ir.Equal(got.Elem, tp.Elem) {
			return fallback
		}
	}
	if got == nil {
		return fallback
	}
	return got
}

// classifyCtorList reconstructs the element type of the constructor list from
// its initializer and records it over the storage-type seed. The declared
// element struct contains opaque pointers; the initializer's members reveal
// what they point at.
func (a *analysis) classifyCtorList(g *ir.Global) {
	ca, ok := g.Init.(*ir.ConstArray)
	if !ok {
		return
	}
	elem := a.classifyConstant(ca)
	a.pm.Put(g, &ir.TypedPointerType{Elem: elem, AddrSpace: g.Addr})
}

// classifyConstant reconstructs the effective type of a constant bottom-up.
// Aggregates whose element types change get a synthesized aggregate type,
// recorded in the map; anything without pointers keeps its declared type.
// Constant trees are acyclic and shallow, so plain recursion is fine here.
func (a *analysis) classifyConstant(c ir.Constant) ir.Type {
	switch c := c.(type) {
	case *ir.NullPtr:
		// A null used at several differently typed sites cannot be
		// told apart by a value-keyed map; the single-byte default is
		// the documented approximation.
		return &ir.TypedPointerType{Elem: ir.I8, AddrSpace: c.Addr}
	case *ir.Function:
		a.classifyFunction(c)
		return &ir.TypedPointerType{Elem: a.pm.Function(c), AddrSpace: 0}
	case *ir.Global:
		return a.typed(c)
	case *ir.ConstStruct:
		fields := make([]ir.Type, len(c.Fields))
		changed := false
		for i, f := range c.Fields {
			fields[i] = a.classifyConstant(f)
			if !ir.Equal(fields[i], f.Type()) {
				changed = true
			}
		}
		if !changed {
			return c.Ty
		}
		t := &ir.StructType{Fields: fields}
		a.pm.Put(c, t)
		return t
	case *ir.ConstArray:
		t, changed := a.classifyElems(c.Elems, c.Ty.Elem)
		if !changed {
			return c.Ty
		}
		nt := &ir.ArrayType{Elem: t, Len: c.Ty.Len}
		a.pm.Put(c, nt)
		return nt
	case *ir.ConstVector:
		t, changed := a.classifyElems(c.Elems, c.Ty.Elem)
		if !changed {
			return c.Ty
		}
		nt := &ir.VectorType{Elem: t, Len: c.Ty.Len}
		a.pm.Put(c, nt)
		return nt
	default:
		return c.Type()
	}
}

// classifyElems classifies a homogeneous element list. When the classified
// element types disagree (ctor entries carrying differently typed data
// globals, say) no single element type can describe the aggregate, so the
// declared one stands. Per-element entries recorded on the way down stay
// valid either way.
func (a *analysis) classifyElems(elems []ir.Constant, declared ir.Type) (ir.Type, bool) {
	var got ir.Type
	for _, e := range elems {
		t := a.classifyConstant(e)
		if got == nil {
			got = t
		} else if !ir.Equal(got, t) {
			return declared, false
		}
	}
	if got == nil {
		return declared, false
	}
	return got, !ir.Equal(got, declared)
}
