package rewrite

import (
	"fmt"

	"relic/internal/analysis"
	"relic/internal/ir"
)

// BuildMarkerMap derives the serializer-facing pointer map from a module that
// has already been through InsertMarkers. Every typed site must be wrapped by
// then; a missing marker means the rewriter is broken, not the input, so the
// checks panic instead of returning errors.
func BuildMarkerMap(m *ir.Module) *analysis.PointerMap {
	pm := analysis.NewPointerMap()

	for _, g := range m.Globals {
		pm.Put(g, &ir.TypedPointerType{Elem: g.ValueType, AddrSpace: g.Addr})
	}

	m.EachInst(func(ins ir.Instruction) {
		switch i := ins.(type) {
		case *ir.Load:
			mustMarker(i, i.Ptr)
			pm.Put(i.Ptr, typedPtr(i.Ty, i.Ptr))
		case *ir.Store:
			mustMarker(i, i.Ptr)
			pm.Put(i.Ptr, typedPtr(i.Val.Type(), i.Ptr))
		case *ir.AtomicRMW:
			mustMarker(i, i.Ptr)
			pm.Put(i.Ptr, typedPtr(i.Val.Type(), i.Ptr))
		case *ir.CmpXchg:
			mustMarker(i, i.Ptr)
			pm.Put(i.Ptr, typedPtr(i.New.Type(), i.Ptr))
		case *ir.GEP:
			mustMarker(i, i.Ptr)
			pm.Put(i.Ptr, typedPtr(i.Src, i.Ptr))
			mustWrapped(m, i)
			pm.Put(i, typedPtr(i.Elem, i))
		case *ir.Alloca:
			mustWrapped(m, i)
			pm.Put(i, typedPtr(i.Allocated, i))
		}
	})

	for _, f := range m.Funcs {
		typed := typedSignature(f)
		pm.PutFunction(f, typed)
		if typed == f.Sig {
			continue
		}
		for _, u := range m.UsesOf(f) {
			call, ok := u.User.(*ir.Call)
			if !ok || u.Index != len(call.Args) {
				continue
			}
			for i := range call.Args {
				if i >= len(typed.Params) || ir.Equal(f.Sig.Params[i], typed.Params[i]) {
					continue
				}
				mustMarker(call, call.Args[i])
				pm.Put(call.Args[i], typed.Params[i])
			}
		}
	}

	return pm
}

func typedPtr(elem ir.Type, ptr ir.Value) *ir.TypedPointerType {
	return &ir.TypedPointerType{Elem: elem, AddrSpace: ir.AddrSpace(ptr.Type())}
}

// mustMarker panics unless the operand of ins is a no-op cast.
func mustMarker(ins ir.Instruction, v ir.Value) {
	if !IsNoopCast(v) {
		panic(fmt.Sprintf("rewrite: operand %s of %s is not wrapped by a marker", v.Ident(), ins.Ident()))
	}
}

// mustWrapped panics unless ins has exactly one use and that use is a no-op
// cast, the shape wrapResult leaves behind.
func mustWrapped(m *ir.Module, ins ir.Instruction) {
	uses := m.UsesOf(ins)
	if len(uses) != 1 || !IsNoopCast(ir.Value(uses[0].User)) {
		panic(fmt.Sprintf("rewrite: result of %s is not wrapped by a marker", ins.Ident()))
	}
}
