package rewrite

import (
	"relic/internal/ir"
)

// InsertMarkers surrounds every pointer definition and use with a no-op
// bitcast so the legacy serializer finds a type-carrying instruction at every
// site instead of having to re-derive types from the graph. The markers have
// identical input and output types and no semantic effect; they exist so the
// serializer's value numbering reserves an instruction slot it can retype.
//
// The pass is idempotent: an operand that already is a no-op cast, or a
// result whose only use already is one, is left alone.
type InsertMarkers struct{}

func (p *InsertMarkers) Name() string { return "Insert Markers" }

func (p *InsertMarkers) Description() string {
	return "Wraps pointer definitions and uses in no-op bitcasts"
}

func (p *InsertMarkers) Apply(m *ir.Module) bool {
	changed := p.wrapGlobalUses(m)
	changed = p.wrapMemoryOperands(m) || changed
	changed = p.wrapCallArguments(m) || changed
	return changed
}

// IsNoopCast reports whether v is a marker: a bitcast whose source and
// destination types are equal.
func IsNoopCast(v ir.Value) bool {
	bc, ok := v.(*ir.BitCast)
	return ok && ir.Equal(bc.Val.Type(), bc.To)
}

// prependCast replaces operand idx of ins with a no-op cast of itself,
// inserted immediately before ins. When ins is a phi the cast goes before the
// incoming block's terminator instead, since a phi has no single textual
// predecessor point. Reports false when the operand is already a marker
// dedicated to this site: a no-op cast whose sole use is this operand slot.
// A cast shared with other sites gets re-wrapped so every site keeps its own
// marker and the serializer can retype each independently.
func prependCast(m *ir.Module, ins ir.Instruction, idx int) bool {
	slot := ins.Operands()[idx]
	v := *slot
	if !ir.IsPointer(v.Type()) {
		panic("rewrite: expected a pointer operand")
	}
	if IsNoopCast(v) && len(m.UsesOf(v)) == 1 {
		return false
	}

	f := ins.Parent().Parent
	cast := &ir.BitCast{Val: v, To: v.Type()}
	cast.SetName(f.NewName("cast"))

	if phi, ok := ins.(*ir.Phi); ok {
		pred := phi.IncomingBlock(idx)
		pred.InsertBefore(cast, pred.Terminator())
	} else {
		ins.Parent().InsertBefore(cast, ins)
	}
	*slot = cast
	return true
}

// wrapResult redirects all uses of a pointer-producing instruction to a no-op
// cast inserted immediately after it. The redirection sweep also reroutes the
// new cast's own input, so that edge is explicitly restored afterwards.
func wrapResult(m *ir.Module, ins ir.Instruction) bool {
	if !ir.IsPointer(ins.Type()) {
		panic("rewrite: expected a pointer-producing instruction")
	}
	uses := m.UsesOf(ins)
	if len(uses) == 1 && IsNoopCast(ir.Value(uses[0].User)) {
		return false
	}

	f := ins.Parent().Parent
	cast := &ir.BitCast{Val: ins, To: ins.Type()}
	cast.SetName(f.NewName("cast"))
	ins.Parent().InsertAfter(cast, ins)

	m.ReplaceAllUses(ins, cast)
	cast.Val = ins
	return true
}

// wrapGlobalUses redirects every instruction use of a global through a marker.
// The global definitions themselves are not touched.
func (p *InsertMarkers) wrapGlobalUses(m *ir.Module) bool {
	changed := false
	for _, g := range m.Globals {
		for _, u := range m.UsesOf(g) {
			// A marker's own input edge is not a use to wrap.
			if IsNoopCast(ir.Value(u.User)) {
				continue
			}
			if prependCast(m, u.User, u.Index) {
				changed = true
			}
		}
	}
	return changed
}

// wrapMemoryOperands wraps the pointer operand of every memory, atomic and
// address computation instruction, and the pointer result of allocations and
// address computations.
func (p *InsertMarkers) wrapMemoryOperands(m *ir.Module) bool {
	var worklist []ir.Instruction
	m.EachInst(func(ins ir.Instruction) {
		switch ins.(type) {
		case *ir.Load, *ir.Store, *ir.AtomicRMW, *ir.CmpXchg, *ir.GEP, *ir.Alloca:
			worklist = append(worklist, ins)
		}
	})

	changed := false
	for _, ins := range worklist {
		switch i := ins.(type) {
		case *ir.Load:
			changed = prependCast(m, i, 0) || changed
		case *ir.Store:
			changed = prependCast(m, i, 1) || changed
		case *ir.AtomicRMW:
			changed = prependCast(m, i, 0) || changed
		case *ir.CmpXchg:
			changed = prependCast(m, i, 0) || changed
		case *ir.GEP:
			changed = prependCast(m, i, 0) || changed
			changed = wrapResult(m, i) || changed
		case *ir.Alloca:
			changed = wrapResult(m, i) || changed
		}
	}
	return changed
}

// typedSignature returns the hint-adjusted signature of a function: every
// hinted pointer parameter becomes a typed pointer. Without hints the
// declared signature is returned unchanged.
func typedSignature(f *ir.Function) *ir.FuncType {
	if len(f.Hints) == 0 {
		return f.Sig
	}
	params := make([]ir.Type, len(f.Sig.Params))
	copy(params, f.Sig.Params)
	for _, h := range f.Hints {
		as := ir.AddrSpace(params[h.Param])
		params[h.Param] = &ir.TypedPointerType{Elem: h.Witness.Type(), AddrSpace: as}
	}
	return &ir.FuncType{Return: f.Sig.Return, Params: params}
}

// wrapCallArguments wraps call arguments whose hint-adjusted parameter type
// differs from the declared one, so the serializer can retype the argument at
// the call site.
func (p *InsertMarkers) wrapCallArguments(m *ir.Module) bool {
	changed := false
	for _, f := range m.Funcs {
		typed := typedSignature(f)
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
				changed = prependCast(m, call, i) || changed
			}
		}
	}
	return changed
}
