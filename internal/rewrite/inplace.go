package rewrite

import (
	"relic/internal/analysis"
	"relic/internal/ir"
)

// RetypePointers is the older, sparser alternative to InsertMarkers: it runs
// the type inference engine and rewrites load, store and address computation
// sites only where the reconstructed pointee type of the operand disagrees
// with the type the instruction itself requires. Sites where the analysis and
// the instruction already agree keep their original form, trading marker
// completeness for fewer inserted instructions.
type RetypePointers struct{}

func (p *RetypePointers) Name() string { return "Retype Pointers" }

func (p *RetypePointers) Description() string {
	return "Rewrites memory accesses whose operand type disagrees with the inferred one"
}

func (p *RetypePointers) Apply(m *ir.Module) bool {
	pm := analysis.Run(m)

	// Collect first: replacing instructions while walking their blocks
	// would edit the slices being iterated.
	var worklist []ir.Instruction
	m.EachInst(func(ins ir.Instruction) {
		switch ins.(type) {
		case *ir.Load, *ir.Store, *ir.GEP:
			worklist = append(worklist, ins)
		}
	})

	changed := false
	for _, ins := range worklist {
		switch i := ins.(type) {
		case *ir.Load:
			if cast := maybeCast(pm, i, i.Ptr, i.Ty); cast != nil {
				nl := &ir.Load{Ty: i.Ty, Ptr: cast}
				replaceInstruction(m, pm, i, nl)
				changed = true
			}
		case *ir.Store:
			if cast := maybeCast(pm, i, i.Ptr, i.Val.Type()); cast != nil {
				ns := &ir.Store{Val: i.Val, Ptr: cast}
				replaceInstruction(m, pm, i, ns)
				changed = true
			}
		case *ir.GEP:
			if cast := maybeCast(pm, i, i.Ptr, i.Elem); cast != nil {
				*i.Operands()[0] = cast
				changed = true
			}
		}
	}
	return changed
}

// maybeCast inserts a no-op cast of the operand before ins when the map's
// recorded pointee type for the operand disagrees with the type the
// instruction requires. Agreement means no rewrite: nil is returned.
func maybeCast(pm *analysis.PointerMap, ins ir.Instruction, operand ir.Value, elem ir.Type) *ir.BitCast {
	if ir.Equal(pm.Pointee(operand), elem) {
		return nil
	}
	f := ins.Parent().Parent
	cast := &ir.BitCast{Val: operand, To: operand.Type()}
	cast.SetName(f.NewName("cast"))
	ins.Parent().InsertBefore(cast, ins)
	return cast
}

// replaceInstruction swaps old for new at the same position, carrying the
// result name over and dropping old's stale map entry.
func replaceInstruction(m *ir.Module, pm *analysis.PointerMap, old, new ir.Instruction) {
	new.SetName(localName(old))
	block := old.Parent()
	block.InsertBefore(new, old)
	m.ReplaceAllUses(old, new)
	block.Remove(old)
	pm.Delete(old)
}
