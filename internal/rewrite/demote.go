package rewrite

import (
	"relic/internal/ir"
)

// DemoteConstExprs materializes every pointer-producing constant expression
// operand as a real instruction at its use site. Constant expressions are not
// legal attachment points for the markers the later passes insert, so they
// are taken out of the way first. A constant expression used by several
// instructions is demoted independently at each site; the duplication is
// harmless.
type DemoteConstExprs struct{}

func (p *DemoteConstExprs) Name() string { return "Demote Constant Expressions" }

func (p *DemoteConstExprs) Description() string {
	return "Turns pointer-producing constant expression operands into instructions"
}

func (p *DemoteConstExprs) Apply(m *ir.Module) bool {
	// Collect while only reading; inserting during EachInst would edit the
	// slices being iterated.
	var worklist []ir.Use
	m.EachInst(func(ins ir.Instruction) {
		for idx, slot := range ins.Operands() {
			if ce, ok := (*slot).(*ir.ConstExpr); ok && ir.IsPointer(ce.Type()) {
				worklist = append(worklist, ir.Use{User: ins, Index: idx})
			}
		}
	})
	if len(worklist) == 0 {
		return false
	}

	for _, u := range worklist {
		slot := u.User.Operands()[u.Index]
		ce := (*slot).(*ir.ConstExpr)
		f := u.User.Parent().Parent
		ni := ce.Instruction(f.NewName("demoted"))

		if phi, ok := u.User.(*ir.Phi); ok {
			// A phi has no single textual predecessor point; the
			// materialized instruction goes at the end of the
			// incoming block instead.
			pred := phi.IncomingBlock(u.Index)
			pred.InsertBefore(ni, pred.Terminator())
		} else {
			u.User.Parent().InsertBefore(ni, u.User)
		}
		*slot = ni
	}
	return true
}
