package rewrite

import (
	"math"
	"strings"

	"relic/internal/ir"
)

// localName returns the bare result name of an instruction.
func localName(ins ir.Instruction) string {
	return strings.TrimPrefix(ins.Ident(), "%")
}

// RemoveFreeze replaces every freeze instruction with its operand. The legacy
// formats predate freeze; dropping it is semantically safe for them.
type RemoveFreeze struct{}

func (p *RemoveFreeze) Name() string { return "Remove Freeze" }

func (p *RemoveFreeze) Description() string {
	return "Replaces freeze instructions with their operand"
}

func (p *RemoveFreeze) Apply(m *ir.Module) bool {
	var worklist []*ir.Freeze
	m.EachInst(func(ins ir.Instruction) {
		if fi, ok := ins.(*ir.Freeze); ok {
			worklist = append(worklist, fi)
		}
	})
	if len(worklist) == 0 {
		return false
	}

	for _, fi := range worklist {
		m.ReplaceAllUses(fi, fi.Val)
		fi.Parent().Remove(fi)
	}
	return true
}

// ReplaceFNeg rewrites unary float negation as a subtraction from negative
// zero, the only spelling the legacy formats know.
type ReplaceFNeg struct{}

func (p *ReplaceFNeg) Name() string { return "Replace FNeg" }

func (p *ReplaceFNeg) Description() string {
	return "Rewrites fneg as fsub from negative zero"
}

func (p *ReplaceFNeg) Apply(m *ir.Module) bool {
	var worklist []*ir.FNeg
	m.EachInst(func(ins ir.Instruction) {
		if op, ok := ins.(*ir.FNeg); ok {
			worklist = append(worklist, op)
		}
	})
	if len(worklist) == 0 {
		return false
	}

	for _, op := range worklist {
		ty, ok := op.Val.Type().(*ir.FloatType)
		if !ok {
			panic("rewrite: fneg of a non-float value")
		}
		zero := &ir.ConstFloat{Ty: ty, V: math.Copysign(0, -1)}
		sub := &ir.BinOp{Op: "fsub", Ty: ty, X: zero, Y: op.Val}
		sub.SetName(localName(op))

		block := op.Parent()
		block.InsertBefore(sub, op)
		m.ReplaceAllUses(op, sub)
		block.Remove(op)
	}
	return true
}
