package asm

import (
	"fmt"
	"strings"

	"relic/internal/ir"
)

// funcBuilder assembles one function body. Instructions are built in program
// order; a reference to a local that has not been defined yet leaves its
// operand slot empty and records a fixup, which is resolved once every
// definition in the function has been seen.
type funcBuilder struct {
	b      *builder
	f      *ir.Function
	blocks map[string]*ir.BasicBlock
	locals map[string]ir.Value
	fixups []fixup
}

type fixup struct {
	ins  ir.Instruction
	idx  int
	name string
}

// ops collects the operand slots of one instruction in operand order.
type ops struct {
	vals []ir.Value
	pend map[int]string
}

func (fb *funcBuilder) buildBody(body *bodyRef) error {
	if len(body.Blocks) == 0 {
		return fmt.Errorf("empty body")
	}
	for _, br := range body.Blocks {
		if _, ok := fb.blocks[br.Label]; ok {
			return fmt.Errorf("duplicate block label %q", br.Label)
		}
		fb.blocks[br.Label] = fb.f.NewBlock(br.Label)
	}
	for _, a := range fb.f.Params {
		fb.locals[a.Name] = a
	}
	for _, br := range body.Blocks {
		block := fb.blocks[br.Label]
		for _, iref := range br.Insts {
			if t := block.Terminator(); t != nil {
				return fmt.Errorf("block %s: instruction after terminator", br.Label)
			}
			if err := fb.buildInst(block, iref); err != nil {
				return fmt.Errorf("block %s: %w", br.Label, err)
			}
		}
		if block.Terminator() == nil {
			return fmt.Errorf("block %s: missing terminator", br.Label)
		}
	}
	for _, fx := range fb.fixups {
		v, ok := fb.locals[fx.name]
		if !ok {
			return fmt.Errorf("undefined local %%%s", fx.name)
		}
		*fx.ins.Operands()[fx.idx] = v
	}
	return nil
}

func (fb *funcBuilder) block(label string) (*ir.BasicBlock, error) {
	b, ok := fb.blocks[label]
	if !ok {
		return nil, fmt.Errorf("undefined block label %q", label)
	}
	return b, nil
}

// operand appends one resolved operand to o, or a pending slot when ref names
// a local that has no definition yet. want provides the type context for bare
// scalar literals and null.
func (fb *funcBuilder) operand(ref *operandRef, want ir.Type, o *ops) error {
	idx := len(o.vals)
	switch {
	case ref.Local != "":
		name := strings.TrimPrefix(ref.Local, "%")
		if v, ok := fb.locals[name]; ok {
			o.vals = append(o.vals, v)
			return nil
		}
		o.pend[idx] = name
		o.vals = append(o.vals, nil)
	case ref.Global != "":
		v, err := fb.b.globalValue(ref.Global)
		if err != nil {
			return err
		}
		o.vals = append(o.vals, v)
	case ref.Null:
		o.vals = append(o.vals, ir.Null(ir.AddrSpace(want)))
	case ref.Expr != nil:
		c, err := fb.b.constExpr(ref.Expr)
		if err != nil {
			return err
		}
		o.vals = append(o.vals, c)
	case ref.Float != nil:
		ty := ir.F64
		if ft, ok := want.(*ir.FloatType); ok {
			ty = ft
		}
		o.vals = append(o.vals, &ir.ConstFloat{Ty: ty, V: *ref.Float})
	case ref.Int != nil:
		ty := ir.I64
		if it, ok := want.(*ir.IntType); ok {
			ty = it
		}
		o.vals = append(o.vals, &ir.ConstInt{Ty: ty, V: *ref.Int})
	default:
		return fmt.Errorf("malformed operand")
	}
	return nil
}

// typedOperand resolves a "<type> <operand>" pair and returns the declared
// type.
func (fb *funcBuilder) typedOperand(ref *typedOperandRef, o *ops) (ir.Type, error) {
	ty, err := fb.b.typ(ref.Type)
	if err != nil {
		return nil, err
	}
	return ty, fb.operand(ref.Op, ty, o)
}

func (fb *funcBuilder) buildInst(block *ir.BasicBlock, ref *instRef) error {
	switch {
	case ref.Def != nil:
		return fb.buildDef(block, ref.Def)
	case ref.Store != nil:
		o := &ops{pend: map[int]string{}}
		if _, err := fb.typedOperand(ref.Store.Val, o); err != nil {
			return err
		}
		if err := fb.operand(ref.Store.Ptr, &ir.PointerType{}, o); err != nil {
			return err
		}
		return fb.emit(block, &ir.Store{Val: o.vals[0], Ptr: o.vals[1]}, "", o)
	case ref.Br != nil:
		return fb.buildBr(block, ref.Br)
	case ref.Ret != nil:
		return fb.buildRet(block, ref.Ret)
	case ref.Call != nil:
		ins, o, err := fb.buildCall(ref.Call)
		if err != nil {
			return err
		}
		return fb.emit(block, ins, "", o)
	}
	return fmt.Errorf("malformed instruction")
}

func (fb *funcBuilder) buildDef(block *ir.BasicBlock, ref *defRef) error {
	name := strings.TrimPrefix(ref.Name, "%")
	r := ref.RHS
	o := &ops{pend: map[int]string{}}

	var ins ir.Instruction
	switch {
	case r.Alloca != nil:
		ty, err := fb.b.typ(r.Alloca.Allocated)
		if err != nil {
			return err
		}
		addr := 0
		if r.Alloca.Addr != nil {
			addr = *r.Alloca.Addr
		}
		ins = &ir.Alloca{Allocated: ty, Addr: addr}

	case r.Load != nil:
		ty, err := fb.b.typ(r.Load.Type)
		if err != nil {
			return err
		}
		if err := fb.operand(r.Load.Ptr, &ir.PointerType{}, o); err != nil {
			return err
		}
		ins = &ir.Load{Ty: ty, Ptr: o.vals[0]}

	case r.Gep != nil:
		src, err := fb.b.typ(r.Gep.Src)
		if err != nil {
			return err
		}
		if err := fb.operand(r.Gep.Ptr, &ir.PointerType{}, o); err != nil {
			return err
		}
		for _, idx := range r.Gep.Indices {
			if err := fb.operand(idx, ir.I64, o); err != nil {
				return err
			}
		}
		indices := o.vals[1:]
		elem, err := ir.GEPResultElem(src, indices)
		if err != nil {
			return err
		}
		ins = &ir.GEP{Src: src, Elem: elem, Ptr: o.vals[0], Indices: indices}

	case r.Cast != nil:
		if err := fb.operand(r.Cast.Val, nil, o); err != nil {
			return err
		}
		to, err := fb.b.typ(r.Cast.To)
		if err != nil {
			return err
		}
		switch r.Cast.Op {
		case "bitcast":
			ins = &ir.BitCast{Val: o.vals[0], To: to}
		case "addrspacecast":
			ins = &ir.AddrSpaceCast{Val: o.vals[0], To: to}
		case "inttoptr":
			ins = &ir.IntToPtr{Val: o.vals[0], To: to}
		case "ptrtoint":
			ins = &ir.PtrToInt{Val: o.vals[0], To: to}
		}

	case r.Select != nil:
		if err := fb.operand(r.Select.Cond, ir.I1, o); err != nil {
			return err
		}
		ty, err := fb.typedOperand(r.Select.Then, o)
		if err != nil {
			return err
		}
		if err := fb.operand(r.Select.Else, ty, o); err != nil {
			return err
		}
		ins = &ir.Select{Cond: o.vals[0], Then: o.vals[1], Else: o.vals[2]}

	case r.Phi != nil:
		ty, err := fb.b.typ(r.Phi.Type)
		if err != nil {
			return err
		}
		edges := make([]ir.PhiEdge, len(r.Phi.Edges))
		for j, er := range r.Phi.Edges {
			if err := fb.operand(er.Val, ty, o); err != nil {
				return err
			}
			from, err := fb.block(er.From)
			if err != nil {
				return err
			}
			edges[j] = ir.PhiEdge{V: o.vals[j], From: from}
		}
		ins = &ir.Phi{Ty: ty, Incoming: edges}

	case r.Call != nil:
		call, co, err := fb.buildCall(r.Call)
		if err != nil {
			return err
		}
		o = co
		ins = call

	case r.Atomic != nil:
		switch r.Atomic.Op {
		case "add", "sub", "and", "or", "xor", "xchg":
		default:
			return fmt.Errorf("unknown atomicrmw operation %q", r.Atomic.Op)
		}
		if err := fb.operand(r.Atomic.Ptr, &ir.PointerType{}, o); err != nil {
			return err
		}
		if _, err := fb.typedOperand(r.Atomic.Val, o); err != nil {
			return err
		}
		ins = &ir.AtomicRMW{Op: r.Atomic.Op, Ptr: o.vals[0], Val: o.vals[1]}

	case r.Cmpx != nil:
		if err := fb.operand(r.Cmpx.Ptr, &ir.PointerType{}, o); err != nil {
			return err
		}
		if _, err := fb.typedOperand(r.Cmpx.Cmp, o); err != nil {
			return err
		}
		if _, err := fb.typedOperand(r.Cmpx.New, o); err != nil {
			return err
		}
		ins = &ir.CmpXchg{Ptr: o.vals[0], Cmp: o.vals[1], New: o.vals[2]}

	case r.Fneg != nil:
		if _, err := fb.typedOperand(r.Fneg.Val, o); err != nil {
			return err
		}
		ins = &ir.FNeg{Val: o.vals[0]}

	case r.Freeze != nil:
		if err := fb.operand(r.Freeze.Val, nil, o); err != nil {
			return err
		}
		ins = &ir.Freeze{Val: o.vals[0]}

	case r.Icmp != nil:
		ty, err := fb.typedOperand(r.Icmp.X, o)
		if err != nil {
			return err
		}
		if err := fb.operand(r.Icmp.Y, ty, o); err != nil {
			return err
		}
		ins = &ir.ICmp{Pred: r.Icmp.Pred, X: o.vals[0], Y: o.vals[1]}

	case r.Bin != nil:
		ty, err := fb.typedOperand(r.Bin.X, o)
		if err != nil {
			return err
		}
		if err := fb.operand(r.Bin.Y, ty, o); err != nil {
			return err
		}
		ins = &ir.BinOp{Op: r.Bin.Op, Ty: ty, X: o.vals[0], Y: o.vals[1]}

	default:
		return fmt.Errorf("malformed instruction")
	}

	return fb.emit(block, ins, name, o)
}

func (fb *funcBuilder) buildCall(ref *callRef) (*ir.Call, *ops, error) {
	ret, err := fb.b.typ(ref.Ret)
	if err != nil {
		return nil, nil, err
	}
	o := &ops{pend: map[int]string{}}
	params := make([]ir.Type, len(ref.Args))
	for j, ar := range ref.Args {
		ty, err := fb.typedOperand(ar, o)
		if err != nil {
			return nil, nil, err
		}
		params[j] = ty
	}
	// Callee occupies the final operand slot, after the arguments.
	if err := fb.operand(ref.Callee, &ir.PointerType{}, o); err != nil {
		return nil, nil, err
	}
	sig := &ir.FuncType{Return: ret, Params: params}
	if f, ok := o.vals[len(ref.Args)].(*ir.Function); ok {
		sig = f.Sig
	}
	args := make([]ir.Value, len(ref.Args))
	copy(args, o.vals[:len(ref.Args)])
	return &ir.Call{Sig: sig, Args: args, Callee: o.vals[len(ref.Args)]}, o, nil
}

func (fb *funcBuilder) buildBr(block *ir.BasicBlock, ref *brRef) error {
	o := &ops{pend: map[int]string{}}
	var cond ir.Value
	if ref.Cond != nil {
		if err := fb.operand(ref.Cond, ir.I1, o); err != nil {
			return err
		}
		cond = o.vals[0]
		if cond == nil {
			// Forward reference: the slot must exist for the fixup pass.
			cond = &ir.Undef{Ty: ir.I1}
		}
		if ref.Else == "" {
			return fmt.Errorf("conditional br needs two target labels")
		}
	}
	then, err := fb.block(ref.Then)
	if err != nil {
		return err
	}
	var els *ir.BasicBlock
	if ref.Else != "" {
		if els, err = fb.block(ref.Else); err != nil {
			return err
		}
	}
	return fb.emit(block, &ir.Br{Cond: cond, Then: then, Else: els}, "", o)
}

func (fb *funcBuilder) buildRet(block *ir.BasicBlock, ref *retRef) error {
	o := &ops{pend: map[int]string{}}
	var v ir.Value
	if ref.Val != nil {
		ty, err := fb.typedOperand(ref.Val, o)
		if err != nil {
			return err
		}
		v = o.vals[0]
		if v == nil {
			v = &ir.Undef{Ty: ty}
		}
	}
	return fb.emit(block, &ir.Ret{V: v}, "", o)
}

// emit appends the instruction, registers its result name, and turns pending
// operand slots into fixups.
func (fb *funcBuilder) emit(block *ir.BasicBlock, ins ir.Instruction, name string, o *ops) error {
	if name != "" {
		if _, ok := fb.locals[name]; ok {
			return fmt.Errorf("duplicate definition of %%%s", name)
		}
		ins.SetName(name)
		fb.locals[name] = ins
	}
	block.Append(ins)
	for idx, nm := range o.pend {
		fb.fixups = append(fb.fixups, fixup{ins: ins, idx: idx, name: nm})
	}
	return nil
}
