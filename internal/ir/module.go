package ir

// Module is the root of the graph: globals and functions, mutated in place by
// the rewriting passes.
type Module struct {
	Name    string
	Globals []*Global
	Funcs   []*Function
}

// Global looks up a global by name.
func (m *Module) Global(name string) *Global {
	for _, g := range m.Globals {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Func looks up a function by name.
func (m *Module) Func(name string) *Function {
	for _, f := range m.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// EachInst calls fn for every instruction in the module, in deterministic
// program order. fn must not add or remove instructions; passes that mutate
// collect a worklist here first and edit afterwards.
func (m *Module) EachInst(fn func(Instruction)) {
	for _, f := range m.Funcs {
		for _, b := range f.Blocks {
			for _, ins := range b.Insts {
				fn(ins)
			}
		}
	}
}

// Use identifies a single operand slot of an instruction: User's operand
// number Index references the used value.
type Use struct {
	User  Instruction
	Index int
}

// UsesOf collects every instruction operand slot that currently references v.
// The result is a snapshot; it stays valid while the caller mutates the
// graph.
func (m *Module) UsesOf(v Value) []Use {
	var uses []Use
	m.EachInst(func(ins Instruction) {
		for idx, op := range ins.Operands() {
			if *op == v {
				uses = append(uses, Use{User: ins, Index: idx})
			}
		}
	})
	return uses
}

// ReplaceAllUses redirects every operand slot referencing old to new.
func (m *Module) ReplaceAllUses(old, new Value) {
	for _, u := range m.UsesOf(old) {
		*u.User.Operands()[u.Index] = new
	}
}

// BasicBlock is an ordered instruction sequence ending in a terminator.
type BasicBlock struct {
	Name   string
	Parent *Function
	Insts  []Instruction
}

// Append adds an instruction at the end of the block.
func (b *BasicBlock) Append(ins Instruction) {
	ins.setParent(b)
	b.Insts = append(b.Insts, ins)
}

// Terminator returns the block's terminator, or nil if the block is not yet
// terminated.
func (b *BasicBlock) Terminator() Instruction {
	if len(b.Insts) == 0 {
		return nil
	}
	last := b.Insts[len(b.Insts)-1]
	if !last.IsTerminator() {
		return nil
	}
	return last
}

func (b *BasicBlock) index(ins Instruction) int {
	for i, cur := range b.Insts {
		if cur == ins {
			return i
		}
	}
	return -1
}

// InsertBefore places ins immediately before pos, which must be in this
// block.
func (b *BasicBlock) InsertBefore(ins, pos Instruction) {
	i := b.index(pos)
	if i < 0 {
		panic("ir: insertion point not in block")
	}
	ins.setParent(b)
	b.Insts = append(b.Insts, nil)
	copy(b.Insts[i+1:], b.Insts[i:])
	b.Insts[i] = ins
}

// InsertAfter places ins immediately after pos, which must be in this block.
func (b *BasicBlock) InsertAfter(ins, pos Instruction) {
	i := b.index(pos)
	if i < 0 {
		panic("ir: insertion point not in block")
	}
	ins.setParent(b)
	b.Insts = append(b.Insts, nil)
	copy(b.Insts[i+2:], b.Insts[i+1:])
	b.Insts[i+1] = ins
}

// Remove erases ins from the block. The instruction keeps its operand edges;
// callers redirect its uses first.
func (b *BasicBlock) Remove(ins Instruction) {
	i := b.index(ins)
	if i < 0 {
		panic("ir: instruction not in block")
	}
	copy(b.Insts[i:], b.Insts[i+1:])
	b.Insts = b.Insts[:len(b.Insts)-1]
	ins.setParent(nil)
}
