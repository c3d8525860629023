package ir

import (
	"fmt"
	"strings"
)

// Printer renders a module in the textual form the assembler accepts.
// Printing is deterministic: it follows declaration and instruction order and
// nothing else, so two structurally identical modules print identically.
type Printer struct {
	out strings.Builder
}

// Print returns the textual representation of a module.
func Print(m *Module) string {
	p := &Printer{}
	p.printModule(m)
	return p.out.String()
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.out.WriteString(fmt.Sprintf(format, args...))
	p.out.WriteString("\n")
}

func (p *Printer) printModule(m *Module) {
	for _, g := range m.Globals {
		p.printGlobal(g)
	}
	if len(m.Globals) > 0 && len(m.Funcs) > 0 {
		p.writeLine("")
	}
	for i, f := range m.Funcs {
		if i > 0 {
			p.writeLine("")
		}
		p.printFunc(f)
	}
}

func (p *Printer) printGlobal(g *Global) {
	decl := "global " + g.Ident()
	if g.Addr != 0 {
		decl += fmt.Sprintf(" addrspace(%d)", g.Addr)
	}
	decl += " " + g.ValueType.String()
	if g.Init != nil {
		decl += " = " + g.Init.Ident()
	}
	p.writeLine("%s", decl)
}

func (p *Printer) printFunc(f *Function) {
	params := make([]string, len(f.Params))
	for i, a := range f.Params {
		params[i] = fmt.Sprintf("%s %s", a.Ty, a.Ident())
	}
	head := fmt.Sprintf("func %s(%s)", f.Ident(), strings.Join(params, ", "))
	if !Equal(f.Sig.Return, Void) {
		head += ": " + f.Sig.Return.String()
	}
	if len(f.Hints) > 0 {
		hints := make([]string, len(f.Hints))
		for i, h := range f.Hints {
			hints[i] = fmt.Sprintf("%d: %s", h.Param, h.Witness.Type())
		}
		head += fmt.Sprintf(" hint(%s)", strings.Join(hints, ", "))
	}
	if f.IsDecl() {
		p.writeLine("%s", head)
		return
	}
	p.writeLine("%s {", head)
	for _, b := range f.Blocks {
		p.writeLine("%s:", b.Name)
		for _, ins := range b.Insts {
			p.writeLine("  %s", ins)
		}
	}
	p.writeLine("}")
}
