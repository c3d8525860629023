package ir

import (
	"strings"
	"testing"
)

func testFunction() (*Function, *Alloca, *Load) {
	f := &Function{Name: "f", Sig: &FuncType{Return: I64}}
	b := f.NewBlock("entry")

	alloca := &Alloca{Allocated: I64}
	alloca.SetName("p")
	b.Append(alloca)

	load := &Load{Ty: I64, Ptr: alloca}
	load.SetName("v")
	b.Append(load)

	ret := &Ret{V: load}
	b.Append(ret)

	return f, alloca, load
}

func TestOperandSlotsRedirectInPlace(t *testing.T) {
	f, alloca, load := testFunction()
	m := &Module{Funcs: []*Function{f}}

	cast := &BitCast{Val: alloca, To: alloca.Type()}
	cast.SetName("c")

	m.ReplaceAllUses(alloca, cast)
	if load.Ptr != Value(cast) {
		t.Fatal("ReplaceAllUses should redirect the load's pointer operand")
	}
	// The cast was not in the graph, so its own operand kept its edge.
	if cast.Val != Value(alloca) {
		t.Fatal("values outside the graph must not be rewritten")
	}
}

func TestUsesOfReturnsSnapshot(t *testing.T) {
	f, alloca, load := testFunction()
	m := &Module{Funcs: []*Function{f}}

	uses := m.UsesOf(alloca)
	if len(uses) != 1 {
		t.Fatalf("expected 1 use of the alloca, got %d", len(uses))
	}
	if uses[0].User != Instruction(load) || uses[0].Index != 0 {
		t.Fatal("use should identify the load's pointer slot")
	}
}

func TestBlockInsertion(t *testing.T) {
	f, alloca, load := testFunction()
	b := f.Blocks[0]

	before := &BitCast{Val: alloca, To: alloca.Type()}
	before.SetName("a")
	b.InsertBefore(before, load)

	after := &BitCast{Val: load, To: I64}
	after.SetName("b")
	b.InsertAfter(after, load)

	want := []string{"%p", "%a", "%v", "%b"}
	for i, name := range want {
		if b.Insts[i].Ident() != name {
			t.Fatalf("inst %d = %s, want %s", i, b.Insts[i].Ident(), name)
		}
	}

	b.Remove(before)
	if len(b.Insts) != 4 || b.Insts[1].Ident() != "%v" {
		t.Fatal("Remove should splice the instruction out")
	}
	if before.Parent() != nil {
		t.Fatal("removed instruction should not keep a parent block")
	}
}

func TestNewNameIsDeterministic(t *testing.T) {
	f := &Function{Name: "f"}
	if got := f.NewName("cast"); got != "cast.1" {
		t.Errorf("NewName = %q, want cast.1", got)
	}
	if got := f.NewName("cast"); got != "cast.2" {
		t.Errorf("NewName = %q, want cast.2", got)
	}
}

func TestGEPResultElem(t *testing.T) {
	st := &StructType{Fields: []Type{I32, &ArrayType{Elem: I64, Len: 8}}}
	indices := []Value{
		&ConstInt{Ty: I64, V: 0},
		&ConstInt{Ty: I64, V: 1},
		&ConstInt{Ty: I64, V: 3},
	}
	got, err := GEPResultElem(st, indices)
	if err != nil {
		t.Fatalf("GEPResultElem: %v", err)
	}
	if !Equal(got, I64) {
		t.Errorf("GEPResultElem = %s, want i64", got)
	}

	if _, err := GEPResultElem(st, indices[:0]); err != nil {
		t.Errorf("empty index list should be accepted: %v", err)
	}
	if _, err := GEPResultElem(st, []Value{indices[0], &ConstInt{Ty: I64, V: 9}}); err == nil {
		t.Error("out-of-range struct index should be rejected")
	}
	if _, err := GEPResultElem(I32, []Value{indices[0], indices[1]}); err == nil {
		t.Error("indexing into a scalar should be rejected")
	}
}

func TestConstExprMaterialization(t *testing.T) {
	g := &Global{Name: "g", ValueType: I64}
	ce := &ConstExpr{Op: "gep", Src: I64, Elem: I64, Args: []Constant{g, &ConstInt{Ty: I64, V: 2}}}

	ins := ce.Instruction("demoted.1")
	gep, ok := ins.(*GEP)
	if !ok {
		t.Fatalf("expected a GEP, got %T", ins)
	}
	if gep.Ptr != Value(g) || len(gep.Indices) != 1 {
		t.Fatal("materialized GEP should keep base and indices")
	}
	if gep.Ident() != "%demoted.1" {
		t.Errorf("Ident = %s, want %%demoted.1", gep.Ident())
	}

	cast := &ConstExpr{Op: "bitcast", Args: []Constant{g}, To: &PointerType{}}
	if _, ok := cast.Instruction("c").(*BitCast); !ok {
		t.Error("bitcast expression should materialize as a BitCast")
	}
}

func TestPrinterRendersFunction(t *testing.T) {
	f, _, _ := testFunction()
	m := &Module{Name: "m", Funcs: []*Function{f}}

	out := Print(m)
	for _, want := range []string{
		"func @f(): i64 {",
		"entry:",
		"  %p = alloca i64",
		"  %v = load i64, %p",
		"  ret i64 %v",
		"}",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("printed module missing %q:\n%s", want, out)
		}
	}
}
