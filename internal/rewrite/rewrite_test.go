package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relic/internal/asm"
	"relic/internal/ir"
)

func mustParse(t *testing.T, source string) *ir.Module {
	t.Helper()
	m, err := asm.Parse("fixture.ir", source)
	require.NoError(t, err)
	return m
}

func TestRemoveFreeze(t *testing.T) {
	m := mustParse(t, `
func @f(i64 %n): i64 {
entry:
  %x = freeze %n
  %y = add i64 %x, 1
  ret i64 %y
}
`)
	pass := &RemoveFreeze{}
	assert.True(t, pass.Apply(m))

	entry := m.Func("f").Blocks[0]
	require.Len(t, entry.Insts, 2)
	add, ok := entry.Insts[0].(*ir.BinOp)
	require.True(t, ok)
	assert.Same(t, m.Func("f").Params[0], add.X)

	assert.False(t, pass.Apply(m))
}

func TestReplaceFNeg(t *testing.T) {
	m := mustParse(t, `
func @f(f64 %x): f64 {
entry:
  %n = fneg f64 %x
  ret f64 %n
}
`)
	pass := &ReplaceFNeg{}
	assert.True(t, pass.Apply(m))

	entry := m.Func("f").Blocks[0]
	require.Len(t, entry.Insts, 2)
	sub, ok := entry.Insts[0].(*ir.BinOp)
	require.True(t, ok)
	assert.Equal(t, "fsub", sub.Op)
	zero, ok := sub.X.(*ir.ConstFloat)
	require.True(t, ok)
	assert.Equal(t, "-0.0", zero.Ident())
	assert.Same(t, m.Func("f").Params[0], sub.Y)

	ret := entry.Insts[1].(*ir.Ret)
	assert.Same(t, ir.Value(sub), ret.V)

	assert.False(t, pass.Apply(m))
}

func TestDemoteConstExprs(t *testing.T) {
	m := mustParse(t, `
global @g {i32, i64}

func @f(): i64 {
entry:
  %v = load i64, gep({i32, i64}, @g, 0, 1)
  ret i64 %v
}
`)
	pass := &DemoteConstExprs{}
	assert.True(t, pass.Apply(m))

	entry := m.Func("f").Blocks[0]
	require.Len(t, entry.Insts, 3)
	gep, ok := entry.Insts[0].(*ir.GEP)
	require.True(t, ok)
	load := entry.Insts[1].(*ir.Load)
	assert.Same(t, ir.Value(gep), load.Ptr)
	assert.True(t, ir.Equal(gep.Elem, ir.I64))

	// Completeness: no instruction keeps a pointer-producing constant
	// expression operand.
	m.EachInst(func(ins ir.Instruction) {
		for _, slot := range ins.Operands() {
			if ce, ok := (*slot).(*ir.ConstExpr); ok {
				assert.False(t, ir.IsPointer(ce.Type()),
					"%s still has constant expression operand %s", ins.Ident(), ce.Ident())
			}
		}
	})

	assert.False(t, pass.Apply(m))
}

func TestDemoteAtPhiUsesPredecessor(t *testing.T) {
	m := mustParse(t, `
global @g i64

func @f(i1 %c): ptr {
entry:
  br %c, a, b
a:
  br done
b:
  br done
done:
  %p = phi ptr [gep(i64, @g, 0), a], [null, b]
  ret ptr %p
}
`)
	assert.True(t, (&DemoteConstExprs{}).Apply(m))

	f := m.Func("f")
	a := f.Blocks[1]
	require.Len(t, a.Insts, 2)
	gep, ok := a.Insts[0].(*ir.GEP)
	require.True(t, ok, "demoted instruction goes before the incoming block's terminator")

	phi := f.Blocks[3].Insts[0].(*ir.Phi)
	assert.Same(t, ir.Value(gep), phi.Incoming[0].V)
}

func TestGlobalLoadGetsMarker(t *testing.T) {
	m := mustParse(t, `
global @g i32

func @f(): i32 {
entry:
  %v = load i32, @g
  ret i32 %v
}
`)
	assert.True(t, NewRewriter(V70).Run(m))

	load := findLoad(t, m.Func("f"))
	cast, ok := load.Ptr.(*ir.BitCast)
	require.True(t, ok)
	assert.True(t, IsNoopCast(cast))
	assert.Same(t, ir.Value(m.Global("g")), cast.Val)
	assert.True(t, ir.Equal(cast.To, m.Global("g").Type()))

	pm := BuildMarkerMap(m)
	assert.True(t, ir.Equal(pm.Pointee(m.Global("g")), ir.I32))
	assert.True(t, ir.Equal(pm.Pointee(load.Ptr), ir.I32))
}

func TestAllocaResultIsWrapped(t *testing.T) {
	m := mustParse(t, `
func @f(i32 %n) {
entry:
  %p = alloca i32
  store i32 %n, %p
  ret
}
`)
	assert.True(t, NewRewriter(V70).Run(m))

	f := m.Func("f")
	alloca := f.Blocks[0].Insts[0].(*ir.Alloca)
	uses := m.UsesOf(alloca)
	require.Len(t, uses, 1)
	cast, ok := ir.Value(uses[0].User).(*ir.BitCast)
	require.True(t, ok)
	assert.True(t, IsNoopCast(cast))
	assert.Same(t, ir.Value(alloca), cast.Val)

	pm := BuildMarkerMap(m)
	assert.True(t, ir.Equal(pm.Pointee(alloca), ir.I32))
}

func TestLocalSelfDescription(t *testing.T) {
	m := mustParse(t, `
global @g {i32, i64}

func @f(ptr %u, i1 %c, i64 %n): i64 {
entry:
  %p = alloca i64
  %q = select %c, ptr %p, %u
  store i64 %n, %q
  %e = gep {i32, i64}, @g, 0, 1
  %w = atomicrmw add %e, i64 %n
  %old = cmpxchg %p, i64 %n, i64 %w
  %v = load i64, %q
  ret i64 %v
}
`)
	assert.True(t, NewRewriter(V70).Run(m))

	// Postcondition: every memory site's pointer operand is a marker, with
	// no exceptions for sites the analysis knows nothing about.
	m.EachInst(func(ins ir.Instruction) {
		var ptr ir.Value
		switch i := ins.(type) {
		case *ir.Load:
			ptr = i.Ptr
		case *ir.Store:
			ptr = i.Ptr
		case *ir.AtomicRMW:
			ptr = i.Ptr
		case *ir.CmpXchg:
			ptr = i.Ptr
		case *ir.GEP:
			ptr = i.Ptr
		default:
			return
		}
		assert.True(t, IsNoopCast(ptr), "%s pointer operand %s is not a marker", ins.Ident(), ptr.Ident())
	})

	assert.NotPanics(t, func() { BuildMarkerMap(m) })
}

func TestMarkerInsertionIsIdempotent(t *testing.T) {
	source := `
global @g i64

func @f(i1 %c, i64 %n): i64 {
entry:
  %p = alloca i64
  %q = select %c, ptr %p, @g
  store i64 %n, %q
  %v = load i64, %p
  ret i64 %v
}
`
	m := mustParse(t, source)
	r := NewRewriter(V70)
	assert.True(t, r.Run(m))

	printed := ir.Print(m)
	assert.False(t, r.Run(m), "second run must report no change")
	assert.Equal(t, printed, ir.Print(m))
}

func TestCallArgumentHintMarker(t *testing.T) {
	m := mustParse(t, `
func @ext(ptr %p, i64 %n) hint(0: f32)

func @caller(ptr %q) {
entry:
  call void @ext(ptr %q, i64 7)
  ret
}
`)
	assert.True(t, (&InsertMarkers{}).Apply(m))

	call := m.Func("caller").Blocks[0].Insts[1].(*ir.Call)
	cast, ok := call.Args[0].(*ir.BitCast)
	require.True(t, ok)
	assert.True(t, IsNoopCast(cast))
	assert.Same(t, ir.Value(m.Func("caller").Params[0]), cast.Val)

	pm := BuildMarkerMap(m)
	sig := pm.Function(m.Func("ext"))
	tp, ok := sig.Params[0].(*ir.TypedPointerType)
	require.True(t, ok)
	assert.True(t, ir.Equal(tp.Elem, ir.F32))
	assert.True(t, ir.Equal(pm.Lookup(call.Args[0]), tp))
}

func TestMarkerMapPanicsOnUnwrappedModule(t *testing.T) {
	m := mustParse(t, `
func @f(ptr %p): i32 {
entry:
  %v = load i32, %p
  ret i32 %v
}
`)
	assert.Panics(t, func() { BuildMarkerMap(m) })
}

func TestRetypePointersRewritesDisagreeingSites(t *testing.T) {
	m := mustParse(t, `
func @f(ptr %u, i32 %n): i64 {
entry:
  %p = alloca i32
  store i32 %n, %p
  %a = load i32, %u
  %b = load i64, %u
  ret i64 %b
}
`)
	assert.True(t, (&RetypePointers{}).Apply(m))

	f := m.Func("f")
	var loads []*ir.Load
	m.EachInst(func(ins ir.Instruction) {
		if l, ok := ins.(*ir.Load); ok {
			loads = append(loads, l)
		}
	})
	require.Len(t, loads, 2)

	// The first load agrees with the inferred type of %u and keeps its raw
	// operand; the second disagrees and goes through a cast.
	assert.Same(t, ir.Value(f.Params[0]), loads[0].Ptr)
	cast, ok := loads[1].Ptr.(*ir.BitCast)
	require.True(t, ok)
	assert.True(t, IsNoopCast(cast))
	assert.Same(t, ir.Value(f.Params[0]), cast.Val)

	// The agreeing store through the alloca is untouched.
	store := f.Blocks[0].Insts[1].(*ir.Store)
	alloca := f.Blocks[0].Insts[0]
	assert.Same(t, ir.Value(alloca), store.Ptr)
}

func TestRetypePointersNoChangeWhenAgreeing(t *testing.T) {
	m := mustParse(t, `
func @f(i32 %n): i32 {
entry:
  %p = alloca i32
  store i32 %n, %p
  %v = load i32, %p
  ret i32 %v
}
`)
	assert.False(t, (&RetypePointers{}).Apply(m))
}

func findLoad(t *testing.T, f *ir.Function) *ir.Load {
	t.Helper()
	for _, b := range f.Blocks {
		for _, ins := range b.Insts {
			if l, ok := ins.(*ir.Load); ok {
				return l
			}
		}
	}
	t.Fatal("no load in function")
	return nil
}
