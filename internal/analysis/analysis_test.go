package analysis

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

func pointee(t *testing.T, pm *PointerMap, v ir.Value) ir.Type {
	t.Helper()
	tp, ok := pm.Lookup(v).(*ir.TypedPointerType)
	require.True(t, ok, "expected a typed pointer for %s", v.Ident())
	return tp.Elem
}

func TestGlobalSeedsStorageType(t *testing.T) {
	m := mustParse(t, `
global @g {i32, i64}

func @f(): i32 {
entry:
  %v = load i32, @g
  ret i32 %v
}
`)
	pm := Run(m)

	g := m.Global("g")
	st, ok := g.ValueType.(*ir.StructType)
	require.True(t, ok)
	assert.True(t, ir.Equal(pointee(t, pm, g), st))
}

func TestAllocaSeedsAllocatedType(t *testing.T) {
	m := mustParse(t, `
func @f(i64 %n) {
entry:
  %p = alloca i64
  store i64 %n, %p
  ret
}
`)
	pm := Run(m)

	p := m.Func("f").Blocks[0].Insts[0]
	assert.True(t, ir.Equal(pointee(t, pm, p), ir.I64))
}

func TestBackwardFromLoadThroughSelect(t *testing.T) {
	m := mustParse(t, `
func @f(i1 %c, ptr %a, ptr %b): i32 {
entry:
  %p = select %c, ptr %a, %b
  %v = load i32, %p
  ret i32 %v
}
`)
	pm := Run(m)

	f := m.Func("f")
	sel := f.Blocks[0].Insts[0]
	assert.True(t, ir.Equal(pointee(t, pm, sel), ir.I32))
	// The implied type reaches the select's transitive producers.
	assert.True(t, ir.Equal(pointee(t, pm, f.Params[1]), ir.I32))
	assert.True(t, ir.Equal(pointee(t, pm, f.Params[2]), ir.I32))
}

func TestLoopPhiPropagationTerminates(t *testing.T) {
	m := mustParse(t, `
func @f(i1 %c): i64 {
entry:
  %a = alloca i64
  %b = alloca i64
  br head
head:
  %p = phi ptr [%a, entry], [%q, body]
  br %c, body, exit
body:
  %q = select %c, ptr %p, %b
  br head
exit:
  %v = load i64, %p
  ret i64 %v
}
`)
	pm := Run(m)

	f := m.Func("f")
	phi := f.Blocks[1].Insts[0]
	sel := f.Blocks[2].Insts[0]
	assert.True(t, ir.Equal(pointee(t, pm, phi), ir.I64))
	assert.True(t, ir.Equal(pointee(t, pm, sel), ir.I64))
}

func TestParamConflictFallsBack(t *testing.T) {
	m := mustParse(t, `
func @callee(ptr %p) {
entry:
  ret
}

func @caller() {
entry:
  %a = alloca i32
  %b = alloca i64
  call void @callee(ptr %a)
  call void @callee(ptr %b)
  ret
}
`)
	pm := Run(m)

	sig := pm.Function(m.Func("callee"))
	tp, ok := sig.Params[0].(*ir.TypedPointerType)
	require.True(t, ok)
	assert.True(t, ir.Equal(tp.Elem, ir.I8), "conflicting call sites must not silently pick one type")
}

func TestParamAgreementAcrossCallSites(t *testing.T) {
	m := mustParse(t, `
func @callee(ptr %p) {
entry:
  ret
}

func @caller() {
entry:
  %a = alloca i32
  %b = alloca i32
  call void @callee(ptr %a)
  call void @callee(ptr %b)
  ret
}
`)
	pm := Run(m)

	sig := pm.Function(m.Func("callee"))
	tp, ok := sig.Params[0].(*ir.TypedPointerType)
	require.True(t, ok)
	assert.True(t, ir.Equal(tp.Elem, ir.I32))
}

func TestHintOverridesParamType(t *testing.T) {
	m := mustParse(t, `
func @ext(ptr %p, i64 %n) hint(0: f32)
`)
	pm := Run(m)

	f := m.Func("ext")
	sig := pm.Function(f)
	tp, ok := sig.Params[0].(*ir.TypedPointerType)
	require.True(t, ok)
	assert.True(t, ir.Equal(tp.Elem, ir.F32))
	assert.True(t, ir.Equal(sig.Params[1], ir.I64))
	assert.True(t, ir.Equal(pointee(t, pm, f.Params[0]), ir.F32))
}

func TestReturnSites(t *testing.T) {
	m := mustParse(t, `
func @agree(i1 %c): ptr {
entry:
  %a = alloca i32
  %b = alloca i32
  br %c, t, e
t:
  ret ptr %a
e:
  ret ptr %b
}

func @conflict(i1 %c): ptr {
entry:
  %a = alloca i32
  %b = alloca i64
  br %c, t, e
t:
  ret ptr %a
e:
  ret ptr %b
}

func @decl(): ptr
`)
	pm := Run(m)

	for name, want := range map[string]ir.Type{
		"agree":    ir.I32,
		"conflict": ir.I8,
		"decl":     ir.I8,
	} {
		sig := pm.Function(m.Func(name))
		tp, ok := sig.Return.(*ir.TypedPointerType)
		require.True(t, ok, name)
		assert.True(t, ir.Equal(tp.Elem, want), "return of @%s", name)
	}
}

func TestCtorListClassification(t *testing.T) {
	m := mustParse(t, `
global @flag i32

func @init() {
entry:
  ret
}

global @llvm.global_ctors [1 x {i32, ptr, ptr}] = [{65535, @init, @flag}]
`)
	pm := Run(m)

	g := m.Global("llvm.global_ctors")
	require.NotNil(t, g)
	at, ok := pointee(t, pm, g).(*ir.ArrayType)
	require.True(t, ok)
	assert.Equal(t, 1, at.Len)

	st, ok := at.Elem.(*ir.StructType)
	require.True(t, ok)
	require.Len(t, st.Fields, 3)
	assert.True(t, ir.Equal(st.Fields[0], ir.I32))

	fn, ok := st.Fields[1].(*ir.TypedPointerType)
	require.True(t, ok)
	_, ok = fn.Elem.(*ir.FuncType)
	assert.True(t, ok)

	data, ok := st.Fields[2].(*ir.TypedPointerType)
	require.True(t, ok)
	assert.True(t, ir.Equal(data.Elem, ir.I32))
}

func TestCtorListMixedDataGlobals(t *testing.T) {
	m := mustParse(t, `
global @a i32
global @b i64

func @f1() {
entry:
  ret
}

func @f2() {
entry:
  ret
}

global @llvm.global_ctors [2 x {i32, ptr, ptr}] = [{65535, @f1, @a}, {65535, @f2, @b}]
`)

	var pm *PointerMap
	require.NotPanics(t, func() { pm = Run(m) })

	// No single element type fits both entries; the declared one stands.
	g := m.Global("llvm.global_ctors")
	require.NotNil(t, g)
	assert.True(t, ir.Equal(pointee(t, pm, g), g.ValueType))

	// The data globals themselves still classify individually.
	assert.True(t, ir.Equal(pointee(t, pm, m.Global("a")), ir.I32))
	assert.True(t, ir.Equal(pointee(t, pm, m.Global("b")), ir.I64))
}

func TestLookupTotality(t *testing.T) {
	m := mustParse(t, `
global @g i64

func @f(ptr %unknown, i1 %c): ptr {
entry:
  %p = alloca i32
  %q = select %c, ptr %unknown, %p
  %r = inttoptr 42, ptr
  ret ptr %q
}
`)
	pm := Run(m)

	var values []ir.Value
	for _, g := range m.Globals {
		values = append(values, g)
	}
	for _, f := range m.Funcs {
		for _, a := range f.Params {
			values = append(values, a)
		}
		for _, b := range f.Blocks {
			for _, ins := range b.Insts {
				values = append(values, ins)
			}
		}
	}
	for _, v := range values {
		if !ir.IsPointer(v.Type()) {
			continue
		}
		tp, ok := pm.Lookup(v).(*ir.TypedPointerType)
		require.True(t, ok, "lookup failed for %s", v.Ident())
		require.NotNil(t, tp.Elem)
		assert.Equal(t, ir.AddrSpace(v.Type()), tp.AddrSpace)
	}

	// %r has no structural rule at all; it resolves to the fallback.
	r := m.Func("f").Blocks[0].Insts[2]
	assert.True(t, ir.Equal(pm.Pointee(r), ir.I8))
}

func TestDeterminism(t *testing.T) {
	const source = `
global @g {i32, ptr}

func @f(i1 %c): i64 {
entry:
  %a = alloca i64
  %b = alloca i64
  %p = select %c, ptr %a, %b
  %v = load i64, %p
  ret i64 %v
}
`
	m1 := mustParse(t, source)
	m2 := mustParse(t, source)
	pm1 := Run(m1)
	pm2 := Run(m2)

	assert.Equal(t, pm1.Len(), pm2.Len())
	for i, f1 := range m1.Funcs {
		for j, b1 := range f1.Blocks {
			for k, ins1 := range b1.Insts {
				ins2 := m2.Funcs[i].Blocks[j].Insts[k]
				assert.True(t, ir.Equal(pm1.Lookup(ins1), pm2.Lookup(ins2)),
					"entry mismatch at %s", ins1.Ident())
			}
		}
	}
}
