package ir

import "testing"

func TestTypeStrings(t *testing.T) {
	tests := []struct {
		ty   Type
		want string
	}{
		{I1, "i1"},
		{I64, "i64"},
		{F32, "f32"},
		{Void, "void"},
		{&PointerType{}, "ptr"},
		{&PointerType{AddrSpace: 3}, "ptr(3)"},
		{&StructType{Fields: []Type{I32, &PointerType{}}}, "{i32, ptr}"},
		{&ArrayType{Elem: I8, Len: 16}, "[16 x i8]"},
		{&VectorType{Elem: F32, Len: 4}, "<4 x f32>"},
		{&FuncType{Return: Void, Params: []Type{I64}}, "void (i64)"},
	}
	for _, tt := range tests {
		if got := tt.ty.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestEqualIsStructural(t *testing.T) {
	a := &StructType{Fields: []Type{I32, &PointerType{AddrSpace: 1}}}
	b := &StructType{Fields: []Type{&IntType{Bits: 32}, &PointerType{AddrSpace: 1}}}
	if !Equal(a, b) {
		t.Error("structurally identical structs should compare equal")
	}

	c := &StructType{Fields: []Type{I32, &PointerType{}}}
	if Equal(a, c) {
		t.Error("pointer address spaces should be part of equality")
	}

	if Equal(&ArrayType{Elem: I8, Len: 4}, &VectorType{Elem: I8, Len: 4}) {
		t.Error("arrays and vectors should not compare equal")
	}

	tp1 := &TypedPointerType{Elem: I32, AddrSpace: 0}
	tp2 := &TypedPointerType{Elem: I32, AddrSpace: 0}
	if !Equal(tp1, tp2) {
		t.Error("typed pointers with the same pointee should compare equal")
	}
	if Equal(tp1, &TypedPointerType{Elem: I64}) {
		t.Error("typed pointers with different pointees should not compare equal")
	}
}

func TestAddrSpace(t *testing.T) {
	if got := AddrSpace(&PointerType{AddrSpace: 5}); got != 5 {
		t.Errorf("AddrSpace = %d, want 5", got)
	}
	if got := AddrSpace(I32); got != 0 {
		t.Errorf("AddrSpace of non-pointer = %d, want 0", got)
	}
	if got := AddrSpace(nil); got != 0 {
		t.Errorf("AddrSpace of nil = %d, want 0", got)
	}
}

func TestNullInterning(t *testing.T) {
	if Null(0) != Null(0) {
		t.Error("null constants should be interned per address space")
	}
	if Null(0) == Null(1) {
		t.Error("different address spaces should get distinct null constants")
	}
}
