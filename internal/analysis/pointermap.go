package analysis

import (
	"relic/internal/ir"
)

// PointerMap records the reconstructed type of every value the analysis could
// classify. Pointer-valued entries map to *ir.TypedPointerType; aggregate
// constants whose element types were re-synthesized map to the synthesized
// aggregate type; functions live in their own namespace keyed by the function
// value, since a caller asking for a parameter's type looks it up by function
// and index, not by call-site value.
//
// A map is owned by the analysis run that built it and the rewrite that
// consumes it. It is never shared across modules.
type PointerMap struct {
	types map[ir.Value]ir.Type
	fns   map[*ir.Function]*ir.FuncType
}

// NewPointerMap returns an empty map. Rewriting passes that derive their own
// value typings (the marker collector) use this directly; everyone else gets a
// populated map from Run.
func NewPointerMap() *PointerMap {
	return &PointerMap{
		types: map[ir.Value]ir.Type{},
		fns:   map[*ir.Function]*ir.FuncType{},
	}
}

// Put records the reconstructed type of a value, overwriting any previous
// entry. First-writer-wins policies are enforced by callers via Entry.
func (pm *PointerMap) Put(v ir.Value, t ir.Type) {
	pm.types[v] = t
}

// PutFunction records a function's reconstructed signature.
func (pm *PointerMap) PutFunction(f *ir.Function, sig *ir.FuncType) {
	pm.fns[f] = sig
}

// Entry returns the recorded type of a value without applying the fallback.
func (pm *PointerMap) Entry(v ir.Value) (ir.Type, bool) {
	t, ok := pm.types[v]
	return t, ok
}

// Lookup returns the reconstructed type of a value. A pointer with no entry
// falls back to a single-byte pointee at the value's address space; the query
// never fails.
func (pm *PointerMap) Lookup(v ir.Value) ir.Type {
	if t, ok := pm.types[v]; ok {
		return t
	}
	return &ir.TypedPointerType{Elem: ir.I8, AddrSpace: ir.AddrSpace(v.Type())}
}

// Pointee returns the reconstructed pointee type of a pointer value, applying
// the single-byte fallback.
func (pm *PointerMap) Pointee(v ir.Value) ir.Type {
	if tp, ok := pm.Lookup(v).(*ir.TypedPointerType); ok {
		return tp.Elem
	}
	return ir.I8
}

// Function returns a function's reconstructed signature, or its declared one
// when the analysis never classified it.
func (pm *PointerMap) Function(f *ir.Function) *ir.FuncType {
	if sig, ok := pm.fns[f]; ok {
		return sig
	}
	return f.Sig
}

// HasFunction reports whether a reconstructed signature was recorded for f.
func (pm *PointerMap) HasFunction(f *ir.Function) bool {
	_, ok := pm.fns[f]
	return ok
}

// Delete removes a value's entry. The in-place rewriter drops entries for
// instructions it erases from the graph.
func (pm *PointerMap) Delete(v ir.Value) {
	delete(pm.types, v)
}

// Len returns the number of value entries, function signatures excluded.
func (pm *PointerMap) Len() int {
	return len(pm.types)
}
