package asm

// Grammar for the textual IR form. The syntax is deliberately small: it
// covers exactly the constructs the rewriting engine operates on. Every rule
// is anchored on a leading keyword or token class so the parser never needs
// unbounded lookahead.

type fileRef struct {
	Decls []*declRef `@@*`
}

type declRef struct {
	Global *globalRef `  @@`
	Func   *funcRef   `| @@`
}

type globalRef struct {
	Name string    `"global" @GlobalSym`
	Addr *int      `[ "addrspace" "(" @Int ")" ]`
	Type *typeRef  `@@`
	Init *constRef `[ "=" @@ ]`
}

type funcRef struct {
	Name   string      `"func" @GlobalSym "("`
	Params []*paramRef `[ @@ { "," @@ } ] ")"`
	Ret    *typeRef    `[ ":" @@ ]`
	Hints  []*hintRef  `[ "hint" "(" @@ { "," @@ } ")" ]`
	Body   *bodyRef    `@@?`
}

type paramRef struct {
	Type *typeRef `@@`
	Name string   `@Local`
}

type hintRef struct {
	Param int      `@Int ":"`
	Type  *typeRef `@@`
}

type bodyRef struct {
	Brace  bool        `@"{"`
	Blocks []*blockRef `@@* "}"`
}

type blockRef struct {
	Label string     `@Ident ":"`
	Insts []*instRef `@@*`
}

// Types

type typeRef struct {
	Ptr    *ptrTypeRef    `  @@`
	Array  *arrayTypeRef  `| @@`
	Vector *vectorTypeRef `| @@`
	Struct *structTypeRef `| @@`
	Name   string         `| @Ident`
}

type ptrTypeRef struct {
	Kw   bool `@"ptr"`
	Addr *int `[ "(" @Int ")" ]`
}

type arrayTypeRef struct {
	Len  int      `"[" @Int`
	Elem *typeRef `"x" @@ "]"`
}

type vectorTypeRef struct {
	Len  int      `"<" @Int`
	Elem *typeRef `"x" @@ ">"`
}

type structTypeRef struct {
	Brace  bool       `@"{"`
	Fields []*typeRef `[ @@ { "," @@ } ] "}"`
}

// Constants

type constRef struct {
	Null   bool          `  @"null"`
	Undef  *typeRef      `| "undef" @@`
	Expr   *constExprRef `| @@`
	Global string        `| @GlobalSym`
	Float  *float64      `| @Float`
	Int    *int64        `| @Int`
	Struct *constAggRef  `| @@`
	Array  *constArrRef  `| @@`
	Vector *constVecRef  `| @@`
}

type constExprRef struct {
	Gep  *constGepRef  `  @@`
	Cast *constCastRef `| @@`
}

type constGepRef struct {
	Src     *typeRef  `"gep" "(" @@`
	Base    *constRef `"," @@`
	Indices []int64   `{ "," @Int } ")"`
}

type constCastRef struct {
	Op  string    `@("bitcast" | "addrspacecast" | "inttoptr" | "ptrtoint") "("`
	Arg *constRef `@@ ","`
	To  *typeRef  `@@ ")"`
}

type constAggRef struct {
	Brace bool        `@"{"`
	Elems []*constRef `[ @@ { "," @@ } ] "}"`
}

type constArrRef struct {
	Brack bool        `@"["`
	Elems []*constRef `[ @@ { "," @@ } ] "]"`
}

type constVecRef struct {
	Lt    bool        `@"<"`
	Elems []*constRef `[ @@ { "," @@ } ] ">"`
}

// Instructions

type instRef struct {
	Def   *defRef      `  @@`
	Store *storeRef    `| @@`
	Br    *brRef       `| @@`
	Ret   *retRef      `| @@`
	Call  *callRef     `| @@`
}

type defRef struct {
	Name string  `@Local "="`
	RHS  *rhsRef `@@`
}

type rhsRef struct {
	Alloca *allocaRef  `  @@`
	Load   *loadRef    `| @@`
	Gep    *gepRef     `| @@`
	Cast   *castRef    `| @@`
	Select *selectRef  `| @@`
	Phi    *phiRef     `| @@`
	Call   *callRef    `| @@`
	Atomic *atomicRef  `| @@`
	Cmpx   *cmpxchgRef `| @@`
	Fneg   *fnegRef    `| @@`
	Freeze *freezeRef  `| @@`
	Icmp   *icmpRef    `| @@`
	Bin    *binRef     `| @@`
}

type operandRef struct {
	Local  string        `  @Local`
	Global string        `| @GlobalSym`
	Null   bool          `| @"null"`
	Expr   *constExprRef `| @@`
	Float  *float64      `| @Float`
	Int    *int64        `| @Int`
}

type typedOperandRef struct {
	Type *typeRef    `@@`
	Op   *operandRef `@@`
}

type allocaRef struct {
	Allocated *typeRef `"alloca" @@`
	Addr      *int     `[ "," "addrspace" "(" @Int ")" ]`
}

type loadRef struct {
	Type *typeRef    `"load" @@ ","`
	Ptr  *operandRef `@@`
}

type storeRef struct {
	Val *typedOperandRef `"store" @@ ","`
	Ptr *operandRef      `@@`
}

type gepRef struct {
	Src     *typeRef      `"gep" @@ ","`
	Ptr     *operandRef   `@@`
	Indices []*operandRef `{ "," @@ }`
}

type castRef struct {
	Op  string      `@("bitcast" | "addrspacecast" | "inttoptr" | "ptrtoint")`
	Val *operandRef `@@ ","`
	To  *typeRef    `@@`
}

type selectRef struct {
	Cond *operandRef      `"select" @@ ","`
	Then *typedOperandRef `@@ ","`
	Else *operandRef      `@@`
}

type phiRef struct {
	Type  *typeRef      `"phi" @@`
	Edges []*phiEdgeRef `@@ { "," @@ }`
}

type phiEdgeRef struct {
	Val  *operandRef `"[" @@ ","`
	From string      `@Ident "]"`
}

type callRef struct {
	Ret    *typeRef           `"call" @@`
	Callee *operandRef        `@@ "("`
	Args   []*typedOperandRef `[ @@ { "," @@ } ] ")"`
}

type atomicRef struct {
	Op  string           `"atomicrmw" @Ident`
	Ptr *operandRef      `@@ ","`
	Val *typedOperandRef `@@`
}

type cmpxchgRef struct {
	Ptr *operandRef      `"cmpxchg" @@ ","`
	Cmp *typedOperandRef `@@ ","`
	New *typedOperandRef `@@`
}

type fnegRef struct {
	Val *typedOperandRef `"fneg" @@`
}

type freezeRef struct {
	Val *operandRef `"freeze" @@`
}

type icmpRef struct {
	Pred string           `"icmp" @("eq" | "ne" | "lt" | "le" | "gt" | "ge")`
	X    *typedOperandRef `@@ ","`
	Y    *operandRef      `@@`
}

type binRef struct {
	Op string           `@("add" | "sub" | "mul" | "udiv" | "sdiv" | "and" | "or" | "xor" | "fadd" | "fsub" | "fmul" | "fdiv")`
	X  *typedOperandRef `@@ ","`
	Y  *operandRef      `@@`
}

type brRef struct {
	Kw   bool        `@"br"`
	Cond *operandRef `[ @@ "," ]`
	Then string      `@Ident`
	Else string      `[ "," @Ident ]`
}

type retRef struct {
	Kw  bool             `@"ret"`
	Val *typedOperandRef `@@?`
}
