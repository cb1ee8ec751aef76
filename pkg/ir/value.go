// Package ir is a minimal, LLVM-shaped instruction/value/module
// representation — not a bitcode reader. Real bitcode parsing is out of
// scope; this package exists only to give pkg/memlayout's Frame and
// pkg/eval's opcode dispatch something concrete to key maps and switch on,
// mirroring the identity and constant-kind distinctions
// original_source/src/llvmsym/memorylayout.cpp's deref() relies on
// (llvm::ConstantInt / llvm::ConstantPointerNull / llvm::UndefValue versus
// a plain llvm::Value* looked up in a Frame's valuemap).
package ir

// ValueKind distinguishes the handful of llvm::Value subclasses deref()
// actually special-cases from the catch-all "named value looked up in a
// frame" case.
type ValueKind uint8

const (
	// KindConstInt mirrors llvm::ConstantInt: a compile-time integer
	// literal, never placed in any Frame's valuemap.
	KindConstInt ValueKind = iota
	// KindConstNullPtr mirrors llvm::ConstantPointerNull.
	KindConstNullPtr
	// KindUndef mirrors llvm::UndefValue.
	KindUndef
	// KindRegister is an instruction's result, SSA-named within its
	// defining function.
	KindRegister
	// KindArgument is a function parameter.
	KindArgument
	// KindGlobal is a module-level global variable.
	KindGlobal
	// KindFunction is a compile-time reference to a function by name —
	// never stored in any Frame, used only where an instruction names a
	// callee indirectly (pthread_create's start routine argument).
	KindFunction
)

// Value is a node with identity: two *Value pointers are the same LLVM
// value iff they are the same Go pointer. Constants are typically built
// fresh per use (identity never matters for them, since deref special-cases
// their Kind before any frame lookup); registers, arguments and globals are
// built once by the owning Function/Module and shared by every reference.
type Value struct {
	Kind      ValueKind
	Name      string
	Bitwidth  uint8
	IsPointer bool
	// ConstValue holds the literal for KindConstInt (masked to Bitwidth).
	ConstValue uint64
	// Type is non-nil for registers/arguments/globals that carry
	// aggregate shape GEP needs to walk; scalar values leave it nil and
	// rely on Bitwidth/IsPointer alone.
	Type Type
}

// NewConstInt builds an integer literal of the given width.
func NewConstInt(v uint64, bw uint8) *Value {
	if bw < 64 {
		v &= (uint64(1) << bw) - 1
	}
	return &Value{Kind: KindConstInt, Bitwidth: bw, ConstValue: v}
}

// NewConstNullPtr builds the null pointer constant; pointers are always
// 64 bits wide (spec.md §3.5's segment:offset encoding).
func NewConstNullPtr() *Value {
	return &Value{Kind: KindConstNullPtr, Bitwidth: 64, IsPointer: true}
}

// NewUndef builds an undef value of the given width and pointer-ness.
func NewUndef(bw uint8, isPointer bool) *Value {
	return &Value{Kind: KindUndef, Bitwidth: bw, IsPointer: isPointer}
}

// NewRegister builds a named instruction result. The caller is
// responsible for sharing the returned pointer with every operand that
// references it.
func NewRegister(name string, bw uint8, isPointer bool) *Value {
	return &Value{Kind: KindRegister, Name: name, Bitwidth: bw, IsPointer: isPointer}
}

// NewArgument builds a function parameter value.
func NewArgument(name string, bw uint8, isPointer bool) *Value {
	return &Value{Kind: KindArgument, Name: name, Bitwidth: bw, IsPointer: isPointer}
}

// NewGlobal builds a module-level global variable value; globals are
// always pointers to their backing storage.
func NewGlobal(name string, t Type) *Value {
	return &Value{Kind: KindGlobal, Name: name, Bitwidth: 64, IsPointer: true, Type: t}
}

// NewFunctionRef builds a compile-time reference to the named function,
// the shape pthread_create's start-routine argument takes.
func NewFunctionRef(name string) *Value {
	return &Value{Kind: KindFunction, Name: name}
}

// IsConstant reports whether v never needs a Frame lookup.
func (v *Value) IsConstant() bool {
	return v.Kind == KindConstInt || v.Kind == KindConstNullPtr || v.Kind == KindUndef
}
