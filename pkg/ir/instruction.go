package ir

// Opcode enumerates the instruction shapes the evaluator dispatches on
// (spec.md §4.8), mirroring the case labels of
// original_source/src/llvmsym/instructiondispatch.h's switch — the
// floating-point and exotic cases that dispatcher aborts on
// ("unknown instruction ...; abort()") are simply never emitted here.
type Opcode uint8

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpUDiv
	OpSDiv
	OpURem
	OpSRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr
	OpICmp
	OpZExt
	OpSExt
	OpTrunc
	OpLoad
	OpStore
	OpAlloca
	OpGetElementPtr
	OpCall
	OpBr       // unconditional
	OpCondBr   // conditional
	OpSwitch
	OpRet
	OpPhi
	OpSelect
	OpPtrToInt
	OpIntToPtr
)

// ICmpPredicate mirrors llvm::CmpInst::Predicate's integer subset.
type ICmpPredicate uint8

const (
	ICmpEQ ICmpPredicate = iota
	ICmpNE
	ICmpUGT
	ICmpUGE
	ICmpULT
	ICmpULE
	ICmpSGT
	ICmpSGE
	ICmpSLT
	ICmpSLE
)

// PhiIncoming is one (value, predecessor) pair of a Phi instruction.
type PhiIncoming struct {
	Value *Value
	From  *BasicBlock
}

// SwitchCase is one constant-labelled arm of a Switch instruction.
type SwitchCase struct {
	Value  *Value
	Target *BasicBlock
}

// Instruction is one instruction slot within a BasicBlock. Not every
// field is meaningful for every Op; the evaluator reads only the fields
// its own opcode's contract defines, the same way llvm::cast<T>(inst)
// only ever reaches the fields T actually has.
type Instruction struct {
	Op    Opcode
	Block *BasicBlock

	// Result is the value this instruction defines, nil for void ops
	// (Store, Br, CondBr, Switch, Ret, Call to a void function).
	Result *Value

	// Operands holds the generic operand list: two for binary
	// arithmetic and ICmp, one for casts/Load/Alloca's size operand,
	// the pointer plus stored value (in that order) for Store, the
	// condition plus two results for Select.
	Operands []*Value

	Pred ICmpPredicate // OpICmp

	// Successors[0] is Br's single target, or CondBr's "true" target
	// with Successors[1] the "false" target.
	Successors []*BasicBlock
	IsBackEdge []bool // parallel to Successors: true if that edge is a loop back-edge

	SwitchCases   []SwitchCase
	SwitchDefault *BasicBlock

	PhiIncoming []PhiIncoming

	// Callee/Args: OpCall's target name (resolved against a Module's
	// functions, or matched against the __VERIFIER_*/pthread_*
	// intrinsic names spec.md §4.8 lists) and argument values.
	Callee string
	Args   []*Value

	// ElemWidths: OpAlloca's per-cell bit widths for the new stack
	// segment it creates.
	ElemWidths []uint8

	// GEPBaseType/GEPIndices: OpGetElementPtr's aggregate type and
	// compile-time-constant index path (nil entries are not
	// representable — a symbolic index is fatal per spec.md §4.8 and
	// must be rejected by the caller before building this field).
	GEPBaseType Type
	GEPIndices  []int64
}
