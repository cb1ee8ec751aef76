package eval

import (
	"github.com/symbion/symck/pkg/explicitstore"
	"github.com/symbion/symck/pkg/ir"
	"github.com/symbion/symck/pkg/symbolic"
)

// explicitBinOps/symbolicBinOps map a binary opcode to the store method
// that implements it (spec.md §4.8). Neither store distinguishes signed
// from unsigned division — OpUDiv and OpSDiv both route to ImplementDiv —
// and both logical and arithmetic right shift route to
// ImplementRightShift; the sign distinction matters only for ICmp and
// ImplementSRem/ImplementURem, which do stay separate below.
var explicitBinOps = map[ir.Opcode]func(s *explicitstore.Store, dst, a, b explicitstore.Value){
	ir.OpAdd:  (*explicitstore.Store).ImplementAdd,
	ir.OpSub:  (*explicitstore.Store).ImplementSub,
	ir.OpMul:  (*explicitstore.Store).ImplementMult,
	ir.OpUDiv: (*explicitstore.Store).ImplementDiv,
	ir.OpSDiv: (*explicitstore.Store).ImplementDiv,
	ir.OpURem: (*explicitstore.Store).ImplementURem,
	ir.OpSRem: (*explicitstore.Store).ImplementSRem,
	ir.OpAnd:  (*explicitstore.Store).ImplementAnd,
	ir.OpOr:   (*explicitstore.Store).ImplementOr,
	ir.OpXor:  (*explicitstore.Store).ImplementXor,
	ir.OpShl:  (*explicitstore.Store).ImplementLeftShift,
	ir.OpLShr: (*explicitstore.Store).ImplementRightShift,
	ir.OpAShr: (*explicitstore.Store).ImplementRightShift,
}

var symbolicBinOps = map[ir.Opcode]func(s *symbolic.Store, dst, a, b symbolic.Value){
	ir.OpAdd:  (*symbolic.Store).ImplementAdd,
	ir.OpSub:  (*symbolic.Store).ImplementSub,
	ir.OpMul:  (*symbolic.Store).ImplementMult,
	ir.OpUDiv: (*symbolic.Store).ImplementDiv,
	ir.OpSDiv: (*symbolic.Store).ImplementDiv,
	ir.OpURem: (*symbolic.Store).ImplementURem,
	ir.OpSRem: (*symbolic.Store).ImplementSRem,
	ir.OpAnd:  (*symbolic.Store).ImplementAnd,
	ir.OpOr:   (*symbolic.Store).ImplementOr,
	ir.OpXor:  (*symbolic.Store).ImplementXor,
	ir.OpShl:  (*symbolic.Store).ImplementLeftShift,
	ir.OpLShr: (*symbolic.Store).ImplementRightShift,
	ir.OpAShr: (*symbolic.Store).ImplementRightShift,
}
