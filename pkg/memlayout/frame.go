package memlayout

import "github.com/symbion/symck/pkg/ir"

// Frame maps every function-local value used anywhere in a function to a
// stable stack-index, built once per function and reused for every basic
// block within it — mirrors memorylayout.h's switchBB() cache
// (`static cache` keyed by `llvm::BasicBlock*` producing a shared
// `Frame`), except the cache key here is the owning *ir.Function rather
// than each individual *ir.BasicBlock, since llvm's dominance rules mean
// any value defined earlier in the function may appear as an operand in
// any later block — one frame per function avoids rebuilding the same
// map for every block of it.
// Frame also records each slot's bit width and pointer-ness (Widths/
// Pointers, parallel to the slot index Values assigns) so the evaluator
// can size a callee's register segment — one cell per distinct local
// value in the whole function, not just its arguments — in a single
// AddSegment call on entry.
type Frame struct {
	Values   map[*ir.Value]int
	Widths   []uint8
	Pointers []bool
	Width    int
}

func buildFrame(fn *ir.Function) *Frame {
	f := &Frame{Values: map[*ir.Value]int{}}
	add := func(v *ir.Value) {
		if v == nil || v.IsConstant() || v.Kind == ir.KindGlobal {
			return
		}
		if _, ok := f.Values[v]; ok {
			return
		}
		f.Values[v] = f.Width
		f.Widths = append(f.Widths, v.Bitwidth)
		f.Pointers = append(f.Pointers, v.IsPointer)
		f.Width++
	}
	for _, a := range fn.Args {
		add(a)
	}
	for _, b := range fn.Blocks {
		for _, in := range b.Instructions {
			add(in.Result)
			for _, op := range in.Operands {
				add(op)
			}
			for _, op := range in.Args {
				add(op)
			}
			for _, pi := range in.PhiIncoming {
				add(pi.Value)
			}
		}
	}
	return f
}
