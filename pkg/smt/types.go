// Package smt bridges the checker's quantifier-free bit-vector formulas
// (pkg/formula) to an external SMT solver. spec.md §6.2 treats the solver
// as an out-of-process collaborator spoken to over SMT-LIB2 text, the same
// shape as the teacher's CUDA worker bridge (pkg/gpu/cuda.go): a long-lived
// child process, a request written to its stdin, a response parsed back off
// its stdout, one query in flight per process at a time.
package smt

import "fmt"

// Result is the three-valued outcome of a satisfiability query. Timeouts and
// solver errors both surface as Unknown — spec.md §4.4 requires that an
// Unknown subsumption query count as "not subsumed", never as an error.
type Result int

const (
	Unsat Result = iota
	Sat
	Unknown
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// Tactic selects which simplification pipeline the solver runs, mirroring
// original_source's two entry points (z3.cpp's simplify/cheap_simplify,
// driven by --cheapsimplify/--dontsimplify).
type Tactic int

const (
	// TacticFull runs ctx-solver-simplify: expensive, prunes using the
	// solver's own decision procedures; the zero value.
	TacticFull Tactic = iota
	// TacticCheap runs ctx-simplify: syntactic rewriting only, no solver
	// calls.
	TacticCheap
)

func (t Tactic) smtTacticName() string {
	if t == TacticCheap {
		return "ctx-simplify"
	}
	return "ctx-solver-simplify"
}

// Error wraps a solver-protocol failure (malformed response, broken pipe,
// parse failure of a returned term). Callers that can tolerate a missing
// simplification fall back to the original formula on Error rather than
// propagating it, per spec.md §4.2.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("smt: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }
