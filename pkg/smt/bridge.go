package smt

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/symbion/symck/pkg/formula"
)

// BinaryPath is the external solver executable, overridable the same way
// the teacher's gpu package exposes CUDABinaryPath for its worker binary.
// It must understand SMT-LIB2 on stdin/stdout in "-in" (interactive) mode,
// which is how z3 and several other quantified bit-vector solvers run.
var BinaryPath = "z3"

// Bridge is a single long-lived solver subprocess. Queries are serialized
// through mu exactly like CUDAProcess serializes GPU requests: one
// assert/check-sat/pop round trip completes before the next begins.
type Bridge struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
}

// NewBridge starts the solver process in interactive SMT-LIB2 mode.
func NewBridge() (*Bridge, error) {
	cmd := exec.Command(BinaryPath, "-in")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &Error{Op: "start", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, &Error{Op: "start", Err: err}
	}
	cmd.Stderr = nil // inherit, for diagnostics

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, &Error{Op: "start", Err: fmt.Errorf("%s: %w", BinaryPath, err)}
	}

	return &Bridge{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

// Close tears down the subprocess, mirroring CUDAProcess.Close.
func (br *Bridge) Close() error {
	br.stdin.Close()
	return br.cmd.Wait()
}

func (br *Bridge) send(script string) error {
	_, err := io.WriteString(br.stdin, script)
	return err
}

// readLine reads one line of the solver's reply, stripping the trailing
// newline. Used for the single-atom replies check-sat produces ("sat",
// "unsat", "unknown", "timeout").
func (br *Bridge) readLine() (string, error) {
	line, err := br.stdout.ReadString('\n')
	return strings.TrimSpace(line), err
}

// CheckSat asserts the given formulas (already translated to SMT-LIB2 terms,
// alongside their merged declarations) under a fresh scope and reports the
// result. timeout <= 0 means no timeout.
func (br *Bridge) CheckSat(decls []string, asserts []string, timeout time.Duration) (Result, error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	var script strings.Builder
	script.WriteString("(push)\n")
	if timeout > 0 {
		fmt.Fprintf(&script, "(set-option :timeout %d)\n", timeout.Milliseconds())
	}
	for _, d := range decls {
		script.WriteString(d)
		script.WriteByte('\n')
	}
	for _, a := range asserts {
		fmt.Fprintf(&script, "(assert %s)\n", a)
	}
	script.WriteString("(check-sat)\n")

	if err := br.send(script.String()); err != nil {
		return Unknown, &Error{Op: "check-sat", Err: err}
	}
	reply, err := br.readLine()
	if err != nil {
		return Unknown, &Error{Op: "check-sat", Err: err}
	}
	if err := br.send("(pop)\n"); err != nil {
		return Unknown, &Error{Op: "check-sat", Err: err}
	}

	switch reply {
	case "sat":
		return Sat, nil
	case "unsat":
		return Unsat, nil
	default:
		return Unknown, nil
	}
}

// CheckValidityUnderForall checks whether `exists vars. antecedent(vars) and
// not(consequent(vars))` is unsat, i.e. whether `forall vars. antecedent =>
// consequent` holds. This is exactly the shape subsumption's quantified
// query needs (spec.md §4.4): pc_b && forall a_vars. (!pc_a || distinct) —
// rephrased here as checking unsat-ness of pc_b && pc_a && not(distinct)
// with a_vars held free, since a solver's default quantifier-free check-sat
// over free variables already existentially quantifies them, and negating
// the universal body turns the problem back into a plain check-sat call.
func (br *Bridge) CheckValidityUnderForall(decls []string, mustHold string, timeout time.Duration) (Result, error) {
	return br.CheckSat(decls, []string{fmt.Sprintf("(not %s)", mustHold)}, timeout)
}

// ForallVar names one universally-quantified SMT-LIB2 bit-vector variable.
type ForallVar struct {
	Name  string
	Width uint8
}

// CheckSubsumptionQuery checks, in one round trip, whether
//
//	pcBTerm && forall(aVars). (not pcATerm || distinctTerm)
//
// is satisfiable — exactly the shape subsumption's quantified query needs
// (spec.md §4.4 "pc_b && forall(a).(!pc_a || distinct)"; sat iff b is NOT a
// subset of a). aVars not mentioned elsewhere are still bound so the
// quantifier ranges over a's entire variable space, matching
// SMTStore::subseteq's a_all_vars.
func (br *Bridge) CheckSubsumptionQuery(decls []string, pcATerm, pcBTerm, distinctTerm string, aVars []ForallVar, timeout time.Duration) (Result, error) {
	br.mu.Lock()
	defer br.mu.Unlock()

	var script strings.Builder
	script.WriteString("(push)\n")
	if timeout > 0 {
		fmt.Fprintf(&script, "(set-option :timeout %d)\n", timeout.Milliseconds())
	}
	for _, d := range decls {
		script.WriteString(d)
		script.WriteByte('\n')
	}

	body := fmt.Sprintf("(or (not %s) %s)", pcATerm, distinctTerm)
	forallTerm := body
	if len(aVars) > 0 {
		var binder strings.Builder
		for i, v := range aVars {
			if i > 0 {
				binder.WriteByte(' ')
			}
			fmt.Fprintf(&binder, "(%s (_ BitVec %d))", v.Name, v.Width)
		}
		forallTerm = fmt.Sprintf("(forall (%s) %s)", binder.String(), body)
	}
	fmt.Fprintf(&script, "(assert (and %s %s))\n", pcBTerm, forallTerm)
	script.WriteString("(check-sat)\n")

	if err := br.send(script.String()); err != nil {
		return Unknown, &Error{Op: "subsumption", Err: err}
	}
	reply, err := br.readLine()
	if err != nil {
		return Unknown, &Error{Op: "subsumption", Err: err}
	}
	if err := br.send("(pop)\n"); err != nil {
		return Unknown, &Error{Op: "subsumption", Err: err}
	}

	switch reply {
	case "sat":
		return Sat, nil
	case "unsat":
		return Unsat, nil
	default:
		return Unknown, nil
	}
}

// Simplify runs tactic's simplification pipeline over f and parses the
// resulting term back into a Formula, mirroring z3.cpp's simplify /
// cheap_simplify: on any translation or protocol failure it returns f
// unchanged rather than propagating the error, so a solver hiccup degrades
// to "proceed unsimplified" instead of aborting the search.
func (br *Bridge) Simplify(f formula.Formula, tactic Tactic) formula.Formula {
	if f.Size() == 0 {
		return f
	}
	term, decls, err := Translate(f, "a")
	if err != nil {
		return f
	}

	br.mu.Lock()
	defer br.mu.Unlock()

	var script strings.Builder
	script.WriteString("(push)\n")
	for _, d := range decls {
		script.WriteString(d)
		script.WriteByte('\n')
	}
	fmt.Fprintf(&script, "(assert %s)\n", term)
	fmt.Fprintf(&script, "(apply (then simplify %s))\n", tactic.smtTacticName())

	if err := br.send(script.String()); err != nil {
		return f
	}
	reply, err := br.readGoalsReply()
	br.send("(pop)\n")
	if err != nil {
		return f
	}

	widths := make(map[string]uint8, len(decls))
	for _, id := range f.CollectVariables(nil) {
		widths[varName("a", id)] = id.Bw
	}

	simplified, err := parseGoalsResult(reply, widths)
	if err != nil {
		return f
	}
	return simplified
}

// readGoalsReply reads the balanced-parenthesis response to "(apply ...)",
// which a solver prints as one multi-line "(goals ...)" s-expression.
func (br *Bridge) readGoalsReply() (string, error) {
	var b strings.Builder
	depth := 0
	started := false
	for {
		r, _, err := br.stdout.ReadRune()
		if err != nil {
			return "", err
		}
		switch r {
		case '(':
			depth++
			started = true
		case ')':
			depth--
		}
		b.WriteRune(r)
		if started && depth == 0 {
			return b.String(), nil
		}
	}
}

// parseGoalsResult turns the "(goals (goal t1 t2 ... :precision p :depth d))"
// reply into a single Formula: each goal's terms (excluding the trailing
// keyword-tagged metadata) are conjoined, and goals are conjoined with each
// other, matching z3.cpp's nested loop over result[g][e].
func parseGoalsResult(text string, widths map[string]uint8) (formula.Formula, error) {
	exprs, err := parseSExprs(text)
	if err != nil || len(exprs) == 0 {
		return formula.Formula{}, fmt.Errorf("smt: no goals in reply %q", text)
	}
	goals := exprs[0]
	if goals.isAtom() || len(goals.list) == 0 || goals.list[0].atom != "goals" {
		return formula.Formula{}, fmt.Errorf("smt: unexpected apply reply %q", text)
	}

	var out formula.Formula
	empty := true
	for _, goal := range goals.list[1:] {
		if goal.isAtom() || len(goal.list) == 0 || goal.list[0].atom != "goal" {
			continue
		}
		for _, term := range goal.list[1:] {
			if term.isAtom() && strings.HasPrefix(term.atom, ":") {
				break // reached the :precision/:depth metadata tail
			}
			f, err := fromSExpr(term, widths)
			if err != nil {
				return formula.Formula{}, err
			}
			if empty {
				out = f
			} else {
				out = out.And(f)
			}
			empty = false
		}
	}
	if empty {
		return formula.BuildBoolVal(true), nil
	}
	return out, nil
}
