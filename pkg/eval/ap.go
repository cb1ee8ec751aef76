package eval

import (
	"fmt"

	"github.com/symbion/symck/pkg/explicitstore"
	"github.com/symbion/symck/pkg/ir"
)

// GlobalByName looks up a module global by name the way pkg/search's
// atomic-proposition translator resolves the named globals an AP
// predicate is declared over (spec.md §6.4: "a predicate over one or
// more named globals").
func (st *State) GlobalByName(name string) (*ir.Value, error) {
	for _, g := range st.Module.Globals {
		if g.Name == name {
			return g, nil
		}
	}
	return nil, fmt.Errorf("eval: no global named %q", name)
}

// PruneGlobal returns a clone of st narrowed to the states where the
// named global compares to value under op — the same prune st.stepAssume
// uses for __VERIFIER_assume, exported so a Büchi-automaton edge guard
// (spec.md §4.10.2's pushPropGuard) can narrow a product-state successor
// exactly like an ordinary assume.
func (st *State) PruneGlobal(name string, op explicitstore.ICmpOp, value int64) (*State, error) {
	g, err := st.GlobalByName(name)
	if err != nil {
		return nil, err
	}
	cell := st.Layout.Deref(g, 0, false)
	lit := explicitstore.Const(uint64(value), g.Bitwidth)

	next := st.Clone()
	next.prune(cell, lit, op)
	return next, nil
}
