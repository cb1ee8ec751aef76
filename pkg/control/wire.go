package control

import (
	"encoding/binary"
	"io"

	"github.com/symbion/symck/pkg/ir"
)

// WriteTo serialises every thread's call stack and previous-block
// lookback slot by name, matching spec.md §6.1's "Control:
// context: [[PC]], previous_bb: [PC], tids: [u16], next_free_tid: u16"
// wire-format listing closely enough to serve the same purpose here:
// giving pkg/search's state-identity encoding a stable byte
// representation of "where every thread currently is" to fold into a
// state blob's explicit region, alongside pkg/memlayout and
// pkg/explicitstore's own WriteTo methods (spec.md §4.9: the database's
// identity key is "hashed+eq'ed on the explicit bytes", and the
// original's own getExplicitSize() sums control+layout+explicitData
// sizes — control is part of that explicit region, not the opaque user
// region, which spec.md §4.10.2 reserves for the LTL driver's ba_state
// alone).
//
// There is deliberately no ReadFrom: nothing in this codebase ever
// reconstructs a live Control from bytes — *ir.Function/*ir.BasicBlock
// pointer identity cannot survive a round trip without the owning
// *ir.Module to re-resolve names against, and the search drivers never
// need to (the frontier always carries live *eval.State values; the
// database is consulted only for novelty, spec.md §4.9).
func (c *Control) WriteTo(w io.Writer) error {
	if err := writeU32(w, uint32(len(c.stacks))); err != nil {
		return err
	}
	for i, stack := range c.stacks {
		if err := writeU32(w, uint32(len(stack))); err != nil {
			return err
		}
		for _, pc := range stack {
			if err := writePC(w, pc); err != nil {
				return err
			}
		}
		if err := writeBlockName(w, c.prevBlock[i]); err != nil {
			return err
		}
	}
	return nil
}

func writePC(w io.Writer, pc PC) error {
	funcName := ""
	if pc.Func != nil {
		funcName = pc.Func.Name
	}
	if err := writeString(w, funcName); err != nil {
		return err
	}
	if err := writeBlockName(w, pc.Block); err != nil {
		return err
	}
	return writeU32(w, uint32(int32(pc.Instr)))
}

func writeBlockName(w io.Writer, block *ir.BasicBlock) error {
	name := ""
	if block != nil {
		name = block.Name
	}
	return writeString(w, name)
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeString(w io.Writer, s string) error {
	if err := writeU32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}
