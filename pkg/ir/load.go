package ir

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LoadModule decodes a Module from r's JSON description. Real LLVM
// bitcode parsing is explicitly out of scope (this package's doc: "not a
// bitcode reader") — this is the textual front-end cmd/symck's
// `--model` flag reads, standing in for the external
// bitcode-to-this-IR translation step spec.md §1 names as a non-goal.
// The wire shape is deliberately name-based (registers/blocks/functions
// referenced by string) rather than pointer-based, since JSON has no way
// to express this package's shared-pointer-identity Value model
// directly; LoadModule's job is exactly that resolution pass.
func LoadModule(r io.Reader) (*Module, error) {
	var jm jsonModule
	if err := json.NewDecoder(r).Decode(&jm); err != nil {
		return nil, fmt.Errorf("ir: decoding model JSON: %w", err)
	}
	return jm.resolve()
}

type jsonModule struct {
	Name      string         `json:"name"`
	Globals   []jsonGlobal   `json:"globals"`
	Functions []jsonFunction `json:"functions"`
}

type jsonGlobal struct {
	Name string   `json:"name"`
	Type jsonType `json:"type"`
}

type jsonFunction struct {
	Name   string        `json:"name"`
	Args   []jsonArg     `json:"args"`
	Blocks []jsonBlock   `json:"blocks"`
}

type jsonArg struct {
	Name     string `json:"name"`
	Bitwidth uint8  `json:"bitwidth"`
	Pointer  bool   `json:"pointer"`
}

type jsonBlock struct {
	Name         string      `json:"name"`
	Instructions []jsonInstr `json:"instructions"`
}

type jsonInstr struct {
	Op             string          `json:"op"`
	Result         string          `json:"result,omitempty"`
	ResultBitwidth uint8           `json:"result_bitwidth,omitempty"`
	ResultPointer  bool            `json:"result_pointer,omitempty"`
	Operands       []string        `json:"operands,omitempty"`
	Pred           string          `json:"pred,omitempty"`
	Successors     []string        `json:"successors,omitempty"`
	BackEdge       []bool          `json:"back_edge,omitempty"`
	Cases          []jsonCase      `json:"cases,omitempty"`
	Default        string          `json:"default,omitempty"`
	Phi            []jsonPhi       `json:"phi,omitempty"`
	Callee         string          `json:"callee,omitempty"`
	Args           []string        `json:"args,omitempty"`
	ElemWidths     []uint8         `json:"elem_widths,omitempty"`
	GEPType        *jsonType       `json:"gep_type,omitempty"`
	GEPIndices     []int64         `json:"gep_indices,omitempty"`
}

type jsonCase struct {
	Value  int64  `json:"value"`
	Target string `json:"target"`
}

type jsonPhi struct {
	Value string `json:"value"`
	From  string `json:"from"`
}

type jsonType struct {
	Kind   string     `json:"kind"` // "int", "ptr", "array", "struct"
	Width  uint8      `json:"width,omitempty"`
	Elem   *jsonType  `json:"elem,omitempty"`
	Count  int        `json:"count,omitempty"`
	Fields []jsonType `json:"fields,omitempty"`
}

func (t jsonType) build() (Type, error) {
	switch t.Kind {
	case "int":
		return IntType{Width: t.Width}, nil
	case "ptr":
		if t.Elem == nil {
			return PointerType{}, nil
		}
		elem, err := t.Elem.build()
		if err != nil {
			return nil, err
		}
		return PointerType{Elem: elem}, nil
	case "array":
		if t.Elem == nil {
			return nil, fmt.Errorf("ir: array type missing elem")
		}
		elem, err := t.Elem.build()
		if err != nil {
			return nil, err
		}
		return ArrayType{Elem: elem, Count: t.Count}, nil
	case "struct":
		fields := make([]Type, len(t.Fields))
		for i, f := range t.Fields {
			ft, err := f.build()
			if err != nil {
				return nil, err
			}
			fields[i] = ft
		}
		return StructType{Fields: fields}, nil
	default:
		return nil, fmt.Errorf("ir: unknown type kind %q", t.Kind)
	}
}

var predNames = map[string]ICmpPredicate{
	"eq": ICmpEQ, "ne": ICmpNE,
	"ugt": ICmpUGT, "uge": ICmpUGE, "ult": ICmpULT, "ule": ICmpULE,
	"sgt": ICmpSGT, "sge": ICmpSGE, "slt": ICmpSLT, "sle": ICmpSLE,
}

var opNames = map[string]Opcode{
	"add": OpAdd, "sub": OpSub, "mul": OpMul, "udiv": OpUDiv, "sdiv": OpSDiv,
	"urem": OpURem, "srem": OpSRem, "and": OpAnd, "or": OpOr, "xor": OpXor,
	"shl": OpShl, "lshr": OpLShr, "ashr": OpAShr,
	"icmp": OpICmp, "zext": OpZExt, "sext": OpSExt, "trunc": OpTrunc,
	"load": OpLoad, "store": OpStore, "alloca": OpAlloca, "gep": OpGetElementPtr,
	"call": OpCall, "br": OpBr, "condbr": OpCondBr, "switch": OpSwitch,
	"ret": OpRet, "phi": OpPhi, "select": OpSelect,
	"ptrtoint": OpPtrToInt, "inttoptr": OpIntToPtr,
}

// resolver builds Values/BasicBlocks/Functions from their JSON names,
// keeping shared pointer identity the way two references to the same
// SSA value must (spec.md's Value.Kind doc: "two *Value pointers are
// the same LLVM value iff they are the same Go pointer").
type resolver struct {
	module  *Module
	globals map[string]*Value

	fn       *Function
	values   map[string]*Value // per-function: registers + args
	blocks   map[string]*BasicBlock
}

func (jm jsonModule) resolve() (*Module, error) {
	mod := &Module{Name: jm.Name}
	r := &resolver{module: mod, globals: map[string]*Value{}}

	for _, jg := range jm.Globals {
		t, err := jg.Type.build()
		if err != nil {
			return nil, fmt.Errorf("ir: global %q: %w", jg.Name, err)
		}
		g := NewGlobal(jg.Name, t)
		r.globals[jg.Name] = g
		mod.Globals = append(mod.Globals, g)
	}

	fns := make(map[string]*Function, len(jm.Functions))
	for _, jf := range jm.Functions {
		fn := &Function{Name: jf.Name, Module: mod}
		fns[jf.Name] = fn
		mod.Functions = append(mod.Functions, fn)
	}

	for _, jf := range jm.Functions {
		if err := r.resolveFunction(fns[jf.Name], jf, fns); err != nil {
			return nil, fmt.Errorf("ir: function %q: %w", jf.Name, err)
		}
	}
	return mod, nil
}

func (r *resolver) resolveFunction(fn *Function, jf jsonFunction, fns map[string]*Function) error {
	r.fn = fn
	r.values = map[string]*Value{}
	r.blocks = map[string]*BasicBlock{}

	for _, ja := range jf.Args {
		a := NewArgument(ja.Name, ja.Bitwidth, ja.Pointer)
		r.values[ja.Name] = a
		fn.Args = append(fn.Args, a)
	}
	for _, jb := range jf.Blocks {
		bb := &BasicBlock{Name: jb.Name, Function: fn}
		r.blocks[jb.Name] = bb
		fn.Blocks = append(fn.Blocks, bb)
	}
	// Pre-declare every instruction result so forward references (a Phi
	// reading a value defined later in the same function) resolve.
	for _, jb := range jf.Blocks {
		for _, ji := range jb.Instructions {
			if ji.Result == "" {
				continue
			}
			r.values[ji.Result] = NewRegister(ji.Result, ji.ResultBitwidth, ji.ResultPointer)
		}
	}

	for bi, jb := range jf.Blocks {
		bb := fn.Blocks[bi]
		for _, ji := range jb.Instructions {
			instr, err := r.resolveInstr(ji, bb, fns)
			if err != nil {
				return fmt.Errorf("block %q: %w", jb.Name, err)
			}
			bb.Instructions = append(bb.Instructions, instr)
		}
	}
	return nil
}

func (r *resolver) resolveInstr(ji jsonInstr, bb *BasicBlock, fns map[string]*Function) (*Instruction, error) {
	op, ok := opNames[ji.Op]
	if !ok {
		return nil, fmt.Errorf("unknown opcode %q", ji.Op)
	}
	instr := &Instruction{Op: op, Block: bb, Callee: ji.Callee, ElemWidths: ji.ElemWidths, GEPIndices: ji.GEPIndices}

	if ji.Result != "" {
		instr.Result = r.values[ji.Result]
	}
	for _, ref := range ji.Operands {
		v, err := r.resolveValue(ref)
		if err != nil {
			return nil, err
		}
		instr.Operands = append(instr.Operands, v)
	}
	for _, ref := range ji.Args {
		v, err := r.resolveValue(ref)
		if err != nil {
			return nil, err
		}
		instr.Args = append(instr.Args, v)
	}
	if ji.Pred != "" {
		pred, ok := predNames[ji.Pred]
		if !ok {
			return nil, fmt.Errorf("unknown icmp predicate %q", ji.Pred)
		}
		instr.Pred = pred
	}
	for i, name := range ji.Successors {
		bbt, ok := r.blocks[name]
		if !ok {
			return nil, fmt.Errorf("unknown successor block %q", name)
		}
		instr.Successors = append(instr.Successors, bbt)
		back := i < len(ji.BackEdge) && ji.BackEdge[i]
		instr.IsBackEdge = append(instr.IsBackEdge, back)
	}
	for _, c := range ji.Cases {
		target, ok := r.blocks[c.Target]
		if !ok {
			return nil, fmt.Errorf("unknown case target %q", c.Target)
		}
		instr.SwitchCases = append(instr.SwitchCases, SwitchCase{
			Value:  NewConstInt(uint64(c.Value), 32),
			Target: target,
		})
	}
	if ji.Default != "" {
		target, ok := r.blocks[ji.Default]
		if !ok {
			return nil, fmt.Errorf("unknown default target %q", ji.Default)
		}
		instr.SwitchDefault = target
	}
	for _, p := range ji.Phi {
		v, err := r.resolveValue(p.Value)
		if err != nil {
			return nil, err
		}
		from, ok := r.blocks[p.From]
		if !ok {
			return nil, fmt.Errorf("unknown phi predecessor %q", p.From)
		}
		instr.PhiIncoming = append(instr.PhiIncoming, PhiIncoming{Value: v, From: from})
	}
	if ji.GEPType != nil {
		t, err := ji.GEPType.build()
		if err != nil {
			return nil, err
		}
		instr.GEPBaseType = t
	}
	return instr, nil
}

// resolveValue parses one operand reference: "%name" (register/argument),
// "@name" (global), "#value:bitwidth" (integer constant), "null"
// (null pointer), "undef:bitwidth" (undef scalar), "undef_ptr" (undef
// pointer), or "func:name" (a compile-time function reference, the
// shape pthread_create's start-routine argument takes).
func (r *resolver) resolveValue(ref string) (*Value, error) {
	switch {
	case strings.HasPrefix(ref, "%"):
		name := ref[1:]
		v, ok := r.values[name]
		if !ok {
			return nil, fmt.Errorf("undefined value %q", ref)
		}
		return v, nil
	case strings.HasPrefix(ref, "@"):
		name := ref[1:]
		v, ok := r.globals[name]
		if !ok {
			return nil, fmt.Errorf("undefined global %q", ref)
		}
		return v, nil
	case strings.HasPrefix(ref, "#"):
		parts := strings.SplitN(ref[1:], ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed constant %q (want #value:bitwidth)", ref)
		}
		val, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed constant %q: %w", ref, err)
		}
		bw, err := strconv.ParseUint(parts[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("malformed constant bitwidth %q: %w", ref, err)
		}
		return NewConstInt(uint64(val), uint8(bw)), nil
	case ref == "null":
		return NewConstNullPtr(), nil
	case ref == "undef_ptr":
		return NewUndef(64, true), nil
	case strings.HasPrefix(ref, "undef:"):
		bw, err := strconv.ParseUint(strings.TrimPrefix(ref, "undef:"), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("malformed undef %q: %w", ref, err)
		}
		return NewUndef(uint8(bw), false), nil
	case strings.HasPrefix(ref, "func:"):
		return NewFunctionRef(strings.TrimPrefix(ref, "func:")), nil
	default:
		return nil, fmt.Errorf("unrecognised value reference %q", ref)
	}
}
