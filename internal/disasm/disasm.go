// Package disasm defines a common instruction representation used
// across architecture-specific disassemblers.
package disasm

import (
	"strings"

	"idbkit/internal/idb"
)

// Flow is the control-flow effect of an instruction.
type Flow uint8

const (
	FlowNone Flow = iota
	FlowJump
	FlowCondJump
	FlowCall
	FlowRet
)

// Operand is one decoded instruction argument.
type Operand struct {
	Type  idb.OpType
	Text  string // Intel-style rendering, lowercase
	Value int64  // immediate, branch target, displacement or register number
	Base  string // base register of a phrase or displacement, lowercase
}

// Inst is a simplified decoded instruction.
type Inst struct {
	VA     uint64 // virtual address of instruction
	Size   int
	Mnem   string // mnemonic in lowercase, "(bad)" when undecodable
	Ops    []Operand
	Flow   Flow
	Target uint64 // branch target when Flow != FlowNone and it is static
	// DataRef is the absolute address of a memory operand, when one is
	// encoded directly or PC-relative.
	DataRef uint64
	Raw     []byte
}

// Bad reports whether the bytes at VA did not decode.
func (i *Inst) Bad() bool { return i.Mnem == badMnem }

// Text formats the instruction as "mnem op0, op1".
func (i *Inst) Text() string {
	if len(i.Ops) == 0 {
		return i.Mnem
	}
	ops := make([]string, len(i.Ops))
	for n, op := range i.Ops {
		ops[n] = op.Text
	}
	return i.Mnem + " " + strings.Join(ops, ", ")
}

// Stream is a linear sequence of instructions.
type Stream []Inst

// A Decoder decodes one instruction at the start of code, which is mapped at
// pc.
type Decoder interface {
	Decode(code []byte, pc uint64) (Inst, error)
	// Name is the processor name, e.g. "x86-64".
	Name() string
	// Align is the minimum instruction alignment in bytes.
	Align() int
}

const badMnem = "(bad)"

// BadInst records raw bytes at pc that did not decode.
func BadInst(raw []byte, pc uint64) Inst {
	return Inst{VA: pc, Size: len(raw), Mnem: badMnem, Raw: raw}
}

// Walk linearly decodes code mapped at pc and calls fn for each
// instruction. Bytes that do not decode become single-unit "(bad)"
// instructions so the walk always makes progress. fn must not retain in.
func Walk(d Decoder, code []byte, pc uint64, fn func(in *Inst)) {
	step := d.Align()
	for len(code) > 0 {
		inst, err := d.Decode(code, pc)
		if err != nil || inst.Size <= 0 {
			inst = BadInst(code[:min(step, len(code))], pc)
		}
		fn(&inst)
		code = code[inst.Size:]
		pc += uint64(inst.Size)
	}
}

// Sweep is Walk collecting every instruction.
func Sweep(d Decoder, code []byte, pc uint64) Stream {
	var out Stream
	Walk(d, code, pc, func(in *Inst) { out = append(out, *in) })
	return out
}
