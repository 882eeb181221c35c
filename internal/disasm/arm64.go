package disasm

import (
	"strconv"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"

	"idbkit/internal/idb"
)

type arm64Decoder struct{}

// ARM64 returns a decoder for AArch64 code.
func ARM64() Decoder { return arm64Decoder{} }

func (arm64Decoder) Name() string { return "arm64" }

func (arm64Decoder) Align() int { return 4 }

func (arm64Decoder) Decode(code []byte, pc uint64) (Inst, error) {
	ai, err := arm64asm.Decode(code)
	if err != nil {
		return Inst{}, err
	}

	inst := Inst{
		VA:   pc,
		Size: 4,
		Mnem: strings.ToLower(ai.Op.String()),
		Raw:  code[:4],
	}

	for _, a := range ai.Args {
		if a == nil {
			break
		}
		var op Operand
		switch a := a.(type) {
		case arm64asm.Cond:
			// b.cond carries its condition in the mnemonic.
			if ai.Op == arm64asm.B {
				inst.Mnem += "." + strings.ToLower(a.String())
				continue
			}
			op = Operand{Type: idb.Special, Text: strings.ToLower(a.String())}
		case arm64asm.Reg:
			op = Operand{Type: idb.Reg, Text: strings.ToLower(a.String()), Value: int64(a)}
		case arm64asm.RegSP:
			op = Operand{Type: idb.Reg, Text: strings.ToLower(a.String()), Value: int64(a)}
		case arm64asm.Imm:
			op = Operand{Type: idb.Imm, Text: hex(int64(a.Imm)), Value: int64(a.Imm)}
		case arm64asm.Imm64:
			op = Operand{Type: idb.Imm, Text: hex(int64(a.Imm)), Value: int64(a.Imm)}
		case arm64asm.PCRel:
			target := uint64(int64(pc) + int64(a))
			op = Operand{Type: idb.Near, Text: hex(int64(target)), Value: int64(target)}
			switch ai.Op {
			case arm64asm.ADR:
				op.Type = idb.Mem
				inst.DataRef = target
			case arm64asm.ADRP:
				page := uint64(int64(pc&^0xfff) + int64(a))
				op = Operand{Type: idb.Imm, Text: hex(int64(page)), Value: int64(page)}
			default:
				inst.Target = target
			}
		case arm64asm.MemImmediate:
			op = arm64Mem(a.String())
		case arm64asm.MemExtend:
			op = Operand{Type: idb.Phrase, Text: strings.ToLower(a.String())}
		default:
			op = Operand{Type: idb.Special, Text: strings.ToLower(a.String())}
		}
		inst.Ops = append(inst.Ops, op)
	}

	switch ai.Op {
	case arm64asm.BL, arm64asm.BLR:
		inst.Flow = FlowCall
	case arm64asm.RET:
		inst.Flow = FlowRet
	case arm64asm.B, arm64asm.BR:
		inst.Flow = FlowJump
		if strings.HasPrefix(inst.Mnem, "b.") {
			inst.Flow = FlowCondJump
		}
	case arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		inst.Flow = FlowCondJump
	}
	if inst.Flow == FlowNone {
		inst.Target = 0
	}
	return inst, nil
}

// arm64Mem classifies a base+immediate reference from its rendering, since
// the decoder keeps the offset private. "[x0]" is a phrase, "[x0,#8]" and
// the indexed forms are displacements.
func arm64Mem(s string) Operand {
	s = strings.ToLower(s)
	op := Operand{Type: idb.Phrase, Text: s}
	if inner, ok := strings.CutPrefix(s, "["); ok {
		if j := strings.IndexAny(inner, ",]"); j >= 0 {
			op.Base = inner[:j]
		}
	}
	i := strings.IndexByte(s, '#')
	if i < 0 {
		return op
	}
	num := strings.TrimRight(s[i+1:], "]!")
	if v, err := strconv.ParseInt(num, 0, 64); err == nil {
		op.Value = v
		if v != 0 {
			op.Type = idb.Displ
		}
	}
	return op
}
