package disasm

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"idbkit/internal/idb"
)

type x86Decoder struct {
	bits int
}

// X86 returns a decoder for 16, 32 or 64-bit x86 code.
func X86(bits int) Decoder {
	return x86Decoder{bits: bits}
}

func (d x86Decoder) Name() string {
	switch d.bits {
	case 64:
		return "x86-64"
	case 16:
		return "8086"
	}
	return "x86"
}

func (d x86Decoder) Align() int { return 1 }

func (d x86Decoder) Decode(code []byte, pc uint64) (Inst, error) {
	xi, err := x86asm.Decode(code, d.bits)
	if err != nil {
		return Inst{}, err
	}
	if xi.Op == 0 || xi.Len == 0 {
		return Inst{}, fmt.Errorf("x86: no instruction at %#x", pc)
	}

	inst := Inst{
		VA:   pc,
		Size: xi.Len,
		Mnem: strings.ToLower(xi.Op.String()),
		Raw:  code[:xi.Len],
	}
	next := pc + uint64(xi.Len)

	hasReg := false
	for _, a := range xi.Args {
		if _, ok := a.(x86asm.Reg); ok {
			hasReg = true
		}
	}

	for _, a := range xi.Args {
		if a == nil {
			break
		}
		var op Operand
		switch a := a.(type) {
		case x86asm.Reg:
			op = Operand{Type: idb.Reg, Text: strings.ToLower(a.String()), Value: int64(a)}
		case x86asm.Imm:
			op = Operand{Type: idb.Imm, Text: hex(int64(a)), Value: int64(a)}
		case x86asm.Rel:
			target := uint64(int64(next) + int64(a))
			if d.bits < 64 {
				target = uint64(uint32(target))
			}
			op = Operand{Type: idb.Near, Text: hex(int64(target)), Value: int64(target)}
			inst.Target = target
		case x86asm.Mem:
			op = x86Mem(a, next, d.bits)
			if !hasReg {
				op.Text = sizePtr(xi.MemBytes) + op.Text
			}
			if op.Type == idb.Mem {
				inst.DataRef = uint64(op.Value)
			}
		default:
			op = Operand{Type: idb.Special, Text: strings.ToLower(a.String())}
		}
		inst.Ops = append(inst.Ops, op)
	}

	switch xi.Op {
	case x86asm.CALL, x86asm.LCALL:
		inst.Flow = FlowCall
	case x86asm.RET, x86asm.LRET, x86asm.IRET, x86asm.IRETD, x86asm.IRETQ:
		inst.Flow = FlowRet
	case x86asm.JMP, x86asm.LJMP:
		inst.Flow = FlowJump
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE, x86asm.JECXZ,
		x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP,
		x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ, x86asm.JS,
		x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		inst.Flow = FlowCondJump
	}
	if inst.Flow == FlowNone {
		inst.Target = 0
	}
	return inst, nil
}

// x86Mem classifies a memory argument. RIP-relative and absolute references
// are direct memory; everything else is a phrase or a displacement
// depending on whether a displacement is encoded.
func x86Mem(m x86asm.Mem, next uint64, bits int) Operand {
	var seg string
	if m.Segment != 0 {
		seg = strings.ToLower(m.Segment.String()) + ":"
	}

	if m.Base == x86asm.RIP || m.Base == x86asm.EIP {
		addr := uint64(int64(next) + m.Disp)
		return Operand{Type: idb.Mem, Text: seg + "[" + hex(int64(addr)) + "]", Value: int64(addr)}
	}
	if m.Base == 0 && m.Index == 0 {
		addr := m.Disp
		if bits < 64 {
			addr = int64(uint32(addr))
		}
		return Operand{Type: idb.Mem, Text: seg + "[" + hex(addr) + "]", Value: addr}
	}

	var b strings.Builder
	b.WriteString(seg)
	b.WriteByte('[')
	if m.Base != 0 {
		b.WriteString(strings.ToLower(m.Base.String()))
	}
	if m.Index != 0 {
		if m.Base != 0 {
			b.WriteByte('+')
		}
		b.WriteString(strings.ToLower(m.Index.String()))
		if m.Scale > 1 {
			b.WriteString("*" + strconv.Itoa(int(m.Scale)))
		}
	}
	typ := idb.Phrase
	if m.Disp != 0 {
		typ = idb.Displ
		if m.Disp < 0 {
			b.WriteString("-" + hex(-m.Disp))
		} else {
			b.WriteString("+" + hex(m.Disp))
		}
	}
	b.WriteByte(']')
	op := Operand{Type: typ, Text: b.String(), Value: m.Disp}
	if m.Base != 0 {
		op.Base = strings.ToLower(m.Base.String())
	}
	return op
}

func sizePtr(n int) string {
	switch n {
	case 1:
		return "byte ptr "
	case 2:
		return "word ptr "
	case 4:
		return "dword ptr "
	case 8:
		return "qword ptr "
	case 10:
		return "tbyte ptr "
	case 16:
		return "xmmword ptr "
	case 32:
		return "ymmword ptr "
	}
	return ""
}

// hex renders small values in decimal and everything else as 0x hex.
func hex(v int64) string {
	switch {
	case v >= 0 && v < 10:
		return strconv.FormatInt(v, 10)
	case v < 0:
		return "-0x" + strconv.FormatUint(uint64(-v), 16)
	}
	return "0x" + strconv.FormatUint(uint64(v), 16)
}
