package disasm

import (
	"testing"

	"idbkit/internal/idb"
)

// x86Code is a small 32-bit function mapped at 0x1000.
var x86Code = []byte{
	0x55,                   // 1000 push ebp
	0x89, 0xe5,             // 1001 mov ebp, esp
	0x8b, 0x04, 0x88,       // 1003 mov eax, [eax+ecx*4]
	0x8b, 0x44, 0x88, 0x08, // 1006 mov eax, [eax+ecx*4+8]
	0x83, 0xf8, 0x10, // 100a cmp eax, 0x10
	0xe8, 0x00, 0x00, 0x00, 0x00, // 100d call 1012
	0xc7, 0x05, 0x00, 0x20, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, // 1012 mov dword ptr [0x2000], 1
	0xc3, // 101c ret
}

func TestSweepX86(t *testing.T) {
	s := Sweep(X86(32), x86Code, 0x1000)

	want := []struct {
		va   uint64
		text string
		flow Flow
	}{
		{0x1000, "push ebp", FlowNone},
		{0x1001, "mov ebp, esp", FlowNone},
		{0x1003, "mov eax, [eax+ecx*4]", FlowNone},
		{0x1006, "mov eax, [eax+ecx*4+8]", FlowNone},
		{0x100a, "cmp eax, 0x10", FlowNone},
		{0x100d, "call 0x1012", FlowCall},
		{0x1012, "mov dword ptr [0x2000], 1", FlowNone},
		{0x101c, "ret", FlowRet},
	}
	if len(s) != len(want) {
		t.Fatalf("decoded %d instructions, want %d", len(s), len(want))
	}
	for i, w := range want {
		if s[i].VA != w.va || s[i].Text() != w.text || s[i].Flow != w.flow {
			t.Errorf("inst %d = %#x %q flow %d; want %#x %q flow %d",
				i, s[i].VA, s[i].Text(), s[i].Flow, w.va, w.text, w.flow)
		}
	}
}

func TestX86Operands(t *testing.T) {
	s := Sweep(X86(32), x86Code, 0x1000)

	tests := []struct {
		name  string
		inst  int
		op    int
		typ   idb.OpType
		value int64
	}{
		{"register", 0, 0, idb.Reg, -1},
		{"base+index", 2, 1, idb.Phrase, 0},
		{"base+index+disp", 3, 1, idb.Displ, 8},
		{"immediate", 4, 1, idb.Imm, 16},
		{"near target", 5, 0, idb.Near, 0x1012},
		{"direct memory", 6, 0, idb.Mem, 0x2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := s[tt.inst].Ops[tt.op]
			if op.Type != tt.typ {
				t.Errorf("type = %v, want %v", op.Type, tt.typ)
			}
			if tt.value >= 0 && op.Value != tt.value {
				t.Errorf("value = %#x, want %#x", op.Value, tt.value)
			}
		})
	}

	if s[5].Target != 0x1012 {
		t.Errorf("call target = %#x, want 0x1012", s[5].Target)
	}
	if s[6].DataRef != 0x2000 {
		t.Errorf("data ref = %#x, want 0x2000", s[6].DataRef)
	}
}

func TestX86RIPRelative(t *testing.T) {
	// mov rax, [rip+0x10]
	inst, err := X86(64).Decode([]byte{0x48, 0x8b, 0x05, 0x10, 0x00, 0x00, 0x00}, 0x400000)
	if err != nil {
		t.Fatal(err)
	}
	op := inst.Ops[1]
	if op.Type != idb.Mem || op.Value != 0x400017 || op.Text != "[0x400017]" {
		t.Errorf("operand = %+v, want mem 0x400017", op)
	}
	if inst.DataRef != 0x400017 {
		t.Errorf("DataRef = %#x", inst.DataRef)
	}
}

func TestX86PICJump(t *testing.T) {
	// jmp dword ptr [ebx+0xc]
	inst, err := X86(32).Decode([]byte{0xff, 0xa3, 0x0c, 0x00, 0x00, 0x00}, 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	op := inst.Ops[0]
	if inst.Mnem != "jmp" || op.Type != idb.Displ || op.Value != 0xc || op.Base != "ebx" {
		t.Errorf("jmp operand = %+v, want displ 0xc base ebx", op)
	}
}

func TestX86BranchWraps(t *testing.T) {
	tests := []struct {
		name string
		bits int
		want uint64
	}{
		{"32-bit", 32, 0xffffff15},
		{"64-bit", 64, 0xffffffffffffff15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// call rel32 -0x100 from 0x10
			inst, err := X86(tt.bits).Decode([]byte{0xe8, 0x00, 0xff, 0xff, 0xff}, 0x10)
			if err != nil {
				t.Fatal(err)
			}
			if inst.Target != tt.want || uint64(inst.Ops[0].Value) != tt.want {
				t.Errorf("target = %#x, operand = %+v, want %#x", inst.Target, inst.Ops[0], tt.want)
			}
		})
	}
}

func TestSweepBadBytes(t *testing.T) {
	s := Sweep(X86(64), []byte{0xc3, 0xff}, 0x10)
	if len(s) != 2 {
		t.Fatalf("decoded %d instructions, want 2", len(s))
	}
	if !s[1].Bad() || s[1].Size != 1 || s[1].VA != 0x11 {
		t.Errorf("trailing byte = %+v, want 1-byte (bad)", s[1])
	}
}

func TestSweepARM64(t *testing.T) {
	code := []byte{
		0x02, 0x00, 0x00, 0x94, // 1000 bl 1008
		0x20, 0x04, 0x40, 0xf9, // 1004 ldr x0, [x1,#8]
		0x80, 0x00, 0x00, 0x54, // 1008 b.eq 1018
		0xc0, 0x03, 0x5f, 0xd6, // 100c ret
		0x00, 0x00, // truncated
	}
	s := Sweep(ARM64(), code, 0x1000)
	if len(s) != 5 {
		t.Fatalf("decoded %d instructions, want 5", len(s))
	}

	if s[0].Mnem != "bl" || s[0].Flow != FlowCall || s[0].Target != 0x1008 {
		t.Errorf("bl = %+v", s[0])
	}
	if op := s[1].Ops[1]; op.Type != idb.Displ || op.Value != 8 {
		t.Errorf("ldr operand = %+v, want displ 8", op)
	}
	if s[2].Mnem != "b.eq" || s[2].Flow != FlowCondJump || s[2].Target != 0x1018 {
		t.Errorf("b.eq = %+v", s[2])
	}
	if s[3].Mnem != "ret" || s[3].Flow != FlowRet {
		t.Errorf("ret = %+v", s[3])
	}
	if !s[4].Bad() || s[4].Size != 2 {
		t.Errorf("tail = %+v, want 2-byte (bad)", s[4])
	}
}

func TestArm64Mem(t *testing.T) {
	tests := []struct {
		in    string
		typ   idb.OpType
		value int64
		base  string
	}{
		{"[X0]", idb.Phrase, 0, "x0"},
		{"[X0,#16]", idb.Displ, 16, "x0"},
		{"[SP,#-32]!", idb.Displ, -32, "sp"},
		{"[X1],#8", idb.Displ, 8, "x1"},
	}
	for _, tt := range tests {
		op := arm64Mem(tt.in)
		if op.Type != tt.typ || op.Value != tt.value || op.Base != tt.base {
			t.Errorf("arm64Mem(%q) = %+v, want %v %d base %q", tt.in, op, tt.typ, tt.value, tt.base)
		}
	}
}

func TestWalkMatchesSweep(t *testing.T) {
	var n int
	want := Sweep(X86(32), x86Code, 0x1000)
	Walk(X86(32), x86Code, 0x1000, func(in *Inst) {
		if n >= len(want) || in.VA != want[n].VA || in.Text() != want[n].Text() {
			t.Errorf("walk step %d = %#x %q", n, in.VA, in.Text())
		}
		n++
	})
	if n != len(want) {
		t.Errorf("walk visited %d instructions, want %d", n, len(want))
	}
}
