package elfdb

import (
	"encoding/binary"
	"testing"

	"idbkit/internal/disasm"
)

func TestParseRelocs(t *testing.T) {
	le := binary.LittleEndian

	// Two Elf64_Rela entries: GOT 0x4018 -> symbol 3, GOT 0x4020 -> symbol 5.
	rela64 := make([]byte, 48)
	le.PutUint64(rela64[0:], 0x4018)
	le.PutUint64(rela64[8:], 3<<32|7)
	le.PutUint64(rela64[24:], 0x4020)
	le.PutUint64(rela64[32:], 5<<32|7)

	// One Elf32_Rel entry: GOT 0x804a00c -> symbol 2.
	rel32 := make([]byte, 8)
	le.PutUint32(rel32[0:], 0x804a00c)
	le.PutUint32(rel32[4:], 2<<8|7)

	// One big-endian Elf32_Rela entry.
	rela32 := make([]byte, 12)
	binary.BigEndian.PutUint32(rela32[0:], 0x10010)
	binary.BigEndian.PutUint32(rela32[4:], 9<<8|21)

	tests := []struct {
		name       string
		data       []byte
		is64, rela bool
		order      binary.ByteOrder
		want       []pltReloc
	}{
		{"rela64", rela64, true, true, le, []pltReloc{{0x4018, 3}, {0x4020, 5}}},
		{"rel32", rel32, false, false, le, []pltReloc{{0x804a00c, 2}}},
		{"rela32 big endian", rela32, false, true, binary.BigEndian, []pltReloc{{0x10010, 9}}},
		{"empty", nil, true, true, le, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRelocs(tt.data, tt.is64, tt.rela, tt.order)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseRelocs = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestMatchStubs(t *testing.T) {
	tests := []struct {
		name   string
		dec    disasm.Decoder
		base   uint64
		gotPLT uint64
		code   []byte
		relocs map[uint64]string
		want   []pltStub
	}{
		{
			name: "x86-64 rip-relative",
			dec:  disasm.X86(64),
			base: 0x1020,
			code: []byte{
				0xff, 0x25, 0xf2, 0x2f, 0x00, 0x00, // 1020 jmp [rip+0x2ff2] -> 0x4018
				0x68, 0x00, 0x00, 0x00, 0x00, // 1026 push 0
				0xe9, 0xe0, 0xff, 0xff, 0xff, // 102b jmp 1010
				0xff, 0x25, 0xf2, 0x2f, 0x00, 0x00, // 1030 jmp [rip+0x2ff2] -> 0x4028
				0x68, 0x01, 0x00, 0x00, 0x00, // 1036 push 1
				0xe9, 0xd0, 0xff, 0xff, 0xff, // 103b jmp 1010
			},
			relocs: map[uint64]string{0x4018: "puts", 0x4028: "malloc"},
			want: []pltStub{
				{Addr: 0x1020, Size: 16, GOTAddr: 0x4018, Name: "puts"},
				{Addr: 0x1030, Size: 16, GOTAddr: 0x4028, Name: "malloc"},
			},
		},
		{
			name:   "i386 pic",
			dec:    disasm.X86(32),
			base:   0x2000,
			gotPLT: 0x3000,
			code: []byte{
				0xff, 0xa3, 0x0c, 0x00, 0x00, 0x00, // 2000 jmp dword ptr [ebx+0xc]
				0x68, 0x00, 0x00, 0x00, 0x00, // 2006 push 0
				0xe9, 0x00, 0x00, 0x00, 0x00, // 200b jmp 2010
				0xff, 0xa3, 0x10, 0x00, 0x00, 0x00, // 2010 jmp dword ptr [ebx+0x10]
				0x68, 0x08, 0x00, 0x00, 0x00, // 2016 push 8
				0xe9, 0x00, 0x00, 0x00, 0x00, // 201b jmp 2020
			},
			relocs: map[uint64]string{0x300c: "puts", 0x3010: "malloc"},
			want: []pltStub{
				{Addr: 0x2000, Size: 16, GOTAddr: 0x300c, Name: "puts"},
				{Addr: 0x2010, Size: 16, GOTAddr: 0x3010, Name: "malloc"},
			},
		},
		{
			name:   "i386 pic without got.plt",
			dec:    disasm.X86(32),
			base:   0x2000,
			code:   []byte{0xff, 0xa3, 0x0c, 0x00, 0x00, 0x00},
			relocs: map[uint64]string{0x300c: "puts"},
		},
		{
			name: "arm64",
			dec:  disasm.ARM64(),
			base: 0x1000,
			code: []byte{
				0x10, 0x00, 0x00, 0xb0, // 1000 adrp x16, 0x2000
				0x11, 0x0e, 0x40, 0xf9, // 1004 ldr x17, [x16,#24]
				0x10, 0x62, 0x00, 0x91, // 1008 add x16, x16, #0x18
				0x20, 0x02, 0x1f, 0xd6, // 100c br x17
			},
			relocs: map[uint64]string{0x2018: "free"},
			want:   []pltStub{{Addr: 0x1000, Size: 16, GOTAddr: 0x2018, Name: "free"}},
		},
		{
			name:   "unrelocated slot",
			dec:    disasm.X86(64),
			base:   0x1020,
			code:   []byte{0xff, 0x25, 0xf2, 0x2f, 0x00, 0x00},
			relocs: map[uint64]string{0x5000: "puts"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insts := disasm.Sweep(tt.dec, tt.code, tt.base)
			got := matchStubs(insts, tt.base, 16, tt.gotPLT, tt.relocs)
			if len(got) != len(tt.want) {
				t.Fatalf("matchStubs = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("stub %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPLTSymbols(t *testing.T) {
	db := &DB{plt: []pltStub{
		{Addr: 0x1020, Size: 16, GOTAddr: 0x4018, Name: "puts"},
		{Addr: 0x1100, Size: 8, GOTAddr: 0x4ff0, Name: "__cxa_finalize"},
	}}
	want := []symbol{
		{name: "puts@plt", addr: 0x1020, size: 16, isFn: true},
		{name: "__cxa_finalize@plt", addr: 0x1100, size: 8, isFn: true},
	}
	got := db.pltSymbols()
	if len(got) != len(want) {
		t.Fatalf("pltSymbols = %+v, want %+v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("symbol %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
