package elfdb

import (
	"testing"

	"idbkit/internal/disasm"
)

func TestStringAt(t *testing.T) {
	image := []byte("\x00hello\x00a\x00tab\there\x00\x01\x02\x00quote\"\x00unterminated")
	db := &DB{
		all:   image,
		loads: []seg{{Vaddr: 0x2000, Off: 0, Filesz: uint64(len(image)), Memsz: uint64(len(image))}},
		symAt: map[uint64]string{0x3000: "table"},
	}

	tests := []struct {
		va   uint64
		want string
		ok   bool
	}{
		{0x2001, "hello", true},
		{0x2007, "", false}, // too short
		{0x2009, `tab\there`, true},
		{0x2012, "", false}, // control bytes
		{0x2015, `quote\"`, true},
		{0x201c, "", false}, // no terminator before the segment ends
		{0x9000, "", false}, // unmapped
	}
	for _, tt := range tests {
		got, ok := db.StringAt(tt.va)
		if got != tt.want || ok != tt.ok {
			t.Errorf("StringAt(%#x) = %q, %v; want %q, %v", tt.va, got, ok, tt.want, tt.ok)
		}
	}

	if got := db.Comment(&disasm.Inst{DataRef: 0x2001}); got != `"hello"` {
		t.Errorf("Comment(string) = %q", got)
	}
	if got := db.Comment(&disasm.Inst{DataRef: 0x3000}); got != "table" {
		t.Errorf("Comment(name) = %q", got)
	}
	if got := db.Comment(&disasm.Inst{}); got != "" {
		t.Errorf("Comment(no ref) = %q", got)
	}
}
