package colorize

import (
	"strings"
	"testing"
)

func TestLineNoColor(t *testing.T) {
	t.Setenv("IDBKIT_NO_COLOR", "1")
	line := "0x1000 mov eax, [ebx+4]"
	if got := Line("x86", line); got != line {
		t.Errorf("Line with colors disabled = %q, want %q", got, line)
	}
}

func TestLineKeepsText(t *testing.T) {
	t.Setenv("IDBKIT_NO_COLOR", "")
	t.Setenv("NO_COLOR", "")

	tests := []struct {
		proc string
		line string
	}{
		{"x86-64", "0x401000 call sub_401020"},
		{"arm64", "0x1000 ldr x0, [x1,#8]"},
		{"x86", "push ebp"},
	}
	for _, tt := range tests {
		got := Line(tt.proc, tt.line)
		if Strip(got) != tt.line {
			t.Errorf("Line(%q) strips to %q", tt.line, Strip(got))
		}
		if !strings.Contains(got, "\x1b[") {
			t.Errorf("Line(%q) has no escape sequences", tt.line)
		}
	}
}

func TestIsAddress(t *testing.T) {
	tests := map[string]bool{
		"0x1000": true,
		"dead":   true,
		"0x":     false,
		"mov":    false,
		"":       false,
	}
	for in, want := range tests {
		if got := isAddress(in); got != want {
			t.Errorf("isAddress(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTrimAddedNewline(t *testing.T) {
	tests := []struct {
		out, code, want string
	}{
		{"\x1b[1mret\n\x1b[0m", "ret", "\x1b[1mret\x1b[0m"},
		{"ret\n", "ret", "ret"},
		{"ret\n", "ret\n", "ret\n"},
		{"ret", "ret", "ret"},
	}
	for _, tt := range tests {
		if got := trimAddedNewline(tt.out, tt.code); got != tt.want {
			t.Errorf("trimAddedNewline(%q, %q) = %q, want %q", tt.out, tt.code, got, tt.want)
		}
	}
}
