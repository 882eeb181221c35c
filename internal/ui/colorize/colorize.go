// Package colorize highlights disassembly listings for the terminal.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Disabled reports whether IDBKIT_NO_COLOR or NO_COLOR turns colors off.
func Disabled() bool {
	return os.Getenv("IDBKIT_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

// lexerFor returns an assembly lexer for the processor, with fallbacks.
func lexerFor(proc string) chroma.Lexer {
	candidates := []string{"nasm", "gas"}
	if strings.HasPrefix(proc, "arm") {
		candidates = []string{"armasm", "gas", "nasm"}
	}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

func disasmStyle() *chroma.Style {
	for _, name := range []string{DisasmDark.Name, "dracula", "monokai"} {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

func terminalFormatter() chroma.Formatter {
	for _, name := range []string{"terminal16m", "terminal256"} {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// Assembly highlights a block of instruction text for proc.
func Assembly(proc, code string) (string, error) {
	if Disabled() {
		return code, nil
	}
	lexer := lexerFor(proc)
	if lexer == nil {
		return code, nil
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code, err
	}
	var buf strings.Builder
	if err := terminalFormatter().Format(&buf, disasmStyle(), iterator); err != nil {
		return code, err
	}
	return trimAddedNewline(buf.String(), code), nil
}

// trimAddedNewline drops the newline the lexer appends to code that did not
// end with one. The formatter may close styles after it.
func trimAddedNewline(out, code string) string {
	if strings.HasSuffix(code, "\n") {
		return out
	}
	i := strings.LastIndexByte(out, '\n')
	if i < 0 || Strip(out[i+1:]) != "" {
		return out
	}
	return out[:i] + out[i+1:]
}

// Line colorizes one listing line of the form "<addr> <instruction>". The
// address is printed in gray and the instruction is highlighted; lines
// that do not start with an address are highlighted whole.
func Line(proc, line string) string {
	if Disabled() {
		return line
	}

	addr, rest, ok := strings.Cut(line, " ")
	if !ok || !isAddress(addr) {
		out, _ := Assembly(proc, line)
		return out
	}
	out, _ := Assembly(proc, rest)
	return fmt.Sprintf("\033[38;2;79;79;79m%s\033[0m %s", addr, out)
}

func isAddress(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHexChar(s[i]) {
			return false
		}
	}
	return true
}

func isHexChar(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// Strip removes ANSI escape sequences.
func Strip(s string) string {
	var result strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			result.WriteRune(r)
		}
	}
	return result.String()
}
