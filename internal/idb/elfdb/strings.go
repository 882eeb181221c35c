package elfdb

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"idbkit/internal/disasm"
	"idbkit/internal/idb"
)

const maxStringLen = 256

// bytesAt returns up to n file-backed bytes starting at va, stopping at the
// end of the segment.
func (db *DB) bytesAt(va idb.Addr, n uint64) []byte {
	for _, l := range db.loads {
		if va < l.Vaddr || va >= l.Vaddr+l.Filesz {
			continue
		}
		off := l.Off + (va - l.Vaddr)
		end := min(off+n, l.Off+l.Filesz, uint64(len(db.all)))
		if off >= end {
			return nil
		}
		return db.all[off:end]
	}
	return nil
}

// StringAt reads the NUL-terminated string at va. It fails unless the
// string is at least two characters of printable UTF-8.
func (db *DB) StringAt(va idb.Addr) (string, bool) {
	raw := db.bytesAt(va, maxStringLen)
	n := bytes.IndexByte(raw, 0)
	if n < 2 || !utf8.Valid(raw[:n]) {
		return "", false
	}
	raw = raw[:n]
	for _, r := range string(raw) {
		if !unicode.IsPrint(r) && !strings.ContainsRune("\t\n\r", r) {
			return "", false
		}
	}
	return escapeString(raw), true
}

// escapeString keeps printable runes and escapes the rest.
func escapeString(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		switch {
		case r == utf8.RuneError && size == 1:
			fmt.Fprintf(&sb, "\\x%02x", b[0])
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '"' || r == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		default:
			fmt.Fprintf(&sb, "\\u%04x", r)
		}
		b = b[size:]
	}
	return sb.String()
}

// Comment describes the data in references: the string it points at, or
// the name bound to it.
func (db *DB) Comment(in *disasm.Inst) string {
	if in.DataRef == 0 {
		return ""
	}
	if s, ok := db.StringAt(in.DataRef); ok {
		return `"` + s + `"`
	}
	return db.NameAt(in.DataRef)
}
