package scan

import (
	"fmt"
	"strconv"
	"strings"

	"idbkit/internal/idb"
)

type nameKind uint8

const (
	nameNone nameKind = iota
	nameText
	nameValue
)

// OpSpec constrains one operand of an instruction: its position, and
// optionally its type code and its expected rendering. OpSpec values are
// immutable; the builder methods return modified copies.
type OpSpec struct {
	pos     int
	typ     idb.OpType
	hasType bool
	kind    nameKind
	text    string
	value   int64
}

// Operand starts a specification for the operand at position pos.
func Operand(pos int) OpSpec {
	return OpSpec{pos: pos}
}

// OfType requires the operand to have type code t.
func (s OpSpec) OfType(t idb.OpType) OpSpec {
	s.typ, s.hasType = t, true
	return s
}

// Text requires the operand to render as name. An empty name clears the
// constraint.
func (s OpSpec) Text(name string) OpSpec {
	s.kind, s.text, s.value = nameText, name, 0
	if name == "" {
		s.kind = nameNone
	}
	return s
}

// Value requires the operand's numeric value to be v. Only immediate
// operand types compare numerically; other types compare v's decimal text.
func (s OpSpec) Value(v int64) OpSpec {
	s.kind, s.value, s.text = nameValue, v, ""
	return s
}

// Pos returns the operand position.
func (s OpSpec) Pos() int { return s.pos }

// Type returns the required type code, if any.
func (s OpSpec) Type() (idb.OpType, bool) { return s.typ, s.hasType }

func (s OpSpec) hasName() bool { return s.kind != nameNone }

// nameText is the textual form of the expected name.
func (s OpSpec) nameText() string {
	if s.kind == nameValue {
		return strconv.FormatInt(s.value, 10)
	}
	return s.text
}

func (s OpSpec) validate() error {
	if s.pos < 0 {
		return invalidf("operand spec needs a position, got %d", s.pos)
	}
	if !s.hasType && !s.hasName() {
		return invalidf("operand spec %d needs a name or a type", s.pos)
	}
	return nil
}

func (s OpSpec) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:", s.pos)
	if s.hasType {
		b.WriteString(strconv.Itoa(int(s.typ)))
	}
	b.WriteByte(':')
	switch s.kind {
	case nameText:
		b.WriteString(strconv.Quote(s.text))
	case nameValue:
		b.WriteString(strconv.FormatInt(s.value, 10))
	}
	return b.String()
}

// ParseOpSpec parses "pos:type:name". type and name may be empty but not
// both. type is a code or a name such as "imm". A name that parses as an
// integer is a value, a quoted name is always text, anything else is text.
func ParseOpSpec(s string) (OpSpec, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return OpSpec{}, invalidf("operand spec %q: want pos:type:name", s)
	}
	pos, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return OpSpec{}, invalidf("operand spec %q: bad position", s)
	}
	spec := Operand(pos)
	if t := strings.TrimSpace(parts[1]); t != "" {
		typ, err := idb.ParseOpType(strings.ToLower(t))
		if err != nil {
			return OpSpec{}, invalidf("operand spec %q: %v", s, err)
		}
		spec = spec.OfType(typ)
	}
	if len(parts) == 3 && parts[2] != "" {
		name := parts[2]
		switch {
		case strings.HasPrefix(name, `"`) || strings.HasPrefix(name, "'"):
			if unq, err := strconv.Unquote(`"` + strings.Trim(name, `"'`) + `"`); err == nil {
				spec = spec.Text(unq)
			} else {
				spec = spec.Text(strings.Trim(name, `"'`))
			}
		default:
			if v, err := strconv.ParseInt(name, 0, 64); err == nil {
				spec = spec.Value(v)
			} else {
				spec = spec.Text(name)
			}
		}
	}
	if err := spec.validate(); err != nil {
		return OpSpec{}, err
	}
	return spec, nil
}
