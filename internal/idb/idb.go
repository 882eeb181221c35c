// Package idb describes the analysis database a script queries: the loaded
// binary's instructions, operands, functions, names and cross-references.
//
// The helpers in this module never reach for global host state. Everything
// they know about the binary comes through a Database, and everything they
// know about the user's position in it comes through a Cursor.
package idb

import (
	"fmt"
	"strconv"
)

// Addr locates a byte in the loaded binary's address space.
type Addr = uint64

// BadAddr is the "no such address" sentinel returned by host queries.
const BadAddr Addr = ^Addr(0)

// OpType is an operand type code. The numbering follows the codes used by
// interactive disassemblers, so existing scripts can keep their literals.
type OpType int

const (
	Invalid OpType = -1 // address holds no instruction
	Void    OpType = 0  // no operand at this position
	Reg     OpType = 1  // general register
	Mem     OpType = 2  // direct memory reference
	Phrase  OpType = 3  // [base+index]
	Displ   OpType = 4  // [base+index+displacement]
	Imm     OpType = 5  // immediate value
	Far     OpType = 6  // immediate far address
	Near    OpType = 7  // immediate near address
	Special OpType = 8  // processor specific
)

var opTypeNames = map[OpType]string{
	Invalid: "invalid",
	Void:    "void",
	Reg:     "reg",
	Mem:     "mem",
	Phrase:  "phrase",
	Displ:   "displ",
	Imm:     "imm",
	Far:     "far",
	Near:    "near",
	Special: "special",
}

func (t OpType) String() string {
	if s, ok := opTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("optype(%d)", int(t))
}

// ParseOpType accepts either a type name ("imm", "phrase") or its numeric code.
func ParseOpType(s string) (OpType, error) {
	for t, name := range opTypeNames {
		if name == s {
			return t, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Invalid, fmt.Errorf("unknown operand type %q", s)
	}
	return OpType(n), nil
}

// Info describes the loaded binary.
type Info struct {
	Proc  string // processor name, e.g. "x86-64"
	Is64  bool
	Is32  bool // also set for 64-bit images, mirroring flat-model hosts
	MinEA Addr
	MaxEA Addr // one past the highest mapped address
	Entry Addr
}

// XrefKind classifies a cross-reference.
type XrefKind int

const (
	XrefCall XrefKind = iota
	XrefJump
	XrefData
)

func (k XrefKind) String() string {
	switch k {
	case XrefCall:
		return "call"
	case XrefJump:
		return "jump"
	default:
		return "data"
	}
}

// Xref records that the instruction at From references To.
type Xref struct {
	From Addr
	To   Addr
	Kind XrefKind
}

// Database is the set of host queries the helpers are built on.
//
// Queries on addresses that hold no instruction return the zero value of
// their result ("" for text, Invalid for operand types) rather than errors.
type Database interface {
	Info() Info

	// Mnemonic returns the lowercase mnemonic of the instruction at va.
	Mnemonic(va Addr) string
	OperandType(va Addr, n int) OpType
	OperandText(va Addr, n int) string
	OperandValue(va Addr, n int) int64

	// NextHead returns the first instruction head after va and below max,
	// or BadAddr.
	NextHead(va, max Addr) Addr
	// PrevHead returns the last instruction head before va and at or above
	// min, or BadAddr.
	PrevHead(va, min Addr) Addr

	// FuncStart and FuncEnd bound the function containing va. Both return
	// BadAddr outside any function.
	FuncStart(va Addr) Addr
	FuncEnd(va Addr) Addr

	XrefsTo(va Addr) []Xref
	// NameAddr resolves a symbol name, returning BadAddr when unknown.
	NameAddr(name string) Addr
}

// Cursor is the user's position in the database: the current location and
// the identifier under the cursor, if any.
type Cursor struct {
	Here        Addr
	Highlighted string
}
