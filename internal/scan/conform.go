package scan

import (
	"slices"
	"strings"

	"idbkit/internal/idb"
)

// IsConformantInstr reports whether the instruction at va has one of mnems
// (when any are given) and satisfies every spec in specs. At least one
// mnemonic or spec is required.
func IsConformantInstr(db idb.Database, va idb.Addr, mnems []string, specs []OpSpec) (bool, error) {
	if len(mnems) == 0 && len(specs) == 0 {
		return false, invalidf("must specify either a mnemonic or an operand specification list")
	}

	if len(mnems) > 0 && !slices.Contains(mnems, db.Mnemonic(va)) {
		return false, nil
	}

	for _, spec := range specs {
		ok, err := IsConformantOperand(db, va, spec)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// IsConformantOperand reports whether the operand of the instruction at va
// selected by spec satisfies it.
func IsConformantOperand(db idb.Database, va idb.Addr, spec OpSpec) (bool, error) {
	if err := spec.validate(); err != nil {
		return false, err
	}

	live := db.OperandType(va, spec.pos)
	if live == idb.Invalid || spec.hasType && live != spec.typ {
		return false, nil
	}
	if !spec.hasName() {
		return true, nil
	}

	text := db.OperandText(va, spec.pos)
	if !spec.hasType {
		return text == spec.nameText(), nil
	}

	switch spec.typ {
	case idb.Phrase, idb.Displ:
		// Hosts render indexed addressing inconsistently (scale, segment,
		// size prefixes), so only require the name to appear.
		return strings.Contains(text, spec.nameText()), nil
	case idb.Imm, idb.Far, idb.Near:
		if spec.kind == nameValue {
			return db.OperandValue(va, spec.pos) == spec.value, nil
		}
	}
	return text == spec.nameText(), nil
}
