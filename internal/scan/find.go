package scan

import (
	"log/slog"
	"strings"

	"idbkit/internal/idb"
)

// Direction is the order a search walks the listing in.
type Direction int

const (
	Forward Direction = iota
	// Backward walks toward lower addresses, i.e. up the listing.
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "up"
	}
	return "down"
}

// ParseDirection maps the usual synonyms onto a Direction.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "up", "back", "backward", "previous", "prev":
		return Backward, nil
	case "down", "forward", "next":
		return Forward, nil
	}
	return Forward, invalidf("invalid direction %q", s)
}

// Query describes an instruction search.
type Query struct {
	// Start is where the search begins; the instruction at Start itself is
	// not examined. Zero means the cursor location.
	Start     idb.Addr
	Direction Direction
	Mnemonics []string
	Operands  []OpSpec
	// MaxInstrs bounds the number of instructions visited. Zero means the
	// configured default.
	MaxInstrs int
}

// FindInstr walks from q.Start through the enclosing function and returns
// the first instruction conforming to q's mnemonics and operand specs.
// ok is false when the walk leaves the function, runs out of instructions
// or exhausts the budget.
func (s *Scanner) FindInstr(cur idb.Cursor, q Query) (va idb.Addr, ok bool, err error) {
	if len(q.Mnemonics) == 0 && len(q.Operands) == 0 {
		return 0, false, invalidf("must specify either a mnemonic or an operand specification list")
	}
	for _, spec := range q.Operands {
		if err := spec.validate(); err != nil {
			return 0, false, err
		}
	}
	if q.MaxInstrs < 0 {
		return 0, false, invalidf("instruction budget must be positive, got %d", q.MaxInstrs)
	}

	va = q.Start
	if va == 0 {
		va = cur.Here
	}

	budget := q.MaxInstrs
	if budget == 0 {
		budget = s.cfg.MaxInstrs
	}

	var (
		step func(ea, bound idb.Addr) idb.Addr
		stop idb.Addr
	)
	switch q.Direction {
	case Backward:
		step = s.db.PrevHead
		stop = s.db.FuncStart(va)
		if stop == idb.BadAddr {
			stop = s.cfg.BackwardFloor
		}
	case Forward:
		step = s.db.NextHead
		stop = s.db.FuncEnd(va)
	default:
		return 0, false, invalidf("invalid direction %d", int(q.Direction))
	}

	for n := 0; n < budget; n++ {
		va = step(va, stop)
		if va == 0 || va == idb.BadAddr {
			slog.Debug("Search ran out of instructions", "dir", q.Direction, "visited", n+1)
			return 0, false, nil
		}

		match, err := IsConformantInstr(s.db, va, q.Mnemonics, q.Operands)
		if err != nil {
			return 0, false, err
		}
		if match {
			return va, true, nil
		}
	}

	slog.Debug("Search budget exhausted", "dir", q.Direction, "budget", budget)
	return 0, false, nil
}
