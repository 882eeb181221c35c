// Package scan holds the scripting helpers built on top of an idb.Database:
// address formatting, bitness detection, call-site enumeration and the
// instruction pattern scanner.
package scan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"idbkit/internal/idb"
)

// ErrInvalidArgument reports a malformed request: an unknown direction, a
// start address that is not an integer, an under-specified operand spec, or
// a search with no filters at all.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

const (
	// DefaultMaxInstrs is the search budget used when a query leaves it zero.
	DefaultMaxInstrs = 9999

	// DefaultBackwardFloor bounds a backward walk that starts outside any
	// function.
	DefaultBackwardFloor idb.Addr = 0
)

// DefaultCallMnemonics are the mnemonics counted as call instructions.
var DefaultCallMnemonics = []string{"call"}

// Config tunes the helpers. The zero value is not usable; start from
// DefaultConfig.
type Config struct {
	MaxInstrs     int
	BackwardFloor idb.Addr
	CallMnemonics []string
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		MaxInstrs:     DefaultMaxInstrs,
		BackwardFloor: DefaultBackwardFloor,
		CallMnemonics: DefaultCallMnemonics,
	}
}

// ParseAddr parses a user-supplied address. Decimal, 0x-prefixed hex and
// bare hex with an "h" suffix are accepted.
func ParseAddr(s string) (idb.Addr, error) {
	t := strings.TrimSpace(strings.ToLower(s))
	if t == "" {
		return 0, invalidf("empty address")
	}
	if strings.HasSuffix(t, "h") {
		v, err := strconv.ParseUint(strings.TrimSuffix(t, "h"), 16, 64)
		if err != nil {
			return 0, invalidf("address %q is not an integer", s)
		}
		return v, nil
	}
	v, err := strconv.ParseUint(t, 0, 64)
	if err != nil {
		return 0, invalidf("address %q is not an integer", s)
	}
	return v, nil
}
