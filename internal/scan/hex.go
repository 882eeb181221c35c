package scan

import "strconv"

// Integer is any built-in integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Phex formats n as lowercase hex with a 0x prefix, suitable for pasting
// back into an address prompt.
func Phex[T Integer](n T) string {
	if n < 0 {
		return "-0x" + strconv.FormatUint(uint64(-int64(n)), 16)
	}
	return "0x" + strconv.FormatUint(uint64(n), 16)
}
