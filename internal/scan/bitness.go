package scan

import "idbkit/internal/idb"

// Bitness classifies the binary's address width as 64, 32 or 16.
func Bitness(info idb.Info) int {
	switch {
	case info.Is64:
		return 64
	case info.Is32:
		return 32
	default:
		return 16
	}
}
