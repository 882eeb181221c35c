package scan

import (
	"log/slog"
	"slices"

	"idbkit/internal/idb"
)

// Scanner runs the address-based helpers against one database.
type Scanner struct {
	db  idb.Database
	cfg Config
}

// New returns a Scanner over db. Zero fields of cfg fall back to the
// defaults.
func New(db idb.Database, cfg Config) *Scanner {
	if cfg.MaxInstrs <= 0 {
		cfg.MaxInstrs = DefaultMaxInstrs
	}
	if len(cfg.CallMnemonics) == 0 {
		cfg.CallMnemonics = DefaultCallMnemonics
	}
	return &Scanner{db: db, cfg: cfg}
}

// DB returns the database the scanner queries.
func (s *Scanner) DB() idb.Database { return s.db }

// Target resolves the address a call-site query is about: va when nonzero,
// otherwise the highlighted identifier if it names a mapped address,
// otherwise the cursor location.
func (s *Scanner) Target(cur idb.Cursor, va idb.Addr) idb.Addr {
	if va != 0 {
		return va
	}
	if cur.Highlighted != "" {
		if named := s.db.NameAddr(cur.Highlighted); named < s.db.Info().MaxEA {
			return named
		}
	}
	return cur.Here
}

// CallSites returns the distinct addresses of call instructions that
// reference the resolved target, in ascending order.
func (s *Scanner) CallSites(cur idb.Cursor, va idb.Addr) []idb.Addr {
	target := s.Target(cur, va)

	seen := make(map[idb.Addr]struct{})
	var sites []idb.Addr
	for _, x := range s.db.XrefsTo(target) {
		if _, dup := seen[x.From]; dup {
			continue
		}
		if !slices.Contains(s.cfg.CallMnemonics, s.db.Mnemonic(x.From)) {
			continue
		}
		seen[x.From] = struct{}{}
		sites = append(sites, x.From)
	}
	slices.Sort(sites)

	slog.Debug("Collected call sites", "target", Phex(target), "sites", len(sites))
	return sites
}

// ForEachCallTo invokes fn once for every distinct call site referencing
// the resolved target.
func (s *Scanner) ForEachCallTo(cur idb.Cursor, va idb.Addr, fn func(idb.Addr)) {
	for _, site := range s.CallSites(cur, va) {
		fn(site)
	}
}
