package scan

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"idbkit/internal/idb"
	"idbkit/internal/idb/idbtest"
)

func TestPhex(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0x0"},
		{9, "0x9"},
		{16, "0x10"},
		{0x401000, "0x401000"},
		{0x7fffffffffffffff, "0x7fffffffffffffff"},
		{-5, "-0x5"},
	}
	for _, tt := range tests {
		if got := Phex(tt.in); got != tt.want {
			t.Errorf("Phex(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if got := Phex(idb.BadAddr); got != "0xffffffffffffffff" {
		t.Errorf("Phex(BadAddr) = %q", got)
	}
}

func TestPhexRoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 0xa, 0xdeadbeef, 1 << 40, idb.BadAddr - 1} {
		s := Phex(n)
		if !strings.HasPrefix(s, "0x") {
			t.Fatalf("Phex(%d) = %q, missing prefix", n, s)
		}
		last := s[len(s)-1]
		if !strings.ContainsRune("0123456789abcdef", rune(last)) {
			t.Errorf("Phex(%d) = %q ends in %q", n, s, last)
		}
		back, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil || back != n {
			t.Errorf("Phex(%d) = %q re-parses to %d (%v)", n, s, back, err)
		}
	}
}

func TestBitness(t *testing.T) {
	tests := []struct {
		name string
		info idb.Info
		want int
	}{
		{"64 only", idb.Info{Is64: true}, 64},
		{"64 and 32", idb.Info{Is64: true, Is32: true}, 64},
		{"32", idb.Info{Is32: true}, 32},
		{"neither", idb.Info{}, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Bitness(tt.info); got != tt.want {
				t.Errorf("Bitness = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in      string
		want    idb.Addr
		wantErr bool
	}{
		{"4198400", 4198400, false},
		{"0x401000", 0x401000, false},
		{"401000h", 0x401000, false},
		{" 0X10 ", 0x10, false},
		{"", 0, true},
		{"main", 0, true},
		{"12.5", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAddr(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("ParseAddr(%q) err = %v, want ErrInvalidArgument", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseAddr(%q) = %#x, %v; want %#x", tt.in, got, err, tt.want)
		}
	}
}

// callDB has one callee at 0x2000 referenced from three call sites, one of
// them reported twice, and from one jump.
func callDB() *idbtest.DB {
	db := idbtest.New(idb.Info{Is64: true, Is32: true, MaxEA: 0x10000})
	db.AddInst(
		idbtest.Inst{VA: 0x1000, Mnem: "call"},
		idbtest.Inst{VA: 0x1010, Mnem: "call"},
		idbtest.Inst{VA: 0x1020, Mnem: "jmp"},
		idbtest.Inst{VA: 0x1030, Mnem: "call"},
		idbtest.Inst{VA: 0x2000, Mnem: "push"},
	)
	db.AddXref(0x1010, 0x2000, idb.XrefCall)
	db.AddXref(0x1000, 0x2000, idb.XrefCall)
	db.AddXref(0x1010, 0x2000, idb.XrefData)
	db.AddXref(0x1020, 0x2000, idb.XrefJump)
	db.AddXref(0x1030, 0x2000, idb.XrefCall)
	db.AddName("callee", 0x2000)
	return db
}

func TestForEachCallTo(t *testing.T) {
	s := New(callDB(), DefaultConfig())

	counts := make(map[idb.Addr]int)
	s.ForEachCallTo(idb.Cursor{}, 0x2000, func(va idb.Addr) { counts[va]++ })

	want := map[idb.Addr]int{0x1000: 1, 0x1010: 1, 0x1030: 1}
	if len(counts) != len(want) {
		t.Fatalf("call sites = %v, want %v", counts, want)
	}
	for va, n := range want {
		if counts[va] != n {
			t.Errorf("site %#x visited %d times, want %d", va, counts[va], n)
		}
	}
}

func TestCallSitesTarget(t *testing.T) {
	s := New(callDB(), DefaultConfig())

	tests := []struct {
		name string
		cur  idb.Cursor
		va   idb.Addr
		want int
	}{
		{"explicit address wins", idb.Cursor{Here: 0x1000, Highlighted: "nothing"}, 0x2000, 3},
		{"highlighted identifier", idb.Cursor{Here: 0x1000, Highlighted: "callee"}, 0, 3},
		{"unknown identifier falls back to here", idb.Cursor{Here: 0x2000, Highlighted: "missing"}, 0, 3},
		{"here without callers", idb.Cursor{Here: 0x1000}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.CallSites(tt.cur, tt.va); len(got) != tt.want {
				t.Errorf("CallSites = %v, want %d sites", got, tt.want)
			}
		})
	}
}

func TestCallSitesCustomMnemonics(t *testing.T) {
	db := idbtest.New(idb.Info{Is64: true, MaxEA: 0x10000})
	db.AddInst(
		idbtest.Inst{VA: 0x100, Mnem: "bl"},
		idbtest.Inst{VA: 0x104, Mnem: "b"},
	)
	db.AddXref(0x100, 0x200, idb.XrefCall)
	db.AddXref(0x104, 0x200, idb.XrefJump)

	s := New(db, Config{CallMnemonics: []string{"bl", "blr"}})
	got := s.CallSites(idb.Cursor{}, 0x200)
	if len(got) != 1 || got[0] != 0x100 {
		t.Errorf("CallSites = %v, want [0x100]", got)
	}
}
