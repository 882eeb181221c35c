// Package idbtest provides an in-memory idb.Database for tests.
package idbtest

import (
	"sort"

	"idbkit/internal/idb"
)

// Op is one operand of a test instruction.
type Op struct {
	Type  idb.OpType
	Text  string
	Value int64
}

// Inst is a test instruction.
type Inst struct {
	VA   idb.Addr
	Mnem string
	Ops  []Op
}

// Func is a half-open function range.
type Func struct {
	Start, End idb.Addr
}

// DB is a programmable database. Build it with the Add methods and do not
// modify it while it is being queried.
type DB struct {
	info  idb.Info
	insts map[idb.Addr]Inst
	heads []idb.Addr
	funcs []Func
	xrefs map[idb.Addr][]idb.Xref
	names map[string]idb.Addr

	// Visited records every head returned by NextHead/PrevHead, in order.
	Visited []idb.Addr
}

// New returns an empty database describing a binary with info.
func New(info idb.Info) *DB {
	return &DB{
		info:  info,
		insts: make(map[idb.Addr]Inst),
		xrefs: make(map[idb.Addr][]idb.Xref),
		names: make(map[string]idb.Addr),
	}
}

// AddInst adds instructions. Heads stay sorted.
func (d *DB) AddInst(insts ...Inst) *DB {
	for _, in := range insts {
		if _, ok := d.insts[in.VA]; !ok {
			d.heads = append(d.heads, in.VA)
		}
		d.insts[in.VA] = in
	}
	sort.Slice(d.heads, func(i, j int) bool { return d.heads[i] < d.heads[j] })
	return d
}

// AddFunc adds a function range.
func (d *DB) AddFunc(start, end idb.Addr) *DB {
	d.funcs = append(d.funcs, Func{start, end})
	return d
}

// AddXref records a reference from -> to.
func (d *DB) AddXref(from, to idb.Addr, kind idb.XrefKind) *DB {
	d.xrefs[to] = append(d.xrefs[to], idb.Xref{From: from, To: to, Kind: kind})
	return d
}

// AddName binds a symbol name.
func (d *DB) AddName(name string, va idb.Addr) *DB {
	d.names[name] = va
	return d
}

func (d *DB) Info() idb.Info { return d.info }

func (d *DB) Mnemonic(va idb.Addr) string { return d.insts[va].Mnem }

func (d *DB) op(va idb.Addr, n int) (Op, bool) {
	in, ok := d.insts[va]
	if !ok || n < 0 {
		return Op{}, false
	}
	if n >= len(in.Ops) {
		return Op{Type: idb.Void}, true
	}
	return in.Ops[n], true
}

func (d *DB) OperandType(va idb.Addr, n int) idb.OpType {
	op, ok := d.op(va, n)
	if !ok {
		return idb.Invalid
	}
	return op.Type
}

func (d *DB) OperandText(va idb.Addr, n int) string {
	op, _ := d.op(va, n)
	return op.Text
}

func (d *DB) OperandValue(va idb.Addr, n int) int64 {
	op, _ := d.op(va, n)
	return op.Value
}

func (d *DB) NextHead(va, max idb.Addr) idb.Addr {
	i := sort.Search(len(d.heads), func(i int) bool { return d.heads[i] > va })
	next := idb.BadAddr
	if i < len(d.heads) && d.heads[i] < max {
		next = d.heads[i]
	}
	d.Visited = append(d.Visited, next)
	return next
}

func (d *DB) PrevHead(va, min idb.Addr) idb.Addr {
	i := sort.Search(len(d.heads), func(i int) bool { return d.heads[i] >= va })
	prev := idb.BadAddr
	if i > 0 && d.heads[i-1] >= min {
		prev = d.heads[i-1]
	}
	d.Visited = append(d.Visited, prev)
	return prev
}

func (d *DB) fn(va idb.Addr) (Func, bool) {
	for _, f := range d.funcs {
		if va >= f.Start && va < f.End {
			return f, true
		}
	}
	return Func{}, false
}

func (d *DB) FuncStart(va idb.Addr) idb.Addr {
	if f, ok := d.fn(va); ok {
		return f.Start
	}
	return idb.BadAddr
}

func (d *DB) FuncEnd(va idb.Addr) idb.Addr {
	if f, ok := d.fn(va); ok {
		return f.End
	}
	return idb.BadAddr
}

func (d *DB) XrefsTo(va idb.Addr) []idb.Xref { return d.xrefs[va] }

func (d *DB) NameAddr(name string) idb.Addr {
	if va, ok := d.names[name]; ok {
		return va
	}
	return idb.BadAddr
}
