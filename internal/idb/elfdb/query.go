package elfdb

import (
	"sort"

	"idbkit/internal/disasm"
	"idbkit/internal/idb"
)

var _ idb.Database = (*DB)(nil)

func (db *DB) Info() idb.Info { return db.info }

func (db *DB) headIndex(va idb.Addr) (int, bool) {
	i := sort.Search(len(db.heads), func(i int) bool { return db.heads[i].va >= va })
	return i, i < len(db.heads) && db.heads[i].va == va
}

// decodeHead decodes the instruction at h, reproducing the sweep's result.
func (db *DB) decodeHead(h head) disasm.Inst {
	i := sort.Search(len(db.code), func(i int) bool { return db.code[i].end() > h.va })
	r := db.code[i]
	buf := r.code[h.va-r.va:]
	in, err := db.dec.Decode(buf, h.va)
	if err != nil || in.Size != int(h.size) {
		return disasm.BadInst(buf[:h.size], h.va)
	}
	return in
}

// Inst decodes the instruction whose head is va.
func (db *DB) Inst(va idb.Addr) (*disasm.Inst, bool) {
	i, ok := db.headIndex(va)
	if !ok {
		return nil, false
	}
	in := db.decodeHead(db.heads[i])
	return &in, true
}

// NumHeads returns the number of decoded instructions.
func (db *DB) NumHeads() int { return len(db.heads) }

func (db *DB) operand(va idb.Addr, n int) (disasm.Operand, bool) {
	in, ok := db.Inst(va)
	if !ok || in.Bad() {
		return disasm.Operand{Type: idb.Invalid}, false
	}
	if n < 0 || n >= len(in.Ops) {
		return disasm.Operand{Type: idb.Void}, false
	}
	return in.Ops[n], true
}

func (db *DB) Mnemonic(va idb.Addr) string {
	if in, ok := db.Inst(va); ok && !in.Bad() {
		return in.Mnem
	}
	return ""
}

func (db *DB) OperandType(va idb.Addr, n int) idb.OpType {
	op, _ := db.operand(va, n)
	return op.Type
}

// OperandText renders branch targets by name when one is bound to them.
func (db *DB) OperandText(va idb.Addr, n int) string {
	op, ok := db.operand(va, n)
	if !ok {
		return ""
	}
	if op.Type == idb.Near {
		if name, ok := db.symAt[uint64(op.Value)]; ok {
			return name
		}
	}
	return op.Text
}

func (db *DB) OperandValue(va idb.Addr, n int) int64 {
	op, _ := db.operand(va, n)
	return op.Value
}

func (db *DB) NextHead(va, max idb.Addr) idb.Addr {
	i := sort.Search(len(db.heads), func(i int) bool { return db.heads[i].va > va })
	if i < len(db.heads) && db.heads[i].va < max {
		return db.heads[i].va
	}
	return idb.BadAddr
}

func (db *DB) PrevHead(va, min idb.Addr) idb.Addr {
	i, _ := db.headIndex(va)
	if i > 0 && db.heads[i-1].va >= min {
		return db.heads[i-1].va
	}
	return idb.BadAddr
}

// FuncAt returns the function containing va.
func (db *DB) FuncAt(va idb.Addr) (Func, bool) {
	i := sort.Search(len(db.funcs), func(i int) bool { return db.funcs[i].End > va })
	if i < len(db.funcs) && db.funcs[i].Start <= va {
		return db.funcs[i], true
	}
	return Func{}, false
}

func (db *DB) FuncStart(va idb.Addr) idb.Addr {
	if fn, ok := db.FuncAt(va); ok {
		return fn.Start
	}
	return idb.BadAddr
}

func (db *DB) FuncEnd(va idb.Addr) idb.Addr {
	if fn, ok := db.FuncAt(va); ok {
		return fn.End
	}
	return idb.BadAddr
}

// FuncName returns the display name of the function containing va, or "".
func (db *DB) FuncName(va idb.Addr) string {
	if fn, ok := db.FuncAt(va); ok {
		return fn.Display()
	}
	return ""
}

func (db *DB) XrefsTo(va idb.Addr) []idb.Xref { return db.xrefs[va] }

func (db *DB) NameAddr(name string) idb.Addr {
	if va, ok := db.names[name]; ok {
		return va
	}
	return idb.BadAddr
}

// NameAt returns the first name bound to va, or "".
func (db *DB) NameAt(va idb.Addr) string { return db.symAt[va] }

// Functions returns every known function in address order.
func (db *DB) Functions() []Func { return db.funcs }

// Heads decodes the instructions in [start, end).
func (db *DB) Heads(start, end idb.Addr) disasm.Stream {
	i, _ := db.headIndex(start)
	j, _ := db.headIndex(end)
	if i >= j {
		return nil
	}
	out := make(disasm.Stream, 0, j-i)
	for _, h := range db.heads[i:j] {
		out = append(out, db.decodeHead(h))
	}
	return out
}

// Listing renders in with its branch target named.
func (db *DB) Listing(in *disasm.Inst) string {
	if in.Flow == disasm.FlowNone || in.Target == 0 {
		return in.Text()
	}
	name, ok := db.symAt[in.Target]
	if !ok {
		return in.Text()
	}
	cp := *in
	cp.Ops = append([]disasm.Operand(nil), in.Ops...)
	for n := range cp.Ops {
		if cp.Ops[n].Type == idb.Near && uint64(cp.Ops[n].Value) == in.Target {
			cp.Ops[n].Text = name
		}
	}
	return cp.Text()
}
