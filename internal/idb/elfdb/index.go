package elfdb

import (
	"fmt"
	"sort"

	"idbkit/internal/disasm"
	"idbkit/internal/idb"
)

type textRange struct {
	name string
	va   uint64
	code []byte
}

func (r textRange) end() uint64 { return r.va + uint64(len(r.code)) }

// head is an instruction boundary. Instructions are decoded again on
// demand, so the table stays small for large images.
type head struct {
	va   uint64
	size uint32
}

// decode sweeps every code range, recording instruction heads and the
// references each instruction makes.
func (db *DB) decode(code []textRange) {
	sort.Slice(code, func(i, j int) bool { return code[i].va < code[j].va })
	db.code = code
	db.xrefs = make(map[idb.Addr][]idb.Xref)
	for _, r := range code {
		disasm.Walk(db.dec, r.code, r.va, func(in *disasm.Inst) {
			db.heads = append(db.heads, head{va: in.VA, size: uint32(in.Size)})
			switch in.Flow {
			case disasm.FlowCall:
				if in.Target != 0 {
					db.addXref(in.VA, in.Target, idb.XrefCall)
				}
			case disasm.FlowJump, disasm.FlowCondJump:
				if in.Target != 0 {
					db.addXref(in.VA, in.Target, idb.XrefJump)
				}
			}
			if in.DataRef != 0 {
				db.addXref(in.VA, in.DataRef, idb.XrefData)
			}
		})
	}
}

// index builds the function and name tables.
func (db *DB) index(syms []symbol) {
	db.names = make(map[string]idb.Addr)
	db.symAt = make(map[idb.Addr]string)
	for _, s := range syms {
		db.bind(s.name, s.addr)
	}

	db.funcs = buildFuncs(db.code, syms, db.callTargets())
	for _, fn := range db.funcs {
		db.bind(fn.Name, fn.Start)
	}
}

// bind records a name for va. The first name bound to an address is the
// one used when rendering it.
func (db *DB) bind(name string, va idb.Addr) {
	if _, ok := db.names[name]; !ok {
		db.names[name] = va
	}
	if d := demangled(name); d != "" {
		if _, ok := db.names[d]; !ok {
			db.names[d] = va
		}
	}
	if _, ok := db.symAt[va]; !ok {
		db.symAt[va] = name
	}
}

func (db *DB) addXref(from, to idb.Addr, kind idb.XrefKind) {
	db.xrefs[to] = append(db.xrefs[to], idb.Xref{From: from, To: to, Kind: kind})
}

func (db *DB) callTargets() []idb.Addr {
	var out []idb.Addr
	for to, xs := range db.xrefs {
		for _, x := range xs {
			if x.Kind == idb.XrefCall {
				out = append(out, to)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// buildFuncs derives function ranges. Sized function symbols are taken as
// is; call targets that no symbol covers become sub_XXXX functions running
// to the next known start or the end of their section.
func buildFuncs(code []textRange, syms []symbol, callTargets []idb.Addr) []Func {
	inCode := func(va uint64) (textRange, bool) {
		for _, r := range code {
			if va >= r.va && va < r.end() {
				return r, true
			}
		}
		return textRange{}, false
	}

	seen := make(map[idb.Addr]bool)
	var funcs []Func
	for _, s := range syms {
		if !s.isFn || s.size == 0 || seen[s.addr] {
			continue
		}
		if _, ok := inCode(s.addr); !ok {
			continue
		}
		seen[s.addr] = true
		funcs = append(funcs, Func{
			Name:      s.name,
			Demangled: demangled(s.name),
			Start:     s.addr,
			End:       s.addr + s.size,
		})
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Start < funcs[j].Start })
	funcs = dropOverlaps(funcs)

	covered := func(va idb.Addr) bool {
		i := sort.Search(len(funcs), func(i int) bool { return funcs[i].End > va })
		return i < len(funcs) && funcs[i].Start <= va
	}

	var starts []idb.Addr
	for _, t := range callTargets {
		if _, ok := inCode(t); ok && !seen[t] && !covered(t) {
			starts = append(starts, t)
			seen[t] = true
		}
	}
	if len(starts) == 0 {
		return funcs
	}

	var synth []Func
	for i, start := range starts {
		r, _ := inCode(start)
		end := r.end()
		if i+1 < len(starts) && starts[i+1] < end {
			end = starts[i+1]
		}
		j := sort.Search(len(funcs), func(j int) bool { return funcs[j].Start > start })
		if j < len(funcs) && funcs[j].Start < end {
			end = funcs[j].Start
		}
		synth = append(synth, Func{Name: fmt.Sprintf("sub_%x", start), Start: start, End: end})
	}
	funcs = append(funcs, synth...)
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].Start < funcs[j].Start })
	return funcs
}

// dropOverlaps keeps the first of any functions whose ranges overlap.
func dropOverlaps(funcs []Func) []Func {
	out := funcs[:0]
	for _, fn := range funcs {
		if n := len(out); n > 0 && fn.Start < out[n-1].End {
			continue
		}
		out = append(out, fn)
	}
	return out
}
