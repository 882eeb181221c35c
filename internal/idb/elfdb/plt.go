package elfdb

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"log/slog"

	"github.com/lunixbochs/struc"

	"idbkit/internal/disasm"
	"idbkit/internal/idb"
)

const pltStubSize = 16

type pltStub struct {
	Addr    uint64
	Size    uint64
	GOTAddr uint64
	Name    string
}

func pltSections(f *elf.File) []*elf.Section {
	var out []*elf.Section
	for _, s := range f.Sections {
		switch s.Name {
		case ".plt", ".plt.sec", ".plt.got":
			out = append(out, s)
		}
	}
	return out
}

// parsePLTStubs names each PLT stub after the symbol its PLT relocation
// binds to the GOT slot the stub jumps through.
func (db *DB) parsePLTStubs() []pltStub {
	relocs := db.pltRelocations()
	if len(relocs) == 0 {
		return nil
	}

	var gotPLT uint64
	if s := db.File.Section(".got.plt"); s != nil {
		gotPLT = s.Addr
	}

	seen := make(map[uint64]bool)
	var stubs []pltStub
	for _, sec := range pltSections(db.File) {
		entSize := sec.Entsize
		if entSize == 0 || entSize&(entSize-1) != 0 {
			entSize = pltStubSize
		}
		for _, s := range matchStubs(db.Heads(sec.Addr, sec.Addr+sec.Size), sec.Addr, entSize, gotPLT, relocs) {
			if !seen[s.Addr] {
				seen[s.Addr] = true
				stubs = append(stubs, s)
			}
		}
	}
	return stubs
}

// matchStubs recovers the GOT slot each stub in insts jumps through. base
// is the section address and entSize the stub size.
//
// x86 stubs are "jmp [got]" (or "jmp [ebx+off]" in 32-bit PIC code, where
// ebx holds the .got.plt address). ARM64 stubs are:
//
//	adrp x16, <page>
//	ldr  x17, [x16, #offset]
//	add  x16, x16, #offset
//	br   x17
func matchStubs(insts disasm.Stream, base, entSize, gotPLT uint64, relocs map[uint64]string) []pltStub {
	var stubs []pltStub
	add := func(addr, got uint64) {
		if name, ok := relocs[got]; ok {
			stubs = append(stubs, pltStub{Addr: addr, Size: entSize, GOTAddr: got, Name: name})
		}
	}

	var page, adrpVA uint64
	for _, in := range insts {
		switch {
		case in.Mnem == "jmp" && len(in.Ops) == 1:
			stub := base + (in.VA-base)&^(entSize-1)
			switch op := in.Ops[0]; {
			case op.Type == idb.Mem:
				add(stub, uint64(op.Value))
			case op.Type == idb.Displ && op.Base == "ebx" && gotPLT != 0:
				add(stub, gotPLT+uint64(op.Value))
			}
		case in.Mnem == "adrp" && len(in.Ops) == 2 && in.Ops[0].Text == "x16":
			page, adrpVA = uint64(in.Ops[1].Value), in.VA
		case in.Mnem == "ldr" && len(in.Ops) == 2 && in.Ops[0].Text == "x17" &&
			in.Ops[1].Base == "x16" && adrpVA+4 == in.VA:
			add(adrpVA, page+uint64(in.Ops[1].Value))
		}
	}
	return stubs
}

// pltSymbols turns named stubs into sized function symbols.
func (db *DB) pltSymbols() []symbol {
	out := make([]symbol, 0, len(db.plt))
	for _, s := range db.plt {
		out = append(out, symbol{name: s.Name + "@plt", addr: s.Addr, size: s.Size, isFn: true})
	}
	return out
}

type rela64 struct {
	Off    uint64
	Info   uint64
	Addend int64
}

type rel64 struct {
	Off  uint64
	Info uint64
}

type rela32 struct {
	Off    uint32
	Info   uint32
	Addend int32
}

type rel32 struct {
	Off  uint32
	Info uint32
}

// pltRelocations maps GOT slots to the dynamic symbol names that
// .rela.plt or .rel.plt binds to them.
func (db *DB) pltRelocations() map[uint64]string {
	sec := db.File.Section(".rela.plt")
	rela := true
	if sec == nil {
		sec = db.File.Section(".rel.plt")
		rela = false
	}
	if sec == nil {
		return nil
	}
	data, err := sec.Data()
	if err != nil {
		return nil
	}
	dynsyms, err := db.File.DynamicSymbols()
	if err != nil {
		return nil
	}

	relocs, err := parseRelocs(data, db.File.Class == elf.ELFCLASS64, rela, db.File.ByteOrder)
	if err != nil {
		slog.Debug("Truncated PLT relocations", "section", sec.Name, "error", err)
	}

	out := make(map[uint64]string)
	for _, rel := range relocs {
		symIndex := rel.sym
		// DynamicSymbols omits the null symbol, so indices are off by one.
		if symIndex == 0 || int(symIndex) > len(dynsyms) {
			continue
		}
		if name := dynsyms[symIndex-1].Name; name != "" {
			out[rel.got] = name
		}
	}
	return out
}

type pltReloc struct {
	got uint64
	sym uint32
}

// parseRelocs decodes a relocation table. It returns the entries read
// before any truncated tail.
func parseRelocs(data []byte, is64, rela bool, order binary.ByteOrder) ([]pltReloc, error) {
	next := func(r *bytes.Reader) (pltReloc, error) {
		var err error
		switch {
		case is64 && rela:
			var e rela64
			err = struc.UnpackWithOrder(r, &e, order)
			return pltReloc{e.Off, uint32(e.Info >> 32)}, err
		case is64:
			var e rel64
			err = struc.UnpackWithOrder(r, &e, order)
			return pltReloc{e.Off, uint32(e.Info >> 32)}, err
		case rela:
			var e rela32
			err = struc.UnpackWithOrder(r, &e, order)
			return pltReloc{uint64(e.Off), e.Info >> 8}, err
		default:
			var e rel32
			err = struc.UnpackWithOrder(r, &e, order)
			return pltReloc{uint64(e.Off), e.Info >> 8}, err
		}
	}

	var out []pltReloc
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		rel, err := next(r)
		if err != nil {
			return out, err
		}
		out = append(out, rel)
	}
	return out, nil
}
