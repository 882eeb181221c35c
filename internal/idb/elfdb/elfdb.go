// Package elfdb implements idb.Database over an ELF binary: it maps the
// file, decodes its executable sections, and indexes functions, names and
// cross-references so the scripting helpers can run without a host
// disassembler.
package elfdb

import (
	"debug/elf"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/ianlancetaylor/demangle"

	"idbkit/internal/disasm"
	"idbkit/internal/idb"
)

// DB is an analysis database for one ELF image. It is immutable once Open
// returns.
type DB struct {
	Path string
	File *elf.File

	all   []byte
	f     *os.File
	loads []seg

	info      idb.Info
	dec       disasm.Decoder
	callMnems []string

	code  []textRange // sorted by va
	heads []head      // sorted by va
	funcs []Func      // sorted by Start, non-overlapping
	names map[string]idb.Addr
	symAt map[idb.Addr]string
	xrefs map[idb.Addr][]idb.Xref
	plt   []pltStub
}

type seg struct {
	Vaddr, Off, Filesz, Memsz uint64
	Flags                     elf.ProgFlag
}

// Func is a function known to the database.
type Func struct {
	Name      string
	Demangled string
	Start     idb.Addr
	End       idb.Addr // exclusive
}

// Display returns the demangled name when there is one.
func (f Func) Display() string {
	if f.Demangled != "" {
		return f.Demangled
	}
	return f.Name
}

type symbol struct {
	name string
	addr uint64
	size uint64
	isFn bool
}

// Open maps the ELF file at path and indexes it.
func Open(path string) (*DB, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}

	dec, callMnems, err := decoderFor(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	db := &DB{Path: path, File: f, all: all, f: of, dec: dec, callMnems: callMnems}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		db.loads = append(db.loads, seg{
			Vaddr:  p.Vaddr,
			Off:    p.Off,
			Filesz: p.Filesz,
			Memsz:  p.Memsz,
			Flags:  p.Flags,
		})
	}
	db.info = db.describe()

	db.decode(db.codeSections())
	syms := db.loadSymbols()
	db.plt = db.parsePLTStubs()
	syms = append(syms, db.pltSymbols()...)
	db.index(syms)

	slog.Debug("Indexed ELF image",
		"path", path,
		"proc", db.info.Proc,
		"insts", len(db.heads),
		"funcs", len(db.funcs),
		"plt", len(db.plt))
	return db, nil
}

func decoderFor(f *elf.File) (disasm.Decoder, []string, error) {
	switch f.Machine {
	case elf.EM_X86_64:
		return disasm.X86(64), []string{"call"}, nil
	case elf.EM_386:
		return disasm.X86(32), []string{"call"}, nil
	case elf.EM_AARCH64:
		return disasm.ARM64(), []string{"bl", "blr"}, nil
	}
	return nil, nil, fmt.Errorf("unsupported machine %v", f.Machine)
}

func (db *DB) describe() idb.Info {
	info := idb.Info{
		Proc:  db.dec.Name(),
		Is64:  db.File.Class == elf.ELFCLASS64,
		Is32:  true,
		MinEA: idb.BadAddr,
		Entry: db.File.Entry,
	}
	for _, l := range db.loads {
		info.MinEA = min(info.MinEA, l.Vaddr)
		info.MaxEA = max(info.MaxEA, l.Vaddr+l.Memsz)
	}
	if info.MinEA == idb.BadAddr {
		info.MinEA = 0
	}
	return info
}

// codeSections returns the executable sections, falling back to executable
// PT_LOAD segments when section headers are stripped.
func (db *DB) codeSections() []textRange {
	var out []textRange
	for _, s := range db.File.Sections {
		if s.Type != elf.SHT_PROGBITS || s.Flags&elf.SHF_EXECINSTR == 0 || s.Size == 0 {
			continue
		}
		if s.Offset+s.Size > uint64(len(db.all)) {
			continue
		}
		out = append(out, textRange{name: s.Name, va: s.Addr, code: db.all[s.Offset : s.Offset+s.Size]})
	}
	if len(out) > 0 {
		return out
	}
	for _, l := range db.loads {
		if l.Flags&elf.PF_X == 0 || l.Filesz == 0 {
			continue
		}
		if code, ok := db.SliceVA(l.Vaddr, l.Filesz); ok {
			out = append(out, textRange{name: "LOAD(exec)", va: l.Vaddr, code: code})
		}
	}
	return out
}

// loadSymbols merges static and dynamic symbols. Static symbols come first
// so their sizes win for duplicate addresses.
func (db *DB) loadSymbols() []symbol {
	var out []symbol
	add := func(syms []elf.Symbol) {
		for _, s := range syms {
			if s.Value == 0 || s.Name == "" || s.Section == elf.SHN_UNDEF {
				continue
			}
			out = append(out, symbol{
				name: s.Name,
				addr: s.Value,
				size: s.Size,
				isFn: elf.ST_TYPE(s.Info) == elf.STT_FUNC,
			})
		}
	}
	if syms, err := db.File.Symbols(); err == nil {
		add(syms)
	}
	if syms, err := db.File.DynamicSymbols(); err == nil {
		add(syms)
	}
	return out
}

func demangled(name string) string {
	d := demangle.Filter(name, demangle.NoClones)
	if d == name {
		return ""
	}
	return d
}

// Close unmaps the memory and closes the underlying files.
func (db *DB) Close() error {
	var err1, err2 error
	if db.all != nil {
		err1 = syscall.Munmap(db.all)
		db.all = nil
	}
	if db.f != nil {
		err2 = db.f.Close()
		db.f = nil
	}
	if db.File != nil {
		if err3 := db.File.Close(); err3 != nil && err2 == nil {
			err2 = err3
		}
		db.File = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// VA2Off translates a virtual address into a file offset
// using PT_LOAD segments. It returns false if VA is unmapped.
func (db *DB) VA2Off(va uint64) (uint64, bool) {
	for _, l := range db.loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), true
		}
	}
	return 0, false
}

// SliceVA returns the mapped bytes for [va, va+size), or false when the
// range is unmapped or runs past the end of the file.
func (db *DB) SliceVA(va uint64, size uint64) ([]byte, bool) {
	off, ok := db.VA2Off(va)
	if !ok {
		return nil, false
	}
	end := off + size
	if end > uint64(len(db.all)) {
		return nil, false
	}
	return db.all[off:end], true
}

// CallMnemonics returns the mnemonics of call instructions on this
// processor.
func (db *DB) CallMnemonics() []string { return db.callMnems }
