package symtab

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"

	"github.com/grafana/declsite/symtab/objfile"
)

// DeclarationSite is the source position where a function was written.
// File is the path as recorded by the original toolchain, possibly
// relative or otherwise non-canonical. Line is 1-based; Column is 0 when
// the producer did not record one.
type DeclarationSite struct {
	File   string
	Line   int
	Column int
}

// String renders "file:line", which most terminal emulators turn into a
// clickable source link.
func (s DeclarationSite) String() string {
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// DebugIndex is the parsed debug metadata of one module: its function
// symbol table and its line-number table, both sorted for binary search.
// The zero value is the distinguished "unavailable" state.
type DebugIndex struct {
	syms  []objfile.Symbol
	lines lineIndex
}

// NewDebugIndex builds an index from loader output. Symbols are ordered by
// (entry, raw name); aliases sharing an address all stay.
func NewDebugIndex(info *objfile.Info) *DebugIndex {
	if info == nil {
		return &DebugIndex{}
	}
	syms := make([]objfile.Symbol, len(info.Symbols))
	copy(syms, info.Symbols)
	sort.Slice(syms, func(i, j int) bool {
		if syms[i].Entry == syms[j].Entry {
			return syms[i].Name < syms[j].Name
		}
		return syms[i].Entry < syms[j].Entry
	})
	return &DebugIndex{
		syms:  syms,
		lines: newLineIndex(info.Lines),
	}
}

// Available reports whether the index holds any metadata at all.
func (ix *DebugIndex) Available() bool {
	return ix != nil && (len(ix.syms) > 0 || ix.lines.len() > 0)
}

// FuncCount is the number of function symbols in the index.
func (ix *DebugIndex) FuncCount() int {
	if ix == nil {
		return 0
	}
	return len(ix.syms)
}

// FuncSym is one function discovered during a scan: its canonical name,
// entry address, and a back-reference to the owning module. A FuncSym does
// not own a DeclarationSite; Declaration computes one on demand.
type FuncSym struct {
	// Name is the canonical name, post normalization.
	Name string
	// Raw is the linker symbol name Name was derived from.
	Raw string
	// Entry and Size are in the module's link-time address space.
	Entry uint64
	Size  uint64

	Module *Module

	index *DebugIndex
}

// Declaration resolves the function's declaration site from the owning
// module's line table. Returns ErrUnresolved when no range covers the
// entry address.
func (f *FuncSym) Declaration() (DeclarationSite, error) {
	if f.index != nil {
		if site, ok := f.index.lines.find(f.Entry); ok {
			return site, nil
		}
	}
	return DeclarationSite{}, ErrUnresolved
}

// lineIndex is an ordered table of disjoint address ranges, each mapping
// to a source position. Lookup is a binary search.
type lineIndex struct {
	rows []objfile.LineRow
}

func newLineIndex(rows []objfile.LineRow) lineIndex {
	sorted := make([]objfile.LineRow, 0, len(rows))
	for _, r := range rows {
		if r.Line < 1 || r.End <= r.Start || r.File == "" {
			continue
		}
		sorted = append(sorted, r)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	// Clamp overlaps so ranges stay disjoint; on duplicate starts the
	// first row wins.
	out := sorted[:0]
	for _, r := range sorted {
		if n := len(out); n > 0 {
			prev := &out[n-1]
			if r.Start == prev.Start {
				continue
			}
			if prev.End > r.Start {
				prev.End = r.Start
			}
		}
		out = append(out, r)
	}
	return lineIndex{rows: out}
}

func (ix *lineIndex) len() int { return len(ix.rows) }

func (ix *lineIndex) find(addr uint64) (DeclarationSite, bool) {
	i, found := slices.BinarySearchFunc(ix.rows, addr, func(r objfile.LineRow, pc uint64) int {
		if pc < r.Start {
			return 1
		}
		if pc >= r.End {
			return -1
		}
		return 0
	})
	if !found {
		return DeclarationSite{}, false
	}
	r := &ix.rows[i]
	return DeclarationSite{File: r.File, Line: r.Line, Column: r.Column}, true
}
