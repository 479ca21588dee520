// Package objfile holds the format-neutral output of the per-format debug
// info loaders: raw function symbols and source line ranges. The symtab
// package turns these into its search index, so the elf and macho loaders
// do not need to know anything about how lookups are performed.
package objfile

import (
	"errors"
	"os"
)

// Symbol is one function entry from an object file's symbol table. Name is
// the raw linker name, before demangling or normalization. Entry and Size
// are in the object's link-time address space.
type Symbol struct {
	Name  string
	Entry uint64
	Size  uint64
}

// LineRow maps the address range [Start, End) to a source position.
// Column is 0 when the producer did not record one.
type LineRow struct {
	Start  uint64
	End    uint64
	File   string
	Line   int
	Column int
}

// Info is the parsed debug metadata of one object file. Either slice may be
// empty: a stripped binary can still carry line info in a separate debug
// file, and a symbol table is useful even with no line program at all.
type Info struct {
	Symbols []Symbol
	Lines   []LineRow
}

// ErrNoDebugInfo is returned by loaders when an object file carries neither
// a symbol table nor a line program. Callers treat it as "this module has
// nothing", not as a scan-stopping failure.
var ErrNoDebugInfo = errors.New("no symbols or line info in object file")

// Format is the container format of an object file.
type Format int

const (
	FormatUnknown Format = iota
	FormatELF
	FormatMachO
)

func (f Format) String() string {
	switch f {
	case FormatELF:
		return "elf"
	case FormatMachO:
		return "macho"
	default:
		return "unknown"
	}
}

var machoMagics = [][4]byte{
	{0xfe, 0xed, 0xfa, 0xce}, // MH_MAGIC
	{0xce, 0xfa, 0xed, 0xfe}, // MH_CIGAM
	{0xfe, 0xed, 0xfa, 0xcf}, // MH_MAGIC_64
	{0xcf, 0xfa, 0xed, 0xfe}, // MH_CIGAM_64
	{0xca, 0xfe, 0xba, 0xbe}, // FAT_MAGIC
	{0xbe, 0xba, 0xfe, 0xca}, // FAT_CIGAM
}

// Sniff reads the first bytes of the file and reports its container format
// so the right loader can be picked without parsing the whole header.
func Sniff(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer f.Close()

	var magic [4]byte
	if _, err := f.ReadAt(magic[:], 0); err != nil {
		return FormatUnknown, err
	}
	return SniffMagic(magic), nil
}

// SniffMagic identifies a container format from its first four bytes.
func SniffMagic(magic [4]byte) Format {
	if magic == [4]byte{0x7f, 'E', 'L', 'F'} {
		return FormatELF
	}
	for _, m := range machoMagics {
		if magic == m {
			return FormatMachO
		}
	}
	return FormatUnknown
}
