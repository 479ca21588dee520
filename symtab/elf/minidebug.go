package elf

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"

	"github.com/grafana/declsite/symtab/objfile"
)

var errNoMiniDebug = errors.New("no .gnu_debugdata section")

// miniDebugSymbols extracts the symbol table from the MiniDebugInfo
// section, an xz-compressed ELF image distros embed when they strip
// .symtab from shipped binaries.
func miniDebugSymbols(f *elf.File) ([]objfile.Symbol, error) {
	s := f.Section(".gnu_debugdata")
	if s == nil {
		return nil, errNoMiniDebug
	}
	data, err := s.Data()
	if err != nil {
		return nil, fmt.Errorf("reading .gnu_debugdata: %w", err)
	}
	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("xz reader: %w", err)
	}
	var uncompressed bytes.Buffer
	if _, err := io.Copy(&uncompressed, r); err != nil {
		return nil, fmt.Errorf("decompress .gnu_debugdata: %w", err)
	}
	mini, err := elf.NewFile(bytes.NewReader(uncompressed.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("parse minidebug elf: %w", err)
	}
	syms := readSymbols(mini)
	if len(syms) == 0 {
		return nil, objfile.ErrNoDebugInfo
	}
	return syms, nil
}
