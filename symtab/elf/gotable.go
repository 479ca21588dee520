package elf

import (
	"debug/elf"
	"debug/gosym"
	"errors"
	"fmt"

	"github.com/grafana/declsite/symtab/objfile"
)

var errNoGoPclntab = errors.New("no .gopclntab section")

// goTableInfo builds symbols and line rows from the Go runtime pclntab.
// Works on stripped Go binaries, which keep the pclntab after .symtab and
// DWARF are gone.
func goTableInfo(f *elf.File) (*objfile.Info, error) {
	pclntab := f.Section(".gopclntab")
	text := f.Section(".text")
	if pclntab == nil || text == nil {
		return nil, errNoGoPclntab
	}
	data, err := pclntab.Data()
	if err != nil {
		return nil, fmt.Errorf("reading .gopclntab: %w", err)
	}
	var symtabData []byte
	if s := f.Section(".gosymtab"); s != nil {
		symtabData, _ = s.Data()
	}
	tab, err := gosym.NewTable(symtabData, gosym.NewLineTable(data, text.Addr))
	if err != nil {
		return nil, fmt.Errorf("parse pclntab: %w", err)
	}
	return objfile.GoTableInfo(tab), nil
}
