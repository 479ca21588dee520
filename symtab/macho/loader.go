// Package macho loads debug metadata from Mach-O object files: function
// symbols from the symtab load command, and line rows from DWARF (in the
// binary or an adjacent dSYM bundle) or the Go pclntab.
package macho

import (
	"debug/gosym"
	"debug/macho"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/declsite/symtab/objfile"
)

// Options controls Mach-O loading. There is no separate debug directory
// convention on darwin; dSYM bundles are looked up next to the binary.
type Options struct {
	Logger log.Logger
}

func (o *Options) logger() log.Logger {
	if o.Logger == nil {
		return log.NewNopLogger()
	}
	return o.Logger
}

// Load parses the Mach-O file at path, picking the slice matching the
// running architecture out of a fat binary. It returns
// objfile.ErrNoDebugInfo when nothing usable is found.
func Load(path string, opt Options) (info *objfile.Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = fmt.Errorf("parsing %s: %v", path, r)
		}
	}()

	logger := opt.logger()
	f, closer, err := open(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	info = &objfile.Info{Symbols: readSymbols(f)}
	info.Lines = lineRows(f, logger, path)

	if len(info.Lines) == 0 {
		if dsym := findDSYM(path); dsym != "" {
			df, dcloser, derr := open(dsym)
			if derr != nil {
				level.Debug(logger).Log("msg", "open dsym", "f", dsym, "err", derr)
			} else {
				info.Lines = lineRows(df, logger, dsym)
				dcloser.Close()
			}
		}
	}
	if len(info.Lines) == 0 {
		goInfo, goErr := goTableInfo(f)
		if goErr != nil {
			level.Debug(logger).Log("msg", "no go pclntab", "f", path, "err", goErr)
		} else {
			info.Lines = goInfo.Lines
			if len(info.Symbols) == 0 {
				info.Symbols = goInfo.Symbols
			}
		}
	}

	if len(info.Symbols) == 0 && len(info.Lines) == 0 {
		return nil, objfile.ErrNoDebugInfo
	}
	return info, nil
}

func open(path string) (*macho.File, io.Closer, error) {
	f, err := macho.Open(path)
	if err == nil {
		return f, f, nil
	}
	fat, fatErr := macho.OpenFat(path)
	if fatErr != nil {
		return nil, nil, err
	}
	want := hostCPU()
	for i := range fat.Arches {
		if fat.Arches[i].Cpu == want {
			return fat.Arches[i].File, fat, nil
		}
	}
	fat.Close()
	return nil, nil, fmt.Errorf("no %v slice in fat binary %s", want, path)
}

func hostCPU() macho.Cpu {
	switch runtime.GOARCH {
	case "arm64":
		return macho.CpuArm64
	case "386":
		return macho.Cpu386
	default:
		return macho.CpuAmd64
	}
}

// nlist type bits; debug/macho does not export these.
const (
	nStab uint8 = 0xe0
	nType uint8 = 0x0e
	nSect uint8 = 0x0e
)

// readSymbols collects defined symbols pointing into __TEXT sections.
// Mach-O symbols carry no size, so each one runs to the next entry address.
func readSymbols(f *macho.File) []objfile.Symbol {
	if f.Symtab == nil {
		return nil
	}
	text := make(map[uint8]bool)
	for i, s := range f.Sections {
		if s.Seg == "__TEXT" {
			text[uint8(i+1)] = true // section ordinals are 1-based
		}
	}
	var out []objfile.Symbol
	for _, s := range f.Symtab.Syms {
		if s.Type&nStab != 0 || s.Type&nType != nSect {
			continue
		}
		if !text[s.Sect] || s.Name == "" || s.Value == 0 {
			continue
		}
		// The darwin toolchain prefixes every C-visible name with one
		// underscore; "__ZN…" must come out as "_ZN…" for the demangler.
		name := strings.TrimPrefix(s.Name, "_")
		out = append(out, objfile.Symbol{Name: name, Entry: s.Value})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entry == out[j].Entry {
			return out[i].Name < out[j].Name
		}
		return out[i].Entry < out[j].Entry
	})
	var nextGreater uint64
	for i := len(out) - 2; i >= 0; i-- {
		if out[i+1].Entry > out[i].Entry {
			nextGreater = out[i+1].Entry
		}
		if nextGreater > out[i].Entry {
			out[i].Size = nextGreater - out[i].Entry
		}
	}
	return out
}

func lineRows(f *macho.File, logger log.Logger, path string) []objfile.LineRow {
	d, err := f.DWARF()
	if err != nil {
		level.Debug(logger).Log("msg", "no dwarf", "f", path, "err", err)
		return nil
	}
	rows, err := objfile.DWARFLineRows(d)
	if err != nil {
		level.Debug(logger).Log("msg", "dwarf line program truncated", "f", path, "err", err)
	}
	return rows
}

var errNoGoPclntab = errors.New("no __gopclntab section")

func goTableInfo(f *macho.File) (*objfile.Info, error) {
	pclntab := f.Section("__gopclntab")
	text := f.Section("__text")
	if pclntab == nil || text == nil {
		return nil, errNoGoPclntab
	}
	data, err := pclntab.Data()
	if err != nil {
		return nil, fmt.Errorf("reading __gopclntab: %w", err)
	}
	var symtabData []byte
	if s := f.Section("__gosymtab"); s != nil {
		symtabData, _ = s.Data()
	}
	tab, err := gosym.NewTable(symtabData, gosym.NewLineTable(data, text.Addr))
	if err != nil {
		return nil, fmt.Errorf("parse pclntab: %w", err)
	}
	return objfile.GoTableInfo(tab), nil
}
