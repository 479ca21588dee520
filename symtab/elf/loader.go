// Package elf loads debug metadata from ELF object files: function symbols
// from .symtab/.dynsym (with MiniDebugInfo fallback), and source line rows
// from DWARF, a separate debug file, or the Go pclntab.
package elf

import (
	"debug/elf"
	"fmt"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/grafana/declsite/symtab/objfile"
)

// Options controls where the loader looks for separate debug files.
type Options struct {
	Logger log.Logger

	// Root is prepended to every path the loader opens, so files can be
	// resolved through an alternate root like /proc/<pid>/root. Empty
	// means the real filesystem root.
	Root string

	// DebugDirs are the global debug directories searched for separate
	// debug files, in order. Defaults to /usr/lib/debug.
	DebugDirs []string
}

var defaultDebugDirs = []string{"/usr/lib/debug"}

func (o *Options) logger() log.Logger {
	if o.Logger == nil {
		return log.NewNopLogger()
	}
	return o.Logger
}

func (o *Options) debugDirs() []string {
	if len(o.DebugDirs) == 0 {
		return defaultDebugDirs
	}
	return o.DebugDirs
}

// Load parses the ELF file at path and collects whatever symbols and line
// rows it can find. It returns objfile.ErrNoDebugInfo when the binary and
// all of its debug companions yield nothing at all.
func Load(path string, opt Options) (info *objfile.Info, err error) {
	// debug/elf is not hardened against corrupt inputs everywhere; a
	// malformed file must degrade to "unavailable", not take the scan down.
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = fmt.Errorf("parsing %s: %v", path, r)
		}
	}()

	logger := opt.logger()
	fsPath := joinRoot(opt.Root, path)
	f, err := elf.Open(fsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info = &objfile.Info{Symbols: readSymbols(f)}
	if len(info.Symbols) == 0 {
		syms, miniErr := miniDebugSymbols(f)
		if miniErr != nil {
			level.Debug(logger).Log("msg", "no minidebuginfo", "f", path, "err", miniErr)
		} else {
			info.Symbols = syms
		}
	}
	info.Lines = lineRows(f, fsPath, logger)

	var (
		debugFile   *elf.File
		debugFSPath string
	)
	if len(info.Lines) == 0 || len(info.Symbols) == 0 {
		debugPath := findDebugFile(f, path, opt)
		if debugPath != "" {
			df, openErr := elf.Open(joinRoot(opt.Root, debugPath))
			if openErr != nil {
				level.Debug(logger).Log("msg", "open debug file", "f", debugPath, "err", openErr)
			} else {
				defer df.Close()
				debugFile = df
				debugFSPath = joinRoot(opt.Root, debugPath)
			}
		}
	}
	if debugFile != nil {
		if len(info.Lines) == 0 {
			info.Lines = lineRows(debugFile, debugFSPath, logger)
		}
		if len(info.Symbols) == 0 {
			info.Symbols = readSymbols(debugFile)
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

// readSymbols collects defined function symbols from .symtab and .dynsym.
// Aliases sharing an address are all kept; dedup policy belongs to callers.
func readSymbols(f *elf.File) []objfile.Symbol {
	var out []objfile.Symbol
	for _, read := range []func() ([]elf.Symbol, error){f.Symbols, f.DynamicSymbols} {
		syms, err := read()
		if err != nil {
			continue
		}
		for _, s := range syms {
			if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
				continue
			}
			if s.Section == elf.SHN_UNDEF || s.Value == 0 || s.Name == "" {
				continue
			}
			out = append(out, objfile.Symbol{Name: s.Name, Entry: s.Value, Size: s.Size})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entry == out[j].Entry {
			return out[i].Name < out[j].Name
		}
		return out[i].Entry < out[j].Entry
	})
	return out
}

func lineRows(f *elf.File, fsPath string, logger log.Logger) []objfile.LineRow {
	d, err := f.DWARF()
	if err != nil {
		d, err = fallbackDWARF(f, fsPath)
	}
	if err != nil {
		level.Debug(logger).Log("msg", "no dwarf", "f", fsPath, "err", err)
		return nil
	}
	rows, err := objfile.DWARFLineRows(d)
	if err != nil {
		level.Debug(logger).Log("msg", "dwarf line program truncated", "f", fsPath, "err", err)
	}
	return rows
}
