package objfile

import "debug/gosym"

// GoTableInfo converts a Go runtime pclntab into symbols and line rows.
// Stripped Go binaries keep the pclntab even when .symtab and DWARF are
// gone, so this is the fallback of last resort for Go modules.
//
// The pclntab records a position for every instruction; for declaration
// sites only the function entry matters, so each function becomes a single
// [Entry, End) row pointing at the entry's file and line.
func GoTableInfo(tab *gosym.Table) *Info {
	info := &Info{}
	for i := range tab.Funcs {
		fn := &tab.Funcs[i]
		if fn.Name == "" || fn.End <= fn.Entry {
			continue
		}
		info.Symbols = append(info.Symbols, Symbol{
			Name:  fn.Name,
			Entry: fn.Entry,
			Size:  fn.End - fn.Entry,
		})
		file, line, _ := tab.PCToLine(fn.Entry)
		if file == "" || line < 1 {
			continue
		}
		info.Lines = append(info.Lines, LineRow{
			Start: fn.Entry,
			End:   fn.End,
			File:  file,
			Line:  line,
		})
	}
	return info
}
