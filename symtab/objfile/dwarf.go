package objfile

import (
	"debug/dwarf"
	"fmt"
)

// DWARFLineRows walks the line program of every compilation unit and
// returns address ranges for statement rows. Within one sequence a row
// covers addresses up to the next row; an end-of-sequence row closes the
// open range without starting a new one.
//
// Rows with line 0 are compiler-generated padding with no source position
// and are dropped, as are ranges a malformed producer emitted with
// end <= start.
func DWARFLineRows(d *dwarf.Data) ([]LineRow, error) {
	dr := d.Reader()
	var rows []LineRow
	for {
		cu, err := dr.Next()
		if err != nil {
			return rows, fmt.Errorf("read compilation unit: %w", err)
		}
		if cu == nil {
			break
		}
		if cu.Tag != dwarf.TagCompileUnit {
			dr.SkipChildren()
			continue
		}
		lr, err := d.LineReader(cu)
		if err != nil {
			// A unit with a broken line program does not spoil the rest.
			continue
		}
		if lr == nil {
			continue
		}
		rows = appendUnitRows(rows, lr)
	}
	return rows, nil
}

func appendUnitRows(rows []LineRow, lr *dwarf.LineReader) []LineRow {
	var (
		open    bool
		pending LineRow
	)
	flush := func(end uint64) {
		if !open {
			return
		}
		open = false
		pending.End = end
		if pending.Line < 1 || pending.End <= pending.Start || pending.File == "" {
			return
		}
		rows = append(rows, pending)
	}
	var entry dwarf.LineEntry
	for {
		if err := lr.Next(&entry); err != nil {
			// EOF or a truncated program: any still-open range has no
			// trustworthy end address, so it is dropped either way.
			break
		}
		flush(entry.Address)
		if entry.EndSequence {
			continue
		}
		if !entry.IsStmt {
			continue
		}
		pending = LineRow{
			Start:  entry.Address,
			Line:   entry.Line,
			Column: entry.Column,
		}
		if entry.File != nil {
			pending.File = entry.File.Name
		}
		open = true
	}
	return rows
}
