package symtab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/declsite/symtab/objfile"
)

func TestLineIndexFind(t *testing.T) {
	ix := newLineIndex([]objfile.LineRow{
		{Start: 0x1300, End: 0x1400, File: "c.c", Line: 30},
		{Start: 0x1000, End: 0x1100, File: "a.c", Line: 10, Column: 5},
		{Start: 0x1200, End: 0x1300, File: "b.c", Line: 20},
	})

	testcases := []struct {
		addr     uint64
		expected string
	}{
		{0x0fff, ""},
		{0x1000, "a.c:10"},
		{0x10ff, "a.c:10"},
		{0x1100, ""}, // gap between a.c and b.c
		{0x11ff, ""},
		{0x1200, "b.c:20"},
		{0x13ff, "c.c:30"},
		{0x1400, ""},
	}
	for _, c := range testcases {
		site, ok := ix.find(c.addr)
		if c.expected == "" {
			require.False(t, ok, "addr %#x", c.addr)
			continue
		}
		require.True(t, ok, "addr %#x", c.addr)
		require.Equal(t, c.expected, site.String())
	}

	site, ok := ix.find(0x1000)
	require.True(t, ok)
	require.Equal(t, 5, site.Column)
}

func TestLineIndexDropsInvalidRows(t *testing.T) {
	ix := newLineIndex([]objfile.LineRow{
		{Start: 0x1000, End: 0x1100, File: "a.c", Line: 0},  // no source position
		{Start: 0x1200, End: 0x1200, File: "a.c", Line: 10}, // empty range
		{Start: 0x1400, End: 0x1300, File: "a.c", Line: 10}, // inverted range
		{Start: 0x2000, End: 0x2100, File: "", Line: 10},    // no file
		{Start: 0x3000, End: 0x3100, File: "ok.c", Line: 7},
	})
	require.Equal(t, 1, ix.len())

	site, ok := ix.find(0x3000)
	require.True(t, ok)
	require.Equal(t, "ok.c:7", site.String())
}

func TestLineIndexClampsOverlaps(t *testing.T) {
	ix := newLineIndex([]objfile.LineRow{
		{Start: 0x1000, End: 0x2000, File: "a.c", Line: 10},
		{Start: 0x1800, End: 0x1900, File: "b.c", Line: 20},
		{Start: 0x1800, End: 0x1a00, File: "dup.c", Line: 99}, // duplicate start loses
	})

	site, ok := ix.find(0x17ff)
	require.True(t, ok)
	require.Equal(t, "a.c:10", site.String())

	site, ok = ix.find(0x1800)
	require.True(t, ok)
	require.Equal(t, "b.c:20", site.String())
}

func TestDebugIndexOrdersSymbols(t *testing.T) {
	ix := NewDebugIndex(&objfile.Info{
		Symbols: []objfile.Symbol{
			{Name: "charlie", Entry: 0x3000},
			{Name: "alpha", Entry: 0x1000},
			{Name: "bravo_alias", Entry: 0x2000},
			{Name: "bravo", Entry: 0x2000},
		},
	})
	require.Equal(t, 4, ix.FuncCount())
	var names []string
	for i := range ix.syms {
		names = append(names, ix.syms[i].Name)
	}
	// Aliases at one address are both kept, ordered by name.
	require.Equal(t, []string{"alpha", "bravo", "bravo_alias", "charlie"}, names)
}

func TestDeclarationUnresolved(t *testing.T) {
	ix := NewDebugIndex(&objfile.Info{
		Symbols: []objfile.Symbol{{Name: "orphan", Entry: 0x5000}},
		Lines:   []objfile.LineRow{{Start: 0x1000, End: 0x1100, File: "a.c", Line: 10}},
	})
	fn := &FuncSym{Name: "orphan", Entry: 0x5000, index: ix}
	_, err := fn.Declaration()
	require.ErrorIs(t, err, ErrUnresolved)

	resolved := &FuncSym{Name: "known", Entry: 0x1000, index: ix}
	site, err := resolved.Declaration()
	require.NoError(t, err)
	require.Equal(t, "a.c:10", site.String())
}

func TestDebugIndexUnavailable(t *testing.T) {
	require.False(t, (&DebugIndex{}).Available())
	var nilIndex *DebugIndex
	require.False(t, nilIndex.Available())
	require.Equal(t, 0, nilIndex.FuncCount())
	require.True(t, NewDebugIndex(&objfile.Info{
		Symbols: []objfile.Symbol{{Name: "f", Entry: 1}},
	}).Available())
}
