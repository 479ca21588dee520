package symtab

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/declsite/symtab/objfile"
)

// countingLoader serves canned per-path metadata and counts parses, so
// tests can assert that early stop leaves later modules unparsed.
type countingLoader struct {
	infos  map[string]*objfile.Info
	parses int
}

func (l *countingLoader) Load(m *Module) (*DebugIndex, error) {
	l.parses++
	info, ok := l.infos[m.Path]
	if !ok {
		return nil, objfile.ErrNoDebugInfo
	}
	return NewDebugIndex(info), nil
}

func testScanner(t *testing.T, mods []*Module, loader Loader) *Scanner {
	t.Helper()
	return NewScanner(ScannerOptions{
		Loader:  loader,
		Modules: func() ([]*Module, error) { return mods, nil },
	})
}

func twoModuleFixture() ([]*Module, *countingLoader) {
	mods := []*Module{
		{Path: "/bin/app", Kind: KindExecutable},
		{Path: "/lib/libx.so", Kind: KindSharedLibrary},
	}
	loader := &countingLoader{infos: map[string]*objfile.Info{
		"/bin/app": {
			Symbols: []objfile.Symbol{
				{Name: "alpha", Entry: 0x1000, Size: 0x10},
				{Name: "beta", Entry: 0x1100, Size: 0x10},
				{Name: "$x.3", Entry: 0x1200}, // normalization failure, skipped
				{Name: "orphan", Entry: 0x9000},
			},
			Lines: []objfile.LineRow{
				{Start: 0x1000, End: 0x1100, File: "app.c", Line: 10},
				{Start: 0x1100, End: 0x1200, File: "app.c", Line: 20},
			},
		},
		"/lib/libx.so": {
			Symbols: []objfile.Symbol{{Name: "gamma", Entry: 0x400, Size: 8}},
			Lines:   []objfile.LineRow{{Start: 0x400, End: 0x500, File: "x.c", Line: 3}},
		},
	}}
	return mods, loader
}

func TestScanVisitsEverything(t *testing.T) {
	mods, loader := twoModuleFixture()
	s := testScanner(t, mods, loader)

	type visit struct {
		name string
		site string
	}
	var visits []visit
	sum := s.Scan(func(name string, fn *FuncSym) Control {
		v := visit{name: name}
		if site, err := fn.Declaration(); err == nil {
			v.site = site.String()
		} else {
			require.ErrorIs(t, err, ErrUnresolved)
		}
		visits = append(visits, v)
		return Continue
	})

	require.Equal(t, Summary{ModulesScanned: 2, FunctionsVisited: 4, FunctionsResolved: 3}, sum)
	require.Equal(t, []visit{
		{"alpha", "app.c:10"},
		{"beta", "app.c:20"},
		{"orphan", ""}, // dispatched even though the site is unresolved
		{"gamma", "x.c:3"},
	}, visits)
	require.Equal(t, 2, loader.parses)
}

func TestScanIdempotent(t *testing.T) {
	mods, loader := twoModuleFixture()
	s := testScanner(t, mods, loader)

	run := func() []string {
		var got []string
		s.Scan(func(name string, fn *FuncSym) Control {
			site, err := fn.Declaration()
			if err == nil {
				got = append(got, name+"="+site.String())
			} else {
				got = append(got, name)
			}
			return Continue
		})
		return got
	}
	require.Equal(t, run(), run())
}

func TestScanEarlyStopSkipsRemainingModules(t *testing.T) {
	mods, loader := twoModuleFixture()
	s := testScanner(t, mods, loader)

	sum := s.Scan(func(name string, fn *FuncSym) Control {
		return Stop
	})
	require.Equal(t, 1, sum.FunctionsVisited)
	// The module after the stop was never parsed.
	require.Equal(t, 1, loader.parses)
	require.Equal(t, 1, sum.ModulesScanned)
}

func TestScanUnavailableModuleDoesNotAbort(t *testing.T) {
	mods := []*Module{
		{Path: "/bin/stripped"},
		{Path: "/lib/libx.so"},
	}
	loader := &countingLoader{infos: map[string]*objfile.Info{
		"/lib/libx.so": {
			Symbols: []objfile.Symbol{{Name: "gamma", Entry: 0x400}},
			Lines:   []objfile.LineRow{{Start: 0x400, End: 0x500, File: "x.c", Line: 3}},
		},
	}}
	s := testScanner(t, mods, loader)

	var names []string
	sum := s.Scan(func(name string, fn *FuncSym) Control {
		names = append(names, name)
		return Continue
	})
	require.Equal(t, []string{"gamma"}, names)
	require.Equal(t, 2, sum.ModulesScanned)
	require.Equal(t, 2, loader.parses)
}

func TestScanParsesRepeatedPathOnce(t *testing.T) {
	mods := []*Module{
		{Path: "/lib/libx.so"},
		{Path: "/lib/libx.so"},
	}
	loader := &countingLoader{infos: map[string]*objfile.Info{
		"/lib/libx.so": {
			Symbols: []objfile.Symbol{{Name: "gamma", Entry: 0x400}},
		},
	}}
	s := testScanner(t, mods, loader)
	s.Scan(func(string, *FuncSym) Control { return Continue })
	require.Equal(t, 1, loader.parses)
}

func TestScanUnsupportedPlatform(t *testing.T) {
	loader := &countingLoader{}
	s := NewScanner(ScannerOptions{
		Loader:  loader,
		Modules: func() ([]*Module, error) { return nil, ErrUnsupported },
	})
	sum := s.Scan(func(string, *FuncSym) Control {
		t.Fatal("visitor must not run on unsupported platforms")
		return Stop
	})
	require.Equal(t, Summary{}, sum)
	require.Equal(t, 0, loader.parses)
}

func TestScanEnumerationError(t *testing.T) {
	s := NewScanner(ScannerOptions{
		Loader:  &countingLoader{},
		Modules: func() ([]*Module, error) { return nil, errors.New("maps unreadable") },
	})
	sum := s.Scan(func(string, *FuncSym) Control { return Continue })
	require.Equal(t, Summary{}, sum)
}

func TestLookupAllStopsWhenSatisfied(t *testing.T) {
	mods, loader := twoModuleFixture()
	s := testScanner(t, mods, loader)

	found := s.LookupAll([]string{"alpha", "beta"})
	require.Equal(t, map[string]DeclarationSite{
		"alpha": {File: "app.c", Line: 10},
		"beta":  {File: "app.c", Line: 20},
	}, found)
	// Both names live in the first module; the second was never parsed.
	require.Equal(t, 1, loader.parses)
}

func TestLookupAllSkipsUnresolvedMatch(t *testing.T) {
	mods, loader := twoModuleFixture()
	s := testScanner(t, mods, loader)

	found := s.LookupAll([]string{"orphan", "gamma"})
	// orphan exists but has no site, so only gamma resolves.
	require.Equal(t, map[string]DeclarationSite{
		"gamma": {File: "x.c", Line: 3},
	}, found)
	require.Equal(t, 2, loader.parses)
}

func TestLookupNotFound(t *testing.T) {
	mods, loader := twoModuleFixture()
	s := testScanner(t, mods, loader)

	_, err := s.Lookup("no_such_function")
	require.ErrorIs(t, err, ErrNotFound)

	site, err := s.Lookup("gamma")
	require.NoError(t, err)
	require.Equal(t, "x.c:3", site.String())
}

func TestScanUsesCache(t *testing.T) {
	// Cache keys stat the module path, so point the fixture at a real file.
	exe := selfPathForTest(t)
	mods := []*Module{{Path: exe, Kind: KindExecutable}}
	loader := &countingLoader{infos: map[string]*objfile.Info{
		exe: {Symbols: []objfile.Symbol{{Name: "alpha", Entry: 0x1000}}},
	}}
	cache, err := NewIndexCache(4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		s := NewScanner(ScannerOptions{
			Loader:  loader,
			Cache:   cache,
			Modules: func() ([]*Module, error) { return mods, nil },
		})
		sum := s.Scan(func(string, *FuncSym) Control { return Continue })
		require.Equal(t, 1, sum.FunctionsVisited)
	}
	require.Equal(t, 1, loader.parses)
	require.Equal(t, 1, cache.Len())
}
