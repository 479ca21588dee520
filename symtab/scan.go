// Package symtab discovers the functions of every code module loaded into
// the current process and maps them, best effort, back to the source
// position where they were declared. It drives the per-format loaders in
// symtab/elf and symtab/macho through a single-pass, early-terminable
// visitation loop.
package symtab

import (
	"errors"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	elf2 "github.com/grafana/declsite/symtab/elf"
	macho2 "github.com/grafana/declsite/symtab/macho"
	"github.com/grafana/declsite/symtab/objfile"
)

// Control is the signal a Visitor returns to the dispatch loop.
type Control int

const (
	Continue Control = iota
	Stop
)

// Visitor is invoked once per discovered function. Returning Stop ends the
// scan immediately; remaining symbols and modules are abandoned unparsed.
// The visitor runs synchronously on the scanning goroutine and must not
// load or unload modules itself, as that invalidates the enumeration
// snapshot the scan is walking.
type Visitor func(name string, fn *FuncSym) Control

// Summary reports what one scan covered.
type Summary struct {
	// ModulesScanned counts every module the scan reached, including ones
	// whose debug metadata turned out to be unavailable.
	ModulesScanned int
	// FunctionsVisited counts visitor invocations.
	FunctionsVisited int
	// FunctionsResolved counts visited functions whose declaration site
	// resolved.
	FunctionsResolved int
}

// Support describes the platform's module-introspection capability, so
// callers can tell "nothing found" from "nothing is possible here".
type Support int

const (
	// SupportNone: no module-introspection capability; scans are empty.
	SupportNone Support = iota
	// SupportDegraded: scans run but may silently come back partial or
	// empty; see the platform notes on loadedModules.
	SupportDegraded
	// SupportFull: loaded-module enumeration and debug info loading work.
	SupportFull
)

func (s Support) String() string {
	switch s {
	case SupportFull:
		return "full"
	case SupportDegraded:
		return "degraded"
	default:
		return "none"
	}
}

// PlatformSupport reports the running platform's capability.
func PlatformSupport() Support { return platformSupport() }

// Loader parses the debug metadata of one module into an index. A nil
// index or an error both mean the module is unavailable; neither aborts
// the scan.
type Loader interface {
	Load(m *Module) (*DebugIndex, error)
}

// ScannerOptions configures a Scanner. Every field may be left zero.
type ScannerOptions struct {
	Logger  log.Logger
	Metrics *Metrics // may be nil; metrics are kept but not registered

	// Cache shares parsed indexes across scans. Nil disables cross-scan
	// caching; within one scan each module is still parsed at most once.
	Cache *IndexCache

	// Loader overrides debug metadata parsing, chiefly for tests. The
	// default sniffs the object format and dispatches to the elf or macho
	// loader.
	Loader Loader

	// Modules overrides loaded-module enumeration, chiefly for tests. The
	// default snapshots the platform's loader state.
	Modules func() ([]*Module, error)
}

// Scanner runs full-process function scans. A single scan is synchronous
// on the calling goroutine; independent scans may run concurrently from
// different goroutines.
type Scanner struct {
	logger  log.Logger
	metrics *Metrics
	cache   *IndexCache
	loader  Loader
	modules func() ([]*Module, error)
}

func NewScanner(opt ScannerOptions) *Scanner {
	logger := opt.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	metrics := opt.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	loader := opt.Loader
	if loader == nil {
		loader = formatLoader{logger: logger}
	}
	modules := opt.Modules
	if modules == nil {
		modules = loadedModules
	}
	return &Scanner{
		logger:  logger,
		metrics: metrics,
		cache:   opt.Cache,
		loader:  loader,
		modules: modules,
	}
}

// unavailableIndex memoizes "this module has no usable metadata" so a scan
// never parses the same module twice, not even to fail.
var unavailableIndex = &DebugIndex{}

// Scan enumerates loaded modules once and dispatches every discovered
// function to visit. Symbols whose name cannot be normalized are skipped;
// functions whose declaration site cannot be resolved are still
// dispatched, with Declaration reporting ErrUnresolved, so callers can
// tell "found, no location" from "not found".
func (s *Scanner) Scan(visit Visitor) Summary {
	var sum Summary
	mods, err := s.modules()
	if err != nil {
		if !errors.Is(err, ErrUnsupported) {
			level.Error(s.logger).Log("msg", "module enumeration failed", "err", err)
		}
		return sum
	}

	// Per-scan memo: each module's metadata is parsed at most once even
	// when a path is mapped several times.
	parsed := make(map[string]*DebugIndex, len(mods))

	for _, m := range mods {
		sum.ModulesScanned++
		s.metrics.ModulesScanned.Inc()
		ix, ok := parsed[m.Path]
		if !ok {
			ix = s.load(m)
			parsed[m.Path] = ix
		}
		if !ix.Available() {
			continue
		}
		for i := range ix.syms {
			sym := &ix.syms[i]
			name, ok := CanonicalName(sym.Name)
			if !ok {
				continue
			}
			fn := &FuncSym{
				Name:   name,
				Raw:    sym.Name,
				Entry:  sym.Entry,
				Size:   sym.Size,
				Module: m,
				index:  ix,
			}
			sum.FunctionsVisited++
			s.metrics.FunctionsVisited.Inc()
			if _, err := fn.Declaration(); err == nil {
				sum.FunctionsResolved++
			} else {
				s.metrics.UnresolvedSites.Inc()
			}
			if visit(name, fn) == Stop {
				return sum
			}
		}
	}
	return sum
}

func (s *Scanner) load(m *Module) *DebugIndex {
	key, cacheable := moduleKey(m)
	if cacheable {
		if ix := s.cache.get(key); ix != nil {
			return ix
		}
	}
	ix, err := s.loader.Load(m)
	if err != nil {
		s.onLoadError(m, err)
		ix = nil
	}
	if ix == nil {
		ix = unavailableIndex
	}
	if cacheable {
		s.cache.put(key, ix)
	}
	return ix
}

func (s *Scanner) onLoadError(m *Module, err error) {
	level.Debug(s.logger).Log("msg", "failed to load debug info", "err", err,
		"f", m.Path,
		"kind", m.Kind)
	s.metrics.LoadErrors.WithLabelValues(errorType(err)).Inc()
}

// Lookup resolves the declaration site of a single canonical name,
// stopping at the first match. Returns ErrNotFound when no scanned module
// defines the name with a resolvable site. For repeated lookups prefer
// LookupAll or one unfiltered Scan: each Lookup call is a fresh pass over
// the process' modules.
func (s *Scanner) Lookup(name string) (DeclarationSite, error) {
	if site, ok := s.LookupAll([]string{name})[name]; ok {
		return site, nil
	}
	return DeclarationSite{}, ErrNotFound
}

// LookupAll resolves a fixed set of canonical names in one pass, stopping
// early once every sought name has a site. Names that never resolve are
// simply absent from the result.
func (s *Scanner) LookupAll(names []string) map[string]DeclarationSite {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	found := make(map[string]DeclarationSite, len(names))
	s.Scan(func(name string, fn *FuncSym) Control {
		if _, sought := want[name]; !sought {
			return Continue
		}
		if _, done := found[name]; done {
			return Continue
		}
		site, err := fn.Declaration()
		if err != nil {
			// Another module may still define the name with line info.
			return Continue
		}
		found[name] = site
		if len(found) == len(want) {
			return Stop
		}
		return Continue
	})
	return found
}

// formatLoader sniffs the object container format and hands the file to
// the matching loader.
type formatLoader struct {
	logger log.Logger
}

func (l formatLoader) Load(m *Module) (*DebugIndex, error) {
	format, err := objfile.Sniff(m.Path)
	if err != nil {
		return nil, err
	}
	var info *objfile.Info
	switch format {
	case objfile.FormatELF:
		info, err = elf2.Load(m.Path, elf2.Options{Logger: l.logger})
	case objfile.FormatMachO:
		info, err = macho2.Load(m.Path, macho2.Options{Logger: l.logger})
	default:
		return nil, objfile.ErrNoDebugInfo
	}
	if err != nil {
		return nil, err
	}
	return NewDebugIndex(info), nil
}
