// Package declsite resolves, best effort, where in source a function
// visible in the running process was declared, by reading the debug
// metadata of every loaded code module: the main executable and the
// dynamically loaded libraries.
//
// It exists for diagnostic and dependency-injection frameworks that
// register function values and want to report "this handler was defined
// at server/routes.go:41" to a human, without making callers pass that
// information around explicitly.
//
// Everything here is best effort. Functions the linker dropped because
// nothing referenced them do not appear at all; functions that were
// inlined everywhere have no standalone symbol and are not reported;
// modules with stripped or corrupt metadata silently contribute nothing.
// Use PlatformSupport to distinguish "nothing found" from "nothing is
// possible on this platform".
//
// A scan is synchronous CPU and I/O bound work and is not cheap on
// processes with many or large modules; callers wanting a non-blocking
// shape should run it on their own background goroutine. Independent
// scans may run concurrently.
package declsite

import (
	"fmt"
	"reflect"
	"runtime"

	"github.com/grafana/declsite/symtab"
)

// DeclarationSite is the resolved source position of a function: file as
// recorded by the toolchain that built the module, 1-based line, and an
// optional column. Its String form is "file:line".
type DeclarationSite = symtab.DeclarationSite

// FuncSym is the handle passed to visitors: canonical name, entry address,
// owning module, and a fallible on-demand conversion to a DeclarationSite.
type FuncSym = symtab.FuncSym

// Module identifies one loaded unit of executable code.
type Module = symtab.Module

// Visitor is called once per discovered function and steers the scan by
// returning Continue or Stop.
type Visitor = symtab.Visitor

// Control is a visitor's verdict.
type Control = symtab.Control

const (
	Continue = symtab.Continue
	Stop     = symtab.Stop
)

// Summary reports what a scan covered.
type Summary = symtab.Summary

// Support is the platform capability reported by PlatformSupport.
type Support = symtab.Support

const (
	SupportNone     = symtab.SupportNone
	SupportDegraded = symtab.SupportDegraded
	SupportFull     = symtab.SupportFull
)

// Cache shares parsed debug metadata across scans; see NewCache.
type Cache = symtab.IndexCache

// NewCache creates a cross-scan cache of parsed per-module debug metadata,
// holding at most entries modules. Pass it via WithCache when the same
// process scans repeatedly; without it every scan re-parses every module.
func NewCache(entries int) (*Cache, error) {
	return symtab.NewIndexCache(entries)
}

// PlatformSupport reports whether the running platform can enumerate
// loaded modules at all, and whether results are known to be degraded.
func PlatformSupport() Support {
	return symtab.PlatformSupport()
}

// ForEachFunction scans every loaded module and invokes visit once per
// discovered function with its canonical name. The visitor can stop the
// scan early; see Visitor. Functions whose declaration site cannot be
// resolved are still visited, with FuncSym.Declaration reporting the
// failure.
func ForEachFunction(visit Visitor, opts ...Option) Summary {
	return newScanner(opts).Scan(visit)
}

// Declaration resolves the declaration site of the function with the
// given canonical name, stopping at the first match. Returns
// symtab.ErrNotFound when no loaded module defines the name with a
// resolvable site.
//
// Each call is a full fresh pass over the process' modules; to resolve
// many names, use one ForEachFunction scan with a caller-side name set
// instead of calling Declaration in a loop.
func Declaration(name string, opts ...Option) (DeclarationSite, error) {
	return newScanner(opts).Lookup(name)
}

// DeclarationOfFunc resolves the declaration site of a live Go function
// value, deriving its symbol name from the runtime and then looking that
// name up in the loaded modules' debug metadata. fn must be a func; any
// other kind is an error.
func DeclarationOfFunc(fn any, opts ...Option) (DeclarationSite, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return DeclarationSite{}, fmt.Errorf("declsite: not a function: %T", fn)
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return DeclarationSite{}, symtab.ErrNotFound
	}
	return Declaration(rf.Name(), opts...)
}
