package symtab

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// Name-only demangling: declaration sites are matched against type-level
// names, which carry no parameter or template information.
var demangleOptions = []demangle.Option{
	demangle.NoParams,
	demangle.NoTemplateParams,
	demangle.NoClones,
}

// CanonicalName maps a raw linker symbol name to a canonical scoped path,
// demangling C++ and Rust names and stripping toolchain uniquification
// suffixes, so two builds of the same source normalize identically. It
// returns false when the name has no stable canonical form: assembler and
// linker locals, compiler-outlined fragments, or empty names. Go symbols
// are already canonical and pass through unchanged.
func CanonicalName(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	// Dynamic symbol version decoration: "malloc@@GLIBC_2.2.5".
	if i := strings.IndexByte(raw, '@'); i >= 0 {
		if i == 0 {
			return "", false
		}
		raw = raw[:i]
	}
	if raw[0] == '$' || strings.HasPrefix(raw, ".L") {
		return "", false
	}
	name := demangle.Filter(raw, demangleOptions...)
	name = stripRustHash(name)
	name = stripCloneSuffixes(name)
	if name == "" || strings.HasPrefix(name, "OUTLINED_FUNCTION_") {
		return "", false
	}
	return name, true
}

// stripRustHash removes the legacy Rust mangling's trailing
// "::h<16 hex digits>" uniquification token. The v0 scheme encodes no
// hash, so both schemes normalize to the same path.
func stripRustHash(name string) string {
	i := strings.LastIndex(name, "::h")
	if i < 0 || len(name)-(i+3) != 16 {
		return name
	}
	for _, c := range name[i+3:] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return name
		}
	}
	return name[:i]
}

// GCC/LLVM optimization clones and internalized symbols get dotted
// suffixes that vary between builds: "foo.constprop.0", "bar.isra.3",
// "baz.llvm.1234567". Only known markers are stripped; dots inside Go
// names ("main.main.func1.2") stay untouched.
var cloneMarkers = map[string]bool{
	"constprop": true,
	"isra":      true,
	"part":      true,
	"cold":      true,
	"llvm":      true,
	"lto_priv":  true,
}

func stripCloneSuffixes(name string) string {
	for {
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return name
		}
		seg := name[i+1:]
		if cloneMarkers[seg] {
			name = name[:i]
			continue
		}
		if isDigits(seg) {
			j := strings.LastIndexByte(name[:i], '.')
			if j >= 0 && cloneMarkers[name[j+1:i]] {
				name = name[:j]
				continue
			}
		}
		return name
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
