package symtab

// ModuleKind distinguishes the main executable from loaded libraries.
type ModuleKind int

const (
	KindExecutable ModuleKind = iota
	KindSharedLibrary
)

func (k ModuleKind) String() string {
	switch k {
	case KindExecutable:
		return "executable"
	case KindSharedLibrary:
		return "shared-library"
	default:
		return "unknown"
	}
}

// Module is one loaded unit of executable code in the running process: the
// main executable or a dynamically loaded library. A Module is materialized
// from a live snapshot at the start of a scan and never mutated.
type Module struct {
	// Path of the backing file as reported by the loader.
	Path string

	// Base is the start address of the module's first executable mapping.
	Base uint64

	Kind ModuleKind

	// Identity of the backing file at enumeration time. Zero on platforms
	// that do not report it. Used as cache key material so a reloaded
	// module never hits a stale cache entry.
	dev   uint64
	inode uint64
}
