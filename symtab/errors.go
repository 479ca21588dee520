package symtab

import (
	"errors"
	"os"
)

var (
	// ErrUnsupported means the platform has no module-introspection
	// capability at all. It precedes any scan; scans on such platforms
	// return an empty Summary.
	ErrUnsupported = errors.New("module introspection is not supported on this platform")

	// ErrUnresolved means a function symbol exists but no line-table range
	// covers its entry address, so no declaration site can be computed.
	// This is what inlined-away and line-table-invisible functions report.
	ErrUnresolved = errors.New("no line table range covers the function entry")

	// ErrNotFound means a sought name never appeared in any scanned module.
	ErrNotFound = errors.New("function not found in any loaded module")
)

// errorType buckets a module load error into a metrics label.
func errorType(err error) string {
	if errors.Is(err, os.ErrNotExist) {
		return "ErrNotExist"
	}
	if errors.Is(err, os.ErrPermission) {
		return "ErrPermission"
	}
	if errors.Is(err, os.ErrClosed) {
		return "ErrClosed"
	}
	if errors.Is(err, os.ErrInvalid) {
		return "ErrInvalid"
	}
	return "Other"
}
