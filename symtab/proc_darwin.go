//go:build darwin

package symtab

import (
	"fmt"
	"os"
)

func platformSupport() Support { return SupportDegraded }

// loadedModules on darwin covers only the main executable: walking the
// dyld image list needs cgo, which this package does not use. On top of
// that, scans here have been observed to come back partial or empty on
// some systems for reasons that are not yet understood; that behavior is
// reported through SupportDegraded and deliberately left as is rather
// than guessed at.
func loadedModules() ([]*Module, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate main executable: %w", err)
	}
	return []*Module{{Path: exe, Kind: KindExecutable}}, nil
}
