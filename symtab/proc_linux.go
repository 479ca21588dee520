//go:build linux

package symtab

import (
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/procfs"
)

func platformSupport() Support { return SupportFull }

// loadedModules snapshots the process' executable file-backed mappings
// from /proc/self/maps. Modules loaded or unloaded while the snapshot is
// taken may be missed or linger; that race is accepted. The first
// executable mapping of each path wins, which keeps per-scan order stable.
func loadedModules() ([]*Module, error) {
	self, err := procfs.Self()
	if err != nil {
		return nil, fmt.Errorf("open /proc/self: %w", err)
	}
	maps, err := self.ProcMaps()
	if err != nil {
		return nil, fmt.Errorf("read /proc/self/maps: %w", err)
	}
	exe, _ := os.Executable()

	seen := make(map[string]bool)
	var mods []*Module
	for _, m := range maps {
		if m.Perms == nil || !m.Perms.Execute {
			continue
		}
		p := m.Pathname
		// Skips anonymous mappings and pseudo-paths like [vdso].
		if !strings.HasPrefix(p, "/") {
			continue
		}
		if strings.HasSuffix(p, " (deleted)") {
			continue
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		kind := KindSharedLibrary
		if p == exe {
			kind = KindExecutable
		}
		mods = append(mods, &Module{
			Path:  p,
			Base:  uint64(m.StartAddr),
			Kind:  kind,
			dev:   m.Dev,
			inode: m.Inode,
		})
	}
	return mods, nil
}
