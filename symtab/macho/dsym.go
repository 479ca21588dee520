package macho

import (
	"os"
	"path/filepath"
)

// findDSYM returns the DWARF file inside the dSYM bundle next to the
// binary, the layout dsymutil produces:
//
//	<binary>.dSYM/Contents/Resources/DWARF/<basename>
func findDSYM(binPath string) string {
	p := filepath.Join(binPath+".dSYM", "Contents", "Resources", "DWARF", filepath.Base(binPath))
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}
