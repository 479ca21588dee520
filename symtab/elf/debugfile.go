package elf

import (
	"debug/elf"
	"os"
	"path"
)

func joinRoot(root, p string) string {
	if root == "" {
		return p
	}
	return path.Join(root, p)
}

// findDebugFile looks for a separate debug file for elfPath in GDB's order.
// For a binary /usr/bin/ls with debug link ls.debug and build ID
// abcdef1234, the candidates are:
//
//   - /usr/lib/debug/.build-id/ab/cdef1234.debug
//   - /usr/bin/ls.debug
//   - /usr/bin/.debug/ls.debug
//   - /usr/lib/debug/usr/bin/ls.debug
//
// https://sourceware.org/gdb/onlinedocs/gdb/Separate-Debug-Files.html
func findDebugFile(f *elf.File, elfPath string, opt Options) string {
	buildID, err := FileBuildID(f)
	if err == nil {
		if debugFile := findDebugFileWithBuildID(buildID, opt); debugFile != "" {
			return debugFile
		}
	}
	return findDebugFileWithDebugLink(f, elfPath, opt)
}

func findDebugFileWithBuildID(buildID BuildID, opt Options) string {
	id := buildID.ID
	if len(id) < 3 || !buildID.GNU() {
		return ""
	}
	for _, dir := range opt.debugDirs() {
		debugFile := path.Join(dir, ".build-id", id[:2], id[2:]+".debug")
		if _, err := os.Stat(joinRoot(opt.Root, debugFile)); err == nil {
			return debugFile
		}
	}
	return ""
}

func findDebugFileWithDebugLink(f *elf.File, elfPath string, opt Options) string {
	linkSection := f.Section(".gnu_debuglink")
	if linkSection == nil {
		return ""
	}
	data, err := linkSection.Data()
	if err != nil || len(data) < 6 {
		return ""
	}
	// The last four bytes are a CRC of the debug file; checking it is not
	// worth a full read on the best-effort path.
	debugLink := cString(data)
	if debugLink == "" {
		return ""
	}

	candidates := []string{
		path.Join(path.Dir(elfPath), debugLink),
		path.Join(path.Dir(elfPath), ".debug", debugLink),
	}
	for _, dir := range opt.debugDirs() {
		candidates = append(candidates, path.Join(dir, path.Dir(elfPath), debugLink))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(joinRoot(opt.Root, candidate)); err == nil {
			return candidate
		}
	}
	return ""
}

func cString(bs []byte) string {
	i := 0
	for ; i < len(bs); i++ {
		if bs[i] == 0 {
			break
		}
	}
	return string(bs[:i])
}
