package elf

import (
	"bytes"
	"debug/elf"
	"encoding/hex"
	"errors"
	"fmt"
)

// BuildID identifies one build of a binary. Typ distinguishes GNU build IDs
// (usable for /usr/lib/debug/.build-id lookup) from Go build IDs.
type BuildID struct {
	ID  string
	Typ string
}

func GNUBuildID(s string) BuildID { return BuildID{ID: s, Typ: "gnu"} }
func GoBuildID(s string) BuildID  { return BuildID{ID: s, Typ: "go"} }

func (b *BuildID) Empty() bool { return b.ID == "" || b.Typ == "" }
func (b *BuildID) GNU() bool   { return b.Typ == "gnu" }

var ErrNoBuildIDSection = errors.New("build ID section not found")

// FileBuildID returns the GNU build ID of f, falling back to the Go build
// ID when there is no GNU note.
func FileBuildID(f *elf.File) (BuildID, error) {
	id, err := gnuBuildID(f)
	if err != nil && !errors.Is(err, ErrNoBuildIDSection) {
		return BuildID{}, err
	}
	if !id.Empty() {
		return id, nil
	}
	id, err = goBuildID(f)
	if err != nil && !errors.Is(err, ErrNoBuildIDSection) {
		return BuildID{}, err
	}
	if !id.Empty() {
		return id, nil
	}
	return BuildID{}, ErrNoBuildIDSection
}

func gnuBuildID(f *elf.File) (BuildID, error) {
	s := f.Section(".note.gnu.build-id")
	if s == nil {
		return BuildID{}, ErrNoBuildIDSection
	}
	data, err := s.Data()
	if err != nil {
		return BuildID{}, fmt.Errorf("reading .note.gnu.build-id: %w", err)
	}
	if len(data) < 16 {
		return BuildID{}, fmt.Errorf(".note.gnu.build-id is too small")
	}
	if !bytes.Equal([]byte("GNU"), data[12:15]) {
		return BuildID{}, fmt.Errorf(".note.gnu.build-id is not a GNU build-id")
	}
	raw := data[16:]
	if len(raw) != 20 && len(raw) != 8 { // 8 is xxhash, seen on Container-Optimized OS
		return BuildID{}, fmt.Errorf(".note.gnu.build-id has wrong size %d", len(raw))
	}
	return GNUBuildID(hex.EncodeToString(raw)), nil
}

var goBuildIDSep = []byte("/")

func goBuildID(f *elf.File) (BuildID, error) {
	s := f.Section(".note.go.buildid")
	if s == nil {
		return BuildID{}, ErrNoBuildIDSection
	}
	data, err := s.Data()
	if err != nil {
		return BuildID{}, fmt.Errorf("reading .note.go.buildid: %w", err)
	}
	if len(data) < 17 {
		return BuildID{}, fmt.Errorf(".note.go.buildid is too small")
	}
	data = data[16 : len(data)-1]
	if len(data) < 40 || bytes.Count(data, goBuildIDSep) < 2 {
		return BuildID{}, fmt.Errorf("wrong .note.go.buildid")
	}
	id := string(data)
	if id == "redacted" {
		return BuildID{}, fmt.Errorf("redacted .note.go.buildid")
	}
	return GoBuildID(id), nil
}
