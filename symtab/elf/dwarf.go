package elf

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// fallbackDWARF assembles dwarf.Data section by section when f.DWARF()
// refuses the file as a whole. Optional sections that fail to load are
// skipped instead of failing everything, and compressed sections are
// inflated here (including zstd, which not every toolchain's stdlib
// understands).
func fallbackDWARF(f *elf.File, fsPath string) (*dwarf.Data, error) {
	raw, err := os.Open(fsPath)
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	abbrev, err := sectionBytes(f, raw, ".debug_abbrev")
	if err != nil {
		return nil, err
	}
	info, err := sectionBytes(f, raw, ".debug_info")
	if err != nil {
		return nil, err
	}
	if len(abbrev) == 0 || len(info) == 0 {
		return nil, fmt.Errorf("no .debug_info in %s", fsPath)
	}
	line, _ := sectionBytes(f, raw, ".debug_line")
	ranges, _ := sectionBytes(f, raw, ".debug_ranges")
	str, _ := sectionBytes(f, raw, ".debug_str")

	d, err := dwarf.New(abbrev, nil, nil, info, line, nil, ranges, str)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{".debug_line_str", ".debug_str_offsets", ".debug_addr", ".debug_rnglists"} {
		b, berr := sectionBytes(f, raw, name)
		if berr != nil || len(b) == 0 {
			continue
		}
		if err := d.AddSection(name, b); err != nil {
			return nil, err
		}
	}
	return d, nil
}

var zlibMagic = []byte("ZLIB\x00")

// sectionBytes reads one debug section, looking for both the .debug_ and
// the legacy .zdebug_ spelling, and inflates whatever compression it finds.
// A missing section comes back as (nil, nil).
func sectionBytes(f *elf.File, raw io.ReaderAt, name string) ([]byte, error) {
	s := f.Section(name)
	if s == nil {
		s = f.Section(".z" + name[1:])
	}
	if s == nil || s.Type == elf.SHT_NOBITS {
		return nil, nil
	}
	buf := make([]byte, s.FileSize)
	if _, err := raw.ReadAt(buf, int64(s.Offset)); err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Name, err)
	}

	if s.Flags&elf.SHF_COMPRESSED != 0 {
		return inflateCompressedSection(f.Class, f.ByteOrder, buf, s.Name)
	}
	if bytes.HasPrefix(buf, zlibMagic) {
		// Legacy .zdebug_ layout: "ZLIB\0", 8-byte big-endian size, stream.
		if len(buf) < 12 {
			return nil, fmt.Errorf("%s: truncated ZLIB header", s.Name)
		}
		size := binary.BigEndian.Uint64(buf[4:12])
		return inflate(zlibReader, buf[12:], size, s.Name)
	}
	return buf, nil
}

// Compression header, Elf64_Chdr / Elf32_Chdr.
const (
	compressZlib = 1
	compressZstd = 2
)

func inflateCompressedSection(class elf.Class, bo binary.ByteOrder, buf []byte, name string) ([]byte, error) {
	var (
		typ    uint32
		size   uint64
		stream []byte
	)
	switch class {
	case elf.ELFCLASS64:
		if len(buf) < 24 {
			return nil, fmt.Errorf("%s: truncated Elf64_Chdr", name)
		}
		typ = bo.Uint32(buf[0:4])
		size = bo.Uint64(buf[8:16])
		stream = buf[24:]
	case elf.ELFCLASS32:
		if len(buf) < 12 {
			return nil, fmt.Errorf("%s: truncated Elf32_Chdr", name)
		}
		typ = bo.Uint32(buf[0:4])
		size = uint64(bo.Uint32(buf[4:8]))
		stream = buf[12:]
	default:
		return nil, fmt.Errorf("%s: unknown ELF class %v", name, class)
	}

	switch typ {
	case compressZlib:
		return inflate(zlibReader, stream, size, name)
	case compressZstd:
		return inflate(zstdReader, stream, size, name)
	default:
		return nil, fmt.Errorf("%s: unsupported compression type %d", name, typ)
	}
}

func zlibReader(r io.Reader) (io.Reader, error) { return zlib.NewReader(r) }

func zstdReader(r io.Reader) (io.Reader, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zr.IOReadCloser(), nil
}

func inflate(open func(io.Reader) (io.Reader, error), stream []byte, size uint64, name string) ([]byte, error) {
	r, err := open(bytes.NewReader(stream))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if c, ok := r.(io.Closer); ok {
		defer c.Close()
	}
	out := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(out, r); err != nil {
		return nil, fmt.Errorf("inflating %s: %w", name, err)
	}
	return out.Bytes(), nil
}
