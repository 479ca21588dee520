package symtab

import (
	"encoding/binary"
	"os"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// IndexCache is an optional cross-scan cache of parsed DebugIndex values.
// Parsing debug metadata for large binaries is not cheap, and the parsed
// index is immutable, so it can be shared freely between scans and between
// goroutines.
//
// Keys cover the identity of the module's backing file: path, device,
// inode, size and mtime. A module that is unloaded and replaced therefore
// gets a fresh key on the next scan, and the stale entry ages out of the
// LRU; a cached index is never served for a different generation of the
// same path. The underlying LRU is safe for many concurrent readers with
// writes happening only on first parse of a module.
type IndexCache struct {
	lru *lru.Cache[uint64, *DebugIndex]
}

// NewIndexCache creates a cache holding at most entries parsed indexes.
func NewIndexCache(entries int) (*IndexCache, error) {
	c, err := lru.New[uint64, *DebugIndex](entries)
	if err != nil {
		return nil, err
	}
	return &IndexCache{lru: c}, nil
}

// Len is the number of cached indexes.
func (c *IndexCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *IndexCache) get(key uint64) *DebugIndex {
	if c == nil {
		return nil
	}
	if ix, ok := c.lru.Get(key); ok {
		return ix
	}
	return nil
}

func (c *IndexCache) put(key uint64, ix *DebugIndex) {
	if c == nil {
		return
	}
	c.lru.Add(key, ix)
}

// moduleKey derives the cache key for a module from its path and the
// current identity of its backing file. Returns false when the file cannot
// be statted, in which case the module is not cached at all.
func moduleKey(m *Module) (uint64, bool) {
	fi, err := os.Stat(m.Path)
	if err != nil {
		return 0, false
	}
	var buf [8]byte
	h := xxhash.New()
	_, _ = h.WriteString(m.Path)
	for _, v := range []uint64{m.dev, m.inode, uint64(fi.Size()), uint64(fi.ModTime().UnixNano())} {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	return h.Sum64(), true
}
