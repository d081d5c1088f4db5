// Package cache persists file digests between runs so that unchanged mods
// are not re-hashed on every drift check or manifest build. An entry is
// only trusted while the file's size and modification time are unchanged.
package cache

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/jamesainslie/modsync/pkg/modsync/hashing"
)

// Cache is a Badger-backed hashing.DigestCache.
type Cache struct {
	store *Store
}

// Open opens or creates a cache at the given directory.
func Open(path string) (*Cache, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}
	return &Cache{store: store}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Lookup returns the cached digest for path when size and mtime still match.
func (c *Cache) Lookup(path string, algo hashing.Algorithm, size int64, mtime time.Time) (string, bool) {
	entry, err := c.store.Get(MakeKey(string(algo), absPath(path)))
	if err != nil {
		return "", false
	}
	if entry.Version != CacheVersion || entry.Size != size || entry.Mtime != mtime.UnixNano() {
		return "", false
	}
	return entry.Digest, true
}

// Store records the digest for path at the given size and mtime.
func (c *Cache) Store(path string, algo hashing.Algorithm, size int64, mtime time.Time, digest string) error {
	return c.store.Put(MakeKey(string(algo), absPath(path)), &DigestEntry{
		Version: CacheVersion,
		Size:    size,
		Mtime:   mtime.UnixNano(),
		Digest:  digest,
	})
}

// Forget drops the entry for path, if any.
func (c *Cache) Forget(path string, algo hashing.Algorithm) error {
	err := c.store.Delete(MakeKey(string(algo), absPath(path)))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Len returns the number of cached digests across all algorithms.
func (c *Cache) Len() (int, error) {
	return c.store.Count(nil)
}

// CountFor returns the number of cached digests for one algorithm.
func (c *Cache) CountFor(algo hashing.Algorithm) (int, error) {
	return c.store.Count(MakeKeyPrefix(string(algo)))
}

// Clear removes all entries for one algorithm.
func (c *Cache) Clear(algo hashing.Algorithm) error {
	return c.store.DeletePrefix(MakeKeyPrefix(string(algo)))
}

// ClearAll removes all cached entries.
func (c *Cache) ClearAll() error {
	return c.store.DeletePrefix(nil)
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

var _ hashing.DigestCache = (*Cache)(nil)
