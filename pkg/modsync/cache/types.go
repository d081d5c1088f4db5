package cache

import (
	"bytes"
	"encoding/gob"
)

// CacheVersion is incremented when the entry format changes.
// Entries written by another version are treated as misses.
const CacheVersion = 1

// KeySeparator separates the algorithm from the path in cache keys.
const KeySeparator = '\x00'

// DigestEntry is the cached fingerprint of one file.
type DigestEntry struct {
	Version int
	Size    int64  // File size in bytes at hashing time
	Mtime   int64  // Modification time as UnixNano at hashing time
	Digest  string // Hex digest
}

// Encode serializes the entry to bytes using gob.
func (e *DigestEntry) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *DigestEntry) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// MakeKey creates a cache key from an algorithm name and absolute path.
// Format: <algorithm>\x00<path>
func MakeKey(algo, path string) []byte {
	return []byte(algo + string(KeySeparator) + path)
}

// ParseKey extracts the algorithm and path from a cache key.
func ParseKey(key []byte) (algo, path string) {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return string(key), ""
	}
	return string(key[:idx]), string(key[idx+1:])
}

// MakeKeyPrefix returns the prefix for all keys of an algorithm.
func MakeKeyPrefix(algo string) []byte {
	if algo == "" {
		return nil
	}
	return []byte(algo + string(KeySeparator))
}
