package hashing

import (
	"crypto/md5" //nolint:gosec // md5 identifies content, it is not a security boundary
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// Algorithm names a content digest. The name is persisted in manifests so
// that a manifest can be verified without out-of-band knowledge.
type Algorithm string

const (
	// MD5 is the default 128-bit digest; manifests without an algorithm field use it.
	MD5 Algorithm = "md5"
	// SHA256 is the 256-bit SHA-2 digest.
	SHA256 Algorithm = "sha256"
	// BLAKE3 is the 256-bit BLAKE3 digest.
	BLAKE3 Algorithm = "blake3"
	// XXH64 is the 64-bit xxHash digest. Fast, but only suitable for trusted sources.
	XXH64 Algorithm = "xxh64"
)

// DefaultAlgorithm is used when none is configured.
const DefaultAlgorithm = MD5

// ErrUnknownAlgorithm is returned for an unsupported algorithm name.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

var constructors = map[Algorithm]func() hash.Hash{
	MD5:    md5.New,
	SHA256: sha256.New,
	BLAKE3: func() hash.Hash { return blake3.New() },
	XXH64:  func() hash.Hash { return xxhash.New() },
}

// ParseAlgorithm converts a configured name into an Algorithm.
// The empty string selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultAlgorithm, nil
	}
	a := Algorithm(name)
	if _, ok := constructors[a]; !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnknownAlgorithm, name, strings.Join(Supported(), ", "))
	}
	return a, nil
}

// Supported returns the sorted names of all available algorithms.
func Supported() []string {
	names := make([]string, 0, len(constructors))
	for a := range constructors {
		names = append(names, string(a))
	}
	sort.Strings(names)
	return names
}

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() (hash.Hash, error) {
	ctor, ok := constructors[a]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(a))
	}
	return ctor(), nil
}

// HexLen is the length of the hex digest produced by the algorithm.
func (a Algorithm) HexLen() int {
	h, err := a.New()
	if err != nil {
		return 0
	}
	return h.Size() * 2
}
