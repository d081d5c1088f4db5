package manifest

import (
	"context"
)

// Fetcher retrieves the authoritative manifest from wherever the pack is
// published. Network implementations live outside this module.
type Fetcher interface {
	Fetch(ctx context.Context) (*Manifest, error)
}

// FileFetcher reads a manifest document from a local or mounted path.
type FileFetcher struct {
	Path string
}

// Fetch loads the manifest at f.Path.
func (f FileFetcher) Fetch(ctx context.Context) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Load(f.Path)
}

// StoreFetcher returns the newest manifest recorded in a history Store.
type StoreFetcher struct {
	Store *Store
}

// Fetch returns the latest recorded manifest.
func (f StoreFetcher) Fetch(ctx context.Context) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.Store.Latest()
}

var (
	_ Fetcher = FileFetcher{}
	_ Fetcher = StoreFetcher{}
)
