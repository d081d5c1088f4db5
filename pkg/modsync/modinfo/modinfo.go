// Package modinfo reads mod metadata (id, version, display name) from the
// TOML descriptor packed inside a mod jar.
package modinfo

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jamesainslie/modsync/pkg/modsync/manifest"
	"github.com/pelletier/go-toml/v2"
)

// DescriptorPaths are the locations searched inside a jar, in order.
var DescriptorPaths = []string{
	"META-INF/neoforge.mods.toml",
	"META-INF/mods.toml",
}

// ErrNoDescriptor is returned when a jar carries none of DescriptorPaths.
var ErrNoDescriptor = errors.New("no mod descriptor found")

// maxDescriptorSize bounds how much of a descriptor is read.
const maxDescriptorSize = 1 << 20

type descriptor struct {
	Mods []struct {
		ModID       string `toml:"modId"`
		Version     string `toml:"version"`
		DisplayName string `toml:"displayName"`
	} `toml:"mods"`
}

// Read returns metadata for the first mod declared in the jar at path.
func Read(path string) (*manifest.ModInfo, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer zr.Close()

	return fromZip(&zr.Reader, path)
}

// ReadFrom is Read for an already opened archive.
func ReadFrom(r io.ReaderAt, size int64) (*manifest.ModInfo, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	return fromZip(zr, "archive")
}

func fromZip(zr *zip.Reader, name string) (*manifest.ModInfo, error) {
	for _, want := range DescriptorPaths {
		for _, f := range zr.File {
			if f.Name != want {
				continue
			}
			info, err := parseEntry(f)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", name, want, err)
			}
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w in %s", ErrNoDescriptor, name)
}

func parseEntry(f *zip.File) (*manifest.ModInfo, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxDescriptorSize))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a mods.toml document.
func Parse(data []byte) (*manifest.ModInfo, error) {
	var d descriptor
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing descriptor: %w", err)
	}
	if len(d.Mods) == 0 || strings.TrimSpace(d.Mods[0].ModID) == "" {
		return nil, ErrNoDescriptor
	}
	m := d.Mods[0]
	return &manifest.ModInfo{
		ModID:       m.ModID,
		Version:     m.Version,
		DisplayName: m.DisplayName,
	}, nil
}
