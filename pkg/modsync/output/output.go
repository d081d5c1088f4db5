// Package output renders modsync reports (drift checks, restores, builds,
// manifest listings) in several formats: pretty, plain, json, yaml,
// markdown, tsv and csv.
//
// The package uses a registry so that formatters are selected by name at
// runtime:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, output.FromDrift(report)); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
)

// Row is one line of a report.
type Row struct {
	// Status classifies the row (e.g. "missing", "restored", "chunked").
	Status string `json:"status" yaml:"status"`

	// Name is the file name.
	Name string `json:"name" yaml:"name"`

	// Path is the file location, when relevant.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Size is the file size in bytes.
	Size uint64 `json:"size" yaml:"size"`

	// SizeHuman is the human-readable size (e.g. "30 MiB").
	SizeHuman string `json:"size_human" yaml:"size_human"`

	// Detail is a free-form description.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Stat is a named count shown in report summaries.
type Stat struct {
	Label string `json:"label" yaml:"label"`
	Value int    `json:"value" yaml:"value"`
}

// Result is the format-independent content of a report.
type Result struct {
	// Title names the report ("Drift", "Restore", ...).
	Title string `json:"title" yaml:"title"`

	// Source is the directory the report describes.
	Source string `json:"source" yaml:"source"`

	// ManifestID and CreatedAt identify the manifest involved.
	ManifestID string `json:"manifest_id,omitempty" yaml:"manifest_id,omitempty"`
	CreatedAt  string `json:"created_at,omitempty" yaml:"created_at,omitempty"`

	// OK is false when the report describes a failure or inconsistency.
	OK bool `json:"ok" yaml:"ok"`

	// Rows are the report lines.
	Rows []Row `json:"rows" yaml:"rows"`

	// Stats are the summary counts, in display order.
	Stats []Stat `json:"stats" yaml:"stats"`

	// Warnings contains messages shown after the table.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// TotalSize returns the sum of all row sizes.
func (r *Result) TotalSize() uint64 {
	var total uint64
	for _, row := range r.Rows {
		total += row.Size
	}
	return total
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
