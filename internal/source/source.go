package source

import (
	"context"
	"fmt"

	"AccidentLoader/internal/domain"
)

// Request carries the parameters of one fetch.
type Request struct {
	// Limit caps the number of records; zero means no limit.
	Limit int
	// FromID skips records whose numeric source id is lower.
	FromID int
}

// Source captures a single raw-record provider (ARIA CSV, EPICEA pages, etc.).
type Source interface {
	Name() string
	Fetch(ctx context.Context, req Request) ([]domain.RawRecord, error)
}

// Registry keeps a mapping from source names to their implementations.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(src Source) {
	if r.sources == nil {
		r.sources = map[string]Source{}
	}
	r.sources[src.Name()] = src
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Source, error) {
	if src, ok := r.sources[name]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}
