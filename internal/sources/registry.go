// Package sources knows which ingestion sources exist, how to read their
// staged CSV files, and ships a small embedded sample set for demos and
// local development.
package sources

import (
	"healthpipe/pkg/errors"
	"healthpipe/pkg/models"
)

// Source type names.
const (
	CDCPlaces     = "CDC_PLACES"
	Environmental = "ENVIRONMENTAL"
)

// Registry resolves source type names to their stage and landing table.
type Registry struct {
	sources map[string]models.Source
	names   []string
}

// NewRegistry builds a registry from configuration.
func NewRegistry(configured []models.Source) *Registry {
	r := &Registry{sources: make(map[string]models.Source)}
	for _, s := range configured {
		r.sources[s.Name] = s
		r.names = append(r.names, s.Name)
	}
	return r
}

// Lookup resolves a source type. Unknown names return the typed
// invalid-source error; callers must not touch any landing table in that
// case.
func (r *Registry) Lookup(sourceType string) (models.Source, error) {
	s, ok := r.sources[sourceType]
	if !ok {
		return models.Source{}, errors.UnknownSourceError(sourceType, r.names)
	}
	return s, nil
}

// Names returns the registered source names in configuration order.
func (r *Registry) Names() []string {
	return r.names
}
