// Package synstore loads exam name synonym mappings from YAML files. The
// store is read once at the start of a reconciliation run so every entry in
// the run sees the same snapshot.
package synstore

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/labops/glosa/pkg/errors"
)

// document is the on-disk layout. Synonyms map a variant exam name to its
// canonical form; both sides are normalized by the canonicalizer at load
// time, so the file may use any casing or accents.
type document struct {
	Synonyms map[string]string `yaml:"synonyms"`
}

// FileStore reads a synonym mapping from a single YAML file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the YAML file at path. The file is
// not touched until GetAll is called.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// GetAll reads and parses the synonym file. Missing or unreadable files are
// store errors; the caller decides whether to degrade or abort.
func (s *FileStore) GetAll(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.WrapStore("synonyms", fmt.Errorf("read %s: %w", s.path, err))
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapStore("synonyms", fmt.Errorf("parse %s: %w", s.path, err))
	}

	out := make(map[string]string, len(doc.Synonyms))
	for variant, canonical := range doc.Synonyms {
		variant = strings.TrimSpace(variant)
		canonical = strings.TrimSpace(canonical)
		if variant == "" || canonical == "" {
			continue
		}
		out[variant] = canonical
	}
	return out, nil
}

// StaticStore serves a fixed in-memory mapping. Useful in tests and for
// callers that assemble synonyms from another source.
type StaticStore struct {
	synonyms map[string]string
}

// NewStaticStore copies the given mapping into a store.
func NewStaticStore(synonyms map[string]string) *StaticStore {
	copied := make(map[string]string, len(synonyms))
	for k, v := range synonyms {
		copied[k] = v
	}
	return &StaticStore{synonyms: copied}
}

// GetAll returns a copy of the mapping so callers cannot mutate the store.
func (s *StaticStore) GetAll(_ context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s.synonyms))
	for k, v := range s.synonyms {
		out[k] = v
	}
	return out, nil
}
