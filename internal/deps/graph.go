// Package deps expands a selected file set with the project files it
// statically imports.
package deps

import (
	"context"
	"sync"

	"ctxasm/internal/embedding"
	"ctxasm/internal/extract"
	"ctxasm/internal/model"
)

// Graph is the read-only view of a project the resolver walks.
type Graph interface {
	Has(path string) bool
	Imports(path string) []string
	Content(path string) string
}

// Snapshot is a Graph over one project version's file contents. Imports
// come from indexed records when their content hash still matches and are
// otherwise extracted on first use.
type Snapshot struct {
	files     map[string]string
	records   map[string]*model.FileRecord
	extractor *extract.Extractor

	mu   sync.Mutex
	memo map[string][]string
}

// NewSnapshot creates a graph. records and extractor may be nil; without an
// extractor only recorded imports are visible.
func NewSnapshot(files map[string]string, records map[string]*model.FileRecord, extractor *extract.Extractor) *Snapshot {
	return &Snapshot{
		files:     files,
		records:   records,
		extractor: extractor,
		memo:      make(map[string][]string),
	}
}

// Has reports whether path is in the snapshot.
func (s *Snapshot) Has(path string) bool {
	_, ok := s.files[path]
	return ok
}

// Content returns the file content, or "" when absent.
func (s *Snapshot) Content(path string) string {
	return s.files[path]
}

// Imports returns the raw import specifiers of path.
func (s *Snapshot) Imports(path string) []string {
	content, ok := s.files[path]
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if imports, ok := s.memo[path]; ok {
		return imports
	}

	var imports []string
	if rec := s.records[path]; rec != nil && rec.ContentHash == embedding.HashContent(content) {
		imports = rec.Imports
	} else if s.extractor != nil {
		imports = s.extractor.Extract(context.Background(), path, content).Imports
	}
	s.memo[path] = imports
	return imports
}
