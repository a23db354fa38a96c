package vectorindex

import (
	"context"
	"sync"

	"ctxasm/internal/model"
)

// Memory is an in-process index, used by tests and the "memory" backend.
type Memory struct {
	mu       sync.RWMutex
	versions map[versionKey]map[string]*model.FileRecord
}

type versionKey struct {
	project string
	version string
}

// NewMemory creates an empty in-process index.
func NewMemory() *Memory {
	return &Memory{versions: make(map[versionKey]map[string]*model.FileRecord)}
}

// Upsert stores a copy of rec, replacing any record with the same path.
func (m *Memory) Upsert(_ context.Context, projectID, versionID string, rec *model.FileRecord) error {
	cp := *rec
	key := versionKey{projectID, versionID}

	m.mu.Lock()
	defer m.mu.Unlock()
	files, ok := m.versions[key]
	if !ok {
		files = make(map[string]*model.FileRecord)
		m.versions[key] = files
	}
	files[rec.Path] = &cp
	return nil
}

// Search scores every record in the version.
func (m *Memory) Search(_ context.Context, q Query) ([]model.Candidate, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	r := newRanker(q)
	for _, rec := range m.versions[versionKey{q.ProjectID, q.VersionID}] {
		r.add(rec)
	}
	return r.results(), nil
}

// Lookup returns stored records for the given paths.
func (m *Memory) Lookup(_ context.Context, projectID, versionID string, paths []string) (map[string]*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := m.versions[versionKey{projectID, versionID}]
	out := make(map[string]*model.FileRecord, len(paths))
	for _, p := range paths {
		if rec, ok := files[p]; ok {
			cp := *rec
			out[p] = &cp
		}
	}
	return out, nil
}

// Len returns the number of records in a version.
func (m *Memory) Len(projectID, versionID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.versions[versionKey{projectID, versionID}])
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
