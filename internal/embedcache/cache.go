// Package embedcache implements the two-tier embedding cache: a TTL-bounded
// in-process map in front of the persistent store.
package embedcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ctxasm/internal/slogutil"
	"ctxasm/internal/storage"
)

// DefaultTTL is the in-process tier lifetime.
const DefaultTTL = 5 * time.Minute

// Entry is a cached embedding.
type Entry struct {
	Vector     []float32
	TokenCount int
}

// Cache is the lookup surface used by the embedding batcher.
type Cache interface {
	Get(ctx context.Context, contentHash string) (Entry, bool, error)
	Put(ctx context.Context, filePath, contentHash string, e Entry) error
}

// Memory is the in-process tier. Entries expire TTL after their last use.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	ttl     time.Duration
	now     func() time.Time
}

type memEntry struct {
	entry    Entry
	lastUsed time.Time
}

// NewMemory creates a memory tier. A non-positive ttl uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		entries: make(map[string]*memEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Get returns the entry for contentHash and refreshes its last use.
func (m *Memory) Get(_ context.Context, contentHash string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[contentHash]
	if !ok {
		return Entry{}, false, nil
	}
	now := m.now()
	if now.Sub(e.lastUsed) > m.ttl {
		delete(m.entries, contentHash)
		return Entry{}, false, nil
	}
	e.lastUsed = now
	return e.entry, true, nil
}

// Put stores an entry. It never fails.
func (m *Memory) Put(_ context.Context, _ string, contentHash string, e Entry) error {
	m.mu.Lock()
	m.entries[contentHash] = &memEntry{entry: e, lastUsed: m.now()}
	m.mu.Unlock()
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (m *Memory) Purge() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, e := range m.entries {
		if now.Sub(e.lastUsed) > m.ttl {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Store is the persistent tier.
type Store interface {
	Get(ctx context.Context, projectID, contentHash, model string) (storage.StoredEmbedding, bool, error)
	Put(ctx context.Context, projectID, filePath, contentHash string, e storage.StoredEmbedding) error
}

// Tiered checks memory first, then the persistent store. The store is
// authoritative; memory is only an accelerator.
type Tiered struct {
	memory    *Memory
	store     Store
	projectID string
	model     string
	logger    *slog.Logger
}

// NewTiered creates a two-tier cache for one project and embedding model.
func NewTiered(memory *Memory, store Store, projectID, model string, logger *slog.Logger) *Tiered {
	if memory == nil {
		memory = NewMemory(DefaultTTL)
	}
	return &Tiered{
		memory:    memory,
		store:     store,
		projectID: projectID,
		model:     model,
		logger:    slogutil.OrDiscard(logger),
	}
}

// Get returns a cached embedding. A persistent hit populates memory.
func (t *Tiered) Get(ctx context.Context, contentHash string) (Entry, bool, error) {
	if e, ok, _ := t.memory.Get(ctx, contentHash); ok {
		return e, true, nil
	}
	if t.store == nil {
		return Entry{}, false, nil
	}

	stored, ok, err := t.store.Get(ctx, t.projectID, contentHash, t.model)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	e := Entry{Vector: stored.Vector, TokenCount: stored.TokenCount}
	_ = t.memory.Put(ctx, "", contentHash, e)
	return e, true, nil
}

// Put writes both tiers. Memory always succeeds; a store failure is returned.
func (t *Tiered) Put(ctx context.Context, filePath, contentHash string, e Entry) error {
	_ = t.memory.Put(ctx, filePath, contentHash, e)
	if t.store == nil {
		return nil
	}
	return t.store.Put(ctx, t.projectID, filePath, contentHash, storage.StoredEmbedding{
		Vector:     e.Vector,
		TokenCount: e.TokenCount,
		Model:      t.model,
	})
}
