package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StoredEmbedding is a row of the persistent embedding tier.
type StoredEmbedding struct {
	Vector     []float32
	TokenCount int
	Model      string
}

// EmbeddingStore is the persistent embedding cache. Rows are never expired;
// DeleteProject is the only removal path.
type EmbeddingStore struct {
	db *DB
}

// NewEmbeddingStore creates a store over db.
func NewEmbeddingStore(db *DB) *EmbeddingStore {
	return &EmbeddingStore{db: db}
}

// Get returns the embedding for contentHash within project computed by model.
// Any path with that hash matches, so renamed files hit the cache.
func (s *EmbeddingStore) Get(ctx context.Context, projectID, contentHash, model string) (StoredEmbedding, bool, error) {
	var blob []byte
	var tokens int
	err := s.db.QueryRow(ctx, `
		SELECT vector, token_count
		FROM embedding_cache
		WHERE project_id = ? AND content_hash = ? AND model = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, projectID, contentHash, model).Scan(&blob, &tokens)
	if err == sql.ErrNoRows {
		return StoredEmbedding{}, false, nil
	}
	if err != nil {
		return StoredEmbedding{}, false, fmt.Errorf("embedding cache lookup failed: %w", err)
	}

	vec, err := DecodeVector(blob)
	if err != nil {
		return StoredEmbedding{}, false, err
	}
	return StoredEmbedding{Vector: vec, TokenCount: tokens, Model: model}, true, nil
}

// Put stores an embedding. Concurrent writers for the same key resolve as
// last write wins.
func (s *EmbeddingStore) Put(ctx context.Context, projectID, filePath, contentHash string, e StoredEmbedding) error {
	_, err := s.db.Exec(ctx, `
		INSERT OR REPLACE INTO embedding_cache
			(project_id, file_path, content_hash, vector, dimensions, token_count, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, projectID, filePath, contentHash, EncodeVector(e.Vector), len(e.Vector), e.TokenCount, e.Model,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// DeleteProject removes every cached embedding of a project.
func (s *EmbeddingStore) DeleteProject(ctx context.Context, projectID string) (int64, error) {
	res, err := s.db.Exec(ctx, "DELETE FROM embedding_cache WHERE project_id = ?", projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete project embeddings: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of cached embeddings for a project.
func (s *EmbeddingStore) Count(ctx context.Context, projectID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM embedding_cache WHERE project_id = ?", projectID).Scan(&n)
	return n, err
}
