package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ctxasm/internal/model"
)

// RecordStore persists FileRecords, one row per (project, version, path).
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a store over db.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// Upsert inserts or replaces the record for (project, version, rec.Path).
func (s *RecordStore) Upsert(ctx context.Context, projectID, versionID string, rec *model.FileRecord) error {
	imports, err := json.Marshal(nonNil(rec.Imports))
	if err != nil {
		return err
	}
	exports, err := json.Marshal(nonNil(rec.Exports))
	if err != nil {
		return err
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO file_records
			(project_id, version_id, file_path, content_hash, vector, token_count, language,
			 category, imports_json, exports_json, size_bytes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_id, version_id, file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			vector = excluded.vector,
			token_count = excluded.token_count,
			language = excluded.language,
			category = excluded.category,
			imports_json = excluded.imports_json,
			exports_json = excluded.exports_json,
			size_bytes = excluded.size_bytes,
			updated_at = excluded.updated_at
	`, projectID, versionID, rec.Path, rec.ContentHash, vectorArg(rec.Embedding), rec.TokenCount,
		rec.Language, string(rec.Category), string(imports), string(exports), rec.SizeBytes,
		updated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.Path, err)
	}
	return nil
}

// Scan calls fn for every record of (project, version) that has a vector,
// optionally restricted to categories. Iteration stops when fn returns false.
func (s *RecordStore) Scan(ctx context.Context, projectID, versionID string, categories []model.Category, fn func(*model.FileRecord) bool) error {
	query := `
		SELECT file_path, content_hash, vector, token_count, language, category,
		       imports_json, exports_json, size_bytes, updated_at
		FROM file_records
		WHERE project_id = ? AND version_id = ? AND vector IS NOT NULL`
	args := []interface{}{projectID, versionID}
	if len(categories) > 0 {
		query += " AND category IN (?" + strings.Repeat(",?", len(categories)-1) + ")"
		for _, c := range categories {
			args = append(args, string(c))
		}
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("record scan failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if !fn(rec) {
			break
		}
	}
	return rows.Err()
}

// Lookup returns the records for the given paths. Missing paths are absent.
func (s *RecordStore) Lookup(ctx context.Context, projectID, versionID string, filePaths []string) (map[string]*model.FileRecord, error) {
	out := make(map[string]*model.FileRecord, len(filePaths))
	if len(filePaths) == 0 {
		return out, nil
	}

	args := []interface{}{projectID, versionID}
	for _, p := range filePaths {
		args = append(args, p)
	}
	rows, err := s.db.Query(ctx, `
		SELECT file_path, content_hash, vector, token_count, language, category,
		       imports_json, exports_json, size_bytes, updated_at
		FROM file_records
		WHERE project_id = ? AND version_id = ? AND file_path IN (?`+strings.Repeat(",?", len(filePaths)-1)+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("record lookup failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out[rec.Path] = rec
	}
	return out, rows.Err()
}

// DeleteProject removes every record of a project across versions.
func (s *RecordStore) DeleteProject(ctx context.Context, projectID string) (int64, error) {
	res, err := s.db.Exec(ctx, "DELETE FROM file_records WHERE project_id = ?", projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete project records: %w", err)
	}
	return res.RowsAffected()
}

func scanRecord(rows *sql.Rows) (*model.FileRecord, error) {
	var (
		rec              model.FileRecord
		blob             []byte
		category         string
		imports, exports string
		updated          string
	)
	if err := rows.Scan(&rec.Path, &rec.ContentHash, &blob, &rec.TokenCount, &rec.Language, &category,
		&imports, &exports, &rec.SizeBytes, &updated); err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	vec, err := DecodeVector(blob)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.Path, err)
	}
	rec.Embedding = vec
	rec.Category = model.Category(category)
	if err := json.Unmarshal([]byte(imports), &rec.Imports); err != nil {
		return nil, fmt.Errorf("record %s: invalid imports: %w", rec.Path, err)
	}
	if err := json.Unmarshal([]byte(exports), &rec.Exports); err != nil {
		return nil, fmt.Errorf("record %s: invalid exports: %w", rec.Path, err)
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &rec, nil
}

// vectorArg binds a nil embedding as SQL NULL.
func vectorArg(v []float32) interface{} {
	if v == nil {
		return nil
	}
	return EncodeVector(v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
