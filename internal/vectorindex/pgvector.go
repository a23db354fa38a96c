package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"ctxasm/internal/model"
	"ctxasm/internal/slogutil"
)

const pgTable = "ctxasm_file_records"

// pgSchema is applied on open. The vector column has no fixed dimension so
// a provider switch does not need a migration.
var pgSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS ` + pgTable + ` (
		project_id   TEXT NOT NULL,
		version_id   TEXT NOT NULL DEFAULT '',
		file_path    TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		embedding    vector,
		token_count  INTEGER NOT NULL DEFAULT 0,
		language     TEXT NOT NULL DEFAULT '',
		category     TEXT NOT NULL DEFAULT '',
		imports      TEXT[] NOT NULL DEFAULT '{}',
		exports      TEXT[] NOT NULL DEFAULT '{}',
		size_bytes   BIGINT NOT NULL DEFAULT 0,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (project_id, version_id, file_path)
	)`,
	`CREATE INDEX IF NOT EXISTS ` + pgTable + `_version_idx ON ` + pgTable + ` (project_id, version_id)`,
}

// PGVector stores records in Postgres and lets pgvector rank them.
type PGVector struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPGVector connects to dsn, registers the vector types on every
// connection and ensures the schema exists.
func OpenPGVector(ctx context.Context, dsn string, logger *slog.Logger) (*PGVector, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, unavailable("open", fmt.Errorf("parse postgres dsn: %w", err))
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, unavailable("open", fmt.Errorf("create pgx pool: %w", err))
	}

	for _, stmt := range pgSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, unavailable("open", fmt.Errorf("apply schema: %w", err))
		}
	}

	return &PGVector{pool: pool, logger: slogutil.OrDiscard(logger)}, nil
}

// Upsert inserts or replaces one record. A nil embedding is stored as NULL.
func (p *PGVector) Upsert(ctx context.Context, projectID, versionID string, rec *model.FileRecord) error {
	var emb interface{}
	if rec.Embedding != nil {
		emb = pgvector.NewVector(rec.Embedding)
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO `+pgTable+`
			(project_id, version_id, file_path, content_hash, embedding, token_count,
			 language, category, imports, exports, size_bytes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (project_id, version_id, file_path) DO UPDATE SET
			content_hash = EXCLUDED.content_hash,
			embedding    = EXCLUDED.embedding,
			token_count  = EXCLUDED.token_count,
			language     = EXCLUDED.language,
			category     = EXCLUDED.category,
			imports      = EXCLUDED.imports,
			exports      = EXCLUDED.exports,
			size_bytes   = EXCLUDED.size_bytes,
			updated_at   = EXCLUDED.updated_at`,
		projectID, versionID, rec.Path, rec.ContentHash, emb, rec.TokenCount,
		rec.Language, string(rec.Category), nonNil(rec.Imports), nonNil(rec.Exports),
		rec.SizeBytes, updated)
	return unavailable("upsert", err)
}

// Search lets Postgres order by cosine distance, then reapplies the
// deterministic tie-break on the fetched rows.
func (p *PGVector) Search(ctx context.Context, q Query) ([]model.Candidate, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	sql, args := buildSearchSQL(q)
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var (
			path     string
			category string
			sim      float64
		)
		if err := rows.Scan(&path, &category, &sim); err != nil {
			return nil, unavailable("search", err)
		}
		out = append(out, model.Candidate{
			Path:       path,
			Similarity: sim,
			Sources:    []model.Source{model.SourceSemantic},
			Category:   model.Category(category),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("search", err)
	}
	return finalize(out, q.Limit), nil
}

// buildSearchSQL renders the similarity query. Similarity is filtered in
// SQL so LIMIT applies to qualifying rows only. One extra row is fetched
// beyond the limit so ties at the boundary are ordered by path, not by
// whatever order Postgres returned them in.
func buildSearchSQL(q Query) (string, []interface{}) {
	args := []interface{}{pgvector.NewVector(q.Vector), q.ProjectID, q.VersionID, q.Threshold}
	var b strings.Builder
	b.WriteString(`SELECT file_path, category, 1 - (embedding <=> $1) AS similarity FROM `)
	b.WriteString(pgTable)
	b.WriteString(` WHERE project_id = $2 AND version_id = $3 AND embedding IS NOT NULL`)
	b.WriteString(` AND 1 - (embedding <=> $1) > $4`)
	if len(q.Categories) > 0 {
		cats := make([]string, len(q.Categories))
		for i, c := range q.Categories {
			cats[i] = string(c)
		}
		args = append(args, cats)
		fmt.Fprintf(&b, ` AND category = ANY($%d)`, len(args))
	}
	b.WriteString(` ORDER BY embedding <=> $1, length(file_path), file_path`)
	if q.Limit > 0 {
		args = append(args, q.Limit+1)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	return b.String(), args
}

// Lookup returns stored records for paths.
func (p *PGVector) Lookup(ctx context.Context, projectID, versionID string, paths []string) (map[string]*model.FileRecord, error) {
	out := make(map[string]*model.FileRecord, len(paths))
	if len(paths) == 0 {
		return out, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT file_path, content_hash, embedding, token_count, language, category,
		       imports, exports, size_bytes, updated_at
		FROM `+pgTable+`
		WHERE project_id = $1 AND version_id = $2 AND file_path = ANY($3)`,
		projectID, versionID, paths)
	if err != nil {
		return nil, unavailable("lookup", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec      model.FileRecord
			emb      *pgvector.Vector
			category string
		)
		if err := rows.Scan(&rec.Path, &rec.ContentHash, &emb, &rec.TokenCount, &rec.Language,
			&category, &rec.Imports, &rec.Exports, &rec.SizeBytes, &rec.UpdatedAt); err != nil {
			return nil, unavailable("lookup", err)
		}
		if emb != nil {
			rec.Embedding = emb.Slice()
		}
		rec.Category = model.Category(category)
		out[rec.Path] = &rec
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("lookup", err)
	}
	return out, nil
}

// DeleteProject removes every record of a project.
func (p *PGVector) DeleteProject(ctx context.Context, projectID string) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM `+pgTable+` WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, unavailable("delete", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the pool.
func (p *PGVector) Close() error {
	p.pool.Close()
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
