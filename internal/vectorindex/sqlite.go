package vectorindex

import (
	"context"
	"log/slog"

	"ctxasm/internal/model"
	"ctxasm/internal/storage"
)

// SQLite is a brute-force index over the file_records table.
type SQLite struct {
	db      *storage.DB
	records *storage.RecordStore
	ownsDB  bool
}

// NewSQLite creates an index over an open database. The caller keeps
// ownership of db.
func NewSQLite(db *storage.DB) *SQLite {
	return &SQLite{db: db, records: storage.NewRecordStore(db)}
}

// OpenSQLite opens the project database under root. Close closes it.
func OpenSQLite(root string, logger *slog.Logger) (*SQLite, error) {
	db, err := storage.Open(root, logger)
	if err != nil {
		return nil, unavailable("open", err)
	}
	s := NewSQLite(db)
	s.ownsDB = true
	return s, nil
}

// Upsert writes rec to the version.
func (s *SQLite) Upsert(ctx context.Context, projectID, versionID string, rec *model.FileRecord) error {
	return unavailable("upsert", s.records.Upsert(ctx, projectID, versionID, rec))
}

// Search streams the version's embedded rows and ranks them in Go.
func (s *SQLite) Search(ctx context.Context, q Query) ([]model.Candidate, error) {
	if err := validateQuery(q); err != nil {
		return nil, err
	}

	r := newRanker(q)
	err := s.records.Scan(ctx, q.ProjectID, q.VersionID, q.Categories, func(rec *model.FileRecord) bool {
		r.add(rec)
		return ctx.Err() == nil
	})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, unavailable("search", err)
	}
	return r.results(), nil
}

// Lookup returns stored records for paths.
func (s *SQLite) Lookup(ctx context.Context, projectID, versionID string, paths []string) (map[string]*model.FileRecord, error) {
	recs, err := s.records.Lookup(ctx, projectID, versionID, paths)
	if err != nil {
		return nil, unavailable("lookup", err)
	}
	return recs, nil
}

// Close closes the database when the index owns it.
func (s *SQLite) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
