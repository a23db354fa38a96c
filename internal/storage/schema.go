package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Version 2 added the model column to embedding_cache.
const currentSchemaVersion = 2

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}
		if err := createEmbeddingCacheTable(tx); err != nil {
			return err
		}
		if err := addEmbeddingModelColumn(tx); err != nil {
			return err
		}
		if err := createFileRecordsTable(tx); err != nil {
			return err
		}
		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported %d", version, currentSchemaVersion)
	}

	db.logger.Info("Running database migrations", "from_version", version, "to_version", currentSchemaVersion)

	return db.WithTx(context.Background(), func(tx *sql.Tx) error {
		// v1: base tables
		if version < 1 {
			if err := createSchemaVersionTable(tx); err != nil {
				return err
			}
			if err := createEmbeddingCacheTable(tx); err != nil {
				return err
			}
			if err := createFileRecordsTable(tx); err != nil {
				return err
			}
		}
		// v2: embedding_cache.model
		if version < 2 {
			if err := addEmbeddingModelColumn(tx); err != nil {
				return err
			}
		}
		return setSchemaVersion(tx, currentSchemaVersion)
	})
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	ctx := context.Background()

	// Check if schema_version table exists
	var tableName string
	err := db.QueryRow(ctx, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// setSchemaVersion replaces the single schema_version row.
func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createEmbeddingCacheTable creates the persistent embedding tier keyed by
// (project, file_path, content_hash).
func createEmbeddingCacheTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS embedding_cache (
			project_id TEXT NOT NULL,
			file_path TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			vector BLOB NOT NULL,
			dimensions INTEGER NOT NULL,
			token_count INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (project_id, file_path, content_hash)
		)
	`); err != nil {
		return fmt.Errorf("failed to create embedding_cache table: %w", err)
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_embedding_cache_hash ON embedding_cache(project_id, content_hash)`); err != nil {
		return fmt.Errorf("failed to create embedding_cache index: %w", err)
	}
	return nil
}

func addEmbeddingModelColumn(tx *sql.Tx) error {
	var count int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('embedding_cache') WHERE name = 'model'`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil // already migrated
	}
	if _, err := tx.Exec(`ALTER TABLE embedding_cache ADD COLUMN model TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("failed to add embedding_cache.model: %w", err)
	}
	return nil
}

// createFileRecordsTable creates one row per (project, version, path).
func createFileRecordsTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS file_records (
			project_id TEXT NOT NULL,
			version_id TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			vector BLOB,
			token_count INTEGER NOT NULL DEFAULT 0,
			language TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			imports_json TEXT NOT NULL DEFAULT '[]',
			exports_json TEXT NOT NULL DEFAULT '[]',
			size_bytes INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL,
			UNIQUE (project_id, version_id, file_path)
		)
	`); err != nil {
		return fmt.Errorf("failed to create file_records table: %w", err)
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_file_records_category ON file_records(project_id, version_id, category)`); err != nil {
		return fmt.Errorf("failed to create file_records index: %w", err)
	}
	return nil
}
