package storage

import (
	"database/sql"
	"fmt"
)

// migrations[i] upgrades a database from schema version i to i+1. The
// version lives in PRAGMA user_version, which is 0 for a new file.
var migrations = []string{
	// kb_blobs holds one serialized documentation source per row.
	`CREATE TABLE kb_blobs (
		source TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		codec TEXT NOT NULL,
		blob BLOB NOT NULL,
		checksum TEXT NOT NULL,
		entries INTEGER NOT NULL,
		generation TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}

var currentSchemaVersion = len(migrations)

func (db *DB) getSchemaVersion() (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func (db *DB) migrate() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}
	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "path", db.path, "version", version)
		return nil
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	db.logger.Info("Migrating database",
		"path", db.path,
		"from_version", version,
		"to_version", currentSchemaVersion,
	)
	return db.WithTx(func(tx *sql.Tx) error {
		for v := version; v < currentSchemaVersion; v++ {
			if _, err := tx.Exec(migrations[v]); err != nil {
				return fmt.Errorf("migration to schema version %d failed: %w", v+1, err)
			}
		}
		// PRAGMA takes no bound parameters.
		_, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion))
		return err
	})
}
