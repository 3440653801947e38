package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Index cache operations

// PutIndexCache inserts or replaces the cached listing for a community.
func (s *Store) PutIndexCache(entry *IndexCacheEntry) error {
	query := `
		INSERT OR REPLACE INTO index_cache (community, fetched_at, package_count, payload)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		entry.Community,
		entry.FetchedAt.UTC().Format(time.RFC3339),
		entry.PackageCount,
		entry.Payload,
	)
	if err != nil {
		return wrapQueryErr(err, "failed to cache index for %s", entry.Community)
	}

	return nil
}

// GetIndexCache returns the cached listing for a community, or nil when
// nothing has been cached yet.
func (s *Store) GetIndexCache(community string) (*IndexCacheEntry, error) {
	query := `
		SELECT community, fetched_at, package_count, payload
		FROM index_cache
		WHERE community = ?
	`

	var entry IndexCacheEntry
	var fetchedAt string

	err := s.db.QueryRow(query, community).Scan(
		&entry.Community,
		&fetchedAt,
		&entry.PackageCount,
		&entry.Payload,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapQueryErr(err, "failed to get index cache for %s", community)
	}

	entry.FetchedAt, err = time.Parse(time.RFC3339, fetchedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fetched_at for %s: %w", community, err)
	}

	return &entry, nil
}

// DeleteIndexCache drops the cached listing for a community.
func (s *Store) DeleteIndexCache(community string) error {
	if _, err := s.db.Exec("DELETE FROM index_cache WHERE community = ?", community); err != nil {
		return wrapQueryErr(err, "failed to delete index cache for %s", community)
	}
	return nil
}

// Backup catalog operations

// InsertBackup records a backup archive.
func (s *Store) InsertBackup(rec *BackupRecord) error {
	query := `
		INSERT OR REPLACE INTO backups (filename, created_at, size_bytes, source_dir)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		rec.Filename,
		rec.CreatedAt.UTC().Format(time.RFC3339),
		rec.SizeBytes,
		rec.SourceDir,
	)
	if err != nil {
		return wrapQueryErr(err, "failed to insert backup %s", rec.Filename)
	}

	return nil
}

// GetBackup retrieves a catalogued backup by filename.
func (s *Store) GetBackup(filename string) (*BackupRecord, error) {
	query := `
		SELECT filename, created_at, size_bytes, source_dir
		FROM backups
		WHERE filename = ?
	`

	var rec BackupRecord
	var createdAt string

	err := s.db.QueryRow(query, filename).Scan(&rec.Filename, &createdAt, &rec.SizeBytes, &rec.SourceDir)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("backup %s not found", filename)
	}
	if err != nil {
		return nil, wrapQueryErr(err, "failed to get backup %s", filename)
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for backup %s: %w", filename, err)
	}

	return &rec, nil
}

// ListBackups returns all catalogued backups, newest first.
func (s *Store) ListBackups() ([]*BackupRecord, error) {
	query := `
		SELECT filename, created_at, size_bytes, source_dir
		FROM backups
		ORDER BY created_at DESC, filename DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, wrapQueryErr(err, "failed to list backups")
	}
	defer rows.Close()

	var records []*BackupRecord
	for rows.Next() {
		var rec BackupRecord
		var createdAt string

		if err := rows.Scan(&rec.Filename, &createdAt, &rec.SizeBytes, &rec.SourceDir); err != nil {
			return nil, fmt.Errorf("failed to scan backup row: %w", err)
		}

		rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for backup %s: %w", rec.Filename, err)
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backups: %w", err)
	}

	return records, nil
}

// DeleteBackup removes a backup from the catalog. Deleting an uncatalogued
// filename is not an error: archives copied in by hand are never recorded.
func (s *Store) DeleteBackup(filename string) error {
	if _, err := s.db.Exec("DELETE FROM backups WHERE filename = ?", filename); err != nil {
		return wrapQueryErr(err, "failed to delete backup %s", filename)
	}
	return nil
}

// Install history operations

// InsertInstallEvent appends an entry to the install history.
func (s *Store) InsertInstallEvent(event *InstallEvent) error {
	query := `
		INSERT INTO install_history (full_name, version, action, success, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		event.FullName,
		event.Version,
		event.Action,
		event.Success,
		event.Message,
		event.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return wrapQueryErr(err, "failed to insert install event for %s", event.FullName)
	}

	return nil
}

// ListInstallEvents returns the most recent history entries, newest first.
// If fullName is non-empty only that package's entries are returned.
func (s *Store) ListInstallEvents(fullName string, limit int) ([]*InstallEvent, error) {
	query := `
		SELECT id, full_name, version, action, success, message, timestamp
		FROM install_history
		WHERE (? = '' OR full_name = ?)
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(query, fullName, fullName, limit)
	if err != nil {
		return nil, wrapQueryErr(err, "failed to list install history")
	}
	defer rows.Close()

	var events []*InstallEvent
	for rows.Next() {
		var event InstallEvent
		var version, message sql.NullString
		var timestamp string

		err := rows.Scan(
			&event.ID,
			&event.FullName,
			&version,
			&event.Action,
			&event.Success,
			&message,
			&timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan install event row: %w", err)
		}

		event.Version = version.String
		event.Message = message.String
		event.Timestamp, err = time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp for event %d: %w", event.ID, err)
		}

		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating install history: %w", err)
	}

	return events, nil
}
