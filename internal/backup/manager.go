package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/LulfLoot/ThunderDockerman/internal/store"
)

// Filename returns the archive name for a backup taken at t, e.g.
// "backup-2025-03-01T08-00-00-000Z.zip".
func Filename(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return "backup-" + stamp + ".zip"
}

// ValidateFilename rejects empty names and names containing path elements.
func ValidateFilename(filename string) error {
	switch {
	case filename == "":
		return fmt.Errorf("%w: filename required", ErrInvalidFilename)
	case strings.Contains(filename, ".."),
		strings.ContainsAny(filename, `/\`):
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return nil
}

// Create archives the data directory and returns the new backup.
func (m *Manager) Create() (*Backup, error) {
	info, err := os.Stat(m.dataDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSourceMissing, m.dataDir)
	}

	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	created := m.now()
	filename := Filename(created)
	finalPath := filepath.Join(m.backupDir, filename)

	tmp, err := os.CreateTemp(m.backupDir, ".partial-*.zip")
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	tmpPath := tmp.Name()

	if err := writeArchive(tmp, m.dataDir); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to write archive: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	stat, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}
	backup := &Backup{Filename: filename, Size: stat.Size(), Created: created, SourceDir: m.dataDir}

	if m.catalog != nil {
		rec := &store.BackupRecord{
			Filename:  filename,
			CreatedAt: created,
			SizeBytes: stat.Size(),
			SourceDir: m.dataDir,
		}
		if err := m.catalog.InsertBackup(rec); err != nil {
			// Try to clean up the archive if the catalog insert fails
			os.Remove(finalPath)
			return nil, fmt.Errorf("failed to record backup: %w", err)
		}
	}

	m.logger.Info("backup created", "file", filename, "bytes", backup.Size)
	return backup, nil
}

// List returns the archives in the backup directory, newest first. A
// missing backup directory yields an empty list. Archives known to the
// catalog report their recorded creation time and source directory;
// catalog entries whose archive is gone are dropped.
func (m *Manager) List() ([]*Backup, error) {
	entries, err := os.ReadDir(m.backupDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []*Backup{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := make([]*Backup, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, &Backup{
			Filename: e.Name(),
			Size:     info.Size(),
			Created:  info.ModTime(),
		})
	}

	if m.catalog != nil {
		m.reconcile(backups)
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Created.Equal(backups[j].Created) {
			return backups[i].Filename > backups[j].Filename
		}
		return backups[i].Created.After(backups[j].Created)
	})
	return backups, nil
}

func (m *Manager) reconcile(backups []*Backup) {
	records, err := m.catalog.ListBackups()
	if err != nil {
		m.logger.Warn("failed to read backup catalog", "err", err)
		return
	}

	onDisk := make(map[string]*Backup, len(backups))
	for _, b := range backups {
		onDisk[b.Filename] = b
	}

	for _, rec := range records {
		b, ok := onDisk[rec.Filename]
		if !ok {
			if err := m.catalog.DeleteBackup(rec.Filename); err != nil {
				m.logger.Warn("failed to drop stale catalog entry", "file", rec.Filename, "err", err)
				continue
			}
			m.logger.Info("dropped catalog entry for missing archive", "file", rec.Filename)
			continue
		}
		b.Created = rec.CreatedAt
		b.SourceDir = rec.SourceDir
	}
}

// Restore extracts the named archive over the data directory, creating the
// directory if needed. Existing files are overwritten; files absent from the
// archive are left alone.
func (m *Manager) Restore(filename string) error {
	archive, err := m.existing(filename)
	if err != nil {
		return err
	}

	if m.catalog != nil {
		if rec, err := m.catalog.GetBackup(filename); err == nil && rec.SourceDir != "" && rec.SourceDir != m.dataDir {
			m.logger.Warn("backup was taken from another directory", "file", filename, "source", rec.SourceDir, "dest", m.dataDir)
		}
	}

	if err := os.MkdirAll(m.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	count, err := extractArchive(archive, m.dataDir)
	if err != nil {
		return fmt.Errorf("failed to restore %s: %w", filename, err)
	}

	m.logger.Info("backup restored", "file", filename, "files", count, "dest", m.dataDir)
	return nil
}

// Delete removes the named archive.
func (m *Manager) Delete(filename string) error {
	archive, err := m.existing(filename)
	if err != nil {
		return err
	}

	if err := os.Remove(archive); err != nil {
		return fmt.Errorf("failed to delete %s: %w", filename, err)
	}
	if m.catalog != nil {
		if err := m.catalog.DeleteBackup(filename); err != nil {
			m.logger.Warn("failed to remove backup from catalog", "file", filename, "err", err)
		}
	}

	m.logger.Info("backup deleted", "file", filename)
	return nil
}

// Prune deletes archives older than maxAge and returns how many were removed.
func (m *Manager) Prune(maxAge time.Duration) (int, error) {
	backups, err := m.List()
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-maxAge)
	removed := 0
	for _, b := range backups {
		if !b.Created.Before(cutoff) {
			continue
		}
		if err := m.Delete(b.Filename); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (m *Manager) existing(filename string) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}

	p := filepath.Join(m.backupDir, filename)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrBackupNotFound, filename)
	}
	return p, nil
}
