// Package backup archives the game server's world data directory and
// restores it from those archives.
package backup

import (
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/LulfLoot/ThunderDockerman/internal/logging"
	"github.com/LulfLoot/ThunderDockerman/internal/store"
)

var (
	// ErrSourceMissing is returned when the data directory does not exist.
	ErrSourceMissing = errors.New("source directory not found")

	// ErrInvalidFilename is returned for empty names or names that could
	// escape the backup directory.
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrBackupNotFound is returned when the named archive does not exist.
	ErrBackupNotFound = errors.New("backup file not found")
)

// ExcludePattern matches files left out of every archive.
const ExcludePattern = "*.old"

// Backup describes one archive in the backup directory.
type Backup struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	Created   time.Time `json:"created"`
	SourceDir string    `json:"sourceDir,omitempty"`
}

// Catalog records archives in the local database. *store.Store implements it.
type Catalog interface {
	InsertBackup(rec *store.BackupRecord) error
	GetBackup(filename string) (*store.BackupRecord, error)
	ListBackups() ([]*store.BackupRecord, error)
	DeleteBackup(filename string) error
}

// Manager creates, lists, restores and deletes archives.
type Manager struct {
	catalog   Catalog
	dataDir   string
	backupDir string
	logger    *log.Logger
	now       func() time.Time
}

// New creates a Manager. catalog may be nil.
func New(catalog Catalog, dataDir, backupDir string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Manager{
		catalog:   catalog,
		dataDir:   dataDir,
		backupDir: backupDir,
		logger:    logger.WithPrefix("backup"),
		now:       time.Now,
	}
}

// DataDir returns the directory being backed up.
func (m *Manager) DataDir() string {
	return m.dataDir
}

// Dir returns the directory holding the archives.
func (m *Manager) Dir() string {
	return m.backupDir
}
