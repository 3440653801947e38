package store

import "time"

// IndexCacheEntry is a cached package listing for one community.
// Payload holds the JSON-encoded listing exactly as the thunderstore client
// produced it; the store does not interpret it.
type IndexCacheEntry struct {
	Community    string
	FetchedAt    time.Time
	PackageCount int
	Payload      []byte
}

// BackupRecord catalogs a backup archive written by the backup manager.
type BackupRecord struct {
	Filename  string
	CreatedAt time.Time
	SizeBytes int64
	SourceDir string
}

// Install history actions.
const (
	ActionInstall   = "install"
	ActionUninstall = "uninstall"
)

// InstallEvent records one install or uninstall attempt.
type InstallEvent struct {
	ID        int64
	FullName  string
	Version   string
	Action    string // "install" or "uninstall"
	Success   bool
	Message   string
	Timestamp time.Time
}
