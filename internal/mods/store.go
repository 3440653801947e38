package mods

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/LulfLoot/ThunderDockerman/internal/store"
	"github.com/LulfLoot/ThunderDockerman/internal/thunderstore"
)

// History receives install and uninstall events. *store.Store implements it.
type History interface {
	InsertInstallEvent(event *store.InstallEvent) error
}

// Options configures a Store.
type Options struct {
	Dir             string
	HTTPClient      *http.Client
	DownloadTimeout time.Duration
	History         History
	Logger          *log.Logger
	Now             func() time.Time
}

// Store installs and removes mods under a single directory. At most one
// install or uninstall runs per full name at a time, across every process
// sharing the directory where flock is available.
type Store struct {
	dir     string
	http    *http.Client
	timeout time.Duration
	history History
	logger  *log.Logger
	now     func() time.Time
	locks   *keyedMutex

	mu         sync.Mutex
	cache      []*Record
	cacheValid bool
}

// NewStore creates the mod directory if needed and returns a Store for it.
func NewStore(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("mods directory cannot be empty")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create mods directory: %w", err)
	}

	s := &Store{
		dir:     opts.Dir,
		http:    opts.HTTPClient,
		timeout: opts.DownloadTimeout,
		history: opts.History,
		logger:  opts.Logger,
		now:     opts.Now,
		locks:   newKeyedMutex(),
	}
	if s.http == nil {
		s.http = &http.Client{}
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Minute
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Dir returns the managed directory.
func (s *Store) Dir() string {
	return s.dir
}

// ListInstalled returns every installed mod, sorted by full name.
func (s *Store) ListInstalled() ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cacheValid {
		records, err := s.scan()
		if err != nil {
			return nil, err
		}
		s.cache = records
		s.cacheValid = true
	}

	out := make([]*Record, len(s.cache))
	copy(out, s.cache)
	return out, nil
}

// Get returns the record for one installed mod.
func (s *Store) Get(fullName string) (*Record, error) {
	if err := ValidateName(fullName); err != nil {
		return nil, err
	}
	rec, err := readRecord(filepath.Join(s.dir, fullName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, fullName)
	}
	return rec, err
}

// Invalidate forces the next ListInstalled to rescan the directory.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cacheValid = false
	s.cache = nil
	s.mu.Unlock()
}

func (s *Store) scan() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read mods directory: %w", err)
	}

	var records []*Record
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		rec, err := readRecord(filepath.Join(s.dir, entry.Name()))
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("skipping unmanaged directory", "dir", entry.Name())
			continue
		}
		if err != nil {
			s.logger.Warn("skipping unreadable install record", "dir", entry.Name(), "err", err)
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].FullName < records[j].FullName
	})
	return records, nil
}

func readRecord(modDir string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(modDir, RecordFile))
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", RecordFile, err)
	}
	return &rec, nil
}

// Install downloads and unpacks release, replacing any installed version
// of the same package. The previous version stays in place until the new
// one is fully extracted.
func (s *Store) Install(ctx context.Context, release thunderstore.Release) (*Record, error) {
	if err := ValidateName(release.FullName); err != nil {
		return nil, &InstallError{FullName: release.FullName, Version: release.Version, Stage: StageActivate, Err: err}
	}

	unlock, err := s.lock(release.FullName)
	if err != nil {
		return nil, &InstallError{FullName: release.FullName, Version: release.Version, Stage: StageActivate, Err: err}
	}
	defer unlock()

	rec, err := s.install(ctx, release)
	s.recordHistory(store.ActionInstall, release.FullName, release.Version.String(), err)
	if err != nil {
		return nil, err
	}

	s.logger.Info("mod installed", "mod", release.FullName, "version", release.Version, "files", len(rec.Files))
	return rec, nil
}

func (s *Store) install(ctx context.Context, release thunderstore.Release) (*Record, error) {
	fail := func(stage string, err error) (*Record, error) {
		return nil, &InstallError{FullName: release.FullName, Version: release.Version, Stage: stage, Err: err}
	}

	archive, err := s.download(ctx, release.DownloadURL)
	if err != nil {
		return fail(StageDownload, err)
	}
	defer os.Remove(archive)

	staging, err := os.MkdirTemp(s.dir, ".staging-"+release.FullName+"-")
	if err != nil {
		return fail(StageExtract, err)
	}
	defer os.RemoveAll(staging)

	files, err := extractZip(archive, staging)
	if err != nil {
		return fail(StageExtract, err)
	}

	deps := make([]string, len(release.Dependencies))
	for i, d := range release.Dependencies {
		deps[i] = d.String()
	}
	rec := &Record{
		FullName:     release.FullName,
		Version:      release.Version,
		Community:    release.Community,
		InstalledAt:  s.now().UTC(),
		Files:        files,
		Dependencies: deps,
	}
	if err := writeRecord(staging, rec); err != nil {
		return fail(StageRecord, err)
	}

	if err := s.activate(staging, filepath.Join(s.dir, release.FullName)); err != nil {
		return fail(StageActivate, err)
	}
	s.Invalidate()
	return rec, nil
}

// activate swaps staging into target, keeping the previous target until
// the swap succeeds.
func (s *Store) activate(staging, target string) error {
	var backup string
	if _, err := os.Stat(target); err == nil {
		backup = filepath.Join(s.dir, fmt.Sprintf(".replaced-%s-%d", filepath.Base(target), s.now().UnixNano()))
		if err := os.Rename(target, backup); err != nil {
			return fmt.Errorf("failed to move previous version aside: %w", err)
		}
	}

	if err := os.Rename(staging, target); err != nil {
		if backup != "" {
			if restoreErr := os.Rename(backup, target); restoreErr != nil {
				s.logger.Error("failed to restore previous version", "dir", target, "err", restoreErr)
			}
		}
		return fmt.Errorf("failed to activate new version: %w", err)
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			s.logger.Warn("failed to remove previous version", "dir", backup, "err", err)
		}
	}
	return nil
}

func writeRecord(dir string, rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, RecordFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// download fetches url into a temp file inside the mod directory and
// returns its path.
func (s *Store) download(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("release has no download URL")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: %s", resp.Status)
	}

	f, err := os.CreateTemp(s.dir, ".download-*.zip")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Uninstall removes an installed mod's directory.
func (s *Store) Uninstall(ctx context.Context, fullName string) error {
	if err := ValidateName(fullName); err != nil {
		return err
	}

	unlock, err := s.lock(fullName)
	if err != nil {
		return err
	}
	defer unlock()

	version, err := s.uninstall(fullName)
	if err == nil {
		s.logger.Info("mod uninstalled", "mod", fullName)
	}
	s.recordHistory(store.ActionUninstall, fullName, version, err)
	return err
}

// uninstall removes the mod directory and returns the version that was
// installed, or "" for directories without a record.
func (s *Store) uninstall(fullName string) (string, error) {
	target := filepath.Join(s.dir, fullName)
	info, err := os.Stat(target)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
		return "", fmt.Errorf("%w: %s", ErrNotInstalled, fullName)
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", fullName, err)
	}

	version := ""
	if rec, err := readRecord(target); err == nil {
		version = rec.Version.String()
	}

	if err := os.RemoveAll(target); err != nil {
		return version, fmt.Errorf("failed to remove %s: %w", fullName, err)
	}
	s.Invalidate()
	return version, nil
}

// recordHistory appends to the install history. Failures are logged only.
func (s *Store) recordHistory(action, fullName, version string, opErr error) {
	if s.history == nil {
		return
	}
	event := &store.InstallEvent{
		FullName:  fullName,
		Version:   version,
		Action:    action,
		Success:   opErr == nil,
		Timestamp: s.now(),
	}
	if opErr != nil {
		event.Message = opErr.Error()
	}
	if err := s.history.InsertInstallEvent(event); err != nil {
		s.logger.Warn("failed to record install history", "mod", fullName, "err", err)
	}
}
