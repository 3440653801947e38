package mods

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LulfLoot/ThunderDockerman/internal/semver"
	"github.com/LulfLoot/ThunderDockerman/internal/store"
	"github.com/LulfLoot/ThunderDockerman/internal/thunderstore"
)

// buildZip returns a zip archive holding files (name -> content).
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// archiveServer serves archives by path; unknown paths return 404.
type archiveServer struct {
	mu       sync.Mutex
	archives map[string][]byte
	server   *httptest.Server
}

func newArchiveServer(t *testing.T) *archiveServer {
	t.Helper()
	a := &archiveServer{archives: make(map[string][]byte)}
	a.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		data, ok := a.archives[r.URL.Path]
		a.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write(data)
	}))
	t.Cleanup(a.server.Close)
	return a
}

func (a *archiveServer) add(path string, data []byte) string {
	a.mu.Lock()
	a.archives[path] = data
	a.mu.Unlock()
	return a.server.URL + path
}

type memHistory struct {
	mu     sync.Mutex
	events []*store.InstallEvent
	err    error
}

func (m *memHistory) InsertInstallEvent(event *store.InstallEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func newTestStore(t *testing.T, history History) *Store {
	t.Helper()
	st, err := NewStore(Options{Dir: filepath.Join(t.TempDir(), "plugins"), History: history})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return st
}

func release(fullName, version, url string) thunderstore.Release {
	return thunderstore.Release{
		FullName:    fullName,
		Community:   "valheim",
		Version:     semver.MustParse(version),
		DownloadURL: url,
	}
}

func TestInstall(t *testing.T) {
	srv := newArchiveServer(t)
	url := srv.add("/jotunn.zip", buildZip(t, map[string]string{
		"manifest.json":      `{"name":"Jotunn"}`,
		"plugins/Jotunn.dll": "binary",
		"README.md":          "# Jotunn",
	}))
	history := &memHistory{}
	st := newTestStore(t, history)

	rec, err := st.Install(context.Background(), release("ValheimModding-Jotunn", "2.20.0", url))
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	wantFiles := []string{"README.md", "manifest.json", "plugins/Jotunn.dll"}
	if strings.Join(rec.Files, ",") != strings.Join(wantFiles, ",") {
		t.Errorf("Files = %v, want %v", rec.Files, wantFiles)
	}

	dll := filepath.Join(st.Dir(), "ValheimModding-Jotunn", "plugins", "Jotunn.dll")
	if _, err := os.Stat(dll); err != nil {
		t.Errorf("extracted file missing: %v", err)
	}

	installed, err := st.ListInstalled()
	if err != nil {
		t.Fatalf("ListInstalled() error = %v", err)
	}
	if len(installed) != 1 || installed[0].Version != semver.MustParse("2.20.0") {
		t.Errorf("ListInstalled() = %+v", installed)
	}

	if len(history.events) != 1 || !history.events[0].Success || history.events[0].Action != store.ActionInstall {
		t.Errorf("history = %+v", history.events)
	}

	// No staging or download leftovers.
	entries, _ := os.ReadDir(st.Dir())
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("leftover temp entry %s", e.Name())
		}
	}
}

func TestInstall_ReplacesPreviousVersion(t *testing.T) {
	srv := newArchiveServer(t)
	v1 := srv.add("/v1.zip", buildZip(t, map[string]string{"old.dll": "1"}))
	v2 := srv.add("/v2.zip", buildZip(t, map[string]string{"new.dll": "2"}))
	st := newTestStore(t, nil)
	ctx := context.Background()

	if _, err := st.Install(ctx, release("a-Mod", "1.0.0", v1)); err != nil {
		t.Fatalf("Install(v1) error = %v", err)
	}
	if _, err := st.ListInstalled(); err != nil {
		t.Fatalf("ListInstalled() error = %v", err)
	}
	if _, err := st.Install(ctx, release("a-Mod", "2.0.0", v2)); err != nil {
		t.Fatalf("Install(v2) error = %v", err)
	}

	installed, _ := st.ListInstalled()
	if len(installed) != 1 {
		t.Fatalf("ListInstalled() = %d records, want exactly one per full name", len(installed))
	}
	if installed[0].Version != semver.MustParse("2.0.0") {
		t.Errorf("installed version = %s, want 2.0.0", installed[0].Version)
	}
	if _, err := os.Stat(filepath.Join(st.Dir(), "a-Mod", "old.dll")); !os.IsNotExist(err) {
		t.Error("files from the previous version should be gone")
	}
}

func TestInstall_DownloadFailureKeepsPreviousVersion(t *testing.T) {
	srv := newArchiveServer(t)
	v1 := srv.add("/v1.zip", buildZip(t, map[string]string{"mod.dll": "1"}))
	history := &memHistory{}
	st := newTestStore(t, history)
	ctx := context.Background()

	if _, err := st.Install(ctx, release("a-Mod", "1.0.0", v1)); err != nil {
		t.Fatalf("Install(v1) error = %v", err)
	}

	_, err := st.Install(ctx, release("a-Mod", "2.0.0", srv.server.URL+"/missing.zip"))
	var installErr *InstallError
	if !errors.As(err, &installErr) {
		t.Fatalf("Install() error = %v, want InstallError", err)
	}
	if installErr.Stage != StageDownload {
		t.Errorf("Stage = %s, want download", installErr.Stage)
	}

	rec, err := st.Get("a-Mod")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.Version != semver.MustParse("1.0.0") {
		t.Errorf("version after failed upgrade = %s, want 1.0.0", rec.Version)
	}

	last := history.events[len(history.events)-1]
	if last.Success || last.Message == "" {
		t.Errorf("failed install should be recorded with message: %+v", last)
	}
}

func TestInstall_RejectsZipSlip(t *testing.T) {
	srv := newArchiveServer(t)
	url := srv.add("/evil.zip", buildZip(t, map[string]string{"../../escape.txt": "gotcha"}))
	st := newTestStore(t, nil)

	_, err := st.Install(context.Background(), release("a-Evil", "1.0.0", url))
	var installErr *InstallError
	if !errors.As(err, &installErr) || installErr.Stage != StageExtract {
		t.Fatalf("Install() error = %v, want extract InstallError", err)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(st.Dir()), "escape.txt")); !os.IsNotExist(err) {
		t.Error("archive entry escaped the mod directory")
	}
	if _, err := os.Stat(filepath.Join(st.Dir(), "a-Evil")); !os.IsNotExist(err) {
		t.Error("failed install should not leave a mod directory")
	}
}

func TestInstall_InvalidName(t *testing.T) {
	st := newTestStore(t, nil)
	_, err := st.Install(context.Background(), release("../etc", "1.0.0", "http://example.invalid"))
	if !errors.Is(err, ErrInvalidName) {
		t.Errorf("Install() error = %v, want ErrInvalidName", err)
	}
}

func TestUninstall(t *testing.T) {
	srv := newArchiveServer(t)
	url := srv.add("/mod.zip", buildZip(t, map[string]string{"mod.dll": "x"}))
	history := &memHistory{}
	st := newTestStore(t, history)
	ctx := context.Background()

	if _, err := st.Install(ctx, release("a-Mod", "1.2.3", url)); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if err := st.Uninstall(ctx, "a-Mod"); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}

	installed, _ := st.ListInstalled()
	if len(installed) != 0 {
		t.Errorf("ListInstalled() after uninstall = %+v", installed)
	}

	last := history.events[len(history.events)-1]
	if last.Action != store.ActionUninstall || last.Version != "1.2.3" || !last.Success {
		t.Errorf("uninstall history = %+v", last)
	}

	if err := st.Uninstall(ctx, "a-Mod"); !errors.Is(err, ErrNotInstalled) {
		t.Errorf("second Uninstall() error = %v, want ErrNotInstalled", err)
	}
}

func TestListInstalled_SkipsUnmanagedAndHidden(t *testing.T) {
	st := newTestStore(t, nil)
	os.MkdirAll(filepath.Join(st.Dir(), "HandCopiedMod"), 0755)
	os.MkdirAll(filepath.Join(st.Dir(), ".staging-x"), 0755)
	os.WriteFile(filepath.Join(st.Dir(), "loose.dll"), []byte("x"), 0644)

	rec := &Record{FullName: "a-Managed", Version: semver.MustParse("1.0.0"), InstalledAt: time.Now()}
	dir := filepath.Join(st.Dir(), "a-Managed")
	os.MkdirAll(dir, 0755)
	if err := writeRecord(dir, rec); err != nil {
		t.Fatalf("writeRecord() error = %v", err)
	}

	installed, err := st.ListInstalled()
	if err != nil {
		t.Fatalf("ListInstalled() error = %v", err)
	}
	if len(installed) != 1 || installed[0].FullName != "a-Managed" {
		t.Errorf("ListInstalled() = %+v", installed)
	}
}

func TestListInstalled_CachedUntilInvalidated(t *testing.T) {
	st := newTestStore(t, nil)
	if installed, _ := st.ListInstalled(); len(installed) != 0 {
		t.Fatalf("expected empty store")
	}

	dir := filepath.Join(st.Dir(), "a-External")
	os.MkdirAll(dir, 0755)
	writeRecord(dir, &Record{FullName: "a-External", Version: semver.MustParse("1.0.0")})

	if installed, _ := st.ListInstalled(); len(installed) != 0 {
		t.Error("ListInstalled() should serve the cached listing until invalidated")
	}
	st.Invalidate()
	if installed, _ := st.ListInstalled(); len(installed) != 1 {
		t.Error("ListInstalled() should rescan after Invalidate()")
	}
}

func TestInstall_HistoryFailureDoesNotFailInstall(t *testing.T) {
	srv := newArchiveServer(t)
	url := srv.add("/mod.zip", buildZip(t, map[string]string{"mod.dll": "x"}))
	st := newTestStore(t, &memHistory{err: errors.New("database is locked")})

	if _, err := st.Install(context.Background(), release("a-Mod", "1.0.0", url)); err != nil {
		t.Errorf("Install() error = %v, history failures must not fail installs", err)
	}
}

func TestInstall_ConcurrentSameName(t *testing.T) {
	srv := newArchiveServer(t)
	url := srv.add("/mod.zip", buildZip(t, map[string]string{"mod.dll": "x"}))
	st := newTestStore(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := st.Install(context.Background(), release("a-Mod", "1.0.0", url)); err != nil {
				t.Errorf("Install() error = %v", err)
			}
		}()
	}
	wg.Wait()

	installed, _ := st.ListInstalled()
	if len(installed) != 1 {
		t.Errorf("ListInstalled() = %d records, want 1", len(installed))
	}
	if st.locks.size() != 0 {
		t.Errorf("keyed mutex leaked %d entries", st.locks.size())
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"denikson-BepInExPack_Valheim", "a-B.C"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v", name, err)
		}
	}
	invalid := []string{"", ".", "..", ".hidden", "a/b", `a\b`, "a..b"}
	for _, name := range invalid {
		if err := ValidateName(name); !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}
