package mods

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSafeEntryPath(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "plugins/mod.dll", want: "plugins/mod.dll"},
		{name: `plugins\mod.dll`, want: "plugins/mod.dll"},
		{name: "./README.md", want: "README.md"},
		{name: "plugins/", want: "plugins"},
		{name: "./", want: ""},
		{name: "../x", wantErr: true},
		{name: "a/../../x", wantErr: true},
		{name: "/etc/passwd", wantErr: true},
		{name: RecordFile, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := safeEntryPath(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("safeEntryPath(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("safeEntryPath(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "mod.zip")
	data := buildZip(t, map[string]string{
		"BepInEx/plugins/mod.dll": "dll",
		"icon.png":                "png",
	})
	if err := os.WriteFile(src, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	dest := filepath.Join(dir, "out")
	files, err := extractZip(src, dest)
	if err != nil {
		t.Fatalf("extractZip() error = %v", err)
	}
	if len(files) != 2 || files[0] != "BepInEx/plugins/mod.dll" || files[1] != "icon.png" {
		t.Errorf("files = %v", files)
	}
	content, err := os.ReadFile(filepath.Join(dest, "BepInEx", "plugins", "mod.dll"))
	if err != nil || string(content) != "dll" {
		t.Errorf("extracted content = %q, %v", content, err)
	}
}

func TestExtractZip_NotAZip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.zip")
	os.WriteFile(src, []byte("<html>rate limited</html>"), 0644)
	if _, err := extractZip(src, filepath.Join(dir, "out")); err == nil {
		t.Error("extractZip() should fail on non-zip input")
	}
}
