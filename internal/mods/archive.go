package mods

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// extractZip unpacks src into dest and returns the written file paths,
// slash-separated and relative to dest, sorted. Entries that would land
// outside dest are rejected.
func extractZip(src, dest string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	var files []string
	for _, f := range r.File {
		rel, err := safeEntryPath(f.Name)
		if err != nil {
			return nil, err
		}
		if rel == "" {
			continue
		}

		target := filepath.Join(dest, filepath.FromSlash(rel))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", rel, err)
			}
			continue
		}

		if err := writeEntry(f, target); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", rel, err)
		}
		files = append(files, rel)
	}

	sort.Strings(files)
	return files, nil
}

// safeEntryPath normalizes an archive entry name. Thunderstore archives are
// built on Windows as often as not, so backslashes are treated as separators.
func safeEntryPath(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("archive entry %q has an absolute path", name)
	}
	clean := path.Clean(name)
	if clean == "." {
		return "", nil
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("archive entry %q escapes the destination", name)
	}
	if clean == RecordFile {
		return "", fmt.Errorf("archive entry %q collides with the install record", name)
	}
	return clean, nil
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := os.FileMode(0644)
	if f.Mode()&0111 != 0 {
		mode = 0755
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
