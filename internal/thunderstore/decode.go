package thunderstore

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/LulfLoot/ThunderDockerman/internal/semver"
)

// apiPackage mirrors one entry of GET /c/{community}/api/v1/package/.
type apiPackage struct {
	Name         string       `json:"name"`
	FullName     string       `json:"full_name"`
	Owner        string       `json:"owner"`
	PackageURL   string       `json:"package_url"`
	DateCreated  string       `json:"date_created"`
	DateUpdated  string       `json:"date_updated"`
	RatingScore  int          `json:"rating_score"`
	IsDeprecated bool         `json:"is_deprecated"`
	Categories   []string     `json:"categories"`
	Versions     []apiVersion `json:"versions"`
}

type apiVersion struct {
	VersionNumber string   `json:"version_number"`
	Description   string   `json:"description"`
	DownloadURL   string   `json:"download_url"`
	Downloads     int      `json:"downloads"`
	FileSize      int64    `json:"file_size"`
	DateCreated   string   `json:"date_created"`
	Dependencies  []string `json:"dependencies"`
}

type decodeOptions struct {
	community          string
	latestDependencies bool
	logger             *log.Logger
}

// decodePackages validates a raw listing. Entries without a usable full
// name or version are dropped with a warning; versions with malformed
// numbers or dependency strings are dropped individually.
func decodePackages(data []byte, opts decodeOptions) ([]Package, error) {
	var raw []apiPackage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode package listing: %w", err)
	}

	packages := make([]Package, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, rp := range raw {
		pkg, ok := decodePackage(rp, opts)
		if !ok {
			continue
		}
		if seen[pkg.FullName] {
			opts.warn("duplicate package dropped", "package", pkg.FullName)
			continue
		}
		seen[pkg.FullName] = true
		packages = append(packages, pkg)
	}
	return packages, nil
}

func decodePackage(rp apiPackage, opts decodeOptions) (Package, bool) {
	if rp.FullName == "" || rp.Name == "" {
		opts.warn("package without name dropped", "full_name", rp.FullName)
		return Package{}, false
	}

	pkg := Package{
		FullName:    rp.FullName,
		Namespace:   rp.Owner,
		Name:        rp.Name,
		Community:   opts.community,
		PackageURL:  rp.PackageURL,
		Rating:      rp.RatingScore,
		Categories:  rp.Categories,
		Deprecated:  rp.IsDeprecated,
		DateCreated: parseTime(rp.DateCreated),
		LastUpdated: parseTime(rp.DateUpdated),
	}
	if pkg.Categories == nil {
		pkg.Categories = []string{}
	}

	for _, rv := range rp.Versions {
		v, err := decodeVersion(rv, opts)
		if err != nil {
			opts.warn("package version dropped", "package", rp.FullName, "version", rv.VersionNumber, "err", err)
			continue
		}
		pkg.Versions = append(pkg.Versions, v)
	}

	if len(pkg.Versions) == 0 {
		opts.warn("package without valid versions dropped", "package", rp.FullName)
		return Package{}, false
	}

	sort.SliceStable(pkg.Versions, func(i, j int) bool {
		return pkg.Versions[j].Number.Less(pkg.Versions[i].Number)
	})
	return pkg, true
}

func decodeVersion(rv apiVersion, opts decodeOptions) (PackageVersion, error) {
	num, err := semver.Parse(rv.VersionNumber)
	if err != nil {
		return PackageVersion{}, err
	}
	if rv.DownloadURL == "" {
		return PackageVersion{}, fmt.Errorf("missing download_url")
	}

	deps := make([]DependencyRef, 0, len(rv.Dependencies))
	for _, ds := range rv.Dependencies {
		ref, err := ParseDependency(ds, opts.latestDependencies)
		if err != nil {
			return PackageVersion{}, err
		}
		deps = append(deps, ref)
	}

	return PackageVersion{
		Number:       num,
		Description:  rv.Description,
		DownloadURL:  rv.DownloadURL,
		Downloads:    rv.Downloads,
		FileSize:     rv.FileSize,
		DateCreated:  parseTime(rv.DateCreated),
		Dependencies: deps,
	}, nil
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (o decodeOptions) warn(msg string, keyvals ...interface{}) {
	if o.logger != nil {
		o.logger.Warn(msg, keyvals...)
	}
}
