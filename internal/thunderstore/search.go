package thunderstore

import (
	"fmt"
	"sort"
	"strings"
)

// Sort keys accepted by Search.
const (
	SortLastUpdated = "last-updated"
	SortDownloads   = "downloads"
	SortRating      = "rating"
	SortName        = "name"
	SortNewest      = "newest"
)

// SearchOptions filters a listing.
type SearchOptions struct {
	// Query matches case-insensitively against the full name, the name and
	// the latest version's description. Empty matches everything.
	Query string
	// Sort is one of the Sort* keys; empty means SortLastUpdated.
	Sort string
	// Categories lists categories a package must all carry.
	Categories []string
}

// Search returns the packages matching opts, sorted. The input slice is
// not modified.
func Search(packages []Package, opts SearchOptions) ([]Package, error) {
	less, err := sortFunc(opts.Sort)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(opts.Query))
	var categories []string
	for _, c := range opts.Categories {
		if c = strings.TrimSpace(c); c != "" {
			categories = append(categories, c)
		}
	}

	out := make([]Package, 0)
	for i := range packages {
		p := &packages[i]
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		if !hasAllCategories(p, categories) {
			continue
		}
		out = append(out, *p)
	}

	sort.SliceStable(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	return out, nil
}

func matchesQuery(p *Package, query string) bool {
	return strings.Contains(strings.ToLower(p.FullName), query) ||
		strings.Contains(strings.ToLower(p.Name), query) ||
		strings.Contains(strings.ToLower(p.Latest().Description), query)
}

func hasAllCategories(p *Package, categories []string) bool {
	for _, c := range categories {
		if !p.HasCategory(c) {
			return false
		}
	}
	return true
}

func sortFunc(key string) (func(a, b *Package) bool, error) {
	switch key {
	case "", SortLastUpdated:
		return func(a, b *Package) bool { return a.LastUpdated.After(b.LastUpdated) }, nil
	case SortDownloads:
		return func(a, b *Package) bool { return a.TotalDownloads() > b.TotalDownloads() }, nil
	case SortRating:
		return func(a, b *Package) bool { return a.Rating > b.Rating }, nil
	case SortName:
		return func(a, b *Package) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }, nil
	case SortNewest:
		return func(a, b *Package) bool { return a.DateCreated.After(b.DateCreated) }, nil
	default:
		return nil, fmt.Errorf("%w: %q (want last-updated, downloads, rating, name or newest)", ErrInvalidSort, key)
	}
}
