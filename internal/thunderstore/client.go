package thunderstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/LulfLoot/ThunderDockerman/internal/store"
)

// Cache persists raw community listings between process restarts.
// *store.Store implements it.
type Cache interface {
	GetIndexCache(community string) (*store.IndexCacheEntry, error)
	PutIndexCache(entry *store.IndexCacheEntry) error
	DeleteIndexCache(community string) error
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Communities []string
	CacheTTL    time.Duration
	Timeout     time.Duration
	// LatestDependencies turns every dependency into a minimum constraint so
	// the resolver picks the newest published version.
	LatestDependencies bool

	HTTPClient *http.Client
	Cache      Cache
	Logger     *log.Logger
	Now        func() time.Time
}

// Client is an Index backed by the Thunderstore v1 HTTP API.
type Client struct {
	opts        Options
	http        *http.Client
	communities []Community
	allowed     map[string]bool

	group singleflight.Group

	mu  sync.RWMutex
	mem map[string]listing
}

type listing struct {
	packages  []Package
	byName    map[string]int
	fetchedAt time.Time
}

// NewClient returns a client for the given communities.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://thunderstore.io"
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		opts:    opts,
		http:    httpClient,
		allowed: make(map[string]bool, len(opts.Communities)),
		mem:     make(map[string]listing),
	}
	for _, id := range opts.Communities {
		if c.allowed[id] {
			continue
		}
		c.allowed[id] = true
		c.communities = append(c.communities, Community{ID: id, Name: communityName(id)})
	}
	return c
}

// ListCommunities returns the configured communities.
func (c *Client) ListCommunities(ctx context.Context) ([]Community, error) {
	out := make([]Community, len(c.communities))
	copy(out, c.communities)
	return out, nil
}

// ListPackages returns every package in a community.
func (c *Client) ListPackages(ctx context.Context, community string) ([]Package, error) {
	l, err := c.load(ctx, community)
	if err != nil {
		return nil, err
	}
	return l.packages, nil
}

// GetByFullName looks up one package.
func (c *Client) GetByFullName(ctx context.Context, community, fullName string) (*Package, error) {
	l, err := c.load(ctx, community)
	if err != nil {
		return nil, err
	}
	idx, ok := l.byName[fullName]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrPackageNotFound, fullName, community)
	}
	pkg := l.packages[idx]
	return &pkg, nil
}

// Search filters and sorts a community listing.
func (c *Client) Search(ctx context.Context, community string, opts SearchOptions) ([]Package, error) {
	l, err := c.load(ctx, community)
	if err != nil {
		return nil, err
	}
	return Search(l.packages, opts)
}

// Refresh drops the in-memory and persisted listing of a community so the
// next call fetches it from the network.
func (c *Client) Refresh(community string) error {
	if !c.allowed[community] {
		return fmt.Errorf("%w: %s", ErrUnknownCommunity, community)
	}

	c.mu.Lock()
	delete(c.mem, community)
	c.mu.Unlock()

	if c.opts.Cache != nil {
		if err := c.opts.Cache.DeleteIndexCache(community); err != nil {
			return fmt.Errorf("failed to drop cached index for %s: %w", community, err)
		}
	}
	c.opts.Logger.Debug("package index refresh requested", "community", community)
	return nil
}

func (c *Client) load(ctx context.Context, community string) (listing, error) {
	if !c.allowed[community] {
		return listing{}, fmt.Errorf("%w: %s", ErrUnknownCommunity, community)
	}

	c.mu.RLock()
	l, ok := c.mem[community]
	c.mu.RUnlock()
	if ok && c.fresh(l.fetchedAt) {
		return l, nil
	}

	v, err, _ := c.group.Do(community, func() (interface{}, error) {
		return c.refill(ctx, community)
	})
	if err != nil {
		return listing{}, err
	}
	return v.(listing), nil
}

// refill loads a listing from the persistent cache when fresh, otherwise
// from the network, falling back to any stale copy when the fetch fails.
func (c *Client) refill(ctx context.Context, community string) (listing, error) {
	var cached *store.IndexCacheEntry
	if c.opts.Cache != nil {
		entry, err := c.opts.Cache.GetIndexCache(community)
		if err != nil {
			c.opts.Logger.Warn("index cache read failed", "community", community, "err", err)
		} else {
			cached = entry
		}
	}

	if cached != nil && c.fresh(cached.FetchedAt) {
		l, err := c.decode(community, cached.Payload, cached.FetchedAt)
		if err == nil {
			return l, nil
		}
		c.opts.Logger.Warn("discarding unreadable index cache", "community", community, "err", err)
		cached = nil
	}

	body, fetchErr := c.fetch(ctx, community)
	if fetchErr == nil {
		now := c.opts.Now()
		l, err := c.decode(community, body, now)
		if err == nil {
			c.persist(community, body, now, len(l.packages))
			return l, nil
		}
		fetchErr = err
	}

	if stale, ok := c.stale(community, cached); ok {
		c.opts.Logger.Warn("serving stale package index", "community", community, "fetched_at", stale.fetchedAt, "err", fetchErr)
		return stale, nil
	}
	return listing{}, fetchErr
}

func (c *Client) stale(community string, cached *store.IndexCacheEntry) (listing, bool) {
	c.mu.RLock()
	l, ok := c.mem[community]
	c.mu.RUnlock()
	if ok {
		return l, true
	}
	if cached == nil {
		return listing{}, false
	}
	l, err := c.decode(community, cached.Payload, cached.FetchedAt)
	if err != nil {
		return listing{}, false
	}
	return l, true
}

func (c *Client) fetch(ctx context.Context, community string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/c/%s/api/v1/package/", c.opts.BaseURL, community)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", community, err)
	}
	req.Header.Set("Accept", "application/json")

	c.opts.Logger.Debug("fetching package index", "community", community, "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch package index for %s: %w", community, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch package index for %s: %s", community, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read package index for %s: %w", community, err)
	}
	return body, nil
}

func (c *Client) decode(community string, body []byte, fetchedAt time.Time) (listing, error) {
	packages, err := decodePackages(body, decodeOptions{
		community:          community,
		latestDependencies: c.opts.LatestDependencies,
		logger:             c.opts.Logger,
	})
	if err != nil {
		return listing{}, err
	}

	l := listing{
		packages:  packages,
		byName:    make(map[string]int, len(packages)),
		fetchedAt: fetchedAt,
	}
	for i, p := range packages {
		l.byName[p.FullName] = i
	}

	c.mu.Lock()
	c.mem[community] = l
	c.mu.Unlock()
	return l, nil
}

func (c *Client) persist(community string, body []byte, fetchedAt time.Time, count int) {
	if c.opts.Cache == nil {
		return
	}
	err := c.opts.Cache.PutIndexCache(&store.IndexCacheEntry{
		Community:    community,
		FetchedAt:    fetchedAt,
		PackageCount: count,
		Payload:      body,
	})
	if err != nil {
		c.opts.Logger.Warn("failed to cache package index", "community", community, "err", err)
	}
}

func (c *Client) fresh(fetchedAt time.Time) bool {
	if c.opts.CacheTTL <= 0 {
		return false
	}
	return c.opts.Now().Sub(fetchedAt) < c.opts.CacheTTL
}
