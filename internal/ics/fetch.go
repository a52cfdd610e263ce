package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	appLog "calgrid/internal/log"
)

// maxParallelFetches bounds concurrent feed downloads in FetchAll.
const maxParallelFetches = 4

// Source represents a single ICS subscription source.
type Source struct {
	// ID is an internal identifier (e.g., config source ID).
	ID string
	// URL is the ICS endpoint.
	URL string
	// Entity is stamped on every record produced from this feed.
	Entity string
}

// FetchResult contains the outcome of fetching a single ICS source.
type FetchResult struct {
	Source    Source
	Body      []byte // ICS payload (either freshly fetched or from cache)
	FromCache bool   // true if we reused cached body due to 304
}

// Fetcher is responsible for fetching ICS feeds with HTTP caching
// (ETag / Last-Modified) and disk-backed cache.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a new ICS Fetcher.
//
// cacheDir is the base directory where per-URL cache subdirectories and
// metadata will be stored. Example: "/var/lib/calgrid/ics-cache".
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		// Caller should set this explicitly; we fallback to a relative dir
		// so that development runs without root permissions.
		cacheDir = "./var/ics-cache"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// FetchAll fetches all given sources concurrently and returns individual
// results in source order. Errors for individual sources are logged and
// returned in the error slice.
//
// The returned slice of results will only contain entries for sources that
// successfully produced a body (either from network or cache).
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	slots := make([]FetchResult, len(sources))
	slotErrs := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(maxParallelFetches)
	for i, src := range sources {
		g.Go(func() error {
			res, err := f.FetchOne(ctx, src)
			if err != nil {
				appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
				slotErrs[i] = fmt.Errorf("ics: fetch %s: %w", src.ID, err)
				return nil
			}
			slots[i] = res
			return nil
		})
	}
	_ = g.Wait()

	results := make([]FetchResult, 0, len(sources))
	errs := make([]error, 0)
	for i := range sources {
		if slotErrs[i] != nil {
			errs = append(errs, slotErrs[i])
			continue
		}
		results = append(results, slots[i])
	}
	return results, errs
}

// FetchOne fetches a single ICS source, honoring ETag and Last-Modified.
// The last good body is kept on disk under f.cacheDir and served when the
// feed answers 304, fails, or is unreachable.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	c, err := openFeedCache(f.cacheDir, src.URL)
	if err != nil {
		return FetchResult{}, err
	}
	meta, body := c.load()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return fromCache(src, body, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		fresh, err := io.ReadAll(resp.Body)
		if err != nil {
			return fromCache(src, body, err)
		}
		next := cacheMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := c.save(next, fresh); err != nil {
			appLog.Error("ics cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
		}
		appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(fresh))
		return FetchResult{Source: src, Body: fresh}, nil

	case http.StatusNotModified:
		if len(body) == 0 {
			return FetchResult{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("ics feed not modified", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: body, FromCache: true}, nil

	default:
		return fromCache(src, body, fmt.Errorf("unexpected status %s", resp.Status))
	}
}

// fromCache serves the cached body after a failed request, or returns cause
// when there is nothing cached.
func fromCache(src Source, body []byte, cause error) (FetchResult, error) {
	if len(body) == 0 {
		return FetchResult{}, cause
	}
	appLog.Warn("ics fetch failed, serving cached body", "err", cause, "id", src.ID, "url", redactURL(src.URL))
	return FetchResult{Source: src, Body: body, FromCache: true}, nil
}

// cacheMeta holds HTTP cache validators for a single ICS URL.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// feedCache is the per-URL cache directory holding meta.json and body.ics.
type feedCache struct {
	dir string
}

func openFeedCache(root, rawURL string) (feedCache, error) {
	sum := sha256.Sum256([]byte(rawURL))
	c := feedCache{dir: filepath.Join(root, hex.EncodeToString(sum[:8]))}
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		return feedCache{}, err
	}
	return c, nil
}

// load returns whatever is cached; missing or corrupt files read as empty.
func (c feedCache) load() (cacheMeta, []byte) {
	var meta cacheMeta
	if data, err := os.ReadFile(filepath.Join(c.dir, "meta.json")); err == nil {
		if json.Unmarshal(data, &meta) != nil {
			meta = cacheMeta{}
		}
	}
	body, _ := os.ReadFile(filepath.Join(c.dir, "body.ics"))
	return meta, body
}

func (c feedCache) save(meta cacheMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(c.dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host so tokens in paths or queries are
// never logged.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
