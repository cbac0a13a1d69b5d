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
	"regexp"
	"strings"
	"time"

	appLog "github.com/pschmitt/gcal-import-ics/internal/log"
)

var urlPattern = regexp.MustCompile(`^https?://`)

// ConfluenceExportURL builds the ICS export URL for a Confluence
// team-calendar subcalendar.
func ConfluenceExportURL(baseURL, subcalendarID string) string {
	base := strings.TrimRight(baseURL, "/")
	return base + "/rest/calendar-services/1.0/calendar/export/subcalendar/private/" + subcalendarID + ".ics"
}

// IsURL reports whether the source string is a remote http(s) source
// rather than a local file path.
func IsURL(source string) bool {
	return urlPattern.MatchString(source)
}

// cacheEntry holds the HTTP validators for a single ICS URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher loads ICS payloads from local files or remote URLs. Remote
// fetches honor ETag / Last-Modified with a disk-backed cache and fall
// back to the cached body when the network is unavailable.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher. proxy, if non-empty, is used for all
// remote requests. cacheDir may be empty to disable caching.
func NewFetcher(cacheDir, proxy string) (*Fetcher, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Fetcher{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		cacheDir: cacheDir,
	}, nil
}

// Fetch resolves the source and returns the raw ICS payload. Local paths
// are read directly; URLs go through the caching HTTP path.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if source == "" {
		return nil, errors.New("ICS source is empty")
	}
	if !IsURL(source) {
		body, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read ICS file: %w", err)
		}
		return body, nil
	}
	return f.fetchURL(ctx, source)
}

func (f *Fetcher) fetchURL(ctx context.Context, source string) ([]byte, error) {
	cachePath := ""
	var meta cacheEntry
	var cachedBody []byte

	if f.cacheDir != "" {
		cachePath = f.cachePathForURL(source)
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			return nil, err
		}
		meta, _ = f.loadCacheMeta(cachePath)
		cachedBody, _ = os.ReadFile(filepath.Join(cachePath, "body.ics"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("fetching ICS", "url", RedactURL(source))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Warn("ICS fetch failed, using cached body", "url", RedactURL(source), "err", err)
			return cachedBody, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, readErr
		}
		if cachePath != "" {
			newMeta := cacheEntry{
				URL:          source,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				UpdatedAt:    time.Now().UTC(),
			}
			if err := f.saveCache(cachePath, newMeta, body); err != nil {
				appLog.Error("ICS cache save failed", err, "url", RedactURL(source))
			}
		}
		return body, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return nil, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("ICS not modified, using cache", "url", RedactURL(source))
		return cachedBody, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Warn("ICS fetch returned non-OK status, using cached body",
				"url", RedactURL(source), "status", resp.StatusCode)
			return cachedBody, nil
		}
		return nil, fmt.Errorf("fetch ICS: %s", resp.Status)
	}
}

func (f *Fetcher) cachePathForURL(source string) string {
	sum := sha256.Sum256([]byte(source))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.Marshal(&meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// RedactURL strips the path and query from an ICS URL for logging.
// Confluence export URLs embed the subcalendar UUID, which is effectively
// a capability token.
func RedactURL(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
