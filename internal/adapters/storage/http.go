package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"
)

// EarthdataConfig holds Earthdata Login credentials.
type EarthdataConfig struct {
	Endpoint string // e.g. https://urs.earthdata.nasa.gov
	Username string
	Password string
}

// HTTP downloads granules over http(s), answering Earthdata Login
// challenges with basic auth and keeping its session cookies.
type HTTP struct {
	client  *http.Client
	edlHost string
	edl     EarthdataConfig
	group   singleflight.Group
}

// NewHTTP creates an HTTP downloader.
func NewHTTP(edl EarthdataConfig, timeout time.Duration) (*HTTP, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	h := &HTTP{edl: edl}
	if edl.Endpoint != "" {
		u, err := url.Parse(edl.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse earthdata endpoint: %w", err)
		}
		h.edlHost = u.Host
	} else {
		slog.Warn("earthdata login not configured, downloads will be unauthenticated")
	}

	h.client = &http.Client{
		Jar:     jar,
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			h.authorize(req)
			return nil
		},
	}
	return h, nil
}

func (h *HTTP) authorize(req *http.Request) {
	if h.edlHost != "" && req.URL.Host == h.edlHost && h.edl.Username != "" {
		req.SetBasicAuth(h.edl.Username, h.edl.Password)
	}
}

// Download fetches rawURL into dir under the URL's base name. An existing
// file is reused, and concurrent requests for the same file share one fetch.
func (h *HTTP) Download(ctx context.Context, rawURL, dir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	dst := filepath.Join(dir, path.Base(u.Path))

	v, err, _ := h.group.Do(dst, func() (any, error) {
		if _, err := os.Stat(dst); err == nil {
			return dst, nil
		}
		return dst, h.fetch(ctx, rawURL, dst)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (h *HTTP) fetch(ctx context.Context, rawURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	h.authorize(req)

	slog.InfoContext(ctx, "downloading", "url", rawURL)
	start := time.Now()

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &HTTPError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	if err := writeFile(dst, resp.Body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "download complete", "url", rawURL, "elapsed", time.Since(start))
	return nil
}

// HTTPError is returned for non-200 download responses.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("get %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether retrying might succeed.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Permanent reports whether the same request will fail again (404, 403, ...).
func (e *HTTPError) Permanent() bool {
	return !e.Temporary()
}
