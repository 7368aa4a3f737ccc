package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/harmonyservices/gdalsubset/internal/core/ports"
)

// Router picks a downloader or stager by URL scheme.
// Plain paths are used in place without copying.
type Router struct {
	downloaders map[string]ports.Downloader
	stagers     map[string]ports.Stager
	fallback    string
}

// NewRouter creates a Router. Nil backends leave their schemes unsupported.
// Staging to an empty location goes to fallbackScheme.
func NewRouter(s3 *S3, httpDL *HTTP, b *Blob, fallbackScheme string) *Router {
	r := &Router{
		downloaders: map[string]ports.Downloader{},
		stagers:     map[string]ports.Stager{},
		fallback:    fallbackScheme,
	}
	if s3 != nil {
		r.downloaders["s3"] = s3
		r.stagers["s3"] = s3
	}
	if httpDL != nil {
		r.downloaders["http"] = httpDL
		r.downloaders["https"] = httpDL
	}
	if b != nil {
		r.downloaders["file"] = b
		r.stagers["file"] = b
	}
	return r
}

// Download dispatches on the URL scheme.
func (r *Router) Download(ctx context.Context, rawURL, dir string) (string, error) {
	scheme := schemeOf(rawURL)
	if scheme == "" {
		return rawURL, nil
	}
	d, ok := r.downloaders[scheme]
	if !ok {
		return "", fmt.Errorf("no downloader for scheme %q", scheme)
	}
	return d.Download(ctx, rawURL, dir)
}

// Stage dispatches on the staging location scheme.
func (r *Router) Stage(ctx context.Context, localPath, location, name, mime string) (string, error) {
	scheme := schemeOf(location)
	if scheme == "" {
		scheme = r.fallback
	}
	s, ok := r.stagers[scheme]
	if !ok {
		return "", fmt.Errorf("no stager for scheme %q", scheme)
	}
	return s.Stage(ctx, localPath, location, name, mime)
}

func schemeOf(raw string) string {
	if !strings.Contains(raw, "://") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
