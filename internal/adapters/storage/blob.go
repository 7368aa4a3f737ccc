package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
)

// Blob stages results to and reads granules from a gocloud bucket.
// Only file:// buckets are opened here; S3 goes through the S3 type.
type Blob struct{}

// NewBlob creates a Blob.
func NewBlob() *Blob {
	return &Blob{}
}

// OpenBucket opens the bucket named by a file:///dir URL.
func OpenBucket(ctx context.Context, location string) (*blob.Bucket, string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, "", fmt.Errorf("parse %q: %w", location, err)
	}
	switch u.Scheme {
	case "file":
		dir := filepath.FromSlash(u.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, "", fmt.Errorf("create %s: %w", dir, err)
		}
		b, err := fileblob.OpenBucket(dir, nil)
		if err != nil {
			return nil, "", fmt.Errorf("open bucket %s: %w", dir, err)
		}
		return b, dir, nil
	default:
		return nil, "", fmt.Errorf("unsupported bucket provider %q", u.Scheme)
	}
}

// Stage copies localPath into the bucket at location and returns its URL.
func (b *Blob) Stage(ctx context.Context, localPath, location, name, mime string) (string, error) {
	bucket, dir, err := OpenBucket(ctx, location)
	if err != nil {
		return "", err
	}
	defer bucket.Close()

	r, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer r.Close()

	w, err := bucket.NewWriter(ctx, name, &blob.WriterOptions{ContentType: mime})
	if err != nil {
		return "", fmt.Errorf("open writer %s: %w", name, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer %s: %w", name, err)
	}

	slog.InfoContext(ctx, "staged", "file", localPath, "location", location, "key", name)
	return (&url.URL{Scheme: "file", Path: path.Join(filepath.ToSlash(dir), name)}).String(), nil
}

// Download copies file:///dir/name into dir, reusing an existing copy.
func (b *Blob) Download(ctx context.Context, rawURL, dir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	key := path.Base(u.Path)
	dst := filepath.Join(dir, key)
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	bucket, _, err := OpenBucket(ctx, strings.TrimSuffix(rawURL, "/"+key))
	if err != nil {
		return "", err
	}
	defer bucket.Close()

	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return "", fmt.Errorf("open reader %s: %w", rawURL, err)
	}
	defer r.Close()

	if err := writeFile(dst, r); err != nil {
		return "", err
	}
	return dst, nil
}

// writeFile streams r into dst through a temporary file in the same directory.
func writeFile(dst string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("rename %s: %w", dst, err)
	}
	return nil
}
