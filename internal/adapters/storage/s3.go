// Package storage moves granules in and results out.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures the S3 client.
type S3Config struct {
	Endpoint  string // host[:port]; empty means AWS
	Region    string
	AccessKey string
	SecretKey string
	Secure    bool
	// PublicHost replaces the endpoint host in presigned URLs, for
	// endpoints that are reachable under a different name from outside
	// (e.g. a LocalStack container).
	PublicHost string
	PresignTTL time.Duration
	// Default staging target when a request names none.
	Bucket string
	Prefix string
}

// S3 downloads granules from and stages results to S3-compatible storage.
type S3 struct {
	client *minio.Client
	cfg    S3Config
}

// NewS3 creates an S3 client.
func NewS3(cfg S3Config) (*S3, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
		cfg.Secure = true
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = time.Hour
	}

	creds := credentials.NewEnvAWS()
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:      creds,
		Secure:     cfg.Secure,
		Region:     cfg.Region,
		MaxRetries: 5,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3{client: client, cfg: cfg}, nil
}

// Download fetches s3://bucket/key into dir, keeping the key's base name.
// An existing file of the same name is reused.
func (s *S3) Download(ctx context.Context, rawURL, dir string) (string, error) {
	bucket, key, err := splitS3URL(rawURL)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(dir, path.Base(key))
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}

	slog.InfoContext(ctx, "downloading", "url", rawURL)
	if err := s.client.FGetObject(ctx, bucket, key, dst, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	return dst, nil
}

// Stage uploads localPath as name under location (s3://bucket/prefix) and
// returns a presigned GET URL. An empty location uses the configured bucket.
func (s *S3) Stage(ctx context.Context, localPath, location, name, mime string) (string, error) {
	bucket, prefix := s.cfg.Bucket, s.cfg.Prefix
	if location != "" {
		var err error
		if bucket, prefix, err = splitS3URL(location); err != nil {
			return "", err
		}
	}
	if bucket == "" {
		return "", fmt.Errorf("no staging bucket configured")
	}
	key := path.Join(prefix, name)

	slog.InfoContext(ctx, "staging", "file", localPath, "bucket", bucket, "key", key)
	if _, err := s.client.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{ContentType: mime}); err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}

	u, err := s.client.PresignedGetObject(ctx, bucket, key, s.cfg.PresignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s: %w", bucket, key, err)
	}
	return s.publicURL(u), nil
}

func (s *S3) publicURL(u *url.URL) string {
	if s.cfg.PublicHost != "" {
		u.Host = s.cfg.PublicHost
	}
	return u.String()
}

// splitS3URL splits s3://bucket/key into its parts.
func splitS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 url: %q", raw)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}
