package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitS3URL(t *testing.T) {
	bucket, key, err := splitS3URL("s3://harmony-staging/public/job-1/out.tif")
	require.NoError(t, err)
	assert.Equal(t, "harmony-staging", bucket)
	assert.Equal(t, "public/job-1/out.tif", key)

	bucket, key, err = splitS3URL("s3://only-bucket")
	require.NoError(t, err)
	assert.Equal(t, "only-bucket", bucket)
	assert.Empty(t, key)

	for _, bad := range []string{"https://example.com/a", "s3:///key", "/local/path"} {
		_, _, err := splitS3URL(bad)
		assert.Error(t, err, bad)
	}
}

func TestSchemeOf(t *testing.T) {
	assert.Equal(t, "s3", schemeOf("s3://b/k"))
	assert.Equal(t, "https", schemeOf("HTTPS://host/x"))
	assert.Equal(t, "file", schemeOf("file:///tmp/x"))
	assert.Empty(t, schemeOf("/data/granule.nc"))
	assert.Empty(t, schemeOf(""))
}

func TestBlobStageAndDownload(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	src := filepath.Join(root, "result.tif")
	require.NoError(t, os.WriteFile(src, []byte("raster"), 0o644))

	bucketDir := filepath.Join(root, "bucket")
	location := (&url.URL{Scheme: "file", Path: filepath.ToSlash(bucketDir)}).String()

	b := NewBlob()
	staged, err := b.Stage(ctx, src, location, "abc.tif", "image/tiff")
	require.NoError(t, err)
	assert.Equal(t, location+"/abc.tif", staged)

	work := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(work, 0o755))
	got, err := b.Download(ctx, staged, work)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "abc.tif"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "raster", string(data))
}

func TestOpenBucketRejectsUnknownScheme(t *testing.T) {
	_, _, err := OpenBucket(context.Background(), "gs://bucket")
	assert.Error(t, err)
}

func TestHTTPDownloadEarthdataRedirect(t *testing.T) {
	var edlCalls atomic.Int32
	edl := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		edlCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, r.URL.Query().Get("back"), http.StatusFound)
	}))
	defer edl.Close()

	var data *httptest.Server
	data = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
			http.Redirect(w, r, edl.URL+"/oauth?back="+url.QueryEscape(data.URL+r.URL.Path), http.StatusFound)
			return
		}
		if _, _, ok := r.BasicAuth(); ok {
			t.Error("credentials leaked to data host")
		}
		_, _ = w.Write([]byte("granule-bytes"))
	}))
	defer data.Close()

	h, err := NewHTTP(EarthdataConfig{Endpoint: edl.URL, Username: "alice", Password: "secret"}, 5*time.Second)
	require.NoError(t, err)

	dir := t.TempDir()
	got, err := h.Download(context.Background(), data.URL+"/granules/g1.nc", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "g1.nc"), got)

	body, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "granule-bytes", string(body))
	assert.Equal(t, int32(1), edlCalls.Load())
}

func TestHTTPDownloadReusesExistingFile(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "g.nc"), []byte("cached"), 0o644))

	h, err := NewHTTP(EarthdataConfig{}, time.Second)
	require.NoError(t, err)

	got, err := h.Download(context.Background(), srv.URL+"/g.nc", dir)
	require.NoError(t, err)
	body, _ := os.ReadFile(got)
	assert.Equal(t, "cached", string(body))
	assert.Zero(t, hits.Load())
}

func TestHTTPDownloadConcurrentSameFile(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	h, err := NewHTTP(EarthdataConfig{}, 5*time.Second)
	require.NoError(t, err)
	dir := t.TempDir()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Download(context.Background(), srv.URL+"/same.nc", dir)
			assert.NoError(t, err)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPDownloadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h, err := NewHTTP(EarthdataConfig{}, time.Second)
	require.NoError(t, err)

	dir := t.TempDir()
	_, err = h.Download(context.Background(), srv.URL+"/g.nc", dir)
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusServiceUnavailable, herr.StatusCode)
	assert.True(t, herr.Temporary())
	assert.False(t, herr.Permanent())

	_, statErr := os.Stat(filepath.Join(dir, "g.nc"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRouterDispatch(t *testing.T) {
	ctx := context.Background()
	r := NewRouter(nil, nil, NewBlob(), "file")

	got, err := r.Download(ctx, "/data/local.nc", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "/data/local.nc", got)

	_, err = r.Download(ctx, "s3://bucket/key.nc", t.TempDir())
	assert.ErrorContains(t, err, `no downloader for scheme "s3"`)

	_, err = r.Stage(ctx, "/tmp/x.tif", "s3://bucket/prefix", "x.tif", "image/tiff")
	assert.ErrorContains(t, err, `no stager for scheme "s3"`)

	root := t.TempDir()
	src := filepath.Join(root, "r.tif")
	require.NoError(t, os.WriteFile(src, []byte("r"), 0o644))
	r.fallback = "file"
	_, err = r.Stage(ctx, src, "", "r.tif", "image/tiff")
	assert.Error(t, err, "fallback file stager needs a location")
}

func TestHTTPDownloadNotFoundIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	h, err := NewHTTP(EarthdataConfig{}, time.Second)
	require.NoError(t, err)

	_, err = h.Download(context.Background(), srv.URL+"/missing.nc", t.TempDir())
	var herr *HTTPError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, http.StatusNotFound, herr.StatusCode)
	assert.True(t, herr.Permanent())
}
