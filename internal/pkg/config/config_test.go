package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("gdalsubset-test")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gdalsubset-test", cfg.Telemetry.ServiceName)
	assert.Equal(t, "s3", cfg.Storage.DefaultScheme)
	assert.Equal(t, time.Hour, cfg.Storage.PresignTTL)
	assert.Equal(t, 2, cfg.Worker.MaxParallelBoxes)
	assert.Equal(t, "inline", cfg.Worker.Engine)
	assert.Equal(t, "https://urs.earthdata.nasa.gov", cfg.Earthdata.Endpoint)
	assert.Equal(t, "gdalsubset", cfg.Temporal.TaskQueue)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GDALSUBSET_SERVER_PORT", "9090")
	t.Setenv("GDALSUBSET_STORAGE_STAGING_BUCKET", "harmony-staging")
	t.Setenv("GDALSUBSET_STORAGE_PRESIGN_TTL", "15m")
	t.Setenv("GDALSUBSET_WORKER_MAX_PARALLEL_BOXES", "4")

	cfg, err := Load("api")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "harmony-staging", cfg.Storage.StagingBucket)
	assert.Equal(t, 15*time.Minute, cfg.Storage.PresignTTL)
	assert.Equal(t, 4, cfg.Worker.MaxParallelBoxes)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("config.yaml", []byte(`
database:
  host: db.internal
  dbname: jobs
log:
  level: debug
`), 0o644))

	cfg, err := Load("api")
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "jobs", cfg.Database.DBName)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadInvalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GDALSUBSET_SERVER_PORT", "0")
	t.Setenv("GDALSUBSET_STORAGE_DEFAULT_SCHEME", "gs")
	t.Setenv("GDALSUBSET_WORKER_ENGINE", "cron")

	_, err := Load("api")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "storage.default_scheme")
	assert.Contains(t, err.Error(), "worker.engine")
}

func TestValidateCredentialPairs(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("api")
	require.NoError(t, err)

	cfg.Storage.AccessKey = "AKIA"
	cfg.Earthdata.Username = "alice"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.access_key and storage.secret_key")
	assert.Contains(t, err.Error(), "earthdata.password")
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss", DBName: "gdalsubset", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss@db:5432/gdalsubset?sslmode=disable", d.DSN())
}

func TestS3Endpoint(t *testing.T) {
	ep, secure := StorageConfig{UseLocalstack: true, LocalstackHost: "localstack"}.S3Endpoint()
	assert.Equal(t, "localstack:4566", ep)
	assert.False(t, secure)

	ep, secure = StorageConfig{Endpoint: "minio:9000", Insecure: true}.S3Endpoint()
	assert.Equal(t, "minio:9000", ep)
	assert.False(t, secure)

	ep, secure = StorageConfig{}.S3Endpoint()
	assert.Empty(t, ep)
	assert.True(t, secure)
}
