// Package config loads service configuration from defaults, an optional
// config.yaml and GDALSUBSET_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Earthdata EarthdataConfig `mapstructure:"earthdata"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	OpenAPIPath  string `mapstructure:"openapi_path"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

type NATSConfig struct {
	URL     string        `mapstructure:"url"`
	AckWait time.Duration `mapstructure:"ack_wait"`
}

type ValkeyConfig struct {
	Addr      string `mapstructure:"addr"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// StorageConfig configures granule download and result staging.
type StorageConfig struct {
	StagingBucket  string        `mapstructure:"staging_bucket"`
	StagingPath    string        `mapstructure:"staging_path"`
	Region         string        `mapstructure:"region"`
	Endpoint       string        `mapstructure:"endpoint"` // host[:port], empty for AWS
	Insecure       bool          `mapstructure:"insecure"`
	UseLocalstack  bool          `mapstructure:"use_localstack"`
	LocalstackHost string        `mapstructure:"localstack_host"`
	AccessKey      string        `mapstructure:"access_key"`
	SecretKey      string        `mapstructure:"secret_key"`
	PresignTTL     time.Duration `mapstructure:"presign_ttl"`
	DefaultScheme  string        `mapstructure:"default_scheme"` // stager for requests without a stagingLocation
}

// S3Endpoint returns the endpoint to dial and whether to use TLS.
func (s StorageConfig) S3Endpoint() (endpoint string, secure bool) {
	if s.UseLocalstack {
		return s.LocalstackHost + ":4566", false
	}
	return s.Endpoint, !s.Insecure
}

type EarthdataConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type WorkerConfig struct {
	Engine           string        `mapstructure:"engine"` // inline or temporal
	WorkDir          string        `mapstructure:"work_dir"`
	GDALBinDir       string        `mapstructure:"gdal_bin_dir"`
	CommandTimeout   time.Duration `mapstructure:"command_timeout"`
	DownloadTimeout  time.Duration `mapstructure:"download_timeout"`
	CallbackTimeout  time.Duration `mapstructure:"callback_timeout"`
	MaxParallelBoxes int           `mapstructure:"max_parallel_boxes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// GDALSUBSET_DATABASE_HOST → database.host
	v.SetEnvPrefix("GDALSUBSET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.openapi_path", "api/openapi.yaml")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gdalsubset")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "gdalsubset")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.ack_wait", time.Minute)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.key_prefix", "gdalsubset:")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "gdalsubset")
	v.SetDefault("storage.staging_bucket", "")
	v.SetDefault("storage.staging_path", "public/harmony/gdal")
	v.SetDefault("storage.region", "us-west-2")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.insecure", false)
	v.SetDefault("storage.use_localstack", false)
	v.SetDefault("storage.localstack_host", "localhost")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.presign_ttl", time.Hour)
	v.SetDefault("storage.default_scheme", "s3")
	v.SetDefault("earthdata.endpoint", "https://urs.earthdata.nasa.gov")
	v.SetDefault("earthdata.username", "")
	v.SetDefault("earthdata.password", "")
	v.SetDefault("worker.engine", "inline")
	v.SetDefault("worker.work_dir", "/tmp/gdalsubset")
	v.SetDefault("worker.gdal_bin_dir", "")
	v.SetDefault("worker.command_timeout", 10*time.Minute)
	v.SetDefault("worker.download_timeout", 30*time.Minute)
	v.SetDefault("worker.callback_timeout", 30*time.Second)
	v.SetDefault("worker.max_parallel_boxes", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}
	switch c.Storage.DefaultScheme {
	case "s3", "file":
	default:
		errs = append(errs, fmt.Sprintf("storage.default_scheme must be s3 or file, got %q", c.Storage.DefaultScheme))
	}
	if c.Storage.PresignTTL <= 0 || c.Storage.PresignTTL > 7*24*time.Hour {
		errs = append(errs, "storage.presign_ttl must be between 1s and 7 days")
	}
	if (c.Storage.AccessKey == "") != (c.Storage.SecretKey == "") {
		errs = append(errs, "storage.access_key and storage.secret_key must be set together")
	}
	if c.Earthdata.Username != "" && c.Earthdata.Password == "" {
		errs = append(errs, "earthdata.password is required with earthdata.username")
	}
	switch c.Worker.Engine {
	case "inline", "temporal":
	default:
		errs = append(errs, fmt.Sprintf("worker.engine must be inline or temporal, got %q", c.Worker.Engine))
	}
	if c.Worker.WorkDir == "" {
		errs = append(errs, "worker.work_dir is required")
	}
	if c.Worker.MaxParallelBoxes <= 0 {
		errs = append(errs, "worker.max_parallel_boxes must be positive")
	}
	if c.Worker.CommandTimeout <= 0 {
		errs = append(errs, "worker.command_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
