// Package bootstrap builds the services shared by the worker processes.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/harmonyservices/gdalsubset/internal/adapters/callback"
	"github.com/harmonyservices/gdalsubset/internal/adapters/gdal"
	"github.com/harmonyservices/gdalsubset/internal/adapters/storage"
	"github.com/harmonyservices/gdalsubset/internal/core/ports"
	"github.com/harmonyservices/gdalsubset/internal/core/usecases"
	"github.com/harmonyservices/gdalsubset/internal/pkg/config"
)

// Storage builds the scheme router used for downloads and staging.
func Storage(cfg *config.Config) (*storage.Router, error) {
	endpoint, secure := cfg.Storage.S3Endpoint()
	s3cfg := storage.S3Config{
		Endpoint:   endpoint,
		Region:     cfg.Storage.Region,
		AccessKey:  cfg.Storage.AccessKey,
		SecretKey:  cfg.Storage.SecretKey,
		Secure:     secure,
		PresignTTL: cfg.Storage.PresignTTL,
		Bucket:     cfg.Storage.StagingBucket,
		Prefix:     cfg.Storage.StagingPath,
	}
	if cfg.Storage.UseLocalstack {
		s3cfg.PublicHost = "localhost:4566"
	}
	s3, err := storage.NewS3(s3cfg)
	if err != nil {
		return nil, fmt.Errorf("s3: %w", err)
	}

	httpDL, err := storage.NewHTTP(storage.EarthdataConfig{
		Endpoint: cfg.Earthdata.Endpoint,
		Username: cfg.Earthdata.Username,
		Password: cfg.Earthdata.Password,
	}, cfg.Worker.DownloadTimeout)
	if err != nil {
		return nil, fmt.Errorf("http downloader: %w", err)
	}

	return storage.NewRouter(s3, httpDL, storage.NewBlob(), cfg.Storage.DefaultScheme), nil
}

// TransformService wires the GDAL pipeline. cache and jobs may be nil; the
// CLI runs without either.
func TransformService(cfg *config.Config, cache ports.CacheService, jobs *usecases.JobService) (*usecases.TransformService, error) {
	router, err := Storage(cfg)
	if err != nil {
		return nil, err
	}

	runner := gdal.NewRunner(cfg.Worker.GDALBinDir, cfg.Worker.CommandTimeout)
	inspector := gdal.NewInspector(runner)
	subsets := usecases.NewSubsetService(runner, inspector, cache, cfg.Worker.MaxParallelBoxes)

	svc := usecases.NewTransformService(
		router,
		inspector,
		runner,
		subsets,
		router,
		callback.New(cfg.Worker.CallbackTimeout),
		cfg.Worker.WorkDir,
	).Observe(
		usecases.LogObserver{},
		usecases.MetricsObserver{},
		usecases.NewTracingObserver(nil),
	)
	if jobs != nil {
		svc.WithJobs(jobs)
	}

	slog.Debug("transform service ready",
		"work_dir", cfg.Worker.WorkDir,
		"default_scheme", cfg.Storage.DefaultScheme,
		"max_parallel_boxes", cfg.Worker.MaxParallelBoxes,
	)
	return svc, nil
}
