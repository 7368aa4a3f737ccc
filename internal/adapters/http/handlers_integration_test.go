//go:build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harmonyservices/gdalsubset/internal/adapters/http"
	"github.com/harmonyservices/gdalsubset/internal/adapters/postgres"
	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/core/usecases"
	"github.com/harmonyservices/gdalsubset/internal/pkg/config"
)

// setupTestDB connects to the test database and applies the up migrations.
func setupTestDB(t *testing.T) *postgres.DB {
	t.Helper()
	cfg, err := config.Load("gdalsubset-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 4)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	for _, name := range []string{"001_jobs.sql", "002_job_output_name.sql"} {
		ddl, err := os.ReadFile(filepath.Join("..", "..", "..", "migrations", name))
		if err != nil {
			t.Fatalf("read migration %s: %v", name, err)
		}
		if _, err := db.Pool.Exec(ctx, string(ddl)); err != nil {
			t.Fatalf("apply migration %s: %v", name, err)
		}
	}
	return db
}

func setupTestDeps(db *postgres.DB) *http.Dependencies {
	return &http.Dependencies{
		Jobs: usecases.NewJobService(postgres.NewJobRepo(db), nil),
		Clip: usecases.NewClipService(),
		DB:   db,
	}
}

func TestJobLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	deps := setupTestDeps(db)
	app := setupApp(deps)

	req := httptest.NewRequest("POST", "/v1/jobs", strings.NewReader(validOperation))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.StatusCode != 202 {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var job domain.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("decode: %v", err)
	}

	ctx := context.Background()
	if err := deps.Jobs.MarkRunning(ctx, job.ID, "subset", 40); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	if err := deps.Jobs.MarkComplete(ctx, job.ID, "s3://bucket/out.tif"); err != nil {
		t.Fatalf("mark complete: %v", err)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/jobs/"+job.ID, nil), -1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var got domain.Job
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != domain.JobSuccessful || got.Progress != 100 || got.ResultURL != "s3://bucket/out.tif" {
		t.Errorf("unexpected stored job %+v", got)
	}
	if got.Message == nil || len(got.Message.Sources) != 1 {
		t.Errorf("expected message round-trip, got %+v", got.Message)
	}
	if got.Output == "" || got.Output != job.Output {
		t.Errorf("expected output name %q stored, got %q", job.Output, got.Output)
	}
}

func TestListJobs_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	app := setupApp(setupTestDeps(db))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/v1/jobs", strings.NewReader(validOperation))
		if resp, err := app.Test(req, -1); err != nil || resp.StatusCode != 202 {
			t.Fatalf("submit %d failed", i)
		}
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/jobs?limit=1", nil), -1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var result struct {
		Data       []domain.Job    `json:"data"`
		Pagination http.Pagination `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Data) != 1 || result.Pagination.Total < 2 {
		t.Errorf("unexpected page %+v", result.Pagination)
	}
}

func TestGetJob_Integration_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	app := setupApp(setupTestDeps(setupTestDB(t)))
	resp, err := app.Test(httptest.NewRequest("GET", "/v1/jobs/does-not-exist", nil), -1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
