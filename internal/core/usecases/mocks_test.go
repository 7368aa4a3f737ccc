package usecases_test

import (
	"context"
	"errors"
	"os"
	"slices"
	"sync"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
)

// --- Mock JobRepository ---

type statusUpdate struct {
	id        string
	status    domain.JobStatus
	progress  int
	resultURL string
	errMsg    string
}

type mockJobRepo struct {
	mu      sync.Mutex
	created []*domain.Job
	updates []statusUpdate

	createFn  func(ctx context.Context, job *domain.Job) error
	getByIDFn func(ctx context.Context, id string) (*domain.Job, error)
	listFn    func(ctx context.Context, offset, limit int) ([]domain.Job, int, error)
}

func (m *mockJobRepo) Create(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	m.created = append(m.created, job)
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, job)
	}
	return nil
}

func (m *mockJobRepo) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrJobNotFound
}

func (m *mockJobRepo) List(ctx context.Context, offset, limit int) ([]domain.Job, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, offset, limit)
	}
	return nil, 0, nil
}

func (m *mockJobRepo) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, progress int, resultURL, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, statusUpdate{id, status, progress, resultURL, errMsg})
	return nil
}

func (m *mockJobRepo) lastUpdate() statusUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.updates) == 0 {
		return statusUpdate{}
	}
	return m.updates[len(m.updates)-1]
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu         sync.Mutex
	jobs       []*domain.Job
	events     []*domain.JobEvent
	broadcasts [][]byte

	publishJobFn func(ctx context.Context, job *domain.Job) error
}

func (m *mockPublisher) PublishJob(ctx context.Context, job *domain.Job) error {
	if m.publishJobFn != nil {
		if err := m.publishJobFn(ctx, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()
	return nil
}

func (m *mockPublisher) PublishJobEvent(ctx context.Context, event *domain.JobEvent) error {
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()
	return nil
}

func (m *mockPublisher) PublishBroadcast(ctx context.Context, data []byte) error {
	m.mu.Lock()
	m.broadcasts = append(m.broadcasts, data)
	m.mu.Unlock()
	return nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock CommandRunner ---

// mockRunner records commands and creates the files GDAL would write so
// later stages find their inputs.
type mockRunner struct {
	mu    sync.Mutex
	calls [][]string

	runFn func(ctx context.Context, name string, args ...string) ([]string, error)
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) ([]string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string{name}, args...))
	m.mu.Unlock()

	if m.runFn != nil {
		if out, err := m.runFn(ctx, name, args...); err != nil || out != nil {
			return out, err
		}
	}

	var dst string
	switch name {
	case "gdal_merge.py":
		if i := slices.Index(args, "-o"); i >= 0 && i+1 < len(args) {
			dst = args[i+1]
		}
	case "gdal_translate", "gdalwarp":
		dst = args[len(args)-1]
	}
	if dst != "" {
		_ = os.WriteFile(dst, nil, 0o644)
	}
	return nil, nil
}

func (m *mockRunner) programs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.calls))
	for i, c := range m.calls {
		names[i] = c[0]
	}
	return names
}

func (m *mockRunner) callsTo(name string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]string
	for _, c := range m.calls {
		if c[0] == name {
			out = append(out, c[1:])
		}
	}
	return out
}

// --- Mock RasterInspector ---

type mockInspector struct {
	mu    sync.Mutex
	calls int

	inspectFn     func(ctx context.Context, path string) (*domain.RasterInfo, error)
	layerFormatFn func(ctx context.Context, path, variable string) (string, error)
}

func (m *mockInspector) Inspect(ctx context.Context, path string) (*domain.RasterInfo, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.inspectFn != nil {
		return m.inspectFn(ctx, path)
	}
	return &domain.RasterInfo{Path: path}, nil
}

func (m *mockInspector) LayerFormat(ctx context.Context, path, variable string) (string, error) {
	if m.layerFormatFn != nil {
		return m.layerFormatFn(ctx, path, variable)
	}
	return `NETCDF:"{}":` + variable, nil
}

func (m *mockInspector) inspectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Mock Downloader / Stager / Notifier ---

type mockDownloader struct {
	downloadFn func(ctx context.Context, url, dir string) (string, error)
}

func (m *mockDownloader) Download(ctx context.Context, url, dir string) (string, error) {
	if m.downloadFn != nil {
		return m.downloadFn(ctx, url, dir)
	}
	return url, nil
}

type mockStager struct {
	localPath, location, name, mime string

	stageFn func(ctx context.Context, localPath, location, name, mime string) (string, error)
}

func (m *mockStager) Stage(ctx context.Context, localPath, location, name, mime string) (string, error) {
	m.localPath, m.location, m.name, m.mime = localPath, location, name, mime
	if m.stageFn != nil {
		return m.stageFn(ctx, localPath, location, name, mime)
	}
	return "https://staging.example.com/" + name, nil
}

type mockNotifier struct {
	completed []string
	failed    []string
}

func (m *mockNotifier) Complete(ctx context.Context, callback, resultURL string) error {
	m.completed = append(m.completed, resultURL)
	return nil
}

func (m *mockNotifier) Fail(ctx context.Context, callback, message string) error {
	m.failed = append(m.failed, message)
	return nil
}
