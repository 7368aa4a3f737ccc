package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/core/pipeline"
	"github.com/harmonyservices/gdalsubset/internal/core/ports"
)

// genericFailure is reported to the requester for errors whose text may
// leak internal details.
const genericFailure = "An unexpected error occurred"

// TransformService runs a Harmony operation end to end: download, per-layer
// transformation, result assembly, staging and callback.
type TransformService struct {
	downloader ports.Downloader
	inspector  ports.RasterInspector
	runner     ports.CommandRunner
	subsets    *SubsetService
	stager     ports.Stager
	notifier   ports.Notifier
	jobs       *JobService
	workDir    string
	observers  []pipeline.Observer
}

// NewTransformService creates a new TransformService.
func NewTransformService(
	downloader ports.Downloader,
	inspector ports.RasterInspector,
	runner ports.CommandRunner,
	subsets *SubsetService,
	stager ports.Stager,
	notifier ports.Notifier,
	workDir string,
) *TransformService {
	return &TransformService{
		downloader: downloader,
		inspector:  inspector,
		runner:     runner,
		subsets:    subsets,
		stager:     stager,
		notifier:   notifier,
		workDir:    workDir,
	}
}

// WithJobs makes the service record job progress and outcome through js.
func (s *TransformService) WithJobs(js *JobService) *TransformService {
	s.jobs = js
	return s
}

// Observe registers pipeline observers for every stage run.
func (s *TransformService) Observe(obs ...pipeline.Observer) *TransformService {
	s.observers = append(s.observers, obs...)
	return s
}

// Process runs the job and reports the outcome to the callback URL.
func (s *TransformService) Process(ctx context.Context, job *domain.Job) (*domain.Result, error) {
	res, err := s.Run(ctx, job)
	if ferr := s.Finish(ctx, job, res, err); ferr != nil {
		slog.WarnContext(ctx, "report job outcome failed", "job_id", job.ID, "error", ferr)
	}
	return res, err
}

// Run executes the job without reporting its outcome. The work directory
// is removed before returning.
func (s *TransformService) Run(ctx context.Context, job *domain.Job) (*domain.Result, error) {
	if job.Message == nil {
		return nil, pipeline.Fatal(pipeline.StageDownload, errors.New("job has no message"))
	}

	dir := filepath.Join(s.workDir, job.ID)
	if err := os.RemoveAll(dir); err != nil {
		return nil, pipeline.Recoverable(pipeline.StageDownload, fmt.Errorf("clean work dir: %w", err))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pipeline.Recoverable(pipeline.StageDownload, fmt.Errorf("create work dir: %w", err))
	}
	defer os.RemoveAll(dir)

	observers := s.observers
	if s.jobs != nil {
		observers = append(slices.Clone(observers), &progressObserver{jobs: s.jobs, jobID: job.ID})
	}

	return s.transform(ctx, job, dir, observers)
}

// Finish records the job outcome and calls the requester back.
func (s *TransformService) Finish(ctx context.Context, job *domain.Job, res *domain.Result, runErr error) error {
	var errs []error
	callback := ""
	if job.Message != nil {
		callback = job.Message.Callback
	}

	if runErr != nil {
		stage := pipeline.StageOf(runErr)
		slog.ErrorContext(ctx, "job failed", "job_id", job.ID, "stage", stage, "fatal", pipeline.IsFatal(runErr), "error", runErr)
		if s.jobs != nil {
			errs = append(errs, s.jobs.MarkFailed(ctx, job.ID, stage, runErr.Error()))
		}
		if callback != "" && s.notifier != nil {
			errs = append(errs, s.notifier.Fail(ctx, callback, FailureMessage(runErr)))
		}
		return errors.Join(errs...)
	}

	slog.InfoContext(ctx, "job complete", "job_id", job.ID, "url", res.URL, "bands", len(res.Bands))
	if s.jobs != nil {
		errs = append(errs, s.jobs.MarkComplete(ctx, job.ID, res.URL))
	}
	if callback != "" && s.notifier != nil {
		errs = append(errs, s.notifier.Complete(ctx, callback, res.URL))
	}
	return errors.Join(errs...)
}

// FailureMessage returns the text reported to the requester for err.
// Fatal errors describe a problem with the request and are passed on;
// anything else is reported generically.
func FailureMessage(err error) string {
	if pipeline.IsFatal(err) {
		var se *pipeline.StageError
		errors.As(err, &se)
		return se.Err.Error()
	}
	return genericFailure
}

func (s *TransformService) transform(ctx context.Context, job *domain.Job, dir string, observers []pipeline.Observer) (*domain.Result, error) {
	msg := job.Message
	out, err := domain.LookupMIME(msg.Format.MIME)
	if err != nil {
		return nil, pipeline.Fatal(pipeline.StageReformat, err)
	}

	var box *orb.Bound
	if b, ok := msg.Subset.Box(); ok {
		box = &b
	}

	var (
		result     string
		layers     []string
		footprints []orb.Bound
	)
	for _, src := range msg.Sources {
		// Only the first granule of each source is processed.
		if len(src.Granules) == 0 {
			continue
		}
		g := src.Granules[0]

		art, err := s.download(ctx, g, dir, observers)
		if err != nil {
			return nil, err
		}

		vars, err := s.variables(ctx, src, art.Path)
		if err != nil {
			return nil, pipeline.Recoverable(pipeline.StageInspect, err)
		}
		if len(vars) == 0 {
			return nil, pipeline.Fatal(pipeline.StageInspect, fmt.Errorf("granule %s has no variables", g.ID))
		}

		for _, v := range vars {
			layer := layerRun{
				svc:    s,
				msg:    msg,
				box:    box,
				dir:    dir,
				source: art.Path,
				name:   v.Name,
				result: &result,
			}
			in := domain.Artifact{Path: art.Path, LayerID: g.ID + "__" + v.Name, Stage: pipeline.StageDownload}

			p := pipeline.New(layer.stages()...).Observe(observers...)
			if _, err := p.Run(ctx, in); err != nil {
				return nil, err
			}
			layers = append(layers, in.LayerID)
			footprints = append(footprints, layer.footprints...)
		}
	}

	if result == "" {
		return nil, pipeline.Fatal(pipeline.StageMerge, errors.New("no layers produced"))
	}

	final := finalRun{svc: s, msg: msg, name: job.ResultName(), dir: dir, format: out, layers: layers}
	p := pipeline.New(final.stages()...).Observe(observers...)
	staged, err := p.Run(ctx, domain.Artifact{Path: result, Stage: pipeline.StageMerge, Bands: layers, MIME: out.MIME})
	if err != nil {
		return nil, err
	}

	return &domain.Result{
		JobID:      job.ID,
		URL:        staged.Path,
		MIME:       out.MIME,
		Bands:      layers,
		Footprints: footprints,
	}, nil
}

func (s *TransformService) download(ctx context.Context, g domain.Granule, dir string, observers []pipeline.Observer) (domain.Artifact, error) {
	p := pipeline.New(pipeline.Func(pipeline.StageDownload, func(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
		local, err := s.downloader.Download(ctx, g.URL, dir)
		if err != nil {
			err = fmt.Errorf("download %s: %w", g.URL, err)
			if permanent(err) {
				return in, pipeline.Fatal(pipeline.StageDownload, err)
			}
			return in, pipeline.Recoverable(pipeline.StageDownload, err)
		}
		return in.With(pipeline.StageDownload, local), nil
	})).Observe(observers...)
	return p.Run(ctx, domain.Artifact{Path: g.URL, LayerID: g.ID})
}

// permanent reports whether a downloader marked err as one retrying cannot fix.
// Transport errors only answer Temporary, so they stay recoverable.
func permanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}

// variables returns the variables requested for src, or every variable in
// the file when none were requested: subdatasets for NetCDF/HDF, band
// descriptions for GeoTIFF.
func (s *TransformService) variables(ctx context.Context, src domain.Source, path string) ([]domain.Variable, error) {
	if len(src.Variables) > 0 {
		return src.Variables, nil
	}

	info, err := s.inspector.Inspect(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", path, err)
	}

	var vars []domain.Variable
	for _, sd := range info.Subdatasets {
		vars = append(vars, domain.Variable{Name: sd[strings.LastIndex(sd, ":")+1:]})
	}
	if len(vars) > 0 {
		return vars, nil
	}
	for _, b := range info.Bands {
		vars = append(vars, domain.Variable{Name: b})
	}
	return vars, nil
}

// layerRun builds the stages that turn one variable of a granule into a
// band of the result.
type layerRun struct {
	svc    *TransformService
	msg    *domain.Message
	box    *orb.Bound
	dir    string
	source string
	name   string
	result *string

	band       int
	footprints []orb.Bound
}

func (l *layerRun) stages() []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.Func(pipeline.StageInspect, l.inspect),
		pipeline.Func(pipeline.StageConvert, l.convert),
		pipeline.Func(pipeline.StageSubset, l.subset),
		pipeline.Func(pipeline.StageReproject, l.reproject),
		pipeline.Func(pipeline.StageResize, l.resize),
		pipeline.Func(pipeline.StageMerge, l.merge),
	}
}

func (l *layerRun) file(in domain.Artifact, suffix string) string {
	return filepath.Join(l.dir, fileSafe(in.LayerID)+"__"+suffix+".tif")
}

// inspect resolves the GDAL dataset name holding the variable.
func (l *layerRun) inspect(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
	info, err := l.svc.inspector.Inspect(ctx, l.source)
	if err != nil {
		return in, pipeline.Recoverable(pipeline.StageInspect, err)
	}

	if len(info.Subdatasets) == 0 {
		// Variables are bands of a single dataset.
		idx := slices.Index(info.Bands, l.name)
		if idx < 0 {
			return in, pipeline.Fatal(pipeline.StageInspect, fmt.Errorf("invalid layer: %s", l.name))
		}
		l.band = idx + 1
		return in.With(pipeline.StageInspect, l.source), nil
	}

	format, err := l.svc.inspector.LayerFormat(ctx, l.source, l.name)
	if err != nil {
		return in, pipeline.Fatal(pipeline.StageInspect, err)
	}
	return in.With(pipeline.StageInspect, strings.ReplaceAll(format, "{}", l.source)), nil
}

func (l *layerRun) convert(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
	dst := l.file(in, "converted")
	args := []string{"-of", "GTiff"}
	if l.band > 0 {
		args = append(args, "-b", strconv.Itoa(l.band))
	}
	args = append(args, in.Path, dst)
	if _, err := l.svc.runner.Run(ctx, "gdal_translate", args...); err != nil {
		return in, pipeline.Recoverable(pipeline.StageConvert, err)
	}
	return in.With(pipeline.StageConvert, dst), nil
}

func (l *layerRun) subset(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
	out, fps, err := l.svc.subsets.Subset(ctx, in, l.box, l.dir)
	if err != nil {
		return in, err
	}
	l.footprints = fps
	return out, nil
}

func (l *layerRun) reproject(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
	srs := l.msg.Format.TargetSRS()
	if srs == "" {
		return in, nil
	}
	dst := l.file(in, "reprojected")
	if _, err := l.svc.runner.Run(ctx, "gdalwarp", "-t_srs", srs, in.Path, dst); err != nil {
		return in, pipeline.Recoverable(pipeline.StageReproject, err)
	}
	return in.With(pipeline.StageReproject, dst), nil
}

func (l *layerRun) resize(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
	f := l.msg.Format
	if f.Width == 0 && f.Height == 0 {
		return in, nil
	}
	dst := l.file(in, "resized")
	_, err := l.svc.runner.Run(ctx, "gdal_translate",
		"-outsize", strconv.Itoa(f.Width), strconv.Itoa(f.Height), in.Path, dst)
	if err != nil {
		return in, pipeline.Recoverable(pipeline.StageResize, err)
	}
	return in.With(pipeline.StageResize, dst), nil
}

// merge appends the layer to the result file as a new band.
func (l *layerRun) merge(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
	dst := filepath.Join(l.dir, "result.tif")
	tiff, _ := domain.LookupMIME("image/tiff")

	if *l.result == "" {
		args := append([]string{"-of", "GTiff"}, tiff.Options...)
		args = append(args, in.Path, dst)
		if _, err := l.svc.runner.Run(ctx, "gdal_translate", args...); err != nil {
			return in, pipeline.Recoverable(pipeline.StageMerge, err)
		}
		*l.result = dst
		return in.With(pipeline.StageMerge, dst), nil
	}

	tmp := filepath.Join(l.dir, "tmp-result.tif")
	args := append([]string{"-o", tmp, "-of", "GTiff", "-separate"}, tiff.Options...)
	args = append(args, dst, in.Path)
	if _, err := l.svc.runner.Run(ctx, "gdal_merge.py", args...); err != nil {
		return in, pipeline.Recoverable(pipeline.StageMerge, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return in, pipeline.Recoverable(pipeline.StageMerge, fmt.Errorf("replace result: %w", err))
	}
	return in.With(pipeline.StageMerge, dst), nil
}

// finalRun builds the stages applied once to the assembled result.
type finalRun struct {
	svc    *TransformService
	msg    *domain.Message
	name   string
	dir    string
	format domain.OutputFormat
	layers []string
}

func (f *finalRun) stages() []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.Func(pipeline.StageDescribe, f.describe),
		pipeline.Func(pipeline.StageReformat, f.reformat),
		pipeline.Func(pipeline.StageStage, f.stage),
	}
}

// describe names every band of the result after its layer.
func (f *finalRun) describe(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
	if err := writeBandDescriptions(in.Path, f.layers); err != nil {
		return in, pipeline.Recoverable(pipeline.StageDescribe, err)
	}
	dst := filepath.Join(f.dir, "described.tif")
	tiff, _ := domain.LookupMIME("image/tiff")
	args := append([]string{"-of", "GTiff"}, tiff.Options...)
	args = append(args, in.Path, dst)
	if _, err := f.svc.runner.Run(ctx, "gdal_translate", args...); err != nil {
		return in, pipeline.Recoverable(pipeline.StageDescribe, err)
	}
	return in.With(pipeline.StageDescribe, dst), nil
}

func (f *finalRun) reformat(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
	if f.format.Driver == "GTiff" {
		return in, nil
	}
	dst := filepath.Join(f.dir, "translated."+f.format.Extension)
	args := append([]string{"-of", f.format.Driver}, f.format.Options...)
	args = append(args, "-scale", in.Path, dst)
	if _, err := f.svc.runner.Run(ctx, "gdal_translate", args...); err != nil {
		return in, pipeline.Recoverable(pipeline.StageReformat, err)
	}
	out := in.With(pipeline.StageReformat, dst)
	out.MIME = f.format.MIME
	return out, nil
}

func (f *finalRun) stage(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
	name := f.name + "." + f.format.Extension
	url, err := f.svc.stager.Stage(ctx, in.Path, f.msg.StagingLocation, name, f.format.MIME)
	if err != nil {
		return in, pipeline.Recoverable(pipeline.StageStage, fmt.Errorf("stage %s: %w", name, err))
	}
	return in.With(pipeline.StageStage, url), nil
}

// fileSafe makes a layer ID usable as a file name.
func fileSafe(layerID string) string {
	return strings.ReplaceAll(layerID, "/", "_")
}
