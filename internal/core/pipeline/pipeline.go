// Package pipeline chains the file transformations applied to each granule.
//
// Every stage takes an artifact and returns the artifact it produced. A stage
// whose inputs do not call for any work returns its input unchanged.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
)

// Stage names.
const (
	StageDownload  = "download"
	StageInspect   = "inspect"
	StageConvert   = "convert"
	StageSubset    = "subset"
	StageReproject = "reproject"
	StageResize    = "resize"
	StageMerge     = "merge"
	StageDescribe  = "describe"
	StageReformat  = "reformat"
	StageStage     = "stage"
)

// Stage is one step of the pipeline.
type Stage interface {
	Name() string
	Run(ctx context.Context, in domain.Artifact) (domain.Artifact, error)
}

// Func adapts a function to the Stage interface.
func Func(name string, fn func(ctx context.Context, in domain.Artifact) (domain.Artifact, error)) Stage {
	return funcStage{name: name, fn: fn}
}

type funcStage struct {
	name string
	fn   func(ctx context.Context, in domain.Artifact) (domain.Artifact, error)
}

func (s funcStage) Name() string { return s.name }

func (s funcStage) Run(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
	return s.fn(ctx, in)
}

// Observer is notified around every stage run.
type Observer interface {
	// StageStarted may return a derived context for the stage, e.g. one
	// carrying a trace span.
	StageStarted(ctx context.Context, stage string, in domain.Artifact) context.Context
	StageFinished(ctx context.Context, stage string, out domain.Artifact, elapsed time.Duration, err error)
}

// Pipeline runs stages in order.
type Pipeline struct {
	stages    []Stage
	observers []Observer
}

// New creates a Pipeline.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Observe registers observers and returns p.
func (p *Pipeline) Observe(obs ...Observer) *Pipeline {
	p.observers = append(p.observers, obs...)
	return p
}

// Stages returns the stage names in run order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run threads in through every stage and returns the final artifact.
// Errors are returned as *StageError; unclassified stage errors are
// treated as recoverable.
func (p *Pipeline) Run(ctx context.Context, in domain.Artifact) (domain.Artifact, error) {
	art := in
	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return art, Recoverable(s.Name(), err)
		}

		out, err := p.runStage(ctx, s, art)
		if err != nil {
			var se *StageError
			if !errors.As(err, &se) {
				err = Recoverable(s.Name(), err)
			}
			return art, err
		}
		art = out
	}
	return art, nil
}

func (p *Pipeline) runStage(ctx context.Context, s Stage, in domain.Artifact) (domain.Artifact, error) {
	stageCtx := ctx
	for _, o := range p.observers {
		stageCtx = o.StageStarted(stageCtx, s.Name(), in)
	}

	start := time.Now()
	out, err := s.Run(stageCtx, in)
	elapsed := time.Since(start)

	for _, o := range p.observers {
		o.StageFinished(stageCtx, s.Name(), out, elapsed, err)
	}
	return out, err
}
