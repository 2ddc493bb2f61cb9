// Package pipeline runs the per-day warehouse stages in dependency order.
//
// Stages form a graph; each execution level runs concurrently once the
// previous level has finished. A level with a failed stage stops the run and
// reports every stage error of that level.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// StageFunc executes one stage for a simulated day.
type StageFunc func(ctx context.Context, day time.Time) error

// Stage is a named unit of work and the stages whose output it reads.
type Stage struct {
	Name      string
	DependsOn []string
	Run       StageFunc
}

// StageResult records the outcome of one stage.
type StageResult struct {
	Name     string
	Level    int
	Duration time.Duration
	Err      error
}

// StageError is returned when a stage fails.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline is a validated stage graph.
type Pipeline struct {
	stages      map[string]Stage
	levels      [][]string
	maxParallel int
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxParallel caps the stages of one level running at once (0 = all).
func WithMaxParallel(n int) Option {
	return func(p *Pipeline) { p.maxParallel = n }
}

// WithLogger sets the logger used for stage progress.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New builds a pipeline, rejecting duplicate names, unknown dependencies, and cycles.
func New(stages []Stage, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		stages: make(map[string]Stage, len(stages)),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}

	g := newGraph()
	for _, st := range stages {
		if st.Name == "" {
			return nil, errors.New("stage name is required")
		}
		if st.Run == nil {
			return nil, fmt.Errorf("stage %s has no run function", st.Name)
		}
		if _, dup := p.stages[st.Name]; dup {
			return nil, fmt.Errorf("duplicate stage %s", st.Name)
		}
		p.stages[st.Name] = st
		g.addNode(st.Name)
	}
	for _, st := range stages {
		for _, dep := range st.DependsOn {
			if err := g.addEdge(dep, st.Name); err != nil {
				return nil, err
			}
		}
	}

	levels, err := g.levels()
	if err != nil {
		return nil, err
	}
	p.levels = levels
	return p, nil
}

// Levels returns the stage names grouped by execution level.
func (p *Pipeline) Levels() [][]string {
	out := make([][]string, len(p.levels))
	for i, level := range p.levels {
		out[i] = append([]string(nil), level...)
	}
	return out
}

// Run executes every stage for day. Results are returned for every stage that
// ran, in level order, even when the run fails.
func (p *Pipeline) Run(ctx context.Context, day time.Time) ([]StageResult, error) {
	var all []StageResult
	for levelIdx, level := range p.levels {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		results := make([]StageResult, len(level))
		var g errgroup.Group
		if p.maxParallel > 0 {
			g.SetLimit(p.maxParallel)
		}
		for i, name := range level {
			st := p.stages[name]
			g.Go(func() error {
				start := time.Now()
				err := st.Run(ctx, day)
				results[i] = StageResult{Name: name, Level: levelIdx, Duration: time.Since(start), Err: err}
				p.logger.Debug("stage finished",
					slog.String("stage", name),
					slog.String("day", day.Format(time.DateOnly)),
					slog.Duration("duration", results[i].Duration),
					slog.Any("error", err))
				return nil
			})
		}
		_ = g.Wait()
		all = append(all, results...)

		var errs []error
		for _, r := range results {
			if r.Err != nil {
				errs = append(errs, &StageError{Stage: r.Name, Err: r.Err})
			}
		}
		if len(errs) > 0 {
			return all, errors.Join(errs...)
		}
	}
	return all, nil
}
