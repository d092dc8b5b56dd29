// Package pipeline runs the ordered workflow that turns an area of interest
// and a date range into index rasters and a composite map.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/forest-guardian/canasat/internal/aoi"
	"github.com/forest-guardian/canasat/internal/logger"
	"github.com/forest-guardian/canasat/internal/metrics"
	"github.com/forest-guardian/canasat/internal/sentinel"
	"github.com/rs/zerolog"
)

var (
	ErrPrecondition = errors.New("pipeline: precondition not met")
	ErrNoProduct    = errors.New("pipeline: no Sentinel-2 product found for the given parameters")
)

// StepError carries the name of the step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Parameters struct {
	Start    time.Time
	End      time.Time
	AOIPath  string
	Cloud    sentinel.CloudRange
	Indices  []string
	SafePath string

	Tiles         string
	TileAttr      string
	PaddingFactor float64
	Clip          bool
	Upsample      float64
	SmoothRadius  float64
	Sharpen       bool
	SharpenRadius float64
	SharpenAmount float64
	Panel         bool
}

func DefaultParameters() Parameters {
	return Parameters{
		Cloud:         sentinel.CloudRange{Min: 0, Max: 30},
		Tiles:         "none",
		PaddingFactor: 0.3,
		Clip:          true,
		Upsample:      12,
		SmoothRadius:  1.0,
		Sharpen:       true,
		SharpenRadius: 1.2,
		SharpenAmount: 1.5,
	}
}

// Dirs are the filesystem roots a run writes under.
type Dirs struct {
	DataRaw       string
	DataProcessed string
	Maps          string
}

// Context is the state threaded through the steps of one run. It is owned
// by the caller of Run; steps mutate it but never retain it.
type Context struct {
	RunID  string
	Params Parameters
	Dirs   Dirs
	AOI    *aoi.AreaOfInterest

	ProductPath  string
	ProductTitle string
	Bands        sentinel.BandSet
	Indices      map[string]string
	Maps         []string
}

// NewContext validates the date range and loads the area of interest.
func NewContext(params Parameters, dirs Dirs) (*Context, error) {
	if params.End.Before(params.Start) {
		return nil, fmt.Errorf("invalid date range: %s is after %s",
			params.Start.Format(time.DateOnly), params.End.Format(time.DateOnly))
	}
	area, err := aoi.Load(params.AOIPath)
	if err != nil {
		return nil, err
	}
	return &Context{
		RunID:  logger.NewID(),
		Params: params,
		Dirs:   dirs,
		AOI:    area,
	}, nil
}

func (c *Context) RegisterMap(path string) {
	c.Maps = append(c.Maps, path)
}

type Step interface {
	Name() string
	Run(ctx context.Context, wc *Context) error
}

type Option func(*Pipeline)

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithMetrics(m *metrics.Provider) Option {
	return func(p *Pipeline) { p.metrics = m }
}

type Pipeline struct {
	steps   []Step
	logger  zerolog.Logger
	metrics *metrics.Provider
}

func New(steps []Step, opts ...Option) *Pipeline {
	p := &Pipeline{steps: steps, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Run executes the steps in order and stops at the first failure. The
// context is returned in both cases so callers can inspect partial results.
func (p *Pipeline) Run(ctx context.Context, wc *Context) (*Context, error) {
	ctx = logger.WithRunID(ctx, wc.RunID)
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return wc, &StepError{Step: step.Name(), Err: err}
		}

		stepCtx := logger.WithStep(ctx, step.Name())
		log := logger.FromContext(stepCtx, &p.logger)
		log.Info().Msg("step started")

		start := time.Now()
		err := step.Run(stepCtx, wc)
		took := time.Since(start)
		if p.metrics != nil {
			p.metrics.ObserveStep(step.Name(), took, err)
		}
		if err != nil {
			log.Error().Err(err).Dur("took", took).Msg("step failed")
			return wc, &StepError{Step: step.Name(), Err: err}
		}
		log.Info().Dur("took", took).Msg("step finished")
	}
	if p.metrics != nil {
		p.metrics.AddArtifacts("band", len(wc.Bands))
		p.metrics.AddArtifacts("index", len(wc.Indices))
		p.metrics.AddArtifacts("map", len(wc.Maps))
	}
	return wc, nil
}
