package pipeline

import (
	"context"

	"github.com/forest-guardian/canasat/internal/metrics"
	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/forest-guardian/canasat/internal/render"
	"github.com/rs/zerolog"
)

// Workflow wires the four standard steps to their collaborators. Catalog may
// be nil when every run supplies a SAFE path.
type Workflow struct {
	Dirs       Dirs
	Catalog    Catalog
	Extractor  BandExtractor
	Calculator IndexComputer
	Loader     raster.Loader
	Logger     zerolog.Logger
	Metrics    *metrics.Provider

	// NewRenderer overrides the composite renderer built from the run
	// parameters.
	NewRenderer func(Parameters) CompositeRenderer
}

// CompositeOptions maps run parameters onto the multi-layer renderer.
func CompositeOptions(p Parameters) render.MultiOptions {
	opts := render.DefaultMultiOptions()
	opts.Tiles = p.Tiles
	opts.TileAttr = p.TileAttr
	opts.PaddingFactor = p.PaddingFactor
	opts.Clip = p.Clip
	opts.Upsample = p.Upsample
	opts.SmoothRadius = p.SmoothRadius
	opts.Sharpen = p.Sharpen
	opts.SharpenRadius = p.SharpenRadius
	opts.SharpenAmount = p.SharpenAmount
	opts.EnablePanel = p.Panel
	return opts
}

func (w *Workflow) renderer(p Parameters) CompositeRenderer {
	if w.NewRenderer != nil {
		return w.NewRenderer(p)
	}
	return render.NewMultiRenderer(w.Loader, CompositeOptions(p), w.Logger)
}

func (w *Workflow) Pipeline(p Parameters) *Pipeline {
	steps := []Step{
		&ResolveProduct{Catalog: w.Catalog, Logger: w.Logger},
		&ExtractBands{Extractor: w.Extractor},
		&ComputeIndices{Calculator: w.Calculator},
		&RenderComposite{Renderer: w.renderer(p), Logger: w.Logger},
	}
	return New(steps, WithLogger(w.Logger), WithMetrics(w.Metrics))
}

// Run builds a fresh context for the parameters and executes the pipeline.
func (w *Workflow) Run(ctx context.Context, p Parameters) (*Context, error) {
	wc, err := NewContext(p, w.Dirs)
	if err != nil {
		return nil, err
	}
	return w.Pipeline(p).Run(ctx, wc)
}
