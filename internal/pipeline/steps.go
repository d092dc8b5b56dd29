package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/canasat/internal/logger"
	"github.com/forest-guardian/canasat/internal/sentinel"
	"github.com/forest-guardian/canasat/internal/utils"
	"github.com/rs/zerolog"
)

const (
	StepResolveProduct  = "resolve_product"
	StepExtractBands    = "extract_bands"
	StepComputeIndices  = "compute_indices"
	StepRenderComposite = "render_multi_index_map"

	CompositeMapName = "compare_indices_all.html"
)

type Catalog interface {
	Authenticate(ctx context.Context) (*sentinel.Session, error)
	QueryLatest(ctx context.Context, s *sentinel.Session, footprintWKT string, start, end time.Time, cloud sentinel.CloudRange) (*sentinel.Product, error)
	Download(ctx context.Context, s *sentinel.Session, p sentinel.Product, destDir string) (string, error)
}

type BandExtractor interface {
	Extract(ctx context.Context, src, dest string) (sentinel.BandSet, error)
}

type IndexComputer interface {
	Compute(ctx context.Context, bands sentinel.BandSet, outputDir string, names []string) (map[string]string, error)
}

type CompositeRenderer interface {
	Render(indexPaths []string, outputPath string, overlayPaths []string) (string, error)
}

// ResolveProduct uses the local SAFE path when given, otherwise the newest
// matching product from the catalog.
type ResolveProduct struct {
	Catalog Catalog
	Logger  zerolog.Logger
}

func (s *ResolveProduct) Name() string { return StepResolveProduct }

func (s *ResolveProduct) Run(ctx context.Context, wc *Context) error {
	log := logger.FromContext(ctx, &s.Logger)

	if wc.Params.SafePath != "" {
		if _, err := os.Stat(wc.Params.SafePath); err != nil {
			return fmt.Errorf("failed to open SAFE path %s: %w", wc.Params.SafePath, err)
		}
		wc.ProductPath = wc.Params.SafePath
		wc.ProductTitle = sentinel.ProductTitle(wc.Params.SafePath)
		log.Info().Str("path", wc.ProductPath).Msg("using local product")
		return nil
	}

	if s.Catalog == nil {
		return fmt.Errorf("%w: no catalog credentials and no SAFE path", ErrPrecondition)
	}
	if wc.AOI == nil {
		return fmt.Errorf("%w: area of interest not loaded", ErrPrecondition)
	}

	session, err := s.Catalog.Authenticate(ctx)
	if err != nil {
		return err
	}
	product, err := s.Catalog.QueryLatest(ctx, session, wc.AOI.WKT(), wc.Params.Start, wc.Params.End, wc.Params.Cloud)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("%w between %s and %s", ErrNoProduct,
			wc.Params.Start.Format(time.DateOnly), wc.Params.End.Format(time.DateOnly))
	}
	log.Info().Str("product", product.Name).Str("date", product.ContentDate.Start).Msg("product selected")

	path, err := s.Catalog.Download(ctx, session, *product, wc.Dirs.DataRaw)
	if err != nil {
		return err
	}
	wc.ProductPath = path
	wc.ProductTitle = product.Title()
	return nil
}

type ExtractBands struct {
	Extractor BandExtractor
}

func (s *ExtractBands) Name() string { return StepExtractBands }

func (s *ExtractBands) Run(ctx context.Context, wc *Context) error {
	if wc.ProductPath == "" || wc.ProductTitle == "" {
		return fmt.Errorf("%w: product not resolved", ErrPrecondition)
	}
	ctx = logger.WithProduct(ctx, wc.ProductTitle)
	bands, err := s.Extractor.Extract(ctx, wc.ProductPath, filepath.Join(wc.Dirs.DataProcessed, wc.ProductTitle))
	if err != nil {
		return err
	}
	wc.Bands = bands
	return nil
}

type ComputeIndices struct {
	Calculator IndexComputer
}

func (s *ComputeIndices) Name() string { return StepComputeIndices }

func (s *ComputeIndices) Run(ctx context.Context, wc *Context) error {
	if len(wc.Bands) == 0 {
		return fmt.Errorf("%w: no bands extracted", ErrPrecondition)
	}
	if wc.ProductTitle == "" {
		return fmt.Errorf("%w: product title unknown", ErrPrecondition)
	}
	ctx = logger.WithProduct(ctx, wc.ProductTitle)
	outDir := filepath.Join(wc.Dirs.DataProcessed, wc.ProductTitle, "indices")
	indices, err := s.Calculator.Compute(ctx, wc.Bands, outDir, wc.Params.Indices)
	if err != nil {
		return err
	}
	wc.Indices = indices
	return nil
}

// RenderComposite draws every computed index as one layer of a single map,
// clipped to the area of interest.
type RenderComposite struct {
	Renderer CompositeRenderer
	Logger   zerolog.Logger
}

func (s *RenderComposite) Name() string { return StepRenderComposite }

func (s *RenderComposite) Run(ctx context.Context, wc *Context) error {
	if len(wc.Indices) == 0 {
		return fmt.Errorf("%w: no indices computed", ErrPrecondition)
	}
	paths := utils.SortedValues(wc.Indices)

	var overlays []string
	if wc.AOI != nil && wc.AOI.Path != "" {
		overlays = []string{wc.AOI.Path}
	}
	out, err := s.Renderer.Render(paths, filepath.Join(wc.Dirs.Maps, CompositeMapName), overlays)
	if err != nil {
		return err
	}
	wc.RegisterMap(out)
	logger.FromContext(ctx, &s.Logger).Info().Str("path", out).Int("layers", len(paths)).Msg("composite map written")
	return nil
}
