package sentinel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/rs/zerolog"
)

const DefaultReferenceBand = "nir"

var (
	ErrNoIndicesRequested = errors.New("sentinel: no spectral indices requested")
	ErrCRSMismatch        = errors.New("sentinel: band CRS differs from the reference band and the store cannot reproject")
)

type UnknownIndexError struct {
	Names []string
}

func (e *UnknownIndexError) Error() string {
	return fmt.Sprintf("sentinel: unsupported indices requested: %s", strings.Join(e.Names, ", "))
}

type MissingBandError struct {
	Bands []string
}

func (e *MissingBandError) Error() string {
	return fmt.Sprintf("sentinel: missing bands for analysis: %s", strings.Join(e.Bands, ", "))
}

// Reprojector is implemented by stores that can warp a raster onto a grid
// in another coordinate system.
type Reprojector interface {
	ReadOnto(path string, ref *raster.Grid) (*raster.Grid, error)
}

// RasterStore reads a band on its native grid and writes single-band
// float32 rasters.
type RasterStore interface {
	Read(path string) (*raster.Grid, error)
	Write(path string, g *raster.Grid) error
}

type Calculator struct {
	store     RasterStore
	reference string
	logger    zerolog.Logger
}

type CalculatorOption func(*Calculator)

// WithReferenceBand sets the band whose grid every other band is resampled
// onto. Defaults to "nir".
func WithReferenceBand(alias string) CalculatorOption {
	return func(c *Calculator) {
		c.reference = alias
	}
}

func WithCalculatorLogger(l zerolog.Logger) CalculatorOption {
	return func(c *Calculator) {
		c.logger = l
	}
}

func NewCalculator(store RasterStore, opts ...CalculatorOption) *Calculator {
	c := &Calculator{store: store, reference: DefaultReferenceBand, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve validates a request. nil selects every index; duplicates collapse
// keeping the first occurrence.
func Resolve(names []string) ([]Index, error) {
	if names == nil {
		return AllIndices(), nil
	}
	if len(names) == 0 {
		return nil, ErrNoIndicesRequested
	}
	seen := map[string]bool{}
	var out []Index
	var unknown []string
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		idx, ok := ParseIndex(n)
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		out = append(out, idx)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &UnknownIndexError{Names: unknown}
	}
	return out, nil
}

// RequiredBands is the union of the bands the indices read, sorted.
func RequiredBands(indices []Index) []string {
	set := map[string]bool{}
	for _, idx := range indices {
		for _, b := range idx.Spec().Bands {
			set[b] = true
		}
	}
	out := make([]string, 0, len(set))
	for b := range set {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Compute writes <outputDir>/<name>.tif for each requested index and returns
// the paths by index name. Request and band checks run before any I/O.
func (c *Calculator) Compute(ctx context.Context, bands BandSet, outputDir string, names []string) (map[string]string, error) {
	indices, err := Resolve(names)
	if err != nil {
		return nil, err
	}
	required := RequiredBands(indices)
	if missing := bands.Missing(append([]string{c.reference}, required...)...); len(missing) > 0 {
		return nil, &MissingBandError{Bands: missing}
	}

	ref, err := c.store.Read(bands[c.reference])
	if err != nil {
		return nil, fmt.Errorf("failed to read reference band %s: %w", c.reference, err)
	}
	arrays := map[string]*raster.Grid{c.reference: ref}
	for _, alias := range required {
		if alias == c.reference {
			continue
		}
		g, err := c.loadAligned(bands[alias], ref)
		if err != nil {
			return nil, fmt.Errorf("failed to load band %s: %w", alias, err)
		}
		arrays[alias] = g
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	outputs := make(map[string]string, len(indices))
	for _, idx := range indices {
		if err := ctx.Err(); err != nil {
			return outputs, err
		}
		start := time.Now()
		spec := idx.Spec()
		result := apply(spec, arrays, ref)
		path := filepath.Join(outputDir, spec.Name+".tif")
		if err := c.store.Write(path, result); err != nil {
			return outputs, fmt.Errorf("failed to write index %s: %w", spec.Name, err)
		}
		outputs[spec.Name] = path
		c.logger.Info().Str("index", spec.Name).Str("path", path).Dur("took", time.Since(start)).Msg("index written")
	}
	return outputs, nil
}

func (c *Calculator) loadAligned(path string, ref *raster.Grid) (*raster.Grid, error) {
	g, err := c.store.Read(path)
	if err != nil {
		return nil, err
	}
	if g.SameGrid(ref) {
		return g, nil
	}
	if g.Projection != ref.Projection {
		rp, ok := c.store.(Reprojector)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrCRSMismatch, path)
		}
		c.logger.Debug().Str("path", path).Msg("reprojecting band onto reference grid")
		return rp.ReadOnto(path, ref)
	}
	c.logger.Debug().Str("path", path).Msg("resampling band onto reference grid")
	return raster.ReprojectToGrid(g, ref.Transform, ref.Width, ref.Height)
}

func apply(spec IndexSpec, arrays map[string]*raster.Grid, ref *raster.Grid) *raster.Grid {
	out := &raster.Grid{
		Width:      ref.Width,
		Height:     ref.Height,
		Data:       make([]float64, len(ref.Data)),
		Transform:  ref.Transform,
		Projection: ref.Projection,
	}
	inputs := make([]*raster.Grid, len(spec.Bands))
	for i, b := range spec.Bands {
		inputs[i] = arrays[b]
	}
	v := make([]float64, len(inputs))
	for p := range out.Data {
		for i, g := range inputs {
			v[i] = g.Data[p]
		}
		out.Data[p] = spec.Formula(v)
	}
	return out
}
