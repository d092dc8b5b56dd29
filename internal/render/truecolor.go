package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/forest-guardian/canasat/internal/aoi"
	"github.com/forest-guardian/canasat/internal/document"
	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
)

// TrueColorLayer is an opaque RGB composite and where to draw it.
type TrueColorLayer struct {
	Image    *image.RGBA
	Bounds   orb.Bound
	Overlays []*aoi.Overlay
}

type TrueColorRenderer struct {
	loader raster.Loader
	opts   TrueColorOptions
	logger zerolog.Logger
}

func NewTrueColorRenderer(loader raster.Loader, opts TrueColorOptions, logger zerolog.Logger) *TrueColorRenderer {
	return &TrueColorRenderer{loader: loader, opts: opts, logger: logger}
}

// Prepare composes the three bands on the red band's grid. With overlays
// the bands are read only inside the padded overlay box.
func (r *TrueColorRenderer) Prepare(redPath, greenPath, bluePath string, overlayPaths []string) (*TrueColorLayer, error) {
	overlays, err := aoi.LoadOverlays(overlayPaths)
	if err != nil {
		return nil, err
	}
	clip := raster.ComputeClipBounds(aoi.Geometries(overlays), r.opts.PaddingFactor)

	red, err := r.loader.Load(redPath, clip)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", redPath, err)
	}
	channels := []*raster.Grid{red}
	for _, path := range []string{greenPath, bluePath} {
		g, err := r.loader.Load(path, clip)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		if !g.SameGrid(red) {
			if g, err = raster.ReprojectToGrid(g, red.Transform, red.Width, red.Height); err != nil {
				return nil, fmt.Errorf("failed to align %s: %w", path, err)
			}
		}
		channels = append(channels, g)
	}
	if r.opts.Sharpen {
		for i, g := range channels {
			channels[i] = raster.Sharpen(g, r.opts.SharpenRadius, r.opts.SharpenAmount)
		}
	}

	img, err := r.compose(channels)
	if err != nil {
		return nil, err
	}
	bounds := red.Bounds()
	if clip != nil {
		bounds = *clip
	}
	r.logger.Debug().Int("width", red.Width).Int("height", red.Height).Msg("true color prepared")
	return &TrueColorLayer{Image: img, Bounds: bounds, Overlays: overlays}, nil
}

func (r *TrueColorRenderer) compose(channels []*raster.Grid) (*image.RGBA, error) {
	stretched := make([]*raster.Grid, len(channels))
	for i, g := range channels {
		s, err := stretch(g, r.opts.StretchLower, r.opts.StretchUpper)
		if err != nil {
			return nil, err
		}
		stretched[i] = s
	}
	if r.opts.ChannelBalance {
		balance(stretched)
	}
	if sigma := math.Max(r.opts.SmoothRadius, 0); sigma > 0 {
		for i, g := range stretched {
			stretched[i] = raster.SmoothEdge(g, sigma, raster.EdgeNearest)
		}
	}
	saturate(stretched, r.opts.SaturationBoost)
	applyGamma(stretched, r.opts.Gamma)

	ref := stretched[0]
	img := image.NewRGBA(image.Rect(0, 0, ref.Width, ref.Height))
	for row := 0; row < ref.Height; row++ {
		for col := 0; col < ref.Width; col++ {
			i := row*ref.Width + col
			img.SetRGBA(col, row, color.RGBA{
				R: to8bit(stretched[0].Data[i]),
				G: to8bit(stretched[1].Data[i]),
				B: to8bit(stretched[2].Data[i]),
				A: 255,
			})
		}
	}
	return img, nil
}

// stretch maps the [lower, upper] percentile range of the finite samples to
// [0, 1]. Non-finite pixels become 0.
func stretch(g *raster.Grid, lower, upper float64) (*raster.Grid, error) {
	finite := g.Finite()
	if len(finite) == 0 {
		return nil, fmt.Errorf("%w: band has no valid values to render", raster.ErrNoValidData)
	}
	vmin := raster.Percentile(finite, lower)
	vmax := raster.Percentile(finite, upper)
	if isClose(vmin, vmax) {
		vmax = vmin + 1e-3
	}
	out := g.Clone()
	for i, v := range out.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out.Data[i] = 0
			continue
		}
		out.Data[i] = clamp01((v - vmin) / (vmax - vmin))
	}
	return out, nil
}

// balance scales each channel so its mean matches the mean of the channel
// means. Channels with a non-positive mean are left alone.
func balance(channels []*raster.Grid) {
	means := make([]float64, len(channels))
	var total float64
	for i, g := range channels {
		var sum float64
		for _, v := range g.Data {
			sum += v
		}
		means[i] = 1
		if len(g.Data) > 0 {
			means[i] = sum / float64(len(g.Data))
		}
		total += means[i]
	}
	target := total / float64(len(channels))
	for i, g := range channels {
		if means[i] <= 0 {
			continue
		}
		scale := target / means[i]
		for j := range g.Data {
			g.Data[j] *= scale
		}
	}
}

func saturate(channels []*raster.Grid, boost float64) {
	boost = math.Max(boost, 0)
	if boost <= 0 || isClose(boost, 1) {
		return
	}
	n := len(channels[0].Data)
	for i := 0; i < n; i++ {
		var mean float64
		for _, g := range channels {
			mean += g.Data[i]
		}
		mean /= float64(len(channels))
		for _, g := range channels {
			g.Data[i] = clamp01(mean + (g.Data[i]-mean)*boost)
		}
	}
}

func applyGamma(channels []*raster.Grid, gamma float64) {
	if gamma <= 0 || isClose(gamma, 1) {
		return
	}
	for _, g := range channels {
		for i, v := range g.Data {
			g.Data[i] = math.Pow(clamp01(v), 1/gamma)
		}
	}
}

// isClose mirrors the usual relative/absolute float comparison
// (|a-b| <= 1e-8 + 1e-5*|b|).
func isClose(a, b float64) bool {
	return math.Abs(a-b) <= 1e-8+1e-5*math.Abs(b)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// to8bit truncates like a float-to-uint8 cast after clipping to [0, 1].
func to8bit(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(clamp01(v) * 255)
}

// Map describes the true-colour document.
func (r *TrueColorRenderer) Map(layer *TrueColorLayer) (*document.Map, error) {
	var tiles []document.TileLayer
	native := r.opts.MaxNativeZoom
	if r.opts.ShowEsri {
		tiles = append(tiles, esriLayer(0, r.opts.MaxZoom, native, r.opts.EsriOpacity))
	}
	if !equalFoldNone(r.opts.Tiles) {
		t, err := tileLayer(r.opts.Tiles, r.opts.TileAttr, 0, r.opts.MaxZoom, native)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, t)
	}
	img, err := imageOverlay("truecolor", "True color", layer.Image, layer.Bounds, true)
	if err != nil {
		return nil, err
	}
	geo, _, err := overlayLayers(layer.Overlays, "aoi")
	if err != nil {
		return nil, err
	}
	for i := range geo {
		geo[i].Color = aoiColor
		geo[i].FillOpacity = 0
	}
	fit := layer.Bounds
	return &document.Map{
		Title:   "True color",
		Center:  layer.Bounds.Center(),
		Zoom:    r.opts.ZoomStart,
		MinZoom: r.opts.MinZoom,
		MaxZoom: r.opts.MaxZoom,
		Fit:     &fit,
		Tiles:   tiles,
		Images:  []document.ImageOverlay{img},
		GeoJSON: geo,
		Legend: &document.Legend{
			Caption: fmt.Sprintf("Composicao RGB (%d-%d%%)", int(r.opts.StretchLower), int(r.opts.StretchUpper)),
			Colors:  []string{"#000000", "#FFFFFF"},
			Min:     0,
			Max:     255,
		},
		LayerControl: true,
	}, nil
}

func (r *TrueColorRenderer) RenderHTML(layer *TrueColorLayer, outputPath string) error {
	m, err := r.Map(layer)
	if err != nil {
		return err
	}
	if err := document.WriteMap(outputPath, m); err != nil {
		return err
	}
	r.logger.Info().Str("path", outputPath).Msg("true color map written")
	return nil
}
