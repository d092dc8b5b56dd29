package render

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/forest-guardian/canasat/internal/aoi"
	"github.com/forest-guardian/canasat/internal/dataset"
	"github.com/forest-guardian/canasat/internal/document"
	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/forest-guardian/canasat/output"
	"github.com/rs/zerolog"
)

const previewQuality = 90

// IndexRenderer draws one index raster over a base map.
type IndexRenderer struct {
	loader raster.Loader
	opts   IndexOptions
	logger zerolog.Logger
}

func NewIndexRenderer(loader raster.Loader, opts IndexOptions, logger zerolog.Logger) *IndexRenderer {
	return &IndexRenderer{loader: loader, opts: opts, logger: logger}
}

func (r *IndexRenderer) Options() IndexOptions {
	return r.opts
}

// Prepare loads the raster (clipped to the padded overlay box when clipping
// is on) and runs it through the display pipeline.
func (r *IndexRenderer) Prepare(path string, overlayPaths []string) (*IndexLayer, error) {
	overlays, err := aoi.LoadOverlays(overlayPaths)
	if err != nil {
		return nil, err
	}
	geoms := aoi.Geometries(overlays)
	clip := clipBox(r.opts.BaseMapOptions, geoms)

	g, err := r.loader.Load(path, clip)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	g, err = processGrid(g, geoms, r.opts.BaseMapOptions)
	if err != nil {
		return nil, err
	}
	layer, err := colorize(stem(path), g, clip, overlays, r.opts)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().Str("layer", layer.Name).Int("width", g.Width).Int("height", g.Height).
		Float64("min", layer.Min).Float64("max", layer.Max).Msg("index layer prepared")
	return layer, nil
}

// Map describes the document for a prepared layer.
func (r *IndexRenderer) Map(layer *IndexLayer) (*document.Map, error) {
	tiles, err := baseTiles(r.opts.BaseMapOptions)
	if err != nil {
		return nil, err
	}
	name := strings.ToUpper(layer.Name)
	img, err := imageOverlay("index_0", name, layer.Image, layer.Bounds, true)
	if err != nil {
		return nil, err
	}
	geo, _, err := overlayLayers(layer.Overlays, "aoi")
	if err != nil {
		return nil, err
	}
	colors, err := legendColors(r.opts.Colormap)
	if err != nil {
		return nil, err
	}
	fit := layer.Bounds
	return &document.Map{
		Title:   name,
		Center:  layer.Bounds.Center(),
		Zoom:    r.opts.ZoomStart,
		MinZoom: r.opts.MinZoom,
		MaxZoom: r.opts.MaxZoom,
		Fit:     &fit,
		Tiles:   tiles,
		Images:  []document.ImageOverlay{img},
		GeoJSON: geo,
		Legend: &document.Legend{
			Caption: fmt.Sprintf("%s (%s)", name, r.opts.Colormap),
			Colors:  colors,
			Min:     layer.Min,
			Max:     layer.Max,
		},
		LayerControl: true,
	}, nil
}

func (r *IndexRenderer) RenderHTML(layer *IndexLayer, outputPath string) error {
	m, err := r.Map(layer)
	if err != nil {
		return err
	}
	if err := document.WriteMap(outputPath, m); err != nil {
		return err
	}
	r.logger.Info().Str("layer", layer.Name).Str("path", outputPath).Msg("index map written")
	return nil
}

// ExportCSV writes longitude,latitude,value for every finite pixel centre of
// the prepared grid.
func (r *IndexRenderer) ExportCSV(layer *IndexLayer, path string) (int, error) {
	n, err := dataset.ExportCSV(layer.Grid, path, true)
	if err != nil {
		return 0, err
	}
	r.logger.Info().Str("layer", layer.Name).Str("path", path).Int("rows", n).Msg("index CSV written")
	return n, nil
}

// ExportPoints writes the finite pixel centres as GeoJSON points carrying
// the value under the layer name.
func (r *IndexRenderer) ExportPoints(layer *IndexLayer, path string) (int, error) {
	rows := dataset.PixelValues(layer.Grid)
	if err := output.WritePointsGeoJSON(path, layer.Name, rows); err != nil {
		return 0, err
	}
	r.logger.Info().Str("layer", layer.Name).Str("path", path).Int("points", len(rows)).Msg("index points written")
	return len(rows), nil
}

// Preview writes the coloured layer with the overlay outlines, as JPEG when
// the path ends in .jpg or .jpeg and PNG otherwise.
func (r *IndexRenderer) Preview(layer *IndexLayer, path string) error {
	img := output.DrawOutline(layer.Image, layer.Bounds, aoi.Geometries(layer.Overlays), output.OutlineColor, 1)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return output.WriteJPEG(path, img, previewQuality)
	default:
		return output.WritePNG(path, img)
	}
}
