package render

import (
	"fmt"
	"strings"

	"github.com/forest-guardian/canasat/internal/document"
	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/rs/zerolog"
)

// CompareRenderer puts the base map and the index layer side by side.
type CompareRenderer struct {
	loader raster.Loader
	opts   CompareOptions
	logger zerolog.Logger
}

func NewCompareRenderer(loader raster.Loader, opts CompareOptions, logger zerolog.Logger) *CompareRenderer {
	return &CompareRenderer{loader: loader, opts: opts, logger: logger}
}

func (r *CompareRenderer) indexOptions() IndexOptions {
	o := DefaultIndexOptions()
	o.Colormap = r.opts.Colormap
	o.Vmin = r.opts.Vmin
	o.Vmax = r.opts.Vmax
	o.Opacity = r.opts.Opacity
	o.Tiles = r.opts.Tiles
	o.TileAttr = r.opts.TileAttr
	o.Clip = false
	o.Upsample = 1
	o.SmoothRadius = 0
	o.Sharpen = r.opts.Sharpen
	o.SharpenRadius = r.opts.SharpenRadius
	o.SharpenAmount = r.opts.SharpenAmount
	o.MaxZoom = r.opts.MaxZoom
	return o
}

func (r *CompareRenderer) pane(id string) (*document.Map, error) {
	var tiles []document.TileLayer
	if !equalFoldNone(r.opts.Tiles) {
		t, err := tileLayer(r.opts.Tiles, r.opts.TileAttr, 0, r.opts.MaxZoom, 0)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, t)
	}
	tiles = append(tiles, esriLayer(0, r.opts.MaxZoom, 0, 1))
	return &document.Map{ID: id, Zoom: 14, MaxZoom: r.opts.MaxZoom, Tiles: tiles, LayerControl: true}, nil
}

func (r *CompareRenderer) Render(indexPath, outputPath string, overlayPaths []string) (string, error) {
	layer, err := NewIndexRenderer(r.loader, r.indexOptions(), r.logger).Prepare(indexPath, overlayPaths)
	if err != nil {
		return "", err
	}
	name := strings.ToUpper(layer.Name)
	fit := layer.Bounds

	left, err := r.pane("map_left")
	if err != nil {
		return "", err
	}
	right, err := r.pane("map_right")
	if err != nil {
		return "", err
	}
	for _, m := range []*document.Map{left, right} {
		m.Center = fit.Center()
		m.Fit = &fit
		geo, _, err := overlayLayers(layer.Overlays, m.ID+"_aoi")
		if err != nil {
			return "", err
		}
		for i := range geo {
			geo[i].FillOpacity = 0
		}
		m.GeoJSON = geo
	}

	img, err := imageOverlay("index_0", name, layer.Image, layer.Bounds, true)
	if err != nil {
		return "", err
	}
	right.Images = []document.ImageOverlay{img}
	colors, err := legendColors(r.opts.Colormap)
	if err != nil {
		return "", err
	}
	right.Legend = &document.Legend{
		Caption: fmt.Sprintf("%s (min=%.3f, max=%.3f)", name, layer.Min, layer.Max),
		Colors:  colors,
		Min:     layer.Min,
		Max:     layer.Max,
	}

	if err := document.WriteDualMap(outputPath, document.DualMap{Title: name, Left: left, Right: right}); err != nil {
		return "", err
	}
	r.logger.Info().Str("layer", layer.Name).Str("path", outputPath).Msg("comparison map written")
	return outputPath, nil
}
