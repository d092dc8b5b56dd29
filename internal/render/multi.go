package render

import (
	"fmt"
	"strings"

	"github.com/forest-guardian/canasat/internal/aoi"
	"github.com/forest-guardian/canasat/internal/document"
	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/rs/zerolog"
)

// MultiRenderer stacks several index rasters as switchable layers of one
// map, all clipped to the same box.
type MultiRenderer struct {
	loader raster.Loader
	opts   MultiOptions
	logger zerolog.Logger
}

func NewMultiRenderer(loader raster.Loader, opts MultiOptions, logger zerolog.Logger) *MultiRenderer {
	return &MultiRenderer{loader: loader, opts: opts, logger: logger}
}

// Assemble prepares every layer and returns the map document describing
// them. Only the first layer starts visible; the legend is relative (0..1)
// because every layer is coloured against its own range.
func (r *MultiRenderer) Assemble(indexPaths []string, overlayPaths []string) (*document.Map, error) {
	if len(indexPaths) == 0 {
		return nil, ErrNoLayers
	}
	overlays, err := aoi.LoadOverlays(overlayPaths)
	if err != nil {
		return nil, err
	}
	geoms := aoi.Geometries(overlays)
	clip := clipBox(r.opts.BaseMapOptions, geoms)

	tiles, err := baseTiles(r.opts.BaseMapOptions)
	if err != nil {
		return nil, err
	}
	m := &document.Map{
		Title:   "compare indices",
		Zoom:    r.opts.ZoomStart,
		MinZoom: r.opts.MinZoom,
		MaxZoom: r.opts.MaxZoom,
		Tiles:   tiles,
	}

	var entries []document.LayerEntry
	for position, path := range indexPaths {
		g, err := r.loader.Load(path, clip)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		g, err = processGrid(g, geoms, r.opts.BaseMapOptions)
		if err != nil {
			return nil, err
		}
		layer, err := colorize(stem(path), g, clip, overlays, r.opts.IndexOptions)
		if err != nil {
			return nil, err
		}
		if position == 0 {
			m.Center = layer.Bounds.Center()
		}

		id := fmt.Sprintf("index_%d", position)
		name := fmt.Sprintf("%s (%.2f..%.2f)", layer.Name, layer.Min, layer.Max)
		img, err := imageOverlay(id, name, layer.Image, layer.Bounds, position == 0)
		if err != nil {
			return nil, err
		}
		m.Images = append(m.Images, img)
		entries = append(entries, document.LayerEntry{Name: strings.ToUpper(layer.Name), ID: id})
		r.logger.Debug().Str("layer", layer.Name).Int("position", position).Msg("layer added")
	}

	geo, geoIDs, err := overlayLayers(overlays, "aoi")
	if err != nil {
		return nil, err
	}
	m.GeoJSON = geo

	colors, err := legendColors(r.opts.Colormap)
	if err != nil {
		return nil, err
	}
	m.Legend = &document.Legend{
		Caption: fmt.Sprintf("%s (escala relativa por camada)", r.opts.Colormap),
		Colors:  colors,
		Min:     0,
		Max:     1,
	}

	if r.opts.EnablePanel {
		m.Panel = &document.Panel{
			Entries:         append([]document.LayerEntry{{Name: document.BaseEntryName, ID: document.BaseEntryID}}, entries...),
			GeoLayerIDs:     geoIDs,
			BaseColor:       aoiColor,
			BaseWeight:      aoiWeight,
			HighlightColor:  highlightColor,
			HighlightWeight: highlightWeight,
		}
	} else {
		m.LayerControl = true
	}
	return m, nil
}

// Render assembles the layers and writes the document to outputPath.
func (r *MultiRenderer) Render(indexPaths []string, outputPath string, overlayPaths []string) (string, error) {
	m, err := r.Assemble(indexPaths, overlayPaths)
	if err != nil {
		return "", err
	}
	if err := document.WriteMap(outputPath, m); err != nil {
		return "", err
	}
	r.logger.Info().Int("layers", len(indexPaths)).Str("path", outputPath).Msg("multi-index map written")
	return outputPath, nil
}
