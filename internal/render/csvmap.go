package render

import (
	"fmt"

	"github.com/forest-guardian/canasat/internal/aoi"
	"github.com/forest-guardian/canasat/internal/dataset"
	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/rs/zerolog"
)

// CSVMapRenderer rebuilds a raster from exported pixel values and renders it
// like an index layer.
type CSVMapRenderer struct {
	opts   IndexOptions
	logger zerolog.Logger
}

func NewCSVMapRenderer(opts IndexOptions, logger zerolog.Logger) *CSVMapRenderer {
	return &CSVMapRenderer{opts: opts, logger: logger}
}

func (r *CSVMapRenderer) Prepare(csvPath string, overlayPaths []string) (*IndexLayer, error) {
	rows, err := dataset.ReadCSV(csvPath)
	if err != nil {
		return nil, err
	}
	g, err := dataset.GridFromPoints(rows)
	if err != nil {
		return nil, err
	}
	overlays, err := aoi.LoadOverlays(overlayPaths)
	if err != nil {
		return nil, err
	}
	geoms := aoi.Geometries(overlays)
	clip := clipBox(r.opts.BaseMapOptions, geoms)
	if clip != nil {
		if g, err = raster.Clip(g, *clip); err != nil {
			return nil, fmt.Errorf("failed to clip %s: %w", csvPath, err)
		}
	}
	g, err = processGrid(g, geoms, r.opts.BaseMapOptions)
	if err != nil {
		return nil, err
	}
	r.logger.Debug().Str("path", csvPath).Int("rows", len(rows)).Msg("CSV layer prepared")
	return colorize(stem(csvPath), g, clip, overlays, r.opts)
}

// RenderHTML writes the prepared layer exactly like an index map.
func (r *CSVMapRenderer) RenderHTML(layer *IndexLayer, outputPath string) error {
	return NewIndexRenderer(nil, r.opts, r.logger).RenderHTML(layer, outputPath)
}

func (r *CSVMapRenderer) Preview(layer *IndexLayer, path string) error {
	return NewIndexRenderer(nil, r.opts, r.logger).Preview(layer, path)
}
