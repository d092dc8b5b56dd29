package render

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/forest-guardian/canasat/internal/document"
	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/rs/zerolog"
)

// DashboardRenderer builds a tabbed page: a true-colour tab followed by one
// tab per CSV file of the directory.
type DashboardRenderer struct {
	loader raster.Loader
	opts   DashboardOptions
	logger zerolog.Logger
}

func NewDashboardRenderer(loader raster.Loader, opts DashboardOptions, logger zerolog.Logger) *DashboardRenderer {
	return &DashboardRenderer{loader: loader, opts: opts, logger: logger}
}

func (r *DashboardRenderer) trueColorOptions() TrueColorOptions {
	o := DefaultTrueColorOptions()
	o.Tiles = r.opts.Tiles
	o.TileAttr = r.opts.TileAttr
	o.PaddingFactor = r.opts.PaddingFactor
	o.Sharpen = r.opts.Sharpen
	o.SharpenRadius = r.opts.SharpenRadius
	o.SharpenAmount = r.opts.SharpenAmount
	o.StretchLower = r.opts.StretchLower
	o.StretchUpper = r.opts.StretchUpper
	o.SmoothRadius = r.opts.SmoothRadius
	o.ZoomStart = r.opts.ZoomStart
	o.MinZoom = r.opts.MinZoom
	o.MaxZoom = r.opts.MaxZoom
	o.MaxNativeZoom = r.opts.MaxNativeZoom
	return o
}

func (r *DashboardRenderer) Render(csvDir, redPath, greenPath, bluePath string, overlayPaths []string, outputPath string) (string, error) {
	csvFiles, err := filepath.Glob(filepath.Join(csvDir, "*.csv"))
	if err != nil {
		return "", fmt.Errorf("failed to list %s: %w", csvDir, err)
	}
	if len(csvFiles) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoCSVFiles, csvDir)
	}
	sort.Strings(csvFiles)

	tc := NewTrueColorRenderer(r.loader, r.trueColorOptions(), r.logger)
	tcLayer, err := tc.Prepare(redPath, greenPath, bluePath, overlayPaths)
	if err != nil {
		return "", err
	}
	tcMap, err := tc.Map(tcLayer)
	if err != nil {
		return "", err
	}
	tabs := []document.Tab{{Key: "truecolor", Map: tcMap}}

	csvRenderer := NewCSVMapRenderer(r.opts.IndexOptions, r.logger)
	indexRenderer := NewIndexRenderer(r.loader, r.opts.IndexOptions, r.logger)
	for _, path := range csvFiles {
		layer, err := csvRenderer.Prepare(path, overlayPaths)
		if err != nil {
			return "", err
		}
		m, err := indexRenderer.Map(layer)
		if err != nil {
			return "", err
		}
		tabs = append(tabs, document.Tab{Key: layer.Name, Map: m})
	}

	if err := document.WriteDashboard(outputPath, document.Dashboard{Tabs: tabs}); err != nil {
		return "", err
	}
	r.logger.Info().Int("tabs", len(tabs)).Str("path", outputPath).Msg("dashboard written")
	return outputPath, nil
}
