package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/forest-guardian/canasat/internal/pipeline"
	"github.com/forest-guardian/canasat/internal/sentinel"
	"github.com/forest-guardian/canasat/internal/utils"
	"github.com/spf13/cobra"
)

type runFlags struct {
	date          string
	dateRange     []string
	geojson       string
	cloud         string
	indices       []string
	tiles         string
	tileAttr      string
	padding       float64
	upsample      float64
	smoothRadius  float64
	noSharpen     bool
	sharpenRadius float64
	sharpenAmount float64
	safePath      string
	panel         bool
}

func (f *runFlags) parameters() (pipeline.Parameters, error) {
	p := pipeline.DefaultParameters()
	start, end, err := ParseDateRange(f.date, f.dateRange)
	if err != nil {
		return p, err
	}
	cloud, err := ParseCloud(f.cloud)
	if err != nil {
		return p, err
	}
	p.Start, p.End = start, end
	p.AOIPath = f.geojson
	p.Cloud = cloud
	if len(f.indices) > 0 {
		p.Indices = f.indices
	}
	p.SafePath = f.safePath
	p.Tiles = f.tiles
	p.TileAttr = f.tileAttr
	p.PaddingFactor = f.padding
	p.Upsample = math.Max(f.upsample, 1)
	p.SmoothRadius = math.Max(f.smoothRadius, 0)
	p.Sharpen = !f.noSharpen
	p.SharpenRadius = f.sharpenRadius
	p.SharpenAmount = f.sharpenAmount
	p.Panel = f.panel
	return p, nil
}

func newRunCommand(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full workflow: find a scene, extract bands, compute indices and render the composite map",
		Example: "  canasat run --date 2025-06-08\n" +
			"  canasat run --date-range 2025-06-01,2025-06-30 --indices ndvi,ndre --panel",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := f.parameters()
			if err != nil {
				return err
			}
			if err := requireFile(params.AOIPath, "GeoJSON"); err != nil {
				return err
			}

			store, loader, err := a.rasters()
			if err != nil {
				return err
			}
			w := &pipeline.Workflow{
				Dirs: pipeline.Dirs{
					DataRaw:       a.cfg.DataRawDir,
					DataProcessed: a.cfg.DataProcessedDir,
					Maps:          a.cfg.MapsDir,
				},
				Extractor:  sentinel.NewExtractor(store, sentinel.WithExtractorLogger(a.logger)),
				Calculator: sentinel.NewCalculator(store, sentinel.WithCalculatorLogger(a.logger)),
				Loader:     loader,
				Logger:     a.logger,
				Metrics:    a.metrics,
			}
			if params.SafePath == "" {
				catalog, err := a.catalog()
				if err != nil {
					return err
				}
				if catalog == nil {
					return fmt.Errorf("%w: set SENTINEL_USERNAME/SENTINEL_PASSWORD or pass --safe-path", sentinel.ErrMissingCredentials)
				}
				w.Catalog = catalog
			}

			ctx := cmd.Context()
			wc, err := w.Run(ctx, params)
			if err != nil {
				a.notifyError(ctx, fmt.Sprintf("canasat run\n\n%s", err))
				return err
			}

			out := cmd.OutOrStdout()
			PrintSuccess(out, "Workflow finished!")
			fmt.Fprintf(out, "Product: %s\n", wc.ProductTitle)
			for _, m := range wc.Maps {
				fmt.Fprintf(out, "Map: %s\n", m)
			}
			names := utils.SortedKeys(wc.Indices)
			fmt.Fprintf(out, "Indices: %s\n", strings.Join(names, ", "))

			a.notifySuccess(ctx, fmt.Sprintf("canasat run\n\nProduct: %s\nMaps: %s\nIndices: %s",
				wc.ProductTitle, strings.Join(wc.Maps, ", "), strings.Join(names, ", ")))
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.date, "date", "", "single date (YYYY-MM-DD)")
	fs.StringSliceVar(&f.dateRange, "date-range", nil, "date range START,END (YYYY-MM-DD)")
	fs.StringVar(&f.geojson, "geojson", defaultGeoJSON, "GeoJSON with the area of interest")
	fs.StringVar(&f.cloud, "cloud", "0,30", "cloud cover range MIN,MAX in percent")
	fs.StringSliceVar(&f.indices, "indices", nil, "indices to compute (default all)")
	fs.StringVar(&f.tiles, "tiles", "none", "base map of the composite map")
	fs.StringVar(&f.tileAttr, "tile-attr", "", "custom tile attribution")
	fs.Float64Var(&f.padding, "padding", 0.3, "padding factor around the GeoJSON bounds")
	fs.Float64Var(&f.upsample, "upsample", 12, "upsample factor before smoothing")
	fs.Float64Var(&f.smoothRadius, "smooth-radius", 1, "gaussian smoothing radius")
	fs.BoolVar(&f.noSharpen, "no-sharpen", false, "disable the sharpen filter")
	fs.Float64Var(&f.sharpenRadius, "sharpen-radius", 1.2, "sharpen filter radius")
	fs.Float64Var(&f.sharpenAmount, "sharpen-amount", 1.5, "sharpen filter amount")
	fs.StringVar(&f.safePath, "safe-path", "", "already downloaded SAFE archive or directory")
	fs.BoolVar(&f.panel, "panel", false, "render the side panel instead of the layer control")
	cmd.MarkFlagsMutuallyExclusive("date", "date-range")
	cmd.MarkFlagsOneRequired("date", "date-range")
	return cmd
}
