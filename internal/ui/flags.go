package ui

import (
	"math"

	"github.com/forest-guardian/canasat/internal/colormap"
	"github.com/forest-guardian/canasat/internal/render"
	"github.com/spf13/cobra"
)

const (
	defaultGeoJSON  = "dados/map.geojson"
	defaultTileAttr = "Map tiles by CartoDB, imagery © Esri"
)

// mapFlags are shared by the commands that draw index layers.
type mapFlags struct {
	geojson   string
	noGeojson bool

	cmap    string
	vmin    float64
	vmax    float64
	opacity float64

	tiles     string
	tileAttr  string
	noBasemap bool

	padding       float64
	noClip        bool
	upsample      float64
	smoothRadius  float64
	noSharpen     bool
	sharpenRadius float64
	sharpenAmount float64

	zoomStart     int
	minZoom       int
	maxZoom       int
	maxNativeZoom int
	allowStretch  bool
}

func (f *mapFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.geojson, "geojson", defaultGeoJSON, "GeoJSON used as overlay and clip")
	fs.BoolVar(&f.noGeojson, "no-geojson", false, "do not use a GeoJSON overlay (nor clip)")
	fs.StringVar(&f.cmap, "cmap", colormap.Default, "colormap for the gradient")
	fs.Float64Var(&f.vmin, "vmin", 0, "fixed colormap minimum")
	fs.Float64Var(&f.vmax, "vmax", 0, "fixed colormap maximum")
	fs.Float64Var(&f.opacity, "opacity", 0.75, "overlay opacity (0-1)")
	fs.StringVar(&f.tiles, "tiles", "CartoDB positron", "base map tiles")
	fs.StringVar(&f.tileAttr, "tile-attr", defaultTileAttr, "tile attribution")
	fs.BoolVar(&f.noBasemap, "no-basemap", false, "do not load base map tiles")
	fs.Float64Var(&f.padding, "padding", 0.3, "padding factor around the GeoJSON bounds when clipping")
	fs.BoolVar(&f.noClip, "no-clip", false, "do not clip the raster to the GeoJSON")
	fs.Float64Var(&f.upsample, "upsample", 12, "upsample factor before smoothing")
	fs.Float64Var(&f.smoothRadius, "smooth-radius", 1, "gaussian smoothing radius")
	fs.BoolVar(&f.noSharpen, "no-sharpen", false, "disable the sharpen filter")
	fs.Float64Var(&f.sharpenRadius, "sharpen-radius", 1.2, "sharpen filter radius")
	fs.Float64Var(&f.sharpenAmount, "sharpen-amount", 1.5, "sharpen filter amount")
	fs.IntVar(&f.zoomStart, "zoom-start", 14, "initial zoom")
	fs.IntVar(&f.minZoom, "min-zoom", 1, "minimum zoom")
	fs.IntVar(&f.maxZoom, "max-zoom", 28, "maximum zoom")
	fs.IntVar(&f.maxNativeZoom, "max-native-zoom", 19, "maximum native zoom of the base tiles")
	fs.BoolVar(&f.allowStretch, "allow-basemap-stretch", false, "request base tiles up to max-zoom")
}

func (f *mapFlags) overlays() []string {
	if f.noGeojson || f.geojson == "" {
		return nil
	}
	return []string{f.geojson}
}

func (f *mapFlags) indexOptions(cmd *cobra.Command) render.IndexOptions {
	opts := render.DefaultIndexOptions()
	opts.Colormap = f.cmap
	if cmd.Flags().Changed("vmin") {
		v := f.vmin
		opts.Vmin = &v
	}
	if cmd.Flags().Changed("vmax") {
		v := f.vmax
		opts.Vmax = &v
	}
	opts.Opacity = f.opacity
	opts.Tiles = f.tiles
	opts.TileAttr = f.tileAttr
	if f.noBasemap {
		opts.Tiles = "none"
		opts.TileAttr = ""
	}
	opts.PaddingFactor = f.padding
	opts.Clip = !f.noClip && !f.noGeojson
	opts.Upsample = math.Max(f.upsample, 1)
	opts.SmoothRadius = math.Max(f.smoothRadius, 0)
	opts.Sharpen = !f.noSharpen
	opts.SharpenRadius = f.sharpenRadius
	opts.SharpenAmount = f.sharpenAmount
	opts.ZoomStart = f.zoomStart
	opts.MinZoom = f.minZoom
	opts.MaxZoom = f.maxZoom
	opts.MaxNativeZoom = f.maxNativeZoom
	opts.AllowBasemapStretch = f.allowStretch
	return opts
}
