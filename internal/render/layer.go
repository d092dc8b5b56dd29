package render

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/forest-guardian/canasat/internal/aoi"
	"github.com/forest-guardian/canasat/internal/colormap"
	"github.com/forest-guardian/canasat/internal/document"
	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/forest-guardian/canasat/output"
	"github.com/paulmach/orb"
)

var (
	ErrNoLayers     = errors.New("render: at least one index raster is required")
	ErrNoCSVFiles   = errors.New("render: no CSV files found")
	ErrUnknownTiles = errors.New("render: unknown tile provider")
)

const (
	aoiColor        = "#3388ff"
	aoiWeight       = 3
	highlightColor  = "#ffd43b"
	highlightWeight = 5
	legendSteps     = 10
)

// IndexLayer is a single-band layer ready to be placed on a map.
type IndexLayer struct {
	Name  string
	Grid  *raster.Grid
	Image *image.NRGBA
	Min   float64
	Max   float64
	// Bounds is where the image is drawn: the clip box when one was used,
	// otherwise the grid extent.
	Bounds   orb.Bound
	Clip     *orb.Bound
	Overlays []*aoi.Overlay
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func clipBox(opts BaseMapOptions, geoms []orb.Geometry) *orb.Bound {
	if !opts.Clip {
		return nil
	}
	return raster.ComputeClipBounds(geoms, opts.PaddingFactor)
}

// processGrid runs the display pipeline shared by index, multi and CSV
// layers: sharpen, mask, upsample, smooth, then mask again when upsampled.
func processGrid(g *raster.Grid, geoms []orb.Geometry, opts BaseMapOptions) (*raster.Grid, error) {
	if opts.Sharpen {
		g = raster.Sharpen(g, opts.SharpenRadius, opts.SharpenAmount)
	}
	mask := opts.Clip && len(geoms) > 0
	if mask {
		g = raster.MaskByPolygon(g, geoms)
	}
	g, err := raster.Upsample(g, opts.Upsample)
	if err != nil {
		return nil, err
	}
	g = raster.Smooth(g, opts.SmoothRadius)
	if mask && opts.Upsample > 1 {
		g = raster.MaskByPolygon(g, geoms)
	}
	return g, nil
}

func colorize(name string, g *raster.Grid, clip *orb.Bound, overlays []*aoi.Overlay, opts IndexOptions) (*IndexLayer, error) {
	img, lo, hi, err := raster.ToRGBA(g, opts.Colormap, opts.Vmin, opts.Vmax, opts.Opacity)
	if err != nil {
		return nil, fmt.Errorf("failed to colour %s: %w", name, err)
	}
	bounds := g.Bounds()
	if clip != nil {
		bounds = *clip
	}
	return &IndexLayer{
		Name:     name,
		Grid:     g,
		Image:    img,
		Min:      lo,
		Max:      hi,
		Bounds:   bounds,
		Clip:     clip,
		Overlays: overlays,
	}, nil
}

func tileLayer(name, attr string, minZoom, maxZoom, native int) (document.TileLayer, error) {
	url, ok := document.TileURL(name)
	if !ok {
		return document.TileLayer{}, fmt.Errorf("%w: %q", ErrUnknownTiles, name)
	}
	return document.TileLayer{
		Name:          name,
		URL:           url,
		Attribution:   attr,
		MinZoom:       minZoom,
		MaxZoom:       maxZoom,
		MaxNativeZoom: native,
		Opacity:       1,
	}, nil
}

func esriLayer(minZoom, maxZoom, native int, opacity float64) document.TileLayer {
	return document.TileLayer{
		Name:          document.EsriImageryName,
		URL:           document.EsriImageryURL,
		Attribution:   document.EsriImageryName,
		MinZoom:       minZoom,
		MaxZoom:       maxZoom,
		MaxNativeZoom: native,
		Opacity:       opacity,
	}
}

// baseTiles lists the configured provider (unless "none") followed by Esri
// imagery.
func baseTiles(opts BaseMapOptions) ([]document.TileLayer, error) {
	var tiles []document.TileLayer
	if !equalFoldNone(opts.Tiles) {
		t, err := tileLayer(opts.Tiles, opts.TileAttr, opts.MinZoom, opts.MaxZoom, opts.nativeZoom())
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, t)
	}
	return append(tiles, esriLayer(opts.MinZoom, opts.MaxZoom, opts.nativeZoom(), 1)), nil
}

// equalFoldNone reports whether no tile provider was asked for.
func equalFoldNone(tiles string) bool {
	t := strings.TrimSpace(tiles)
	return t == "" || strings.EqualFold(t, "none")
}

func overlayLayers(overlays []*aoi.Overlay, prefix string) ([]document.GeoJSONLayer, []string, error) {
	layers := make([]document.GeoJSONLayer, 0, len(overlays))
	ids := make([]string, 0, len(overlays))
	for i, o := range overlays {
		data, err := o.JSON()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode overlay %s: %w", o.Path, err)
		}
		id := fmt.Sprintf("%s_%d", prefix, i)
		layers = append(layers, document.GeoJSONLayer{
			ID:     id,
			Name:   "AOI",
			Data:   data,
			Color:  aoiColor,
			Weight: aoiWeight,
		})
		ids = append(ids, id)
	}
	return layers, ids, nil
}

func legendColors(name string) ([]string, error) {
	cm, err := colormap.Lookup(name)
	if err != nil {
		return nil, err
	}
	return cm.Gradient(legendSteps), nil
}

func imageOverlay(id, name string, img image.Image, bounds orb.Bound, visible bool) (document.ImageOverlay, error) {
	uri, err := output.DataURI(img)
	if err != nil {
		return document.ImageOverlay{}, fmt.Errorf("failed to encode layer %s: %w", name, err)
	}
	return document.ImageOverlay{ID: id, Name: name, URI: uri, Bounds: bounds, Opacity: 1, Visible: visible}, nil
}
