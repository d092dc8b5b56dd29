// Package render prepares raster layers for display and assembles them into
// map documents. Preparation (clip, sharpen, mask, upsample, smooth, colour)
// is separate from writing so one prepared layer can feed several documents.
package render

import "github.com/forest-guardian/canasat/internal/colormap"

// BaseMapOptions are shared by every Leaflet based renderer.
type BaseMapOptions struct {
	Tiles               string
	TileAttr            string
	PaddingFactor       float64
	Clip                bool
	Upsample            float64
	SmoothRadius        float64
	Sharpen             bool
	SharpenRadius       float64
	SharpenAmount       float64
	ZoomStart           int
	MinZoom             int
	MaxZoom             int
	MaxNativeZoom       int
	AllowBasemapStretch bool
}

func DefaultBaseMapOptions() BaseMapOptions {
	return BaseMapOptions{
		Tiles:         "CartoDB positron",
		PaddingFactor: 0.3,
		Upsample:      1,
		SharpenRadius: 1.0,
		SharpenAmount: 1.3,
		ZoomStart:     11,
		MinZoom:       1,
		MaxZoom:       28,
		MaxNativeZoom: 19,
	}
}

// nativeZoom is the highest zoom the tile provider is asked for.
func (o BaseMapOptions) nativeZoom() int {
	if o.AllowBasemapStretch {
		return o.MaxZoom
	}
	return o.MaxNativeZoom
}

// IndexOptions drive the single-index and CSV renderers.
type IndexOptions struct {
	BaseMapOptions
	Colormap string
	Vmin     *float64
	Vmax     *float64
	Opacity  float64
}

func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		BaseMapOptions: DefaultBaseMapOptions(),
		Colormap:       colormap.Default,
		Opacity:        0.75,
	}
}

type MultiOptions struct {
	IndexOptions
	EnablePanel bool
}

func DefaultMultiOptions() MultiOptions {
	return MultiOptions{IndexOptions: DefaultIndexOptions()}
}

type TrueColorOptions struct {
	Tiles           string
	TileAttr        string
	PaddingFactor   float64
	Sharpen         bool
	SharpenRadius   float64
	SharpenAmount   float64
	StretchLower    float64
	StretchUpper    float64
	SmoothRadius    float64
	SaturationBoost float64
	Gamma           float64
	ChannelBalance  bool
	ZoomStart       int
	MinZoom         int
	MaxZoom         int
	MaxNativeZoom   int
	ShowEsri        bool
	EsriOpacity     float64
}

func DefaultTrueColorOptions() TrueColorOptions {
	return TrueColorOptions{
		Tiles:           "CartoDB positron",
		PaddingFactor:   0.3,
		SharpenRadius:   1.0,
		SharpenAmount:   1.2,
		StretchLower:    1,
		StretchUpper:    99,
		SmoothRadius:    0.8,
		SaturationBoost: 1.2,
		Gamma:           0.95,
		ChannelBalance:  true,
		ZoomStart:       12,
		MinZoom:         8,
		MaxZoom:         26,
		MaxNativeZoom:   19,
		ShowEsri:        true,
		EsriOpacity:     1,
	}
}

type GalleryOptions struct {
	StretchLower float64
	StretchUpper float64
	ThumbWidth   uint
	Workers      int
	Quiet        bool
}

func DefaultGalleryOptions() GalleryOptions {
	return GalleryOptions{StretchLower: 2, StretchUpper: 98, ThumbWidth: 320, Workers: 4}
}

type DashboardOptions struct {
	IndexOptions
	StretchLower float64
	StretchUpper float64
}

func DefaultDashboardOptions() DashboardOptions {
	return DashboardOptions{IndexOptions: DefaultIndexOptions(), StretchLower: 2, StretchUpper: 98}
}

type CompareOptions struct {
	Colormap      string
	Opacity       float64
	Vmin          *float64
	Vmax          *float64
	Sharpen       bool
	SharpenRadius float64
	SharpenAmount float64
	Tiles         string
	TileAttr      string
	MaxZoom       int
}

func DefaultCompareOptions() CompareOptions {
	return CompareOptions{
		Colormap:      colormap.Default,
		Opacity:       0.75,
		SharpenRadius: 1.2,
		SharpenAmount: 1.5,
		Tiles:         "OpenStreetMap",
		MaxZoom:       19,
	}
}
