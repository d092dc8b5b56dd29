package raster

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/forest-guardian/canasat/internal/colormap"
)

// Percentile uses linear interpolation between closest ranks. Non-finite
// values are ignored; with nothing left it returns NaN.
func Percentile(values []float64, p float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return math.NaN()
	}
	sort.Float64s(finite)
	p = math.Max(0, math.Min(100, p))
	rank := p / 100 * float64(len(finite)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return finite[lo]
	}
	return finite[lo] + (finite[hi]-finite[lo])*(rank-float64(lo))
}

// ToRGBA colours every finite pixel through the named colormap with alpha
// round(opacity*255); other pixels are fully transparent. Missing bounds
// default to the finite min and max. The bounds actually used are returned.
func ToRGBA(g *Grid, cmapName string, vmin, vmax *float64, opacity float64) (*image.NRGBA, float64, float64, error) {
	cm, err := colormap.Lookup(cmapName)
	if err != nil {
		return nil, 0, 0, err
	}
	lo, hi, err := g.FiniteRange()
	if err != nil {
		return nil, 0, 0, err
	}
	if vmin != nil {
		lo = *vmin
	}
	if vmax != nil {
		hi = *vmax
	}

	alpha := uint8(math.Round(math.Max(0, math.Min(1, opacity)) * 255))
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	span := hi - lo
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			v := g.At(col, row)
			if !isFinite(v) {
				img.SetNRGBA(col, row, color.NRGBA{})
				continue
			}
			t := 0.0
			if span != 0 {
				t = (v - lo) / span
			}
			c := cm.At(t)
			c.A = alpha
			img.SetNRGBA(col, row, c)
		}
	}
	return img, lo, hi, nil
}

// Grayscale stretches values between lo and hi to opaque grey levels.
// Non-finite pixels are transparent.
func Grayscale(g *Grid, lo, hi float64) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	span := hi - lo
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			v := g.At(col, row)
			if !isFinite(v) {
				continue
			}
			t := 0.0
			if span > 0 {
				t = math.Max(0, math.Min(1, (v-lo)/span))
			}
			l := uint8(math.Round(t * 255))
			img.SetNRGBA(col, row, color.NRGBA{R: l, G: l, B: l, A: 255})
		}
	}
	return img
}
