package raster

import (
	"fmt"
	"math"
)

// ReprojectToGrid resamples src bilinearly onto the footprint described by
// dst, width and height. Both grids must share a CRS. NaN source samples are
// left out of the kernel and the remaining weights renormalised; pixels with
// no valid support, or outside the source, become NaN.
func ReprojectToGrid(src *Grid, dst GeoTransform, width, height int) (*Grid, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	inv, err := src.Transform.Invert()
	if err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: target %dx%d", ErrShape, width, height)
	}

	out := New(width, height, dst, src.Projection)
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			x, y := dst.PixelCenter(col, row)
			sc, sr := inv.PixelToGeo(x, y)
			out.Data[row*width+col] = src.bilinear(sc-0.5, sr-0.5)
		}
	}
	return out, nil
}

// bilinear samples at fractional pixel-centre coordinates.
func (g *Grid) bilinear(fc, fr float64) float64 {
	if fc < -0.5 || fr < -0.5 || fc > float64(g.Width)-0.5 || fr > float64(g.Height)-0.5 {
		return math.NaN()
	}
	c0, r0 := int(math.Floor(fc)), int(math.Floor(fr))
	dc, dr := fc-float64(c0), fr-float64(r0)

	var sum, weight float64
	for _, n := range [4]struct {
		c, r int
		w    float64
	}{
		{c0, r0, (1 - dc) * (1 - dr)},
		{c0 + 1, r0, dc * (1 - dr)},
		{c0, r0 + 1, (1 - dc) * dr},
		{c0 + 1, r0 + 1, dc * dr},
	} {
		if n.w == 0 || n.c < 0 || n.r < 0 || n.c >= g.Width || n.r >= g.Height {
			continue
		}
		v := g.At(n.c, n.r)
		if !isFinite(v) {
			continue
		}
		sum += v * n.w
		weight += n.w
	}
	if weight == 0 {
		return math.NaN()
	}
	return sum / weight
}

// Upsample resamples to factor times the resolution. A factor of 1 or less
// returns an unchanged copy.
func Upsample(g *Grid, factor float64) (*Grid, error) {
	if factor <= 1 {
		return g.Clone(), nil
	}
	w := int(math.Round(float64(g.Width) * factor))
	h := int(math.Round(float64(g.Height) * factor))
	sx := float64(g.Width) / float64(w)
	sy := float64(g.Height) / float64(h)
	t := g.Transform
	dst := GeoTransform{t[0], t[1] * sx, t[2] * sy, t[3], t[4] * sx, t[5] * sy}
	return ReprojectToGrid(g, dst, w, h)
}
