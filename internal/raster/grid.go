// Package raster holds the in-memory grid type and the pure geometry and
// resampling operations the renderers and the index calculator share.
// Nothing in here touches GDAL; reading and writing files is the job of a
// Loader/Store implementation.
package raster

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

var (
	ErrNoValidData  = errors.New("raster: no finite samples")
	ErrShape        = errors.New("raster: data length does not match grid size")
	ErrSingularGrid = errors.New("raster: geotransform is not invertible")
)

// GeoTransform is the GDAL affine transform:
// x = t[0] + col*t[1] + row*t[2], y = t[3] + col*t[4] + row*t[5].
type GeoTransform [6]float64

func (t GeoTransform) PixelToGeo(col, row float64) (float64, float64) {
	return t[0] + col*t[1] + row*t[2], t[3] + col*t[4] + row*t[5]
}

// PixelCenter returns the geographic coordinate of the centre of a pixel.
func (t GeoTransform) PixelCenter(col, row int) (float64, float64) {
	return t.PixelToGeo(float64(col)+0.5, float64(row)+0.5)
}

func (t GeoTransform) Invert() (GeoTransform, error) {
	det := t[1]*t[5] - t[2]*t[4]
	if det == 0 || math.IsNaN(det) {
		return GeoTransform{}, ErrSingularGrid
	}
	inv := 1 / det
	return GeoTransform{
		(t[2]*t[3] - t[0]*t[5]) * inv,
		t[5] * inv,
		-t[2] * inv,
		(t[0]*t[4] - t[1]*t[3]) * inv,
		-t[4] * inv,
		t[1] * inv,
	}, nil
}

// Grid is a single band in row-major order. NaN marks no-data.
type Grid struct {
	Width      int
	Height     int
	Data       []float64
	Transform  GeoTransform
	Projection string
}

// New allocates a grid filled with NaN.
func New(width, height int, transform GeoTransform, projection string) *Grid {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Grid{Width: width, Height: height, Data: data, Transform: transform, Projection: projection}
}

func (g *Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 || len(g.Data) != g.Width*g.Height {
		return fmt.Errorf("%w: %dx%d with %d values", ErrShape, g.Width, g.Height, len(g.Data))
	}
	return nil
}

func (g *Grid) At(col, row int) float64 {
	return g.Data[row*g.Width+col]
}

func (g *Grid) Set(col, row int, v float64) {
	g.Data[row*g.Width+col] = v
}

func (g *Grid) Clone() *Grid {
	out := *g
	out.Data = make([]float64, len(g.Data))
	copy(out.Data, g.Data)
	return &out
}

// like returns an empty grid sharing the georeferencing of g.
func (g *Grid) like() *Grid {
	return &Grid{
		Width:      g.Width,
		Height:     g.Height,
		Data:       make([]float64, len(g.Data)),
		Transform:  g.Transform,
		Projection: g.Projection,
	}
}

// SameGrid reports whether both grids share shape and transform.
func (g *Grid) SameGrid(o *Grid) bool {
	return g.Width == o.Width && g.Height == o.Height && g.Transform == o.Transform
}

// Bounds is the geographic extent of the grid's outer pixel edges.
func (g *Grid) Bounds() orb.Bound {
	b := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, c := range [][2]float64{{0, 0}, {float64(g.Width), 0}, {0, float64(g.Height)}, {float64(g.Width), float64(g.Height)}} {
		x, y := g.Transform.PixelToGeo(c[0], c[1])
		b = b.Extend(orb.Point{x, y})
	}
	return b
}

// Finite returns the finite samples in row-major order.
func (g *Grid) Finite() []float64 {
	out := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

// FiniteRange returns the min and max finite values.
func (g *Grid) FiniteRange() (float64, float64, error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range g.Data {
		if !isFinite(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return 0, 0, ErrNoValidData
	}
	return lo, hi, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
