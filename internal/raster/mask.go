package raster

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// MaskByPolygon sets every pixel whose centre falls outside all geometries
// to NaN. Without geometries the grid is returned unchanged.
func MaskByPolygon(g *Grid, geoms []orb.Geometry) *Grid {
	out := g.Clone()
	if len(geoms) == 0 {
		return out
	}
	bounds := make([]orb.Bound, len(geoms))
	for i, geom := range geoms {
		bounds[i] = geom.Bound()
	}
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			x, y := g.Transform.PixelCenter(col, row)
			if !covered(orb.Point{x, y}, geoms, bounds) {
				out.Data[row*g.Width+col] = math.NaN()
			}
		}
	}
	return out
}

func covered(p orb.Point, geoms []orb.Geometry, bounds []orb.Bound) bool {
	for i, geom := range geoms {
		if !bounds[i].Contains(p) {
			continue
		}
		switch t := geom.(type) {
		case orb.Polygon:
			if planar.PolygonContains(t, p) {
				return true
			}
		case orb.MultiPolygon:
			if planar.MultiPolygonContains(t, p) {
				return true
			}
		case orb.Ring:
			if planar.RingContains(t, p) {
				return true
			}
		}
	}
	return false
}

// ComputeClipBounds returns the union of the geometry bounds grown by
// padding/2 of its width and height on each side, or nil without geometries.
func ComputeClipBounds(geoms []orb.Geometry, padding float64) *orb.Bound {
	if len(geoms) == 0 {
		return nil
	}
	b := geoms[0].Bound()
	for _, g := range geoms[1:] {
		b = b.Union(g.Bound())
	}
	if padding > 0 {
		dx := (b.Max.X() - b.Min.X()) * padding / 2
		dy := (b.Max.Y() - b.Min.Y()) * padding / 2
		b.Min = orb.Point{b.Min.X() - dx, b.Min.Y() - dy}
		b.Max = orb.Point{b.Max.X() + dx, b.Max.Y() + dy}
	}
	return &b
}
