package raster

import (
	"fmt"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
)

// Loader reads one band in geographic coordinates (EPSG:4326). With a clip
// box only the intersecting window is returned.
type Loader interface {
	Load(path string, clip *orb.Bound) (*Grid, error)
}

// Window is a pixel rectangle inside a grid.
type Window struct {
	Col, Row      int
	Width, Height int
}

// WindowFor returns the smallest pixel window of a north-up grid covering b.
// ok is false when b does not intersect the grid.
func WindowFor(t GeoTransform, width, height int, b orb.Bound) (Window, bool) {
	inv, err := t.Invert()
	if err != nil {
		return Window{}, false
	}
	c0, r0 := inv.PixelToGeo(b.Min.X(), b.Max.Y())
	c1, r1 := inv.PixelToGeo(b.Max.X(), b.Min.Y())
	colMin := clampInt(int(math.Floor(math.Min(c0, c1))), 0, width)
	colMax := clampInt(int(math.Ceil(math.Max(c0, c1))), 0, width)
	rowMin := clampInt(int(math.Floor(math.Min(r0, r1))), 0, height)
	rowMax := clampInt(int(math.Ceil(math.Max(r0, r1))), 0, height)
	if colMax <= colMin || rowMax <= rowMin {
		return Window{}, false
	}
	return Window{Col: colMin, Row: rowMin, Width: colMax - colMin, Height: rowMax - rowMin}, true
}

// Transform is the geotransform of the window's top-left pixel.
func (w Window) Transform(t GeoTransform) GeoTransform {
	x, y := t.PixelToGeo(float64(w.Col), float64(w.Row))
	return GeoTransform{x, t[1], t[2], y, t[4], t[5]}
}

// Crop copies the window out of g.
func Crop(g *Grid, w Window) *Grid {
	out := &Grid{
		Width:      w.Width,
		Height:     w.Height,
		Data:       make([]float64, w.Width*w.Height),
		Transform:  w.Transform(g.Transform),
		Projection: g.Projection,
	}
	for row := 0; row < w.Height; row++ {
		copy(out.Data[row*w.Width:(row+1)*w.Width], g.Data[(w.Row+row)*g.Width+w.Col:(w.Row+row)*g.Width+w.Col+w.Width])
	}
	return out
}

// Clip crops g to b, failing when they do not intersect.
func Clip(g *Grid, b orb.Bound) (*Grid, error) {
	w, ok := WindowFor(g.Transform, g.Width, g.Height, b)
	if !ok {
		return nil, fmt.Errorf("%w: clip box does not intersect raster", ErrNoValidData)
	}
	return Crop(g, w), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CachedLoader memoises decoded grids by path, modification time and clip
// box, so a layer loaded for one document is reused by the next.
type CachedLoader struct {
	next  Loader
	cache *lru.Cache[uint64, *Grid]
}

func NewCachedLoader(next Loader, size int) (*CachedLoader, error) {
	c, err := lru.New[uint64, *Grid](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create raster cache: %w", err)
	}
	return &CachedLoader{next: next, cache: c}, nil
}

func (c *CachedLoader) Load(path string, clip *orb.Bound) (*Grid, error) {
	key := loadKey(path, clip)
	if g, ok := c.cache.Get(key); ok {
		return g.Clone(), nil
	}
	g, err := c.next.Load(path, clip)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, g.Clone())
	return g, nil
}

func (c *CachedLoader) Len() int {
	return c.cache.Len()
}

func loadKey(path string, clip *orb.Bound) uint64 {
	var mtime int64
	if info, err := os.Stat(path); err == nil {
		mtime = info.ModTime().UnixNano()
	}
	s := fmt.Sprintf("%s|%d", path, mtime)
	if clip != nil {
		s += fmt.Sprintf("|%v,%v,%v,%v", clip.Min.X(), clip.Min.Y(), clip.Max.X(), clip.Max.Y())
	}
	return xxhash.Sum64String(s)
}
