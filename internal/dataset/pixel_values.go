// Package dataset exports raster samples as point tables and rebuilds grids
// from them.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/gocarina/gocsv"
	"github.com/schollz/progressbar/v3"
)

var (
	ErrEmptyCSV      = errors.New("dataset: CSV has no rows")
	ErrCellCollision = errors.New("dataset: two samples fall in the same grid cell")
)

const exportChunk = 4096

// PixelValue is one finite sample at its pixel-centre coordinate.
type PixelValue struct {
	Longitude float64 `csv:"longitude"`
	Latitude  float64 `csv:"latitude"`
	Value     float64 `csv:"value"`
}

// PixelValues lists the finite pixels of g in row-major order.
func PixelValues(g *raster.Grid) []PixelValue {
	out := make([]PixelValue, 0, len(g.Data))
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			v := g.At(col, row)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lon, lat := g.Transform.PixelCenter(col, row)
			out = append(out, PixelValue{Longitude: lon, Latitude: lat, Value: v})
		}
	}
	return out
}

// ExportCSV writes longitude,latitude,value rows (with header) for every
// finite pixel and returns the number of rows written.
func ExportCSV(g *raster.Grid, path string, quiet bool) (int, error) {
	rows := PixelValues(g)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	var bar *progressbar.ProgressBar
	if quiet {
		bar = progressbar.DefaultSilent(int64(len(rows)), "Exporting pixels")
	} else {
		bar = progressbar.Default(int64(len(rows)), "Exporting pixels")
	}
	w := gocsv.DefaultCSVWriter(file)
	if err := gocsv.MarshalCSV(rows[:min(exportChunk, len(rows))], w); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	_ = bar.Add(min(exportChunk, len(rows)))
	for start := exportChunk; start < len(rows); start += exportChunk {
		chunk := rows[start:min(start+exportChunk, len(rows))]
		if err := gocsv.MarshalCSVWithoutHeaders(chunk, w); err != nil {
			return 0, fmt.Errorf("failed to write %s: %w", path, err)
		}
		_ = bar.Add(len(chunk))
	}
	_ = bar.Finish()
	return len(rows), nil
}

func ReadCSV(path string) ([]PixelValue, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var rows []PixelValue
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCSV, path)
	}
	return rows, nil
}

// GridFromPoints rebuilds a north-up EPSG:4326 grid from pixel-centre
// samples. The pixel size on each axis is the lower median positive spacing
// of the distinct coordinates; an axis with a single coordinate borrows the
// other axis' spacing. Cells without a sample are NaN. Two samples rounding
// to the same cell fail with ErrCellCollision.
func GridFromPoints(rows []PixelValue) (*raster.Grid, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyCSV
	}
	lons := make([]float64, len(rows))
	lats := make([]float64, len(rows))
	for i, r := range rows {
		lons[i], lats[i] = r.Longitude, r.Latitude
	}
	xs, ys := distinct(lons), distinct(lats)
	dx, dy := medianStep(xs), medianStep(ys)
	switch {
	case dx == 0 && dy == 0:
		dx, dy = 1e-4, 1e-4
	case dx == 0:
		dx = dy
	case dy == 0:
		dy = dx
	}

	minX, maxX := xs[0], xs[len(xs)-1]
	minY, maxY := ys[0], ys[len(ys)-1]
	width := int(math.Round((maxX-minX)/dx)) + 1
	height := int(math.Round((maxY-minY)/dy)) + 1
	g := raster.New(width, height, raster.GeoTransform{minX - dx/2, dx, 0, maxY + dy/2, 0, -dy}, "EPSG:4326")
	filled := make([]bool, width*height)
	for _, r := range rows {
		col := int(math.Round((r.Longitude - minX) / dx))
		row := int(math.Round((maxY - r.Latitude) / dy))
		if filled[row*width+col] {
			return nil, fmt.Errorf("%w: (%g, %g)", ErrCellCollision, r.Longitude, r.Latitude)
		}
		filled[row*width+col] = true
		g.Set(col, row, r.Value)
	}
	return g, nil
}

func distinct(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// medianStep ignores gaps below a billionth of a degree, which come from
// float noise in exported coordinates.
func medianStep(sorted []float64) float64 {
	var steps []float64
	for i := 1; i < len(sorted); i++ {
		if d := sorted[i] - sorted[i-1]; d > 1e-9 {
			steps = append(steps, d)
		}
	}
	if len(steps) == 0 {
		return 0
	}
	sort.Float64s(steps)
	return steps[(len(steps)-1)/2]
}
