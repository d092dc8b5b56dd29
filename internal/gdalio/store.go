// Package gdalio reads and writes rasters through GDAL. It is the only
// package linking against libgdal.
package gdalio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/forest-guardian/canasat/internal/utils"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
)

// Store implements raster.Loader, the calculator's RasterStore and
// Reprojector, and the extractor's Translator.
type Store struct {
	logger zerolog.Logger
}

func NewStore(logger zerolog.Logger) *Store {
	utils.ExecuteWithMutex(godal.RegisterAll)
	return &Store{logger: logger}
}

// gdalError downgrades GDAL warnings to debug logs.
func (s *Store) gdalError(ec godal.ErrorCategory, code int, msg string) error {
	if ec == godal.CE_Warning {
		s.logger.Debug().Int("code", code).Msg(msg)
		return nil
	}
	return fmt.Errorf("gdal error %d: %s", code, msg)
}

// Read returns the first band on its native grid.
func (s *Store) Read(path string) (*raster.Grid, error) {
	var g *raster.Grid
	err := utils.ExecuteWithMutexErr(func() error {
		ds, err := godal.Open(path, godal.ErrLogger(s.gdalError))
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer ds.Close()
		g, err = readGrid(ds, nil)
		return err
	})
	return g, err
}

// Load warps the first band to EPSG:4326 and, with a clip box, reads only
// the window intersecting it.
func (s *Store) Load(path string, clip *orb.Bound) (*raster.Grid, error) {
	var g *raster.Grid
	err := utils.ExecuteWithMutexErr(func() error {
		ds, err := godal.Open(path, godal.ErrLogger(s.gdalError))
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer ds.Close()

		warped, err := ds.Warp("", []string{
			"-of", "MEM",
			"-t_srs", "EPSG:4326",
			"-r", "bilinear",
			"-dstnodata", "nan",
			"-ot", "Float64",
		})
		if err != nil {
			return fmt.Errorf("failed to warp %s to EPSG:4326: %w", path, err)
		}
		defer warped.Close()

		var win *raster.Window
		if clip != nil {
			gt, err := warped.GeoTransform()
			if err != nil {
				return fmt.Errorf("failed to get GeoTransform: %w", err)
			}
			st := warped.Structure()
			w, ok := raster.WindowFor(raster.GeoTransform(gt), st.SizeX, st.SizeY, *clip)
			if !ok {
				return fmt.Errorf("%w: %s does not intersect the clip box", raster.ErrNoValidData, path)
			}
			win = &w
		}
		g, err = readGrid(warped, win)
		return err
	})
	if err == nil {
		s.logger.Debug().Str("path", path).Int("width", g.Width).Int("height", g.Height).Msg("raster loaded")
	}
	return g, err
}

// ReadOnto warps the first band of path onto ref's grid, reprojecting from
// whatever coordinate system the file uses.
func (s *Store) ReadOnto(path string, ref *raster.Grid) (*raster.Grid, error) {
	if ref.Projection == "" {
		return nil, fmt.Errorf("reference grid for %s has no projection", path)
	}
	b := ref.Bounds()
	var g *raster.Grid
	err := utils.ExecuteWithMutexErr(func() error {
		ds, err := godal.Open(path, godal.ErrLogger(s.gdalError))
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer ds.Close()

		warped, err := ds.Warp("", []string{
			"-of", "MEM",
			"-t_srs", ref.Projection,
			"-te", fmt.Sprint(b.Min[0]), fmt.Sprint(b.Min[1]), fmt.Sprint(b.Max[0]), fmt.Sprint(b.Max[1]),
			"-ts", fmt.Sprint(ref.Width), fmt.Sprint(ref.Height),
			"-r", "bilinear",
			"-dstnodata", "nan",
			"-ot", "Float64",
		})
		if err != nil {
			return fmt.Errorf("failed to warp %s onto the reference grid: %w", path, err)
		}
		defer warped.Close()
		g, err = readGrid(warped, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	g.Transform = ref.Transform
	g.Projection = ref.Projection
	return g, nil
}

func readGrid(ds *godal.Dataset, win *raster.Window) (*raster.Grid, error) {
	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("dataset has no bands")
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("failed to get GeoTransform: %w", err)
	}
	st := ds.Structure()
	w := raster.Window{Width: st.SizeX, Height: st.SizeY}
	if win != nil {
		w = *win
	}

	data := make([]float64, w.Width*w.Height)
	if err := bands[0].Read(w.Col, w.Row, data, w.Width, w.Height); err != nil {
		return nil, fmt.Errorf("failed to read band: %w", err)
	}
	if nd, ok := bands[0].NoData(); ok {
		for i, v := range data {
			if v == nd || (math.IsNaN(nd) && math.IsNaN(v)) {
				data[i] = math.NaN()
			}
		}
	}
	return &raster.Grid{
		Width:      w.Width,
		Height:     w.Height,
		Data:       data,
		Transform:  w.Transform(raster.GeoTransform(gt)),
		Projection: ds.Projection(),
	}, nil
}

// Write stores g as a single-band float32 GeoTIFF with NaN as no-data.
func (s *Store) Write(path string, g *raster.Grid) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return utils.ExecuteWithMutexErr(func() error {
		ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, g.Width, g.Height,
			godal.CreationOption("COMPRESS=DEFLATE", "TILED=YES"))
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := ds.SetGeoTransform([6]float64(g.Transform)); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set GeoTransform: %w", err)
		}
		if g.Projection != "" {
			if err := ds.SetProjection(g.Projection); err != nil {
				ds.Close()
				return fmt.Errorf("failed to set projection: %w", err)
			}
		}
		band := ds.Bands()[0]
		if err := band.SetNoData(math.NaN()); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set nodata: %w", err)
		}
		if err := band.Write(0, 0, g.Data, g.Width, g.Height); err != nil {
			ds.Close()
			return fmt.Errorf("failed to write band: %w", err)
		}
		return ds.Close()
	})
}

// Translate converts any GDAL-readable raster (JPEG2000 bands) to GeoTIFF.
func (s *Store) Translate(src, dst string) error {
	return utils.ExecuteWithMutexErr(func() error {
		ds, err := godal.Open(src, godal.ErrLogger(s.gdalError))
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", src, err)
		}
		defer ds.Close()

		out, err := ds.Translate(dst, []string{"-of", "GTiff", "-co", "COMPRESS=DEFLATE", "-co", "TILED=YES"})
		if err != nil {
			return fmt.Errorf("failed to translate %s: %w", src, err)
		}
		return out.Close()
	})
}
