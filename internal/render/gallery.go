package render

import (
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/forest-guardian/canasat/internal/aoi"
	"github.com/forest-guardian/canasat/internal/document"
	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/forest-guardian/canasat/internal/sentinel"
	"github.com/forest-guardian/canasat/output"
	"github.com/gammazero/workerpool"
	"github.com/nfnt/resize"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// GalleryRenderer renders one grayscale thumbnail per extracted band.
type GalleryRenderer struct {
	loader raster.Loader
	opts   GalleryOptions
	logger zerolog.Logger
}

func NewGalleryRenderer(loader raster.Loader, opts GalleryOptions, logger zerolog.Logger) *GalleryRenderer {
	return &GalleryRenderer{loader: loader, opts: opts, logger: logger}
}

type thumbResult struct {
	entry *document.GalleryEntry
	err   error
}

// Render writes the gallery page for the band GeoTIFFs found in productDir.
// With an AOI the bands are cropped to its bounds (no padding) and the
// outline is drawn on every thumbnail. Bands without valid pixels are
// skipped.
func (r *GalleryRenderer) Render(productDir, outputPath, geojsonPath string) (string, error) {
	var area *aoi.AreaOfInterest
	var clip *orb.Bound
	if geojsonPath != "" {
		a, err := aoi.Load(geojsonPath)
		if err != nil {
			return "", err
		}
		area = a
		b := a.Bounds()
		clip = &b
	}

	var bands []sentinel.Band
	for _, band := range sentinel.DefaultBands {
		if _, err := os.Stat(filepath.Join(productDir, band.Alias+".tif")); err == nil {
			bands = append(bands, band)
		}
	}

	var bar *progressbar.ProgressBar
	if r.opts.Quiet {
		bar = progressbar.DefaultSilent(int64(len(bands)), "Rendering bands")
	} else {
		bar = progressbar.Default(int64(len(bands)), "Rendering bands")
	}

	workers := r.opts.Workers
	if workers < 1 {
		workers = 1
	}
	results := make([]thumbResult, len(bands))
	wp := workerpool.New(workers)
	for i, band := range bands {
		i, band := i, band
		wp.Submit(func() {
			entry, err := r.thumbnail(productDir, band, clip, area)
			results[i] = thumbResult{entry: entry, err: err}
			_ = bar.Add(1)
		})
	}
	wp.StopWait()
	_ = bar.Finish()

	gallery := document.Gallery{Product: filepath.Base(productDir), ClipSource: geojsonPath}
	for i, res := range results {
		switch {
		case errors.Is(res.err, raster.ErrNoValidData):
			r.logger.Warn().Str("band", bands[i].Alias).Msg("band has no valid pixels, skipped")
		case res.err != nil:
			return "", res.err
		default:
			gallery.Entries = append(gallery.Entries, *res.entry)
		}
	}

	if err := document.WriteGallery(outputPath, gallery); err != nil {
		return "", err
	}
	r.logger.Info().Int("bands", len(gallery.Entries)).Str("path", outputPath).Msg("band gallery written")
	return outputPath, nil
}

func (r *GalleryRenderer) thumbnail(productDir string, band sentinel.Band, clip *orb.Bound, area *aoi.AreaOfInterest) (*document.GalleryEntry, error) {
	file := band.Alias + ".tif"
	g, err := r.loader.Load(filepath.Join(productDir, file), clip)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", file, err)
	}
	finite := g.Finite()
	if len(finite) == 0 {
		return nil, raster.ErrNoValidData
	}
	vmin := raster.Percentile(finite, r.opts.StretchLower)
	vmax := raster.Percentile(finite, r.opts.StretchUpper)

	width := r.opts.ThumbWidth
	if width == 0 {
		width = 320
	}
	img := resize.Resize(width, 0, raster.Grayscale(g, vmin, vmax), resize.Bilinear)
	if area != nil {
		img = output.DrawOutline(img, g.Bounds(), []orb.Geometry{area.Geometry()}, output.OutlineColor, 1)
	}
	img = output.Caption(img, band.Label, "("+file+")", fmt.Sprintf("[%.2f, %.2f]", vmin, vmax))

	uri, err := output.DataURI(img)
	if err != nil {
		return nil, err
	}
	return &document.GalleryEntry{
		Key:   band.Alias,
		Label: fmt.Sprintf("%s (%s) [%.2f, %.2f]", band.Label, file, vmin, vmax),
		URI:   template.URL(uri),
	}, nil
}
