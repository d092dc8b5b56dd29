package sentinel

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

var (
	ErrNoSafeRoot    = errors.New("sentinel: archive does not contain a .SAFE directory")
	ErrBandNotFound  = errors.New("sentinel: band not found in SAFE structure")
	ErrUnsafeArchive = errors.New("sentinel: archive entry escapes extraction directory")
)

// Translator converts a JPEG2000 band into a GeoTIFF.
type Translator interface {
	Translate(src, dst string) error
}

type Extractor struct {
	bands      []Band
	translator Translator
	logger     zerolog.Logger
	quiet      bool
}

type ExtractorOption func(*Extractor)

func WithBands(bands []Band) ExtractorOption {
	return func(e *Extractor) {
		e.bands = bands
	}
}

func WithExtractorLogger(l zerolog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = l
	}
}

func WithQuietExtraction() ExtractorOption {
	return func(e *Extractor) {
		e.quiet = true
	}
}

func NewExtractor(t Translator, opts ...ExtractorOption) *Extractor {
	e := &Extractor{bands: DefaultBands, translator: t, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract writes <dest>/<alias>.tif for every band found in a SAFE
// directory or zipped SAFE. Missing bands are logged and skipped; an
// existing GeoTIFF at least as new as its JPEG2000 source is reused.
func (e *Extractor) Extract(ctx context.Context, src, dest string) (BandSet, error) {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create band directory: %w", err)
	}

	safeRoot := src
	if strings.EqualFold(filepath.Ext(src), ".zip") {
		tmp, err := os.MkdirTemp("", "safe_")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp directory: %w", err)
		}
		defer os.RemoveAll(tmp)

		e.logger.Info().Str("path", src).Msg("extracting SAFE archive")
		if err := unzip(src, tmp); err != nil {
			return nil, err
		}
		if safeRoot, err = findSafeRoot(tmp); err != nil {
			return nil, err
		}
	}

	var bar *progressbar.ProgressBar
	if e.quiet {
		bar = progressbar.DefaultSilent(int64(len(e.bands)), "Extracting bands")
	} else {
		bar = progressbar.Default(int64(len(e.bands)), "Extracting bands")
	}
	defer bar.Finish()

	out := BandSet{}
	for _, b := range e.bands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_ = bar.Add(1)

		jp2, err := LocateBand(safeRoot, b.ID)
		if err != nil {
			e.logger.Warn().Str("band", b.ID).Msg("band not found in SAFE structure")
			continue
		}
		tif := filepath.Join(dest, b.Alias+".tif")
		if fresh(tif, jp2) {
			e.logger.Debug().Str("band", b.Alias).Str("path", tif).Msg("reusing cached band")
			out[b.Alias] = tif
			continue
		}
		if err := e.translator.Translate(jp2, tif); err != nil {
			return nil, fmt.Errorf("failed to convert band %s: %w", b.ID, err)
		}
		out[b.Alias] = tif
	}
	return out, nil
}

// fresh compares modification times only; a re-extracted archive that keeps
// old timestamps will be treated as cached.
func fresh(tif, jp2 string) bool {
	ti, err := os.Stat(tif)
	if err != nil {
		return false
	}
	ji, err := os.Stat(jp2)
	if err != nil {
		return false
	}
	return !ti.ModTime().Before(ji.ModTime())
}

// LocateBand finds the JPEG2000 file of a band under IMG_DATA. Files one
// directory below IMG_DATA win over files directly inside it, which win over
// deeper ones; ties prefer 10 m over other resolutions and avoid 20 m.
func LocateBand(safeRoot, band string) (string, error) {
	pattern := "*_" + band + "_*.jp2"
	var oneDeep, direct, deeper []string
	err := filepath.WalkDir(safeRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); !ok {
			return nil
		}
		rel, err := filepath.Rel(safeRoot, path)
		if err != nil {
			return nil
		}
		dirs := strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/")
		n := len(dirs)
		switch {
		case n >= 2 && dirs[n-2] == "IMG_DATA":
			oneDeep = append(oneDeep, path)
		case dirs[n-1] == "IMG_DATA":
			direct = append(direct, path)
		}
		for _, d := range dirs {
			if d == "IMG_DATA" {
				deeper = append(deeper, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan %s: %w", safeRoot, err)
	}
	for _, group := range [][]string{oneDeep, direct, deeper} {
		if len(group) > 0 {
			sort.Slice(group, func(i, j int) bool { return bandLess(group[i], group[j]) })
			return group[0], nil
		}
	}
	return "", fmt.Errorf("%w: %s inside %s", ErrBandNotFound, band, safeRoot)
}

func bandLess(a, b string) bool {
	na, nb := filepath.Base(a), filepath.Base(b)
	a10, b10 := strings.Contains(na, "10m"), strings.Contains(nb, "10m")
	if a10 != b10 {
		return a10
	}
	a20, b20 := strings.Contains(na, "20m"), strings.Contains(nb, "20m")
	if a20 != b20 {
		return !a20
	}
	return na < nb
}

func findSafeRoot(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.SAFE"))
	if err != nil {
		return "", err
	}
	sort.Strings(matches)
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoSafeRoot, dir)
}

func unzip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	defer r.Close()

	root := filepath.Clean(dest) + string(os.PathSeparator)
	for _, f := range r.File {
		target := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchive, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
