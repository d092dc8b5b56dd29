package ui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forest-guardian/canasat/internal/colormap"
	"github.com/forest-guardian/canasat/internal/render"
	"github.com/spf13/cobra"
)

const autoPath = "auto"

var ErrNoIndexRasters = errors.New("ui: no index rasters found")

// resolveAuto turns the bare-flag value "auto" into the default path.
func resolveAuto(value, fallback string) string {
	if value == autoPath {
		return fallback
	}
	return value
}

func newIndexCommand(a *app) *cobra.Command {
	mf := &mapFlags{}
	var index, output, csvPath, pointsPath, preview string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Render one index GeoTIFF over a base map",
		Example: "  canasat index --index data/processed/S2A_X/indices/ndvi.tif --csv\n" +
			"  canasat index --index ndre.tif --no-geojson --cmap viridis --vmin 0 --vmax 0.6",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFile(index, "index raster"); err != nil {
				return err
			}
			_, loader, err := a.rasters()
			if err != nil {
				return err
			}
			name := stem(index)
			r := render.NewIndexRenderer(loader, mf.indexOptions(cmd), a.logger)
			layer, err := r.Prepare(index, mf.overlays())
			if err != nil {
				return err
			}

			if output == "" {
				output = filepath.Join(a.cfg.MapsDir, name+"_map.html")
			}
			if err := r.RenderHTML(layer, output); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			PrintSuccess(out, fmt.Sprintf("Map written to %s", output))
			a.metrics.AddArtifacts("map", 1)

			if csvPath != "" {
				path := resolveAuto(csvPath, filepath.Join(a.cfg.TablesDir, name+".csv"))
				n, err := r.ExportCSV(layer, path)
				if err != nil {
					return err
				}
				PrintInfo(out, fmt.Sprintf("CSV with %d points written to %s", n, path))
			}
			if pointsPath != "" {
				path := resolveAuto(pointsPath, filepath.Join(a.cfg.TablesDir, name+".geojson"))
				n, err := r.ExportPoints(layer, path)
				if err != nil {
					return err
				}
				PrintInfo(out, fmt.Sprintf("GeoJSON with %d points written to %s", n, path))
			}
			if preview != "" {
				path := resolveAuto(preview, filepath.Join(a.cfg.MapsDir, name+"_preview.png"))
				if err := r.Preview(layer, path); err != nil {
					return err
				}
				PrintInfo(out, fmt.Sprintf("Preview written to %s", path))
			}
			return nil
		},
	}
	mf.register(cmd)
	fs := cmd.Flags()
	fs.StringVar(&index, "index", "", "index GeoTIFF to render")
	fs.StringVar(&output, "output", "", "output HTML (default <maps>/<index>_map.html)")
	fs.StringVar(&csvPath, "csv", "", "export longitude,latitude,value CSV (bare flag: <tables>/<index>.csv)")
	fs.Lookup("csv").NoOptDefVal = autoPath
	fs.StringVar(&pointsPath, "points", "", "export pixel centres as GeoJSON points (bare flag: <tables>/<index>.geojson)")
	fs.Lookup("points").NoOptDefVal = autoPath
	fs.StringVar(&preview, "preview", "", "write a static PNG/JPEG preview (bare flag: <maps>/<index>_preview.png)")
	fs.Lookup("preview").NoOptDefVal = autoPath
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

// indexPaths lists the *.tif rasters of dir, optionally restricted to the
// requested index names.
func indexPaths(dir string, requested []string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.tif"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(paths)
	if len(requested) > 0 {
		wanted := map[string]bool{}
		for _, name := range requested {
			wanted[strings.ToLower(name)] = true
		}
		var kept []string
		for _, p := range paths {
			if wanted[strings.ToLower(stem(p))] {
				kept = append(kept, p)
			}
		}
		paths = kept
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoIndexRasters, dir)
	}
	return paths, nil
}

func newMultiCommand(a *app) *cobra.Command {
	mf := &mapFlags{}
	var indicesDir, productDir, output, csvDir string
	var indices []string
	var panel bool
	cmd := &cobra.Command{
		Use:   "multi",
		Short: "Render several index rasters as switchable layers of one map",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := indicesDir
			if dir == "" {
				if productDir == "" {
					return fmt.Errorf("one of --indices-dir or --product-dir is required")
				}
				dir = filepath.Join(productDir, "indices")
			}
			paths, err := indexPaths(dir, indices)
			if err != nil {
				return err
			}
			_, loader, err := a.rasters()
			if err != nil {
				return err
			}

			opts := render.MultiOptions{IndexOptions: mf.indexOptions(cmd), EnablePanel: panel}
			if output == "" {
				output = filepath.Join(a.cfg.MapsDir, "compare_indices.html")
			}
			written, err := render.NewMultiRenderer(loader, opts, a.logger).Render(paths, output, mf.overlays())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			PrintSuccess(out, fmt.Sprintf("Map with %d layers written to %s", len(paths), written))
			a.metrics.AddArtifacts("map", 1)

			if csvDir == "" {
				return nil
			}
			csvOpts := opts.IndexOptions
			csvOpts.Tiles = "none"
			r := render.NewIndexRenderer(loader, csvOpts, a.logger)
			for _, p := range paths {
				layer, err := r.Prepare(p, mf.overlays())
				if err != nil {
					return err
				}
				if _, err := r.ExportCSV(layer, filepath.Join(csvDir, stem(p)+".csv")); err != nil {
					return err
				}
			}
			PrintInfo(out, fmt.Sprintf("CSVs written to %s", csvDir))
			return nil
		},
	}
	mf.register(cmd)
	fs := cmd.Flags()
	fs.StringVar(&indicesDir, "indices-dir", "", "directory with index GeoTIFFs")
	fs.StringVar(&productDir, "product-dir", "", "processed product directory (uses <dir>/indices)")
	fs.StringSliceVar(&indices, "index", nil, "index names to include (repeatable, default all)")
	fs.BoolVar(&panel, "panel", false, "render the side panel instead of the layer control")
	fs.StringVar(&output, "output", "", "output HTML (default <maps>/compare_indices.html)")
	fs.StringVar(&csvDir, "export-csv-dir", "", "also export one CSV per index into this directory")
	cmd.MarkFlagsMutuallyExclusive("indices-dir", "product-dir")
	return cmd
}

// rgbPaths resolves the red/green/blue rasters from explicit flags or a
// processed product directory.
func rgbPaths(productDir, red, green, blue string) (string, string, string, error) {
	if productDir != "" {
		red = filepath.Join(productDir, "red.tif")
		green = filepath.Join(productDir, "green.tif")
		blue = filepath.Join(productDir, "blue.tif")
	}
	if red == "" || green == "" || blue == "" {
		return "", "", "", fmt.Errorf("pass --product-dir or all of --red, --green and --blue")
	}
	for _, p := range []string{red, green, blue} {
		if err := requireFile(p, "band raster"); err != nil {
			return "", "", "", err
		}
	}
	return red, green, blue, nil
}

func newTrueColorCommand(a *app) *cobra.Command {
	opts := render.DefaultTrueColorOptions()
	var productDir, red, green, blue, geojson, output string
	var noGeojson, noBalance, noEsri bool
	cmd := &cobra.Command{
		Use:   "truecolor",
		Short: "Render an RGB composite of the red, green and blue bands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, g, b, err := rgbPaths(productDir, red, green, blue)
			if err != nil {
				return err
			}
			_, loader, err := a.rasters()
			if err != nil {
				return err
			}
			var overlays []string
			if !noGeojson && geojson != "" {
				overlays = []string{geojson}
			}
			opts.ChannelBalance = !noBalance
			opts.ShowEsri = !noEsri

			tc := render.NewTrueColorRenderer(loader, opts, a.logger)
			layer, err := tc.Prepare(r, g, b, overlays)
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(a.cfg.MapsDir, "truecolor_map.html")
			}
			if err := tc.RenderHTML(layer, output); err != nil {
				return err
			}
			PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("True colour map written to %s", output))
			a.metrics.AddArtifacts("map", 1)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&productDir, "product-dir", "", "processed product directory with red.tif, green.tif and blue.tif")
	fs.StringVar(&red, "red", "", "red band GeoTIFF")
	fs.StringVar(&green, "green", "", "green band GeoTIFF")
	fs.StringVar(&blue, "blue", "", "blue band GeoTIFF")
	fs.StringVar(&geojson, "geojson", defaultGeoJSON, "GeoJSON used as overlay and clip")
	fs.BoolVar(&noGeojson, "no-geojson", false, "do not use a GeoJSON overlay (nor clip)")
	fs.StringVar(&output, "output", "", "output HTML (default <maps>/truecolor_map.html)")
	fs.StringVar(&opts.Tiles, "tiles", opts.Tiles, "base map tiles")
	fs.StringVar(&opts.TileAttr, "tile-attr", defaultTileAttr, "tile attribution")
	fs.Float64Var(&opts.PaddingFactor, "padding", opts.PaddingFactor, "padding factor around the GeoJSON bounds")
	fs.BoolVar(&opts.Sharpen, "sharpen", opts.Sharpen, "apply the sharpen filter per channel")
	fs.Float64Var(&opts.SharpenRadius, "sharpen-radius", opts.SharpenRadius, "sharpen filter radius")
	fs.Float64Var(&opts.SharpenAmount, "sharpen-amount", opts.SharpenAmount, "sharpen filter amount")
	fs.Float64Var(&opts.StretchLower, "stretch-lower", opts.StretchLower, "lower percentile of the contrast stretch")
	fs.Float64Var(&opts.StretchUpper, "stretch-upper", opts.StretchUpper, "upper percentile of the contrast stretch")
	fs.Float64Var(&opts.SmoothRadius, "smooth-radius", opts.SmoothRadius, "gaussian smoothing radius")
	fs.Float64Var(&opts.SaturationBoost, "saturation", opts.SaturationBoost, "saturation boost")
	fs.Float64Var(&opts.Gamma, "gamma", opts.Gamma, "gamma correction")
	fs.BoolVar(&noBalance, "no-balance", false, "disable channel balancing")
	fs.BoolVar(&noEsri, "no-esri", false, "do not add the Esri imagery layer")
	fs.Float64Var(&opts.EsriOpacity, "esri-opacity", opts.EsriOpacity, "Esri imagery opacity")
	fs.IntVar(&opts.ZoomStart, "zoom-start", opts.ZoomStart, "initial zoom")
	fs.IntVar(&opts.MinZoom, "min-zoom", opts.MinZoom, "minimum zoom")
	fs.IntVar(&opts.MaxZoom, "max-zoom", opts.MaxZoom, "maximum zoom")
	fs.IntVar(&opts.MaxNativeZoom, "max-native-zoom", opts.MaxNativeZoom, "maximum native zoom of the base tiles")
	cmd.MarkFlagsMutuallyExclusive("product-dir", "red")
	return cmd
}

func newCSVMapCommand(a *app) *cobra.Command {
	mf := &mapFlags{}
	var csvPath, output, preview string
	cmd := &cobra.Command{
		Use:   "csv-map",
		Short: "Rebuild a map from a longitude,latitude,value CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFile(csvPath, "CSV"); err != nil {
				return err
			}
			overlays := mf.overlays()
			for _, o := range overlays {
				if err := requireFile(o, "GeoJSON"); err != nil {
					return err
				}
			}
			r := render.NewCSVMapRenderer(mf.indexOptions(cmd), a.logger)
			layer, err := r.Prepare(csvPath, overlays)
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(a.cfg.MapsDir, stem(csvPath)+"_csv_map.html")
			}
			if err := r.RenderHTML(layer, output); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			PrintSuccess(out, fmt.Sprintf("Map written to %s", output))
			a.metrics.AddArtifacts("map", 1)
			if preview != "" {
				path := resolveAuto(preview, filepath.Join(a.cfg.MapsDir, stem(csvPath)+"_preview.png"))
				if err := r.Preview(layer, path); err != nil {
					return err
				}
				PrintInfo(out, fmt.Sprintf("Preview written to %s", path))
			}
			return nil
		},
	}
	mf.register(cmd)
	fs := cmd.Flags()
	fs.StringVar(&csvPath, "csv", "", "CSV with longitude, latitude, value columns")
	fs.StringVar(&output, "output", "", "output HTML (default <maps>/<csv>_csv_map.html)")
	fs.StringVar(&preview, "preview", "", "write a static PNG/JPEG preview (bare flag: <maps>/<csv>_preview.png)")
	fs.Lookup("preview").NoOptDefVal = autoPath
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}

func newDashboardCommand(a *app) *cobra.Command {
	mf := &mapFlags{}
	var csvDir, productDir, red, green, blue, output string
	var stretchLower, stretchUpper float64
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Tabbed page with the true colour composite and one map per CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, g, b, err := rgbPaths(productDir, red, green, blue)
			if err != nil {
				return err
			}
			_, loader, err := a.rasters()
			if err != nil {
				return err
			}
			if csvDir == "" {
				csvDir = a.cfg.TablesDir
			}
			if output == "" {
				output = filepath.Join(a.cfg.MapsDir, "dashboard_indices.html")
			}
			opts := render.DashboardOptions{
				IndexOptions: mf.indexOptions(cmd),
				StretchLower: stretchLower,
				StretchUpper: stretchUpper,
			}
			written, err := render.NewDashboardRenderer(loader, opts, a.logger).Render(csvDir, r, g, b, mf.overlays(), output)
			if err != nil {
				return err
			}
			PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Dashboard written to %s", written))
			a.metrics.AddArtifacts("map", 1)
			return nil
		},
	}
	mf.register(cmd)
	defaults := render.DefaultDashboardOptions()
	fs := cmd.Flags()
	fs.StringVar(&csvDir, "csv-dir", "", "directory with index CSVs (default <tables>)")
	fs.StringVar(&productDir, "product-dir", "", "processed product directory with red.tif, green.tif and blue.tif")
	fs.StringVar(&red, "red", "", "red band GeoTIFF")
	fs.StringVar(&green, "green", "", "green band GeoTIFF")
	fs.StringVar(&blue, "blue", "", "blue band GeoTIFF")
	fs.StringVar(&output, "output", "", "output HTML (default <maps>/dashboard_indices.html)")
	fs.Float64Var(&stretchLower, "stretch-lower", defaults.StretchLower, "lower percentile of the true colour stretch")
	fs.Float64Var(&stretchUpper, "stretch-upper", defaults.StretchUpper, "upper percentile of the true colour stretch")
	return cmd
}

func newGalleryCommand(a *app) *cobra.Command {
	opts := render.DefaultGalleryOptions()
	var productDir, geojson, output string
	var noGeojson bool
	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "HTML gallery with a grayscale thumbnail of every extracted band",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(productDir); err != nil {
				return fmt.Errorf("product directory not found: %s", productDir)
			}
			_, loader, err := a.rasters()
			if err != nil {
				return err
			}
			if noGeojson {
				geojson = ""
			}
			if output == "" {
				output = filepath.Join(a.cfg.MapsDir, filepath.Base(productDir)+"_bands.html")
			}
			written, err := render.NewGalleryRenderer(loader, opts, a.logger).Render(productDir, output, geojson)
			if err != nil {
				return err
			}
			PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Gallery written to %s", written))
			a.metrics.AddArtifacts("gallery", 1)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&productDir, "product-dir", "", "processed product directory with the band GeoTIFFs")
	fs.StringVar(&geojson, "geojson", defaultGeoJSON, "GeoJSON used to crop and outline the thumbnails")
	fs.BoolVar(&noGeojson, "no-geojson", false, "show the full bands")
	fs.StringVar(&output, "output", "", "output HTML (default <maps>/<product>_bands.html)")
	fs.Float64Var(&opts.StretchLower, "stretch-lower", opts.StretchLower, "lower percentile of the grayscale stretch")
	fs.Float64Var(&opts.StretchUpper, "stretch-upper", opts.StretchUpper, "upper percentile of the grayscale stretch")
	fs.UintVar(&opts.ThumbWidth, "thumb-width", opts.ThumbWidth, "thumbnail width in pixels")
	fs.IntVar(&opts.Workers, "workers", opts.Workers, "thumbnails rendered in parallel")
	_ = cmd.MarkFlagRequired("product-dir")
	return cmd
}

func newCompareCommand(a *app) *cobra.Command {
	opts := render.DefaultCompareOptions()
	var index, geojson, output string
	var vmin, vmax float64
	var noGeojson bool
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Side by side map: base layers on the left, the index on the right",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFile(index, "index raster"); err != nil {
				return err
			}
			_, loader, err := a.rasters()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("vmin") {
				opts.Vmin = &vmin
			}
			if cmd.Flags().Changed("vmax") {
				opts.Vmax = &vmax
			}
			var overlays []string
			if !noGeojson && geojson != "" {
				overlays = []string{geojson}
			}
			if output == "" {
				output = filepath.Join(a.cfg.MapsDir, stem(index)+"_compare.html")
			}
			written, err := render.NewCompareRenderer(loader, opts, a.logger).Render(index, output, overlays)
			if err != nil {
				return err
			}
			PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Comparison map written to %s", written))
			a.metrics.AddArtifacts("map", 1)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&index, "index", "", "index GeoTIFF to compare")
	fs.StringVar(&geojson, "geojson", defaultGeoJSON, "GeoJSON overlay")
	fs.BoolVar(&noGeojson, "no-geojson", false, "do not draw a GeoJSON overlay")
	fs.StringVar(&output, "output", "", "output HTML (default <maps>/<index>_compare.html)")
	fs.StringVar(&opts.Colormap, "cmap", colormap.Default, "colormap for the gradient")
	fs.Float64Var(&vmin, "vmin", 0, "fixed colormap minimum")
	fs.Float64Var(&vmax, "vmax", 0, "fixed colormap maximum")
	fs.Float64Var(&opts.Opacity, "opacity", opts.Opacity, "overlay opacity (0-1)")
	fs.BoolVar(&opts.Sharpen, "sharpen", opts.Sharpen, "apply the sharpen filter")
	fs.Float64Var(&opts.SharpenRadius, "sharpen-radius", opts.SharpenRadius, "sharpen filter radius")
	fs.Float64Var(&opts.SharpenAmount, "sharpen-amount", opts.SharpenAmount, "sharpen filter amount")
	fs.StringVar(&opts.Tiles, "tiles", opts.Tiles, "base map tiles")
	fs.StringVar(&opts.TileAttr, "tile-attr", "", "tile attribution")
	fs.IntVar(&opts.MaxZoom, "max-zoom", opts.MaxZoom, "maximum zoom")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}
