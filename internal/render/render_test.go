package render

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forest-guardian/canasat/internal/dataset"
	"github.com/forest-guardian/canasat/internal/document"
	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLoader struct {
	grids map[string]*raster.Grid
	calls int
}

func (m *memLoader) Load(path string, clip *orb.Bound) (*raster.Grid, error) {
	m.calls++
	g, ok := m.grids[path]
	if !ok {
		return nil, fmt.Errorf("no raster at %s: %w", path, os.ErrNotExist)
	}
	if clip == nil {
		return g.Clone(), nil
	}
	return raster.Clip(g, *clip)
}

// unitGrid covers lon [0,1] x lat [0,1] with n x n pixels whose value is
// col/n.
func unitGrid(n int) *raster.Grid {
	step := 1 / float64(n)
	g := raster.New(n, n, raster.GeoTransform{0, step, 0, 1, 0, -step}, "EPSG:4326")
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			g.Set(col, row, float64(col)/float64(n))
		}
	}
	return g
}

func writeAOI(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "map.geojson")
	body := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"area":12},` +
		`"geometry":{"type":"Polygon","coordinates":[[[0.3,0.3],[0.7,0.3],[0.7,0.7],[0.3,0.7],[0.3,0.3]]]}}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func countFinite(g *raster.Grid) int {
	return len(g.Finite())
}

func plainIndexOptions() IndexOptions {
	o := DefaultIndexOptions()
	o.Clip = true
	o.Upsample = 1
	o.SmoothRadius = 0
	o.Sharpen = false
	o.Tiles = "none"
	return o
}

func TestIndexPrepareClipsAndMasks(t *testing.T) {
	dir := t.TempDir()
	aoiPath := writeAOI(t, dir)
	loader := &memLoader{grids: map[string]*raster.Grid{"ndvi.tif": unitGrid(10)}}

	layer, err := NewIndexRenderer(loader, plainIndexOptions(), zerolog.Nop()).Prepare("ndvi.tif", []string{aoiPath})
	require.NoError(t, err)

	assert.Equal(t, "ndvi", layer.Name)
	require.NotNil(t, layer.Clip)
	assert.InDelta(t, 0.24, layer.Clip.Min[0], 1e-9)
	assert.InDelta(t, 0.76, layer.Clip.Max[1], 1e-9)
	assert.Equal(t, *layer.Clip, layer.Bounds)
	assert.Equal(t, 6, layer.Grid.Width)
	assert.Equal(t, 6, layer.Grid.Height)
	assert.Equal(t, 16, countFinite(layer.Grid))
	assert.Equal(t, uint8(0), layer.Image.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(191), layer.Image.NRGBAAt(2, 2).A)
}

func TestIndexPrepareRemasksAfterUpsample(t *testing.T) {
	dir := t.TempDir()
	aoiPath := writeAOI(t, dir)
	loader := &memLoader{grids: map[string]*raster.Grid{"ndvi.tif": unitGrid(10)}}
	opts := plainIndexOptions()
	opts.Upsample = 2
	opts.SmoothRadius = 1

	layer, err := NewIndexRenderer(loader, opts, zerolog.Nop()).Prepare("ndvi.tif", []string{aoiPath})
	require.NoError(t, err)

	assert.Equal(t, 12, layer.Grid.Width)
	for row := 0; row < layer.Grid.Height; row++ {
		for col := 0; col < layer.Grid.Width; col++ {
			x, y := layer.Grid.Transform.PixelCenter(col, row)
			inside := x > 0.3 && x < 0.7 && y > 0.3 && y < 0.7
			if !inside {
				assert.True(t, math.IsNaN(layer.Grid.At(col, row)), "pixel %d,%d outside the AOI", col, row)
			}
		}
	}
}

func TestIndexPrepareWithoutClip(t *testing.T) {
	loader := &memLoader{grids: map[string]*raster.Grid{"ndwi.tif": unitGrid(4)}}
	opts := plainIndexOptions()
	opts.Clip = false

	layer, err := NewIndexRenderer(loader, opts, zerolog.Nop()).Prepare("ndwi.tif", nil)
	require.NoError(t, err)

	assert.Nil(t, layer.Clip)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, layer.Bounds)
	assert.Equal(t, 0.0, layer.Min)
	assert.Equal(t, 0.75, layer.Max)
}

func TestIndexRenderHTMLAndCSV(t *testing.T) {
	dir := t.TempDir()
	aoiPath := writeAOI(t, dir)
	loader := &memLoader{grids: map[string]*raster.Grid{"ndvi.tif": unitGrid(10)}}
	r := NewIndexRenderer(loader, plainIndexOptions(), zerolog.Nop())

	layer, err := r.Prepare("ndvi.tif", []string{aoiPath})
	require.NoError(t, err)

	htmlPath := filepath.Join(dir, "mapas", "ndvi_map.html")
	require.NoError(t, r.RenderHTML(layer, htmlPath))
	raw, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "NDVI (RdYlGn)")

	n, err := r.ExportCSV(layer, filepath.Join(dir, "tabelas", "ndvi.csv"))
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	points, err := r.ExportPoints(layer, filepath.Join(dir, "ndvi.geojson"))
	require.NoError(t, err)
	assert.Equal(t, 16, points)
	raw, err = os.ReadFile(filepath.Join(dir, "ndvi.geojson"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"ndvi":`)

	require.NoError(t, r.Preview(layer, filepath.Join(dir, "ndvi.png")))
	require.NoError(t, r.Preview(layer, filepath.Join(dir, "ndvi.jpg")))
	head, err := os.ReadFile(filepath.Join(dir, "ndvi.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, head[:2])
}

func TestUnknownTilesFails(t *testing.T) {
	loader := &memLoader{grids: map[string]*raster.Grid{"ndvi.tif": unitGrid(4)}}
	opts := plainIndexOptions()
	opts.Tiles = "Not A Provider"
	r := NewIndexRenderer(loader, opts, zerolog.Nop())

	layer, err := r.Prepare("ndvi.tif", nil)
	require.NoError(t, err)
	_, err = r.Map(layer)
	assert.ErrorIs(t, err, ErrUnknownTiles)
}

func TestMultiAssembleWithPanel(t *testing.T) {
	dir := t.TempDir()
	aoiPath := writeAOI(t, dir)
	loader := &memLoader{grids: map[string]*raster.Grid{
		"indices/ndvi.tif": unitGrid(10),
		"indices/ndwi.tif": unitGrid(10),
	}}
	opts := DefaultMultiOptions()
	opts.IndexOptions = plainIndexOptions()
	opts.EnablePanel = true

	m, err := NewMultiRenderer(loader, opts, zerolog.Nop()).Assemble(
		[]string{"indices/ndvi.tif", "indices/ndwi.tif"}, []string{aoiPath})
	require.NoError(t, err)

	require.NotNil(t, m.Panel)
	assert.Equal(t, []document.LayerEntry{
		{Name: "Mapa base", ID: "__base__"},
		{Name: "NDVI", ID: "index_0"},
		{Name: "NDWI", ID: "index_1"},
	}, m.Panel.Entries)
	assert.Equal(t, "#ffd43b", m.Panel.HighlightColor)
	assert.Equal(t, 5, m.Panel.HighlightWeight)
	assert.False(t, m.LayerControl)

	require.Len(t, m.Images, 2)
	assert.True(t, m.Images[0].Visible)
	assert.False(t, m.Images[1].Visible)
	assert.Equal(t, "ndvi (0.30..0.60)", m.Images[0].Name)
	assert.Equal(t, "RdYlGn (escala relativa por camada)", m.Legend.Caption)
	assert.Len(t, m.Legend.Colors, 10)
	require.Len(t, m.GeoJSON, 1)
	assert.Equal(t, "#3388ff", m.GeoJSON[0].Color)
	assert.Equal(t, 3, m.GeoJSON[0].Weight)
}

func TestMultiWithoutPanelUsesLayerControl(t *testing.T) {
	loader := &memLoader{grids: map[string]*raster.Grid{"ndvi.tif": unitGrid(4)}}
	opts := DefaultMultiOptions()
	opts.IndexOptions = plainIndexOptions()

	m, err := NewMultiRenderer(loader, opts, zerolog.Nop()).Assemble([]string{"ndvi.tif"}, nil)
	require.NoError(t, err)
	assert.Nil(t, m.Panel)
	assert.True(t, m.LayerControl)
}

func TestMultiRequiresLayers(t *testing.T) {
	_, err := NewMultiRenderer(&memLoader{}, DefaultMultiOptions(), zerolog.Nop()).Render(nil, "out.html", nil)
	assert.ErrorIs(t, err, ErrNoLayers)
}

func TestMultiRenderWritesDocument(t *testing.T) {
	dir := t.TempDir()
	loader := &memLoader{grids: map[string]*raster.Grid{"ndvi.tif": unitGrid(4)}}
	opts := DefaultMultiOptions()
	opts.IndexOptions = plainIndexOptions()
	opts.EnablePanel = true

	out := filepath.Join(dir, "compare_indices_all.html")
	got, err := NewMultiRenderer(loader, opts, zerolog.Nop()).Render([]string{"ndvi.tif"}, out, nil)
	require.NoError(t, err)
	assert.Equal(t, out, got)
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `data-layer-id="__base__"`)
}

func TestStretchConstantBand(t *testing.T) {
	g := raster.New(2, 1, raster.GeoTransform{0, 1, 0, 1, 0, -1}, "")
	g.Set(0, 0, 5)
	g.Set(1, 0, math.NaN())

	s, err := stretch(g, 1, 99)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.At(0, 0))
	assert.Equal(t, 0.0, s.At(1, 0))

	_, err = stretch(raster.New(2, 2, raster.GeoTransform{0, 1, 0, 1, 0, -1}, ""), 1, 99)
	assert.ErrorIs(t, err, raster.ErrNoValidData)
}

func TestBalanceSkipsEmptyChannel(t *testing.T) {
	gt := raster.GeoTransform{0, 1, 0, 1, 0, -1}
	r := raster.New(2, 1, gt, "")
	g := raster.New(2, 1, gt, "")
	b := raster.New(2, 1, gt, "")
	copy(r.Data, []float64{0.2, 0.4})
	copy(g.Data, []float64{0.6, 0.6})
	copy(b.Data, []float64{0, 0})

	balance([]*raster.Grid{r, g, b})

	// target = mean(0.3, 0.6, 0) = 0.3
	assert.InDelta(t, 0.2, r.Data[0], 1e-12)
	assert.InDelta(t, 0.3, g.Data[0], 1e-12)
	assert.Equal(t, 0.0, b.Data[0])
}

func TestTrueColorPrepareAlignsBands(t *testing.T) {
	dir := t.TempDir()
	aoiPath := writeAOI(t, dir)
	loader := &memLoader{grids: map[string]*raster.Grid{
		"red.tif":   unitGrid(20),
		"green.tif": unitGrid(10),
		"blue.tif":  unitGrid(20),
	}}

	layer, err := NewTrueColorRenderer(loader, DefaultTrueColorOptions(), zerolog.Nop()).
		Prepare("red.tif", "green.tif", "blue.tif", []string{aoiPath})
	require.NoError(t, err)

	assert.InDelta(t, 0.24, layer.Bounds.Min[0], 1e-9)
	assert.Equal(t, 12, layer.Image.Bounds().Dx())
	for i := 3; i < len(layer.Image.Pix); i += 4 {
		assert.Equal(t, uint8(255), layer.Image.Pix[i])
	}
}

func TestTrueColorFailsOnEmptyBand(t *testing.T) {
	empty := raster.New(4, 4, raster.GeoTransform{0, 0.25, 0, 1, 0, -0.25}, "EPSG:4326")
	loader := &memLoader{grids: map[string]*raster.Grid{
		"red.tif": unitGrid(4), "green.tif": empty, "blue.tif": unitGrid(4),
	}}
	_, err := NewTrueColorRenderer(loader, DefaultTrueColorOptions(), zerolog.Nop()).
		Prepare("red.tif", "green.tif", "blue.tif", nil)
	assert.ErrorIs(t, err, raster.ErrNoValidData)
}

func TestCSVMapPrepare(t *testing.T) {
	dir := t.TempDir()
	aoiPath := writeAOI(t, dir)
	csvPath := filepath.Join(dir, "ndre.csv")
	_, err := dataset.ExportCSV(unitGrid(10), csvPath, true)
	require.NoError(t, err)

	r := NewCSVMapRenderer(plainIndexOptions(), zerolog.Nop())
	layer, err := r.Prepare(csvPath, []string{aoiPath})
	require.NoError(t, err)
	assert.Equal(t, "ndre", layer.Name)
	assert.Equal(t, 16, countFinite(layer.Grid))

	htmlPath := filepath.Join(dir, "ndre_csv_map.html")
	require.NoError(t, r.RenderHTML(layer, htmlPath))
	raw, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "NDRE (RdYlGn)")

	empty := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(empty, []byte("longitude,latitude,value\n"), 0o644))
	_, err = NewCSVMapRenderer(plainIndexOptions(), zerolog.Nop()).Prepare(empty, nil)
	assert.ErrorIs(t, err, dataset.ErrEmptyCSV)
}

func TestDashboardRender(t *testing.T) {
	dir := t.TempDir()
	aoiPath := writeAOI(t, dir)
	csvDir := filepath.Join(dir, "tabelas")
	for _, name := range []string{"ndvi", "msi"} {
		_, err := dataset.ExportCSV(unitGrid(10), filepath.Join(csvDir, name+".csv"), true)
		require.NoError(t, err)
	}
	loader := &memLoader{grids: map[string]*raster.Grid{
		"red.tif": unitGrid(10), "green.tif": unitGrid(10), "blue.tif": unitGrid(10),
	}}
	opts := DefaultDashboardOptions()
	opts.IndexOptions = plainIndexOptions()

	out := filepath.Join(dir, "dashboard.html")
	_, err := NewDashboardRenderer(loader, opts, zerolog.Nop()).
		Render(csvDir, "red.tif", "green.tif", "blue.tif", []string{aoiPath}, out)
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	html := string(raw)
	truecolor := strings.Index(html, `href="#truecolor"`)
	msi := strings.Index(html, `href="#msi"`)
	ndvi := strings.Index(html, `href="#ndvi"`)
	assert.True(t, truecolor >= 0 && truecolor < msi && msi < ndvi)
}

func TestDashboardWithoutCSV(t *testing.T) {
	dir := t.TempDir()
	_, err := NewDashboardRenderer(&memLoader{}, DefaultDashboardOptions(), zerolog.Nop()).
		Render(dir, "red.tif", "green.tif", "blue.tif", nil, filepath.Join(dir, "out.html"))
	assert.ErrorIs(t, err, ErrNoCSVFiles)
	assert.Contains(t, err.Error(), dir)
}

func TestCompareRender(t *testing.T) {
	dir := t.TempDir()
	aoiPath := writeAOI(t, dir)
	loader := &memLoader{grids: map[string]*raster.Grid{"ndvi.tif": unitGrid(4)}}

	out := filepath.Join(dir, "compare.html")
	_, err := NewCompareRenderer(loader, DefaultCompareOptions(), zerolog.Nop()).Render("ndvi.tif", out, []string{aoiPath})
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "NDVI (min=0.000, max=0.750)")
	assert.Contains(t, string(raw), `id="map_left"`)
}

func TestGalleryRender(t *testing.T) {
	dir := t.TempDir()
	aoiPath := writeAOI(t, dir)
	productDir := filepath.Join(dir, "S2B_TEST")
	require.NoError(t, os.MkdirAll(productDir, 0o755))
	empty := raster.New(10, 10, raster.GeoTransform{0, 0.1, 0, 1, 0, -0.1}, "EPSG:4326")
	grids := map[string]*raster.Grid{}
	for alias, g := range map[string]*raster.Grid{"red": unitGrid(10), "nir": unitGrid(10), "cirrus": empty} {
		path := filepath.Join(productDir, alias+".tif")
		require.NoError(t, os.WriteFile(path, nil, 0o644))
		grids[path] = g
	}
	opts := DefaultGalleryOptions()
	opts.Quiet = true

	out := filepath.Join(dir, "gallery.html")
	_, err := NewGalleryRenderer(&memLoader{grids: grids}, opts, zerolog.Nop()).Render(productDir, out, aoiPath)
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	html := string(raw)
	assert.Contains(t, html, "Sentinel-2 Band Gallery - S2B_TEST")
	assert.Contains(t, html, `alt="red"`)
	assert.Contains(t, html, `alt="nir"`)
	assert.NotContains(t, html, `alt="cirrus"`)
	assert.Less(t, strings.Index(html, `alt="red"`), strings.Index(html, `alt="nir"`))
}
