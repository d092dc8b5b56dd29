package document

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMap() *Map {
	bounds := orb.Bound{Min: orb.Point{-47, -22}, Max: orb.Point{-46, -21}}
	return &Map{
		ID:     "map",
		Title:  "ndvi",
		Center: bounds.Center(),
		Zoom:   14,
		Tiles:  []TileLayer{{Name: EsriImageryName, URL: EsriImageryURL, Opacity: 1}},
		Images: []ImageOverlay{
			{ID: "index_0", Name: "ndvi (0.10..0.90)", URI: "data:image/png;base64,AAAA", Bounds: bounds, Opacity: 1, Visible: true},
			{ID: "index_1", Name: "ndwi (-0.20..0.30)", URI: "data:image/png;base64,BBBB", Bounds: bounds, Opacity: 1},
		},
		GeoJSON: []GeoJSONLayer{{ID: "aoi_0", Name: "AOI", Data: json.RawMessage(`{"type":"FeatureCollection","features":[]}`), Color: "#3388ff", Weight: 3}},
		Legend:  &Legend{Caption: "RdYlGn (escala relativa por camada)", Colors: []string{"#a50026", "#006837"}, Min: 0, Max: 1},
		Panel: &Panel{
			Entries:         []LayerEntry{{Name: BaseEntryName, ID: BaseEntryID}, {Name: "NDVI", ID: "index_0"}, {Name: "NDWI", ID: "index_1"}},
			GeoLayerIDs:     []string{"aoi_0"},
			BaseColor:       "#3388ff",
			BaseWeight:      3,
			HighlightColor:  "#ffd43b",
			HighlightWeight: 5,
		},
	}
}

func TestRenderMapWithPanel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderMap(&buf, sampleMap()))
	html := buf.String()

	assert.Contains(t, html, `<li data-layer-id="__base__">Mapa base</li>`)
	assert.Contains(t, html, `<li data-layer-id="index_0">NDVI</li>`)
	assert.Contains(t, html, `"layer_id":"__base__"`)
	assert.Contains(t, html, `"highlightColor":"#ffd43b"`)
	assert.Contains(t, html, `"bounds":[[-22,-47],[-21,-46]]`)
	assert.Contains(t, html, "RdYlGn (escala relativa por camada)")
	assert.Contains(t, html, "<svg")
	assert.Contains(t, html, `"visible":true`)
}

func TestRenderMapLayerControl(t *testing.T) {
	m := sampleMap()
	m.Panel = nil
	m.LayerControl = true

	var buf bytes.Buffer
	require.NoError(t, RenderMap(&buf, m))
	html := buf.String()

	assert.NotContains(t, html, "index-panel-list")
	assert.Contains(t, html, `"layerControl":true`)
}

func TestRenderMapNil(t *testing.T) {
	assert.ErrorIs(t, RenderMap(&bytes.Buffer{}, nil), ErrEmptyDocument)
}

func TestLegendSVGRequiresColours(t *testing.T) {
	_, err := LegendSVG(Legend{Caption: "empty"})
	assert.ErrorIs(t, err, ErrEmptyDocument)

	svg, err := LegendSVG(Legend{Caption: "NDVI (min=0.100, max=0.900)", Colors: []string{"#000000", "#808080", "#ffffff"}, Min: 0.1, Max: 0.9})
	require.NoError(t, err)
	assert.Contains(t, string(svg), `offset="50%"`)
	assert.Contains(t, string(svg), "0.100")
	assert.Contains(t, string(svg), "0.900")
}

func TestTileURL(t *testing.T) {
	url, ok := TileURL("CartoDB positron")
	assert.True(t, ok)
	assert.Contains(t, url, "light_all")

	url, ok = TileURL("https://example.com/{z}/{x}/{y}.png")
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/{z}/{x}/{y}.png", url)

	_, ok = TileURL("Stamen Toner")
	assert.False(t, ok)
}

func TestWriteGallery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "gallery.html")
	err := WriteGallery(path, Gallery{
		Product:    "S2B_MSIL2A_20240101",
		ClipSource: "dados/map.geojson",
		Entries:    []GalleryEntry{{Key: "red", Label: "B04 Red (red.tif) [0.01, 0.20]", URI: "data:image/png;base64,AAAA"}},
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(raw)
	assert.Contains(t, html, "Sentinel-2 Band Gallery - S2B_MSIL2A_20240101")
	assert.Contains(t, html, `src="data:image/png;base64,AAAA"`)
	assert.Contains(t, html, "Recorte aplicado com base no GeoJSON: dados/map.geojson")
}

func TestWriteDashboard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.html")
	err := WriteDashboard(path, Dashboard{Tabs: []Tab{
		{Key: "truecolor", Map: sampleMap()},
		{Key: "ndvi", Map: sampleMap()},
	}})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(raw)
	assert.Equal(t, 2, strings.Count(html, "<iframe srcdoc="))
	assert.Contains(t, html, `<a href="#truecolor">truecolor</a>`)
	assert.Contains(t, html, `<a href="#ndvi">ndvi</a>`)

	assert.ErrorIs(t, WriteDashboard(path, Dashboard{}), ErrEmptyDocument)
}

func TestWriteDualMap(t *testing.T) {
	left := sampleMap()
	left.ID = ""
	left.Images = nil
	left.Legend = nil
	left.Panel = nil
	right := sampleMap()
	right.ID = ""
	right.Panel = nil

	path := filepath.Join(t.TempDir(), "compare.html")
	require.NoError(t, WriteDualMap(path, DualMap{Title: "NDVI", Left: left, Right: right}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(raw)
	assert.Contains(t, html, `id="map_left"`)
	assert.Contains(t, html, `id="map_right"`)

	assert.ErrorIs(t, WriteDualMap(path, DualMap{Left: left}), ErrEmptyDocument)
}

func TestRenderListing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderListing(&buf, Listing{Links: []Link{{Name: "ndvi_map.html", Href: "/maps/ndvi_map.html"}}}))
	assert.Contains(t, buf.String(), "<title>Mapas gerados</title>")
	assert.Contains(t, buf.String(), `<a href="/maps/ndvi_map.html">ndvi_map.html</a>`)

	buf.Reset()
	require.NoError(t, RenderListing(&buf, Listing{Title: "x"}))
	assert.Contains(t, buf.String(), "Nenhum mapa gerado ainda.")
}
