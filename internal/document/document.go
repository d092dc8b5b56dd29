// Package document turns prepared map layers into standalone Leaflet HTML
// pages. Renderers describe what goes on a page with the types below; this
// package owns every piece of markup and script.
package document

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").ParseFS(templateFS, "templates/*.tmpl"))

var ErrEmptyDocument = errors.New("document: nothing to render")

const (
	EsriImageryURL  = "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}"
	EsriImageryName = "Esri World Imagery"

	BaseEntryName = "Mapa base"
	BaseEntryID   = "__base__"
)

var namedTiles = map[string]string{
	"openstreetmap":       "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
	"cartodb positron":    "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
	"cartodb dark_matter": "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
	"cartodb voyager":     "https://{s}.basemaps.cartocdn.com/rastertiles/voyager/{z}/{x}/{y}{r}.png",
}

// TileURL maps a provider name ("CartoDB positron", "OpenStreetMap", ...) to
// its URL template. Anything that already looks like a template is returned
// as is.
func TileURL(name string) (string, bool) {
	if strings.Contains(name, "{z}") {
		return name, true
	}
	url, ok := namedTiles[strings.ToLower(strings.TrimSpace(name))]
	return url, ok
}

type TileLayer struct {
	Name          string  `json:"name"`
	URL           string  `json:"url"`
	Attribution   string  `json:"attribution,omitempty"`
	MinZoom       int     `json:"minZoom,omitempty"`
	MaxZoom       int     `json:"maxZoom,omitempty"`
	MaxNativeZoom int     `json:"maxNativeZoom,omitempty"`
	Opacity       float64 `json:"opacity"`
}

// ImageOverlay is a georeferenced picture, usually a data URI.
type ImageOverlay struct {
	ID      string
	Name    string
	URI     string
	Bounds  orb.Bound
	Opacity float64
	Visible bool
}

type GeoJSONLayer struct {
	ID          string
	Name        string
	Data        json.RawMessage
	Color       string
	Weight      int
	FillOpacity float64
}

// LayerEntry is one row of the layer selector panel.
type LayerEntry struct {
	Name string `json:"name"`
	ID   string `json:"layer_id"`
}

// Panel replaces the native layer control with a selector listing Entries.
// Clicking an AOI feature highlights it and shows its properties.
type Panel struct {
	Title           string
	Entries         []LayerEntry
	GeoLayerIDs     []string
	BaseColor       string
	BaseWeight      int
	HighlightColor  string
	HighlightWeight int
}

type Legend struct {
	Caption string
	Colors  []string
	Min     float64
	Max     float64
}

// Map describes one Leaflet map. The first tile layer is shown initially.
type Map struct {
	ID           string
	Title        string
	Center       orb.Point
	Zoom         int
	MinZoom      int
	MaxZoom      int
	Fit          *orb.Bound
	Tiles        []TileLayer
	Images       []ImageOverlay
	GeoJSON      []GeoJSONLayer
	Legend       *Legend
	Panel        *Panel
	LayerControl bool
}

type boundsJSON [2][2]float64

func leafletBounds(b orb.Bound) boundsJSON {
	return boundsJSON{{b.Min[1], b.Min[0]}, {b.Max[1], b.Max[0]}}
}

type imageJSON struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	URI     string     `json:"uri"`
	Bounds  boundsJSON `json:"bounds"`
	Opacity float64    `json:"opacity"`
	Visible bool       `json:"visible"`
}

type geoJSONLayerJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Data        json.RawMessage `json:"data"`
	Color       string          `json:"color"`
	Weight      int             `json:"weight"`
	FillOpacity float64         `json:"fillOpacity"`
}

type panelJSON struct {
	Entries         []LayerEntry `json:"entries"`
	GeoLayerIDs     []string     `json:"geoLayerIds"`
	BaseColor       string       `json:"baseColor"`
	BaseWeight      int          `json:"baseWeight"`
	HighlightColor  string       `json:"highlightColor"`
	HighlightWeight int          `json:"highlightWeight"`
}

type mapJSON struct {
	ID           string             `json:"id"`
	Center       [2]float64         `json:"center"`
	Zoom         int                `json:"zoom"`
	MinZoom      int                `json:"minZoom,omitempty"`
	MaxZoom      int                `json:"maxZoom,omitempty"`
	Fit          *boundsJSON        `json:"fit,omitempty"`
	Tiles        []TileLayer        `json:"tiles"`
	Images       []imageJSON        `json:"images"`
	GeoJSON      []geoJSONLayerJSON `json:"geojson"`
	Panel        *panelJSON         `json:"panel,omitempty"`
	LayerControl bool               `json:"layerControl"`
}

func (m *Map) config() (template.JS, error) {
	cfg := mapJSON{
		ID:           m.ID,
		Center:       [2]float64{m.Center[1], m.Center[0]},
		Zoom:         m.Zoom,
		MinZoom:      m.MinZoom,
		MaxZoom:      m.MaxZoom,
		Tiles:        append([]TileLayer{}, m.Tiles...),
		Images:       make([]imageJSON, 0, len(m.Images)),
		GeoJSON:      make([]geoJSONLayerJSON, 0, len(m.GeoJSON)),
		LayerControl: m.LayerControl,
	}
	if m.Fit != nil {
		b := leafletBounds(*m.Fit)
		cfg.Fit = &b
	}
	for _, img := range m.Images {
		cfg.Images = append(cfg.Images, imageJSON{
			ID: img.ID, Name: img.Name, URI: img.URI,
			Bounds: leafletBounds(img.Bounds), Opacity: img.Opacity, Visible: img.Visible,
		})
	}
	for _, gj := range m.GeoJSON {
		data := gj.Data
		if len(data) == 0 {
			data = json.RawMessage("null")
		}
		cfg.GeoJSON = append(cfg.GeoJSON, geoJSONLayerJSON{
			ID: gj.ID, Name: gj.Name, Data: data,
			Color: gj.Color, Weight: gj.Weight, FillOpacity: gj.FillOpacity,
		})
	}
	if p := m.Panel; p != nil {
		cfg.Panel = &panelJSON{
			Entries:         p.Entries,
			GeoLayerIDs:     p.GeoLayerIDs,
			BaseColor:       p.BaseColor,
			BaseWeight:      p.BaseWeight,
			HighlightColor:  p.HighlightColor,
			HighlightWeight: p.HighlightWeight,
		}
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode map %s: %w", m.ID, err)
	}
	return template.JS(raw), nil
}

type mapView struct {
	*Map
	Config     template.JS
	LegendSVG  template.HTML
	PanelTitle string
}

func (m *Map) view() (mapView, error) {
	if m.ID == "" {
		m.ID = "map"
	}
	cfg, err := m.config()
	if err != nil {
		return mapView{}, err
	}
	v := mapView{Map: m, Config: cfg}
	if m.Legend != nil {
		svg, err := LegendSVG(*m.Legend)
		if err != nil {
			return mapView{}, err
		}
		v.LegendSVG = svg
	}
	if m.Panel != nil {
		v.PanelTitle = m.Panel.Title
		if v.PanelTitle == "" {
			v.PanelTitle = "Índices por talhão"
		}
	}
	return v, nil
}

// RenderMap writes the complete HTML page for m.
func RenderMap(w io.Writer, m *Map) error {
	if m == nil {
		return ErrEmptyDocument
	}
	v, err := m.view()
	if err != nil {
		return err
	}
	return templates.ExecuteTemplate(w, "map.html.tmpl", v)
}

func WriteMap(path string, m *Map) error {
	var buf bytes.Buffer
	if err := RenderMap(&buf, m); err != nil {
		return fmt.Errorf("failed to render map %s: %w", path, err)
	}
	return writeFile(path, buf.Bytes())
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (mapView) BaseID() string { return BaseEntryID }
