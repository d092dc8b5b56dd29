package document

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
)

type GalleryEntry struct {
	Key   string
	Label string
	URI   template.URL
}

type Gallery struct {
	Product    string
	ClipSource string
	Entries    []GalleryEntry
}

func WriteGallery(path string, g Gallery) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "gallery.html.tmpl", g); err != nil {
		return fmt.Errorf("failed to render gallery %s: %w", path, err)
	}
	return writeFile(path, buf.Bytes())
}

// Tab is one dashboard page; its map is rendered into an isolated iframe.
type Tab struct {
	Key string
	Map *Map
}

type Dashboard struct {
	Title  string
	Height string
	Tabs   []Tab
}

type tabView struct {
	Key  string
	HTML string
}

func WriteDashboard(path string, d Dashboard) error {
	if len(d.Tabs) == 0 {
		return fmt.Errorf("%w: dashboard %s has no tabs", ErrEmptyDocument, path)
	}
	view := struct {
		Title  string
		Height string
		Tabs   []tabView
	}{Title: d.Title, Height: d.Height}
	if view.Title == "" {
		view.Title = "Dashboard Indices Sentinel-2"
	}
	if view.Height == "" {
		view.Height = "600px"
	}
	for _, tab := range d.Tabs {
		var page bytes.Buffer
		if err := RenderMap(&page, tab.Map); err != nil {
			return fmt.Errorf("failed to render tab %s: %w", tab.Key, err)
		}
		view.Tabs = append(view.Tabs, tabView{Key: tab.Key, HTML: page.String()})
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "dashboard.html.tmpl", view); err != nil {
		return fmt.Errorf("failed to render dashboard %s: %w", path, err)
	}
	return writeFile(path, buf.Bytes())
}

// DualMap renders two maps side by side with synchronised pan and zoom.
type DualMap struct {
	Title string
	Left  *Map
	Right *Map
}

func WriteDualMap(path string, d DualMap) error {
	if d.Left == nil || d.Right == nil {
		return fmt.Errorf("%w: dual map %s needs two maps", ErrEmptyDocument, path)
	}
	if d.Left.ID == "" {
		d.Left.ID = "map_left"
	}
	if d.Right.ID == "" {
		d.Right.ID = "map_right"
	}
	left, err := d.Left.view()
	if err != nil {
		return err
	}
	right, err := d.Right.view()
	if err != nil {
		return err
	}
	view := struct {
		Title       string
		Left, Right mapView
	}{Title: d.Title, Left: left, Right: right}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "dual.html.tmpl", view); err != nil {
		return fmt.Errorf("failed to render dual map %s: %w", path, err)
	}
	return writeFile(path, buf.Bytes())
}

type Link struct {
	Name     string
	Href     string
	Modified string
}

type Listing struct {
	Title string
	Links []Link
}

// RenderListing writes an index page linking generated documents.
func RenderListing(w io.Writer, l Listing) error {
	if l.Title == "" {
		l.Title = "Mapas gerados"
	}
	return templates.ExecuteTemplate(w, "listing.html.tmpl", l)
}
