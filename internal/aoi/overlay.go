package aoi

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Overlay keeps every feature of a vector file so renderers can mask by all
// polygons and embed the attributes in the map document.
type Overlay struct {
	Path     string
	Features *geojson.FeatureCollection
}

func LoadOverlay(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read overlay %s: %w", path, err)
	}
	fc, err := parseCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse overlay %s: %w", path, err)
	}
	return &Overlay{Path: path, Features: fc}, nil
}

func LoadOverlays(paths []string) ([]*Overlay, error) {
	out := make([]*Overlay, 0, len(paths))
	for _, p := range paths {
		o, err := LoadOverlay(p)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func parseCollection(data []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case "FeatureCollection":
		return geojson.UnmarshalFeatureCollection(data)
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(geojson.NewFeature(g.Geometry()))
		return fc, nil
	}
}

// Polygons returns the areal geometries of the overlay. Other geometry types
// are drawn but never used for masking.
func (o *Overlay) Polygons() []orb.Geometry {
	var out []orb.Geometry
	for _, f := range o.Features.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
			out = append(out, f.Geometry)
		}
	}
	return out
}

func (o *Overlay) JSON() ([]byte, error) {
	return o.Features.MarshalJSON()
}

// Geometries flattens the polygons of several overlays.
func Geometries(overlays []*Overlay) []orb.Geometry {
	var out []orb.Geometry
	for _, o := range overlays {
		out = append(out, o.Polygons()...)
	}
	return out
}
