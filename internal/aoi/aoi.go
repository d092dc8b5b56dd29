// Package aoi loads the boundary geometry that scopes a workflow run.
package aoi

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/encoding/wkt"
)

var (
	ErrEmptyFeatureCollection = errors.New("aoi: GeoJSON feature collection is empty")
	ErrEmptyRing              = errors.New("aoi: GeoJSON polygon ring is empty")
	ErrMissingGeometry        = errors.New("aoi: feature has no geometry")
)

// UnsupportedGeometryError is returned when the resolved geometry is neither
// a Polygon nor a MultiPolygon.
type UnsupportedGeometryError struct {
	Type string
}

func (e *UnsupportedGeometryError) Error() string {
	return fmt.Sprintf("aoi: unsupported geometry type: %s", e.Type)
}

// AreaOfInterest is immutable once built. Rings are always closed.
type AreaOfInterest struct {
	Path     string
	geometry orb.Geometry
}

func Load(path string) (*AreaOfInterest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read area of interest %s: %w", path, err)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse area of interest %s: %w", path, err)
	}
	a.Path = path
	return a, nil
}

// Parse resolves a Geometry, Feature or FeatureCollection (first feature) to
// a single Polygon or MultiPolygon.
func Parse(data []byte) (*AreaOfInterest, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode geojson: %w", err)
	}

	var g orb.Geometry
	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode feature collection: %w", err)
		}
		if len(fc.Features) == 0 {
			return nil, ErrEmptyFeatureCollection
		}
		g = fc.Features[0].Geometry
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode feature: %w", err)
		}
		g = f.Geometry
	default:
		geom, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode geometry: %w", err)
		}
		g = geom.Geometry()
	}
	if g == nil {
		return nil, ErrMissingGeometry
	}

	closed, err := closeRings(g)
	if err != nil {
		return nil, err
	}
	return &AreaOfInterest{geometry: closed}, nil
}

func closeRings(g orb.Geometry) (orb.Geometry, error) {
	switch t := g.(type) {
	case orb.Polygon:
		return closePolygon(t)
	case orb.MultiPolygon:
		out := make(orb.MultiPolygon, 0, len(t))
		for _, p := range t {
			cp, err := closePolygon(p)
			if err != nil {
				return nil, err
			}
			out = append(out, cp)
		}
		return out, nil
	default:
		return nil, &UnsupportedGeometryError{Type: g.GeoJSONType()}
	}
}

func closePolygon(p orb.Polygon) (orb.Polygon, error) {
	out := make(orb.Polygon, 0, len(p))
	for _, r := range p {
		if len(r) == 0 {
			return nil, ErrEmptyRing
		}
		ring := append(orb.Ring(nil), r...)
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		out = append(out, ring)
	}
	return out, nil
}

// Geometry returns the Polygon or MultiPolygon.
func (a *AreaOfInterest) Geometry() orb.Geometry {
	return orb.Clone(a.geometry)
}

func (a *AreaOfInterest) WKT() string {
	return wkt.MarshalString(a.geometry)
}

func (a *AreaOfInterest) Bounds() orb.Bound {
	return a.geometry.Bound()
}
