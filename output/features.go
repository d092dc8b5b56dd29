package output

import (
	"encoding/json"
	"fmt"

	"github.com/forest-guardian/canasat/internal/dataset"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// WritePointsGeoJSON writes one Point feature per sample with its value
// under the given property name.
func WritePointsGeoJSON(path, property string, rows []dataset.PixelValue) error {
	fc := geojson.NewFeatureCollection()
	for _, row := range rows {
		f := geojson.NewFeature(orb.Point{row.Longitude, row.Latitude})
		f.Properties[property] = row.Value
		fc.Append(f)
	}

	file, err := create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fc); err != nil {
		return fmt.Errorf("failed to encode GeoJSON: %w", err)
	}
	return nil
}
