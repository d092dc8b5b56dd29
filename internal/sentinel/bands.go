package sentinel

import "sort"

// Band is one Sentinel-2 MSI band and the alias its GeoTIFF is stored under.
type Band struct {
	ID    string
	Alias string
	Label string
}

// DefaultBands lists the L2A bands in product order.
var DefaultBands = []Band{
	{ID: "B01", Alias: "coastal", Label: "B01 Coastal/Aerosol"},
	{ID: "B02", Alias: "blue", Label: "B02 Blue"},
	{ID: "B03", Alias: "green", Label: "B03 Green"},
	{ID: "B04", Alias: "red", Label: "B04 Red"},
	{ID: "B05", Alias: "rededge1", Label: "B05 Red-edge 1"},
	{ID: "B06", Alias: "rededge2", Label: "B06 Red-edge 2"},
	{ID: "B07", Alias: "rededge3", Label: "B07 Red-edge 3"},
	{ID: "B08", Alias: "nir", Label: "B08 NIR"},
	{ID: "B8A", Alias: "rededge4", Label: "B8A Narrow NIR"},
	{ID: "B09", Alias: "water_vapor", Label: "B09 Water Vapour"},
	{ID: "B10", Alias: "cirrus", Label: "B10 Cirrus"},
	{ID: "B11", Alias: "swir1", Label: "B11 SWIR 1"},
	{ID: "B12", Alias: "swir2", Label: "B12 SWIR 2"},
}

func isKnownAlias(alias string) bool {
	for _, b := range DefaultBands {
		if b.Alias == alias {
			return true
		}
	}
	return false
}

// BandSet maps a band alias to the raster holding it.
type BandSet map[string]string

// Missing returns the aliases not present in the set, sorted.
func (s BandSet) Missing(aliases ...string) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range aliases {
		if _, ok := s[a]; ok || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (s BandSet) Aliases() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
