package sentinel

import (
	"fmt"
	"math"
)

// Index is one member of the closed set of spectral indices.
type Index int

const (
	NDVI Index = iota
	NDWI
	MSI
	EVI
	NDRE
	NDMI
	NDRE1
	NDRE2
	NDRE3
	NDRE4
	CIRedEdge
	SIPI
	indexCount
)

// IndexSpec declares the bands an index reads, in the order the formula
// receives them.
type IndexSpec struct {
	Name    string
	Bands   []string
	Formula func(v []float64) float64
}

var indexSpecs = [indexCount]IndexSpec{
	NDVI:      {Name: "ndvi", Bands: []string{"nir", "red"}, Formula: normalizedDifference},
	NDWI:      {Name: "ndwi", Bands: []string{"nir", "swir1"}, Formula: normalizedDifference},
	MSI:       {Name: "msi", Bands: []string{"nir", "swir1"}, Formula: msi},
	EVI:       {Name: "evi", Bands: []string{"nir", "red", "blue"}, Formula: evi},
	NDRE:      {Name: "ndre", Bands: []string{"nir", "rededge4"}, Formula: normalizedDifference},
	NDMI:      {Name: "ndmi", Bands: []string{"nir", "swir1"}, Formula: normalizedDifference},
	NDRE1:     {Name: "ndre1", Bands: []string{"nir", "rededge1"}, Formula: normalizedDifference},
	NDRE2:     {Name: "ndre2", Bands: []string{"nir", "rededge2"}, Formula: normalizedDifference},
	NDRE3:     {Name: "ndre3", Bands: []string{"nir", "rededge3"}, Formula: normalizedDifference},
	NDRE4:     {Name: "ndre4", Bands: []string{"nir", "rededge4"}, Formula: normalizedDifference},
	CIRedEdge: {Name: "ci_rededge", Bands: []string{"nir", "rededge4"}, Formula: ciRedEdge},
	SIPI:      {Name: "sipi", Bands: []string{"nir", "red", "blue"}, Formula: sipi},
}

var indexByName = map[string]Index{}

func init() {
	for i := Index(0); i < indexCount; i++ {
		s := indexSpecs[i]
		if s.Name == "" || s.Formula == nil || len(s.Bands) == 0 {
			panic(fmt.Sprintf("sentinel: index %d is not fully declared", i))
		}
		if _, dup := indexByName[s.Name]; dup {
			panic(fmt.Sprintf("sentinel: duplicate index name %q", s.Name))
		}
		for _, b := range s.Bands {
			if !isKnownAlias(b) {
				panic(fmt.Sprintf("sentinel: index %s uses unknown band %q", s.Name, b))
			}
		}
		indexByName[s.Name] = i
	}
}

func (i Index) String() string {
	if i < 0 || i >= indexCount {
		return fmt.Sprintf("Index(%d)", int(i))
	}
	return indexSpecs[i].Name
}

func (i Index) Spec() IndexSpec {
	return indexSpecs[i]
}

func ParseIndex(name string) (Index, bool) {
	i, ok := indexByName[name]
	return i, ok
}

// AllIndices returns every index in declaration order.
func AllIndices() []Index {
	out := make([]Index, indexCount)
	for i := range out {
		out[i] = Index(i)
	}
	return out
}

func IndexNames() []string {
	out := make([]string, indexCount)
	for i := range out {
		out[i] = indexSpecs[i].Name
	}
	return out
}

// ratio returns 0 for a zero denominator and for NaN results.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	r := num / den
	if math.IsNaN(r) {
		return 0
	}
	return r
}

func normalizedDifference(v []float64) float64 {
	return ratio(v[0]-v[1], v[0]+v[1])
}

func msi(v []float64) float64 {
	return ratio(v[1], v[0])
}

func evi(v []float64) float64 {
	nir, red, blue := v[0], v[1], v[2]
	return 2.5 * ratio(nir-red, nir+6*red-7.5*blue+1)
}

func ciRedEdge(v []float64) float64 {
	if v[1] == 0 {
		return 0
	}
	r := v[0]/v[1] - 1
	if math.IsNaN(r) {
		return 0
	}
	return r
}

func sipi(v []float64) float64 {
	nir, red, blue := v[0], v[1], v[2]
	return ratio(nir-blue, nir-red)
}
