package sentinel

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/forest-guardian/canasat/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	grids   map[string]*raster.Grid
	written map[string]*raster.Grid
	reads   []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{grids: map[string]*raster.Grid{}, written: map[string]*raster.Grid{}}
}

func (m *memoryStore) Read(path string) (*raster.Grid, error) {
	m.reads = append(m.reads, path)
	g, ok := m.grids[path]
	if !ok {
		return nil, fmt.Errorf("no raster at %s", path)
	}
	return g.Clone(), nil
}

func (m *memoryStore) Write(path string, g *raster.Grid) error {
	m.written[path] = g
	return nil
}

func flat(v float64, w, h int) *raster.Grid {
	g := &raster.Grid{Width: w, Height: h, Transform: raster.GeoTransform{300000, 10, 0, 7500000, 0, -10}, Projection: "EPSG:32723"}
	g.Data = make([]float64, w*h)
	for i := range g.Data {
		g.Data[i] = v
	}
	return g
}

func TestComputeNDVI(t *testing.T) {
	store := newMemoryStore()
	store.grids["nir.tif"] = flat(0.5, 2, 2)
	store.grids["red.tif"] = flat(0.1, 2, 2)
	out := filepath.Join(t.TempDir(), "indices")

	paths, err := NewCalculator(store).Compute(context.Background(), BandSet{"nir": "nir.tif", "red": "red.tif"}, out, []string{"ndvi"})
	require.NoError(t, err)

	want := filepath.Join(out, "ndvi.tif")
	assert.Equal(t, map[string]string{"ndvi": want}, paths)
	g := store.written[want]
	require.NotNil(t, g)
	for _, v := range g.Data {
		assert.InDelta(t, 0.6667, v, 1e-4)
	}
	assert.Equal(t, store.grids["nir.tif"].Transform, g.Transform)
	assert.Equal(t, "EPSG:32723", g.Projection)
	assert.DirExists(t, out)
	assert.Equal(t, "nir.tif", store.reads[0], "reference band is read first")
}

func TestComputeUnknownIndexBeforeIO(t *testing.T) {
	store := newMemoryStore()
	out := filepath.Join(t.TempDir(), "indices")

	_, err := NewCalculator(store).Compute(context.Background(), BandSet{"nir": "nir.tif", "red": "red.tif"}, out, []string{"ndvi", "zeta", "bogus"})

	var unknown *UnknownIndexError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"bogus", "zeta"}, unknown.Names)
	assert.Empty(t, store.reads)
	assert.NoDirExists(t, out)
}

func TestComputeMissingBand(t *testing.T) {
	store := newMemoryStore()
	_, err := NewCalculator(store).Compute(context.Background(), BandSet{"nir": "nir.tif", "red": "red.tif"}, t.TempDir(), []string{"ndwi"})

	var missing *MissingBandError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"swir1"}, missing.Bands)
	assert.Contains(t, err.Error(), "swir1")
	assert.Empty(t, store.reads)
}

func TestComputeMissingReferenceBand(t *testing.T) {
	store := newMemoryStore()
	_, err := NewCalculator(store, WithReferenceBand("green")).Compute(context.Background(), BandSet{"nir": "a", "red": "b"}, t.TempDir(), []string{"ndvi"})

	var missing *MissingBandError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"green"}, missing.Bands)
}

func TestComputeEmptyRequest(t *testing.T) {
	_, err := NewCalculator(newMemoryStore()).Compute(context.Background(), BandSet{}, t.TempDir(), []string{})
	assert.ErrorIs(t, err, ErrNoIndicesRequested)
}

func TestComputeAllDeduplicatesAndResamples(t *testing.T) {
	store := newMemoryStore()
	bands := BandSet{}
	for _, alias := range []string{"nir", "red", "blue", "swir1", "rededge1", "rededge2", "rededge3", "rededge4"} {
		bands[alias] = alias + ".tif"
		store.grids[alias+".tif"] = flat(0.3, 4, 4)
	}
	store.grids["nir.tif"] = flat(0.6, 4, 4)
	// 20 m band covering the same footprint
	coarse := flat(0.2, 2, 2)
	coarse.Transform = raster.GeoTransform{300000, 20, 0, 7500000, 0, -20}
	store.grids["swir1.tif"] = coarse

	out := t.TempDir()
	paths, err := NewCalculator(store).Compute(context.Background(), bands, out, nil)
	require.NoError(t, err)
	assert.Len(t, paths, len(IndexNames()))

	msi := store.written[filepath.Join(out, "msi.tif")]
	require.NotNil(t, msi)
	assert.Equal(t, 4, msi.Width)
	for _, v := range msi.Data {
		assert.InDelta(t, 0.2/0.6, v, 1e-12)
	}

	store.written = map[string]*raster.Grid{}
	paths, err = NewCalculator(store).Compute(context.Background(), bands, out, []string{"ndvi", "ndvi", "sipi"})
	require.NoError(t, err)
	assert.Len(t, paths, 2)
	assert.Len(t, store.written, 2)
}

func TestComputeCRSMismatch(t *testing.T) {
	store := newMemoryStore()
	store.grids["nir.tif"] = flat(0.5, 2, 2)
	other := flat(0.1, 3, 3)
	other.Projection = "EPSG:32722"
	store.grids["red.tif"] = other

	_, err := NewCalculator(store).Compute(context.Background(), BandSet{"nir": "nir.tif", "red": "red.tif"}, t.TempDir(), []string{"ndvi"})
	assert.ErrorIs(t, err, ErrCRSMismatch)
}

// warpingStore resamples by nearest neighbour onto the reference grid,
// standing in for a GDAL warp.
type warpingStore struct {
	*memoryStore
	warped []string
}

func (w *warpingStore) ReadOnto(path string, ref *raster.Grid) (*raster.Grid, error) {
	w.warped = append(w.warped, path)
	g, err := w.Read(path)
	if err != nil {
		return nil, err
	}
	out := raster.New(ref.Width, ref.Height, ref.Transform, ref.Projection)
	for i := range out.Data {
		out.Data[i] = g.Data[0]
	}
	return out, nil
}

func TestComputeReprojectsAcrossCRS(t *testing.T) {
	store := &warpingStore{memoryStore: newMemoryStore()}
	store.grids["nir.tif"] = flat(0.5, 2, 2)
	other := flat(0.1, 3, 3)
	other.Projection = "EPSG:32722"
	store.grids["red.tif"] = other
	out := t.TempDir()

	paths, err := NewCalculator(store).Compute(context.Background(), BandSet{"nir": "nir.tif", "red": "red.tif"}, out, []string{"ndvi"})
	require.NoError(t, err)
	assert.Equal(t, []string{"red.tif"}, store.warped)

	g := store.written[paths["ndvi"]]
	require.NotNil(t, g)
	assert.Equal(t, 2, g.Width)
	assert.Equal(t, "EPSG:32723", g.Projection)
	assert.InDelta(t, 0.4/0.6, g.At(1, 1), 1e-9)
}

func TestComputeZeroPixels(t *testing.T) {
	store := newMemoryStore()
	nir := flat(0.5, 2, 1)
	nir.Data[1] = 0
	red := flat(0.1, 2, 1)
	red.Data[1] = 0
	store.grids["nir.tif"], store.grids["red.tif"] = nir, red

	out := t.TempDir()
	_, err := NewCalculator(store).Compute(context.Background(), BandSet{"nir": "nir.tif", "red": "red.tif"}, out, []string{"ndvi"})
	require.NoError(t, err)
	g := store.written[filepath.Join(out, "ndvi.tif")]
	assert.Equal(t, 0.0, g.Data[1])
	assert.False(t, math.IsNaN(g.Data[1]))
}

func TestComputeHonoursCancellation(t *testing.T) {
	store := newMemoryStore()
	store.grids["nir.tif"] = flat(0.5, 1, 1)
	store.grids["red.tif"] = flat(0.1, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := t.TempDir()
	_, err := NewCalculator(store).Compute(ctx, BandSet{"nir": "nir.tif", "red": "red.tif"}, out, []string{"ndvi"})
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(filepath.Join(out, "ndvi.tif"))
	assert.True(t, os.IsNotExist(statErr))
}
