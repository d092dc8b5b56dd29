package colormap

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupEndpoints(t *testing.T) {
	cm, err := Lookup("RdYlGn")
	require.NoError(t, err)

	assert.Equal(t, color.NRGBA{R: 0xa5, G: 0x00, B: 0x26, A: 255}, cm.At(0))
	assert.Equal(t, color.NRGBA{R: 0x00, G: 0x68, B: 0x37, A: 255}, cm.At(1))
	assert.Equal(t, cm.At(0), cm.At(-3))
	assert.Equal(t, cm.At(1), cm.At(7))
	assert.Equal(t, cm.At(0), cm.At(math.NaN()))
}

func TestLookupReversed(t *testing.T) {
	cm, err := Lookup("RdYlGn")
	require.NoError(t, err)
	rev, err := Lookup("RdYlGn_r")
	require.NoError(t, err)

	assert.Equal(t, cm.At(0), rev.At(1))
	assert.Equal(t, cm.At(1), rev.At(0))
	assert.Equal(t, "RdYlGn_r", rev.Name)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("jet")
	assert.ErrorIs(t, err, ErrUnknownColormap)
	assert.Contains(t, err.Error(), "jet")
}

func TestGradient(t *testing.T) {
	cm, err := Lookup("gray")
	require.NoError(t, err)

	g := cm.Gradient(10)
	require.Len(t, g, 10)
	assert.Equal(t, "#000000", g[0])
	assert.Equal(t, "#ffffff", g[9])
	assert.Len(t, cm.Gradient(1), 1)
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	assert.Contains(t, names, Default)
	assert.IsIncreasing(t, names)
}
