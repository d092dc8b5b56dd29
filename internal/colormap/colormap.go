// Package colormap maps normalised values to colours using the
// ColorBrewer/matplotlib palettes the maps are rendered with.
package colormap

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const Default = "RdYlGn"

var ErrUnknownColormap = errors.New("colormap: unknown colormap")

var palettes = map[string][]string{
	"RdYlGn":   {"#a50026", "#d73027", "#f46d43", "#fdae61", "#fee08b", "#ffffbf", "#d9ef8b", "#a6d96a", "#66bd63", "#1a9850", "#006837"},
	"Spectral": {"#9e0142", "#d53e4f", "#f46d43", "#fdae61", "#fee08b", "#ffffbf", "#e6f598", "#abdda4", "#66c2a5", "#3288bd", "#5e4fa2"},
	"RdBu":     {"#67001f", "#b2182b", "#d6604d", "#f4a582", "#fddbc7", "#f7f7f7", "#d1e5f0", "#92c5de", "#4393c3", "#2166ac", "#053061"},
	"BrBG":     {"#543005", "#8c510a", "#bf812d", "#dfc27d", "#f6e8c3", "#f5f5f5", "#c7eae5", "#80cdc1", "#35978f", "#01665e", "#003c30"},
	"YlGn":     {"#ffffe5", "#f7fcb9", "#d9f0a3", "#addd8e", "#78c679", "#41ab5d", "#238443", "#006837", "#004529"},
	"Greens":   {"#f7fcf5", "#e5f5e0", "#c7e9c0", "#a1d99b", "#74c476", "#41ab5d", "#238b45", "#006d2c", "#00441b"},
	"viridis":  {"#440154", "#482878", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"},
	"magma":    {"#000004", "#180f3d", "#440f76", "#721f81", "#9e2f7f", "#cd4071", "#f1605d", "#fd9668", "#feca8d", "#fcfdbf"},
	"gray":     {"#000000", "#ffffff"},
}

var registry = map[string][]colorful.Color{}

func init() {
	for name, hexes := range palettes {
		stops := make([]colorful.Color, len(hexes))
		for i, h := range hexes {
			c, err := colorful.Hex(h)
			if err != nil {
				panic(fmt.Sprintf("colormap %s: invalid stop %q: %v", name, h, err))
			}
			stops[i] = c
		}
		registry[name] = stops
	}
}

// Colormap is a piecewise linear palette over [0,1].
type Colormap struct {
	Name  string
	stops []colorful.Color
}

// Lookup resolves a palette by name. A "_r" suffix reverses it.
func Lookup(name string) (*Colormap, error) {
	base, reversed := strings.CutSuffix(name, "_r")
	stops, ok := registry[base]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColormap, name)
	}
	out := make([]colorful.Color, len(stops))
	copy(out, stops)
	if reversed {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return &Colormap{Name: name, stops: out}, nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (c *Colormap) color(t float64) colorful.Color {
	if math.IsNaN(t) || t <= 0 {
		return c.stops[0]
	}
	if t >= 1 {
		return c.stops[len(c.stops)-1]
	}
	pos := t * float64(len(c.stops)-1)
	i := int(pos)
	return c.stops[i].BlendRgb(c.stops[i+1], pos-float64(i))
}

// At returns the opaque colour at t, clamped to [0,1].
func (c *Colormap) At(t float64) color.NRGBA {
	r, g, b := c.color(t).Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

func (c *Colormap) Hex(t float64) string {
	return c.color(t).Clamped().Hex()
}

// Gradient samples n evenly spaced colours from 0 to 1.
func (c *Colormap) Gradient(n int) []string {
	if n < 2 {
		return []string{c.Hex(0)}
	}
	out := make([]string, n)
	for i := range out {
		out[i] = c.Hex(float64(i) / float64(n-1))
	}
	return out
}
