package raster

import "math"

// EdgeMode selects how the Gaussian kernel is extended past the border.
type EdgeMode int

const (
	// EdgeReflect mirrors about the edge (d c b a | a b c d | d c b a).
	EdgeReflect EdgeMode = iota
	// EdgeNearest repeats the border pixel.
	EdgeNearest
)

const gaussianTruncate = 4.0

// Smooth applies a Gaussian blur of the given sigma in pixels with reflected
// edges. NaN pixels stay NaN and do not bleed into their neighbours.
func Smooth(g *Grid, sigma float64) *Grid {
	return SmoothEdge(g, sigma, EdgeReflect)
}

func SmoothEdge(g *Grid, sigma float64, mode EdgeMode) *Grid {
	if sigma <= 0 {
		return g.Clone()
	}
	kernel := gaussianKernel(sigma)

	num := make([]float64, len(g.Data))
	den := make([]float64, len(g.Data))
	for i, v := range g.Data {
		if isFinite(v) {
			num[i] = v
			den[i] = 1
		}
	}
	num = convolveRows(convolveCols(num, g.Width, g.Height, kernel, mode), g.Width, g.Height, kernel, mode)
	den = convolveRows(convolveCols(den, g.Width, g.Height, kernel, mode), g.Width, g.Height, kernel, mode)

	out := g.like()
	for i, v := range g.Data {
		if !isFinite(v) || den[i] == 0 {
			out.Data[i] = math.NaN()
			continue
		}
		out.Data[i] = num[i] / den[i]
	}
	return out
}

// Sharpen is an unsharp mask: data + amount*(data - blur(data, radius)).
func Sharpen(g *Grid, radius, amount float64) *Grid {
	if radius <= 0 || amount == 0 {
		return g.Clone()
	}
	blurred := Smooth(g, radius)
	out := g.like()
	for i, v := range g.Data {
		out.Data[i] = v + amount*(v-blurred.Data[i])
	}
	return out
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(gaussianTruncate*sigma + 0.5)
	k := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		k[i+radius] = w
		sum += w
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

func edgeIndex(i, n int, mode EdgeMode) int {
	if i >= 0 && i < n {
		return i
	}
	if mode == EdgeNearest || n == 1 {
		if i < 0 {
			return 0
		}
		return n - 1
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

func convolveRows(in []float64, w, h int, k []float64, mode EdgeMode) []float64 {
	r := len(k) / 2
	out := make([]float64, len(in))
	for y := 0; y < h; y++ {
		row := in[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var acc float64
			for j, kv := range k {
				acc += kv * row[edgeIndex(x+j-r, w, mode)]
			}
			out[y*w+x] = acc
		}
	}
	return out
}

func convolveCols(in []float64, w, h int, k []float64, mode EdgeMode) []float64 {
	r := len(k) / 2
	out := make([]float64, len(in))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var acc float64
			for j, kv := range k {
				acc += kv * in[edgeIndex(y+j-r, h, mode)*w+x]
			}
			out[y*w+x] = acc
		}
	}
	return out
}
