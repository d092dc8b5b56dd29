package output

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"golang.org/x/image/font/basicfont"
)

var OutlineColor = color.RGBA{R: 0, G: 255, B: 255, A: 255}

// DrawOutline strokes the rings of geoms over img, which is assumed to cover
// bounds exactly (north up).
func DrawOutline(img image.Image, bounds orb.Bound, geoms []orb.Geometry, c color.Color, width float64) image.Image {
	dc := gg.NewContextForImage(img)
	if len(geoms) == 0 || bounds.IsEmpty() {
		return dc.Image()
	}
	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())
	spanX := bounds.Max[0] - bounds.Min[0]
	spanY := bounds.Max[1] - bounds.Min[1]
	if spanX == 0 || spanY == 0 {
		return dc.Image()
	}
	project := func(p orb.Point) (float64, float64) {
		return (p[0] - bounds.Min[0]) / spanX * w, (bounds.Max[1] - p[1]) / spanY * h
	}

	dc.SetColor(c)
	dc.SetLineWidth(width)
	for _, ring := range rings(geoms) {
		for i, p := range ring {
			x, y := project(p)
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		dc.ClosePath()
		dc.Stroke()
	}
	return dc.Image()
}

func rings(geoms []orb.Geometry) []orb.Ring {
	var out []orb.Ring
	for _, g := range geoms {
		switch v := g.(type) {
		case orb.Polygon:
			out = append(out, v...)
		case orb.MultiPolygon:
			for _, p := range v {
				out = append(out, p...)
			}
		case orb.Ring:
			out = append(out, v)
		case orb.Bound:
			out = append(out, v.ToRing())
		}
	}
	return out
}

const lineHeight = 16

// Caption stacks text lines above img on a dark background.
func Caption(img image.Image, lines ...string) image.Image {
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	header := lineHeight*len(lines) + 8

	dc := gg.NewContext(w, h+header)
	dc.SetRGB255(34, 34, 34)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)
	dc.SetRGB255(238, 238, 238)
	for i, line := range lines {
		dc.DrawStringAnchored(line, float64(w)/2, float64(4+lineHeight*i+lineHeight/2), 0.5, 0.5)
	}
	dc.DrawImage(img, 0, header)
	return dc.Image()
}
