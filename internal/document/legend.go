package document

import (
	"bytes"
	"fmt"
	"html/template"

	svg "github.com/ajstarks/svgo"
)

const (
	legendWidth  = 280
	legendHeight = 56
	legendBarY   = 20
	legendBarH   = 14
	legendPad    = 10
)

// LegendSVG draws a horizontal colour bar with min/max ticks and a caption.
func LegendSVG(l Legend) (template.HTML, error) {
	if len(l.Colors) == 0 {
		return "", fmt.Errorf("%w: legend %q has no colours", ErrEmptyDocument, l.Caption)
	}
	stops := make([]svg.Offcolor, len(l.Colors))
	for i, c := range l.Colors {
		offset := 0
		if len(l.Colors) > 1 {
			offset = i * 100 / (len(l.Colors) - 1)
		}
		stops[i] = svg.Offcolor{Offset: uint8(offset), Color: c, Opacity: 1}
	}

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(legendWidth, legendHeight, `class="legend"`)
	canvas.Def()
	canvas.LinearGradient("legend-gradient", 0, 0, 100, 0, stops)
	canvas.DefEnd()
	canvas.Rect(0, 0, legendWidth, legendHeight, "fill:white;fill-opacity:0.85")
	canvas.Text(legendPad, 14, l.Caption, "font-size:11px;font-family:sans-serif;fill:#222")
	canvas.Rect(legendPad, legendBarY, legendWidth-2*legendPad, legendBarH,
		"fill:url(#legend-gradient);stroke:#555;stroke-width:0.5")
	tickY := legendBarY + legendBarH + 14
	canvas.Text(legendPad, tickY, formatTick(l.Min), "font-size:10px;font-family:sans-serif;fill:#222")
	canvas.Text(legendWidth-legendPad, tickY, formatTick(l.Max),
		"font-size:10px;font-family:sans-serif;fill:#222;text-anchor:end")
	canvas.End()
	return template.HTML(buf.String()), nil
}

func formatTick(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.3f", v)
}
