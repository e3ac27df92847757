package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/woozymasta/fencedraw/internal/layer"
)

const mimeSVG = "image/svg+xml"

// SVG draws the layers as a minified SVG document.
func SVG(layers []layer.Layer, opts Options) ([]byte, error) {
	shown := visible(layers, opts)
	proj := fit(shown, opts)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		opts.Width, opts.Height, opts.Width, opts.Height)
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="%s"/>`, ColorBackground)

	for _, l := range shown {
		switch s := l.Shape.(type) {
		case layer.Polygon:
			b.WriteString(`<path fill-rule="evenodd" d="`)
			for _, ring := range s.Rings {
				for i, pt := range ring {
					x, y := proj.point(pt)
					cmd := "L"
					if i == 0 {
						cmd = "M"
					}
					fmt.Fprintf(&b, "%s%.2f %.2f", cmd, x, y)
				}
				b.WriteString("Z")
			}
			fmt.Fprintf(&b, `" fill="%s" fill-opacity="0.2" stroke="%s" stroke-width="2">`, ColorPolygon, ColorPolygon)
			writeTitle(&b, l.Name)
			b.WriteString(`</path>`)

		case layer.Line:
			x1, y1 := proj.point(s.From)
			x2, y2 := proj.point(s.To)
			fmt.Fprintf(&b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="2">`,
				x1, y1, x2, y2, s.Color)
			writeTitle(&b, l.Popup)
			b.WriteString(`</line>`)

		case layer.Circle:
			x, y := proj.point(s.Center)
			r := max(proj.meters(s.Center, s.Radius), 2)
			color := circleColor(l)
			fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="%.2f" fill="%s" fill-opacity="0.25" stroke="%s">`,
				x, y, r, color, color)
			writeTitle(&b, l.Popup)
			b.WriteString(`</circle>`)
		}
	}
	b.WriteString(`</svg>`)

	m := minify.New()
	m.AddFunc(mimeSVG, svg.Minify)

	out, err := m.String(mimeSVG, b.String())
	if err != nil {
		return nil, fmt.Errorf("minify svg: %w", err)
	}
	return []byte(out), nil
}

func writeTitle(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	b.WriteString("<title>")
	b.WriteString(html.EscapeString(text))
	b.WriteString("</title>")
}
