// Package render draws previews of the live layers as SVG or WebP.
package render

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/woozymasta/fencedraw/internal/geo"
	"github.com/woozymasta/fencedraw/internal/layer"
)

// Fill and stroke colors of the preview.
const (
	ColorBackground = "#fafafa"
	ColorPolygon    = "#1976d2"
	ColorCircle     = "#6a1b9a"
	ColorNewCircle  = "#00897b"
)

// Options control the preview canvas.
type Options struct {
	Width   int
	Height  int
	Padding int

	ShowPolygons bool
	ShowCircles  bool
}

// DefaultOptions draws everything on a 1024x768 canvas.
func DefaultOptions() Options {
	return Options{Width: 1024, Height: 768, Padding: 24, ShowPolygons: true, ShowCircles: true}
}

// projection maps normalized Web Mercator coordinates onto the canvas.
type projection struct {
	minX, minY float64
	scale      float64
	offX, offY float64
}

func (p projection) point(pt orb.Point) (float64, float64) {
	x, y := geo.Mercator(pt)
	return (x-p.minX)*p.scale + p.offX, (y-p.minY)*p.scale + p.offY
}

// meters converts a ground distance at pt into canvas pixels.
func (p projection) meters(pt orb.Point, m float64) float64 {
	lat := math.Max(-geo.MaxLat, math.Min(geo.MaxLat, pt.Lat()))
	return m / (2 * math.Pi * orb.EarthRadius * math.Cos(lat*math.Pi/180)) * p.scale
}

// fit centers the bounds of the visible layers on the canvas.
func fit(layers []layer.Layer, opts Options) projection {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)

	for _, l := range layers {
		b := l.Shape.Bound()
		for _, pt := range []orb.Point{b.Min, b.Max} {
			x, y := geo.Mercator(pt)
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		}
	}

	w := float64(opts.Width - 2*opts.Padding)
	h := float64(opts.Height - 2*opts.Padding)
	if math.IsInf(minX, 1) || w <= 0 || h <= 0 {
		return projection{scale: 1, offX: float64(opts.Width) / 2, offY: float64(opts.Height) / 2}
	}

	dx, dy := maxX-minX, maxY-minY
	scale := math.Inf(1)
	if dx > 0 {
		scale = w / dx
	}
	if dy > 0 {
		scale = math.Min(scale, h/dy)
	}
	if math.IsInf(scale, 1) {
		// a single point: about 1 km across the canvas
		scale = w * 40000
	}

	return projection{
		minX:  minX,
		minY:  minY,
		scale: scale,
		offX:  (float64(opts.Width) - dx*scale) / 2,
		offY:  (float64(opts.Height) - dy*scale) / 2,
	}
}

// visible drops layers hidden by the options, keeping pane order:
// polygons, then lines, then circles.
func visible(layers []layer.Layer, opts Options) []layer.Layer {
	out := make([]layer.Layer, 0, len(layers))
	for _, pane := range []layer.Pane{layer.PanePolygons, layer.PaneLines, layer.PaneCircles} {
		for _, l := range layers {
			if l.Pane != pane {
				continue
			}
			if (pane == layer.PanePolygons && !opts.ShowPolygons) || (pane == layer.PaneCircles && !opts.ShowCircles) {
				continue
			}
			out = append(out, l)
		}
	}
	return out
}

func circleColor(l layer.Layer) string {
	if l.Uncommitted() {
		return ColorNewCircle
	}
	return ColorCircle
}
