package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chai2010/webp"
	"golang.org/x/image/vector"

	"github.com/woozymasta/fencedraw/internal/layer"
)

// Quality of lossy WebP previews.
const Quality = 85

const circleSegments = 48

// Raster draws the layers onto a new RGBA image.
func Raster(layers []layer.Layer, opts Options) *image.RGBA {
	shown := visible(layers, opts)
	proj := fit(shown, opts)

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(parseHex(ColorBackground, 0xff)), image.Point{}, draw.Src)

	z := vector.NewRasterizer(opts.Width, opts.Height)
	fill := func(c color.Color, path func(z *vector.Rasterizer)) {
		z.Reset(opts.Width, opts.Height)
		z.DrawOp = draw.Over
		path(z)
		z.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{})
	}

	for _, l := range shown {
		switch s := l.Shape.(type) {
		case layer.Polygon:
			fill(parseHex(ColorPolygon, 0x33), func(z *vector.Rasterizer) {
				for _, ring := range s.Rings {
					for i, pt := range ring {
						x, y := proj.point(pt)
						if i == 0 {
							z.MoveTo(float32(x), float32(y))
						} else {
							z.LineTo(float32(x), float32(y))
						}
					}
					z.ClosePath()
				}
			})
			for _, ring := range s.Rings {
				for i := 1; i < len(ring); i++ {
					x1, y1 := proj.point(ring[i-1])
					x2, y2 := proj.point(ring[i])
					fill(parseHex(ColorPolygon, 0xff), segment(x1, y1, x2, y2, 2))
				}
			}

		case layer.Line:
			x1, y1 := proj.point(s.From)
			x2, y2 := proj.point(s.To)
			fill(parseHex(s.Color, 0xff), segment(x1, y1, x2, y2, 2))

		case layer.Circle:
			x, y := proj.point(s.Center)
			r := max(proj.meters(s.Center, s.Radius), 2)
			c := circleColor(l)
			fill(parseHex(c, 0x40), disc(x, y, r))
			fill(parseHex(c, 0xff), disc(x, y, 1.5))
		}
	}

	return img
}

// WebP encodes the layer preview as lossy WebP.
func WebP(w io.Writer, layers []layer.Layer, opts Options) error {
	img := Raster(layers, opts)
	if err := webp.Encode(w, img, &webp.Options{Lossless: false, Quality: Quality}); err != nil {
		return fmt.Errorf("encode webp: %w", err)
	}
	return nil
}

// segment returns a quad of the given pixel width around a line.
func segment(x1, y1, x2, y2, width float64) func(z *vector.Rasterizer) {
	return func(z *vector.Rasterizer) {
		dx, dy := x2-x1, y2-y1
		n := math.Hypot(dx, dy)
		if n == 0 {
			return
		}
		nx, ny := -dy/n*width/2, dx/n*width/2

		z.MoveTo(float32(x1+nx), float32(y1+ny))
		z.LineTo(float32(x2+nx), float32(y2+ny))
		z.LineTo(float32(x2-nx), float32(y2-ny))
		z.LineTo(float32(x1-nx), float32(y1-ny))
		z.ClosePath()
	}
}

func disc(cx, cy, r float64) func(z *vector.Rasterizer) {
	return func(z *vector.Rasterizer) {
		for i := 0; i <= circleSegments; i++ {
			a := 2 * math.Pi * float64(i) / circleSegments
			x, y := float32(cx+r*math.Cos(a)), float32(cy+r*math.Sin(a))
			if i == 0 {
				z.MoveTo(x, y)
			} else {
				z.LineTo(x, y)
			}
		}
		z.ClosePath()
	}
}

// parseHex reads a #rrggbb color. Malformed input yields opaque black.
func parseHex(s string, alpha uint8) color.NRGBA {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 16, 32)
	if err != nil || len(s) != 7 {
		return color.NRGBA{A: alpha}
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: alpha}
}
