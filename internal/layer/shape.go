// Package layer keeps the live, render-only objects derived from features.
package layer

import "github.com/paulmach/orb"

// Kind names a shape variant.
type Kind string

// Shape variants.
const (
	KindCircle  Kind = "circle"
	KindPolygon Kind = "polygon"
	KindLine    Kind = "line"
)

// Shape is the geometry payload of a layer: Circle, Polygon or Line.
type Shape interface {
	Kind() Kind
	Bound() orb.Bound
}

// Circle is one draggable point of a cluster.
type Circle struct {
	Center orb.Point
	Radius float64 // meters
}

// Kind implements Shape.
func (Circle) Kind() Kind { return KindCircle }

// Bound implements Shape.
func (c Circle) Bound() orb.Bound { return c.Center.Bound() }

// Polygon is an area outline.
type Polygon struct {
	Rings orb.Polygon
}

// Kind implements Shape.
func (Polygon) Kind() Kind { return KindPolygon }

// Bound implements Shape.
func (p Polygon) Bound() orb.Bound { return p.Rings.Bound() }

// Line connects two points of a cluster loop.
type Line struct {
	Color  string
	From   orb.Point
	To     orb.Point
	Meters float64
}

// Kind implements Shape.
func (Line) Kind() Kind { return KindLine }

// Bound implements Shape.
func (l Line) Bound() orb.Bound { return orb.LineString{l.From, l.To}.Bound() }

// Segment reports whether the line joins a and b in that direction.
func (l Line) Segment(a, b orb.Point) bool {
	return l.From == a && l.To == b
}
