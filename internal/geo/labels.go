package geo

import (
	"fmt"
	"strings"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
	"github.com/uber/h3-go/v4"
)

// Geohash encodes p with the given number of characters.
func Geohash(p orb.Point, chars uint) string {
	return geohash.EncodeWithPrecision(p.Lat(), p.Lon(), chars)
}

// H3Cell returns the H3 cell index containing p at resolution res.
func H3Cell(p orb.Point, res int) string {
	return h3.LatLngToCell(h3.NewLatLng(p.Lat(), p.Lon()), res).String()
}

// PointLabel describes which annotations are rendered into a point popup.
type PointLabel struct {
	Precisions   []uint
	H3Resolution int // negative disables the H3 line
}

// Popup renders the text shown when a point is clicked.
func (l PointLabel) Popup(p orb.Point) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Lat: %.6f\nLng: %.6f", p.Lat(), p.Lon())
	for _, chars := range l.Precisions {
		fmt.Fprintf(&b, "\nHash: %s", Geohash(p, chars))
	}
	if l.H3Resolution >= 0 {
		fmt.Fprintf(&b, "\nH3: %s", H3Cell(p, l.H3Resolution))
	}

	return b.String()
}

// DistancePopup renders the text shown when a connecting line is clicked.
func DistancePopup(meters float64) string {
	return fmt.Sprintf("%.2fm", meters)
}
