// Package geo handles distances, severity colors and coordinate labels.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// MaxLat is the latitude limit of the Web Mercator projection.
const MaxLat = 85.05112878

// Distance returns the great-circle distance between two [lon, lat] points in meters.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// ValidPoint reports whether p is a finite coordinate inside WGS84 bounds.
func ValidPoint(p orb.Point) bool {
	lon, lat := p.Lon(), p.Lat()
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return false
	}

	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// Mercator projects a point into normalized Web Mercator space,
// x and y in [0..1] with y growing to the south.
func Mercator(p orb.Point) (x, y float64) {
	lat := p.Lat()
	if lat > MaxLat {
		lat = MaxLat
	} else if lat < -MaxLat {
		lat = -MaxLat
	}

	x = (p.Lon() + 180.0) / 360.0
	latRad := lat * math.Pi / 180.0
	y = (1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0

	return x, y
}
