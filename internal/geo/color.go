package geo

import "math"

// Line colors, from short to long segments.
const (
	ColorGreen  = "#2e7d32"
	ColorYellow = "#f9a825"
	ColorOrange = "#ef6c00"
	ColorRed    = "#c62828"
)

// colorSteps maps an inclusive distance ceiling in meters to a color.
var colorSteps = []struct {
	max   float64
	color string
}{
	{500, ColorGreen},
	{1000, ColorYellow},
	{1500, ColorOrange},
}

// ColorFor maps a segment length in meters to a display color.
// Longer segments never map to a milder color than shorter ones.
func ColorFor(meters float64) string {
	if math.IsNaN(meters) {
		return ColorRed
	}

	for _, step := range colorSteps {
		if meters <= step.max {
			return step.color
		}
	}

	return ColorRed
}
