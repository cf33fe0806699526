// Package style maps earthquake depth to colors and builds the depth legend.
package style

import (
	"math"
	"slices"
)

// Band is one depth range: depths strictly greater than Lower get Color.
type Band struct {
	Color string
	Lower float64
}

// bands is ordered from the highest lower bound to the lowest.
// The last band catches everything else, including NaN.
var bands = []Band{
	{Lower: 70, Color: "#3e4444"},
	{Lower: 50, Color: "#82b74b"},
	{Lower: 30, Color: "#c1946a"},
	{Lower: 10, Color: "#405d27"},
	{Lower: math.Inf(-1), Color: "#c4b7a6"},
}

// Bands returns a copy of the depth bands, deepest first.
func Bands() []Band {
	return slices.Clone(bands)
}

// ChooseColor returns the color of the first band whose lower bound depth exceeds.
func ChooseColor(depth float64) string {
	return bands[bandPos(depth)].Color
}

// BandIndex ranks the band of depth from 0 (shallowest) to len(Bands())-1 (deepest).
func BandIndex(depth float64) int {
	return len(bands) - 1 - bandPos(depth)
}

func bandPos(depth float64) int {
	last := len(bands) - 1
	for i := 0; i < last; i++ {
		if depth > bands[i].Lower {
			return i
		}
	}

	return last
}
