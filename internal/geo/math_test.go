package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLonLatToTile(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float64
		z        int
		x, y     int
	}{
		{"world at zoom 0", -95.71, 37.09, 0, 0, 0},
		{"north america at zoom 4", -95.71, 37.09, 4, 3, 6},
		{"origin at zoom 1", 0, 0, 1, 1, 1},
		{"clamped north pole", 0, 90, 2, 2, 0},
		{"clamped antimeridian", 180, -90, 2, 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := LonLatToTile(tt.lon, tt.lat, tt.z)
			assert.Equal(t, tt.x, x)
			assert.Equal(t, tt.y, y)
		})
	}
}
