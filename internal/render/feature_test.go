package render

import (
	"strings"
	"testing"
	"time"

	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/style"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mag(v float64) *float64 { return &v }

func testRenderer() *Renderer {
	// Three days after the sample event.
	return NewRenderer(clockwork.NewFakeClockAt(time.Date(2023, 11, 17, 22, 13, 20, 0, time.UTC)))
}

func TestRadius(t *testing.T) {
	assert.Equal(t, 20.0, Radius(mag(4)))
	assert.Equal(t, 26.0, Radius(mag(5.2)))
	assert.Equal(t, MinRadius, Radius(mag(0)))
	assert.Equal(t, MinRadius, Radius(mag(-1.3)))
	assert.Equal(t, MinRadius, Radius(nil))
}

func TestMarker(t *testing.T) {
	m := Marker(geo.Earthquake{Mag: mag(4), Depth: 71})

	assert.Equal(t, MarkerOptions{
		Radius:      20,
		FillColor:   "#3e4444",
		Color:       "#3e4444",
		Weight:      1,
		Stroke:      true,
		Opacity:     1,
		FillOpacity: 0.75,
	}, m)
}

func TestPopupAndMarkerEndToEnd(t *testing.T) {
	q := geo.Earthquake{
		Place: "10km N of X",
		Time:  1700000000000,
		Mag:   mag(5.2),
		Lon:   1,
		Lat:   2,
		Depth: 15,
	}
	r := testRenderer()

	popup := r.Popup(q)
	assert.Contains(t, popup, "10km N of X")
	assert.Contains(t, popup, "Tue, 14 Nov 2023 22:13:20 UTC")
	assert.Contains(t, popup, "3 days ago")
	assert.Contains(t, popup, "Magnitude: 5.2")
	assert.Contains(t, popup, "Depth: 15")

	m := Marker(q)
	assert.Equal(t, style.ChooseColor(15), m.FillColor)
	assert.Equal(t, "#405d27", m.Color)
}

func TestPopupEscapesPlace(t *testing.T) {
	popup := testRenderer().Popup(geo.Earthquake{Place: `<script>alert(1)</script>`})
	assert.NotContains(t, popup, "<script>")
	assert.Contains(t, popup, "&lt;script&gt;")
	assert.Contains(t, popup, "Magnitude: n/a")
}

func TestRender(t *testing.T) {
	fc := geo.GeoJSONFeatureCollection{
		Type: "FeatureCollection",
		Features: []geo.GeoJSONFeature{
			{
				ID:         "a",
				Type:       "Feature",
				Properties: map[string]any{"mag": 4.0, "place": "Somewhere", "time": 1700000000000.0},
				Geometry:   geo.GeoJSONGeometry{Type: "Point", Coordinates: []float64{10, 20, 35}},
			},
			{
				ID:       "bad",
				Type:     "Feature",
				Geometry: geo.GeoJSONGeometry{Type: "Point", Coordinates: []float64{10}},
			},
		},
	}

	out, stats := testRenderer().Render(fc)
	assert.Equal(t, Stats{Rendered: 1, Skipped: 1}, stats)
	require.Len(t, out.Features, 1)

	f := out.Features[0]
	assert.Equal(t, "a", f.ID)
	assert.Equal(t, []float64{10, 20, 35}, f.Geometry.Coordinates)
	assert.Equal(t, 4.0, f.Properties["mag"])

	marker, ok := f.Properties["marker"].(MarkerOptions)
	require.True(t, ok)
	assert.Equal(t, 20.0, marker.Radius)
	assert.Equal(t, "#c1946a", marker.Color)

	popup, ok := f.Properties["popup"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(popup, "<h3>Location: Somewhere</h3>"))
}

func TestRenderEmpty(t *testing.T) {
	out, stats := testRenderer().Render(geo.GeoJSONFeatureCollection{})
	assert.Equal(t, "FeatureCollection", out.Type)
	assert.NotNil(t, out.Features)
	assert.Zero(t, stats.Rendered)
}

func TestRenderNumericID(t *testing.T) {
	fc := geo.NewFeatureCollection(2)
	fc.Features = append(fc.Features,
		geo.GeoJSONFeature{ID: 42.0, Type: "Feature", Geometry: geo.GeoJSONGeometry{Type: "Point", Coordinates: []float64{1, 2, 3}}},
		geo.GeoJSONFeature{Type: "Feature", Geometry: geo.GeoJSONGeometry{Type: "Point", Coordinates: []float64{4, 5, 6}}},
	)

	out, stats := testRenderer().Render(fc)
	assert.Equal(t, Stats{Rendered: 2}, stats)
	require.Len(t, out.Features, 2)
	assert.Equal(t, "42", out.Features[0].ID)
	assert.Nil(t, out.Features[1].ID)
}
