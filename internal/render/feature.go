// Package render turns earthquake features into styled map markers with popups.
package render

import (
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/style"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	// RadiusScale converts magnitude to marker radius in pixels.
	RadiusScale = 5.0
	// MinRadius keeps markers with zero, negative or missing magnitude visible.
	MinRadius = 2.0
)

// MarkerOptions mirrors the Leaflet circle marker options.
type MarkerOptions struct {
	FillColor   string  `json:"fillColor" yaml:"fillColor"`
	Color       string  `json:"color" yaml:"color"`
	Radius      float64 `json:"radius" yaml:"radius"`
	Weight      float64 `json:"weight" yaml:"weight"`
	Opacity     float64 `json:"opacity" yaml:"opacity"`
	FillOpacity float64 `json:"fillOpacity" yaml:"fillOpacity"`
	Stroke      bool    `json:"stroke" yaml:"stroke"`
}

// Stats counts the outcome of a render pass.
type Stats struct {
	Rendered int
	Skipped  int
}

// Renderer builds popups and markers. The clock only affects the relative age in popups.
type Renderer struct {
	clock clockwork.Clock
}

// NewRenderer creates a renderer, falling back to the wall clock when clock is nil.
func NewRenderer(clock clockwork.Clock) *Renderer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Renderer{clock: clock}
}

// Radius returns magnitude × RadiusScale, clamped to MinRadius.
func Radius(mag *float64) float64 {
	if mag == nil {
		return MinRadius
	}

	r := *mag * RadiusScale
	if r < MinRadius {
		return MinRadius
	}

	return r
}

// Marker returns the circle marker options for an earthquake.
func Marker(q geo.Earthquake) MarkerOptions {
	color := style.ChooseColor(q.Depth)

	return MarkerOptions{
		Radius:      Radius(q.Mag),
		FillColor:   color,
		Color:       color,
		Weight:      1,
		Stroke:      true,
		Opacity:     1,
		FillOpacity: 0.75,
	}
}

// Popup returns the popup HTML describing place, time, magnitude and depth.
func (r *Renderer) Popup(q geo.Earthquake) string {
	at := q.OccurredAt()

	var b strings.Builder
	b.WriteString("<h3>Location: ")
	b.WriteString(html.EscapeString(q.Place))
	b.WriteString("</h3><hr><p>Time: ")
	b.WriteString(at.Format(time.RFC1123))
	b.WriteString(" (")
	b.WriteString(humanize.RelTime(at, r.clock.Now(), "ago", "from now"))
	b.WriteString(")</p><p>Magnitude: ")
	b.WriteString(formatMagnitude(q.Mag))
	b.WriteString("</p><p>Depth: ")
	b.WriteString(strconv.FormatFloat(q.Depth, 'f', -1, 64))
	b.WriteString(" km</p>")

	return b.String()
}

// Render converts a raw feed collection into styled point features.
// Malformed features are logged and skipped.
func (r *Renderer) Render(fc geo.GeoJSONFeatureCollection) (geo.GeoJSONFeatureCollection, Stats) {
	out := geo.NewFeatureCollection(len(fc.Features))
	var stats Stats

	for _, f := range fc.Features {
		q, err := geo.ParseEarthquake(f)
		if err != nil {
			stats.Skipped++
			log.Warn().Err(err).Msg("Skipping earthquake feature")
			continue
		}

		out.Features = append(out.Features, r.Feature(q))
		stats.Rendered++
	}

	return out, stats
}

// Feature builds the styled GeoJSON point for one earthquake.
func (r *Renderer) Feature(q geo.Earthquake) geo.GeoJSONFeature {
	props := map[string]any{
		"place":  q.Place,
		"time":   q.Time,
		"depth":  q.Depth,
		"popup":  r.Popup(q),
		"marker": Marker(q),
	}
	if q.Mag != nil {
		props["mag"] = *q.Mag
	}

	f := geo.GeoJSONFeature{
		Type: "Feature",
		Geometry: geo.GeoJSONGeometry{
			Type:        "Point",
			Coordinates: []float64{q.Lon, q.Lat, q.Depth},
		},
		Properties: props,
	}
	if q.ID != "" {
		f.ID = q.ID
	}

	return f
}

func formatMagnitude(mag *float64) string {
	if mag == nil {
		return "n/a"
	}

	return strconv.FormatFloat(*mag, 'f', -1, 64)
}
