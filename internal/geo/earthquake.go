package geo

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrMalformedFeature is returned for features lacking the fields a marker needs.
var ErrMalformedFeature = errors.New("malformed earthquake feature")

// Earthquake is one event of the USGS summary feed.
type Earthquake struct {
	Mag   *float64 // nil when the feed reports no magnitude
	ID    string
	Place string
	Time  int64 // milliseconds since epoch
	Lon   float64
	Lat   float64
	Depth float64 // km
}

// OccurredAt returns the event time in UTC.
func (q Earthquake) OccurredAt() time.Time {
	return time.UnixMilli(q.Time).UTC()
}

// ParseEarthquake extracts an earthquake from a USGS point feature.
// Coordinates must hold longitude, latitude and depth.
func ParseEarthquake(f GeoJSONFeature) (Earthquake, error) {
	id := FeatureID(f.ID)
	if len(f.Geometry.Coordinates) < 3 {
		return Earthquake{}, fmt.Errorf("%w: %q has %d coordinates, want 3",
			ErrMalformedFeature, id, len(f.Geometry.Coordinates))
	}

	q := Earthquake{
		ID:    id,
		Place: "Unknown",
		Lon:   f.Geometry.Coordinates[0],
		Lat:   f.Geometry.Coordinates[1],
		Depth: f.Geometry.Coordinates[2],
	}

	if place, ok := f.Properties["place"].(string); ok && place != "" {
		q.Place = place
	}

	if v, ok := number(f.Properties["time"]); ok {
		q.Time = int64(v)
	}

	if v, ok := number(f.Properties["mag"]); ok && !math.IsNaN(v) {
		q.Mag = &v
	}

	return q, nil
}

// number accepts the numeric shapes produced by JSON and YAML decoders.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
