package geo

import (
	"encoding/json"
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// PlateStats summarizes a plate boundary collection for logging.
type PlateStats struct {
	Features    int
	LineStrings int
	Vertices    int
}

// NewPlateCollection returns an empty, non-nil boundary collection.
func NewPlateCollection() *geojson.FeatureCollection {
	return &geojson.FeatureCollection{Features: []*geojson.Feature{}}
}

// DecodePlates parses a plate boundary FeatureCollection.
func DecodePlates(data []byte) (*geojson.FeatureCollection, error) {
	fc := NewPlateCollection()
	if err := json.Unmarshal(data, fc); err != nil {
		return nil, fmt.Errorf("decode plate boundaries: %w", err)
	}
	if fc.Features == nil {
		fc.Features = []*geojson.Feature{}
	}

	return fc, nil
}

// CountPlates counts line strings and vertices of the boundaries.
func CountPlates(fc *geojson.FeatureCollection) PlateStats {
	var s PlateStats
	if fc == nil {
		return s
	}

	s.Features = len(fc.Features)
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}

		switch g := f.Geometry.(type) {
		case *geom.LineString:
			s.LineStrings++
		case *geom.MultiLineString:
			s.LineStrings += g.NumLineStrings()
		}

		if stride := f.Geometry.Stride(); stride > 0 {
			s.Vertices += len(f.Geometry.FlatCoords()) / stride
		}
	}

	return s
}
