package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/mapview"
	"github.com/woozymasta/quakemap/internal/observability"
	"github.com/woozymasta/quakemap/internal/render"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom/encoding/geojson"
)

type fakeFetcher struct {
	quakes      Result[geo.GeoJSONFeatureCollection]
	plates      Result[*geojson.FeatureCollection]
	platesBlock chan struct{} // when set, FetchPlates waits for it or ctx
}

func (f *fakeFetcher) FetchEarthquakes(context.Context) Result[geo.GeoJSONFeatureCollection] {
	return f.quakes
}

func (f *fakeFetcher) FetchPlates(ctx context.Context) Result[*geojson.FeatureCollection] {
	if f.platesBlock != nil {
		select {
		case <-f.platesBlock:
		case <-ctx.Done():
			return Result[*geojson.FeatureCollection]{Err: ctx.Err()}
		}
	}

	return f.plates
}

func sampleQuakes() geo.GeoJSONFeatureCollection {
	return geo.GeoJSONFeatureCollection{
		Type: "FeatureCollection",
		Features: []geo.GeoJSONFeature{
			{
				ID:         "a",
				Type:       "Feature",
				Properties: map[string]any{"mag": 5.2, "place": "10km N of X", "time": 1700000000000.0},
				Geometry:   geo.GeoJSONGeometry{Type: "Point", Coordinates: []float64{1, 2, 15}},
			},
			{
				ID:       "bad",
				Type:     "Feature",
				Geometry: geo.GeoJSONGeometry{Type: "Point"},
			},
		},
	}
}

func samplePlates(t *testing.T) *geojson.FeatureCollection {
	t.Helper()

	fc, err := geo.DecodePlates([]byte(platesBody))
	require.NoError(t, err)

	return fc
}

func metricValue(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()

	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}

	return out.GetGauge().GetValue()
}

func newTestRefresher(f Fetcher, overlays Overlays, clock clockwork.Clock, interval time.Duration) (*Refresher, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return NewRefresher(f, render.NewRenderer(clock), overlays, metrics, clock, interval), metrics
}

func TestRefreshResolvesBothOverlays(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2023, 11, 15, 0, 0, 0, 0, time.UTC))
	overlays := NewOverlays()
	f := &fakeFetcher{
		quakes: Result[geo.GeoJSONFeatureCollection]{Value: sampleQuakes()},
		plates: Result[*geojson.FeatureCollection]{Value: samplePlates(t)},
	}

	r, metrics := newTestRefresher(f, overlays, clock, 0)
	require.NoError(t, r.Run(context.Background()))

	quakes := overlays.Earthquakes.Snapshot()
	assert.Equal(t, mapview.StateResolved, quakes.State)
	require.Len(t, quakes.Data.Features, 1)

	marker, ok := quakes.Data.Features[0].Properties["marker"].(render.MarkerOptions)
	require.True(t, ok)
	assert.Equal(t, "#405d27", marker.Color)
	assert.Equal(t, 26.0, marker.Radius)

	plates := overlays.Plates.Snapshot()
	assert.Equal(t, mapview.StateResolved, plates.State)
	assert.Len(t, plates.Data.Features, 1)

	assert.Equal(t, 1.0, metricValue(t, metrics.FeedFetches.WithLabelValues(FeedEarthquakes, "success")))
	assert.Equal(t, 1.0, metricValue(t, metrics.FeedFetches.WithLabelValues(FeedPlates, "success")))
	assert.Equal(t, 1.0, metricValue(t, metrics.FeedFeatures.WithLabelValues(FeedEarthquakes)))
	assert.Equal(t, 1.0, metricValue(t, metrics.FeaturesSkipped))
}

func TestRefreshFailureIsIsolated(t *testing.T) {
	clock := clockwork.NewFakeClock()
	overlays := NewOverlays()
	f := &fakeFetcher{
		quakes: Result[geo.GeoJSONFeatureCollection]{Value: sampleQuakes()},
		plates: Result[*geojson.FeatureCollection]{Err: errors.New("plates: status 404")},
	}

	r, metrics := newTestRefresher(f, overlays, clock, 0)
	err := r.Refresh(context.Background())
	require.EqualError(t, err, "plates: status 404")

	assert.Equal(t, mapview.StateResolved, overlays.Earthquakes.Status().State)

	plates := overlays.Plates.Snapshot()
	assert.Equal(t, mapview.StateFailed, plates.State)
	assert.Empty(t, plates.Data.Features)
	assert.Equal(t, "plates: status 404", overlays.Plates.Status().Error)
	assert.Equal(t, 1.0, metricValue(t, metrics.FeedFetches.WithLabelValues(FeedPlates, "error")))
}

func TestRefreshJoinsFeedErrors(t *testing.T) {
	overlays := NewOverlays()
	f := &fakeFetcher{
		quakes: Result[geo.GeoJSONFeatureCollection]{Err: errors.New("earthquakes: status 500")},
		plates: Result[*geojson.FeatureCollection]{Err: errors.New("plates: status 502")},
	}

	r, _ := newTestRefresher(f, overlays, clockwork.NewFakeClock(), 0)
	err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "earthquakes: status 500")
	assert.Contains(t, err.Error(), "plates: status 502")

	f.quakes = Result[geo.GeoJSONFeatureCollection]{Value: sampleQuakes()}
	f.plates = Result[*geojson.FeatureCollection]{Value: samplePlates(t)}
	assert.NoError(t, r.Refresh(context.Background()))
	assert.Equal(t, mapview.StateResolved, overlays.Plates.Status().State)
}

func TestMapRendersWhilePlatesNeverResolve(t *testing.T) {
	clock := clockwork.NewFakeClock()
	overlays := NewOverlays()
	f := &fakeFetcher{
		quakes:      Result[geo.GeoJSONFeatureCollection]{Value: sampleQuakes()},
		platesBlock: make(chan struct{}),
	}

	r, _ := newTestRefresher(f, overlays, clock, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Refresh(ctx)
	}()

	require.Eventually(t, func() bool {
		return overlays.Earthquakes.Status().State == mapview.StateResolved
	}, 2*time.Second, 10*time.Millisecond)

	m, err := mapview.NewComposer(config.Default()).Compose(overlays.Earthquakes, overlays.Plates)
	require.NoError(t, err)
	assert.Equal(t, mapview.StateResolved, m.Overlays[0].Status.State)
	assert.Equal(t, 1, m.Overlays[0].Status.Features)
	assert.Equal(t, mapview.StatePending, m.Overlays[1].Status.State)
	assert.Empty(t, overlays.Plates.Snapshot().Data.Features)

	cancel()
	<-done
}

func TestRunRefreshesOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	overlays := NewOverlays()
	f := &fakeFetcher{
		quakes: Result[geo.GeoJSONFeatureCollection]{Value: sampleQuakes()},
		plates: Result[*geojson.FeatureCollection]{Value: samplePlates(t)},
	}

	r, _ := newTestRefresher(f, overlays, clock, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return overlays.Plates.Snapshot().Version == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Minute)

	require.Eventually(t, func() bool {
		return overlays.Plates.Snapshot().Version == 2 && overlays.Earthquakes.Snapshot().Version == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
}
