package feed

import (
	"context"
	"errors"
	"time"

	"github.com/woozymasta/quakemap/internal/geo"
	"github.com/woozymasta/quakemap/internal/mapview"
	"github.com/woozymasta/quakemap/internal/observability"
	"github.com/woozymasta/quakemap/internal/render"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/twpayne/go-geom/encoding/geojson"
	"golang.org/x/sync/errgroup"
)

// Feed labels used in logs and metrics.
const (
	FeedEarthquakes = "earthquakes"
	FeedPlates      = "plates"
)

// Fetcher is the subset of Client used by the refresher.
type Fetcher interface {
	FetchEarthquakes(ctx context.Context) Result[geo.GeoJSONFeatureCollection]
	FetchPlates(ctx context.Context) Result[*geojson.FeatureCollection]
}

// Overlays are the handles the refresher fills; the composer reads the same handles.
type Overlays struct {
	Earthquakes *mapview.Overlay[geo.GeoJSONFeatureCollection]
	Plates      *mapview.Overlay[*geojson.FeatureCollection]
}

// NewOverlays creates both overlays in the pending, empty state.
func NewOverlays() Overlays {
	return Overlays{
		Earthquakes: mapview.NewOverlay(geo.NewFeatureCollection(0), func(fc geo.GeoJSONFeatureCollection) int {
			return len(fc.Features)
		}),
		Plates: mapview.NewOverlay(geo.NewPlateCollection(), func(fc *geojson.FeatureCollection) int {
			if fc == nil {
				return 0
			}
			return len(fc.Features)
		}),
	}
}

// Refresher keeps the overlays in sync with the feeds.
type Refresher struct {
	fetcher  Fetcher
	renderer *render.Renderer
	metrics  *observability.Metrics
	clock    clockwork.Clock
	overlays Overlays
	interval time.Duration
}

// NewRefresher wires a fetcher to the overlays. An interval of zero fetches once.
func NewRefresher(
	fetcher Fetcher,
	renderer *render.Renderer,
	overlays Overlays,
	metrics *observability.Metrics,
	clock clockwork.Clock,
	interval time.Duration,
) *Refresher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Refresher{
		fetcher:  fetcher,
		renderer: renderer,
		overlays: overlays,
		metrics:  metrics,
		clock:    clock,
		interval: interval,
	}
}

// Run fetches both feeds now and then on every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	r.refreshLogged(ctx)

	if r.interval <= 0 {
		return nil
	}

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			r.refreshLogged(ctx)
		}
	}
}

// Refresh fetches both feeds concurrently. Each feed fills its own overlay as
// soon as it completes; a failure of one never affects the other.
// The returned error joins the failures of both feeds.
func (r *Refresher) Refresh(ctx context.Context) error {
	var (
		g                    errgroup.Group
		quakesErr, platesErr error
	)

	g.Go(func() error {
		quakesErr = r.refreshEarthquakes(ctx)
		return quakesErr
	})
	g.Go(func() error {
		platesErr = r.refreshPlates(ctx)
		return platesErr
	})

	if err := g.Wait(); err != nil {
		return errors.Join(quakesErr, platesErr)
	}

	return nil
}

func (r *Refresher) refreshLogged(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Refresh finished with failed feeds")
	}
}

func (r *Refresher) refreshEarthquakes(ctx context.Context) error {
	start := r.clock.Now()
	res := r.fetcher.FetchEarthquakes(ctx)
	r.observe(FeedEarthquakes, start, res.Err)

	if !res.OK() {
		r.overlays.Earthquakes.Reject(res.Err, r.clock.Now())
		log.Error().Err(res.Err).Str("feed", FeedEarthquakes).Msg("Feed fetch failed, overlay left empty")
		return res.Err
	}

	styled, stats := r.renderer.Render(res.Value)
	r.overlays.Earthquakes.Resolve(styled, r.clock.Now())

	if r.metrics != nil {
		r.metrics.FeedFeatures.WithLabelValues(FeedEarthquakes).Set(float64(stats.Rendered))
		r.metrics.FeaturesSkipped.Add(float64(stats.Skipped))
	}

	log.Info().
		Str("feed", FeedEarthquakes).
		Int("rendered", stats.Rendered).
		Int("skipped", stats.Skipped).
		Msg("Earthquake overlay updated")

	return nil
}

func (r *Refresher) refreshPlates(ctx context.Context) error {
	start := r.clock.Now()
	res := r.fetcher.FetchPlates(ctx)
	r.observe(FeedPlates, start, res.Err)

	if !res.OK() {
		r.overlays.Plates.Reject(res.Err, r.clock.Now())
		log.Error().Err(res.Err).Str("feed", FeedPlates).Msg("Feed fetch failed, overlay left empty")
		return res.Err
	}

	r.overlays.Plates.Resolve(res.Value, r.clock.Now())

	stats := geo.CountPlates(res.Value)
	if r.metrics != nil {
		r.metrics.FeedFeatures.WithLabelValues(FeedPlates).Set(float64(stats.Features))
	}

	log.Info().
		Str("feed", FeedPlates).
		Int("features", stats.Features).
		Int("line_strings", stats.LineStrings).
		Int("vertices", stats.Vertices).
		Msg("Tectonic plate overlay updated")

	return nil
}

func (r *Refresher) observe(feed string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}

	r.metrics.FeedFetches.WithLabelValues(feed, outcome).Inc()
	r.metrics.FeedFetchDuration.WithLabelValues(feed).Observe(r.clock.Since(start).Seconds())
}
