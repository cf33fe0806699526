package mapview

import (
	"fmt"
	"strings"
	"time"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/style"
)

// Overlay identifiers and the paths serving their GeoJSON.
const (
	EarthquakesID   = "earthquakes"
	PlatesID        = "plates"
	EarthquakesPath = "/api/earthquakes.geojson"
	PlatesPath      = "/api/plates.geojson"
)

// PendingPoll is how often the page rechecks while an overlay is not resolved.
const PendingPoll = 15 * time.Second

// Map is the complete view handed to the page.
type Map struct {
	Legend       Legend       `json:"legend"`
	Container    string       `json:"container"`
	BaseLayers   []BaseLayer  `json:"base_layers"`
	Overlays     []OverlayDef `json:"overlays"`
	Center       [2]float64   `json:"center"` // [Lat, Lon]
	Zoom         int          `json:"zoom"`
	Poll         int64        `json:"poll_ms"` // 0 disables polling
	LayerControl LayerControl `json:"layer_control"`
}

// BaseLayer is a tile layer as the page consumes it.
type BaseLayer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Subdomains  string `json:"subdomains,omitempty"`
	Attribution string `json:"attribution,omitempty"`
	MaxZoom     int    `json:"max_zoom,omitempty"`
	Active      bool   `json:"active"`
}

// OverlayDef describes a GeoJSON overlay and its current fill state.
type OverlayDef struct {
	Style  *config.LineStyle `json:"style,omitempty"`
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	URL    string            `json:"url"`
	Status Status            `json:"status"`
	Active bool              `json:"active"`
}

// LayerControl configures the base layer and overlay switcher.
type LayerControl struct {
	Collapsed bool `json:"collapsed"`
}

// Legend carries the entries and the prerendered control markup.
type Legend struct {
	style.Legend
	HTML string `json:"html"`
}

// Composer assembles maps from the static configuration and live overlays.
type Composer struct {
	cfg    *config.Config
	legend Legend
}

// NewComposer builds the legend once; every composed map shares it.
func NewComposer(cfg *config.Config) *Composer {
	legend := style.BuildLegend(style.LegendBounds())

	return &Composer{
		cfg: cfg,
		legend: Legend{
			Legend: legend,
			HTML:   legend.HTML(),
		},
	}
}

// Compose returns the map with the default base layer and both overlays active.
// Overlays may be pending or failed, in which case they are listed but empty.
func (c *Composer) Compose(quakes, plates StatusReporter) (Map, error) {
	layers := make([]BaseLayer, 0, len(c.cfg.Map.BaseLayers))
	active := 0

	for _, l := range c.cfg.Map.BaseLayers {
		if l.Default {
			active++
		}

		layers = append(layers, BaseLayer{
			ID:          l.ID,
			Name:        l.Name,
			URL:         c.tileURL(l),
			Subdomains:  c.subdomains(l),
			Attribution: l.Attribution,
			MaxZoom:     l.MaxZoom,
			Active:      l.Default,
		})
	}

	if active != 1 {
		return Map{}, fmt.Errorf("%d active base layers, want exactly one", active)
	}

	plateStyle := c.cfg.Map.PlateStyle
	quakeStatus, plateStatus := statusOf(quakes), statusOf(plates)

	return Map{
		Container:  c.cfg.Map.Container,
		Center:     c.cfg.Map.Center,
		Zoom:       c.cfg.Map.Zoom,
		Poll:       c.poll(quakeStatus, plateStatus).Milliseconds(),
		BaseLayers: layers,
		Overlays: []OverlayDef{
			{
				ID:     EarthquakesID,
				Name:   "Earthquakes",
				URL:    EarthquakesPath,
				Active: true,
				Status: quakeStatus,
			},
			{
				ID:     PlatesID,
				Name:   "Tectonic Plates",
				URL:    PlatesPath,
				Active: true,
				Style:  &plateStyle,
				Status: plateStatus,
			},
		},
		LayerControl: LayerControl{Collapsed: c.cfg.Map.Collapsed},
		Legend:       c.legend,
	}, nil
}

// poll tells the page when to look for new overlay data: soon while any
// overlay is unresolved, then on the feed refresh interval.
func (c *Composer) poll(statuses ...Status) time.Duration {
	for _, s := range statuses {
		if s.State != StateResolved {
			return PendingPoll
		}
	}

	return c.cfg.Feeds.Refresh
}

// tileURL points the page at the local proxy when enabled, else at the upstream.
func (c *Composer) tileURL(l config.BaseLayer) string {
	if c.cfg.Tiles.Proxy {
		return "/tiles/" + l.ID + "/{z}/{x}/{y}.webp"
	}

	return strings.ReplaceAll(l.URL, "{tms_y}", "{-y}")
}

func (c *Composer) subdomains(l config.BaseLayer) string {
	if c.cfg.Tiles.Proxy {
		return ""
	}

	return l.Subdomains
}

func statusOf(r StatusReporter) Status {
	if r == nil {
		return Status{State: StatePending}
	}

	return r.Status()
}
