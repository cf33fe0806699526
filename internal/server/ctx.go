package server

import (
	"net/http"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/feed"
	"github.com/woozymasta/quakemap/internal/mapview"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config    *config.Config
	Composer  *mapview.Composer
	Tiles     http.Handler // nil when the tile proxy is disabled
	Overlays  feed.Overlays
	IndexHTML []byte
	Favicon   []byte
}

// NewServerContext renders the page and wires the overlays shared with the refresher.
func NewServerContext(cfg *config.Config, overlays feed.Overlays, tiles http.Handler) (*ServerContext, error) {
	page, err := BuildPage(cfg.Map.Container)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("base_layers", len(cfg.Map.BaseLayers)).
		Bool("tile_proxy", tiles != nil).
		Int("index_bytes", len(page.Index)).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:    cfg,
		Composer:  mapview.NewComposer(cfg),
		Overlays:  overlays,
		Tiles:     tiles,
		IndexHTML: page.Index,
		Favicon:   page.Favicon,
	}, nil
}

// Routes returns the request-logged handler serving every endpoint.
func (s *ServerContext) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/map", s.HandleMap)
	mux.HandleFunc("GET "+mapview.EarthquakesPath, s.HandleEarthquakes)
	mux.HandleFunc("GET "+mapview.PlatesPath, s.HandlePlates)
	mux.HandleFunc("GET /favicon.svg", s.HandleFavicon)
	mux.HandleFunc("GET /healthz", s.HandleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.Tiles != nil {
		mux.Handle("GET /tiles/", s.Tiles)
	}
	mux.HandleFunc("GET /", s.HandleIndex)

	return RequestLogger(mux)
}
