// Package server handles HTTP requests and middleware.
package server

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"time"

	"github.com/woozymasta/quakemap/internal/mapview"

	"github.com/rs/zerolog/log"
)

// HandleMap serves the composed map definition.
func (s *ServerContext) HandleMap(w http.ResponseWriter, r *http.Request) {
	m, err := s.Composer.Compose(s.Overlays.Earthquakes, s.Overlays.Plates)
	if err != nil {
		log.Error().Err(err).Msg("Failed to compose map")
		http.Error(w, "map unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(m)
}

// HandleEarthquakes serves the styled earthquake overlay, empty until the feed resolves.
func (s *ServerContext) HandleEarthquakes(w http.ResponseWriter, r *http.Request) {
	snap := s.Overlays.Earthquakes.Snapshot()
	serveOverlay(w, r, mapview.EarthquakesID, snap.Version, snap.Updated, snap.Data)
}

// HandlePlates serves the plate boundary overlay, empty until the feed resolves.
func (s *ServerContext) HandlePlates(w http.ResponseWriter, r *http.Request) {
	snap := s.Overlays.Plates.Snapshot()
	serveOverlay(w, r, mapview.PlatesID, snap.Version, snap.Updated, snap.Data)
}

// HandleFavicon serves the site favicon.
func (s *ServerContext) HandleFavicon(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(s.Favicon)
}

// HandleHealth reports liveness together with the overlay states.
func (s *ServerContext) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"overlays": map[string]mapview.Status{
			mapview.EarthquakesID: s.Overlays.Earthquakes.Status(),
			mapview.PlatesID:      s.Overlays.Plates.Status(),
		},
	})
}

// HandleIndex serves the main HTML application.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	h := fnv.New64a()
	_, _ = h.Write(s.IndexHTML)
	etag := fmt.Sprintf(`"%x"`, h.Sum64())

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// serveOverlay writes overlay GeoJSON with an ETag derived from its version.
func serveOverlay(w http.ResponseWriter, r *http.Request, id string, version uint64, updated time.Time, data any) {
	etag := fmt.Sprintf(`"%s-%x-%x"`, id, updated.UnixNano(), version)

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_ = json.NewEncoder(w).Encode(data)
}
