package tiles

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/observability"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	etagCap = 64

	// fetchTimeout bounds a shared upstream fetch once it is detached
	// from the request that started it.
	fetchTimeout = 30 * time.Second
)

// Proxy serves /tiles/{layer}/{z}/{x}/{y}.webp from the disk cache,
// filling misses from the layer's upstream template.
type Proxy struct {
	client    *http.Client
	metrics   *observability.Metrics
	layers    map[string]config.BaseLayer
	group     singleflight.Group
	cacheDir  string
	userAgent string
}

// NewProxy creates a proxy for the configured base layers.
func NewProxy(cfg *config.Config, client *http.Client, metrics *observability.Metrics) *Proxy {
	layers := make(map[string]config.BaseLayer, len(cfg.Map.BaseLayers))
	for _, l := range cfg.Map.BaseLayers {
		layers[l.ID] = l
	}

	return &Proxy{
		client:    client,
		metrics:   metrics,
		layers:    layers,
		cacheDir:  cfg.Tiles.CacheDir,
		userAgent: cfg.Tiles.UserAgent,
	}
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Path: /tiles/{layer}/{z}/{x}/{y}.webp
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 5 || parts[0] != "tiles" || !strings.HasSuffix(parts[4], ".webp") {
		http.NotFound(w, r)
		return
	}

	layer, ok := p.layers[parts[1]]
	if !ok {
		http.NotFound(w, r)
		return
	}

	coord, ok := parseCoord(parts[2], parts[3], strings.TrimSuffix(parts[4], ".webp"))
	if !ok || (layer.MaxZoom > 0 && coord.Z > layer.MaxZoom) {
		http.NotFound(w, r)
		return
	}

	path := coord.Path(filepath.Join(p.cacheDir, layer.ID))
	if p.serveFile(w, r, path) {
		p.count("hit")
		return
	}

	// concurrent requests for the same tile share one upstream fetch, which
	// outlives any single waiter giving up
	_, err, _ := p.group.Do(path, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), fetchTimeout)
		defer cancel()

		url := BuildURL(layer.URL, coord, layer.Subdomains)
		return nil, fetchAndConvert(ctx, p.client, url, p.userAgent, path)
	})

	cacheControl := "public, max-age=3600"
	switch {
	case err == nil:
		p.count("miss")
		if p.serveFile(w, r, path) {
			return
		}
	case errors.Is(err, ErrNoTile):
		p.count("missing")
	default:
		// transient upstream failure, the browser must ask again
		cacheControl = "no-store"
		p.count("error")
		log.Warn().
			Err(err).
			Str("layer", layer.ID).
			Int("z", coord.Z).
			Int("x", coord.X).
			Int("y", coord.Y).
			Msg("Failed to fetch tile")
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", cacheControl)
	_, _ = w.Write(TransparentTile())
}

// serveFile tries to serve a cached tile with ETag generation.
// It returns true if the file was found and served (or 304).
func (p *Proxy) serveFile(w http.ResponseWriter, r *http.Request, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return false
	}

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, info.Size(), 16)
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 16)
	buf = append(buf, '"')
	etag := string(buf)

	// check If-None-Match (client sent ETag)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("Content-Type", "image/webp")

	http.ServeFile(w, r, path)
	return true
}

func (p *Proxy) count(result string) {
	if p.metrics != nil {
		p.metrics.TileRequests.WithLabelValues(result).Inc()
	}
}

func parseCoord(zs, xs, ys string) (TileCoordinate, bool) {
	z, errZ := strconv.Atoi(zs)
	x, errX := strconv.Atoi(xs)
	y, errY := strconv.Atoi(ys)
	if errZ != nil || errX != nil || errY != nil {
		return TileCoordinate{}, false
	}

	c := TileCoordinate{Z: z, X: x, Y: y}

	return c, c.Valid()
}
