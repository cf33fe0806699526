package tiles

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/geo"

	"github.com/rs/zerolog/log"
)

// PrewarmOptions controls a cache warm-up run.
type PrewarmOptions struct {
	CacheDir    string
	UserAgent   string
	Center      [2]float64 // [Lat, Lon]
	ZoomLimit   int
	Radius      int // tiles around the center at each zoom
	Concurrency int
	Force       bool
}

type job struct {
	URLTemplate string
	Subdomains  string
	BaseDir     string
	Coord       TileCoordinate
}

type result struct {
	Coord TileCoordinate
	Valid bool
}

// Prewarm downloads a layer's tiles level by level around the center.
// Children are only visited below tiles the upstream actually has.
// It returns the number of tiles present in the cache afterwards.
func Prewarm(ctx context.Context, client *http.Client, layer config.BaseLayer, opts PrewarmOptions) int {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	zoomLimit := opts.ZoomLimit
	if layer.MaxZoom > 0 && zoomLimit > layer.MaxZoom {
		zoomLimit = layer.MaxZoom
	}

	log.Info().
		Str("layer", layer.ID).
		Int("zoom_limit", zoomLimit).
		Int("radius", opts.Radius).
		Msg("Starting tile prewarm")

	baseDir := filepath.Join(opts.CacheDir, layer.ID)
	currentLevelTiles := []TileCoordinate{{0, 0, 0}}
	total := 0

	for z := 0; z <= zoomLimit; z++ {
		if len(currentLevelTiles) == 0 || ctx.Err() != nil {
			break
		}

		log.Debug().Int("zoom", z).Int("count", len(currentLevelTiles)).Msg("Processing zoom level")

		validTiles := processBatch(ctx, client, layer, baseDir, currentLevelTiles, opts)
		total += len(validTiles)

		minX, minY, maxX, maxY := window(opts.Center, z+1, opts.Radius)
		nextLevelTiles := make([]TileCoordinate, 0, len(validTiles)*4)
		for _, t := range validTiles {
			nx, ny := t.X*2, t.Y*2
			for _, c := range []TileCoordinate{
				{Z: z + 1, X: nx, Y: ny},
				{Z: z + 1, X: nx + 1, Y: ny},
				{Z: z + 1, X: nx, Y: ny + 1},
				{Z: z + 1, X: nx + 1, Y: ny + 1},
			} {
				if c.X >= minX && c.X <= maxX && c.Y >= minY && c.Y <= maxY {
					nextLevelTiles = append(nextLevelTiles, c)
				}
			}
		}
		currentLevelTiles = nextLevelTiles
	}

	log.Info().Str("layer", layer.ID).Int("tiles", total).Msg("Tile prewarm finished")

	return total
}

// window returns the tile range within radius tiles of the center at zoom z.
func window(center [2]float64, z, radius int) (minX, minY, maxX, maxY int) {
	cx, cy := geo.LonLatToTile(center[1], center[0], z)
	maxCoord := (1 << z) - 1

	return max(cx-radius, 0), max(cy-radius, 0), min(cx+radius, maxCoord), min(cy+radius, maxCoord)
}

func processBatch(
	ctx context.Context,
	client *http.Client,
	layer config.BaseLayer,
	baseDir string,
	tiles []TileCoordinate,
	opts PrewarmOptions,
) []TileCoordinate {
	jobs := make(chan job, len(tiles))
	results := make(chan result, len(tiles))

	go func() {
		for _, t := range tiles {
			jobs <- job{Coord: t, URLTemplate: layer.URL, Subdomains: layer.Subdomains, BaseDir: baseDir}
		}
		close(jobs)
	}()

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- result{Coord: j.Coord, Valid: prewarmTile(ctx, client, j, opts)}
			}
		}()
	}
	wg.Wait()
	close(results)

	var valid []TileCoordinate
	for res := range results {
		if res.Valid {
			valid = append(valid, res.Coord)
		}
	}

	return valid
}

func prewarmTile(ctx context.Context, client *http.Client, j job, opts PrewarmOptions) bool {
	outPath := j.Coord.Path(j.BaseDir)

	// Check existence if not forcing overwrite
	if !opts.Force {
		if info, err := os.Stat(outPath); err == nil && info.Size() > 0 {
			return true
		}
	}

	url := BuildURL(j.URLTemplate, j.Coord, j.Subdomains)
	err := fetchAndConvert(ctx, client, url, opts.UserAgent, outPath)
	if err == nil {
		return true
	}

	if errors.Is(err, ErrNoTile) {
		log.Trace().Str("url", url).Msg("Tile not found")
	} else {
		log.Trace().Err(err).Str("url", url).Msg("Failed to download tile")
	}

	return false
}
