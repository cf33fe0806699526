// Package tiles proxies, transcodes and caches base layer tiles.
package tiles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/chai2010/webp"
	_ "golang.org/x/image/webp"
)

// Size is the edge of a tile in pixels.
const Size = 256

// maxTileBytes bounds an upstream tile download.
const maxTileBytes = 8 << 20

// ErrNoTile is returned when the upstream has no usable image for a coordinate.
var ErrNoTile = errors.New("tile not available")

// TileCoordinate represents a specific tile.
type TileCoordinate struct {
	Z, X, Y int
}

// Valid reports whether the coordinate lies inside the tile grid of its zoom.
func (c TileCoordinate) Valid() bool {
	if c.Z < 0 || c.Z > 30 {
		return false
	}
	n := 1 << c.Z

	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}

// Path returns the cache path of the tile below dir.
func (c TileCoordinate) Path(dir string) string {
	return filepath.Join(
		dir,
		strconv.Itoa(c.Z),
		strconv.Itoa(c.X),
		strconv.Itoa(c.Y)+".webp",
	)
}

// BuildURL expands an upstream template. {s} rotates over subdomains.
func BuildURL(tpl string, c TileCoordinate, subdomains string) string {
	s := strings.ReplaceAll(tpl, "{z}", strconv.Itoa(c.Z))
	s = strings.ReplaceAll(s, "{x}", strconv.Itoa(c.X))
	s = strings.ReplaceAll(s, "{y}", strconv.Itoa(c.Y))

	if strings.Contains(s, "{tms_y}") {
		maxCoord := (1 << c.Z) - 1
		tmsY := maxCoord - c.Y
		s = strings.ReplaceAll(s, "{tms_y}", strconv.Itoa(tmsY))
	}

	if strings.Contains(s, "{s}") {
		sub := ""
		if subdomains != "" {
			sub = string(subdomains[(c.X+c.Y)%len(subdomains)])
		}
		s = strings.ReplaceAll(s, "{s}", sub)
	}

	return s
}

// fetchAndConvert downloads one tile and stores it as WebP at outPath.
// ErrNoTile is returned for 404s, undecodable bodies and 1px placeholders.
func fetchAndConvert(ctx context.Context, client *http.Client, url, userAgent, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNoTile
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status code %d", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return err
	}

	img, _, err := image.Decode(bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoTile, err)
	}

	// Filter out empty/1px tiles often returned by map servers for OOB areas
	if img.Bounds().Dx() <= 1 {
		return ErrNoTile
	}

	return writeWebP(outPath, img, 80)
}

// writeWebP encodes img next to path and renames it into place,
// so readers never observe a partial tile.
func writeWebP(path string, img image.Image, quality float32) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tile-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := webp.Encode(tmp, img, &webp.Options{Lossless: false, Quality: quality}); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

// TransparentTile returns an empty WebP tile served when no imagery exists.
var TransparentTile = sync.OnceValue(func() []byte {
	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, Size, Size))
	if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
		return nil
	}

	return buf.Bytes()
})
