// Package feed downloads the earthquake and plate boundary feeds.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/woozymasta/quakemap/internal/geo"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// maxBody bounds a feed response; the weekly USGS feed is a few MB.
const maxBody = 64 << 20

// Result is the outcome of a single fetch: a value or an error, never both.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the fetch succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Client fetches both feeds once per call, without retries.
type Client struct {
	httpClient     *http.Client
	earthquakesURL string
	platesURL      string
	userAgent      string
}

// NewClient creates a feed client with the given request timeout.
func NewClient(earthquakesURL, platesURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		earthquakesURL: earthquakesURL,
		platesURL:      platesURL,
		userAgent:      "quakemap/1.0",
	}
}

// FetchEarthquakes downloads the raw earthquake FeatureCollection.
func (c *Client) FetchEarthquakes(ctx context.Context) Result[geo.GeoJSONFeatureCollection] {
	body, err := c.get(ctx, c.earthquakesURL)
	if err != nil {
		return Result[geo.GeoJSONFeatureCollection]{Err: fmt.Errorf("earthquakes: %w", err)}
	}

	var fc geo.GeoJSONFeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return Result[geo.GeoJSONFeatureCollection]{Err: fmt.Errorf("earthquakes: decode: %w", err)}
	}
	if fc.Features == nil {
		fc.Features = []geo.GeoJSONFeature{}
	}

	return Result[geo.GeoJSONFeatureCollection]{Value: fc}
}

// FetchPlates downloads the plate boundary FeatureCollection.
func (c *Client) FetchPlates(ctx context.Context) Result[*geojson.FeatureCollection] {
	body, err := c.get(ctx, c.platesURL)
	if err != nil {
		return Result[*geojson.FeatureCollection]{Err: fmt.Errorf("plates: %w", err)}
	}

	fc, err := geo.DecodePlates(body)
	if err != nil {
		return Result[*geojson.FeatureCollection]{Err: fmt.Errorf("plates: %w", err)}
	}

	return Result[*geojson.FeatureCollection]{Value: fc}
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	// Explicitly ignore close error as it's a read-only operation
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}
