// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default feed endpoints.
const (
	EarthquakesURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_week.geojson"
	PlatesURL      = "https://raw.githubusercontent.com/fraxen/tectonicplates/master/GeoJSON/PB2002_boundaries.json"
)

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")

	layerIDRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

// Config represents the root configuration file structure.
type Config struct {
	Feeds Feeds `yaml:"feeds"`
	Tiles Tiles `yaml:"tiles"`
	Map   Map   `yaml:"map"`
}

// Feeds configures the two GeoJSON sources.
type Feeds struct {
	Earthquakes string        `yaml:"earthquakes"`
	Plates      string        `yaml:"plates"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Refresh     time.Duration `yaml:"refresh,omitempty"` // 0 fetches once at startup
}

// Map holds the static view definition.
type Map struct {
	Container   string      `yaml:"container,omitempty" json:"container"`
	PlateStyle  LineStyle   `yaml:"plate_style,omitempty" json:"plate_style"`
	BaseLayers  []BaseLayer `yaml:"base_layers" json:"base_layers"`
	Center      [2]float64  `yaml:"center" json:"center"` // [Lat, Lon]
	Zoom        int         `yaml:"zoom" json:"zoom"`
	Collapsed   bool        `yaml:"collapsed" json:"collapsed"`
	Attribution string      `yaml:"attribution,omitempty" json:"attribution,omitempty"`
}

// BaseLayer is a background tile source. Exactly one is marked Default after validation.
type BaseLayer struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	URL         string `yaml:"url" json:"-"` // upstream template, {s} {z} {x} {y} {tms_y}
	Subdomains  string `yaml:"subdomains,omitempty" json:"-"`
	Attribution string `yaml:"attribution,omitempty" json:"attribution,omitempty"`
	MaxZoom     int    `yaml:"max_zoom,omitempty" json:"max_zoom,omitempty"`
	Default     bool   `yaml:"default,omitempty" json:"default,omitempty"`
}

// LineStyle is the Leaflet path style of the plate boundaries.
type LineStyle struct {
	Color  string  `yaml:"color" json:"color"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Tiles configures the caching base layer proxy.
type Tiles struct {
	CacheDir  string        `yaml:"cache_dir,omitempty"`
	UserAgent string        `yaml:"user_agent,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	ZoomLimit int           `yaml:"zoom,omitempty"`
	Proxy     bool          `yaml:"proxy"`
}

// Default returns the built-in view: USGS weekly feed and PB2002 boundaries
// over OpenStreetMap and OpenTopoMap, centered on the contiguous United States.
func Default() *Config {
	return &Config{
		Feeds: Feeds{
			Earthquakes: EarthquakesURL,
			Plates:      PlatesURL,
			Timeout:     30 * time.Second,
			Refresh:     5 * time.Minute,
		},
		Map: Map{
			Container: "map",
			Center:    [2]float64{37.09, -95.71},
			Zoom:      4,
			Collapsed: true,
			PlateStyle: LineStyle{
				Color:  "orange",
				Weight: 2,
			},
			BaseLayers: []BaseLayer{
				{
					ID:          "street",
					Name:        "Street Map",
					URL:         "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
					Subdomains:  "abc",
					MaxZoom:     19,
					Attribution: `Map data: &copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors`,
				},
				{
					ID:          "topographic",
					Name:        "Topographic Map",
					URL:         "https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png",
					Subdomains:  "abc",
					MaxZoom:     17,
					Default:     true,
					Attribution: `Map data: &copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors, <a href="http://viewfinderpanoramas.org">SRTM</a> | Map style: &copy; <a href="https://opentopomap.org">OpenTopoMap</a> (<a href="https://creativecommons.org/licenses/by-sa/3.0/">CC-BY-SA</a>)`,
				},
			},
		},
		Tiles: Tiles{
			Proxy:     false,
			CacheDir:  "tiles",
			UserAgent: "quakemap/1.0",
			Timeout:   15 * time.Second,
			ZoomLimit: 6,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration and normalizes the default base layer:
// when none is marked the first layer becomes the default.
func (c *Config) Validate() error {
	if c.Feeds.Earthquakes == "" {
		return fmt.Errorf("%w: feeds.earthquakes is required", ErrInvalid)
	}
	if c.Feeds.Plates == "" {
		return fmt.Errorf("%w: feeds.plates is required", ErrInvalid)
	}
	if c.Feeds.Timeout <= 0 {
		return fmt.Errorf("%w: feeds.timeout must be positive", ErrInvalid)
	}
	if c.Feeds.Refresh < 0 {
		return fmt.Errorf("%w: feeds.refresh must not be negative", ErrInvalid)
	}

	if c.Map.Container == "" {
		c.Map.Container = "map"
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		return fmt.Errorf("%w: map.zoom %d out of range", ErrInvalid, c.Map.Zoom)
	}
	if lat := c.Map.Center[0]; lat < -90 || lat > 90 {
		return fmt.Errorf("%w: map.center latitude %v out of range", ErrInvalid, lat)
	}
	if lon := c.Map.Center[1]; lon < -180 || lon > 180 {
		return fmt.Errorf("%w: map.center longitude %v out of range", ErrInvalid, lon)
	}

	if len(c.Map.BaseLayers) == 0 {
		return fmt.Errorf("%w: at least one base layer is required", ErrInvalid)
	}

	seen := make(map[string]bool, len(c.Map.BaseLayers))
	defaults := 0
	for _, l := range c.Map.BaseLayers {
		if !layerIDRegex.MatchString(l.ID) {
			return fmt.Errorf("%w: base layer id %q must match %s", ErrInvalid, l.ID, layerIDRegex)
		}
		if seen[l.ID] {
			return fmt.Errorf("%w: duplicate base layer id %q", ErrInvalid, l.ID)
		}
		seen[l.ID] = true

		if l.URL == "" {
			return fmt.Errorf("%w: base layer %q has no url", ErrInvalid, l.ID)
		}
		if l.Default {
			defaults++
		}
	}

	switch defaults {
	case 0:
		c.Map.BaseLayers[0].Default = true
	case 1:
	default:
		return fmt.Errorf("%w: %d base layers marked default, want one", ErrInvalid, defaults)
	}

	if c.Tiles.ZoomLimit <= 0 {
		c.Tiles.ZoomLimit = 6
	}
	if c.Tiles.Timeout <= 0 {
		c.Tiles.Timeout = 15 * time.Second
	}
	if c.Tiles.Proxy && c.Tiles.CacheDir == "" {
		return fmt.Errorf("%w: tiles.cache_dir is required when the proxy is enabled", ErrInvalid)
	}

	return nil
}

// Layer returns the base layer with the given id.
func (c *Config) Layer(id string) (BaseLayer, bool) {
	for _, l := range c.Map.BaseLayers {
		if l.ID == id {
			return l, true
		}
	}

	return BaseLayer{}, false
}
