package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/logger"
	"github.com/woozymasta/quakemap/internal/tiles"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string   `short:"c" long:"config"      env:"CONFIG_FILE" description:"Path to configuration file (built-in defaults when empty)"`
	CacheDir    string   `short:"d" long:"cache-dir"   env:"CACHE_DIR"   description:"Tile cache directory, overrides tiles.cache_dir"`
	Limit       []string `short:"l" long:"limit"       env:"LIMIT_LAYERS" description:"Limit prewarming to specific base layer ids"`
	Concurrency int      `short:"p" long:"concurrency" env:"CONCURRENCY" description:"Concurrent downloads per layer" default:"4"`
	ZoomLimit   int      `short:"z" long:"zoom-limit"  env:"ZOOM_LIMIT"  description:"Tiles zoom limit, overrides tiles.zoom"`
	Radius      int      `short:"r" long:"radius"      env:"RADIUS"      description:"Tiles around the map center per zoom level" default:"4"`
	Force       bool     `short:"f" long:"force"       description:"Force overwrite of existing tiles"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if opts.CacheDir != "" {
		cfg.Tiles.CacheDir = opts.CacheDir
	}
	if cfg.Tiles.CacheDir == "" {
		log.Fatal().Msg("Tile cache directory is not set")
	}
	if opts.ZoomLimit > 0 {
		cfg.Tiles.ZoomLimit = opts.ZoomLimit
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	client := &http.Client{
		Transport: &http.Transport{
			TLSNextProto:        make(map[string]func(string, *tls.Conn) http.RoundTripper),
			MaxIdleConns:        opts.Concurrency * 2,
			MaxIdleConnsPerHost: opts.Concurrency,
		},
		Timeout: cfg.Tiles.Timeout,
	}

	// Filter layers if limit is set
	layers := cfg.Map.BaseLayers
	if len(opts.Limit) > 0 {
		layers = make([]config.BaseLayer, 0, len(opts.Limit))
		seen := make(map[string]bool)

		for _, id := range opts.Limit {
			if seen[id] {
				continue
			}
			seen[id] = true

			if l, ok := cfg.Layer(id); ok {
				layers = append(layers, l)
			} else {
				log.Error().
					Str("layer", id).
					Msg("Layer specified in --limit not found in configuration")
			}
		}
	}

	log.Info().
		Int("layers_total", len(cfg.Map.BaseLayers)).
		Int("layers_queued", len(layers)).
		Int("zoom_limit", cfg.Tiles.ZoomLimit).
		Str("cache_dir", cfg.Tiles.CacheDir).
		Msg("Starting loader")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, layer := range layers {
		tiles.Prewarm(ctx, client, layer, tiles.PrewarmOptions{
			CacheDir:    cfg.Tiles.CacheDir,
			UserAgent:   cfg.Tiles.UserAgent,
			Center:      cfg.Map.Center,
			ZoomLimit:   cfg.Tiles.ZoomLimit,
			Radius:      opts.Radius,
			Concurrency: opts.Concurrency,
			Force:       opts.Force,
		})
	}

	if ctx.Err() != nil {
		log.Warn().Msg("Loader interrupted")
		return
	}

	log.Info().Msg("Loader finished successfully")
}
