package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woozymasta/quakemap/internal/config"
	"github.com/woozymasta/quakemap/internal/feed"
	"github.com/woozymasta/quakemap/internal/logger"
	"github.com/woozymasta/quakemap/internal/observability"
	"github.com/woozymasta/quakemap/internal/render"
	"github.com/woozymasta/quakemap/internal/server"
	"github.com/woozymasta/quakemap/internal/tiles"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile      string        `short:"c" long:"config"           env:"CONFIG_FILE"      description:"Path to configuration file (built-in defaults when empty)"`
	Addr            string        `short:"a" long:"addr"             env:"LISTEN_ADDRESS"   description:"Address to listen on"   default:"0.0.0.0"`
	Port            int           `short:"p" long:"port"             env:"LISTEN_PORT"      description:"Port to listen on"      default:"8080"`
	TileProxy       bool          `short:"t" long:"tile-proxy"       env:"TILE_PROXY"       description:"Serve base layer tiles through the local WebP cache"`
	ShutdownTimeout time.Duration `long:"shutdown-timeout"           env:"SHUTDOWN_TIMEOUT" description:"Graceful shutdown timeout" default:"10s"`
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

	// Setup Logging
	opts.Logger.Setup()

	// Load Config
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if opts.TileProxy {
		cfg.Tiles.Proxy = true
	}

	metrics := observability.NewMetrics()
	overlays := feed.NewOverlays()

	var tileHandler http.Handler
	if cfg.Tiles.Proxy {
		tileClient := &http.Client{Timeout: cfg.Tiles.Timeout}
		tileHandler = tiles.NewProxy(cfg, tileClient, metrics)
	}

	srvCtx, err := server.NewServerContext(cfg, overlays, tileHandler)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build server context")
	}

	client := feed.NewClient(cfg.Feeds.Earthquakes, cfg.Feeds.Plates, cfg.Feeds.Timeout)
	refresher := feed.NewRefresher(client, render.NewRenderer(nil), overlays, metrics, nil, cfg.Feeds.Refresh)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Feeds fill the overlays in place whenever they resolve
	go func() {
		if err := refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Feed refresher stopped")
		}
	}()

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           srvCtx.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", listenAddr).
			Str("earthquakes", cfg.Feeds.Earthquakes).
			Str("plates", cfg.Feeds.Plates).
			Dur("refresh", cfg.Feeds.Refresh).
			Bool("tile_proxy", cfg.Tiles.Proxy).
			Msg("Web server started")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}
