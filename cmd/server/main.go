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

	"github.com/woozymasta/fencedraw/internal/config"
	"github.com/woozymasta/fencedraw/internal/datasvc"
	"github.com/woozymasta/fencedraw/internal/logger"
	"github.com/woozymasta/fencedraw/internal/reconciler"
	"github.com/woozymasta/fencedraw/internal/selection"
	"github.com/woozymasta/fencedraw/internal/server"
	"github.com/woozymasta/fencedraw/internal/store"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string `short:"c" long:"config"   env:"CONFIG_FILE"    description:"Path to configuration file"`
	Addr       string `short:"a" long:"addr"     env:"LISTEN_ADDRESS" description:"Address to listen on"       default:"0.0.0.0"`
	Port       int    `short:"p" long:"port"     env:"LISTEN_PORT"    description:"Port to listen on"          default:"8080"`
	BaseURL    string `short:"b" long:"base-url" env:"DATA_BASE_URL"  description:"Data service base URL, overrides config"`
	Redis      string `long:"redis"              env:"REDIS_ADDR"     description:"Redis address for the response cache, overrides config"`
	NoPreload  bool   `long:"no-preload"         env:"NO_PRELOAD"     description:"Load catalogs on first request instead of at startup"`
}

func main() {
	// .env is optional
	_ = godotenv.Load()

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
	if opts.BaseURL != "" {
		cfg.Service.BaseURL = opts.BaseURL
	}
	if opts.Redis != "" {
		cfg.Cache.Redis = opts.Redis
	}

	client := datasvc.New(cfg.Service.BaseURL, cfg.Service.Timeout, newCache(cfg.Cache))

	st := store.New(cfg.Editor.Radius, cfg.Settings())
	rec := reconciler.New(st, reconciler.Options{
		Label:        cfg.Label(),
		CommitOnDrag: *cfg.Editor.CommitOnDrag,
	})
	defer rec.Close()

	catalog := selection.NewCatalog(client, cfg.Endpoints())
	srvCtx := server.NewServerContext(cfg, st, rec, catalog, client)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !opts.NoPreload {
		for _, kind := range catalog.Kinds() {
			go func(kind string) {
				// failures are logged by the catalog and retried on request
				_ = catalog.Load(ctx, kind)
			}(kind)
		}
	}

	listenAddr := fmt.Sprintf("%s:%d", opts.Addr, opts.Port)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           srvCtx.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().
		Str("addr", listenAddr).
		Str("data_service", cfg.Service.BaseURL).
		Float64("radius", cfg.Editor.Radius).
		Bool("commit_on_drag", *cfg.Editor.CommitOnDrag).
		Msg("Web server started")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}

	log.Info().Msg("Web server stopped")
}

func newCache(c config.Cache) datasvc.Cache {
	switch {
	case c.Disabled:
		return nil
	case c.Redis != "":
		log.Debug().Str("addr", c.Redis).Int("db", c.RedisDB).Msg("Using redis response cache")
		return datasvc.NewRedisCache(datasvc.OpenRedis(c.Redis, c.RedisPassword, c.RedisDB), "fencedraw:", c.TTL)
	default:
		return datasvc.NewMemoryCache(c.TTL)
	}
}
