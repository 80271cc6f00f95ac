package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/voyagen/channelvault/internal/cache"
	"github.com/voyagen/channelvault/internal/config"
	"github.com/voyagen/channelvault/internal/log"
	"github.com/voyagen/channelvault/internal/server"
	"github.com/voyagen/channelvault/internal/service"
	"github.com/voyagen/channelvault/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Optional config file path (YAML); else use env DATABASE_URL")
	pretty := flag.Bool("pretty", false, "Human-readable log output instead of JSON")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Pretty: *pretty})
	logger := log.L()

	ctx := context.Background()

	// Run migrations. The migrations directory is looked up next to the
	// working directory first, then next to the binary.
	absMigrations, err := filepath.Abs("migrations")
	if err != nil {
		absMigrations = "migrations"
	}
	if _, err := os.Stat(absMigrations); err != nil {
		if exe, e := os.Executable(); e == nil {
			absMigrations = filepath.Join(filepath.Dir(exe), "migrations")
		}
	}
	if err := store.RunMigrations(cfg.DatabaseURL, "file://"+absMigrations); err != nil {
		logger.Fatal().Err(err).Msg("migrate failed")
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connect failed")
	}
	defer pg.Close()

	// Connect to Redis if REDIS_URL is configured.
	var rds *cache.Redis
	var appStore store.Store = pg
	if cfg.RedisURL != "" {
		rds, err = cache.New(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connect failed")
		}
		defer rds.Close()

		if err := rds.Ping(ctx); err != nil {
			logger.Fatal().Err(err).Msg("redis ping failed")
		}

		appStore = store.NewCachedStore(pg, rds)
		logger.Info().Msg("redis connected, caching enabled")
	} else {
		logger.Info().Msg("redis disabled (REDIS_URL not set)")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ingester := service.NewIngester(appStore, rds, cfg.Parser.Options(), cfg.Timeout)
	go ingester.RunWorker(ctx)

	srv := server.New(appStore, cfg, ingester)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
