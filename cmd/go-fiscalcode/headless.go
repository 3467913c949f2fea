package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tartampluch/go-fiscalcode/internal/config"
	"github.com/tartampluch/go-fiscalcode/internal/engine"
	"github.com/tartampluch/go-fiscalcode/internal/server"
	"golang.org/x/sync/errgroup"
)

// headlessConfig is the environment-driven configuration of the API-only mode.
type headlessConfig struct {
	Port         string
	CitiesURL    string
	ProvincesURL string
	Normalize    string
	CORSOrigins  []string
}

// loadHeadlessConfig reads an optional .env file, then the process
// environment. Variables already set in the environment win over the file.
func loadHeadlessConfig(envFile string) headlessConfig {
	if err := godotenv.Load(envFile); err == nil {
		slog.Info(config.MsgEnvLoaded,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyFile, envFile)
	} else if !errors.Is(err, os.ErrNotExist) {
		slog.Warn(config.MsgEnvLoaded,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyFile, envFile,
			config.LogKeyError, err)
	}

	cfg := headlessConfig{
		Port:         envOr(config.EnvPort, config.DefaultPort),
		CitiesURL:    envOr(config.EnvCitiesURL, config.DefaultCitiesURL),
		ProvincesURL: envOr(config.EnvProvincesURL, config.DefaultProvincesURL),
		Normalize:    envOr(config.EnvNormalize, config.DefaultNormalize),
	}
	for _, origin := range strings.Split(envOr(config.EnvCORSOrigins, config.DefaultCORSOrigin), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

// runHeadless serves the compute API without a window. The server answers
// 503 until the reference table has been loaded.
func runHeadless(ctx context.Context) error {
	cfg := loadHeadlessConfig(config.EnvFileName)

	composer, err := engine.NewComposer(cfg.Normalize)
	if err != nil {
		return err
	}

	srv := server.NewAPIServer(cfg.Port)
	srv.CORSOrigins = cfg.CORSOrigins
	srv.SetComposer(composer)

	loader := engine.NewReferenceLoader(engine.NewHTTPFetcher(), cfg.CitiesURL, cfg.ProvincesURL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		return loadWithRetry(gctx, loader, srv, config.ReferenceRetryDelay)
	})
	return g.Wait()
}

// loadWithRetry keeps trying to load the reference table until it succeeds
// or ctx ends. A cancelled context is not an error.
func loadWithRetry(ctx context.Context, loader *engine.ReferenceLoader, srv *server.APIServer, delay time.Duration) error {
	log := slog.With(config.LogKeyComponent, config.CompLoader)
	for {
		log.Info(config.MsgRefLoadStart)
		table, err := loader.Load(ctx)
		if err == nil {
			srv.UpdateTable(table)
			log.Info(config.MsgRefLoaded, config.LogKeyCount, len(table))
			return nil
		}
		log.Error(config.MsgRefLoadFailed, config.LogKeyError, err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}
