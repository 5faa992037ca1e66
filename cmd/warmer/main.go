package main

import (
	"context"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"storefinder/internal/adapters/observability"
	"storefinder/internal/app"
	"storefinder/internal/domain"
	"storefinder/internal/shared"
)

// warmer pre-populates the store cache for the configured WARM_POINTS so the
// first real request near a busy location is a cache hit.
func main() {
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	points, err := cfg.WarmLocations()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid warm points")
	}
	cat, err := cfg.Catalog()
	if err != nil {
		log.Fatal().Err(err).Msg("catalog load failed")
	}
	cache, closeCache := cfg.StoreCache(ctx)
	defer closeCache()

	provider, err := cfg.Provider(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("place provider init failed")
	}
	if provider == nil {
		log.Fatal().Str("provider", cfg.PlacesProvider).Msg("warming needs a place provider")
	}
	if cache.Backend() == "memory" {
		log.Warn().Msg("warming an in-memory cache; results are discarded on exit")
	}

	svc := app.NewSearchService(cat, cache, cfg.SearchOptions(provider, nil))

	log.Info().
		Int("points", len(points)).
		Int("workers", cfg.WarmWorkers).
		Str("provider", provider.Name()).
		Msg("warmer starting")

	workers := max(cfg.WarmWorkers, 1)
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)

	for _, p := range points {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("warming interrupted")
			break
		}

		wg.Add(1)
		go func(c domain.Coords) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := svc.Search(ctx, domain.SearchRequest{Lat: c.Lat, Lng: c.Lng})
			if err != nil {
				failed.Add(1)
				log.Warn().Float64("lat", c.Lat).Float64("lng", c.Lng).Err(err).Msg("warm failed")
				return
			}
			log.Info().
				Float64("lat", c.Lat).
				Float64("lng", c.Lng).
				Str("status", res.Status).
				Bool("cached", res.Cached).
				Int("stores", len(res.Stores)).
				Msg("warm ok")
		}(p)
	}

	wg.Wait()
	log.Info().Int64("failed", failed.Load()).Msg("warming completed")
}
