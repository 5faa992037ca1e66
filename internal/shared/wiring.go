package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"storefinder/internal/adapters/elastic"
	"storefinder/internal/adapters/memory"
	"storefinder/internal/adapters/places"
	redisad "storefinder/internal/adapters/redis"
	"storefinder/internal/adapters/valkey"
	"storefinder/internal/app"
	"storefinder/internal/catalog"
	"storefinder/internal/domain"
)

// Catalog returns the built-in catalog unless CatalogFile points elsewhere.
func (c Config) Catalog() (*catalog.Catalog, error) {
	if c.CatalogFile == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(c.CatalogFile)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", c.CatalogFile).Int("entries", cat.Len()).Msg("catalog loaded")
	return cat, nil
}

// StoreCache connects the configured primary backend. An unreachable primary is
// logged and the cache runs on memory alone. The returned func releases connections.
func (c Config) StoreCache(ctx context.Context) (*app.StoreCache, func()) {
	var (
		primary domain.CacheBackend
		closeFn = func() {}
	)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	switch c.CacheBackend {
	case "redis":
		r := redisad.New(c.RedisAddr, c.RedisPass, c.RedisDB)
		if err := r.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", c.RedisAddr).Msg("redis unreachable; using in-memory cache")
			_ = r.Close()
			break
		}
		primary = r
		closeFn = func() { _ = r.Close() }
	case "valkey":
		v, err := valkey.New(c.ValkeyAddr, c.RedisPass, c.RedisDB)
		if err != nil {
			log.Warn().Err(err).Str("addr", c.ValkeyAddr).Msg("valkey unreachable; using in-memory cache")
			break
		}
		if err := v.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", c.ValkeyAddr).Msg("valkey ping failed; using in-memory cache")
			v.Close()
			break
		}
		primary = v
		closeFn = v.Close
	}

	sc := app.NewStoreCache(primary, memory.New(), c.CacheLongTTL, c.CacheShortTTL)
	log.Info().Str("backend", sc.Backend()).Msg("store cache ready")
	return sc, closeFn
}

// Provider builds the place provider. It returns a nil provider, not an error,
// when none is configured so the service can run degraded.
func (c Config) Provider(ctx context.Context) (domain.PlaceProvider, error) {
	switch c.PlacesProvider {
	case "google":
		if c.PlacesKey == "" {
			return nil, nil
		}
		cl, err := places.New(c.PlacesBaseURL, c.PlacesKey, c.PlacesRPS)
		if err != nil {
			return nil, fmt.Errorf("places client: %w", err)
		}
		return cl, nil
	case "elastic":
		p, err := elastic.New(c.ElasticURL, c.ElasticIndex)
		if err != nil {
			return nil, err
		}
		if err := p.EnsureIndex(ctx); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, nil
}

// SearchOptions maps the search tuning knobs.
func (c Config) SearchOptions(p domain.PlaceProvider, rec domain.SearchRecorder) app.SearchOptions {
	return app.SearchOptions{
		Provider:     p,
		Recorder:     rec,
		Workers:      c.SearchWorkers,
		TermInterval: c.TermInterval,
		TierPause:    c.TierPause,
		Timeout:      c.SearchTimeout,
	}
}
