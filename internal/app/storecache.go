package app

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"storefinder/internal/adapters/observability"
	"storefinder/internal/domain"
	"storefinder/internal/geo"
)

const (
	DefaultLongTTL  = 1800 * time.Second
	DefaultShortTTL = 300 * time.Second
)

// StoreCache caches ranked result sets per rounded location, radius and category.
// It never returns errors: a failed backend degrades to the in-process fallback,
// and a failed read is a miss.
type StoreCache struct {
	primary  domain.CacheBackend // nil means memory only
	fallback domain.CacheBackend
	longTTL  time.Duration
	shortTTL time.Duration
	now      func() time.Time
}

// NewStoreCache wires an optional networked primary over an in-process fallback.
func NewStoreCache(primary, fallback domain.CacheBackend, longTTL, shortTTL time.Duration) *StoreCache {
	if longTTL <= 0 {
		longTTL = DefaultLongTTL
	}
	if shortTTL <= 0 {
		shortTTL = DefaultShortTTL
	}
	return &StoreCache{primary: primary, fallback: fallback, longTTL: longTTL, shortTTL: shortTTL, now: time.Now}
}

// WithClock replaces the time source used by ClearExpired.
func (s *StoreCache) WithClock(now func() time.Time) *StoreCache {
	s.now = now
	return s
}

// Key derives "stores:{lat}:{lng}:{radius}[:{category}]" with coordinates rounded to 3 dp.
func Key(lat, lng float64, radius int, category string) string {
	var b strings.Builder
	b.WriteString("stores:")
	b.WriteString(strconv.FormatFloat(geo.Round3(lat), 'f', -1, 64))
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(geo.Round3(lng), 'f', -1, 64))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(radius))
	if c := strings.ToLower(strings.TrimSpace(category)); c != "" {
		b.WriteByte(':')
		b.WriteString(c)
	}
	return b.String()
}

// Backend names the active primary backend.
func (s *StoreCache) Backend() string {
	if s.primary != nil {
		return s.primary.Name()
	}
	return s.fallback.Name()
}

// TTLFor applies the policy: long for non-empty sets, short for empty ones.
func (s *StoreCache) TTLFor(results []domain.StoreResult) time.Duration {
	if len(results) == 0 {
		return s.shortTTL
	}
	return s.longTTL
}

func (s *StoreCache) Get(ctx context.Context, lat, lng float64, radius int, category string) ([]domain.StoreResult, bool) {
	return s.GetKey(ctx, Key(lat, lng, radius, category))
}

// GetKey reads a precomputed key. A hit returns a fresh copy.
func (s *StoreCache) GetKey(ctx context.Context, key string) ([]domain.StoreResult, bool) {
	b, ok := s.read(ctx, key)
	if !ok {
		return nil, false
	}
	var out []domain.StoreResult
	if err := json.Unmarshal(b, &out); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache payload corrupt; treating as miss")
		observability.ObserveCache("store", "corrupt")
		return nil, false
	}
	if out == nil {
		out = []domain.StoreResult{}
	}
	return out, true
}

// Set stores results; ttl <= 0 selects the policy TTL.
func (s *StoreCache) Set(ctx context.Context, lat, lng float64, radius int, results []domain.StoreResult, category string, ttl time.Duration) {
	s.SetKey(ctx, Key(lat, lng, radius, category), results, ttl)
}

func (s *StoreCache) SetKey(ctx context.Context, key string, results []domain.StoreResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.TTLFor(results)
	}
	if results == nil {
		results = []domain.StoreResult{}
	}
	b, err := json.Marshal(results)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("cache marshal failed")
		return
	}
	s.write(ctx, key, b, ttl)
	log.Debug().Str("key", key).Int("items", len(results)).Dur("ttl", ttl).Msg("cached stores")
}

// ClearExpired sweeps backends that track expiry in-process.
func (s *StoreCache) ClearExpired() int {
	n := 0
	for _, b := range []domain.CacheBackend{s.primary, s.fallback} {
		if sw, ok := b.(domain.Sweeper); ok {
			n += sw.Sweep(s.now())
		}
	}
	if n > 0 {
		log.Info().Int("evicted", n).Msg("cleared expired cache entries")
	}
	return n
}

// RunJanitor calls ClearExpired every interval until ctx is done.
func (s *StoreCache) RunJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.ClearExpired()
		}
	}
}

func (s *StoreCache) read(ctx context.Context, key string) ([]byte, bool) {
	if s.primary != nil {
		b, ok, err := s.primary.Get(ctx, key)
		if err == nil {
			return b, ok
		}
		log.Warn().Err(err).Str("backend", s.primary.Name()).Str("key", key).Msg("cache get failed; using fallback")
		observability.ObserveCache(s.primary.Name(), "error")
		observability.ObserveCache("store", "fallback")
	}
	b, ok, err := s.fallback.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("fallback cache get failed")
		return nil, false
	}
	return b, ok
}

func (s *StoreCache) write(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if s.primary != nil {
		err := s.primary.Set(ctx, key, b, ttl)
		if err == nil {
			return
		}
		log.Warn().Err(err).Str("backend", s.primary.Name()).Str("key", key).Msg("cache set failed; using fallback")
		observability.ObserveCache(s.primary.Name(), "error")
		observability.ObserveCache("store", "fallback")
	}
	if err := s.fallback.Set(ctx, key, b, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("fallback cache set failed")
	}
}
