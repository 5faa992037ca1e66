package domain

import (
	"context"
	"time"
)

// PlaceProvider is the external place-lookup service.
type PlaceProvider interface {
	NearbySearch(ctx context.Context, center Coords, radiusMeters int, keyword, placeType string) ([]PlaceStub, error)
	PlaceDetails(ctx context.Context, providerID string, fields []string) (PlaceDetails, error)
	Name() string
}

// CacheBackend stores opaque payloads with a TTL.
// Get reports found=false with a nil error on a miss.
type CacheBackend interface {
	Get(ctx context.Context, key string) (b []byte, found bool, err error)
	Set(ctx context.Context, key string, b []byte, ttl time.Duration) error
	Name() string
}

// Sweeper is implemented by backends that need manual expiry.
type Sweeper interface {
	Sweep(now time.Time) int
}

// SearchRecorder persists per-search analytics.
type SearchRecorder interface {
	RecordSearch(ctx context.Context, l SearchLog) error
	RecentSearches(ctx context.Context, limit int) ([]SearchLog, error)
}

// DetailFields is the field mask requested from PlaceDetails.
var DetailFields = []string{
	"name", "formatted_address", "place_id", "geometry",
	"rating", "user_ratings_total", "formatted_phone_number",
	"opening_hours", "website", "business_status", "price_level",
	"vicinity", "types",
}
