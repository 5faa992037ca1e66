package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	DefaultRadiusMeters = 16000
	MinRadiusMeters     = 100
	MaxRadiusMeters     = 50000
	DefaultMaxPerType   = 4
	MaxMaxPerType       = 20
)

type SearchRequest struct {
	Lat          float64
	Lng          float64
	RadiusMeters int
	Category     string // optional, matched case-insensitively
	MaxPerType   int
}

// WithDefaults fills zero radius and per-type cap.
func (r SearchRequest) WithDefaults() SearchRequest {
	if r.RadiusMeters == 0 {
		r.RadiusMeters = DefaultRadiusMeters
	}
	if r.MaxPerType == 0 {
		r.MaxPerType = DefaultMaxPerType
	}
	r.Category = strings.TrimSpace(r.Category)
	return r
}

// Validate checks declared bounds. It returns a *ValidationError.
func (r SearchRequest) Validate() error {
	switch {
	case math.IsNaN(r.Lat) || r.Lat < -90 || r.Lat > 90:
		return &ValidationError{Field: "lat", Reason: "must be between -90 and 90"}
	case math.IsNaN(r.Lng) || r.Lng < -180 || r.Lng > 180:
		return &ValidationError{Field: "lng", Reason: "must be between -180 and 180"}
	case r.RadiusMeters < MinRadiusMeters || r.RadiusMeters > MaxRadiusMeters:
		return &ValidationError{Field: "radius", Reason: fmt.Sprintf("must be between %d and %d meters", MinRadiusMeters, MaxRadiusMeters)}
	case r.MaxPerType < 1 || r.MaxPerType > MaxMaxPerType:
		return &ValidationError{Field: "max_per_type", Reason: fmt.Sprintf("must be between 1 and %d", MaxMaxPerType)}
	}
	return nil
}

// Search statuses.
const (
	SearchOK       = "ok"
	SearchDegraded = "degraded" // provider unavailable
	SearchPartial  = "partial"  // deadline hit before all tiers completed
)

type SearchResult struct {
	RequestID string        `json:"request_id"`
	Stores    []StoreResult `json:"stores"`
	Status    string        `json:"status"`
	Cached    bool          `json:"cached"`
	Summary   SearchSummary `json:"summary"`
}

// Outcome is the typed result of one best-effort step.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// SearchSummary aggregates step outcomes for one search call.
type SearchSummary struct {
	EntriesSearched int   `json:"entries_searched"`
	EntriesEmpty    int   `json:"entries_empty"`
	TermsTried      int   `json:"terms_tried"`
	TermFailures    int   `json:"term_failures"`
	Candidates      int   `json:"candidates"`
	OutOfRange      int   `json:"out_of_range"`
	Closed          int   `json:"closed"`
	DetailFailures  int   `json:"detail_failures"`
	Accepted        int   `json:"accepted"`
	Duplicates      int   `json:"duplicates"`
	TiersCompleted  int   `json:"tiers_completed"`
	TiersSkipped    int   `json:"tiers_skipped"`
	DurationMS      int64 `json:"duration_ms"`
}

// SearchLog is the analytics record persisted per search.
type SearchLog struct {
	RequestID    string        `json:"request_id"`
	Lat          float64       `json:"lat"`
	Lng          float64       `json:"lng"`
	RadiusMeters int           `json:"radius_meters"`
	Category     string        `json:"category,omitempty"`
	ResultCount  int           `json:"result_count"`
	Status       string        `json:"status"`
	Cached       bool          `json:"cached"`
	Duration     time.Duration `json:"duration_ns"`
	Summary      SearchSummary `json:"summary"`
	CreatedAt    time.Time     `json:"created_at"`
}
