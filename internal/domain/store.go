package domain

import "time"

// Business statuses reported by place providers.
const (
	StatusOperational       = "OPERATIONAL"
	StatusClosedPermanently = "CLOSED_PERMANENTLY"
	StatusClosedTemporarily = "CLOSED_TEMPORARILY"
)

type CatalogEntry struct {
	Query       string   `json:"query" mapstructure:"query"`
	Chain       string   `json:"chain" mapstructure:"chain"`
	Icon        string   `json:"icon" mapstructure:"icon"`
	Category    string   `json:"category" mapstructure:"category"`
	Priority    int      `json:"priority" mapstructure:"priority"`
	SearchTerms []string `json:"search_terms" mapstructure:"search_terms"`
	PlaceType   string   `json:"place_type" mapstructure:"place_type"` // provider type filter
}

type Coords struct{ Lat, Lng float64 }

// PlaceStub is one record returned by a provider nearby search.
type PlaceStub struct {
	ProviderID string
	Name       string
	Coords     Coords
	Vicinity   string
	Types      []string
}

type PlaceDetails struct {
	Name           string
	Address        string
	Rating         *float64
	RatingCount    *int
	Phone          *string
	Website        *string
	OpenNow        *bool
	WeeklyHours    []string
	BusinessStatus string
	PriceLevel     *int
	Types          []string
}

// Closed reports whether the place should be dropped from results.
func (d PlaceDetails) Closed() bool {
	return d.BusinessStatus == StatusClosedPermanently || d.BusinessStatus == StatusClosedTemporarily
}

// StoreResult is the enriched, scored record handed to presentation and storage.
type StoreResult struct {
	Name            string    `json:"name"`
	Address         string    `json:"address"`
	PlaceID         string    `json:"place_id"`
	Lat             float64   `json:"lat"`
	Lng             float64   `json:"lng"`
	Chain           string    `json:"chain"`
	Icon            string    `json:"icon"`
	Category        string    `json:"category"`
	Priority        int       `json:"priority"`
	Distance        float64   `json:"distance"` // miles
	Rating          *float64  `json:"rating,omitempty"`
	RatingCount     *int      `json:"rating_count,omitempty"`
	Phone           *string   `json:"phone,omitempty"`
	Website         *string   `json:"website,omitempty"`
	IsOpen          *bool     `json:"is_open,omitempty"`
	WeeklyHours     []string  `json:"weekly_hours,omitempty"`
	BusinessStatus  string    `json:"business_status"`
	PriceLevel      *int      `json:"price_level,omitempty"`
	Types           []string  `json:"types,omitempty"`
	Verified        string    `json:"verified,omitempty"`
	QualityScore    float64   `json:"quality_score"`
	SearchTimestamp time.Time `json:"search_timestamp"`
	SearchRadius    int       `json:"search_radius"`
}
