// Package elastic serves places from a local Elasticsearch store index.
package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/olivere/elastic/v7"
	"github.com/rs/zerolog/log"

	"storefinder/internal/adapters/observability"
	"storefinder/internal/catalog"
	"storefinder/internal/domain"
)

const (
	ProviderName = "elasticsearch"
	DefaultIndex = "stores"
	maxHits      = 20
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "name":            {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "chain":           {"type": "text"},
      "address":         {"type": "text"},
      "vicinity":        {"type": "text"},
      "phone":           {"type": "keyword"},
      "website":         {"type": "keyword"},
      "rating":          {"type": "float"},
      "rating_count":    {"type": "integer"},
      "business_status": {"type": "keyword"},
      "price_level":     {"type": "integer"},
      "open_now":        {"type": "boolean"},
      "weekly_hours":    {"type": "keyword"},
      "types":           {"type": "keyword"},
      "location":        {"type": "geo_point"}
    }
  }
}`

// placeDoc is the indexed document shape.
type placeDoc struct {
	Name           string           `json:"name"`
	Chain          string           `json:"chain,omitempty"`
	Address        string           `json:"address,omitempty"`
	Vicinity       string           `json:"vicinity,omitempty"`
	Phone          *string          `json:"phone,omitempty"`
	Website        *string          `json:"website,omitempty"`
	Rating         *float64         `json:"rating,omitempty"`
	RatingCount    *int             `json:"rating_count,omitempty"`
	BusinessStatus string           `json:"business_status,omitempty"`
	PriceLevel     *int             `json:"price_level,omitempty"`
	OpenNow        *bool            `json:"open_now,omitempty"`
	WeeklyHours    []string         `json:"weekly_hours,omitempty"`
	Types          []string         `json:"types,omitempty"`
	Location       elastic.GeoPoint `json:"location"`
}

type Provider struct {
	client *elastic.Client
	index  string
}

// New connects without sniffing so single-node and proxied clusters work.
func New(url, index string) (*Provider, error) {
	c, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheck(false),
	)
	if err != nil {
		return nil, fmt.Errorf("elastic client: %w", err)
	}
	return NewFromClient(c, index), nil
}

func NewFromClient(c *elastic.Client, index string) *Provider {
	if index == "" {
		index = DefaultIndex
	}
	return &Provider{client: c, index: index}
}

func (p *Provider) Name() string { return ProviderName }

// EnsureIndex creates the store index with its geo mapping when missing.
func (p *Provider) EnsureIndex(ctx context.Context) error {
	exists, err := p.client.IndexExists(p.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("index exists %s: %w", p.index, err)
	}
	if exists {
		return nil
	}
	res, err := p.client.CreateIndex(p.index).BodyString(indexMapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index %s: %w", p.index, err)
	}
	if !res.Acknowledged {
		log.Warn().Str("index", p.index).Msg("create index not acknowledged")
	}
	log.Info().Str("index", p.index).Msg("store index created")
	return nil
}

func (p *Provider) NearbySearch(ctx context.Context, center domain.Coords, radiusMeters int, keyword, placeType string) ([]domain.PlaceStub, error) {
	q := elastic.NewBoolQuery().Filter(
		elastic.NewGeoDistanceQuery("location").
			Point(center.Lat, center.Lng).
			Distance(fmt.Sprintf("%dm", radiusMeters)),
	)
	if keyword != "" {
		q = q.Must(elastic.NewMultiMatchQuery(keyword, "name^2", "chain", "address").Operator("and"))
	}
	// the generic type matches every indexed store
	if placeType != "" && placeType != catalog.DefaultPlaceType {
		q = q.Filter(elastic.NewTermQuery("types", placeType))
	}

	start := time.Now()
	res, err := p.client.Search().
		Index(p.index).
		Query(q).
		SortBy(elastic.NewGeoDistanceSort("location").
			Point(center.Lat, center.Lng).
			Asc().
			Unit("m").
			DistanceType("arc").
			IgnoreUnmapped(true)).
		Size(maxHits).
		Do(ctx)
	observability.ObserveExternal(ProviderName, "search", statusOf(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("elastic search %q: %w", keyword, err)
	}

	out := make([]domain.PlaceStub, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var doc placeDoc
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			log.Warn().Err(err).Str("id", hit.Id).Msg("skipping undecodable store document")
			continue
		}
		out = append(out, domain.PlaceStub{
			ProviderID: hit.Id,
			Name:       doc.Name,
			Coords:     domain.Coords{Lat: doc.Location.Lat, Lng: doc.Location.Lon},
			Vicinity:   firstNonEmpty(doc.Vicinity, doc.Address),
			Types:      doc.Types,
		})
	}
	return out, nil
}

// PlaceDetails loads the full document; fields is ignored since documents are small.
func (p *Provider) PlaceDetails(ctx context.Context, providerID string, _ []string) (domain.PlaceDetails, error) {
	start := time.Now()
	res, err := p.client.Get().Index(p.index).Id(providerID).Do(ctx)
	observability.ObserveExternal(ProviderName, "get", statusOf(err), time.Since(start))
	if elastic.IsNotFound(err) || (err == nil && !res.Found) {
		return domain.PlaceDetails{}, fmt.Errorf("store %s: %w", providerID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.PlaceDetails{}, fmt.Errorf("elastic get %s: %w", providerID, err)
	}

	var doc placeDoc
	if err := json.Unmarshal(res.Source, &doc); err != nil {
		return domain.PlaceDetails{}, fmt.Errorf("decode store %s: %w", providerID, err)
	}
	return domain.PlaceDetails{
		Name:           doc.Name,
		Address:        firstNonEmpty(doc.Address, doc.Vicinity),
		Rating:         doc.Rating,
		RatingCount:    doc.RatingCount,
		Phone:          doc.Phone,
		Website:        doc.Website,
		OpenNow:        doc.OpenNow,
		WeeklyHours:    doc.WeeklyHours,
		BusinessStatus: doc.BusinessStatus,
		PriceLevel:     doc.PriceLevel,
		Types:          doc.Types,
	}, nil
}

func statusOf(err error) int {
	if err == nil {
		return 200
	}
	if e, ok := err.(*elastic.Error); ok {
		return e.Status
	}
	return 0
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
