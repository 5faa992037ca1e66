package elastic_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefinder/internal/adapters/elastic"
	"storefinder/internal/domain"
)

const searchBody = `{
  "took": 2,
  "timed_out": false,
  "hits": {
    "total": {"value": 1, "relation": "eq"},
    "hits": [{
      "_index": "stores", "_id": "es-1", "_score": null,
      "_source": {"name": "Costco", "address": "2 Mystic View Rd", "types": ["warehouse_store"],
                  "location": {"lat": 42.3925, "lon": -71.0818}}
    }]
  }
}`

const docBody = `{
  "_index": "stores", "_id": "es-1", "_version": 1, "found": true,
  "_source": {"name": "Costco", "address": "2 Mystic View Rd", "rating": 4.5, "rating_count": 900,
              "business_status": "OPERATIONAL", "open_now": true,
              "location": {"lat": 42.3925, "lon": -71.0818}}
}`

func newProvider(t *testing.T, h http.HandlerFunc) *elastic.Provider {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	p, err := elastic.New(ts.URL, "stores")
	require.NoError(t, err)
	return p
}

func TestNearbySearch_GeoFilteredQuery(t *testing.T) {
	var body string
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/stores/_search" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		_, _ = io.WriteString(w, searchBody)
	})

	got, err := p.NearbySearch(context.Background(), domain.Coords{Lat: 42.3601, Lng: -71.0589}, 8000, "Costco", "establishment")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "es-1", got[0].ProviderID)
	assert.Equal(t, 42.3925, got[0].Coords.Lat)
	assert.Equal(t, -71.0818, got[0].Coords.Lng)
	assert.Equal(t, "2 Mystic View Rd", got[0].Vicinity)

	assert.True(t, strings.Contains(body, `"geo_distance"`), body)
	assert.True(t, strings.Contains(body, `"8000m"`), body)
	assert.True(t, strings.Contains(body, `"Costco"`), body)
	assert.False(t, strings.Contains(body, `"establishment"`), body)
	assert.Equal(t, "elasticsearch", p.Name())
}

func TestPlaceDetails_MapsDocument(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/stores/_doc/es-1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"_index":"stores","_id":"x","found":false}`)
			return
		}
		_, _ = io.WriteString(w, docBody)
	})

	d, err := p.PlaceDetails(context.Background(), "es-1", domain.DetailFields)
	require.NoError(t, err)
	assert.Equal(t, "Costco", d.Name)
	require.NotNil(t, d.Rating)
	assert.Equal(t, 4.5, *d.Rating)
	require.NotNil(t, d.OpenNow)
	assert.True(t, *d.OpenNow)
	assert.False(t, d.Closed())

	_, err = p.PlaceDetails(context.Background(), "missing", nil)
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)
}
