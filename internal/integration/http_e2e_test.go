//go:build integration || !unit

package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	server "storefinder/internal/adapters/http_server"
	"storefinder/internal/adapters/memory"
	"storefinder/internal/adapters/places"
	redisad "storefinder/internal/adapters/redis"
	"storefinder/internal/app"
	"storefinder/internal/catalog"
	"storefinder/internal/domain"
)

// ---------- fake Places API ----------

type fakePlaces struct {
	nearbyCalls  atomic.Int32
	detailsCalls atomic.Int32
}

func (f *fakePlaces) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	q := r.URL.Query()
	if q.Get("key") != "e2e-key" {
		_, _ = io.WriteString(w, `{"status":"REQUEST_DENIED","error_message":"bad key"}`)
		return
	}
	switch r.URL.Path {
	case "/nearbysearch/json":
		f.nearbyCalls.Add(1)
		if q.Get("type") != "establishment" {
			_, _ = io.WriteString(w, `{"status":"INVALID_REQUEST","error_message":"type missing"}`)
			return
		}
		switch q.Get("keyword") {
		case "Target":
			// ~0.5 mi north of downtown Boston
			_, _ = io.WriteString(w, `{"status":"OK","results":[
			  {"place_id":"tgt-1","name":"Target","vicinity":"7 Winter St",
			   "geometry":{"location":{"lat":42.3673,"lng":-71.0589}},"types":["department_store"]}]}`)
		case "Costco Wholesale":
			_, _ = io.WriteString(w, `{"status":"OK","results":[
			  {"place_id":"cst-1","name":"Costco","vicinity":"2 Mystic View Rd",
			   "geometry":{"location":{"lat":42.3925,"lng":-71.0818}},"types":["warehouse_store"]}]}`)
		default:
			_, _ = io.WriteString(w, `{"status":"ZERO_RESULTS","results":[]}`)
		}
	case "/details/json":
		f.detailsCalls.Add(1)
		id := q.Get("place_id")
		_, _ = fmt.Fprintf(w, `{"status":"OK","result":{
		  "name":"%s store","formatted_address":"%s address","rating":4.4,"user_ratings_total":800,
		  "opening_hours":{"open_now":true},"business_status":"OPERATIONAL"}}`, id, id)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type stack struct {
	api    *httptest.Server
	places *fakePlaces
	redis  *miniredis.Miniredis
}

func newStack(t *testing.T) *stack {
	t.Helper()
	fp := &fakePlaces{}
	placesSrv := httptest.NewServer(fp)
	t.Cleanup(placesSrv.Close)

	client, err := places.New(placesSrv.URL, "e2e-key", 1000)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rc := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rc.Close() })

	cat, err := catalog.New([]domain.CatalogEntry{
		{Query: "Target", Chain: "Target", Category: "Department", Priority: 1},
		{Query: "Costco", Chain: "Costco", Category: "Wholesale", Priority: 2,
			SearchTerms: []string{"Costco", "Costco Wholesale"}},
	})
	require.NoError(t, err)

	svc := app.NewSearchService(cat, app.NewStoreCache(rc, memory.New(), 0, 0), app.SearchOptions{
		Provider:     client,
		TermInterval: time.Microsecond,
		TierPause:    -1,
	})
	srv := server.New(10 * time.Second)
	srv.MountHandlers(&server.Handlers{Search: svc})

	api := httptest.NewServer(srv.Mux())
	t.Cleanup(api.Close)
	return &stack{api: api, places: fp, redis: mr}
}

func TestHTTP_EndToEnd_NearbyThenCached(t *testing.T) {
	s := newStack(t)
	url := s.api.URL + "/v1/stores/nearby?lat=42.3601&lng=-71.0589&radius=16000"

	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "MISS", res.Header.Get("X-Cache"))

	var body domain.SearchResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, domain.SearchOK, body.Status)
	require.Len(t, body.Stores, 2)
	assert.Equal(t, "tgt-1", body.Stores[0].PlaceID)
	assert.Equal(t, "tgt-1 store", body.Stores[0].Name)
	assert.Equal(t, "cst-1", body.Stores[1].PlaceID)
	assert.Equal(t, places.ProviderName, body.Stores[1].Verified)
	assert.InDelta(t, 0.5, body.Stores[0].Distance, 0.05)

	// Target hit on its first term; Costco needed its second.
	assert.EqualValues(t, 3, s.places.nearbyCalls.Load())
	assert.EqualValues(t, 2, s.places.detailsCalls.Load())

	key := app.Key(42.3601, -71.0589, 16000, "")
	assert.True(t, s.redis.Exists(key), "result set cached in redis under %s", key)
	assert.Equal(t, app.DefaultLongTTL, s.redis.TTL(key))

	res2, err := http.Get(url)
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, "HIT", res2.Header.Get("X-Cache"))
	assert.Equal(t, res.Header.Get("ETag"), res2.Header.Get("ETag"))
	assert.EqualValues(t, 3, s.places.nearbyCalls.Load(), "no provider calls on a cache hit")
}

func TestHTTP_EndToEnd_SearchByCategory(t *testing.T) {
	s := newStack(t)

	res, err := http.Post(s.api.URL+"/v1/stores/search", "application/json",
		strings.NewReader(`{"latitude": 42.3601, "longitude": -71.0589, "radius": 10, "category": "wholesale"}`))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Status            string                       `json:"status"`
		TotalFound        int                          `json:"total_found"`
		Categories        []string                     `json:"categories"`
		CategorizedStores map[string][]json.RawMessage `json:"categorized_stores"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 1, body.TotalFound)
	assert.Equal(t, []string{"Wholesale"}, body.Categories)
	assert.Len(t, body.CategorizedStores["Wholesale"], 1)

	assert.True(t, s.redis.Exists(app.Key(42.3601, -71.0589, 16093, "wholesale")))
}

func TestHTTP_EndToEnd_HealthAndValidation(t *testing.T) {
	s := newStack(t)

	res, err := http.Get(s.api.URL + "/v1/health")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	b, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(b), `"status":"healthy"`)
	assert.Contains(t, string(b), `"provider":"google_places"`)
	assert.Contains(t, string(b), `"type":"redis"`)

	bad, err := http.Get(s.api.URL + "/v1/stores/nearby?lat=91&lng=0")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	assert.EqualValues(t, 0, s.places.nearbyCalls.Load())
}
