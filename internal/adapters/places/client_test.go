package places_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storefinder/internal/adapters/places"
	"storefinder/internal/domain"
)

const nearbyBody = `{
  "status": "OK",
  "results": [
    {"place_id": "abc", "name": "Target", "vicinity": "7 Winter St",
     "geometry": {"location": {"lat": 42.3554, "lng": -71.0613}}, "types": ["department_store"]},
    {"place_id": "", "name": "no id"}
  ]
}`

const detailsBody = `{
  "status": "OK",
  "result": {
    "name": "Target Boston Downtown",
    "formatted_address": "7 Winter St, Boston, MA 02108",
    "rating": 4.2,
    "user_ratings_total": 1520,
    "formatted_phone_number": "(617) 000-0000",
    "opening_hours": {"open_now": true, "weekday_text": ["Monday: 8AM-10PM"]},
    "business_status": "OPERATIONAL",
    "types": ["department_store", "store"]
  }
}`

func newClient(t *testing.T, h http.HandlerFunc) *places.Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	cl, err := places.New(ts.URL, "test-key", 100) // high RPS for tests
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return cl
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := places.New("", "", 1); err == nil {
		t.Fatalf("expected error without key")
	}
}

func TestNearbySearch_ParsesAndSendsQuery(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nearbysearch/json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "test-key" || q.Get("keyword") != "Target" || q.Get("radius") != "16000" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("location") != "42.3601,-71.0589" {
			t.Errorf("location = %s", q.Get("location"))
		}
		_, _ = w.Write([]byte(nearbyBody))
	})

	got, err := cl.NearbySearch(context.Background(), domain.Coords{Lat: 42.3601, Lng: -71.0589}, 16000, "Target", "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 stub (id-less dropped), got %d", len(got))
	}
	if got[0].ProviderID != "abc" || got[0].Coords.Lat != 42.3554 || got[0].Vicinity != "7 Winter St" {
		t.Fatalf("unexpected stub: %+v", got[0])
	}
}

func TestNearbySearch_ZeroResultsIsEmpty(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})
	got, err := cl.NearbySearch(context.Background(), domain.Coords{}, 1000, "Nope", "")
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil, got %v err=%v", got, err)
	}
}

func TestNearbySearch_RetriesThenSuccess(t *testing.T) {
	var hits int32
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			_, _ = w.Write([]byte(`{"status":"OVER_QUERY_LIMIT","error_message":"slow down"}`))
		default:
			_, _ = w.Write([]byte(nearbyBody))
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := cl.NearbySearch(ctx, domain.Coords{Lat: 1, Lng: 2}, 1000, "Target", "")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestNearbySearch_RequestDenied(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	})
	_, err := cl.NearbySearch(context.Background(), domain.Coords{}, 1000, "x", "")
	if !errors.Is(err, places.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestGet_Unauthorized(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err := cl.PlaceDetails(context.Background(), "abc", nil)
	if !errors.Is(err, places.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPlaceDetails_Maps(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/details/json" || r.URL.Query().Get("place_id") != "abc" {
			t.Errorf("unexpected request: %s", r.URL)
		}
		if r.URL.Query().Get("fields") != "name,rating" {
			t.Errorf("fields = %s", r.URL.Query().Get("fields"))
		}
		_, _ = w.Write([]byte(detailsBody))
	})

	d, err := cl.PlaceDetails(context.Background(), "abc", []string{"name", "rating"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Name != "Target Boston Downtown" || d.Address == "" {
		t.Fatalf("unexpected details: %+v", d)
	}
	if d.Rating == nil || *d.Rating != 4.2 || d.RatingCount == nil || *d.RatingCount != 1520 {
		t.Fatalf("rating not mapped: %+v", d)
	}
	if d.OpenNow == nil || !*d.OpenNow || len(d.WeeklyHours) != 1 {
		t.Fatalf("opening hours not mapped: %+v", d)
	}
	if d.Website != nil || d.PriceLevel != nil {
		t.Fatalf("absent fields should stay nil")
	}
	if d.Closed() {
		t.Fatalf("operational place reported closed")
	}
}

func TestPlaceDetails_NotFound(t *testing.T) {
	cl := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"NOT_FOUND"}`))
	})
	_, err := cl.PlaceDetails(context.Background(), "gone", nil)
	if !errors.Is(err, places.ErrNotFound) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
