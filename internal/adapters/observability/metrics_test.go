package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefinder/internal/adapters/observability"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so vectors show up in the exposition
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveSearch("ok", false, 300*time.Millisecond)
	observability.ObserveOutcome("term", "failed", 2)
	observability.ObserveCache("memory", "hit")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, name := range []string{
		"storefinder_http_requests_total",
		"storefinder_searches_total",
		"storefinder_search_outcomes_total",
		"storefinder_cache_events_total",
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}

func TestNewLogger_Level(t *testing.T) {
	l := observability.NewLogger("prod", "warn")
	if l.GetLevel().String() != "warn" {
		t.Fatalf("level = %s", l.GetLevel())
	}
	if observability.NewLogger("dev", "bogus").GetLevel().String() != "info" {
		t.Fatalf("bogus level should fall back to info")
	}
}
