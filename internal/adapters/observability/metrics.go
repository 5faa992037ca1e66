package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "storefinder", Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefinder", Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "storefinder", Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefinder", Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "storefinder", Name: "cache_events_total", Help: "Cache hits/misses/sets/errors/evictions."},
		[]string{"cache", "event"},
	)
	Searches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "storefinder", Name: "searches_total", Help: "Store searches by final status."},
		[]string{"status", "cached"},
	)
	SearchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "storefinder", Name: "search_duration_seconds",
			Help:    "Uncached search duration seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
	)
	SearchOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "storefinder", Name: "search_outcomes_total", Help: "Per-step search outcomes."},
		[]string{"step", "outcome"},
	)
	Coalesced = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "storefinder", Name: "search_coalesced_total", Help: "Searches served by another in-flight search."},
	)
)

// Serve starts a standalone metrics listener; empty addr disables it.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(InitRegistry()))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		Searches, SearchLatency, SearchOutcomes, Coalesced)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|error|evict|fallback
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveCacheN(cache, event string, n int) {
	CacheEvents.WithLabelValues(cache, event).Add(float64(n))
}

func ObserveSearch(status string, cached bool, dur time.Duration) {
	Searches.WithLabelValues(status, strconv.FormatBool(cached)).Inc()
	if !cached {
		SearchLatency.Observe(dur.Seconds())
	}
}

func ObserveOutcome(step, outcome string, n int) {
	if n > 0 {
		SearchOutcomes.WithLabelValues(step, outcome).Add(float64(n))
	}
}

func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
