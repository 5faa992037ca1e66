package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"storefinder/internal/app"
	"storefinder/internal/catalog"
	"storefinder/internal/domain"
	"storefinder/internal/geo"
)

// Pinger reports dependency reachability for health output.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Search   *app.SearchService
	Recorder domain.SearchRecorder // optional
	DB       Pinger                // optional
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/health", h.health)
	s.mux.Get("/v1/catalog", h.getCatalog)
	s.mux.Get("/v1/stores/nearby", h.nearby)
	s.mux.Post("/v1/stores/search", h.searchStores)
	s.mux.Get("/v1/searches/recent", h.recentSearches)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func writeSearchError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeProblem(w, http.StatusBadRequest, "Invalid "+ve.Field, ve.Reason)
		return
	}
	log.Error().Err(err).Msg("search failed")
	writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "search failed")
}

// ---- health ----

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Services  healthServices `json:"services"`
	Database  healthDatabase `json:"database"`
}

type healthServices struct {
	Places struct {
		Available bool   `json:"available"`
		Provider  string `json:"provider,omitempty"`
	} `json:"places"`
	Cache struct {
		Type string `json:"type"`
	} `json:"cache"`
}

type healthDatabase struct {
	Configured     bool     `json:"configured"`
	Accessible     bool     `json:"accessible"`
	ResponseTimeMS *float64 `json:"response_time_ms,omitempty"`
	Error          string   `json:"error,omitempty"`
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	out := healthResponse{Status: "healthy", Timestamp: time.Now().UTC()}
	out.Services.Places.Available = h.Search.HasProvider()
	out.Services.Places.Provider = h.Search.ProviderName()
	out.Services.Cache.Type = h.Search.Cache().Backend()

	status := http.StatusOK
	if h.DB != nil {
		out.Database.Configured = true
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		start := time.Now()
		err := h.DB.Ping(ctx)
		cancel()
		if err != nil {
			out.Database.Error = err.Error()
			out.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			ms := math.Round(float64(time.Since(start).Microseconds())/10) / 100
			out.Database.Accessible = true
			out.Database.ResponseTimeMS = &ms
		}
	}
	if out.Status == "healthy" && !out.Services.Places.Available {
		out.Status = "degraded"
	}
	writeJSON(w, status, out)
}

// ---- catalog ----

type catalogEntryView struct {
	domain.CatalogEntry
	Branding catalog.Branding `json:"branding"`
}

func (h *Handlers) getCatalog(w http.ResponseWriter, r *http.Request) {
	cat := h.Search.Catalog()
	entries := cat.Entries(r.URL.Query().Get("category"))
	views := make([]catalogEntryView, 0, len(entries))
	for _, e := range entries {
		// neutral quality keeps the chain colour
		views = append(views, catalogEntryView{CatalogEntry: e, Branding: catalog.BrandingFor(e.Chain, e.Category, 5)})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": cat.Categories(),
		"stores":     views,
	})
}

// ---- nearby (query string, radius in meters) ----

func (h *Handlers) nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid lat", "lat must be a number")
		return
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid lng", "lng must be a number")
		return
	}
	req := domain.SearchRequest{Lat: lat, Lng: lng, Category: q.Get("category")}
	if v := q.Get("radius"); v != "" {
		if req.RadiusMeters, err = strconv.Atoi(v); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid radius", "radius must be an integer number of meters")
			return
		}
	}
	if v := q.Get("max_per_type"); v != "" {
		if req.MaxPerType, err = strconv.Atoi(v); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid max_per_type", "max_per_type must be an integer")
			return
		}
	}

	res, err := h.Search.Search(r.Context(), req)
	if err != nil {
		writeSearchError(w, err)
		return
	}

	etag, _ := calcETagAndBody(res.Stores)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("X-Cache", cacheHeader(res.Cached))
	writeJSON(w, http.StatusOK, res)
}

func cacheHeader(cached bool) string {
	if cached {
		return "HIT"
	}
	return "MISS"
}

// ---- search (JSON body, radius in miles) ----

type searchBody struct {
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Radius     *float64 `json:"radius"` // miles
	Category   string   `json:"category"`
	MaxPerType int      `json:"max_per_type"`
	UserID     string   `json:"user_id"`
}

// DefaultRadiusMiles applies when the body omits radius.
const DefaultRadiusMiles = 5.0

type storeView struct {
	domain.StoreResult
	Branding catalog.Branding `json:"branding"`
}

type searchResponse struct {
	Status            string                 `json:"status"`
	RequestID         string                 `json:"request_id"`
	Cached            bool                   `json:"cached"`
	Stores            []storeView            `json:"stores"`
	CategorizedStores map[string][]storeView `json:"categorized_stores"`
	Categories        []string               `json:"categories"`
	SearchLocation    searchLocation         `json:"search_location"`
	TotalFound        int                    `json:"total_found"`
	SearchTimestamp   time.Time              `json:"search_timestamp"`
	Summary           domain.SearchSummary   `json:"summary"`
}

type searchLocation struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Radius float64 `json:"radius"`
}

func (h *Handlers) searchStores(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "request body must be a JSON object")
		return
	}
	if body.Latitude == nil || body.Longitude == nil {
		writeProblem(w, http.StatusBadRequest, "Invalid body", "latitude and longitude are required")
		return
	}
	miles := DefaultRadiusMiles
	if body.Radius != nil {
		miles = *body.Radius
	}
	if miles <= 0 || math.IsNaN(miles) || math.IsInf(miles, 0) {
		writeProblem(w, http.StatusBadRequest, "Invalid radius", "radius must be a positive number of miles")
		return
	}

	if !h.Search.HasProvider() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":       domain.ErrProviderUnavailable.Error(),
			"status":      "error",
			"stores":      []any{},
			"total_found": 0,
		})
		return
	}

	req := domain.SearchRequest{
		Lat:          *body.Latitude,
		Lng:          *body.Longitude,
		RadiusMeters: int(math.Round(miles * geo.MetersPerMile)),
		Category:     body.Category,
		MaxPerType:   body.MaxPerType,
	}
	res, err := h.Search.Search(r.Context(), req)
	if err != nil {
		writeSearchError(w, err)
		return
	}

	out := searchResponse{
		Status:            searchStatus(res.Status),
		RequestID:         res.RequestID,
		Cached:            res.Cached,
		Stores:            make([]storeView, 0, len(res.Stores)),
		CategorizedStores: map[string][]storeView{},
		Categories:        []string{},
		SearchLocation:    searchLocation{Lat: req.Lat, Lng: req.Lng, Radius: miles},
		TotalFound:        len(res.Stores),
		SearchTimestamp:   time.Now().UTC(),
		Summary:           res.Summary,
	}
	for _, s := range res.Stores {
		v := storeView{StoreResult: s, Branding: catalog.BrandingFor(s.Chain, s.Category, s.QualityScore)}
		out.Stores = append(out.Stores, v)
		if _, seen := out.CategorizedStores[s.Category]; !seen {
			out.Categories = append(out.Categories, s.Category)
		}
		out.CategorizedStores[s.Category] = append(out.CategorizedStores[s.Category], v)
	}
	if body.UserID != "" {
		log.Info().Str("user_id", body.UserID).Str("request_id", res.RequestID).Int("found", out.TotalFound).Msg("store search")
	}
	writeJSON(w, http.StatusOK, out)
}

// searchStatus keeps "success" for complete results and passes partial through.
func searchStatus(s string) string {
	if s == domain.SearchOK {
		return "success"
	}
	return s
}

// ---- analytics ----

func (h *Handlers) recentSearches(w http.ResponseWriter, r *http.Request) {
	if h.Recorder == nil {
		writeProblem(w, http.StatusNotFound, "Not Found", "search analytics are not enabled")
		return
	}
	limit := 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(strings.TrimSpace(ls))
		if err != nil || l <= 0 || l > 500 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 500")
			return
		}
		limit = l
	}
	logs, err := h.Recorder.RecentSearches(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("recent searches failed")
		writeProblem(w, http.StatusServiceUnavailable, "Unavailable", "search analytics unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"searches": logs})
}
