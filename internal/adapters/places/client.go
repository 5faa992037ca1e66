// Package places is the Google Places Web Service adapter.
package places

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"storefinder/internal/adapters/observability"
	"storefinder/internal/domain"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"
	ProviderName   = "google_places"
	maxAttempts    = 4
)

var (
	ErrNotFound     = fmt.Errorf("places: %w", domain.ErrNotFound)
	ErrUnauthorized = errors.New("places: unauthorized")
	ErrForbidden    = errors.New("places: request denied")
	ErrQuota        = errors.New("places: over query limit")
)

type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("places API key is required")
	}
	if base == "" {
		base = DefaultBaseURL
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 10 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

func (c *Client) Name() string { return ProviderName }

// ---- wire types ----

type location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type nearbyResult struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Geometry struct {
		Location location `json:"location"`
	} `json:"geometry"`
	Vicinity string   `json:"vicinity"`
	Types    []string `json:"types"`
}

type nearbyResponse struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
	Results      []nearbyResult `json:"results"`
}

type detailsResult struct {
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Vicinity         string   `json:"vicinity"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal *int     `json:"user_ratings_total"`
	Phone            *string  `json:"formatted_phone_number"`
	Website          *string  `json:"website"`
	OpeningHours     *struct {
		OpenNow     *bool    `json:"open_now"`
		WeekdayText []string `json:"weekday_text"`
	} `json:"opening_hours"`
	BusinessStatus string   `json:"business_status"`
	PriceLevel     *int     `json:"price_level"`
	Types          []string `json:"types"`
}

type detailsResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Result       detailsResult `json:"result"`
}

// ---- domain.PlaceProvider ----

func (c *Client) NearbySearch(ctx context.Context, center domain.Coords, radiusMeters int, keyword, placeType string) ([]domain.PlaceStub, error) {
	q := url.Values{}
	q.Set("location", strconv.FormatFloat(center.Lat, 'f', -1, 64)+","+strconv.FormatFloat(center.Lng, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(radiusMeters))
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	if placeType != "" {
		q.Set("type", placeType)
	}

	var resp nearbyResponse
	if err := c.call(ctx, "nearbysearch", q, &resp, func() (string, string) { return resp.Status, resp.ErrorMessage }); err != nil {
		if errors.Is(err, errZeroResults) {
			return []domain.PlaceStub{}, nil
		}
		return nil, fmt.Errorf("nearby search %q: %w", keyword, err)
	}

	out := make([]domain.PlaceStub, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.PlaceID == "" {
			continue
		}
		out = append(out, domain.PlaceStub{
			ProviderID: r.PlaceID,
			Name:       r.Name,
			Coords:     domain.Coords{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
			Vicinity:   r.Vicinity,
			Types:      r.Types,
		})
	}
	return out, nil
}

func (c *Client) PlaceDetails(ctx context.Context, providerID string, fields []string) (domain.PlaceDetails, error) {
	q := url.Values{}
	q.Set("place_id", providerID)
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}

	var resp detailsResponse
	if err := c.call(ctx, "details", q, &resp, func() (string, string) { return resp.Status, resp.ErrorMessage }); err != nil {
		if errors.Is(err, errZeroResults) {
			err = ErrNotFound
		}
		return domain.PlaceDetails{}, fmt.Errorf("place details %s: %w", providerID, err)
	}

	r := resp.Result
	d := domain.PlaceDetails{
		Name:           r.Name,
		Address:        r.FormattedAddress,
		Rating:         r.Rating,
		RatingCount:    r.UserRatingsTotal,
		Phone:          r.Phone,
		Website:        r.Website,
		BusinessStatus: r.BusinessStatus,
		PriceLevel:     r.PriceLevel,
		Types:          r.Types,
	}
	if d.Address == "" {
		d.Address = r.Vicinity
	}
	if r.OpeningHours != nil {
		d.OpenNow = r.OpeningHours.OpenNow
		d.WeeklyHours = r.OpeningHours.WeekdayText
	}
	return d, nil
}

// ---- internals ----

var errZeroResults = errors.New("places: zero results")

// call GETs {base}/{endpoint}/json and maps the body "status" field.
// OVER_QUERY_LIMIT and UNKNOWN_ERROR are retried like a 429.
func (c *Client) call(ctx context.Context, endpoint string, q url.Values, out any, status func() (string, string)) error {
	q.Set("key", c.key)
	u := c.base + "/" + endpoint + "/json?" + q.Encode()

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if err := c.get(ctx, endpoint, u, out); err != nil {
			return err
		}
		st, msg := status()
		switch st {
		case "OK":
			return nil
		case "ZERO_RESULTS":
			return errZeroResults
		case "NOT_FOUND":
			return ErrNotFound
		case "REQUEST_DENIED":
			return fmt.Errorf("%w: %s", ErrForbidden, msg)
		case "OVER_QUERY_LIMIT":
			lastErr = fmt.Errorf("%w: %s", ErrQuota, msg)
		case "UNKNOWN_ERROR":
			lastErr = fmt.Errorf("places: unknown error: %s", msg)
		default:
			return fmt.Errorf("places: status %s: %s", st, msg)
		}
		log.Debug().Str("endpoint", endpoint).Str("status", st).Int("attempt", i+1).Msg("places retry")
		if i < maxAttempts-1 && !sleepCtx(ctx, backoff(i)) {
			return ctx.Err()
		}
	}
	return lastErr
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, endpoint, u string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "storefinder/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(ProviderName, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal(ProviderName, endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode %s: %w", endpoint, err)
			}
			return nil

		case http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests {
				lastErr = fmt.Errorf("%w: remote 429", ErrQuota)
			}
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent or invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff is 100ms doubling per attempt plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 100 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
