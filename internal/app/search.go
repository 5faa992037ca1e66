package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"storefinder/internal/adapters/observability"
	"storefinder/internal/catalog"
	"storefinder/internal/domain"
	"storefinder/internal/geo"
)

const (
	DefaultWorkers      = 4
	DefaultTermInterval = 100 * time.Millisecond
	DefaultTierPause    = 200 * time.Millisecond
	DefaultTimeout      = 30 * time.Second

	// finishHeadroom is kept free before a caller deadline for ranking and the cache write.
	finishHeadroom = 20 * time.Millisecond
	writeBudget    = 5 * time.Second
)

// SearchOptions configures a SearchService. Zero values take the defaults above;
// a negative TierPause disables the pause between tiers.
type SearchOptions struct {
	Provider     domain.PlaceProvider  // nil: searches report degraded
	Recorder     domain.SearchRecorder // optional
	Workers      int
	TermInterval time.Duration
	TierPause    time.Duration
	Timeout      time.Duration
	Now          func() time.Time
}

// SearchService runs tiered catalog searches against a place provider
// and caches the ranked result set.
type SearchService struct {
	catalog  *catalog.Catalog
	cache    *StoreCache
	provider domain.PlaceProvider
	recorder domain.SearchRecorder

	limiter   *rate.Limiter
	workers   int
	tierPause time.Duration
	timeout   time.Duration
	now       func() time.Time

	flights singleflight.Group
	doneBy  sync.Map // key -> time.Time the running flight is bounded by
}

func NewSearchService(cat *catalog.Catalog, cache *StoreCache, opt SearchOptions) *SearchService {
	if opt.Workers <= 0 {
		opt.Workers = DefaultWorkers
	}
	if opt.TermInterval <= 0 {
		opt.TermInterval = DefaultTermInterval
	}
	if opt.TierPause < 0 {
		opt.TierPause = 0
	} else if opt.TierPause == 0 {
		opt.TierPause = DefaultTierPause
	}
	if opt.Timeout <= 0 {
		opt.Timeout = DefaultTimeout
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	return &SearchService{
		catalog:   cat,
		cache:     cache,
		provider:  opt.Provider,
		recorder:  opt.Recorder,
		limiter:   rate.NewLimiter(rate.Every(opt.TermInterval), 1),
		workers:   opt.Workers,
		tierPause: opt.TierPause,
		timeout:   opt.Timeout,
		now:       opt.Now,
	}
}

// HasProvider reports whether live searches are possible.
func (s *SearchService) HasProvider() bool { return s.provider != nil }

// ProviderName is empty when no provider is configured.
func (s *SearchService) ProviderName() string {
	if s.provider == nil {
		return ""
	}
	return s.provider.Name()
}

func (s *SearchService) Catalog() *catalog.Catalog { return s.catalog }

func (s *SearchService) Cache() *StoreCache { return s.cache }

type flight struct {
	stores  []domain.StoreResult
	status  string
	cached  bool
	summary domain.SearchSummary
}

// Search returns ranked stores near req. Only validation failures are returned as errors;
// provider trouble shows up as a degraded or partial status.
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResult, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return domain.SearchResult{}, err
	}
	start := time.Now()
	reqID := uuid.NewString()
	key := Key(req.Lat, req.Lng, req.RadiusMeters, req.Category)
	logger := log.With().Str("request_id", reqID).Str("key", key).Logger()

	var f flight
	if stores, ok := s.cache.GetKey(ctx, key); ok {
		f = flight{stores: stores, status: domain.SearchOK, cached: true}
	} else {
		runCtx := context.WithoutCancel(ctx)
		callerDeadline := deadlineOf(ctx)
		ch := s.flights.DoChan(key, func() (any, error) {
			b := s.boundsFor(callerDeadline)
			s.doneBy.Store(key, b.doneBy)
			defer s.doneBy.Delete(key)
			// a flight that just landed may have filled the cache
			if stores, ok := s.cache.GetKey(runCtx, key); ok {
				return flight{stores: stores, status: domain.SearchOK, cached: true}, nil
			}
			return s.run(runCtx, req, key, b), nil
		})
		if r, ok := s.await(ctx, key, ch); ok {
			f = r.Val.(flight)
			if r.Shared {
				observability.Coalesced.Inc()
				// waiters must not share backing arrays
				f.stores = append([]domain.StoreResult(nil), f.stores...)
			}
		} else {
			logger.Warn().Err(ctx.Err()).Msg("caller left before search finished")
			f = flight{status: domain.SearchPartial}
		}
	}
	if f.stores == nil {
		f.stores = []domain.StoreResult{}
	}

	dur := time.Since(start)
	f.summary.DurationMS = dur.Milliseconds()
	observability.ObserveSearch(f.status, f.cached, dur)
	logger.Info().
		Str("status", f.status).
		Bool("cached", f.cached).
		Int("stores", len(f.stores)).
		Dur("took", dur).
		Msg("search done")

	res := domain.SearchResult{
		RequestID: reqID,
		Stores:    f.stores,
		Status:    f.status,
		Cached:    f.cached,
		Summary:   f.summary,
	}
	s.record(ctx, req, res, dur)
	return res, nil
}

func deadlineOf(ctx context.Context) time.Time {
	d, _ := ctx.Deadline()
	return d
}

// flightBounds limits one flight. Provider work stops at searchBy; ranking and the cache write end by doneBy.
type flightBounds struct {
	searchBy time.Time
	doneBy   time.Time
}

// boundsFor applies the service timeout, tightened to the initiating caller's deadline when that is sooner.
func (s *SearchService) boundsFor(callerDeadline time.Time) flightBounds {
	b := flightBounds{searchBy: time.Now().Add(s.timeout)}
	b.doneBy = b.searchBy.Add(writeBudget)
	if !callerDeadline.IsZero() && callerDeadline.Before(b.doneBy) {
		b.doneBy = callerDeadline
		if by := callerDeadline.Add(-finishHeadroom); by.Before(b.searchBy) {
			b.searchBy = by
		}
	}
	return b
}

// await returns the flight result. A caller whose context ends first keeps waiting when the
// flight is bounded by that deadline or an earlier one; it only gives up on longer flights.
func (s *SearchService) await(ctx context.Context, key string, ch <-chan singleflight.Result) (singleflight.Result, bool) {
	select {
	case r := <-ch:
		return r, true
	case <-ctx.Done():
	}
	if d, ok := ctx.Deadline(); ok {
		if v, running := s.doneBy.Load(key); running && !v.(time.Time).After(d) {
			return <-ch, true
		}
	}
	return singleflight.Result{}, false
}

// run executes one uncached search within b.
func (s *SearchService) run(ctx context.Context, req domain.SearchRequest, key string, b flightBounds) flight {
	base := ctx
	ctx, cancel := context.WithDeadline(ctx, b.searchBy)
	defer cancel()

	if s.provider == nil {
		log.Warn().Err(domain.ErrProviderUnavailable).Str("key", key).Msg("search degraded")
		observability.ObserveOutcome("provider", domain.OutcomeSkipped.String(), 1)
		return flight{stores: []domain.StoreResult{}, status: domain.SearchDegraded}
	}

	tiers := s.catalog.Tiers(req.Category)
	var (
		sum       domain.SearchSummary
		collected []domain.StoreResult
		status    = domain.SearchOK
	)

	for i, tier := range tiers {
		if (i > 0 && !pause(ctx, s.tierPause)) || ctx.Err() != nil {
			sum.TiersSkipped += len(tiers) - i
			status = domain.SearchPartial
			break
		}

		// one slot per entry keeps catalog order independent of completion order
		slots := make([]entryResult, len(tier))
		var g errgroup.Group
		g.SetLimit(s.workers)
		for j, e := range tier {
			g.Go(func() error {
				slots[j] = s.searchEntry(ctx, req, e)
				return nil
			})
		}
		_ = g.Wait()

		for _, r := range slots {
			collected = append(collected, r.stores...)
			sum = addSummary(sum, r.summary)
		}
		if ctx.Err() != nil {
			sum.TiersSkipped += len(tiers) - i - 1
			status = domain.SearchPartial
			break
		}
		sum.TiersCompleted++
	}

	stores := Dedupe(collected)
	sum.Duplicates = len(collected) - len(stores)
	Rank(stores)
	observeSummary(sum)

	if status == domain.SearchPartial {
		log.Warn().
			Str("key", key).
			Int("tiers_completed", sum.TiersCompleted).
			Int("tiers_skipped", sum.TiersSkipped).
			Msg("search deadline reached; returning partial results")
	}
	log.Debug().Str("key", key).Interface("summary", sum).Msg("search summary")

	ttl := s.cache.TTLFor(stores)
	if status == domain.SearchPartial {
		ttl = s.cache.shortTTL
	}
	// the search deadline may be spent; the write runs until doneBy
	wctx, wcancel := context.WithDeadline(base, b.doneBy)
	s.cache.SetKey(wctx, key, stores, ttl)
	wcancel()

	return flight{stores: stores, status: status, summary: sum}
}

type entryResult struct {
	stores  []domain.StoreResult
	summary domain.SearchSummary
}

// searchEntry tries each search term until one yields places, then enriches up to MaxPerType of them.
func (s *SearchService) searchEntry(ctx context.Context, req domain.SearchRequest, e domain.CatalogEntry) entryResult {
	var r entryResult
	r.summary.EntriesSearched = 1
	center := domain.Coords{Lat: req.Lat, Lng: req.Lng}

	var stubs []domain.PlaceStub
	for _, term := range e.SearchTerms {
		if err := s.limiter.Wait(ctx); err != nil {
			return r
		}
		r.summary.TermsTried++
		found, err := s.provider.NearbySearch(ctx, center, req.RadiusMeters, term, e.PlaceType)
		if err != nil {
			r.summary.TermFailures++
			log.Warn().Err(err).Str("chain", e.Chain).Str("term", term).Msg("nearby search failed; trying next term")
			continue
		}
		if len(found) > 0 {
			stubs = found
			break
		}
	}
	if len(stubs) == 0 {
		r.summary.EntriesEmpty = 1
		return r
	}
	if len(stubs) > req.MaxPerType {
		stubs = stubs[:req.MaxPerType]
	}
	r.summary.Candidates = len(stubs)

	maxMiles := geo.RadiusMiles(req.RadiusMeters)
	for _, p := range stubs {
		if ctx.Err() != nil {
			break
		}
		dist := geo.Miles(req.Lat, req.Lng, p.Coords.Lat, p.Coords.Lng)
		if dist > maxMiles {
			r.summary.OutOfRange++
			continue
		}
		d, err := s.provider.PlaceDetails(ctx, p.ProviderID, domain.DetailFields)
		if err != nil {
			r.summary.DetailFailures++
			if !errors.Is(err, context.DeadlineExceeded) {
				log.Warn().Err(err).Str("place_id", p.ProviderID).Msg("place details failed; skipping")
			}
			continue
		}
		if d.Closed() {
			r.summary.Closed++
			continue
		}
		r.stores = append(r.stores, s.assemble(req, e, p, d, dist))
	}
	r.summary.Accepted = len(r.stores)
	return r
}

func (s *SearchService) assemble(req domain.SearchRequest, e domain.CatalogEntry, p domain.PlaceStub, d domain.PlaceDetails, dist float64) domain.StoreResult {
	name := firstNonEmpty(d.Name, p.Name, "Unknown Store")
	addr := firstNonEmpty(d.Address, p.Vicinity, "Unknown Address")
	types := d.Types
	if len(types) == 0 {
		types = p.Types
	}
	return domain.StoreResult{
		Name:            name,
		Address:         addr,
		PlaceID:         p.ProviderID,
		Lat:             p.Coords.Lat,
		Lng:             p.Coords.Lng,
		Chain:           e.Chain,
		Icon:            e.Icon,
		Category:        e.Category,
		Priority:        e.Priority,
		Distance:        dist,
		Rating:          d.Rating,
		RatingCount:     d.RatingCount,
		Phone:           d.Phone,
		Website:         d.Website,
		IsOpen:          d.OpenNow,
		WeeklyHours:     d.WeeklyHours,
		BusinessStatus:  firstNonEmpty(d.BusinessStatus, domain.StatusOperational),
		PriceLevel:      d.PriceLevel,
		Types:           types,
		Verified:        s.provider.Name(),
		QualityScore:    Score(d, dist),
		SearchTimestamp: s.now().UTC(),
		SearchRadius:    req.RadiusMeters,
	}
}

// record hands the search to the recorder; failures are logged only.
func (s *SearchService) record(ctx context.Context, req domain.SearchRequest, res domain.SearchResult, dur time.Duration) {
	if s.recorder == nil {
		return
	}
	entry := domain.SearchLog{
		RequestID:    res.RequestID,
		Lat:          geo.Round3(req.Lat),
		Lng:          geo.Round3(req.Lng),
		RadiusMeters: req.RadiusMeters,
		Category:     req.Category,
		ResultCount:  len(res.Stores),
		Status:       res.Status,
		Cached:       res.Cached,
		Duration:     dur,
		Summary:      res.Summary,
		CreatedAt:    s.now().UTC(),
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.recorder.RecordSearch(rctx, entry); err != nil {
		log.Warn().Err(err).Str("request_id", res.RequestID).Msg("record search failed")
	}
}

func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
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

func addSummary(a, b domain.SearchSummary) domain.SearchSummary {
	a.EntriesSearched += b.EntriesSearched
	a.EntriesEmpty += b.EntriesEmpty
	a.TermsTried += b.TermsTried
	a.TermFailures += b.TermFailures
	a.Candidates += b.Candidates
	a.OutOfRange += b.OutOfRange
	a.Closed += b.Closed
	a.DetailFailures += b.DetailFailures
	a.Accepted += b.Accepted
	return a
}

func observeSummary(s domain.SearchSummary) {
	ok, skip, fail := domain.OutcomeSuccess.String(), domain.OutcomeSkipped.String(), domain.OutcomeFailed.String()
	observability.ObserveOutcome("term", ok, s.TermsTried-s.TermFailures)
	observability.ObserveOutcome("term", fail, s.TermFailures)
	observability.ObserveOutcome("entry", skip, s.EntriesEmpty)
	observability.ObserveOutcome("candidate", skip, s.OutOfRange+s.Closed)
	observability.ObserveOutcome("details", fail, s.DetailFailures)
	observability.ObserveOutcome("details", ok, s.Accepted)
	observability.ObserveOutcome("tier", ok, s.TiersCompleted)
	observability.ObserveOutcome("tier", skip, s.TiersSkipped)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
