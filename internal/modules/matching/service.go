// README: Search service validating queries and running the coordinated search with caching.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"boleia/internal/clock"
	"boleia/internal/config"
	"boleia/internal/log"
	"boleia/internal/modules/location"
	"boleia/internal/types"
)

// Query bounds.
const (
	minRadiusKm   = 1
	maxRadiusKm   = 500
	minMaxResults = 1
	maxMaxResults = 100

	defaultSearchTimeout = 10 * time.Second
)

// Geocoder resolves free text to coordinates when the caller sent none.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (*types.Point, error)
}

// Recorder receives search measurements. *metrics.Metrics implements it.
type Recorder interface {
	ObserveSearch(strategy string, degraded bool, elapsed time.Duration)
	ObserveResults(matchType string, n int)
	EngineError(stage string)
	CacheLookup(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSearch(string, bool, time.Duration) {}
func (nopRecorder) ObserveResults(string, int)                {}
func (nopRecorder) EngineError(string)                        {}
func (nopRecorder) CacheLookup(string)                        {}

type Service struct {
	coordinator *Coordinator
	cfg         config.MatchingConfig
	cache       ResultCache
	geocoder    Geocoder
	recorder    Recorder
	sf          singleflight.Group
}

type Option func(*Service)

// WithCache enables result caching. It has no effect when cfg disables caching.
func WithCache(c ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithGeocoder(g Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func NewService(source RideSource, clk clock.Clock, cfg config.MatchingConfig, opts ...Option) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	gaz := location.DefaultGazetteer()
	s := &Service{
		coordinator: NewCoordinator(
			NewMatcher(source, clk, gaz, cfg.MaxCandidates),
			NewTraditional(source, clk, cfg.MaxCandidates),
			gaz,
		),
		cfg:      cfg,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if !cfg.CacheEnabled {
		s.cache = nil
	}
	return s
}

// Search validates q, applies defaults and bounds, and returns ranked rides.
// Failed strategies yield a degraded empty response rather than an error.
// Errors are ErrInvalidQuery, or ctx's error when the caller stops waiting.
//
// Identical concurrent searches share one run. The shared run is detached
// from every caller's cancellation and bounded by the configured timeout.
func (s *Service) Search(ctx context.Context, q Query) (*Response, error) {
	q, err := s.prepare(q)
	if err != nil {
		return nil, err
	}
	terms := s.coordinator.Terms(q, location.NewMemo())
	key := BuildKey(terms, q.RadiusKm, q.MaxResults)

	ch := s.sf.DoChan(key, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
		defer cancel()
		return s.searchWithCache(shared, q, key), nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		resp, ok := res.Val.(*Response)
		if !ok {
			return nil, fmt.Errorf("unexpected result type from singleflight")
		}
		return resp.forRequest(terms), nil
	}
}

func (s *Service) timeout() time.Duration {
	if s.cfg.Timeout > 0 {
		return s.cfg.Timeout
	}
	return defaultSearchTimeout
}

func (s *Service) prepare(q Query) (Query, error) {
	q.From = strings.TrimSpace(q.From)
	q.To = strings.TrimSpace(q.To)
	switch {
	case q.From == "" && q.To == "":
		return q, fmt.Errorf("%w: origin and destination are empty", ErrInvalidQuery)
	case q.From == "":
		return q, fmt.Errorf("%w: origin is empty", ErrInvalidQuery)
	case q.To == "":
		return q, fmt.Errorf("%w: destination is empty", ErrInvalidQuery)
	}
	switch {
	case location.Normalize(q.From) == "":
		return q, fmt.Errorf("%w: origin has no letters or digits", ErrInvalidQuery)
	case location.Normalize(q.To) == "":
		return q, fmt.Errorf("%w: destination has no letters or digits", ErrInvalidQuery)
	}
	for name, p := range map[string]*types.Point{"origin": q.FromCoords, "destination": q.ToCoords} {
		if p != nil && !p.Valid() {
			return q, fmt.Errorf("%w: %s coordinates out of range", ErrInvalidQuery, name)
		}
	}

	if q.RadiusKm <= 0 {
		q.RadiusKm = s.cfg.DefaultRadiusKm
	}
	q.RadiusKm = max(minRadiusKm, min(maxRadiusKm, q.RadiusKm))
	if q.MaxResults <= 0 {
		q.MaxResults = s.cfg.DefaultMaxResults
	}
	q.MaxResults = max(minMaxResults, min(maxMaxResults, q.MaxResults))
	return q, nil
}

func (s *Service) searchWithCache(ctx context.Context, q Query, key string) *Response {
	l := log.Ctx(ctx)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			s.recorder.CacheLookup("hit")
			return cached
		case errors.Is(err, ErrCacheMiss):
			s.recorder.CacheLookup("miss")
		default:
			s.recorder.CacheLookup("error")
			l.Warn().Err(err).Msg("cache get error")
		}
	}

	resp := s.run(ctx, q)

	if s.cache != nil && !resp.Degraded {
		if err := s.cache.Set(ctx, key, resp, s.cfg.CacheTTL); err != nil {
			l.Warn().Err(err).Msg("cache set error")
		}
	}
	return resp
}

func (s *Service) run(ctx context.Context, q Query) *Response {
	l := log.Ctx(ctx)
	start := time.Now()
	s.geocode(ctx, &q)

	out := s.coordinator.SearchWithFallback(ctx, q)
	var engineErr *EngineError
	if errors.As(out.PrimaryErr, &engineErr) {
		s.recorder.EngineError(engineErr.Stage)
	}
	if out.Err != nil {
		s.recorder.EngineError(StageTraditional)
	}

	resp := &Response{
		Rides: out.Ranked,
		Stats: out.Stats,
		SearchParams: SearchParams{
			Original:     Pair{From: q.From, To: q.To},
			Normalized:   Pair{From: out.Terms.From.Key, To: out.Terms.To.Key},
			RadiusKm:     q.RadiusKm,
			MaxResults:   q.MaxResults,
			StrategyUsed: out.Strategy,
		},
	}
	if resp.Rides == nil {
		resp.Rides = []Result{}
	}
	if out.Err != nil {
		resp.Degraded = true
		resp.Error = ErrFallbackExhausted.Error()
	}

	for mt, n := range resp.Stats.ByMatchType {
		s.recorder.ObserveResults(string(mt), n)
	}
	elapsed := time.Since(start)
	s.recorder.ObserveSearch(string(out.Strategy), resp.Degraded, elapsed)
	l.Info().
		Str(log.FieldFrom, q.From).
		Str(log.FieldTo, q.To).
		Str(log.FieldStrategy, string(out.Strategy)).
		Int(log.FieldResults, resp.Stats.Total).
		Dur(log.FieldLatency, elapsed).
		Msg("ride search")
	return resp
}

// geocode fills missing coordinates; failures leave them unset.
func (s *Service) geocode(ctx context.Context, q *Query) {
	if s.geocoder == nil {
		return
	}
	l := log.Ctx(ctx)
	resolve := func(text string, dst **types.Point) {
		if *dst != nil {
			return
		}
		p, err := s.geocoder.Geocode(ctx, text)
		if err != nil {
			l.Debug().Err(err).Str("text", text).Msg("geocode failed")
			return
		}
		*dst = p
	}
	resolve(q.From, &q.FromCoords)
	resolve(q.To, &q.ToCoords)
}
