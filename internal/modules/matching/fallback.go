// README: Fallback coordinator running the corridor matcher and, when it comes back empty, the traditional substring search.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"boleia/internal/clock"
	"boleia/internal/log"
	"boleia/internal/modules/location"
	"boleia/internal/modules/ride"
	"boleia/internal/types"
)

// Outcome is the result of one coordinated search. Err is set only when
// every strategy failed and wraps ErrFallbackExhausted.
type Outcome struct {
	Ranked   []Result
	Stats    Stats
	Strategy Strategy
	Terms    Terms
	// PrimaryErr is the corridor matcher's failure, if it had one.
	PrimaryErr error
	Err        error
}

type Coordinator struct {
	matcher     *Matcher
	traditional *Traditional
	gazetteer   *location.Gazetteer
}

func NewCoordinator(matcher *Matcher, traditional *Traditional, gaz *location.Gazetteer) *Coordinator {
	if gaz == nil {
		gaz = location.DefaultGazetteer()
	}
	return &Coordinator{matcher: matcher, traditional: traditional, gazetteer: gaz}
}

// SearchWithFallback runs at most one primary and one fallback pass.
func (c *Coordinator) SearchWithFallback(ctx context.Context, q Query) Outcome {
	l := log.Ctx(ctx)
	terms := c.Terms(q, location.NewMemo())
	out := Outcome{Terms: terms, Strategy: StrategyPrimary}

	primary, err := c.matcher.Match(ctx, terms, q.RadiusKm)
	if err == nil {
		out.Ranked, out.Stats = Rank(primary, q.MaxResults)
		if len(out.Ranked) > 0 {
			return out
		}
	} else {
		out.PrimaryErr = err
		l.Warn().Err(err).Msg("corridor match failed, falling back")
	}

	out.Strategy = StrategyFallback
	fallback, ferr := c.traditional.Match(ctx, terms)
	if ferr != nil {
		out.Ranked, out.Stats = Rank(nil, q.MaxResults)
		out.Err = exhausted(out.PrimaryErr, ferr)
		l.Error().Err(out.Err).Msg("ride search degraded")
		return out
	}
	out.Ranked, out.Stats = Rank(fallback, q.MaxResults)
	return out
}

// Terms normalizes both sides of q with the request's memo.
func (c *Coordinator) Terms(q Query, memo *location.Memo) Terms {
	side := func(raw string, coords *types.Point) Side {
		raw = strings.TrimSpace(raw)
		s := Side{Raw: raw, Key: memo.Normalize(raw), Coords: coords}
		if s.Key != "" {
			s.Place = c.gazetteer.Resolve(raw)
		}
		return s
	}
	return Terms{
		From: side(q.From, q.FromCoords),
		To:   side(q.To, q.ToCoords),
	}
}

func exhausted(primary, fallback error) error {
	if primary != nil {
		return fmt.Errorf("%w: %w", ErrFallbackExhausted, errors.Join(primary, fallback))
	}
	return fmt.Errorf("%w: %w", ErrFallbackExhausted, fallback)
}

// Traditional is the degraded strategy: case-insensitive containment of the
// raw query text in the raw ride fields, with no normalization.
type Traditional struct {
	source        RideSource
	clock         clock.Clock
	maxCandidates int
}

func NewTraditional(source RideSource, clk clock.Clock, maxCandidates int) *Traditional {
	return &Traditional{source: source, clock: clk, maxCandidates: maxCandidates}
}

// Scores for the traditional strategy, in result order.
const (
	traditionalBoth  = 30
	traditionalFrom  = 28
	traditionalTo    = 26
	traditionalOther = 24
)

func (tr *Traditional) Match(ctx context.Context, t Terms) ([]Result, error) {
	from, to := strings.ToLower(t.From.Raw), strings.ToLower(t.To.Raw)
	if from == "" && to == "" {
		return nil, nil
	}
	now := tr.clock.Now()
	meta := newMetadata(t, FunctionTraditional)
	var out []Result
	err := scan(ctx, tr.source, ride.Filters{
		FromText:      t.From.Raw,
		ToText:        t.To.Raw,
		CrossSide:     true,
		Statuses:      []ride.Status{ride.StatusAvailable},
		DepartureFrom: now,
		Limit:         tr.maxCandidates,
	}, func(c ride.Candidate) {
		if !c.Matchable(now) {
			return
		}
		fromHit := containsAny(from, c.From)
		toHit := containsAny(to, c.To)
		var score int
		switch {
		case fromHit && toHit:
			score = traditionalBoth
		case fromHit:
			score = traditionalFrom
		case toHit:
			score = traditionalTo
		case containsAny(from, c.To) || containsAny(to, c.From):
			score = traditionalOther
		default:
			return
		}
		res := Result{
			Candidate:          c,
			MatchType:          MatchTraditional,
			CompatibilityScore: score,
			SearchMetadata:     meta,
		}
		if t.From.Coords != nil && c.From.Coordinates != nil {
			d := roundKm(location.DistanceKm(*t.From.Coords, *c.From.Coordinates))
			res.DistanceFromOriginKm = &d
		}
		out = append(out, res)
	})
	if err != nil {
		return nil, &EngineError{Stage: StageTraditional, Err: err}
	}
	return out, nil
}

func containsAny(needle string, ep ride.Endpoint) bool {
	if needle == "" {
		return false
	}
	for _, field := range []string{ep.City, ep.Province, ep.District, ep.Locality} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
