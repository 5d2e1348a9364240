// README: Corridor matcher grading available rides against normalized origin and destination.
package matching

import (
	"context"
	"fmt"
	"math"
	"strings"

	"boleia/internal/clock"
	"boleia/internal/modules/location"
	"boleia/internal/modules/ride"
	"boleia/internal/types"
)

// RideSource is the ride inventory the strategies read from. *ride.Store implements it.
type RideSource interface {
	QueryAvailable(ctx context.Context, f ride.Filters) ([]ride.Candidate, error)
}

// grade is how well one side of a ride matches one side of a query.
type grade int

const (
	gradeNone grade = iota
	gradePartial
	gradeProvince
	gradeCity
)

type sideMatch struct {
	grade grade
	fuzzy bool
	// literal marks a province the rider typed by name rather than one
	// inferred from a city.
	literal bool
}

// minPartialRunes is the shortest key a substring match may rest on.
const minPartialRunes = 3

type Matcher struct {
	source        RideSource
	clock         clock.Clock
	gazetteer     *location.Gazetteer
	maxCandidates int
}

func NewMatcher(source RideSource, clk clock.Clock, gaz *location.Gazetteer, maxCandidates int) *Matcher {
	if gaz == nil {
		gaz = location.DefaultGazetteer()
	}
	return &Matcher{source: source, clock: clk, gazetteer: gaz, maxCandidates: maxCandidates}
}

// Match scores every available future ride against t. Storage and scoring
// failures come back as *EngineError with no results.
func (m *Matcher) Match(ctx context.Context, t Terms, radiusKm float64) (results []Result, err error) {
	if t.empty() {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			results, err = nil, &EngineError{Stage: StageScore, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	now := m.clock.Now()
	memo := location.NewMemo()
	meta := newMetadata(t, FunctionCorridor)
	err = scan(ctx, m.source, ride.Filters{
		Statuses:      []ride.Status{ride.StatusAvailable},
		DepartureFrom: now,
		Limit:         m.maxCandidates,
	}, func(c ride.Candidate) {
		if !c.Matchable(now) {
			return
		}
		res, ok := m.classify(t, c, radiusKm, memo)
		if !ok {
			return
		}
		res.SearchMetadata = meta
		results = append(results, res)
	})
	if err != nil {
		return nil, &EngineError{Stage: StageQuery, Err: err}
	}
	return results, nil
}

// scan pages through every row matching f in departure order, f.Limit rows
// per query, and hands each row to visit.
func scan(ctx context.Context, source RideSource, f ride.Filters, visit func(ride.Candidate)) error {
	var last *ride.Cursor
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := source.QueryAvailable(ctx, f)
		if err != nil {
			return err
		}
		for _, c := range page {
			visit(c)
		}
		if f.Limit <= 0 || len(page) < f.Limit {
			return nil
		}
		next := ride.CursorAfter(page[len(page)-1])
		// A source that ignores After would repeat the same page forever.
		if last != nil && !last.Before(*next) {
			return nil
		}
		last, f.After = next, next
	}
}

func (m *Matcher) classify(t Terms, c ride.Candidate, radiusKm float64, memo *location.Memo) (Result, bool) {
	from := m.gradeSide(t.From, c.From, memo)
	to := m.gradeSide(t.To, c.To, memo)

	res := Result{Candidate: c}
	if t.From.Coords != nil && c.From.Coordinates != nil {
		d := roundKm(location.DistanceKm(*t.From.Coords, *c.From.Coordinates))
		res.DistanceFromOriginKm = &d
	}

	switch {
	case from.grade == gradeCity && to.grade == gradeCity:
		res.MatchType = MatchExact
		res.CompatibilityScore = 100 - fuzzPenalty(from, to)
	case from.grade == gradeProvince && to.grade == gradeProvince && from.literal && to.literal:
		res.MatchType = MatchExact
		res.CompatibilityScore = 94
	case from.grade == gradeProvince && to.grade == gradeProvince:
		res.MatchType = MatchExactProvince
		res.CompatibilityScore = 85 + literalBonus(from, to) - fuzzPenalty(from, to)
	case from.grade == gradeProvince && to.grade == gradeCity:
		res.MatchType = MatchFromProvinceTo
		res.CompatibilityScore = 70 + literalBonus(from, to) - fuzzPenalty(from, to)
	case from.grade == gradeCity && to.grade == gradeProvince:
		res.MatchType = MatchToProvinceFrom
		res.CompatibilityScore = 70 + literalBonus(from, to) - fuzzPenalty(from, to)
	case from.grade > gradeNone || to.grade > gradeNone:
		res.MatchType = MatchPartialTo
		strong, weak := to, from
		if from.grade >= to.grade {
			res.MatchType = MatchPartialFrom
			strong, weak = from, to
		}
		res.CompatibilityScore = partialScore(strong, weak)
	default:
		d, ok := nearbyDistance(t, c, radiusKm)
		if !ok {
			return Result{}, false
		}
		res.MatchType = MatchNearby
		res.CompatibilityScore = 20 + int(math.Round(19*(1-d/radiusKm)))
	}
	res.CompatibilityScore = clampScore(res.MatchType, res.CompatibilityScore)
	return res, true
}

// gradeSide compares one query side with one ride endpoint.
func (m *Matcher) gradeSide(s Side, ep ride.Endpoint, memo *location.Memo) sideMatch {
	if s.Key == "" {
		return sideMatch{}
	}
	g := m.gazetteer

	places := make([]string, 0, 3)
	for _, field := range []string{ep.City, ep.District, ep.Locality} {
		if k := memo.Normalize(field); k != "" {
			places = append(places, g.CanonicalCity(k))
		}
	}
	province := g.CanonicalProvince(memo.Normalize(ep.Province))
	if province == "" && len(places) > 0 {
		province = g.Resolve(ep.City).Province
	}

	if !s.Place.IsProvince {
		wanted := []string{s.Key}
		if s.Place.City != "" && s.Place.City != s.Key {
			wanted = append(wanted, s.Place.City)
		}
		for _, w := range wanted {
			for _, p := range places {
				if w == p {
					return sideMatch{grade: gradeCity, fuzzy: s.Place.Fuzzy && w == s.Place.City}
				}
			}
		}
		for _, p := range places {
			if location.SimilarKeys(s.Key, p) {
				return sideMatch{grade: gradeCity, fuzzy: true}
			}
		}
	}

	if s.Place.Province != "" && s.Place.Province == province {
		return sideMatch{grade: gradeProvince, fuzzy: s.Place.Fuzzy, literal: s.Place.IsProvince}
	}

	if len([]rune(s.Key)) >= minPartialRunes {
		for _, p := range append(places, province) {
			if partialHit(s.Key, p) {
				return sideMatch{grade: gradePartial}
			}
		}
	}
	return sideMatch{}
}

func partialHit(key, field string) bool {
	if len([]rune(field)) < minPartialRunes {
		return false
	}
	return strings.Contains(field, key) || strings.Contains(key, field)
}

// nearbyDistance requires every side the rider gave coordinates for to lie
// within radius of the ride's matching endpoint. It returns the farthest.
func nearbyDistance(t Terms, c ride.Candidate, radiusKm float64) (float64, bool) {
	if radiusKm <= 0 || (t.From.Coords == nil && t.To.Coords == nil) {
		return 0, false
	}
	farthest := 0.0
	check := func(want *types.Point, have *types.Point) bool {
		if want == nil {
			return true
		}
		if have == nil {
			return false
		}
		d := location.DistanceKm(*want, *have)
		farthest = math.Max(farthest, d)
		return d <= radiusKm
	}
	if !check(t.From.Coords, c.From.Coordinates) || !check(t.To.Coords, c.To.Coordinates) {
		return 0, false
	}
	return farthest, true
}

func fuzzPenalty(a, b sideMatch) int {
	p := 0
	if a.fuzzy {
		p += 4
	}
	if b.fuzzy {
		p += 4
	}
	return p
}

func literalBonus(a, b sideMatch) int {
	if a.literal || b.literal {
		return 2
	}
	return 0
}

func partialScore(strong, weak sideMatch) int {
	score := 45
	switch strong.grade {
	case gradeCity:
		score = 55
	case gradeProvince:
		score = 50
	}
	if weak.grade > gradeNone {
		score += 3
	}
	if strong.fuzzy {
		score -= 4
	}
	return score
}

func clampScore(m MatchType, score int) int {
	lo, hi := m.scoreBand()
	return max(lo, min(hi, score))
}

func roundKm(d float64) float64 {
	return math.Round(d*100) / 100
}
