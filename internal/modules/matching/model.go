// README: Search query, match tiers and result shapes returned by ride search.
package matching

import (
	"boleia/internal/modules/location"
	"boleia/internal/modules/ride"
	"boleia/internal/types"
)

type MatchType string

const (
	MatchExact          MatchType = "exact_match"
	MatchExactProvince  MatchType = "exact_province"
	MatchFromProvinceTo MatchType = "from_correct_province_to"
	MatchToProvinceFrom MatchType = "to_correct_province_from"
	MatchPartialFrom    MatchType = "partial_from"
	MatchPartialTo      MatchType = "partial_to"
	MatchNearby         MatchType = "nearby"
	MatchTraditional    MatchType = "traditional"
)

// Priority orders tiers; higher ranks first. Types sharing a tier share a priority.
func (m MatchType) Priority() int {
	switch m {
	case MatchExact:
		return 6
	case MatchExactProvince:
		return 5
	case MatchFromProvinceTo, MatchToProvinceFrom:
		return 4
	case MatchPartialFrom, MatchPartialTo:
		return 3
	case MatchNearby:
		return 2
	case MatchTraditional:
		return 1
	}
	return 0
}

// scoreBand is the inclusive compatibility range of a tier.
func (m MatchType) scoreBand() (lo, hi int) {
	switch m {
	case MatchExact:
		return 90, 100
	case MatchExactProvince:
		return 75, 89
	case MatchFromProvinceTo, MatchToProvinceFrom:
		return 60, 74
	case MatchPartialFrom, MatchPartialTo:
		return 40, 59
	case MatchNearby:
		return 20, 39
	case MatchTraditional:
		return 0, 30
	}
	return 0, 0
}

type Strategy string

const (
	StrategyPrimary  Strategy = "primary"
	StrategyFallback Strategy = "fallback"
)

// Values of SearchMetadata.FunctionUsed.
const (
	FunctionCorridor    = "corridor"
	FunctionTraditional = "traditional"
)

// Query is a rider's search as received from a caller.
type Query struct {
	From       string
	To         string
	FromCoords *types.Point
	ToCoords   *types.Point
	RadiusKm   float64
	MaxResults int
}

// Side is one end of a query after normalization.
type Side struct {
	Raw    string
	Key    string
	Place  location.Place
	Coords *types.Point
}

// Terms is the normalized form of a Query that both strategies match on.
type Terms struct {
	From Side
	To   Side
}

func (t Terms) empty() bool {
	return t.From.Key == "" && t.To.Key == ""
}

type SearchMetadata struct {
	OriginalFrom   string `json:"originalFrom"`
	OriginalTo     string `json:"originalTo"`
	NormalizedFrom string `json:"normalizedFrom"`
	NormalizedTo   string `json:"normalizedTo"`
	FromChanged    bool   `json:"fromChanged"`
	ToChanged      bool   `json:"toChanged"`
	FunctionUsed   string `json:"function_used"`
}

func newMetadata(t Terms, function string) SearchMetadata {
	return SearchMetadata{
		OriginalFrom:   t.From.Raw,
		OriginalTo:     t.To.Raw,
		NormalizedFrom: t.From.Key,
		NormalizedTo:   t.To.Key,
		FromChanged:    t.From.Raw != t.From.Key,
		ToChanged:      t.To.Raw != t.To.Key,
		FunctionUsed:   function,
	}
}

// Result is a candidate ride with its classification against a query.
type Result struct {
	ride.Candidate
	MatchType            MatchType      `json:"matchType"`
	CompatibilityScore   int            `json:"compatibilityScore"`
	DistanceFromOriginKm *float64       `json:"distanceFromOriginKm,omitempty"`
	SearchMetadata       SearchMetadata `json:"searchMetadata"`
}

type Stats struct {
	ByMatchType  map[MatchType]int `json:"byMatchType"`
	Total        int               `json:"total"`
	AverageScore float64           `json:"averageScore"`
}

type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type SearchParams struct {
	Original     Pair     `json:"original"`
	Normalized   Pair     `json:"normalized"`
	RadiusKm     float64  `json:"radiusKm"`
	MaxResults   int      `json:"maxResults"`
	StrategyUsed Strategy `json:"strategyUsed"`
}

// Response is what Search returns to HTTP and CLI callers.
type Response struct {
	Rides        []Result     `json:"rides"`
	Stats        Stats        `json:"stats"`
	SearchParams SearchParams `json:"searchParams"`
	Degraded     bool         `json:"degraded"`
	Error        string       `json:"error,omitempty"`
}

// forRequest copies r with the original text of t, leaving r untouched.
// Responses are shared between requests whose terms normalize alike.
func (r *Response) forRequest(t Terms) *Response {
	cp := *r
	cp.SearchParams.Original = Pair{From: t.From.Raw, To: t.To.Raw}
	cp.Rides = make([]Result, len(r.Rides))
	for i, res := range r.Rides {
		res.SearchMetadata = newMetadata(t, res.SearchMetadata.FunctionUsed)
		cp.Rides[i] = res
	}
	return &cp
}
