// README: Result ranker deduplicating, ordering and truncating matches and summarising them.
package matching

import (
	"math"
	"sort"
)

// Rank keeps the best occurrence of each ride, sorts by tier, score,
// departure, free seats and ID, then truncates to maxResults. A
// non-positive maxResults keeps everything. Stats describe the kept set.
func Rank(results []Result, maxResults int) ([]Result, Stats) {
	best := make(map[string]int, len(results))
	ranked := make([]Result, 0, len(results))
	for _, r := range results {
		id := string(r.ID)
		if i, seen := best[id]; seen {
			if outranks(r, ranked[i]) {
				ranked[i] = r
			}
			continue
		}
		best[id] = len(ranked)
		ranked = append(ranked, r)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return outranks(ranked[i], ranked[j])
	})
	if maxResults > 0 && len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}
	return ranked, summarize(ranked)
}

// outranks reports whether a sorts strictly before b.
func outranks(a, b Result) bool {
	if pa, pb := a.MatchType.Priority(), b.MatchType.Priority(); pa != pb {
		return pa > pb
	}
	if a.CompatibilityScore != b.CompatibilityScore {
		return a.CompatibilityScore > b.CompatibilityScore
	}
	if !a.DepartureAt.Equal(b.DepartureAt) {
		return a.DepartureAt.Before(b.DepartureAt)
	}
	if a.AvailableSeats != b.AvailableSeats {
		return a.AvailableSeats > b.AvailableSeats
	}
	return a.ID < b.ID
}

func summarize(ranked []Result) Stats {
	st := Stats{ByMatchType: make(map[MatchType]int), Total: len(ranked)}
	if len(ranked) == 0 {
		return st
	}
	sum := 0
	for _, r := range ranked {
		st.ByMatchType[r.MatchType]++
		sum += r.CompatibilityScore
	}
	st.AverageScore = math.Round(float64(sum)/float64(len(ranked))*10) / 10
	return st
}
