package location

// levenshtein returns the rune-level edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// maxEdits is the misspelling budget for a key of n runes.
func maxEdits(n int) int {
	switch {
	case n < 5:
		return 0
	case n < 8:
		return 1
	default:
		return 2
	}
}

// SimilarKeys reports whether two normalized keys are equal or within the
// misspelling budget of the shorter one.
func SimilarKeys(a, b string) bool {
	if a == b {
		return a != ""
	}
	if a == "" || b == "" {
		return false
	}
	la, lb := len([]rune(a)), len([]rune(b))
	budget := maxEdits(min(la, lb))
	if budget == 0 || abs(la-lb) > budget {
		return false
	}
	return levenshtein(a, b) <= budget
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
