package match

// Levenshtein returns the edit distance between a and b counted in bytes.
func Levenshtein(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return len(b)
	case b == "":
		return len(a)
	}

	if len(a) > len(b) {
		a, b = b, a
	}

	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)

	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j

		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(a)]
}

// Similarity maps the edit distance of a and b onto [0, 1], 1 being equal.
func Similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}

	return 1 - float64(Levenshtein(a, b))/float64(max(len(a), len(b)))
}

// NameScore compares two identifiers after normalization, with and without
// common suffixes, and returns the better of both similarities.
func NameScore(a, b string) float64 {
	plain := Similarity(NormalizeIdent(a), NormalizeIdent(b))
	stripped := Similarity(NormalizeIdentWithSuffixStrip(a), NormalizeIdentWithSuffixStrip(b))

	return max(plain, stripped)
}
