package match

import (
	"sort"

	"struct-mapper/internal/member"
	"struct-mapper/primitive"
)

// Candidate is a source member scored as a possible data source for a target member.
type Candidate struct {
	Source member.Member
	Target member.Member

	NameScore  float64 // normalized name similarity (0-1)
	TypeCompat TypeCompatibilityResult

	// CombinedScore ranks candidates, higher is better.
	CombinedScore float64
}

// CandidateList is a list of candidates with ranking functionality.
type CandidateList []Candidate

// Name similarity carries 60% of the combined score, type compatibility 40%.
const (
	nameWeight = 0.6
	typeWeight = 0.4
)

// RankCandidates scores every source member against target and returns them
// sorted by combined score, ties broken by source name.
func RankCandidates(target member.Member, sources []member.Member, allowed primitive.CategoryEnum) CandidateList {
	candidates := make(CandidateList, 0, len(sources))

	for _, source := range sources {
		nameScore := NameScore(source.MapName(), target.MapName())

		var compat TypeCompatibilityResult
		if source.Type != nil && target.Type != nil {
			compat = ScoreTypeCompatibility(source.Type, target.Type, allowed)
		} else {
			compat = TypeCompatibilityResult{Compatibility: TypeIncompatible, Reason: "type information unavailable"}
		}

		candidates = append(candidates, Candidate{
			Source:        source,
			Target:        target,
			NameScore:     nameScore,
			TypeCompat:    compat,
			CombinedScore: nameScore*nameWeight + compat.Compatibility.weight()*typeWeight,
		})
	}

	sort.Sort(candidates)

	return candidates
}

// Len implements sort.Interface.
func (c CandidateList) Len() int { return len(c) }

// Swap implements sort.Interface.
func (c CandidateList) Swap(i, j int) { c[i], c[j] = c[j], c[i] }

// Less implements sort.Interface.
func (c CandidateList) Less(i, j int) bool {
	if c[i].CombinedScore != c[j].CombinedScore {
		return c[i].CombinedScore > c[j].CombinedScore
	}

	return c[i].Source.Name < c[j].Source.Name
}

// Top returns the top n candidates.
func (c CandidateList) Top(n int) CandidateList {
	if n >= len(c) {
		return c
	}

	return c[:n]
}

// AboveThreshold returns candidates with combined score at or above the threshold.
func (c CandidateList) AboveThreshold(threshold float64) CandidateList {
	var result CandidateList

	for _, cand := range c {
		if cand.CombinedScore >= threshold {
			result = append(result, cand)
		}
	}

	return result
}

// Names returns the source member names in ranking order.
func (c CandidateList) Names() []string {
	names := make([]string, len(c))
	for i, cand := range c {
		names[i] = cand.Source.Name
	}

	return names
}

// SuggestionThreshold is the minimum combined score for a candidate to be
// offered as a suggestion for an unmapped member.
const SuggestionThreshold = 0.5

// Suggest returns at most n source member names that plausibly map to target.
func Suggest(target member.Member, sources []member.Member, allowed primitive.CategoryEnum, n int) []string {
	if n <= 0 {
		return nil
	}

	return RankCandidates(target, sources, allowed).AboveThreshold(SuggestionThreshold).Top(n).Names()
}
