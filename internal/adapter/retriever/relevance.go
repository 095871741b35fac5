package retriever

import "finrag/internal/domain"

// DefaultRelevanceRatio keeps candidates scoring at least 60% of the best one.
const DefaultRelevanceRatio = 0.6

// RelevanceFilter drops long-tail candidates relative to the best score.
type RelevanceFilter struct {
	ratio float64
}

func NewRelevanceFilter(ratio float64) *RelevanceFilter {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultRelevanceRatio
	}
	return &RelevanceFilter{ratio: ratio}
}

// Ratio returns the configured ratio.
func (f *RelevanceFilter) Ratio() float64 {
	return f.ratio
}

// Filter keeps candidates with score >= ratio*max. When the best score is not
// positive the ratio is meaningless and all candidates are kept; the full list
// is also returned if nothing would survive. Candidate order is preserved.
func (f *RelevanceFilter) Filter(candidates []domain.Result) []domain.Result {
	if len(candidates) == 0 {
		return candidates
	}

	maxScore := candidates[0].Score
	for _, c := range candidates[1:] {
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	if maxScore <= 0 {
		return candidates
	}

	threshold := maxScore * f.ratio
	filtered := make([]domain.Result, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= threshold {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return candidates
	}
	return filtered
}
