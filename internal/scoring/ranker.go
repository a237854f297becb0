package scoring

import (
	"math"
	"slices"

	"github.com/ahrav/go-themis/internal/domain"
)

const (
	// ScoreEpsilon is the difference below which two scores tie.
	ScoreEpsilon = 0.001

	topCriteria = 3
)

// Ranker orders initiative scores.
type Ranker struct {
	tieBreaks []domain.TieBreak
}

// NewRanker creates a ranker that applies tieBreaks, in order, to near-equal
// scores.
func NewRanker(tieBreaks ...domain.TieBreak) *Ranker {
	return &Ranker{tieBreaks: slices.Clone(tieBreaks)}
}

// Rank orders scores and assigns dense ranks 1..N. Near-equal scores are
// separated by the tie-break criteria, then by confidence, then by input order.
func (r *Ranker) Rank(scores []domain.InitiativeScore) []domain.RankingResult {
	order := r.order(scores)
	results := make([]domain.RankingResult, len(order))
	for i, idx := range order {
		s := &scores[idx]
		results[i] = domain.RankingResult{
			InitiativeID: s.InitiativeID,
			Rank:         i + 1,
			Score:        s.OverallScore,
			Explanation:  explain(s),
		}
	}
	return results
}

// WhatIf recomputes every initiative under newWeights and reports how ranks
// move. Criteria absent from newWeights keep their current weight. Results
// follow the current ranking order.
func (r *Ranker) WhatIf(scores []domain.InitiativeScore, newWeights map[string]float64) []domain.RankChange {
	current := r.Rank(scores)
	reweighted := Reweight(scores, newWeights)

	next := make(map[string]domain.RankingResult, len(reweighted))
	for _, res := range r.Rank(reweighted) {
		next[res.InitiativeID] = res
	}

	changes := make([]domain.RankChange, 0, len(current))
	for _, cur := range current {
		n := next[cur.InitiativeID]
		changes = append(changes, domain.RankChange{
			InitiativeID: cur.InitiativeID,
			CurrentRank:  cur.Rank,
			NewRank:      n.Rank,
			Change:       cur.Rank - n.Rank,
			NewScore:     n.Score,
		})
	}
	return changes
}

// FilterByThreshold keeps results scoring at least minScore and re-densifies
// their ranks.
func FilterByThreshold(results []domain.RankingResult, minScore float64) []domain.RankingResult {
	out := make([]domain.RankingResult, 0, len(results))
	for _, res := range results {
		if res.Score >= minScore {
			out = append(out, res)
		}
	}
	return rerank(out)
}

// Top returns the first n results with re-densified ranks.
func Top(results []domain.RankingResult, n int) []domain.RankingResult {
	n = max(0, min(n, len(results)))
	return rerank(slices.Clone(results[:n]))
}

// Reweight returns copies of scores with contributions and overall scores
// recomputed under weights. The inputs are not modified.
func Reweight(scores []domain.InitiativeScore, weights map[string]float64) []domain.InitiativeScore {
	out := make([]domain.InitiativeScore, len(scores))
	for i, s := range scores {
		cs := make([]domain.CriterionScore, len(s.CriterionScores))
		var overall float64
		for j, c := range s.CriterionScores {
			if w, ok := weights[c.CriterionID]; ok {
				c.Weight = w
			}
			c.Contribution = c.NormalizedValue * c.Weight
			overall += c.Contribution
			cs[j] = c
		}
		s.CriterionScores = cs
		s.OverallScore = overall
		s.RiskAdjustedScore = nil
		out[i] = s
	}
	return out
}

func rerank(results []domain.RankingResult) []domain.RankingResult {
	for i := range results {
		results[i].Rank = i + 1
	}
	return results
}

// order returns indices of scores in ranking order. Scores are grouped into
// near-tie bands: a band starts at its highest score and holds every score
// within ScoreEpsilon of it. Bands are ordered by score; members of a band
// are ordered by tie-breaks, then confidence, then input order.
func (r *Ranker) order(scores []domain.InitiativeScore) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return sign(scores[b].OverallScore - scores[a].OverallScore)
	})

	for start := 0; start < len(idx); {
		lead := scores[idx[start]].OverallScore
		end := start + 1
		for end < len(idx) && lead-scores[idx[end]].OverallScore <= ScoreEpsilon {
			end++
		}
		band := idx[start:end]
		slices.Sort(band)
		slices.SortStableFunc(band, func(a, b int) int {
			return r.breakTie(&scores[a], &scores[b])
		})
		start = end
	}
	return idx
}

// breakTie returns a negative value when a ranks ahead of b among scores
// that tie on overall score.
func (r *Ranker) breakTie(a, b *domain.InitiativeScore) int {
	for _, tb := range r.tieBreaks {
		ca, okA := a.Criterion(tb.CriterionID)
		cb, okB := b.Criterion(tb.CriterionID)
		if !okA || !okB {
			continue
		}
		d := cb.Contribution - ca.Contribution
		if math.Abs(d) <= ScoreEpsilon {
			continue
		}
		if tb.Direction == domain.SortAsc {
			return -sign(d)
		}
		return sign(d)
	}

	if a.Confidence != nil && b.Confidence != nil && *a.Confidence != *b.Confidence {
		return sign(*b.Confidence - *a.Confidence)
	}
	return 0
}

func sign(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	}
	return 0
}

func explain(s *domain.InitiativeScore) domain.Explanation {
	contribs := make([]domain.Contribution, 0, len(s.CriterionScores))
	all := make(map[string]float64, len(s.CriterionScores))
	for _, cs := range s.CriterionScores {
		contribs = append(contribs, domain.Contribution{CriterionID: cs.CriterionID, Contribution: cs.Contribution})
		all[cs.CriterionID] = cs.Contribution
	}
	slices.SortStableFunc(contribs, func(a, b domain.Contribution) int {
		return sign(b.Contribution - a.Contribution)
	})
	return domain.Explanation{
		TopCriteria:   contribs[:min(topCriteria, len(contribs))],
		Contributions: all,
	}
}
