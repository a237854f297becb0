package scoring

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/ahrav/go-themis/internal/domain"
)

// DefaultCriticalThreshold is the rank-change probability at which a
// criterion becomes a critical decision point.
const DefaultCriticalThreshold = 0.3

const (
	highImpact   = 0.15
	mediumImpact = 0.08
	explainTop   = 3
)

// perturbations are the weight deltas tried for every criterion.
var perturbations = []float64{-0.1, -0.05, 0.05, 0.1}

// SensitivityAnalyzer estimates how fragile a ranking is to weight changes.
type SensitivityAnalyzer struct {
	ranker *Ranker
}

// NewSensitivityAnalyzer creates an analyzer that re-ranks with ranker.
// A nil ranker ranks without tie-break criteria.
func NewSensitivityAnalyzer(ranker *Ranker) *SensitivityAnalyzer {
	if ranker == nil {
		ranker = NewRanker()
	}
	return &SensitivityAnalyzer{ranker: ranker}
}

// Analyze perturbs each of target's criterion weights and measures whether
// its rank among all moves. Criteria are ordered by impact
// |scoreChange × weight|, largest first.
func (a *SensitivityAnalyzer) Analyze(target domain.InitiativeScore, all []domain.InitiativeScore) domain.SensitivityAnalysis {
	baseRank := 0
	for _, res := range a.ranker.Rank(all) {
		if res.InitiativeID == target.InitiativeID {
			baseRank = res.Rank
			break
		}
	}

	weights := make(map[string]float64, len(target.CriterionScores))
	for _, cs := range target.CriterionScores {
		weights[cs.CriterionID] = cs.Weight
	}

	criteria := make([]domain.CriterionSensitivity, 0, len(target.CriterionScores))
	for _, cs := range target.CriterionScores {
		changed := 0
		for _, delta := range perturbations {
			perturbed := perturbWeights(weights, cs.CriterionID, delta)
			for _, ch := range a.ranker.WhatIf(all, perturbed) {
				if ch.InitiativeID == target.InitiativeID {
					if ch.NewRank != baseRank {
						changed++
					}
					break
				}
			}
		}

		criteria = append(criteria, domain.CriterionSensitivity{
			CriterionID:           cs.CriterionID,
			CurrentWeight:         cs.Weight,
			ScoreChange:           cs.NormalizedValue,
			RankChangeProbability: float64(changed) / float64(len(perturbations)),
			Impact:                math.Abs(cs.NormalizedValue * cs.Weight),
		})
	}
	slices.SortStableFunc(criteria, func(x, y domain.CriterionSensitivity) int {
		return sign(y.Impact - x.Impact)
	})

	return domain.SensitivityAnalysis{
		InitiativeID: target.InitiativeID,
		BaseScore:    target.OverallScore,
		BaseRank:     baseRank,
		Criteria:     criteria,
	}
}

// AnalyzeAll analyzes every initiative against the full set.
func (a *SensitivityAnalyzer) AnalyzeAll(all []domain.InitiativeScore) []domain.SensitivityAnalysis {
	out := make([]domain.SensitivityAnalysis, 0, len(all))
	for _, s := range all {
		out = append(out, a.Analyze(s, all))
	}
	return out
}

// MostSensitiveTo lists initiatives by how strongly they respond to
// criterionID, largest |scoreChange| first. Initiatives without the
// criterion are kept with a zero score change.
func MostSensitiveTo(analyses []domain.SensitivityAnalysis, criterionID string) []domain.CriterionExposure {
	out := make([]domain.CriterionExposure, 0, len(analyses))
	for _, an := range analyses {
		exp := domain.CriterionExposure{InitiativeID: an.InitiativeID, CriterionID: criterionID}
		for _, c := range an.Criteria {
			if c.CriterionID == criterionID {
				exp.ScoreChange = c.ScoreChange
				break
			}
		}
		out = append(out, exp)
	}
	slices.SortStableFunc(out, func(x, y domain.CriterionExposure) int {
		return sign(math.Abs(y.ScoreChange) - math.Abs(x.ScoreChange))
	})
	return out
}

// CriticalDecisionPoints returns initiative/criterion pairs whose rank-change
// probability is at least threshold, most fragile first.
func CriticalDecisionPoints(analyses []domain.SensitivityAnalysis, threshold float64) []domain.CriticalPoint {
	var out []domain.CriticalPoint
	for _, an := range analyses {
		for _, c := range an.Criteria {
			if c.RankChangeProbability >= threshold {
				out = append(out, domain.CriticalPoint{
					InitiativeID:          an.InitiativeID,
					CriterionID:           c.CriterionID,
					RankChangeProbability: c.RankChangeProbability,
				})
			}
		}
	}
	slices.SortStableFunc(out, func(x, y domain.CriticalPoint) int {
		return sign(y.RankChangeProbability - x.RankChangeProbability)
	})
	return out
}

// Explain summarises the three highest-impact criteria of an analysis.
// Level and CriterionID describe the single most impactful one.
func Explain(an domain.SensitivityAnalysis) domain.SensitivityExplanation {
	var b strings.Builder
	fmt.Fprintf(&b, "Rank %d (score: %.3f)\nMost sensitive to:", an.BaseRank, an.BaseScore)

	exp := domain.SensitivityExplanation{InitiativeID: an.InitiativeID, Level: domain.SensitivityLow}
	for i, c := range an.Criteria[:min(explainTop, len(an.Criteria))] {
		level := impactLevel(c.Impact)
		if i == 0 {
			exp.Level = level
			exp.CriterionID = c.CriterionID
		}
		fmt.Fprintf(&b, "\n- %s: %s impact (%.1f%% score change per weight unit)",
			c.CriterionID, level, c.ScoreChange*100)
	}
	exp.Summary = b.String()
	return exp
}

func impactLevel(impact float64) domain.SensitivityLevel {
	switch {
	case impact > highImpact:
		return domain.SensitivityHigh
	case impact > mediumImpact:
		return domain.SensitivityMedium
	default:
		return domain.SensitivityLow
	}
}

// perturbWeights moves criterionID's weight by delta, clamped to [0,1], and
// takes the actual change proportionally out of the other weights so the
// total is preserved where possible.
func perturbWeights(weights map[string]float64, criterionID string, delta float64) map[string]float64 {
	out := domain.CloneWeights(weights)
	current := weights[criterionID]
	updated := clamp(current+delta, 0, 1)
	applied := updated - current
	out[criterionID] = updated

	var totalOther float64
	for id, w := range weights {
		if id != criterionID {
			totalOther += w
		}
	}
	if totalOther <= 0 {
		return out
	}
	for id, w := range weights {
		if id != criterionID {
			out[id] = math.Max(0, w-applied*w/totalOther)
		}
	}
	return out
}
