package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-themis/internal/domain"
)

// closeRace has "a" and "b" within a few hundredths, so small weight moves
// swap them, while "c" trails far behind.
func closeRace() []domain.InitiativeScore {
	return []domain.InitiativeScore{
		scored("a", nil, cs("impact", 0.9, 0.5), cs("cost", 0.3, 0.5)),
		scored("b", nil, cs("impact", 0.4, 0.5), cs("cost", 0.75, 0.5)),
		scored("c", nil, cs("impact", 0.1, 0.5), cs("cost", 0.1, 0.5)),
	}
}

func TestSensitivityAnalyzer_Analyze(t *testing.T) {
	all := closeRace()
	a := NewSensitivityAnalyzer(nil)

	got := a.Analyze(all[0], all)

	assert.Equal(t, "a", got.InitiativeID)
	assert.Equal(t, 1, got.BaseRank)
	assert.InDelta(t, 0.6, got.BaseScore, 1e-9)
	require.Len(t, got.Criteria, 2)

	impact := got.Criteria[0]
	assert.Equal(t, "impact", impact.CriterionID, "highest impact first")
	assert.InDelta(t, 0.9, impact.ScoreChange, 1e-9)
	assert.InDelta(t, 0.5, impact.CurrentWeight, 1e-9)
	assert.InDelta(t, 0.45, impact.Impact, 1e-9)
	// Lowering impact weight by 0.05 or 0.1 drops "a" below "b".
	assert.InDelta(t, 0.5, impact.RankChangeProbability, 1e-9)

	cost := got.Criteria[1]
	assert.Equal(t, "cost", cost.CriterionID)
	assert.InDelta(t, 0.5, cost.RankChangeProbability, 1e-9)
}

func TestSensitivityAnalyzer_StableLeaderNeverMoves(t *testing.T) {
	all := []domain.InitiativeScore{
		scored("leader", nil, cs("impact", 1.0, 0.5), cs("cost", 1.0, 0.5)),
		scored("laggard", nil, cs("impact", 0.0, 0.5), cs("cost", 0.0, 0.5)),
	}

	got := NewSensitivityAnalyzer(NewRanker()).Analyze(all[0], all)
	for _, c := range got.Criteria {
		assert.Zero(t, c.RankChangeProbability, c.CriterionID)
		assert.GreaterOrEqual(t, c.RankChangeProbability, 0.0)
		assert.LessOrEqual(t, c.RankChangeProbability, 1.0)
	}
}

func TestSensitivityAnalyzer_AnalyzeAllAndQueries(t *testing.T) {
	analyses := NewSensitivityAnalyzer(nil).AnalyzeAll(closeRace())
	require.Len(t, analyses, 3)
	assert.Equal(t, 2, analyses[1].BaseRank)
	assert.Equal(t, 3, analyses[2].BaseRank)

	exposure := MostSensitiveTo(analyses, "cost")
	require.Len(t, exposure, 3)
	assert.Equal(t, "b", exposure[0].InitiativeID)
	assert.InDelta(t, 0.75, exposure[0].ScoreChange, 1e-9)
	for _, e := range MostSensitiveTo(analyses, "missing") {
		assert.Zero(t, e.ScoreChange)
	}

	critical := CriticalDecisionPoints(analyses, DefaultCriticalThreshold)
	require.NotEmpty(t, critical)
	for i, cp := range critical {
		assert.GreaterOrEqual(t, cp.RankChangeProbability, DefaultCriticalThreshold)
		assert.NotEqual(t, "c", cp.InitiativeID, "trailing initiative is not fragile")
		if i > 0 {
			assert.LessOrEqual(t, cp.RankChangeProbability, critical[i-1].RankChangeProbability)
		}
	}
	assert.Empty(t, CriticalDecisionPoints(analyses, 1.01))
}

func TestMostSensitiveTo_KeepsInitiativesWithoutCriterion(t *testing.T) {
	analyses := []domain.SensitivityAnalysis{
		{InitiativeID: "a", Criteria: []domain.CriterionSensitivity{{CriterionID: "impact", ScoreChange: 0.2}}},
		{InitiativeID: "b", Criteria: []domain.CriterionSensitivity{{CriterionID: "cost", ScoreChange: 0.9}}},
		{InitiativeID: "c", Criteria: []domain.CriterionSensitivity{{CriterionID: "impact", ScoreChange: -0.6}}},
	}

	got := MostSensitiveTo(analyses, "impact")
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].InitiativeID)
	assert.Equal(t, "a", got[1].InitiativeID)
	assert.Equal(t, "b", got[2].InitiativeID)
	assert.Zero(t, got[2].ScoreChange)
	assert.Equal(t, "impact", got[2].CriterionID)

	assert.Empty(t, MostSensitiveTo(nil, "impact"))
}

func TestExplain(t *testing.T) {
	tests := []struct {
		name      string
		analysis  domain.SensitivityAnalysis
		wantLevel domain.SensitivityLevel
		wantText  string
	}{
		{
			name: "high",
			analysis: domain.SensitivityAnalysis{
				InitiativeID: "a", BaseRank: 1, BaseScore: 0.6,
				Criteria: []domain.CriterionSensitivity{
					{CriterionID: "impact", ScoreChange: 0.9, Impact: 0.45},
					{CriterionID: "cost", ScoreChange: 0.3, Impact: 0.09},
					{CriterionID: "reach", ScoreChange: 0.2, Impact: 0.02},
					{CriterionID: "risk", ScoreChange: 0.1, Impact: 0.01},
				},
			},
			wantLevel: domain.SensitivityHigh,
			wantText: "Rank 1 (score: 0.600)\nMost sensitive to:" +
				"\n- impact: high impact (90.0% score change per weight unit)" +
				"\n- cost: medium impact (30.0% score change per weight unit)" +
				"\n- reach: low impact (20.0% score change per weight unit)",
		},
		{
			name:      "no_criteria",
			analysis:  domain.SensitivityAnalysis{InitiativeID: "z", BaseRank: 4, BaseScore: 0.1234},
			wantLevel: domain.SensitivityLow,
			wantText:  "Rank 4 (score: 0.123)\nMost sensitive to:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Explain(tt.analysis)
			assert.Equal(t, tt.analysis.InitiativeID, got.InitiativeID)
			assert.Equal(t, tt.wantLevel, got.Level)
			assert.Equal(t, tt.wantText, got.Summary)
		})
	}
}

func TestPerturbWeights(t *testing.T) {
	weights := map[string]float64{"impact": 0.5, "cost": 0.3, "reach": 0.2}

	tests := []struct {
		name      string
		criterion string
		delta     float64
		want      map[string]float64
	}{
		{"increase", "impact", 0.1, map[string]float64{"impact": 0.6, "cost": 0.24, "reach": 0.16}},
		{"decrease", "impact", -0.1, map[string]float64{"impact": 0.4, "cost": 0.36, "reach": 0.24}},
		{"clamped_at_zero", "reach", -0.3, map[string]float64{"impact": 0.625, "cost": 0.375, "reach": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := perturbWeights(weights, tt.criterion, tt.delta)
			var total float64
			for id, w := range tt.want {
				assert.InDelta(t, w, got[id], 1e-9, id)
				total += got[id]
			}
			assert.InDelta(t, 1.0, total, 1e-9)
		})
	}
	assert.InDelta(t, 0.5, weights["impact"], 1e-9, "input untouched")

	solo := perturbWeights(map[string]float64{"impact": 0.95}, "impact", 0.1)
	assert.InDelta(t, 1.0, solo["impact"], 1e-9)
	assert.False(t, math.IsNaN(solo["impact"]))
}
