package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-themis/internal/domain"
)

func ptr(f float64) *float64 { return &f }

func impactFeasibility() []domain.Criterion {
	return []domain.Criterion{
		{ID: "impact", Name: "Impact", Weight: 0.6},
		{ID: "feasibility", Name: "Feasibility", Weight: 0.4},
	}
}

func newTestScorer(t *testing.T, cfg Config) *Scorer {
	t.Helper()
	s, err := NewScorer(cfg)
	require.NoError(t, err)
	return s
}

func TestNewScorer(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty_uses_defaults", Config{}, false},
		{"exponential_trimmed", Config{Normalization: domain.NormalizeExponential, Aggregation: domain.AggregationTrimmedMean}, false},
		{"unknown_normalization", Config{Normalization: "log"}, true},
		{"unknown_aggregation", Config{Aggregation: "mode"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScorer(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, s.Config().Normalization)
			assert.NotEmpty(t, s.Config().Aggregation)
		})
	}
}

func TestCalculateScore_WeightedLinear(t *testing.T) {
	crit := impactFeasibility()
	s := newTestScorer(t, DefaultConfig())

	got, err := s.CalculateScore("init-1", []domain.ScoreInput{
		domain.NewScoreInput(crit[0], 5),
		domain.NewScoreInput(crit[1], 3),
	}, nil)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, got.OverallScore, 1e-9)
	assert.Nil(t, got.RiskAdjustedScore)
	assert.Nil(t, got.Confidence)

	impact, ok := got.Criterion("impact")
	require.True(t, ok)
	assert.InDelta(t, 1.0, impact.NormalizedValue, 1e-9)
	assert.InDelta(t, 0.6, impact.Contribution, 1e-9)
	assert.InDelta(t, 0.2, got.Contribution("feasibility"), 1e-9)
}

func TestCalculateScore_Exponential(t *testing.T) {
	crit := impactFeasibility()
	s := newTestScorer(t, Config{Normalization: domain.NormalizeExponential})

	got, err := s.CalculateScore("init-1", []domain.ScoreInput{
		domain.NewScoreInput(crit[0], 5),
		domain.NewScoreInput(crit[1], 3),
	}, nil)
	require.NoError(t, err)

	want := 0.6*1.0 + 0.4*math.Pow(0.5, 0.8)
	assert.InDelta(t, want, got.OverallScore, 1e-9)
}

func TestCalculateScore_RiskAdjustment(t *testing.T) {
	crit := impactFeasibility()
	inputs := []domain.ScoreInput{domain.NewScoreInput(crit[0], 5), domain.NewScoreInput(crit[1], 3)}

	tests := []struct {
		name    string
		enabled bool
		risk    *float64
		wantAdj *float64
	}{
		{"disabled_ignores_risk", false, ptr(0.2), nil},
		{"enabled_without_risk", true, nil, nil},
		{"moderate_risk", true, ptr(0.2), ptr(0.64)},
		{"risk_capped_at_half", true, ptr(0.9), ptr(0.4)},
		{"negative_risk_no_bonus", true, ptr(-0.5), ptr(0.8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScorer(t, Config{RiskAdjustment: tt.enabled})
			got, err := s.CalculateScore("init-1", inputs, tt.risk)
			require.NoError(t, err)
			assert.InDelta(t, 0.8, got.OverallScore, 1e-9)
			if tt.wantAdj == nil {
				assert.Nil(t, got.RiskAdjustedScore)
				return
			}
			require.NotNil(t, got.RiskAdjustedScore)
			assert.InDelta(t, *tt.wantAdj, *got.RiskAdjustedScore, 1e-9)
		})
	}
}

func TestCalculateScore_Confidence(t *testing.T) {
	crit := impactFeasibility()
	s := newTestScorer(t, DefaultConfig())

	a := domain.NewScoreInput(crit[0], 4)
	a.Confidence = ptr(0.9)
	b := domain.NewScoreInput(crit[1], 4)
	b.Confidence = ptr(0.4)

	got, err := s.CalculateScore("init-1", []domain.ScoreInput{a, b}, nil)
	require.NoError(t, err)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, 0.6*0.9+0.4*0.4, *got.Confidence, 1e-9)

	b.Confidence = nil
	got, err = s.CalculateScore("init-1", []domain.ScoreInput{a, b}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, got.ConfidenceOr(0), 1e-9, "only inputs with confidence count")
}

func TestCalculateScore_Errors(t *testing.T) {
	s := newTestScorer(t, DefaultConfig())

	_, err := s.CalculateScore("init-1", nil, nil)
	require.ErrorIs(t, err, domain.ErrEmptyScores)

	_, err = s.CalculateScore("init-1", []domain.ScoreInput{{CriterionID: "x", Value: 3, Weight: 1.5}}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidCriterion)

	_, err = s.CalculateScore("init-1", []domain.ScoreInput{{CriterionID: "x", Value: 3, Weight: 1, ScaleMin: 5, ScaleMax: 5}}, nil)
	require.ErrorIs(t, err, domain.ErrInvalidCriterion)
}

func TestCalculateScore_MonotonicInRawValue(t *testing.T) {
	crit := impactFeasibility()
	for _, method := range []domain.NormalizationMethod{domain.NormalizeLinear, domain.NormalizeExponential} {
		t.Run(string(method), func(t *testing.T) {
			s := newTestScorer(t, Config{Normalization: method})
			prev := -1.0
			for v := 0.0; v <= 6.0; v += 0.25 {
				got, err := s.CalculateScore("init-1", []domain.ScoreInput{
					domain.NewScoreInput(crit[0], v),
					domain.NewScoreInput(crit[1], 3),
				}, nil)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, got.OverallScore, prev, "value %v", v)
				prev = got.OverallScore
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		lo, hi float64
		method domain.NormalizationMethod
		want   float64
	}{
		{"linear_min", 1, 1, 5, domain.NormalizeLinear, 0},
		{"linear_max", 5, 1, 5, domain.NormalizeLinear, 1},
		{"linear_mid", 3, 1, 5, domain.NormalizeLinear, 0.5},
		{"linear_custom_scale", 50, 0, 100, domain.NormalizeLinear, 0.5},
		{"clamped_below", -2, 1, 5, domain.NormalizeLinear, 0},
		{"clamped_above", 9, 1, 5, domain.NormalizeLinear, 1},
		{"exponential_mid", 3, 1, 5, domain.NormalizeExponential, math.Pow(0.5, 0.8)},
		{"exponential_max", 5, 1, 5, domain.NormalizeExponential, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.value, tt.lo, tt.hi, tt.method)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := Normalize(3, 1, 5, "cubic")
	require.Error(t, err)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		method domain.AggregationMethod
		want   float64
	}{
		{"empty", nil, domain.AggregationMean, 0},
		{"single", []float64{4}, domain.AggregationMedian, 4},
		{"mean", []float64{1, 2, 3, 4}, domain.AggregationMean, 2.5},
		{"median_odd", []float64{5, 1, 3}, domain.AggregationMedian, 3},
		{"median_even", []float64{4, 1, 3, 2}, domain.AggregationMedian, 2.5},
		{"trimmed_small_keeps_all", []float64{1, 2, 3, 100}, domain.AggregationTrimmedMean, 26.5},
		{"trimmed_drops_extremes", []float64{100, 2, 2, 2, 2, 2, 2, 2, 2, -50}, domain.AggregationTrimmedMean, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Aggregate(tt.values, tt.method), 1e-9)
		})
	}
}

func TestAggregateScores(t *testing.T) {
	crit := impactFeasibility()
	s := newTestScorer(t, Config{Aggregation: domain.AggregationMedian})

	reviews := []domain.ReviewerScore{
		{ReviewerID: "r1", CriterionID: "feasibility", Value: 2, Confidence: ptr(0.5)},
		{ReviewerID: "r1", CriterionID: "impact", Value: 5},
		{ReviewerID: "r2", CriterionID: "impact", Value: 4},
		{ReviewerID: "r2", CriterionID: "feasibility", Value: 4, Confidence: ptr(0.7)},
		{ReviewerID: "r3", CriterionID: "impact", Value: 5},
	}

	got, err := s.AggregateScores("init-1", reviews, crit, nil)
	require.NoError(t, err)

	require.Len(t, got.CriterionScores, 2)
	assert.Equal(t, "feasibility", got.CriterionScores[0].CriterionID, "first-mentioned order")
	assert.InDelta(t, 3, got.CriterionScores[0].RawValue, 1e-9)
	require.NotNil(t, got.CriterionScores[0].Confidence)
	assert.InDelta(t, 0.6, *got.CriterionScores[0].Confidence, 1e-9)

	impact, _ := got.Criterion("impact")
	assert.InDelta(t, 5, impact.RawValue, 1e-9)
	assert.Nil(t, impact.Confidence)
	assert.InDelta(t, 0.8, got.OverallScore, 1e-9)
}

func TestAggregateScores_Errors(t *testing.T) {
	s := newTestScorer(t, DefaultConfig())

	_, err := s.AggregateScores("init-1", nil, impactFeasibility(), nil)
	require.ErrorIs(t, err, domain.ErrEmptyScores)

	_, err = s.AggregateScores("init-1", []domain.ReviewerScore{{CriterionID: "cost", Value: 3}}, impactFeasibility(), nil)
	require.ErrorIs(t, err, domain.ErrUnknownCriterion)
}

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name    string
		weights map[string]float64
		want    bool
	}{
		{"exact", map[string]float64{"a": 0.6, "b": 0.4}, true},
		{"within_tolerance_high", map[string]float64{"a": 0.6, "b": 0.4005}, true},
		{"within_tolerance_low", map[string]float64{"a": 0.6, "b": 0.3995}, true},
		{"outside_tolerance", map[string]float64{"a": 0.6, "b": 0.41}, false},
		{"too_small", map[string]float64{"a": 0.2}, false},
		{"empty", map[string]float64{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateWeights(tt.weights))
		})
	}
}

func TestNormalizeWeights(t *testing.T) {
	in := map[string]float64{"a": 2, "b": 1, "c": 1}
	got, err := NormalizeWeights(in)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, got["a"], 1e-9)
	assert.InDelta(t, 0.25, got["b"], 1e-9)
	assert.True(t, ValidateWeights(got))
	assert.InDelta(t, 2, in["a"], 1e-9, "input untouched")

	_, err = NormalizeWeights(map[string]float64{"a": 0})
	require.ErrorIs(t, err, ErrZeroWeightSum)
}
