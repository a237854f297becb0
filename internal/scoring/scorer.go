// Package scoring turns per-criterion values into weighted initiative scores,
// evaluates requirement gates, ranks initiatives and measures how sensitive a
// ranking is to its criterion weights.
//
// Everything in this package is pure computation: no I/O, no LLM calls and
// no shared mutable state, so values are safe to share across goroutines.
package scoring

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/ahrav/go-themis/internal/domain"
)

const (
	// WeightTolerance is how far a weight sum may drift from 1.0 and still be valid.
	WeightTolerance = 0.001

	// MaxRiskPenalty caps how much of a score the risk index can remove.
	MaxRiskPenalty = 0.5

	exponentialPower = 0.8
	trimFraction     = 0.1
)

// ErrZeroWeightSum indicates a weight set cannot be rescaled because it sums to zero.
var ErrZeroWeightSum = errors.New("weights sum to zero")

// Config selects the normalization and aggregation strategies of a Scorer.
type Config struct {
	Normalization  domain.NormalizationMethod `json:"normalization" yaml:"normalization" mapstructure:"normalization"`
	Aggregation    domain.AggregationMethod   `json:"aggregation" yaml:"aggregation" mapstructure:"aggregation"`
	RiskAdjustment bool                       `json:"risk_adjustment" yaml:"risk_adjustment" mapstructure:"risk_adjustment"`
}

// DefaultConfig returns linear normalization with median aggregation and no
// risk adjustment.
func DefaultConfig() Config {
	return Config{
		Normalization: domain.NormalizeLinear,
		Aggregation:   domain.AggregationMedian,
	}
}

// Scorer computes weighted initiative scores.
type Scorer struct {
	cfg    Config
	logger *slog.Logger
}

// NewScorer creates a scorer. Empty config fields take their defaults.
func NewScorer(cfg Config) (*Scorer, error) {
	def := DefaultConfig()
	if cfg.Normalization == "" {
		cfg.Normalization = def.Normalization
	}
	if cfg.Aggregation == "" {
		cfg.Aggregation = def.Aggregation
	}

	switch cfg.Normalization {
	case domain.NormalizeLinear, domain.NormalizeExponential:
	default:
		return nil, fmt.Errorf("unsupported normalization method %q", cfg.Normalization)
	}
	switch cfg.Aggregation {
	case domain.AggregationMean, domain.AggregationMedian, domain.AggregationTrimmedMean:
	default:
		return nil, fmt.Errorf("unsupported aggregation method %q", cfg.Aggregation)
	}

	return &Scorer{
		cfg:    cfg,
		logger: slog.Default().With("component", "scorer"),
	}, nil
}

// Config returns the effective configuration.
func (s *Scorer) Config() Config { return s.cfg }

// CalculateScore normalizes every input onto [0,1], weights it and sums the
// contributions. When risk adjustment is enabled and riskIndex is non-nil the
// overall score is also reported discounted by min(riskIndex, 0.5).
func (s *Scorer) CalculateScore(
	initiativeID string,
	inputs []domain.ScoreInput,
	riskIndex *float64,
) (domain.InitiativeScore, error) {
	if len(inputs) == 0 {
		return domain.InitiativeScore{}, domain.ErrEmptyScores
	}

	scores := make([]domain.CriterionScore, 0, len(inputs))
	var overall float64
	for i := range inputs {
		in := &inputs[i]
		if err := in.Validate(); err != nil {
			return domain.InitiativeScore{}, fmt.Errorf("%w: %s: %w", domain.ErrInvalidCriterion, in.CriterionID, err)
		}
		lo, hi := in.Scale()
		norm, err := Normalize(in.Value, lo, hi, s.cfg.Normalization)
		if err != nil {
			return domain.InitiativeScore{}, fmt.Errorf("criterion %s: %w", in.CriterionID, err)
		}

		contribution := norm * in.Weight
		overall += contribution
		scores = append(scores, domain.CriterionScore{
			CriterionID:     in.CriterionID,
			RawValue:        in.Value,
			NormalizedValue: norm,
			Weight:          in.Weight,
			Contribution:    contribution,
			Confidence:      in.Confidence,
		})
	}

	result := domain.InitiativeScore{
		InitiativeID:    initiativeID,
		OverallScore:    overall,
		Confidence:      weightedConfidence(inputs),
		CriterionScores: scores,
	}
	if s.cfg.RiskAdjustment && riskIndex != nil {
		adjusted := RiskAdjust(overall, *riskIndex)
		result.RiskAdjustedScore = &adjusted
	}

	s.logger.Debug("initiative scored",
		"initiative_id", initiativeID,
		"criteria", len(scores),
		"overall_score", overall,
	)
	return result, nil
}

// AggregateScores collapses several reviewers' values per criterion with the
// configured aggregation method, then scores the result. Criteria keep the
// order in which reviewers first mention them. Confidence is aggregated with
// the same method over the reviews that carry one.
func (s *Scorer) AggregateScores(
	initiativeID string,
	reviews []domain.ReviewerScore,
	criteria []domain.Criterion,
	riskIndex *float64,
) (domain.InitiativeScore, error) {
	if len(reviews) == 0 {
		return domain.InitiativeScore{}, domain.ErrEmptyScores
	}

	byID := make(map[string]domain.Criterion, len(criteria))
	for _, c := range criteria {
		byID[c.ID] = c
	}

	type bucket struct {
		values      []float64
		confidences []float64
	}
	var order []string
	buckets := make(map[string]*bucket)
	for _, r := range reviews {
		if _, ok := byID[r.CriterionID]; !ok {
			return domain.InitiativeScore{}, fmt.Errorf("%w: %s", domain.ErrUnknownCriterion, r.CriterionID)
		}
		b, ok := buckets[r.CriterionID]
		if !ok {
			b = &bucket{}
			buckets[r.CriterionID] = b
			order = append(order, r.CriterionID)
		}
		b.values = append(b.values, r.Value)
		if r.Confidence != nil {
			b.confidences = append(b.confidences, *r.Confidence)
		}
	}

	inputs := make([]domain.ScoreInput, 0, len(order))
	for _, id := range order {
		b := buckets[id]
		in := domain.NewScoreInput(byID[id], Aggregate(b.values, s.cfg.Aggregation))
		if len(b.confidences) > 0 {
			conf := Aggregate(b.confidences, s.cfg.Aggregation)
			in.Confidence = &conf
		}
		inputs = append(inputs, in)
	}
	return s.CalculateScore(initiativeID, inputs, riskIndex)
}

// Normalize maps value from [lo,hi] onto [0,1], clamping out-of-range values.
// Exponential normalization raises the linear result to the power 0.8.
func Normalize(value, lo, hi float64, method domain.NormalizationMethod) (float64, error) {
	if hi <= lo {
		return 0, fmt.Errorf("%w: scale max %g must exceed min %g", domain.ErrInvalidCriterion, hi, lo)
	}
	linear := clamp((value-lo)/(hi-lo), 0, 1)

	switch method {
	case domain.NormalizeLinear, "":
		return linear, nil
	case domain.NormalizeExponential:
		return math.Pow(linear, exponentialPower), nil
	default:
		return 0, fmt.Errorf("unsupported normalization method %q", method)
	}
}

// RiskAdjust discounts score by riskIndex, capped at MaxRiskPenalty.
// Negative risk never raises a score.
func RiskAdjust(score, riskIndex float64) float64 {
	return score * (1 - clamp(riskIndex, 0, MaxRiskPenalty))
}

// Aggregate reduces values with method. An empty slice yields 0 and a single
// value is returned unchanged.
func Aggregate(values []float64, method domain.AggregationMethod) float64 {
	switch len(values) {
	case 0:
		return 0
	case 1:
		return values[0]
	}

	switch method {
	case domain.AggregationMedian:
		return median(values)
	case domain.AggregationTrimmedMean:
		return trimmedMean(values, trimFraction)
	default:
		return mean(values)
	}
}

// ValidateWeights reports whether weights sum to 1 within WeightTolerance.
func ValidateWeights(weights map[string]float64) bool {
	return math.Abs(sumWeights(weights)-1) <= WeightTolerance
}

// NormalizeWeights rescales weights so they sum to 1. The input is not modified.
func NormalizeWeights(weights map[string]float64) (map[string]float64, error) {
	total := sumWeights(weights)
	if total == 0 {
		return nil, ErrZeroWeightSum
	}
	out := make(map[string]float64, len(weights))
	for id, w := range weights {
		out[id] = w / total
	}
	return out, nil
}

func sumWeights(weights map[string]float64) float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	return total
}

// weightedConfidence averages the confidence of inputs that carry one,
// weighting each by its criterion weight. Zero total weight falls back to a
// plain mean.
func weightedConfidence(inputs []domain.ScoreInput) *float64 {
	var sum, weights float64
	var plain []float64
	for _, in := range inputs {
		if in.Confidence == nil {
			continue
		}
		sum += *in.Confidence * in.Weight
		weights += in.Weight
		plain = append(plain, *in.Confidence)
	}
	if len(plain) == 0 {
		return nil
	}

	conf := mean(plain)
	if weights > 0 {
		conf = sum / weights
	}
	return &conf
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func trimmedMean(values []float64, fraction float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	trim := int(math.Floor(float64(len(sorted)) * fraction))
	return mean(sorted[trim : len(sorted)-trim])
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
