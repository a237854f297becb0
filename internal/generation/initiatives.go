package generation

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/llm/prompts"
)

// Initiative generation defaults.
const (
	DefaultInitiativeCount = 10
	DefaultDiversity       = 0.8
	DefaultBatchSize       = 10
	DefaultMinImpact       = 3.0
	DefaultMinConfidence   = 0.6

	batchConcurrency = 3
)

var initiativesDecoder = mustDecoder[[]domain.GeneratedInitiative]("initiatives")

// InitiativeGenerator proposes initiatives for a project intent.
type InitiativeGenerator struct {
	base
}

// NewInitiativeGenerator creates an InitiativeGenerator.
func NewInitiativeGenerator(llm Completer, registry *prompts.Registry) (*InitiativeGenerator, error) {
	b, err := newBase(llm, registry, "initiative_generator")
	if err != nil {
		return nil, err
	}
	return &InitiativeGenerator{base: b}, nil
}

// Generate asks for req.Count initiatives in one call. Diversity is used as
// the sampling temperature.
func (g *InitiativeGenerator) Generate(ctx context.Context, req domain.InitiativeRequest) ([]domain.GeneratedInitiative, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidRequest(err)
	}

	count := req.Count
	if count <= 0 {
		count = DefaultInitiativeCount
	}
	diversity := DefaultDiversity
	if req.Diversity != nil {
		diversity = *req.Diversity
	}

	content, err := g.completeTemplate(ctx, prompts.InitiativeGeneration, map[string]string{
		"count":    strconv.Itoa(count),
		"goal":     req.Intent,
		"launch":   req.Intent,
		"criteria": formatCriteria(req.Criteria),
	}, diversity, initiativeMaxTokens)
	if err != nil {
		return nil, err
	}

	result := g.Parse(content)
	if !result.IsOk() {
		return nil, decodeFailed(ctx, g.logger, "initiative generation", result)
	}
	initiatives, _ := result.Value()
	return initiatives, nil
}

// Parse decodes a raw initiative generation reply.
func (g *InitiativeGenerator) Parse(content string) Result[[]domain.GeneratedInitiative] {
	return initiativesDecoder.Decode(content)
}

// GenerateBatch splits a large count into sub-requests of at most
// batchSize and concatenates their results in batch order.
func (g *InitiativeGenerator) GenerateBatch(ctx context.Context, req domain.InitiativeRequest, batchSize int) ([]domain.GeneratedInitiative, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	total := req.Count
	if total <= 0 {
		total = DefaultInitiativeCount
	}

	batches := (total + batchSize - 1) / batchSize
	results := make([][]domain.GeneratedInitiative, batches)

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(batchConcurrency)
	for i := range batches {
		sub := req
		sub.Count = min(batchSize, total-i*batchSize)
		grp.Go(func() error {
			out, err := g.Generate(gctx, sub)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}

	all := make([]domain.GeneratedInitiative, 0, total)
	for _, r := range results {
		all = append(all, r...)
	}
	g.logger.DebugContext(ctx, "batch generation complete", "batches", batches, "initiatives", len(all))
	return all, nil
}

// FilterByQuality keeps initiatives meeting both minimums.
func FilterByQuality(initiatives []domain.GeneratedInitiative, minImpact, minConfidence float64) []domain.GeneratedInitiative {
	out := make([]domain.GeneratedInitiative, 0, len(initiatives))
	for _, in := range initiatives {
		if in.EstimatedImpact >= minImpact && in.Confidence >= minConfidence {
			out = append(out, in)
		}
	}
	return out
}

// Rank orders initiatives by impact × confidence, highest first, without
// modifying the input.
func Rank(initiatives []domain.GeneratedInitiative) []domain.GeneratedInitiative {
	out := slices.Clone(initiatives)
	slices.SortStableFunc(out, func(a, b domain.GeneratedInitiative) int {
		return cmp.Compare(b.Priority(), a.Priority())
	})
	return out
}

func formatCriteria(criteria []domain.CriterionBrief) string {
	lines := make([]string, len(criteria))
	for i, c := range criteria {
		lines[i] = fmt.Sprintf("- %s: %s", c.Name, c.Description)
	}
	return strings.Join(lines, "\n")
}
