package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/llm/prompts"
)

// DefaultTagCount is used by GenerateTags when count is not positive.
const DefaultTagCount = 7

const tagsSystemPrompt = "You are an expert at categorizing and tagging initiatives. Generate relevant, specific tags."

var (
	enrichmentDecoder = mustDecoder[domain.EnrichedInitiative]("enrichment")

	// jsonArray spans the first '[' to the last ']'.
	jsonArray = regexp.MustCompile(`\[[\s\S]*\]`)
)

// EnrichmentService adds context, tags, risks and related concepts to
// initiatives.
type EnrichmentService struct {
	base
}

// NewEnrichmentService creates an EnrichmentService.
func NewEnrichmentService(llm Completer, registry *prompts.Registry) (*EnrichmentService, error) {
	b, err := newBase(llm, registry, "enrichment")
	if err != nil {
		return nil, err
	}
	return &EnrichmentService{base: b}, nil
}

// Enrich expands one initiative.
func (s *EnrichmentService) Enrich(ctx context.Context, req domain.EnrichmentRequest) (domain.EnrichedInitiative, error) {
	if err := req.Validate(); err != nil {
		return domain.EnrichedInitiative{}, invalidRequest(err)
	}

	content, err := s.completeTemplate(ctx, prompts.Enrichment, map[string]string{
		"title":       req.Title,
		"description": req.Description,
		"goals":       strings.Join(req.ProjectGoals, "\n"),
		"criteria":    strings.Join(req.Criteria, "\n"),
	}, enrichTemperature, enrichMaxTokens)
	if err != nil {
		return domain.EnrichedInitiative{}, err
	}

	result := enrichmentDecoder.Decode(content)
	if !result.IsOk() {
		return domain.EnrichedInitiative{}, decodeFailed(ctx, s.logger, "enrichment", result)
	}
	enriched, _ := result.Value()
	return enriched, nil
}

// EnrichBatch enriches every request concurrently, preserving order. Any
// failure fails the batch.
func (s *EnrichmentService) EnrichBatch(ctx context.Context, reqs []domain.EnrichmentRequest) ([]domain.EnrichedInitiative, error) {
	out := make([]domain.EnrichedInitiative, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			enriched, err := s.Enrich(gctx, req)
			if err != nil {
				return fmt.Errorf("initiative %d: %w", i, err)
			}
			out[i] = enriched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateTags asks for up to count tags. Tags are advisory, so an
// unparseable reply yields an empty list rather than an error; only the
// LLM call itself can fail.
func (s *EnrichmentService) GenerateTags(ctx context.Context, title, description string, count int) ([]string, error) {
	if count <= 0 {
		count = DefaultTagCount
	}

	prompt := fmt.Sprintf(`Generate %d relevant tags for this initiative:
Title: %s
Description: %s

Return only a JSON array of tags: ["tag1", "tag2", ...]`, count, title, description)

	content, err := s.complete(ctx, []domain.Message{
		domain.SystemMessage(tagsSystemPrompt),
		domain.UserMessage(prompt),
	}, tagsTemperature, tagsMaxTokens)
	if err != nil {
		return nil, err
	}

	match := jsonArray.FindString(content)
	if match == "" {
		s.logger.WarnContext(ctx, "no JSON array in tag response")
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(match), &tags); err != nil {
		s.logger.WarnContext(ctx, "failed to parse tags", "error", err)
		return []string{}, nil
	}
	if len(tags) > count {
		tags = tags[:count]
	}
	return tags, nil
}
