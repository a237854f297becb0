// Package embedding turns initiative text into vectors and compares them.
// It backs similarity search and duplicate detection; vectors are cached
// per (model, text) so repeated comparisons do not pay for a second call.
package embedding

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/llm/configuration"
	"github.com/ahrav/go-themis/internal/llm/transport"
)

// DefaultLimit caps FindSimilar results when the caller passes no limit.
const DefaultLimit = 10

// Embedder produces a vector for one text. *llm.Service satisfies it.
type Embedder interface {
	Embed(ctx context.Context, req *transport.Request) (domain.Embedding, error)
}

// Service generates embeddings and runs similarity queries over them.
type Service struct {
	embedder    Embedder
	cache       *lru.Cache[string, domain.Embedding]
	concurrency int

	similarityThreshold float64
	duplicateThreshold  float64

	hits   atomic.Int64
	misses atomic.Int64
	logger *slog.Logger
}

// NewService builds a Service. A zero CacheSize disables caching.
func NewService(embedder Embedder, cfg configuration.EmbeddingConfig) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	s := &Service{
		embedder:            embedder,
		concurrency:         cfg.BatchConcurrency,
		similarityThreshold: cfg.SimilarityThreshold,
		duplicateThreshold:  cfg.DuplicateThreshold,
		logger:              slog.Default().With("component", "embedding"),
	}
	if s.concurrency <= 0 {
		s.concurrency = configuration.DefaultEmbeddingConcurrency
	}
	if s.similarityThreshold == 0 {
		s.similarityThreshold = configuration.DefaultSimilarityThreshold
	}
	if s.duplicateThreshold == 0 {
		s.duplicateThreshold = configuration.DefaultDuplicateThreshold
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, domain.Embedding](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// SimilarityThreshold is the configured default for FindSimilar.
func (s *Service) SimilarityThreshold() float64 { return s.similarityThreshold }

// DuplicateThreshold is the configured default for DetectDuplicates.
func (s *Service) DuplicateThreshold() float64 { return s.duplicateThreshold }

// Generate embeds text with model, or the provider default when model is empty.
func (s *Service) Generate(ctx context.Context, text, model string) (domain.Embedding, error) {
	key := model + "\x00" + text
	if s.cache != nil {
		if emb, ok := s.cache.Get(key); ok {
			s.hits.Add(1)
			return emb, nil
		}
		s.misses.Add(1)
	}

	emb, err := s.embedder.Embed(ctx, &transport.Request{Model: model, Input: text})
	if err != nil {
		return domain.Embedding{}, fmt.Errorf("failed to generate embedding: %w", err)
	}
	if s.cache != nil {
		s.cache.Add(key, emb)
	}
	return emb, nil
}

// GenerateBatch embeds texts concurrently. The result preserves input order;
// the first failure cancels the remaining calls.
func (s *Service) GenerateBatch(ctx context.Context, texts []string, model string) ([]domain.Embedding, error) {
	out := make([]domain.Embedding, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			emb, err := s.Generate(gctx, text, model)
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			out[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// CacheStats reports cache hits and misses since construction.
func (s *Service) CacheStats() (hits, misses int64) { return s.hits.Load(), s.misses.Load() }

// unitTolerance absorbs rounding so identical vectors compare as exactly 1.
const unitTolerance = 1e-12

// CosineSimilarity compares two equal-length vectors. A zero vector has no
// direction and is reported as similarity 0.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case sim > 1-unitTolerance:
		return 1, nil
	case sim < -1+unitTolerance:
		return -1, nil
	}
	return sim, nil
}

// FindSimilar returns candidates whose similarity to query is at least
// threshold, most similar first, capped at limit.
func FindSimilar(query []float64, candidates []domain.SimilarityCandidate, threshold float64, limit int) ([]domain.SimilarityMatch, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var matches []domain.SimilarityMatch
	for _, c := range candidates {
		sim, err := CosineSimilarity(query, c.Vector)
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", c.ID, err)
		}
		if sim >= threshold {
			matches = append(matches, domain.SimilarityMatch{ID: c.ID, Similarity: sim})
		}
	}

	slices.SortStableFunc(matches, func(a, b domain.SimilarityMatch) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// FindSimilar is FindSimilar with the configured threshold.
func (s *Service) FindSimilar(query []float64, candidates []domain.SimilarityCandidate, limit int) ([]domain.SimilarityMatch, error) {
	return FindSimilar(query, candidates, s.similarityThreshold, limit)
}

// DetectDuplicates embeds any initiative without a vector, then compares
// every pair and returns those at or above threshold, most similar first.
// The input slice is not modified.
func (s *Service) DetectDuplicates(ctx context.Context, initiatives []domain.EmbeddableInitiative, threshold float64) ([]domain.DuplicatePair, error) {
	vectors := make([][]float64, len(initiatives))
	var missing []int
	for i := range initiatives {
		if len(initiatives[i].Embedding) == 0 {
			missing = append(missing, i)
			continue
		}
		vectors[i] = initiatives[i].Embedding
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, idx := range missing {
			texts[j] = initiatives[idx].Text()
		}
		embs, err := s.GenerateBatch(ctx, texts, "")
		if err != nil {
			return nil, err
		}
		for j, idx := range missing {
			vectors[idx] = embs[j].Vector
		}
		s.logger.DebugContext(ctx, "embedded initiatives for duplicate detection", "count", len(missing))
	}

	var pairs []domain.DuplicatePair
	for i := 0; i < len(initiatives); i++ {
		for j := i + 1; j < len(initiatives); j++ {
			sim, err := CosineSimilarity(vectors[i], vectors[j])
			if err != nil {
				return nil, fmt.Errorf("compare %s and %s: %w", initiatives[i].ID, initiatives[j].ID, err)
			}
			if sim >= threshold {
				pairs = append(pairs, domain.DuplicatePair{
					FirstID:    initiatives[i].ID,
					SecondID:   initiatives[j].ID,
					Similarity: sim,
				})
			}
		}
	}

	slices.SortStableFunc(pairs, func(a, b domain.DuplicatePair) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})
	return pairs, nil
}
