package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-themis/internal/domain"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
	"github.com/ahrav/go-themis/internal/llm/transport"
)

func initiativeJSON(n int) string {
	items := make([]string, n)
	for i := range n {
		items[i] = fmt.Sprintf(`{"title":"Idea %d","description":"d","rationale":"r","estimatedImpact":4,"tags":["t"],"confidence":0.7}`, i)
	}
	return "```json\n[" + strings.Join(items, ",") + "]\n```"
}

func newInitiativeGenerator(t *testing.T, m *mockCompleter) *InitiativeGenerator {
	t.Helper()
	g, err := NewInitiativeGenerator(m, defaultRegistry())
	require.NoError(t, err)
	return g
}

func TestNewGeneratorsRequireDependencies(t *testing.T) {
	_, err := NewInitiativeGenerator(nil, defaultRegistry())
	assert.Error(t, err)
	_, err = NewBriefGenerator(&mockCompleter{}, nil)
	assert.Error(t, err)
}

func TestInitiativeGenerate(t *testing.T) {
	req := domain.InitiativeRequest{
		Intent: "Grow weekly active users",
		Criteria: []domain.CriterionBrief{
			{Name: "Impact", Description: "Effect on users"},
			{Name: "Effort", Description: "Engineering cost"},
		},
		Count: 2,
	}

	t.Run("renders_prompt_and_decodes", func(t *testing.T) {
		m := &mockCompleter{}
		m.On("Complete", mock.Anything, mock.Anything).Return(reply(initiativeJSON(2)), nil).Once()
		g := newInitiativeGenerator(t, m)

		got, err := g.Generate(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, got, 2)

		sent := lastRequest(m)
		prompt := userPrompt(sent)
		assert.Contains(t, prompt, "Generate 2 initiative ideas")
		assert.Contains(t, prompt, "Project Goal: Grow weekly active users")
		assert.Contains(t, prompt, "- Impact: Effect on users\n- Effort: Engineering cost")
		assert.Equal(t, domain.RoleSystem, sent.Messages[0].Role)
		require.NotNil(t, sent.Temperature)
		assert.Equal(t, DefaultDiversity, *sent.Temperature)
		assert.Equal(t, 2000, sent.MaxTokens)
	})

	t.Run("diversity_sets_temperature", func(t *testing.T) {
		m := &mockCompleter{}
		m.On("Complete", mock.Anything, mock.Anything).Return(reply(initiativeJSON(1)), nil).Once()
		g := newInitiativeGenerator(t, m)

		r := req
		r.Diversity = transport.Float(0.3)
		_, err := g.Generate(context.Background(), r)
		require.NoError(t, err)
		assert.Equal(t, 0.3, *lastRequest(m).Temperature)
	})

	t.Run("default_count", func(t *testing.T) {
		m := &mockCompleter{}
		m.On("Complete", mock.Anything, promptContains("Generate 10 initiative ideas")).Return(reply(initiativeJSON(1)), nil).Once()
		g := newInitiativeGenerator(t, m)

		r := req
		r.Count = 0
		_, err := g.Generate(context.Background(), r)
		require.NoError(t, err)
		m.AssertExpectations(t)
	})

	t.Run("schema_violation_is_hard_failure", func(t *testing.T) {
		m := &mockCompleter{}
		m.On("Complete", mock.Anything, mock.Anything).
			Return(reply(`[{"title":"A","description":"d","rationale":"r","estimatedImpact":9,"tags":[],"confidence":0.5}]`), nil)
		g := newInitiativeGenerator(t, m)

		got, err := g.Generate(context.Background(), req)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, llmerrors.ErrSchemaValidation)
	})

	t.Run("llm_error_propagates", func(t *testing.T) {
		boom := &llmerrors.ProviderError{Provider: "fake", StatusCode: 503, Message: "down", Type: llmerrors.ErrorTypeProvider}
		m := &mockCompleter{}
		m.On("Complete", mock.Anything, mock.Anything).Return(nil, boom)
		g := newInitiativeGenerator(t, m)

		_, err := g.Generate(context.Background(), req)
		var provErr *llmerrors.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.True(t, llmerrors.Retryable(err))
	})

	t.Run("invalid_request", func(t *testing.T) {
		g := newInitiativeGenerator(t, &mockCompleter{})
		_, err := g.Generate(context.Background(), domain.InitiativeRequest{})
		var valErr *llmerrors.ValidationError
		assert.ErrorAs(t, err, &valErr)
	})
}

func TestInitiativeGenerateBatch(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, promptContains("Generate 10 initiative ideas")).Return(reply(initiativeJSON(10)), nil).Twice()
	m.On("Complete", mock.Anything, promptContains("Generate 5 initiative ideas")).Return(reply(initiativeJSON(5)), nil).Once()
	g := newInitiativeGenerator(t, m)

	got, err := g.GenerateBatch(context.Background(), domain.InitiativeRequest{Intent: "x", Count: 25}, 10)
	require.NoError(t, err)
	assert.Len(t, got, 25)
	m.AssertExpectations(t)
}

func TestInitiativeGenerateBatchFailure(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	g := newInitiativeGenerator(t, m)

	_, err := g.GenerateBatch(context.Background(), domain.InitiativeRequest{Intent: "x", Count: 4}, 2)
	assert.Error(t, err)
}

func TestFilterByQuality(t *testing.T) {
	in := []domain.GeneratedInitiative{
		{Title: "keep", EstimatedImpact: 3, Confidence: 0.6},
		{Title: "low_impact", EstimatedImpact: 2.9, Confidence: 0.9},
		{Title: "low_confidence", EstimatedImpact: 5, Confidence: 0.59},
		{Title: "strong", EstimatedImpact: 5, Confidence: 0.95},
	}

	got := FilterByQuality(in, DefaultMinImpact, DefaultMinConfidence)
	titles := make([]string, len(got))
	for i, g := range got {
		titles[i] = g.Title
	}
	assert.Equal(t, []string{"keep", "strong"}, titles)
}

func TestRank(t *testing.T) {
	in := []domain.GeneratedInitiative{
		{Title: "a", EstimatedImpact: 3, Confidence: 0.5}, // 1.5
		{Title: "b", EstimatedImpact: 5, Confidence: 0.9}, // 4.5
		{Title: "c", EstimatedImpact: 4, Confidence: 0.5}, // 2.0
		{Title: "d", EstimatedImpact: 2, Confidence: 1.0}, // 2.0
	}

	got := Rank(in)
	titles := make([]string, len(got))
	for i, g := range got {
		titles[i] = g.Title
	}
	assert.Equal(t, []string{"b", "c", "d", "a"}, titles)
	assert.Equal(t, "a", in[0].Title, "input order unchanged")
}
