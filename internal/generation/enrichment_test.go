package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-themis/internal/domain"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
)

const enrichedJSON = `{"enhancedDescription":"More detail.","suggestedTags":["ui"],"potentialRisks":["scope"],"relatedConcepts":["themes"]}`

func newEnrichmentService(t *testing.T, m *mockCompleter) *EnrichmentService {
	t.Helper()
	s, err := NewEnrichmentService(m, defaultRegistry())
	require.NoError(t, err)
	return s
}

func TestEnrich(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.Anything).Return(reply(enrichedJSON), nil)
	s := newEnrichmentService(t, m)

	got, err := s.Enrich(context.Background(), domain.EnrichmentRequest{
		Title:        "Dark mode",
		Description:  "Add a dark theme",
		ProjectGoals: []string{"Retention", "Accessibility"},
		Criteria:     []string{"Impact"},
	})
	require.NoError(t, err)
	assert.Equal(t, "More detail.", got.EnhancedDescription)
	assert.Equal(t, []string{"scope"}, got.PotentialRisks)

	prompt := userPrompt(lastRequest(m))
	assert.Contains(t, prompt, "Goals: Retention\nAccessibility")
	assert.Equal(t, 800, lastRequest(m).MaxTokens)
}

func TestEnrichBatch(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, promptContains("Title: A")).
		Return(reply(`{"enhancedDescription":"A+","suggestedTags":[],"potentialRisks":[],"relatedConcepts":[]}`), nil)
	m.On("Complete", mock.Anything, promptContains("Title: B")).
		Return(reply(`{"enhancedDescription":"B+","suggestedTags":[],"potentialRisks":[],"relatedConcepts":[]}`), nil)
	s := newEnrichmentService(t, m)

	got, err := s.EnrichBatch(context.Background(), []domain.EnrichmentRequest{{Title: "A"}, {Title: "B"}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A+", got[0].EnhancedDescription)
	assert.Equal(t, "B+", got[1].EnhancedDescription)

	m2 := &mockCompleter{}
	m2.On("Complete", mock.Anything, mock.Anything).Return(reply("not json"), nil)
	_, err = newEnrichmentService(t, m2).EnrichBatch(context.Background(), []domain.EnrichmentRequest{{Title: "A"}})
	assert.ErrorIs(t, err, llmerrors.ErrSchemaValidation)
}

func TestGenerateTags(t *testing.T) {
	tests := []struct {
		name    string
		content string
		count   int
		want    []string
	}{
		{name: "plain_array", content: `["ui", "theme"]`, count: 7, want: []string{"ui", "theme"}},
		{name: "array_in_prose", content: "Tags:\n[\"a\", \"b\", \"c\"]\nDone.", count: 2, want: []string{"a", "b"}},
		{name: "no_array", content: "ui, theme", count: 7, want: []string{}},
		{name: "malformed_array", content: `["ui", theme]`, count: 7, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockCompleter{}
			m.On("Complete", mock.Anything, mock.Anything).Return(reply(tt.content), nil)
			s := newEnrichmentService(t, m)

			got, err := s.GenerateTags(context.Background(), "Dark mode", "Add a dark theme", tt.count)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateTagsDefaultCount(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, promptContains("Generate 7 relevant tags")).Return(reply(`[]`), nil).Once()

	_, err := newEnrichmentService(t, m).GenerateTags(context.Background(), "t", "d", 0)
	require.NoError(t, err)
	m.AssertExpectations(t)
}
