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

const briefJSON = `{"executiveSummary":"Summary.","rationale":"Why.","risks":"Risks.","metrics":"KPIs.","imagePrompt":"A bright dashboard."}`

func briefRequest() domain.BriefRequest {
	return domain.BriefRequest{
		Title:       "Dark mode",
		Description: "Add a dark theme",
		Scores:      map[string]float64{"Impact": 5, "Feasibility": 3},
		Criteria: []domain.WeightedCriterion{
			{Name: "Impact", Weight: 0.6},
			{Name: "Feasibility", Weight: 0.4},
		},
	}
}

func newBriefGenerator(t *testing.T, m *mockCompleter) *BriefGenerator {
	t.Helper()
	g, err := NewBriefGenerator(m, defaultRegistry())
	require.NoError(t, err)
	return g
}

func TestBriefGenerate(t *testing.T) {
	t.Run("formats_scores", func(t *testing.T) {
		m := &mockCompleter{}
		m.On("Complete", mock.Anything, mock.Anything).Return(reply("```json\n"+briefJSON+"\n```"), nil)
		g := newBriefGenerator(t, m)

		brief, err := g.Generate(context.Background(), briefRequest())
		require.NoError(t, err)
		assert.Equal(t, "Summary.", brief.ExecutiveSummary)
		assert.Equal(t, "A bright dashboard.", brief.ImagePrompt)

		sent := lastRequest(m)
		prompt := userPrompt(sent)
		assert.Contains(t, prompt, "Overall Score: 4.200/1.0")
		assert.Contains(t, prompt, "- Impact (weight: 0.60): 5.00/5.0\n- Feasibility (weight: 0.40): 3.00/5.0")
		assert.Equal(t, 0.7, *sent.Temperature)
		assert.Equal(t, 1500, sent.MaxTokens)
	})

	t.Run("missing_section_fails", func(t *testing.T) {
		m := &mockCompleter{}
		m.On("Complete", mock.Anything, mock.Anything).Return(reply(`{"executiveSummary":"x"}`), nil)
		g := newBriefGenerator(t, m)

		_, err := g.Generate(context.Background(), briefRequest())
		assert.ErrorIs(t, err, llmerrors.ErrSchemaValidation)
	})
}

func TestRegenerateSection(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, mock.Anything).Return(reply("  New risks.  "), nil)
	g := newBriefGenerator(t, m)

	current := &domain.GeneratedBrief{ExecutiveSummary: "Old summary.", Risks: "Old risks."}
	got, err := g.RegenerateSection(context.Background(), briefRequest(), domain.SectionRisks, current)
	require.NoError(t, err)
	assert.Equal(t, "New risks.", got)

	sent := lastRequest(m)
	prompt := userPrompt(sent)
	assert.Contains(t, prompt, "Title: Dark mode")
	assert.Contains(t, prompt, "executiveSummary: Old summary.")
	assert.NotContains(t, prompt, "Old risks.")
	assert.Contains(t, prompt, "Identify 3-5 key risks with mitigation strategies")
	assert.Equal(t, 500, sent.MaxTokens)

	_, err = g.RegenerateSection(context.Background(), briefRequest(), domain.BriefSection("appendix"), nil)
	assert.Error(t, err)
}

func TestGenerateImagePrompt(t *testing.T) {
	m := &mockCompleter{}
	m.On("Complete", mock.Anything, promptContains("Style: modern, professional")).Return(reply("A sleek UI.\n"), nil).Once()
	g := newBriefGenerator(t, m)

	got, err := g.GenerateImagePrompt(context.Background(), "Dark mode", "Add a dark theme", "")
	require.NoError(t, err)
	assert.Equal(t, "A sleek UI.", got)

	sent := lastRequest(m)
	assert.Equal(t, 0.8, *sent.Temperature)
	assert.Equal(t, 200, sent.MaxTokens)
	m.AssertExpectations(t)
}
