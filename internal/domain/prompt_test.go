package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptTemplate(t *testing.T) {
	p := PromptTemplate{ID: "brief_generation", Version: "1.0.0", Template: "Title: {{title}}", SystemPrompt: "Be concise."}
	require.NoError(t, p.Validate())
	assert.Equal(t, "brief_generation@1.0.0", p.Key())

	fp := p.Fingerprint()
	assert.Len(t, fp, 64)
	p.Template = "Title: {{title}}!"
	assert.NotEqual(t, fp, p.Fingerprint(), "body change alters fingerprint")

	err := (&PromptTemplate{ID: "x"}).Validate()
	require.ErrorIs(t, err, ErrInvalidPromptTemplate)
}

func TestRenderedPrompt(t *testing.T) {
	tmpl := &PromptTemplate{ID: "t", Version: "1", SystemPrompt: "sys"}
	vars := map[string]string{"x": "v"}
	r := NewRenderedPrompt(tmpl, "hello v", vars)

	vars["x"] = "mutated"
	assert.Equal(t, "v", r.Variables["x"], "variables are copied")

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Equal(t, "hello v", msgs[1].Content)

	r.SystemPrompt = ""
	assert.Equal(t, []Message{UserMessage("hello v")}, r.Messages())
}

func TestBriefRequest_WeightedScore(t *testing.T) {
	req := BriefRequest{
		Title:  "Self-serve onboarding",
		Scores: map[string]float64{"Impact": 5, "Cost": 3},
		Criteria: []WeightedCriterion{
			{Name: "Impact", Weight: 0.6},
			{Name: "Cost", Weight: 0.4},
		},
	}
	assert.InDelta(t, 4.2, req.WeightedScore(), 1e-9)
	require.NoError(t, req.Validate())

	assert.Zero(t, (&BriefRequest{Title: "x"}).WeightedScore())
}

func TestGeneratedBrief_Section(t *testing.T) {
	b := GeneratedBrief{ExecutiveSummary: "sum", Rationale: "why", Risks: "risk", Metrics: "kpi", ImagePrompt: "img"}
	want := []string{"sum", "why", "risk", "kpi", "img"}
	for i, s := range BriefSections {
		assert.Equal(t, want[i], b.Section(s), s)
	}
	assert.Empty(t, b.Section("appendix"))

	g := GeneratedInitiative{EstimatedImpact: 4, Confidence: 0.5}
	assert.Equal(t, 2.0, g.Priority())
}
