package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-themis/internal/domain"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
)

func mustRegister(t *testing.T, r *Registry, tmpl domain.PromptTemplate) {
	t.Helper()
	require.NoError(t, r.Register(tmpl))
}

func TestRender(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, domain.PromptTemplate{ID: "t", Version: "1.0.0", Template: "hello {{x}}", Variables: []string{"x"}})
	mustRegister(t, r, domain.PromptTemplate{ID: "u", Version: "1.0.0", Template: "{{x}} and {{y}} and {{z}}"})

	tests := []struct {
		name        string
		id          string
		vars        map[string]string
		want        string
		wantMissing string
	}{
		{"substitutes_variable", "t", map[string]string{"x": "v"}, "hello v", ""},
		{"extra_variables_ignored", "t", map[string]string{"x": "v", "extra": "e"}, "hello v", ""},
		{"value_not_rescanned", "t", map[string]string{"x": "{{y}}"}, "hello {{y}}", ""},
		{"first_unresolved_named", "u", map[string]string{"x": "a"}, "", "y"},
		{"all_missing", "t", nil, "", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.id, tt.vars, "")
			if tt.wantMissing != "" {
				var unresolved *llmerrors.UnresolvedVariableError
				require.ErrorAs(t, err, &unresolved)
				assert.Equal(t, tt.wantMissing, unresolved.Variable)
				assert.ErrorIs(t, err, llmerrors.ErrUnresolvedVariable)
				assert.Contains(t, err.Error(), tt.wantMissing)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGet_VersionSelection(t *testing.T) {
	r := NewRegistry()
	for _, v := range []string{"1.0.0", "1.2.0", "1.10.0"} {
		mustRegister(t, r, domain.PromptTemplate{ID: "p", Version: v, Template: "v" + v})
	}

	latest, err := r.Get("p", "")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", latest.Version, "latest is the lexicographic maximum")

	exact, err := r.Get("p", "1.10.0")
	require.NoError(t, err)
	assert.Equal(t, "v1.10.0", exact.Template)

	_, err = r.Get("p", "9.9.9")
	assert.ErrorIs(t, err, llmerrors.ErrTemplateNotFound)

	_, err = r.Get("missing", "")
	assert.ErrorIs(t, err, llmerrors.ErrTemplateNotFound)
}

func TestRegister_RejectsInvalid(t *testing.T) {
	r := NewRegistry()
	err := r.Register(domain.PromptTemplate{ID: "p", Template: "x"})
	assert.True(t, errors.Is(err, domain.ErrInvalidPromptTemplate))
}

func TestRenderPrompt_IncludesSystemPrompt(t *testing.T) {
	r := NewRegistry()
	mustRegister(t, r, domain.PromptTemplate{ID: "t", Version: "1", Template: "hi {{name}}", SystemPrompt: "be nice"})

	p, err := r.RenderPrompt("t", map[string]string{"name": "ada"}, "")
	require.NoError(t, err)
	assert.Equal(t, "hi ada", p.Content)
	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleSystem, msgs[0].Role)
	assert.Equal(t, "be nice", msgs[0].Content)

	sys, err := r.SystemPrompt("t", "")
	require.NoError(t, err)
	assert.Equal(t, "be nice", sys)
}

func TestNewDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry()
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, tmpl := range r.List() {
		ids[tmpl.ID] = true
		assert.Equal(t, "1.0.0", tmpl.Version)
		assert.NotEmpty(t, tmpl.SystemPrompt)
	}
	for _, id := range []string{IntentCapture, InitiativeGeneration, BriefGeneration, Enrichment, SimilarityCheck, FeasibilityCheck} {
		assert.True(t, ids[id], "missing built-in template %s", id)
	}

	_, err = r.Render(BriefGeneration, map[string]string{
		"title": "T", "description": "D", "score": "0.800", "criterionScores": "- Impact (weight: 0.60): 5.00/5.0",
	}, "")
	assert.NoError(t, err)
}

func TestBuiltinTemplatesDeclareTheirPlaceholders(t *testing.T) {
	r, err := NewDefaultRegistry()
	require.NoError(t, err)

	for _, tmpl := range r.List() {
		vars := make(map[string]string, len(tmpl.Variables))
		for _, v := range tmpl.Variables {
			vars[v] = "x"
		}
		_, err := r.Render(tmpl.ID, vars, tmpl.Version)
		assert.NoError(t, err, "template %s", tmpl.Key())
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	doc := []byte(`templates:
  - id: custom
    version: "2.0.0"
    template: "custom {{a}}"
    variables: [a]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.yaml"), doc, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	r := NewRegistry()
	require.NoError(t, r.LoadDir(dir))

	got, err := r.Render("custom", map[string]string{"a": "b"}, "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, "custom b", got)
}
