// Package prompts stores versioned prompt templates and renders them with
// literal {{name}} substitution.
package prompts

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"

	"github.com/ahrav/go-themis/internal/domain"
	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
)

// Built-in template IDs.
const (
	IntentCapture        = "intent_capture"
	InitiativeGeneration = "initiative_generation"
	BriefGeneration      = "brief_generation"
	Enrichment           = "enrichment"
	SimilarityCheck      = "similarity_check"
	FeasibilityCheck     = "feasibility_check"
)

var placeholder = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Registry holds templates keyed by ID then version. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]map[string]domain.PromptTemplate
	logger    *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		templates: make(map[string]map[string]domain.PromptTemplate),
		logger:    slog.Default().With("component", "prompts"),
	}
}

// Register stores t under (ID, Version), replacing any existing entry.
func (r *Registry) Register(t domain.PromptTemplate) error {
	if err := t.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	versions, ok := r.templates[t.ID]
	if !ok {
		versions = make(map[string]domain.PromptTemplate)
		r.templates[t.ID] = versions
	}
	if prev, exists := versions[t.Version]; exists && prev.Fingerprint() != t.Fingerprint() {
		r.logger.Warn("replacing prompt template with different content", "template", t.Key())
	}
	t.Variables = append([]string(nil), t.Variables...)
	versions[t.Version] = t
	return nil
}

// Get returns the template for id at version. An empty version selects
// the lexicographically greatest version string.
func (r *Registry) Get(id, version string) (domain.PromptTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, ok := r.templates[id]
	if !ok || len(versions) == 0 {
		return domain.PromptTemplate{}, fmt.Errorf("%w: %q", llmerrors.ErrTemplateNotFound, id)
	}

	if version == "" {
		for v := range versions {
			if v > version {
				version = v
			}
		}
	}

	t, ok := versions[version]
	if !ok {
		return domain.PromptTemplate{}, fmt.Errorf("%w: %q version %q", llmerrors.ErrTemplateNotFound, id, version)
	}
	return t, nil
}

// List returns every registered template ordered by ID then version.
func (r *Registry) List() []domain.PromptTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.PromptTemplate
	for _, versions := range r.templates {
		for _, t := range versions {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Render substitutes vars into the template body. Substituted values are
// not rescanned for placeholders. The first placeholder without a value
// yields an UnresolvedVariableError naming it.
func (r *Registry) Render(id string, vars map[string]string, version string) (string, error) {
	t, err := r.Get(id, version)
	if err != nil {
		return "", err
	}
	return render(t, vars)
}

// RenderPrompt renders the template and bundles it with its system prompt.
func (r *Registry) RenderPrompt(id string, vars map[string]string, version string) (domain.RenderedPrompt, error) {
	t, err := r.Get(id, version)
	if err != nil {
		return domain.RenderedPrompt{}, err
	}
	content, err := render(t, vars)
	if err != nil {
		return domain.RenderedPrompt{}, err
	}
	return domain.NewRenderedPrompt(&t, content, vars), nil
}

// SystemPrompt returns the template's system prompt, which may be empty.
func (r *Registry) SystemPrompt(id, version string) (string, error) {
	t, err := r.Get(id, version)
	if err != nil {
		return "", err
	}
	return t.SystemPrompt, nil
}

func render(t domain.PromptTemplate, vars map[string]string) (string, error) {
	var missing string
	out := placeholder.ReplaceAllStringFunc(t.Template, func(m string) string {
		name := m[2 : len(m)-2]
		if v, ok := vars[name]; ok {
			return v
		}
		if missing == "" {
			missing = name
		}
		return m
	})
	if missing != "" {
		return "", &llmerrors.UnresolvedVariableError{TemplateID: t.ID, Variable: missing}
	}
	return out, nil
}
