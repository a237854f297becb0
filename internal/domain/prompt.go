package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// PromptTemplate is a versioned prompt with {{name}} placeholders.
// Several versions of the same ID may coexist in a registry; the latest is
// the lexicographically greatest version string, so versions should sort
// monotonically.
type PromptTemplate struct {
	// ID names the task the template serves, e.g. "brief_generation".
	ID string `json:"id" yaml:"id" validate:"required"`

	// Version distinguishes revisions of the same ID.
	Version string `json:"version" yaml:"version" validate:"required"`

	// Template is the user prompt body with {{name}} placeholders.
	Template string `json:"template" yaml:"template" validate:"required"`

	// Variables lists the placeholder names the template expects.
	Variables []string `json:"variables" yaml:"variables"`

	// SystemPrompt is an optional system message sent before the rendered body.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`

	// Description is free text for listings.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Validate checks if the prompt template meets all requirements.
func (p *PromptTemplate) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPromptTemplate, err)
	}
	return nil
}

// Key returns the registry key "id@version".
func (p *PromptTemplate) Key() string { return p.ID + "@" + p.Version }

// Fingerprint is a SHA-256 of the system prompt and body, used to detect
// template drift between deployments that share a version string.
func (p *PromptTemplate) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(p.SystemPrompt))
	h.Write([]byte{0})
	h.Write([]byte(p.Template))
	return hex.EncodeToString(h.Sum(nil))
}

// RenderedPrompt is a template instantiated with concrete variable values.
type RenderedPrompt struct {
	TemplateID   string            `json:"template_id"`
	Version      string            `json:"version"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Content      string            `json:"content"`
	Variables    map[string]string `json:"variables"`
}

// NewRenderedPrompt copies variables so later mutation by the caller does not leak in.
func NewRenderedPrompt(t *PromptTemplate, content string, vars map[string]string) RenderedPrompt {
	return RenderedPrompt{
		TemplateID:   t.ID,
		Version:      t.Version,
		SystemPrompt: t.SystemPrompt,
		Content:      content,
		Variables:    cloneStringMap(vars),
	}
}

// Messages converts the rendered prompt into chat messages.
func (r RenderedPrompt) Messages() []Message {
	msgs := make([]Message, 0, 2)
	if r.SystemPrompt != "" {
		msgs = append(msgs, SystemMessage(r.SystemPrompt))
	}
	return append(msgs, UserMessage(r.Content))
}
