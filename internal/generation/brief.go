package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahrav/go-themis/internal/domain"
	"github.com/ahrav/go-themis/internal/llm/prompts"
)

// DefaultImageStyle is used by GenerateImagePrompt when no style is given.
const DefaultImageStyle = "modern, professional"

const (
	sectionSystemPrompt = "You are a strategic business analyst creating concise, actionable concept briefs."
	imageSystemPrompt   = "You are an expert at creating vivid image generation prompts. Focus on visual elements, mood, style, and composition."
)

var sectionInstructions = map[domain.BriefSection]string{
	domain.SectionExecutiveSummary: "Write a 2-3 sentence executive summary",
	domain.SectionRationale:        "Explain the rationale and strategic fit in 3-4 paragraphs",
	domain.SectionRisks:            "Identify 3-5 key risks with mitigation strategies",
	domain.SectionMetrics:          "Define 3-5 measurable success metrics (KPIs)",
	domain.SectionImagePrompt:      "Create a vivid visual description for image generation (focus on mood, style, and key elements)",
}

var briefDecoder = mustDecoder[domain.GeneratedBrief]("brief")

// BriefGenerator writes concept briefs for scored initiatives.
type BriefGenerator struct {
	base
}

// NewBriefGenerator creates a BriefGenerator.
func NewBriefGenerator(llm Completer, registry *prompts.Registry) (*BriefGenerator, error) {
	b, err := newBase(llm, registry, "brief_generator")
	if err != nil {
		return nil, err
	}
	return &BriefGenerator{base: b}, nil
}

// Generate produces every brief section in one call.
func (g *BriefGenerator) Generate(ctx context.Context, req domain.BriefRequest) (domain.GeneratedBrief, error) {
	if err := req.Validate(); err != nil {
		return domain.GeneratedBrief{}, invalidRequest(err)
	}

	content, err := g.completeTemplate(ctx, prompts.BriefGeneration, map[string]string{
		"title":           req.Title,
		"description":     req.Description,
		"score":           fmt.Sprintf("%.3f", req.WeightedScore()),
		"criterionScores": formatCriterionScores(req),
	}, briefTemperature, briefMaxTokens)
	if err != nil {
		return domain.GeneratedBrief{}, err
	}

	result := g.Parse(content)
	if !result.IsOk() {
		return domain.GeneratedBrief{}, decodeFailed(ctx, g.logger, "brief generation", result)
	}
	brief, _ := result.Value()
	return brief, nil
}

// Parse decodes a raw brief generation reply.
func (g *BriefGenerator) Parse(content string) Result[domain.GeneratedBrief] {
	return briefDecoder.Decode(content)
}

// RegenerateSection rewrites one section. The other non-empty sections of
// current, when given, are sent as context.
func (g *BriefGenerator) RegenerateSection(ctx context.Context, req domain.BriefRequest, section domain.BriefSection, current *domain.GeneratedBrief) (string, error) {
	instruction, ok := sectionInstructions[section]
	if !ok {
		return "", fmt.Errorf("unknown brief section %q", section)
	}

	var others []string
	if current != nil {
		for _, s := range domain.BriefSections {
			if s == section {
				continue
			}
			if text := current.Section(s); text != "" {
				others = append(others, fmt.Sprintf("%s: %s", s, text))
			}
		}
	}

	prompt := fmt.Sprintf(`For this initiative:
Title: %s
Description: %s

%s

%s

Return only the requested section content, no additional formatting.`,
		req.Title, req.Description, strings.Join(others, "\n\n"), instruction)

	content, err := g.complete(ctx, []domain.Message{
		domain.SystemMessage(sectionSystemPrompt),
		domain.UserMessage(prompt),
	}, sectionTemperature, sectionMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// GenerateImagePrompt writes a prompt for an image generation model.
func (g *BriefGenerator) GenerateImagePrompt(ctx context.Context, title, description, style string) (string, error) {
	if style == "" {
		style = DefaultImageStyle
	}

	prompt := fmt.Sprintf(`Create an image generation prompt for this initiative:
Title: %s
Description: %s
Style: %s

The prompt should be detailed, specific, and optimized for image generation AI (DALL-E, Midjourney, Stable Diffusion).`,
		title, description, style)

	content, err := g.complete(ctx, []domain.Message{
		domain.SystemMessage(imageSystemPrompt),
		domain.UserMessage(prompt),
	}, imagePromptTemperature, imagePromptMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func formatCriterionScores(req domain.BriefRequest) string {
	lines := make([]string, len(req.Criteria))
	for i, c := range req.Criteria {
		lines[i] = fmt.Sprintf("- %s (weight: %.2f): %.2f/5.0", c.Name, c.Weight, req.Scores[c.Name])
	}
	return strings.Join(lines, "\n")
}
