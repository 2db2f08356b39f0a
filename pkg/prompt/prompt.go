// Package prompt renders the instruction prompt sent to the language model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
)

// NoContext replaces the context section when retrieval found nothing.
const NoContext = "No relevant context was found in the provided documents."

const baseInstructions = "You are an expert document analyst specializing in insurance, legal, HR, and compliance domains. \n" +
	"Analyze the provided context and answer the question with high accuracy and clear explanations."

const template = `{{.instructions}}

{{.directive}}

**CRITICAL REQUIREMENTS:**
1. Use ONLY the provided context to answer
2. Cite specific clauses, sections, or page numbers when available
3. If information is insufficient, clearly state what's missing
4. Provide confidence level in your response
5. Be precise and avoid speculation

**Context:**
{{.context}}

**Question:** {{.question}}

**Instructions for Response:**
- Start with a direct answer
- Provide supporting details from the context
- Include relevant citations [Source: Page X, Section Y]
- End with confidence level (High/Medium/Low)

**Answer:**`

var directives = map[models.Classification]string{
	models.Coverage:  "Focus on what IS covered, benefits, inclusions, and eligibility criteria.",
	models.Exclusion: "Focus on what IS NOT covered, limitations, restrictions, and exclusions.",
	models.Procedure: "Focus on step-by-step processes, requirements, and procedures.",
	models.Condition: "Focus on conditions, requirements, criteria, and qualifications.",
	models.Amount:    "Focus on monetary amounts, limits, costs, and financial details.",
	models.Timeline:  "Focus on timeframes, deadlines, waiting periods, and temporal aspects.",
}

// Directive returns the focus sentence for a classification, or "" if the
// classification is unknown.
func Directive(c models.Classification) string {
	return directives[c]
}

type Composer struct {
	tmpl prompts.PromptTemplate
}

func NewComposer() *Composer {
	return &Composer{
		tmpl: prompts.PromptTemplate{
			Template:       template,
			TemplateFormat: prompts.TemplateFormatGoTemplate,
			InputVariables: []string{"instructions", "directive", "context", "question"},
		},
	}
}

// Compose renders the prompt for one question. The output depends only on
// the arguments.
func (c *Composer) Compose(question string, class models.Classification, hits []models.Hit) (string, error) {
	out, err := c.tmpl.Format(map[string]any{
		"instructions": baseInstructions,
		"directive":    Directive(class),
		"context":      Context(hits),
		"question":     question,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return out, nil
}

// Context numbers the retrieved chunks from 1 and labels each with its
// locator.
func Context(hits []models.Hit) string {
	if len(hits) == 0 {
		return NoContext
	}

	blocks := make([]string, len(hits))
	for i, hit := range hits {
		blocks[i] = fmt.Sprintf("[Document %d] (%s)\n%s", i+1, hit.Chunk.Locator(), hit.Chunk.Content)
	}
	return strings.Join(blocks, "\n\n")
}
