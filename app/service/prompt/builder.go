// Package prompt renders the system and user parts of a guidance request.
package prompt

import (
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

const currentPrefix = "Current question/statement: "

// BuildSystemPrompt renders the persona instruction and appends the
// user-provided context block when there is one.
func BuildSystemPrompt(persona Persona, customPrompt string) string {
	raw := persona.template()

	tmpl := prompts.NewPromptTemplate(raw, []string{"max_sentences"})
	rendered, err := tmpl.Format(map[string]any{
		"max_sentences": persona.MaxSentences,
	})
	if err != nil {
		slog.Warn("Failed to render persona template", "persona", persona.ID, "error", err)
		rendered = raw
	}

	result := strings.TrimSpace(rendered)

	customPrompt = strings.TrimSpace(customPrompt)
	if customPrompt != "" {
		result += "\n\nUser-provided context:\n-----\n" + customPrompt + "\n-----\n"
	}

	return result
}

// BuildUserPrompt wraps a transcription fragment with the recent context.
// Chat messages are sent verbatim.
func BuildUserPrompt(newInput, recentContext string, isChatMessage bool) string {
	newInput = strings.TrimSpace(newInput)

	if isChatMessage {
		return newInput
	}

	if recentContext != "" {
		return recentContext + "\n\n" + currentPrefix + newInput
	}

	return currentPrefix + newInput
}
