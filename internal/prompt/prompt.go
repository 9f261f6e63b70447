// Package prompt builds the narration prompts. Both composers are pure:
// identical inputs produce byte-identical output.
package prompt

import (
	"fmt"
	"strings"

	"agriassist/internal/domain"
)

// DefaultImageQuestion substitutes for a missing question on image submissions.
const DefaultImageQuestion = "Please analyze this image and tell me what is wrong with my plant and how to fix it."

// TextOnly wraps a raw question in the assistant persona frame.
func TextOnly(question string) string {
	return fmt.Sprintf(`You are a helpful agricultural assistant for farmers. Answer this question: %q

Give a practical, actionable answer in a friendly, helpful tone.`, question)
}

// WithClassification embeds a classification report verbatim inside the
// instruction frame for image submissions. The report is never interpreted
// here; the narration model reads the JSON, including any error field.
func WithClassification(question string, c domain.Classification) string {
	q := strings.TrimSpace(question)
	if q == "" {
		q = DefaultImageQuestion
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert agricultural assistant. A farmer asks: %q\n\n", q)
	b.WriteString("Here is a technical analysis from a plant disease database:\n")
	b.WriteString("```json\n")
	b.WriteString(c.PromptText())
	b.WriteString("\n```\n\n")
	b.WriteString(`Interpret the JSON and answer for the farmer:
- If the analysis says the input is not a plant, say so plainly.
- If a disease is suggested, identify it and state its probability.
- If the plant is healthy, state that explicitly; do not invent a disease.
- List treatments under two headings, "Organic Solutions" and "Chemical Solutions", drawing on the treatment field in the JSON and your own knowledge.
- Directly address the farmer's question.
Use a friendly, helpful tone.`)
	return b.String()
}
