package ai

import (
	"regexp"
	"strings"
)

const basePersona = "You are a patient law tutor. Answer with accurate legal doctrine, " +
	"cite leading cases where relevant, and explain reasoning step by step in plain language."

var wordLimitRe = regexp.MustCompile(`(?i)\b(?:in|within|under|at most|no more than|less than)\s+(\d{2,4})\s+words\b`)

// BuildSystemPrompt shapes the tutor persona for one question. The chapter
// narrows the subject area; attached document text is appended so the model
// can answer questions about uploaded material.
func BuildSystemPrompt(chapter, question string, documents []string) string {
	var b strings.Builder
	b.WriteString(basePersona)
	if strings.TrimSpace(chapter) != "" {
		b.WriteString("\nThe student is currently studying: ")
		b.WriteString(strings.TrimSpace(chapter))
		b.WriteString(".")
	}
	if hint := responseStyleHint(question); hint != "" {
		b.WriteString("\n")
		b.WriteString(hint)
	}
	for _, doc := range documents {
		doc = strings.TrimSpace(doc)
		if doc == "" {
			continue
		}
		b.WriteString("\n\nThe student attached the following document:\n")
		b.WriteString(doc)
	}
	return b.String()
}

func responseStyleHint(question string) string {
	if m := wordLimitRe.FindStringSubmatch(question); m != nil {
		return "Keep the answer within " + m[1] + " words."
	}
	lower := strings.ToLower(question)
	if strings.Contains(lower, "essay") || strings.Contains(lower, "elaborate") ||
		strings.Contains(lower, "in detail") {
		return "Give a thorough, structured answer with headings where useful."
	}
	return "Keep the answer focused and concise unless asked for more depth."
}
