package analysis

import (
	"fmt"
	"unicode/utf8"
)

// MaxTextChars bounds the document text sent to the model. The tail beyond
// it is dropped, not summarized.
const MaxTextChars = 60000

const preambleTemplate = `You are Prism's AI engine. Perform a deep-dive analysis on the following blockchain/crypto document.

Target Audience: %s (Focus on %s).

Your task is to extract structured intelligence:
1. Executive Overview & Sentiment (with confidence).
2. Hard Metrics & Timelines.
3. Visual Relationships (how entities connect).
4. Actionable Advice for %s.

Return strictly valid JSON matching the schema. Use empty arrays for sections the document does not cover.`

// BuildInstruction returns the task preamble for audience.
func BuildInstruction(audience Audience) string {
	a := audience.orDefault()
	return fmt.Sprintf(preambleTemplate, a, audienceFocus[a], audienceNoun[a])
}

// documentText prefixes the document body and truncates it to MaxTextChars
// characters.
func documentText(text string) string {
	return "\n\nDocument Content:\n" + truncate(text, MaxTextChars)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
