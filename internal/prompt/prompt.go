// Package prompt builds the system instruction and per-batch user prompt
// for Q&A pair generation.
package prompt

import (
	"fmt"
	"strings"
)

// System is the fixed instruction establishing the self-contained
// one-line-per-pair output contract.
const System = `You generate question-and-answer training data. For each sentence you receive,
output several Q&A pairs. Every output line must follow this exact format:

<sentence> Q: <question> A: <answer>

Rules:
- Copy the sentence verbatim at the start of each line.
- Ask varied questions: who, what, where, when, how, why, what kind, how many, etc.
- Keep answers short (1-6 words).
- Output one pair per line. No blank lines, no extra text, no numbering.`

// Build returns the user prompt for one batch, listing its sentences as a
// bulleted block.
func Build(sentences []string) string {
	var b strings.Builder
	b.WriteString("Generate question-and-answer pairs for each sentence below.\n\nSentences:\n")
	for _, s := range sentences {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	return b.String()
}
