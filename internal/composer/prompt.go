// Package composer builds the generation prompt that turns surviving
// evidence into the structured alumni answer, and parses the answer back.
package composer

import (
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/alumnirag/internal/engine"
	"github.com/kalambet/alumnirag/internal/temporal"
)

const defaultMaxContextTokens = 6000

const systemPrompt = `You are an assistant helping students find information about alumni.
You are given a question and a list of documents describing alumni.
ONLY use facts from the DOCUMENT to answer the question. Do not use outside knowledge.
If the DOCUMENT does not contain enough information to answer, return {"alumni": []}.`

const instructions = `INSTRUCTIONS:
- Answer the QUESTION using ONLY the facts in the DOCUMENT.
- Scan every profile in the DOCUMENT and use all that help answer the QUESTION.
- Return one entry per alumnus at most. Each entry has: id, name, pic (profile picture URL) and summary (their relevant experience, written from the DOCUMENT).
- Copy id, name and pic exactly as they appear in the DOCUMENT.
- If no profile answers the QUESTION, return an empty list.`

// Composer assembles generation prompts from deduplicated evidence within a
// token budget.
type Composer struct {
	MaxContextTokens int
}

// New creates a Composer with the given token budget for the document
// section. If maxContextTokens <= 0, the default (6000) is used.
func New(maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Composer{MaxContextTokens: maxContextTokens}
}

// Compose builds the messages for a single generation call over all
// evidence. Profiles are included in rank order; a profile that does not fit
// the remaining budget is skipped.
func (c *Composer) Compose(question string, evidence []temporal.Evidence, today time.Time) []engine.Message {
	doc := c.buildDocument(evidence)

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\nTODAY: ")
	sb.WriteString(today.Format("January 2006"))
	sb.WriteString("\n\nDOCUMENT:\n")
	sb.WriteString(doc)
	sb.WriteString("\n\nQUESTION:\n")
	sb.WriteString(question)

	return []engine.Message{
		{Role: engine.RoleSystem, Content: systemPrompt},
		{Role: engine.RoleUser, Content: sb.String()},
	}
}

func (c *Composer) buildDocument(evidence []temporal.Evidence) string {
	remaining := c.MaxContextTokens
	var entries []string
	for _, ev := range evidence {
		entry := formatEvidence(len(entries)+1, ev)
		tokens := EstimateTokens(entry)
		if tokens > remaining {
			continue
		}
		entries = append(entries, entry)
		remaining -= tokens
	}
	return strings.Join(entries, "\n\n")
}

func formatEvidence(rank int, ev temporal.Evidence) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d. Id: %s\nName: %s\nProfile Pic: %s\n", rank, ev.ID, ev.Name, ev.ProfilePic)
	for _, ch := range ev.Chunks {
		sb.WriteString("Content: ")
		sb.WriteString(ch.Text)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
