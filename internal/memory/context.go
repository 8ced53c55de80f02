package memory

import (
	"strings"

	"github.com/amy-assistant/amy/internal/database"
)

// Section headers of the assembled context block.
const (
	recentHeader = "Recent conversation:"
	factsHeader  = "Relevant information from previous conversations:"
)

// ContextBuilder assembles the bounded context block injected into the
// model prompt: a window of recent turns plus the facts most relevant to
// the current message.
//
// The character budget is a hard ceiling. When the full rendering exceeds
// it, whole units are dropped in priority order: oldest turns first, then
// lowest-ranked facts. Units are never cut mid-line, and a section's header
// disappears with its last unit.
type ContextBuilder struct {
	maxChars    int
	recentTurns int
	factLimit   int
}

// NewContextBuilder creates a builder with the given budget and windows.
func NewContextBuilder(maxChars, recentTurns, factLimit int) *ContextBuilder {
	if maxChars <= 0 {
		maxChars = 500
	}
	if recentTurns <= 0 {
		recentTurns = 3
	}
	if factLimit <= 0 {
		factLimit = 3
	}
	return &ContextBuilder{
		maxChars:    maxChars,
		recentTurns: recentTurns,
		factLimit:   factLimit,
	}
}

// Build renders the context block from buffered turns (oldest first) and
// scored facts (highest relevance first). Returns "" when there is nothing
// to say; callers treat that as "no context", not an error.
func (c *ContextBuilder) Build(turns []database.Turn, facts []ScoredFact) string {
	if len(turns) > c.recentTurns {
		turns = turns[len(turns)-c.recentTurns:]
	}
	if len(facts) > c.factLimit {
		facts = facts[:c.factLimit]
	}

	turnLines := make([]string, len(turns))
	for i, t := range turns {
		turnLines[i] = string(t.Role) + ": " + t.Content
	}
	factLines := make([]string, len(facts))
	for i, f := range facts {
		factLines[i] = "- " + string(f.Fact.Category) + ": " + f.Fact.Content
	}

	for {
		block := render(turnLines, factLines)
		if len(block) <= c.maxChars {
			return block
		}
		switch {
		case len(turnLines) > 0:
			turnLines = turnLines[1:]
		case len(factLines) > 0:
			factLines = factLines[:len(factLines)-1]
		default:
			return ""
		}
	}
}

func render(turnLines, factLines []string) string {
	var b strings.Builder
	if len(turnLines) > 0 {
		b.WriteString(recentHeader)
		for _, line := range turnLines {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	if len(factLines) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(factsHeader)
		for _, line := range factLines {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	return b.String()
}
