package memory

import (
	"context"
	"strings"
	"unicode"

	"github.com/amy-assistant/amy/internal/database"
)

// Candidate is a fact candidate produced by extraction: category and content
// only. The caller fills in user, timestamps, and source session before the
// candidate reaches the fact store.
type Candidate struct {
	Category database.FactCategory
	Content  string
}

// Extractor mines self-disclosure facts from a single turn. Implementations
// must be idempotent: extracting the same turn twice yields identical
// candidate sets. Ambiguous or unparseable input yields zero candidates and
// no error; silence is the correct behavior.
//
// Only user-role turns are mined; assistant turns are the model's own words,
// not user-asserted truth. Callers enforce that; Extract may assume it.
type Extractor interface {
	Extract(ctx context.Context, turn database.Turn) ([]Candidate, error)
}

// RuleExtractor recognizes self-disclosure statements with deterministic
// keyword patterns: introductions, preferences, work/residence, and stated
// goals. No model call, no state, trivially idempotent.
type RuleExtractor struct{}

// NewRuleExtractor creates the pattern-based extractor.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

var (
	namePhrases       = []string{"my name is", "i am ", "i'm ", "call me"}
	preferencePhrases = []string{"i like", "i prefer", "i love", "i hate", "i enjoy", "i dislike"}
	backgroundPhrases = []string{"i work at", "i work for", "i live in", "i study", "i go to", "i'm from", "i am from"}
	goalPhrases       = []string{"i want to", "i plan to", "i need to", "my goal is", "i'm trying to"}
)

// Extract returns the fact candidates found in the turn's content. Each
// matching pattern family contributes at most one candidate carrying the
// full statement; the fact store deduplicates across turns.
func (e *RuleExtractor) Extract(_ context.Context, turn database.Turn) ([]Candidate, error) {
	if turn.Role != database.RoleUser {
		return nil, nil
	}

	content := strings.TrimSpace(turn.Content)
	if content == "" {
		return nil, nil
	}
	lower := strings.ToLower(content)

	var candidates []Candidate
	add := func(category database.FactCategory) {
		candidates = append(candidates, Candidate{Category: category, Content: content})
	}

	switch {
	case containsAny(lower, namePhrases), containsAny(lower, backgroundPhrases):
		add(database.CategoryPersonalInfo)
	case isStandaloneName(content):
		// A short, capitalized, single-word message is most likely the
		// user answering "what's your name?".
		add(database.CategoryPersonalInfo)
	case containsAny(lower, preferencePhrases):
		add(database.CategoryPreference)
	case containsAny(lower, goalPhrases):
		add(database.CategoryGoal)
	}

	// A statement can disclose both identity and intent
	// ("I'm Leon and I want to learn Go").
	if len(candidates) == 1 && candidates[0].Category == database.CategoryPersonalInfo &&
		containsAny(lower, goalPhrases) {
		add(database.CategoryGoal)
	}

	return candidates, nil
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// isStandaloneName reports whether content looks like a bare proper name:
// a single short capitalized word of letters.
func isStandaloneName(content string) bool {
	if len(content) > 20 || strings.ContainsAny(content, " \t\n") {
		return false
	}
	runes := []rune(content)
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
