package memory

import (
	"strings"
	"unicode"
)

// Filler words stripped before comparing fact contents. Self-disclosure
// statements carry most of their meaning outside these tokens ("my name is
// Leon" and "Leon" are the same claim).
var fillerWords = map[string]struct{}{
	"my": {}, "name": {}, "is": {}, "i": {}, "am": {}, "i'm": {},
	"call": {}, "me": {}, "the": {}, "a": {}, "an": {},
}

// normalizeContent lowercases text and reduces it to space-separated word
// tokens, dropping punctuation. Deterministic by construction.
func normalizeContent(text string) string {
	return strings.Join(tokenize(text), " ")
}

// tokenize splits text into lowercase word tokens.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})
}

// tokenSet returns the full normalized token set of text, fillers included.
// Relevance scoring uses this; stripping fillers there would blind queries
// like "what is my name" to their own subject.
func tokenSet(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		tokens[tok] = struct{}{}
	}
	return tokens
}

// contentTokens returns the normalized token set of text with filler words
// removed. Used for similarity and subject comparison.
func contentTokens(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, tok := range tokenize(text) {
		if _, filler := fillerWords[tok]; filler {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}

// similarity returns the token-overlap (Jaccard) ratio of two texts after
// normalization and filler removal. Symmetric and deterministic; 1.0 means
// identical token sets, 0.0 means disjoint.
func similarity(a, b string) float64 {
	ta, tb := contentTokens(a), contentTokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		// Both reduce to pure filler; treat as the same claim.
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

// Identity attributes recognized inside personal_info facts. Two
// personal_info facts about the same attribute are the same claim even when
// the values differ; the newer value wins.
// Bare first-person prefixes ("i'm ", "i am ") are not name framing; they
// introduce locations and jobs just as often, so name requires an explicit
// naming phrase.
var personalSubjects = []struct {
	subject string
	phrases []string
}{
	{"location", []string{"i live in", "i'm from", "i am from", "i moved to"}},
	{"employer", []string{"i work at", "i work for", "my job is", "i study", "i go to"}},
	{"name", []string{"my name is", "i am called", "i'm called", "call me"}},
}

// personalSubject classifies which identity attribute a personal_info fact
// describes. Returns "" when no known attribute phrase is present
// (e.g. a standalone name with no framing).
func personalSubject(content string) string {
	lower := strings.ToLower(content)
	for _, s := range personalSubjects {
		for _, phrase := range s.phrases {
			if strings.Contains(lower, phrase) {
				return s.subject
			}
		}
	}
	return ""
}
