package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"

	"github.com/amy-assistant/amy/internal/database"
)

// FactGenerator is the model-backed collaborator used by LLMExtractor.
// The gemini package provides the production implementation.
type FactGenerator interface {
	GenerateFacts(ctx context.Context, content string) ([]Candidate, error)
}

// LLMExtractor extracts facts with a model call. Model output is not
// deterministic, so results are cached keyed by turn content: extracting
// identical input twice returns the cached candidate set without
// re-invoking the model, which preserves extraction idempotence.
//
// Extraction never hard-fails the turn: a model error is logged and yields
// zero candidates, same as ambiguous input.
type LLMExtractor struct {
	generator FactGenerator
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string][]Candidate
}

// NewLLMExtractor creates an extractor backed by the given generator.
func NewLLMExtractor(generator FactGenerator, logger *slog.Logger) *LLMExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMExtractor{
		generator: generator,
		logger:    logger.With("component", "llm_extractor"),
		cache:     make(map[string][]Candidate),
	}
}

// Extract returns the candidates the model found in the turn, serving
// repeated content from the cache.
func (e *LLMExtractor) Extract(ctx context.Context, turn database.Turn) ([]Candidate, error) {
	if turn.Role != database.RoleUser || turn.Content == "" {
		return nil, nil
	}

	key := contentKey(turn.Content)

	e.mu.Lock()
	cached, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		return cloneCandidates(cached), nil
	}

	candidates, err := e.generator.GenerateFacts(ctx, turn.Content)
	if err != nil {
		e.logger.WarnContext(ctx, "Fact extraction model call failed, skipping turn", "error", err)
		return nil, nil
	}

	// Drop anything outside the closed category set before it can reach
	// the fact store.
	valid := candidates[:0]
	for _, c := range candidates {
		if c.Category.Valid() && c.Content != "" {
			valid = append(valid, c)
		}
	}

	e.mu.Lock()
	e.cache[key] = valid
	e.mu.Unlock()

	e.logger.DebugContext(ctx, "Extracted facts via model", "candidates", len(valid))
	return cloneCandidates(valid), nil
}

func contentKey(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func cloneCandidates(in []Candidate) []Candidate {
	if len(in) == 0 {
		return nil
	}
	out := make([]Candidate, len(in))
	copy(out, in)
	return out
}
