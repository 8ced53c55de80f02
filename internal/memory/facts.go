package memory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/amy-assistant/amy/internal/database"
	apperrors "github.com/amy-assistant/amy/internal/errors"
)

// Relevance score components. A fact must reach the configured minimum to
// appear in search results at all.
const (
	scoreExactPhrase   = 100
	scoreAllTerms      = 50
	scorePartialWeight = 30
	scorePersonalBonus = 20
)

// UpsertResult reports what Upsert did with a candidate.
type UpsertResult struct {
	Fact      database.Fact
	Duplicate bool // true when an existing fact absorbed the candidate
}

// ScoredFact is a fact paired with its relevance to a query.
type ScoredFact struct {
	Fact  database.Fact
	Score float64
}

// Facts is the long-term memory service: deduplicated, per-user fact storage
// with relevance-ranked retrieval. All reads and writes are strictly
// partitioned by user id.
type Facts struct {
	store               database.Store
	logger              *slog.Logger
	similarityThreshold float64
	minRelevance        float64
}

// NewFacts creates the fact service. similarityThreshold is the token-overlap
// ratio at or above which two facts are the same claim; minRelevance is the
// score floor for search results.
func NewFacts(store database.Store, similarityThreshold, minRelevance float64, logger *slog.Logger) *Facts {
	if logger == nil {
		logger = slog.Default()
	}
	if similarityThreshold <= 0 || similarityThreshold > 1 {
		similarityThreshold = 0.8
	}
	return &Facts{
		store:               store,
		logger:              logger.With("component", "facts"),
		similarityThreshold: similarityThreshold,
		minRelevance:        minRelevance,
	}
}

// Upsert stores a candidate fact for a user unless an existing fact already
// makes the same claim. Three outcomes:
//
//   - near-duplicate of an existing fact: the existing fact is kept unchanged
//     and returned with Duplicate=true;
//   - personal_info about the same identity attribute (name, location,
//     employer) as an existing fact: the existing fact's content is replaced,
//     newest value wins;
//   - otherwise: a new fact row is inserted.
//
// Upserting the same candidate any number of times leaves exactly one fact.
// A malformed candidate (empty content, unknown category) fails with a
// validation error and stores nothing.
func (f *Facts) Upsert(ctx context.Context, userID, sourceSessionID string, cand Candidate) (*UpsertResult, error) {
	content := strings.TrimSpace(cand.Content)
	if content == "" {
		return nil, apperrors.NewValidationError("fact content must not be empty", nil)
	}
	if !cand.Category.Valid() {
		return nil, apperrors.NewValidationError("unknown fact category: "+string(cand.Category), nil)
	}

	existing, err := f.store.FactsByCategory(ctx, userID, cand.Category)
	if err != nil {
		return nil, err
	}

	for i := range existing {
		if similarity(existing[i].Content, content) >= f.similarityThreshold {
			f.logger.DebugContext(ctx, "Fact is a near-duplicate, keeping existing",
				"user_id", userID, "fact_id", existing[i].ID, "category", cand.Category)
			return &UpsertResult{Fact: existing[i], Duplicate: true}, nil
		}
	}

	if cand.Category == database.CategoryPersonalInfo {
		if subject := personalSubject(content); subject != "" {
			for i := range existing {
				if personalSubject(existing[i].Content) != subject {
					continue
				}
				if err := f.store.UpdateFactContent(ctx, existing[i].ID, content, sourceSessionID); err != nil {
					return nil, err
				}
				f.logger.InfoContext(ctx, "Replaced identity attribute with newer value",
					"user_id", userID, "fact_id", existing[i].ID, "subject", subject)
				updated := existing[i]
				updated.Content = content
				updated.SourceSessionID = sourceSessionID
				updated.UpdatedAt = time.Now().UTC()
				return &UpsertResult{Fact: updated, Duplicate: true}, nil
			}
		}
	}

	fact := database.Fact{
		UserID:          userID,
		Category:        cand.Category,
		Content:         content,
		SourceSessionID: sourceSessionID,
	}
	if err := f.store.InsertFact(ctx, &fact); err != nil {
		return nil, err
	}
	f.logger.InfoContext(ctx, "Fact stored",
		"user_id", userID, "fact_id", fact.ID, "category", fact.Category)
	return &UpsertResult{Fact: fact}, nil
}

// Search returns the user's facts relevant to the query, highest score first,
// at most limit results. Facts scoring below the minimum relevance are
// excluded entirely; an off-topic query legitimately returns nothing.
func (f *Facts) Search(ctx context.Context, userID, query string, limit int) ([]ScoredFact, error) {
	facts, err := f.store.FactsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return nil, nil
	}

	queryNorm := normalizeContent(query)
	queryTokens := tokenSet(query)

	scored := make([]ScoredFact, 0, len(facts))
	for i := range facts {
		score := relevance(facts[i], queryNorm, queryTokens)
		if score < f.minRelevance {
			continue
		}
		scored = append(scored, ScoredFact{Fact: facts[i], Score: score})
	}

	// Ties break toward the more recently updated fact.
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Fact.UpdatedAt.After(scored[j].Fact.UpdatedAt)
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// relevance scores one fact against a query:
// exact phrase match, all query terms present, partial term overlap, plus a
// flat bonus for identity facts, which the assistant needs most often.
func relevance(fact database.Fact, queryNorm string, queryTokens map[string]struct{}) float64 {
	if queryNorm == "" || len(queryTokens) == 0 {
		return 0
	}

	factNorm := normalizeContent(fact.Content)
	factTokens := tokenSet(fact.Content)

	var score float64
	if strings.Contains(factNorm, queryNorm) {
		score += scoreExactPhrase
	}

	matched := 0
	for tok := range queryTokens {
		if _, ok := factTokens[tok]; ok {
			matched++
		}
	}
	if matched == len(queryTokens) {
		score += scoreAllTerms
	} else if matched > 0 {
		score += float64(matched) / float64(len(queryTokens)) * scorePartialWeight
	}

	if score > 0 && fact.Category == database.CategoryPersonalInfo {
		score += scorePersonalBonus
	}
	return score
}

// ByCategory returns all of a user's facts in one category, oldest first.
func (f *Facts) ByCategory(ctx context.Context, userID string, category database.FactCategory) ([]database.Fact, error) {
	return f.store.FactsByCategory(ctx, userID, category)
}

// ByUser returns all of a user's facts, oldest first.
func (f *Facts) ByUser(ctx context.Context, userID string) ([]database.Fact, error) {
	return f.store.FactsByUser(ctx, userID)
}

// DeduplicateAll sweeps a user's facts and collapses near-duplicate groups
// within each category, keeping the earliest-created fact of each group.
// Returns the number of facts removed. Run periodically as a safety net;
// Upsert already prevents duplicates on the write path.
func (f *Facts) DeduplicateAll(ctx context.Context, userID string) (int, error) {
	facts, err := f.store.FactsByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	var doomed []int64
	removed := make(map[int64]bool)
	for i := range facts {
		if removed[facts[i].ID] {
			continue
		}
		// FactsByUser is created_at ascending, so i is the earliest survivor
		// of its group and later near-duplicates fold into it.
		for j := i + 1; j < len(facts); j++ {
			if removed[facts[j].ID] || facts[j].Category != facts[i].Category {
				continue
			}
			if similarity(facts[i].Content, facts[j].Content) >= f.similarityThreshold {
				removed[facts[j].ID] = true
				doomed = append(doomed, facts[j].ID)
			}
		}
	}

	if len(doomed) == 0 {
		return 0, nil
	}
	if err := f.store.DeleteFacts(ctx, doomed); err != nil {
		return 0, err
	}
	f.logger.InfoContext(ctx, "Deduplication sweep removed facts",
		"user_id", userID, "removed", len(doomed))
	return len(doomed), nil
}
