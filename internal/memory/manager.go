package memory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/amy-assistant/amy/internal/database"
	apperrors "github.com/amy-assistant/amy/internal/errors"
)

// ProcessResult reports what happened while absorbing one turn.
type ProcessResult struct {
	Turn            database.Turn
	NewSession      bool
	FactsStored     int
	FactsDuplicated int
}

// MemoryStats is the combined observability snapshot: durable store
// aggregates plus the live buffer's session count.
type MemoryStats struct {
	Store          database.Stats
	ActiveSessions int
}

// Manager is the memory subsystem's facade. The transport layer hands every
// turn to ProcessMessage and asks ContextForQuery for the prompt context;
// everything else is administrative.
type Manager struct {
	store     database.Store
	buffer    *Buffer
	facts     *Facts
	extractor Extractor
	sessions  *SessionTracker
	builder   *ContextBuilder
	logger    *slog.Logger
}

// NewManager wires the memory components together.
func NewManager(
	store database.Store,
	buffer *Buffer,
	facts *Facts,
	extractor Extractor,
	sessions *SessionTracker,
	builder *ContextBuilder,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		buffer:    buffer,
		facts:     facts,
		extractor: extractor,
		sessions:  sessions,
		builder:   builder,
		logger:    logger.With("component", "memory_manager"),
	}
}

// ProcessMessage absorbs one turn: validate, persist durably, register the
// session, buffer for short-term recall, and mine user turns for facts.
//
// The durable append is the commit point. A storage failure there aborts the
// whole turn and nothing downstream runs. After the turn is durable, failures
// in session bookkeeping or fact extraction are logged and absorbed; they
// never lose the message.
func (m *Manager) ProcessMessage(ctx context.Context, userID, sessionID string, role database.Role, content string, platform database.Platform) (*ProcessResult, error) {
	switch {
	case strings.TrimSpace(userID) == "":
		return nil, apperrors.NewValidationError("user id must not be empty", nil)
	case strings.TrimSpace(sessionID) == "":
		return nil, apperrors.NewValidationError("session id must not be empty", nil)
	case strings.TrimSpace(content) == "":
		return nil, apperrors.NewValidationError("message content must not be empty", nil)
	case !role.Valid():
		return nil, apperrors.NewValidationError("unknown role: "+string(role), nil)
	}
	if platform == "" {
		platform = database.PlatformTelegram
	}

	turn := database.Turn{
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		Platform:  platform,
		Timestamp: time.Now().UTC(),
	}
	if err := m.store.AppendTurn(ctx, &turn); err != nil {
		return nil, err
	}

	result := &ProcessResult{Turn: turn}

	newSession, err := m.sessions.RecordSession(ctx, userID, sessionID)
	if err != nil {
		m.logger.WarnContext(ctx, "Session bookkeeping failed, turn already durable",
			"user_id", userID, "session_id", sessionID, "error", err)
	} else {
		result.NewSession = newSession
	}

	m.buffer.Push(sessionID, turn)

	if role == database.RoleUser {
		m.mineFacts(ctx, turn, result)
	}

	m.logger.DebugContext(ctx, "Turn processed",
		"user_id", userID, "session_id", sessionID, "role", role,
		"facts_stored", result.FactsStored, "facts_duplicated", result.FactsDuplicated)
	return result, nil
}

func (m *Manager) mineFacts(ctx context.Context, turn database.Turn, result *ProcessResult) {
	candidates, err := m.extractor.Extract(ctx, turn)
	if err != nil {
		m.logger.WarnContext(ctx, "Fact extraction failed",
			"user_id", turn.UserID, "turn_id", turn.ID, "error", err)
		return
	}

	for _, cand := range candidates {
		upserted, err := m.facts.Upsert(ctx, turn.UserID, turn.SessionID, cand)
		if err != nil {
			m.logger.WarnContext(ctx, "Storing extracted fact failed",
				"user_id", turn.UserID, "category", cand.Category, "error", err)
			continue
		}
		if upserted.Duplicate {
			result.FactsDuplicated++
		} else {
			result.FactsStored++
		}
	}
}

// ContextForQuery assembles the bounded context block for the user's current
// message: recent turns from the session buffer plus the user's most relevant
// stored facts. Read-side failures degrade to a smaller block rather than
// failing the request; the worst case is answering without memory.
func (m *Manager) ContextForQuery(ctx context.Context, userID, sessionID, query string) string {
	turns := m.buffer.Get(sessionID)
	if len(turns) == 0 && !m.buffer.Known(sessionID) {
		// Session unseen since startup; recover recency from the durable
		// log. Explicitly cleared sessions stay cleared.
		stored, err := m.store.RecentTurns(ctx, sessionID, m.buffer.capacity)
		if err != nil {
			m.logger.WarnContext(ctx, "Recent turn lookup failed, continuing without history",
				"session_id", sessionID, "error", err)
		} else {
			turns = stored
		}
	}

	facts, err := m.facts.Search(ctx, userID, query, m.builder.factLimit)
	if err != nil {
		m.logger.WarnContext(ctx, "Fact search failed, continuing without facts",
			"user_id", userID, "error", err)
		facts = nil
	}

	return m.builder.Build(turns, facts)
}

// IsNewUser reports whether Amy has never stored a turn for the user. Call
// before ProcessMessage persists the current message, or a first-time user
// will be greeted as returning.
func (m *Manager) IsNewUser(ctx context.Context, userID string) (bool, error) {
	return m.sessions.IsNewUser(ctx, userID)
}

// GreetingFor returns the greeting matching the user's history.
func (m *Manager) GreetingFor(ctx context.Context, userID string) (string, error) {
	return m.sessions.GreetingFor(ctx, userID)
}

// SearchConversations performs a substring search over the full turn log.
func (m *Manager) SearchConversations(ctx context.Context, text string, limit int) ([]database.Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("search text must not be empty", nil)
	}
	return m.store.SearchTurns(ctx, text, limit)
}

// FactsForUser returns everything Amy remembers about a user.
func (m *Manager) FactsForUser(ctx context.Context, userID string) ([]database.Fact, error) {
	return m.facts.ByUser(ctx, userID)
}

// DeduplicateUser runs the fact dedup sweep for one user.
func (m *Manager) DeduplicateUser(ctx context.Context, userID string) (int, error) {
	return m.facts.DeduplicateAll(ctx, userID)
}

// DeduplicateAllUsers sweeps every known user's facts and returns the total
// number removed. Per-user failures are logged and skipped so one bad user
// cannot stall the whole sweep.
func (m *Manager) DeduplicateAllUsers(ctx context.Context) (int, error) {
	userIDs, err := m.store.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		removed, err := m.facts.DeduplicateAll(ctx, userID)
		if err != nil {
			m.logger.WarnContext(ctx, "Dedup sweep failed for user, skipping",
				"user_id", userID, "error", err)
			continue
		}
		total += removed
	}
	return total, nil
}

// Stats returns the combined memory snapshot.
func (m *Manager) Stats(ctx context.Context) (*MemoryStats, error) {
	stored, err := m.store.GetStats(ctx)
	if err != nil {
		return nil, err
	}
	return &MemoryStats{
		Store:          *stored,
		ActiveSessions: m.buffer.ActiveSessions(),
	}, nil
}

// ClearSession drops a session's short-term buffer. The durable log keeps
// every turn; only conversational recency is forgotten.
func (m *Manager) ClearSession(sessionID string) {
	m.buffer.Clear(sessionID)
}

// Reset erases all memory: turns, facts, session records, and every buffer.
func (m *Manager) Reset(ctx context.Context) error {
	if err := m.store.Reset(ctx); err != nil {
		return err
	}
	m.buffer.ClearAll()
	m.logger.InfoContext(ctx, "All memory reset")
	return nil
}
