package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/amy-assistant/amy/internal/database"
)

// SessionTracker decides how Amy greets users and keeps per-user session
// bookkeeping. "New user" means no turn has ever been persisted for the
// user, so the check must run before the current message is stored.
type SessionTracker struct {
	store  database.Store
	logger *slog.Logger

	greetingNew       string
	greetingReturning string
}

// NewSessionTracker creates a tracker using the configured greeting texts.
func NewSessionTracker(store database.Store, greetingNew, greetingReturning string, logger *slog.Logger) *SessionTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionTracker{
		store:             store,
		logger:            logger.With("component", "session_tracker"),
		greetingNew:       greetingNew,
		greetingReturning: greetingReturning,
	}
}

// IsNewUser reports whether the user has no persisted turns. The durable
// turn log is the source of truth; buffer or session state says nothing
// about whether Amy has met the user before.
func (s *SessionTracker) IsNewUser(ctx context.Context, userID string) (bool, error) {
	count, err := s.store.CountTurnsForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// GreetingFor returns the greeting appropriate for the user right now.
func (s *SessionTracker) GreetingFor(ctx context.Context, userID string) (string, error) {
	isNew, err := s.IsNewUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if isNew {
		return s.greetingNew, nil
	}
	return s.greetingReturning, nil
}

// RecordSession notes that a session id was seen for a user. The session
// count advances only the first time a (user, session) pair appears.
func (s *SessionTracker) RecordSession(ctx context.Context, userID, sessionID string) (bool, error) {
	isNew, err := s.store.RecordSession(ctx, userID, sessionID, time.Now().UTC())
	if err != nil {
		return false, err
	}
	if isNew {
		s.logger.InfoContext(ctx, "Session started", "user_id", userID, "session_id", sessionID)
	}
	return isNew, nil
}

// Record returns the user's session bookkeeping, or nil for unseen users.
func (s *SessionTracker) Record(ctx context.Context, userID string) (*database.SessionRecord, error) {
	return s.store.GetSessionRecord(ctx, userID)
}
