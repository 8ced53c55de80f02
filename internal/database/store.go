package database

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/amy-assistant/amy/internal/errors"
)

// Store defines the interface for database operations. All failures are
// reported as storage errors; input validation belongs to the callers.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// AppendTurn persists a turn and fills in its generated ID.
	AppendTurn(ctx context.Context, turn *Turn) error

	// RecentTurns retrieves the most recent 'limit' turns for a session,
	// oldest first. An unknown session yields an empty slice, not an error.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)

	// CountTurnsForUser returns the total turns ever stored for a user.
	CountTurnsForUser(ctx context.Context, userID string) (int64, error)

	// ListUserIDs returns every user id with at least one stored turn.
	ListUserIDs(ctx context.Context) ([]string, error)

	// SearchTurns performs a best-effort substring search across all turns.
	SearchTurns(ctx context.Context, text string, limit int) ([]Turn, error)

	// InsertFact persists a fact and fills in its generated ID.
	InsertFact(ctx context.Context, fact *Fact) error

	// FactsByUser retrieves all facts for a user, oldest first.
	FactsByUser(ctx context.Context, userID string) ([]Fact, error)

	// FactsByCategory retrieves a user's facts in one category, oldest first.
	FactsByCategory(ctx context.Context, userID string, category FactCategory) ([]Fact, error)

	// UpdateFactContent rewrites a fact's content in place. Used only for
	// last-write-wins replacement of identity attributes during dedup.
	UpdateFactContent(ctx context.Context, id int64, content, sourceSessionID string) error

	// DeleteFacts removes the facts with the given IDs.
	DeleteFacts(ctx context.Context, ids []int64) error

	// RecordSession registers that a session id was seen for a user.
	// Returns true the first time this (user, session) pair appears.
	RecordSession(ctx context.Context, userID, sessionID string, at time.Time) (bool, error)

	// GetSessionRecord returns per-user session bookkeeping, or nil when the
	// user has never started a session.
	GetSessionRecord(ctx context.Context, userID string) (*SessionRecord, error)

	// GetStats returns aggregate counts across the whole store.
	GetStats(ctx context.Context) (*Stats, error)

	// Reset deletes all turns, facts, and session records in one transaction.
	Reset(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) AppendTurn(ctx context.Context, turn *Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO turns (session_id, user_id, role, content, platform, timestamp, created_at)
        VALUES (:session_id, :user_id, :role, :content, :platform, :timestamp, :created_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, turn)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error appending turn",
			"session_id", turn.SessionID, "user_id", turn.UserID, "error", err)
		return apperrors.NewStorageError("failed to append turn", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		turn.ID = id
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after appending turn",
			"session_id", turn.SessionID, "error", err)
	}

	s.logger.DebugContext(ctx, "Turn appended",
		"session_id", turn.SessionID, "user_id", turn.UserID, "turn_id", turn.ID, "role", turn.Role)
	return nil
}

func (s *sqlxStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 20
	}

	var turns []Turn
	query := `
        SELECT id, session_id, user_id, role, content, platform, timestamp, created_at
        FROM turns
        WHERE session_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?;
    `
	if err := s.db.SelectContext(ctx, &turns, query, sessionID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent turns", "session_id", sessionID, "error", err)
		return nil, apperrors.NewStorageError("failed to get recent turns", err)
	}

	// Query returns newest-first; callers expect chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *sqlxStore) CountTurnsForUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM turns WHERE user_id = ?`, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error counting turns for user", "user_id", userID, "error", err)
		return 0, apperrors.NewStorageError("failed to count turns", err)
	}
	return count, nil
}

func (s *sqlxStore) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	query := `SELECT DISTINCT user_id FROM turns ORDER BY user_id ASC;`
	if err := s.db.SelectContext(ctx, &ids, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing user ids", "error", err)
		return nil, apperrors.NewStorageError("failed to list user ids", err)
	}
	return ids, nil
}

func (s *sqlxStore) SearchTurns(ctx context.Context, text string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 50
	}

	var turns []Turn
	query := `
        SELECT id, session_id, user_id, role, content, platform, timestamp, created_at
        FROM turns
        WHERE content LIKE '%' || ? || '%'
        ORDER BY timestamp ASC, id ASC
        LIMIT ?;
    `
	if err := s.db.SelectContext(ctx, &turns, query, text, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error searching turns", "error", err)
		return nil, apperrors.NewStorageError("failed to search turns", err)
	}
	return turns, nil
}

func (s *sqlxStore) InsertFact(ctx context.Context, fact *Fact) error {
	now := time.Now().UTC()
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = now
	}
	fact.UpdatedAt = now

	query := `
        INSERT INTO facts (user_id, category, content, source_session_id, created_at, updated_at)
        VALUES (:user_id, :category, :content, :source_session_id, :created_at, :updated_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, fact)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting fact",
			"user_id", fact.UserID, "category", fact.Category, "error", err)
		return apperrors.NewStorageError("failed to insert fact", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		fact.ID = id
	}

	s.logger.DebugContext(ctx, "Fact inserted",
		"user_id", fact.UserID, "category", fact.Category, "fact_id", fact.ID)
	return nil
}

func (s *sqlxStore) FactsByUser(ctx context.Context, userID string) ([]Fact, error) {
	var facts []Fact
	query := `
        SELECT id, user_id, category, content, source_session_id, created_at, updated_at
        FROM facts
        WHERE user_id = ?
        ORDER BY created_at ASC, id ASC;
    `
	if err := s.db.SelectContext(ctx, &facts, query, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error getting facts for user", "user_id", userID, "error", err)
		return nil, apperrors.NewStorageError("failed to get facts", err)
	}
	return facts, nil
}

func (s *sqlxStore) FactsByCategory(ctx context.Context, userID string, category FactCategory) ([]Fact, error) {
	var facts []Fact
	query := `
        SELECT id, user_id, category, content, source_session_id, created_at, updated_at
        FROM facts
        WHERE user_id = ? AND category = ?
        ORDER BY created_at ASC, id ASC;
    `
	if err := s.db.SelectContext(ctx, &facts, query, userID, category); err != nil {
		s.logger.ErrorContext(ctx, "Error getting facts by category",
			"user_id", userID, "category", category, "error", err)
		return nil, apperrors.NewStorageError("failed to get facts by category", err)
	}
	return facts, nil
}

func (s *sqlxStore) UpdateFactContent(ctx context.Context, id int64, content, sourceSessionID string) error {
	query := `
        UPDATE facts
        SET content = ?, source_session_id = ?, updated_at = ?
        WHERE id = ?;
    `
	result, err := s.db.ExecContext(ctx, query, content, sourceSessionID, time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating fact content", "fact_id", id, "error", err)
		return apperrors.NewStorageError("failed to update fact", err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected != 1 {
		s.logger.WarnContext(ctx, "Unexpected number of rows affected when updating fact",
			"fact_id", id, "affected", affected)
	}
	return nil
}

func (s *sqlxStore) DeleteFacts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM facts WHERE id IN (?)`, ids)
	if err != nil {
		return apperrors.NewStorageError("failed to build fact delete query", err)
	}
	query = s.db.Rebind(query)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting facts", "count", len(ids), "error", err)
		return apperrors.NewStorageError("failed to delete facts", err)
	}

	s.logger.DebugContext(ctx, "Facts deleted", "count", len(ids))
	return nil
}

func (s *sqlxStore) RecordSession(ctx context.Context, userID, sessionID string, at time.Time) (bool, error) {
	query := `
        INSERT OR IGNORE INTO user_sessions (user_id, session_id, started_at)
        VALUES (?, ?, ?);
    `
	result, err := s.db.ExecContext(ctx, query, userID, sessionID, at.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error recording session",
			"user_id", userID, "session_id", sessionID, "error", err)
		return false, apperrors.NewStorageError("failed to record session", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not get affected row count when recording session", "error", err)
		return false, nil
	}

	isNew := affected == 1
	if isNew {
		s.logger.InfoContext(ctx, "New session recorded", "user_id", userID, "session_id", sessionID)
	}
	return isNew, nil
}

func (s *sqlxStore) GetSessionRecord(ctx context.Context, userID string) (*SessionRecord, error) {
	record := SessionRecord{UserID: userID}

	// Aggregate expressions lose the DATETIME decltype the driver needs for
	// time scanning, so first_seen_at is fetched as a plain column.
	err := s.db.GetContext(ctx, &record.FirstSeenAt,
		`SELECT started_at FROM user_sessions WHERE user_id = ? ORDER BY started_at ASC LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error getting session record", "user_id", userID, "error", err)
		return nil, apperrors.NewStorageError("failed to get session record", err)
	}

	if err := s.db.GetContext(ctx, &record.SessionCount,
		`SELECT COUNT(*) FROM user_sessions WHERE user_id = ?`, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error counting sessions", "user_id", userID, "error", err)
		return nil, apperrors.NewStorageError("failed to count sessions", err)
	}
	return &record, nil
}

func (s *sqlxStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{FactsByCategory: make(map[FactCategory]int64)}

	if err := s.db.GetContext(ctx, &stats.TotalTurns, `SELECT COUNT(*) FROM turns`); err != nil {
		return nil, apperrors.NewStorageError("failed to count turns", err)
	}
	if err := s.db.GetContext(ctx, &stats.TotalSessions,
		`SELECT COUNT(DISTINCT session_id) FROM turns`); err != nil {
		return nil, apperrors.NewStorageError("failed to count sessions", err)
	}
	if err := s.db.GetContext(ctx, &stats.TotalUsers,
		`SELECT COUNT(DISTINCT user_id) FROM turns`); err != nil {
		return nil, apperrors.NewStorageError("failed to count users", err)
	}

	rows := []struct {
		Category FactCategory `db:"category"`
		Count    int64        `db:"count"`
	}{}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT category, COUNT(*) AS count FROM facts GROUP BY category`); err != nil {
		return nil, apperrors.NewStorageError("failed to count facts", err)
	}
	for _, row := range rows {
		stats.FactsByCategory[row.Category] = row.Count
	}

	return stats, nil
}

func (s *sqlxStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for memory reset", "error", err)
		return apperrors.NewStorageError("failed to begin reset transaction", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	var turnsDeleted, factsDeleted int64
	for _, table := range []string{"turns", "facts", "user_sessions"} {
		result, err := tx.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error deleting rows during reset", "table", table, "error", err)
			return apperrors.NewStorageError("failed to delete "+table+" during reset", err)
		}
		count, _ := result.RowsAffected()
		switch table {
		case "turns":
			turnsDeleted = count
		case "facts":
			factsDeleted = count
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit reset transaction", "error", err)
		return apperrors.NewStorageError("failed to commit reset transaction", err)
	}
	tx = nil

	s.logger.InfoContext(ctx, "Successfully reset all memory",
		"turns_deleted", turnsDeleted, "facts_deleted", factsDeleted)
	return nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return apperrors.NewStorageError("failed to execute VACUUM", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
