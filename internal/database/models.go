package database

import "time"

// Role identifies the author of a turn.
type Role string

// Valid roles. Assistant turns are stored but never mined for facts.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Platform identifies the transport a turn arrived on.
type Platform string

// Known platforms.
const (
	PlatformTelegram Platform = "telegram"
	PlatformWeb      Platform = "web"
)

// FactCategory classifies an extracted fact. The set is closed so that
// switches over categories are exhaustiveness-checkable.
type FactCategory string

// Valid fact categories.
const (
	CategoryPersonalInfo FactCategory = "personal_info"
	CategoryPreference   FactCategory = "preference"
	CategoryGoal         FactCategory = "goal"
	CategoryOther        FactCategory = "other"
)

// Valid reports whether c is a known category.
func (c FactCategory) Valid() bool {
	switch c {
	case CategoryPersonalInfo, CategoryPreference, CategoryGoal, CategoryOther:
		return true
	}
	return false
}

// Categories lists all valid fact categories, for stats and sweeps.
func Categories() []FactCategory {
	return []FactCategory{CategoryPersonalInfo, CategoryPreference, CategoryGoal, CategoryOther}
}

// Turn is one utterance in a conversation. Turns are immutable once stored
// and are only removed by an explicit administrative reset.
type Turn struct {
	ID        int64     `db:"id"`
	SessionID string    `db:"session_id"`
	UserID    string    `db:"user_id"`
	Role      Role      `db:"role"`
	Content   string    `db:"content"`
	Platform  Platform  `db:"platform"`
	Timestamp time.Time `db:"timestamp"`
	CreatedAt time.Time `db:"created_at"`
}

// Fact is a distilled, deduplicated claim about a user, extracted from the
// user's own messages. Content changes only through dedup merges.
type Fact struct {
	ID              int64        `db:"id"`
	UserID          string       `db:"user_id"`
	Category        FactCategory `db:"category"`
	Content         string       `db:"content"`
	SourceSessionID string       `db:"source_session_id"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

// SessionRecord is the per-user session bookkeeping used by greeting logic.
// SessionCount increments exactly once per new session id, never per message.
type SessionRecord struct {
	UserID       string    `db:"user_id"`
	FirstSeenAt  time.Time `db:"first_seen_at"`
	SessionCount int       `db:"session_count"`
}

// Stats is an aggregate snapshot of stored memory, for observability only.
type Stats struct {
	TotalTurns      int64
	TotalSessions   int64
	TotalUsers      int64
	FactsByCategory map[FactCategory]int64
}
