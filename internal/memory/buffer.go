// Package memory implements Amy's tiered conversation memory: a bounded
// short-term buffer of recent turns, a deduplicated long-term fact store,
// rule- or LLM-based fact extraction, session-aware greeting logic, and
// bounded context assembly for LLM prompts. The Manager type is the façade
// the transport layer talks to.
package memory

import (
	"sync"

	"github.com/amy-assistant/amy/internal/database"
)

// Buffer is the short-term memory: a fixed-capacity ring of the most recent
// turns per session. When a ring is full the oldest turn is evicted. The
// capacity bound is a hard invariant; rings never grow past it.
//
// Buffer holds evictable copies only; the durable record of every turn
// lives in the database store. It is safe for concurrent use.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	sessions map[string][]database.Turn
}

// DefaultBufferCapacity is the per-session ring size used when the
// configured capacity is not positive.
const DefaultBufferCapacity = 20

// NewBuffer creates a Buffer with the given per-session capacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{
		capacity: capacity,
		sessions: make(map[string][]database.Turn),
	}
}

// Push appends a turn to the session's ring, evicting the oldest turn when
// the ring is at capacity.
func (b *Buffer) Push(sessionID string, turn database.Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ring := append(b.sessions[sessionID], turn)
	if len(ring) > b.capacity {
		ring = ring[len(ring)-b.capacity:]
	}
	b.sessions[sessionID] = ring
}

// Get returns a snapshot of the session's turns, most-recent-last.
// Unknown sessions yield an empty slice.
func (b *Buffer) Get(sessionID string) []database.Turn {
	b.mu.Lock()
	defer b.mu.Unlock()

	ring := b.sessions[sessionID]
	out := make([]database.Turn, len(ring))
	copy(out, ring)
	return out
}

// Clear empties the ring for a session but keeps it marked as known, so the
// forget is not undone by reloading the durable log.
func (b *Buffer) Clear(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[sessionID] = nil
}

// ClearAll drops every session ring, known state included. Used on full
// memory resets; afterwards every session reads as unseen.
func (b *Buffer) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions = make(map[string][]database.Turn)
}

// Known reports whether the session has been seen since startup, including
// sessions that were explicitly cleared.
func (b *Buffer) Known(sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.sessions[sessionID]
	return ok
}

// Len returns the number of buffered turns for a session.
func (b *Buffer) Len(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions[sessionID])
}

// ActiveSessions returns the number of sessions currently holding turns.
func (b *Buffer) ActiveSessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	active := 0
	for _, ring := range b.sessions {
		if len(ring) > 0 {
			active++
		}
	}
	return active
}
