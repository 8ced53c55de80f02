package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/amy-assistant/amy/internal/database"
	apperrors "github.com/amy-assistant/amy/internal/errors"
)

func newManagerWithStore(store database.Store) *Manager {
	return NewManager(
		store,
		NewBuffer(20),
		NewFacts(store, 0.8, 30, nil),
		NewRuleExtractor(),
		NewSessionTracker(store, testGreetingNew, testGreetingReturning, nil),
		NewContextBuilder(500, 3, 3),
		nil,
	)
}

func newManager(t *testing.T) (*Manager, database.Store) {
	t.Helper()
	store := newStore(t)
	return newManagerWithStore(store), store
}

func TestProcessMessageValidation(t *testing.T) {
	t.Parallel()
	m, _ := newManager(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		userID    string
		sessionID string
		role      database.Role
		content   string
	}{
		{"empty user id", "", "s1", database.RoleUser, "hello"},
		{"empty session id", "u1", "", database.RoleUser, "hello"},
		{"empty content", "u1", "s1", database.RoleUser, "   "},
		{"invalid role", "u1", "s1", database.Role("narrator"), "hello"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := m.ProcessMessage(ctx, tc.userID, tc.sessionID, tc.role, tc.content, database.PlatformTelegram)
			if err == nil {
				t.Fatal("ProcessMessage() accepted invalid input")
			}
			if !apperrors.IsValidation(err) {
				t.Errorf("expected a validation error, got %v (code %s)", err, apperrors.Code(err))
			}
		})
	}
}

func TestFirstContactScenario(t *testing.T) {
	t.Parallel()
	m, _ := newManager(t)
	ctx := context.Background()

	// Greeting decision happens before the first message is persisted.
	isNew, err := m.IsNewUser(ctx, "u1")
	if err != nil {
		t.Fatalf("IsNewUser() returned error: %v", err)
	}
	if !isNew {
		t.Fatal("first-contact user must be new before any turn is stored")
	}
	greeting, err := m.GreetingFor(ctx, "u1")
	if err != nil {
		t.Fatalf("GreetingFor() returned error: %v", err)
	}
	if greeting != testGreetingNew {
		t.Errorf("GreetingFor() = %q, want the new-user greeting", greeting)
	}

	res, err := m.ProcessMessage(ctx, "u1", "s1", database.RoleUser, "Hi, my name is John", database.PlatformTelegram)
	if err != nil {
		t.Fatalf("ProcessMessage() returned error: %v", err)
	}
	if !res.NewSession {
		t.Error("first message must open a new session")
	}
	if res.FactsStored != 1 {
		t.Errorf("FactsStored = %d, want 1 (the introduction)", res.FactsStored)
	}

	isNew, err = m.IsNewUser(ctx, "u1")
	if err != nil {
		t.Fatalf("IsNewUser() returned error: %v", err)
	}
	if isNew {
		t.Error("user must stop being new once a turn is persisted")
	}

	if _, err := m.ProcessMessage(ctx, "u1", "s1", database.RoleAssistant, "Nice to meet you, John!", database.PlatformTelegram); err != nil {
		t.Fatalf("ProcessMessage() returned error: %v", err)
	}

	block := m.ContextForQuery(ctx, "u1", "s1", "what is my name?")
	if !strings.Contains(block, "user: Hi, my name is John") {
		t.Errorf("context missing the buffered turn: %q", block)
	}
	if !strings.Contains(block, "- personal_info: Hi, my name is John") {
		t.Errorf("context missing the extracted name fact: %q", block)
	}
	if len(block) > 500 {
		t.Errorf("context is %d chars, budget 500", len(block))
	}
}

func TestRepeatedIntroductionStoresOneFact(t *testing.T) {
	t.Parallel()
	m, store := newManager(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		res, err := m.ProcessMessage(ctx, "u1", "s1", database.RoleUser, "My name is John", database.PlatformTelegram)
		if err != nil {
			t.Fatalf("ProcessMessage() attempt %d returned error: %v", i, err)
		}
		if i > 0 && res.FactsStored != 0 {
			t.Errorf("attempt %d stored %d new facts, want 0", i, res.FactsStored)
		}
	}

	facts, err := store.FactsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("FactsByUser() returned error: %v", err)
	}
	if len(facts) != 1 {
		t.Errorf("expected 1 fact after repeated introductions, got %d", len(facts))
	}
}

func TestAssistantTurnsAreNotMined(t *testing.T) {
	t.Parallel()
	m, store := newManager(t)
	ctx := context.Background()

	res, err := m.ProcessMessage(ctx, "u1", "s1", database.RoleAssistant, "My name is Amy", database.PlatformTelegram)
	if err != nil {
		t.Fatalf("ProcessMessage() returned error: %v", err)
	}
	if res.FactsStored != 0 {
		t.Errorf("assistant turn stored %d facts, want 0", res.FactsStored)
	}

	facts, err := store.FactsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("FactsByUser() returned error: %v", err)
	}
	if len(facts) != 0 {
		t.Errorf("expected no facts from assistant turns, got %d", len(facts))
	}
}

func TestContextForQueryFallsBackToDurableLog(t *testing.T) {
	t.Parallel()
	m, store := newManager(t)
	ctx := context.Background()

	if _, err := m.ProcessMessage(ctx, "u1", "s1", database.RoleUser, "I like coffee", database.PlatformTelegram); err != nil {
		t.Fatalf("ProcessMessage() returned error: %v", err)
	}

	// Simulate a restart: a fresh manager over the same durable store.
	restarted := newManagerWithStore(store)

	block := restarted.ContextForQuery(ctx, "u1", "s1", "what do I like?")
	if !strings.Contains(block, "user: I like coffee") {
		t.Errorf("context should recover turns from the durable log: %q", block)
	}
}

func TestClearSessionForgetsRecency(t *testing.T) {
	t.Parallel()
	m, _ := newManager(t)
	ctx := context.Background()

	if _, err := m.ProcessMessage(ctx, "u1", "s1", database.RoleUser, "the quick brown fox", database.PlatformTelegram); err != nil {
		t.Fatalf("ProcessMessage() returned error: %v", err)
	}

	m.ClearSession("s1")

	// The forget must not be undone by the durable-log fallback.
	block := m.ContextForQuery(ctx, "u1", "s1", "fox?")
	if strings.Contains(block, "quick brown fox") {
		t.Errorf("cleared session leaked turns back into context: %q", block)
	}
}

func TestContextForQueryEmptyForStranger(t *testing.T) {
	t.Parallel()
	m, _ := newManager(t)

	if block := m.ContextForQuery(context.Background(), "ghost", "s9", "hello"); block != "" {
		t.Errorf("stranger with no history should yield empty context, got %q", block)
	}
}

func TestSearchConversations(t *testing.T) {
	t.Parallel()
	m, _ := newManager(t)
	ctx := context.Background()

	if _, err := m.ProcessMessage(ctx, "u1", "s1", database.RoleUser, "the quick brown fox", database.PlatformTelegram); err != nil {
		t.Fatalf("ProcessMessage() returned error: %v", err)
	}

	got, err := m.SearchConversations(ctx, "brown fox", 10)
	if err != nil {
		t.Fatalf("SearchConversations() returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("SearchConversations() returned %d turns, want 1", len(got))
	}

	if _, err := m.SearchConversations(ctx, "  ", 10); !apperrors.IsValidation(err) {
		t.Errorf("blank search text should be a validation error, got %v", err)
	}
}

func TestStatsAndReset(t *testing.T) {
	t.Parallel()
	m, _ := newManager(t)
	ctx := context.Background()

	if _, err := m.ProcessMessage(ctx, "u1", "s1", database.RoleUser, "My name is John", database.PlatformTelegram); err != nil {
		t.Fatalf("ProcessMessage() returned error: %v", err)
	}
	if _, err := m.ProcessMessage(ctx, "u2", "s2", database.RoleUser, "I like coffee", database.PlatformTelegram); err != nil {
		t.Fatalf("ProcessMessage() returned error: %v", err)
	}

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() returned error: %v", err)
	}
	if stats.Store.TotalTurns != 2 {
		t.Errorf("TotalTurns = %d, want 2", stats.Store.TotalTurns)
	}
	if stats.Store.TotalUsers != 2 {
		t.Errorf("TotalUsers = %d, want 2", stats.Store.TotalUsers)
	}
	if stats.ActiveSessions != 2 {
		t.Errorf("ActiveSessions = %d, want 2", stats.ActiveSessions)
	}

	if err := m.Reset(ctx); err != nil {
		t.Fatalf("Reset() returned error: %v", err)
	}

	stats, err = m.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() returned error: %v", err)
	}
	if stats.Store.TotalTurns != 0 || stats.ActiveSessions != 0 {
		t.Errorf("after reset: turns=%d sessions=%d, want 0/0",
			stats.Store.TotalTurns, stats.ActiveSessions)
	}

	isNew, err := m.IsNewUser(ctx, "u1")
	if err != nil {
		t.Fatalf("IsNewUser() returned error: %v", err)
	}
	if !isNew {
		t.Error("users must be new again after a full reset")
	}
}

func TestDeduplicateUser(t *testing.T) {
	t.Parallel()
	m, store := newManager(t)
	ctx := context.Background()

	// Plant duplicates directly, as if written before dedup existed.
	for _, content := range []string{"I like coffee", "i like coffee!"} {
		fact := database.Fact{UserID: "u1", Category: database.CategoryPreference, Content: content}
		if err := store.InsertFact(ctx, &fact); err != nil {
			t.Fatalf("InsertFact() returned error: %v", err)
		}
	}

	removed, err := m.DeduplicateUser(ctx, "u1")
	if err != nil {
		t.Fatalf("DeduplicateUser() returned error: %v", err)
	}
	if removed != 1 {
		t.Errorf("DeduplicateUser() removed %d, want 1", removed)
	}
}
