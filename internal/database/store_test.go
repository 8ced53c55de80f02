package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/amy-assistant/amy/internal/database"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "amy_test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil)
}

func testTurn(session, user, content string, role database.Role, ts time.Time) *database.Turn {
	return &database.Turn{
		SessionID: session,
		UserID:    user,
		Role:      role,
		Content:   content,
		Platform:  database.PlatformTelegram,
		Timestamp: ts,
	}
}

func TestTurnRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	ts := time.Now().UTC().Truncate(time.Second)
	turn := testTurn("s1", "u1", "Hi, I'm John", database.RoleUser, ts)

	if err := store.AppendTurn(ctx, turn); err != nil {
		t.Fatalf("AppendTurn() returned error: %v", err)
	}
	if turn.ID == 0 {
		t.Error("AppendTurn() did not set the turn ID")
	}

	got, err := store.RecentTurns(ctx, "s1", 1)
	if err != nil {
		t.Fatalf("RecentTurns() returned error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("RecentTurns() returned %d turns, want 1", len(got))
	}

	if got[0].Content != turn.Content {
		t.Errorf("Content = %q, want %q", got[0].Content, turn.Content)
	}
	if got[0].Role != database.RoleUser {
		t.Errorf("Role = %q, want %q", got[0].Role, database.RoleUser)
	}
	if !got[0].Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got[0].Timestamp, ts)
	}
	if got[0].Platform != database.PlatformTelegram {
		t.Errorf("Platform = %q, want %q", got[0].Platform, database.PlatformTelegram)
	}
}

func TestRecentTurnsOrderingAndIsolation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	contents := []string{"one", "two", "three", "four"}
	for i, c := range contents {
		if err := store.AppendTurn(ctx, testTurn("s1", "u1", c, database.RoleUser, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("AppendTurn() returned error: %v", err)
		}
	}
	// A turn in another session must not leak into s1 results.
	if err := store.AppendTurn(ctx, testTurn("s2", "u2", "other", database.RoleUser, base)); err != nil {
		t.Fatalf("AppendTurn() returned error: %v", err)
	}

	got, err := store.RecentTurns(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("RecentTurns() returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("RecentTurns() returned %d turns, want 3", len(got))
	}
	want := []string{"two", "three", "four"}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("turn[%d].Content = %q, want %q (oldest-first ordering)", i, got[i].Content, w)
		}
	}

	empty, err := store.RecentTurns(ctx, "unknown-session", 5)
	if err != nil {
		t.Fatalf("RecentTurns() for unknown session returned error: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("RecentTurns() for unknown session returned %d turns, want 0", len(empty))
	}
}

func TestCountTurnsForUser(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	count, err := store.CountTurnsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("CountTurnsForUser() returned error: %v", err)
	}
	if count != 0 {
		t.Errorf("count for unseen user = %d, want 0", count)
	}

	ts := time.Now().UTC()
	for i := 0; i < 3; i++ {
		if err := store.AppendTurn(ctx, testTurn("s1", "u1", "hello", database.RoleUser, ts)); err != nil {
			t.Fatalf("AppendTurn() returned error: %v", err)
		}
	}
	if err := store.AppendTurn(ctx, testTurn("s1", "u2", "hello", database.RoleUser, ts)); err != nil {
		t.Fatalf("AppendTurn() returned error: %v", err)
	}

	count, err = store.CountTurnsForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("CountTurnsForUser() returned error: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestSearchTurns(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	ts := time.Now().UTC()
	for _, c := range []string{"I like hiking", "what's the weather", "hiking boots recommendation"} {
		if err := store.AppendTurn(ctx, testTurn("s1", "u1", c, database.RoleUser, ts)); err != nil {
			t.Fatalf("AppendTurn() returned error: %v", err)
		}
	}

	got, err := store.SearchTurns(ctx, "hiking", 10)
	if err != nil {
		t.Fatalf("SearchTurns() returned error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("SearchTurns() returned %d turns, want 2", len(got))
	}
}

func TestFactCRUD(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	fact := &database.Fact{
		UserID:          "u1",
		Category:        database.CategoryPersonalInfo,
		Content:         "my name is Leon",
		SourceSessionID: "s1",
	}
	if err := store.InsertFact(ctx, fact); err != nil {
		t.Fatalf("InsertFact() returned error: %v", err)
	}
	if fact.ID == 0 {
		t.Error("InsertFact() did not set the fact ID")
	}

	pref := &database.Fact{UserID: "u1", Category: database.CategoryPreference, Content: "i like hiking"}
	if err := store.InsertFact(ctx, pref); err != nil {
		t.Fatalf("InsertFact() returned error: %v", err)
	}

	all, err := store.FactsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("FactsByUser() returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("FactsByUser() returned %d facts, want 2", len(all))
	}

	personal, err := store.FactsByCategory(ctx, "u1", database.CategoryPersonalInfo)
	if err != nil {
		t.Fatalf("FactsByCategory() returned error: %v", err)
	}
	if len(personal) != 1 || personal[0].Content != "my name is Leon" {
		t.Errorf("FactsByCategory() = %+v, want the single personal_info fact", personal)
	}

	if err := store.UpdateFactContent(ctx, fact.ID, "my name is John", "s2"); err != nil {
		t.Fatalf("UpdateFactContent() returned error: %v", err)
	}
	personal, err = store.FactsByCategory(ctx, "u1", database.CategoryPersonalInfo)
	if err != nil {
		t.Fatalf("FactsByCategory() returned error: %v", err)
	}
	if personal[0].Content != "my name is John" {
		t.Errorf("updated content = %q, want %q", personal[0].Content, "my name is John")
	}
	if personal[0].SourceSessionID != "s2" {
		t.Errorf("updated source session = %q, want %q", personal[0].SourceSessionID, "s2")
	}

	if err := store.DeleteFacts(ctx, []int64{pref.ID}); err != nil {
		t.Fatalf("DeleteFacts() returned error: %v", err)
	}
	all, err = store.FactsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("FactsByUser() returned error: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("after delete FactsByUser() returned %d facts, want 1", len(all))
	}
}

func TestRecordSession(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	record, err := store.GetSessionRecord(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSessionRecord() returned error: %v", err)
	}
	if record != nil {
		t.Errorf("GetSessionRecord() for unseen user = %+v, want nil", record)
	}

	at := time.Now().UTC().Truncate(time.Second)
	isNew, err := store.RecordSession(ctx, "u1", "s1", at)
	if err != nil {
		t.Fatalf("RecordSession() returned error: %v", err)
	}
	if !isNew {
		t.Error("first RecordSession() = false, want true")
	}

	// Repeating the same session must not bump the count.
	isNew, err = store.RecordSession(ctx, "u1", "s1", at.Add(time.Minute))
	if err != nil {
		t.Fatalf("RecordSession() returned error: %v", err)
	}
	if isNew {
		t.Error("repeated RecordSession() = true, want false")
	}

	isNew, err = store.RecordSession(ctx, "u1", "s2", at.Add(time.Hour))
	if err != nil {
		t.Fatalf("RecordSession() returned error: %v", err)
	}
	if !isNew {
		t.Error("RecordSession() with new session id = false, want true")
	}

	record, err = store.GetSessionRecord(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSessionRecord() returned error: %v", err)
	}
	if record == nil {
		t.Fatal("GetSessionRecord() = nil, want record")
	}
	if record.SessionCount != 2 {
		t.Errorf("SessionCount = %d, want 2", record.SessionCount)
	}
	if !record.FirstSeenAt.Equal(at) {
		t.Errorf("FirstSeenAt = %v, want %v", record.FirstSeenAt, at)
	}
}

func TestListUserIDs(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	ids, err := store.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs() returned error: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ListUserIDs() on empty store returned %v, want none", ids)
	}

	ts := time.Now().UTC()
	for _, user := range []string{"u2", "u1", "u1"} {
		if err := store.AppendTurn(ctx, testTurn("s1", user, "hello", database.RoleUser, ts)); err != nil {
			t.Fatalf("AppendTurn() returned error: %v", err)
		}
	}

	ids, err = store.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs() returned error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "u1" || ids[1] != "u2" {
		t.Errorf("ListUserIDs() = %v, want [u1 u2]", ids)
	}
}

func TestStatsAndReset(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	ts := time.Now().UTC()
	if err := store.AppendTurn(ctx, testTurn("s1", "u1", "hello", database.RoleUser, ts)); err != nil {
		t.Fatalf("AppendTurn() returned error: %v", err)
	}
	if err := store.AppendTurn(ctx, testTurn("s2", "u2", "hi there", database.RoleUser, ts)); err != nil {
		t.Fatalf("AppendTurn() returned error: %v", err)
	}
	if err := store.InsertFact(ctx, &database.Fact{UserID: "u1", Category: database.CategoryGoal, Content: "i want to learn go"}); err != nil {
		t.Fatalf("InsertFact() returned error: %v", err)
	}
	if _, err := store.RecordSession(ctx, "u1", "s1", ts); err != nil {
		t.Fatalf("RecordSession() returned error: %v", err)
	}

	stats, err := store.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() returned error: %v", err)
	}
	if stats.TotalTurns != 2 {
		t.Errorf("TotalTurns = %d, want 2", stats.TotalTurns)
	}
	if stats.TotalSessions != 2 {
		t.Errorf("TotalSessions = %d, want 2", stats.TotalSessions)
	}
	if stats.TotalUsers != 2 {
		t.Errorf("TotalUsers = %d, want 2", stats.TotalUsers)
	}
	if stats.FactsByCategory[database.CategoryGoal] != 1 {
		t.Errorf("goal fact count = %d, want 1", stats.FactsByCategory[database.CategoryGoal])
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset() returned error: %v", err)
	}

	stats, err = store.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() after reset returned error: %v", err)
	}
	if stats.TotalTurns != 0 || len(stats.FactsByCategory) != 0 {
		t.Errorf("stats after reset = %+v, want empty", stats)
	}

	record, err := store.GetSessionRecord(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSessionRecord() after reset returned error: %v", err)
	}
	if record != nil {
		t.Errorf("session record survived reset: %+v", record)
	}
}
