package memory

import (
	"context"
	"reflect"
	"testing"

	"github.com/amy-assistant/amy/internal/database"
)

func userTurn(content string) database.Turn {
	return database.Turn{
		SessionID: "s1",
		UserID:    "u1",
		Role:      database.RoleUser,
		Content:   content,
	}
}

func TestRuleExtractorPatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    []Candidate
	}{
		{
			name:    "name introduction",
			content: "Hi, my name is Leon",
			want:    []Candidate{{database.CategoryPersonalInfo, "Hi, my name is Leon"}},
		},
		{
			name:    "standalone name",
			content: "Leon",
			want:    []Candidate{{database.CategoryPersonalInfo, "Leon"}},
		},
		{
			name:    "residence",
			content: "I live in Berlin",
			want:    []Candidate{{database.CategoryPersonalInfo, "I live in Berlin"}},
		},
		{
			name:    "preference",
			content: "I like strong coffee in the morning",
			want:    []Candidate{{database.CategoryPreference, "I like strong coffee in the morning"}},
		},
		{
			name:    "goal",
			content: "I want to learn Go this year",
			want:    []Candidate{{database.CategoryGoal, "I want to learn Go this year"}},
		},
		{
			name:    "identity and goal in one statement",
			content: "I'm Maria and I want to run a marathon",
			want: []Candidate{
				{database.CategoryPersonalInfo, "I'm Maria and I want to run a marathon"},
				{database.CategoryGoal, "I'm Maria and I want to run a marathon"},
			},
		},
		{
			name:    "ambiguous chatter yields nothing",
			content: "what's the weather like today?",
			want:    nil,
		},
		{
			name:    "empty content yields nothing",
			content: "   ",
			want:    nil,
		},
		{
			name:    "lowercase single word is not a name",
			content: "hello",
			want:    nil,
		},
	}

	e := NewRuleExtractor()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := e.Extract(context.Background(), userTurn(tc.content))
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Extract(%q) = %+v, want %+v", tc.content, got, tc.want)
			}
		})
	}
}

func TestRuleExtractorIgnoresAssistantTurns(t *testing.T) {
	t.Parallel()

	turn := database.Turn{
		SessionID: "s1",
		UserID:    "u1",
		Role:      database.RoleAssistant,
		Content:   "My name is Amy",
	}
	got, err := NewRuleExtractor().Extract(context.Background(), turn)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got != nil {
		t.Errorf("assistant turns must not be mined, got %+v", got)
	}
}

func TestRuleExtractorIdempotent(t *testing.T) {
	t.Parallel()

	e := NewRuleExtractor()
	turn := userTurn("My name is Leon and I want to learn Go")

	first, err := e.Extract(context.Background(), turn)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	second, err := e.Extract(context.Background(), turn)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated extraction differs: %+v vs %+v", first, second)
	}
}

type fakeGenerator struct {
	calls     int
	responses []Candidate
	err       error
}

func (f *fakeGenerator) GenerateFacts(_ context.Context, _ string) ([]Candidate, error) {
	f.calls++
	return f.responses, f.err
}

func TestLLMExtractorCachesByContent(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []Candidate{{database.CategoryPreference, "I like tea"}}}
	e := NewLLMExtractor(gen, nil)
	turn := userTurn("I like tea")

	first, err := e.Extract(context.Background(), turn)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	second, err := e.Extract(context.Background(), turn)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if gen.calls != 1 {
		t.Errorf("expected 1 generator call for identical content, got %d", gen.calls)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached extraction differs: %+v vs %+v", first, second)
	}
}

func TestLLMExtractorAbsorbsModelErrors(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: context.DeadlineExceeded}
	e := NewLLMExtractor(gen, nil)

	got, err := e.Extract(context.Background(), userTurn("I like tea"))
	if err != nil {
		t.Fatalf("model errors must not fail extraction, got %v", err)
	}
	if got != nil {
		t.Errorf("expected zero candidates on model failure, got %+v", got)
	}
}

func TestLLMExtractorDropsInvalidCategories(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{responses: []Candidate{
		{database.FactCategory("gossip"), "made up"},
		{database.CategoryGoal, "I want to learn Go"},
	}}
	e := NewLLMExtractor(gen, nil)

	got, err := e.Extract(context.Background(), userTurn("I want to learn Go"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	want := []Candidate{{database.CategoryGoal, "I want to learn Go"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract = %+v, want %+v", got, want)
	}
}
