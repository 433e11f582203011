package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"newsmosaic/internal/core"
	"newsmosaic/internal/store"
)

func newTestMemory(t *testing.T) *Store {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestGetUnknownSession(t *testing.T) {
	s := newTestMemory(t)
	mem, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if mem != nil {
		t.Errorf("unknown session should yield nil, got %+v", mem)
	}
}

func TestAppendTurnCreatesAndTruncates(t *testing.T) {
	s := newTestMemory(t)
	ctx := context.Background()

	for i := 0; i < core.MaxHistoryTurns+4; i++ {
		turn := core.ConversationTurn{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			User:      fmt.Sprintf("question %d", i),
			Assistant: fmt.Sprintf("answer %d", i),
		}
		if err := s.AppendTurn(ctx, "s1", turn); err != nil {
			t.Fatal(err)
		}
	}

	mem, err := s.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if mem == nil {
		t.Fatal("session missing after append")
	}
	if len(mem.ConversationHistory) != core.MaxHistoryTurns {
		t.Fatalf("history len = %d, want %d", len(mem.ConversationHistory), core.MaxHistoryTurns)
	}
	// oldest surviving turn is the (extra)th one
	if got := mem.ConversationHistory[0].User; got != "question 4" {
		t.Errorf("oldest turn = %q, want question 4", got)
	}
	last := mem.ConversationHistory[len(mem.ConversationHistory)-1]
	if last.Assistant != fmt.Sprintf("answer %d", core.MaxHistoryTurns+3) {
		t.Errorf("newest turn = %q", last.Assistant)
	}
}

func TestSaveTruncates(t *testing.T) {
	s := newTestMemory(t)
	ctx := context.Background()

	mem := &core.SessionMemory{UserContext: map[string]string{"city": "上海"}}
	for i := 0; i < 15; i++ {
		mem.ConversationHistory = append(mem.ConversationHistory, core.ConversationTurn{
			User: fmt.Sprintf("u%d", i), Assistant: fmt.Sprintf("a%d", i),
		})
	}
	if err := s.Save(ctx, "s1", mem); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get(ctx, "s1")
	if len(got.ConversationHistory) != core.MaxHistoryTurns {
		t.Fatalf("history len = %d, want %d", len(got.ConversationHistory), core.MaxHistoryTurns)
	}
	if got.ConversationHistory[0].User != "u5" {
		t.Errorf("oldest = %q, want u5", got.ConversationHistory[0].User)
	}
	if got.UserContext["city"] != "上海" {
		t.Errorf("user context lost: %v", got.UserContext)
	}
}

func TestClear(t *testing.T) {
	s := newTestMemory(t)
	ctx := context.Background()

	s.AppendTurn(ctx, "s1", core.ConversationTurn{User: "hi", Assistant: "hello"})
	if err := s.Clear(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	mem, _ := s.Get(ctx, "s1")
	if mem != nil {
		t.Error("memory survived clear")
	}

	// clearing twice is fine
	if err := s.Clear(ctx, "s1"); err != nil {
		t.Errorf("second clear errored: %v", err)
	}
}
