package runlog

import (
	"context"
	"fmt"
	"testing"
)

func TestInMemoryStoreRecentNewestFirst(t *testing.T) {
	s := NewInMemoryStore(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := s.Save(ctx, Record{RequestID: fmt.Sprintf("req-%d", i), Outcome: "ok"}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 (capacity)", len(got))
	}
	for i, want := range []string{"req-4", "req-3", "req-2"} {
		if got[i].RequestID != want {
			t.Fatalf("got[%d].RequestID = %q, want %q", i, got[i].RequestID, want)
		}
		if got[i].ID == "" || got[i].CreatedAt.IsZero() {
			t.Fatalf("got[%d] missing defaults: %+v", i, got[i])
		}
	}

	got, _ = s.Recent(ctx, 1)
	if len(got) != 1 || got[0].RequestID != "req-4" {
		t.Fatalf("Recent(1) = %+v", got)
	}
}

func TestNewStoreWithoutDatabaseURLIsInMemory(t *testing.T) {
	s, err := NewStore(context.Background(), "  ")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*InMemoryStore); !ok {
		t.Fatalf("NewStore() = %T, want *InMemoryStore", s)
	}
	if got, _ := s.Recent(context.Background(), 0); len(got) != 0 {
		t.Fatalf("Recent() on empty store = %v", got)
	}
}
