package session

import (
	"context"
	"sync"
	"testing"
)

func TestGetOrCreateLazyCreation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	snap, wasReset, err := store.GetOrCreate(ctx, "U1", "2024-05-01")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if !wasReset {
		t.Fatalf("expected wasReset=true for new session")
	}
	if snap.RequestCount != 0 {
		t.Fatalf("expected zero request count, got %d", snap.RequestCount)
	}
	if len(snap.History) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(snap.History))
	}
	if snap.LastActiveDate != "2024-05-01" {
		t.Fatalf("expected lastActiveDate 2024-05-01, got %s", snap.LastActiveDate)
	}
}

func TestGetOrCreateSameDayKeepsState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, _, err := store.GetOrCreate(ctx, "U1", "2024-05-01"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if err := store.AppendTurn(ctx, "U1", RoleUser, "hello"); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}
	if err := store.AppendTurn(ctx, "U1", RoleModel, "hi"); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}
	if err := store.IncrementRequestCount(ctx, "U1", "2024-05-01"); err != nil {
		t.Fatalf("IncrementRequestCount failed: %v", err)
	}

	snap, wasReset, err := store.GetOrCreate(ctx, "U1", "2024-05-01")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if wasReset {
		t.Fatalf("same-day lookup must not reset the session")
	}
	if snap.RequestCount != 1 {
		t.Fatalf("expected request count 1, got %d", snap.RequestCount)
	}
	if len(snap.History) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(snap.History))
	}
}

func TestGetOrCreateDateRolloverResets(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, _, err := store.GetOrCreate(ctx, "U1", "2024-05-01"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if err := store.AppendTurn(ctx, "U1", RoleUser, "hello"); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}
	if err := store.IncrementRequestCount(ctx, "U1", "2024-05-01"); err != nil {
		t.Fatalf("IncrementRequestCount failed: %v", err)
	}
	if err := store.SetDisplayName(ctx, "U1", "Taro"); err != nil {
		t.Fatalf("SetDisplayName failed: %v", err)
	}

	snap, wasReset, err := store.GetOrCreate(ctx, "U1", "2024-05-02")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if !wasReset {
		t.Fatalf("expected reset on date change")
	}
	if snap.RequestCount != 0 || len(snap.History) != 0 {
		t.Fatalf("expected clean session after rollover, got count=%d history=%d",
			snap.RequestCount, len(snap.History))
	}
	if snap.DisplayName != "Taro" {
		t.Fatalf("display name should survive rollover, got %q", snap.DisplayName)
	}
}

func TestResetClearsHistoryAndCount(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, _, err := store.GetOrCreate(ctx, "U1", "2024-05-01"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if err := store.AppendTurn(ctx, "U1", RoleUser, "hello"); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}
	if err := store.IncrementRequestCount(ctx, "U1", "2024-05-01"); err != nil {
		t.Fatalf("IncrementRequestCount failed: %v", err)
	}

	if err := store.Reset(ctx, "U1", "2024-05-01"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	snap, wasReset, err := store.GetOrCreate(ctx, "U1", "2024-05-01")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if wasReset {
		t.Fatalf("lookup right after reset must not reset again")
	}
	if snap.RequestCount != 0 || len(snap.History) != 0 {
		t.Fatalf("expected clean session after reset, got count=%d history=%d",
			snap.RequestCount, len(snap.History))
	}
}

func TestSnapshotHistoryReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.AppendTurn(ctx, "U1", RoleUser, "hello"); err != nil {
		t.Fatalf("AppendTurn failed: %v", err)
	}

	history, err := store.SnapshotHistory(ctx, "U1")
	if err != nil {
		t.Fatalf("SnapshotHistory failed: %v", err)
	}
	history[0].Text = "mutated"

	again, err := store.SnapshotHistory(ctx, "U1")
	if err != nil {
		t.Fatalf("SnapshotHistory failed: %v", err)
	}
	if again[0].Text != "hello" {
		t.Fatalf("snapshot must be isolated from caller mutation, got %q", again[0].Text)
	}
}

func TestConcurrentIncrementsForOneUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, _, err := store.GetOrCreate(ctx, "U1", "2024-05-01"); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if err := store.IncrementRequestCount(ctx, "U1", "2024-05-01"); err != nil {
				t.Errorf("IncrementRequestCount failed: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, _, err := store.GetOrCreate(ctx, "U1", "2024-05-01")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if snap.RequestCount != n {
		t.Fatalf("expected %d increments, got %d", n, snap.RequestCount)
	}
}
