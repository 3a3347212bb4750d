package ledger

import (
	"context"
	"testing"

	"lobbysync/internal/lobby"
	"lobbysync/internal/store"
)

func TestIncrementWinsCreatesMissingRecord(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	l := New(mem)
	wins, err := l.IncrementWins(ctx, "s1", "ghost")
	if err != nil || wins != 1 {
		t.Fatalf("IncrementWins = %d, %v, want 1", wins, err)
	}
	v, _, _ := mem.Read(ctx, lobby.ParticipantPath("s1", "ghost"))
	if len(v.(map[string]any)) != 1 {
		t.Fatalf("record = %v, want only totalWins", v)
	}
}

func TestIncrementWinsExisting(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_ = mem.Write(ctx, lobby.ParticipantPath("s1", "p1"), map[string]any{"name": "Ann", "totalWins": 2})
	l := New(mem)
	wins, err := l.IncrementWins(ctx, "s1", "p1")
	if err != nil || wins != 3 {
		t.Fatalf("IncrementWins = %d, %v, want 3", wins, err)
	}
	name, _, _ := mem.Read(ctx, lobby.ParticipantPath("s1", "p1")+"/name")
	if name != "Ann" {
		t.Fatalf("name = %v, want Ann", name)
	}
}

func TestAdjustChipsClampsAtZero(t *testing.T) {
	ctx := context.Background()
	l := New(store.NewMemory())
	bal, err := l.AdjustChips(ctx, "s1", "p1", -200)
	if err != nil || bal != lobby.DefaultChips-200 {
		t.Fatalf("AdjustChips = %d, %v", bal, err)
	}
	bal, _ = l.AdjustChips(ctx, "s1", "p1", -5000)
	if bal != 0 {
		t.Fatalf("balance = %d, want 0", bal)
	}
}

func TestSettleGameOnce(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	l := New(mem)
	for i := 0; i < 2; i++ {
		if _, err := l.SettleGame(ctx, "s1", "p1"); err != nil {
			t.Fatalf("settle: %v", err)
		}
	}
	wins, _, _ := mem.Read(ctx, lobby.ParticipantPath("s1", "p1")+"/totalWins")
	if wins != float64(1) {
		t.Fatalf("totalWins = %v, want 1", wins)
	}
}
