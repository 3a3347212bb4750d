package public

import (
	"context"
	"errors"
	"testing"

	"lobbysync/internal/lobby"
	"lobbysync/internal/store"
)

func TestClampListingPage(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		offset    int
		wantLimit int
		wantOK    bool
	}{
		{name: "default limit", limit: 0, offset: 0, wantLimit: 20, wantOK: true},
		{name: "explicit small limit", limit: 5, offset: 0, wantLimit: 5, wantOK: true},
		{name: "limit clipped at boundary", limit: 10, offset: 95, wantLimit: 5, wantOK: true},
		{name: "offset 100 rejected", limit: 10, offset: 100, wantLimit: 0, wantOK: false},
		{name: "negative offset rejected", limit: 10, offset: -1, wantLimit: 0, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLimit, gotOK := clampListingPage(tt.limit, tt.offset)
			if gotOK != tt.wantOK {
				t.Fatalf("ok = %v, want %v", gotOK, tt.wantOK)
			}
			if gotLimit != tt.wantLimit {
				t.Fatalf("limit = %d, want %d", gotLimit, tt.wantLimit)
			}
		})
	}
}

func TestSessionsListsOpenPublicSessions(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	defer mem.Close()
	reg := lobby.NewRegistry(mem)
	members := lobby.NewMembership(mem)

	older, _ := reg.CreateSession(ctx, "dicepoker", lobby.Public)
	newer, _ := reg.CreateSession(ctx, "dicepoker", lobby.Public)
	_, _ = reg.CreateSession(ctx, "dicepoker", lobby.Private)
	_, _ = reg.CreateSession(ctx, "shutthebox", lobby.Public)
	full, _ := reg.CreateSession(ctx, "dicepoker", lobby.Public)
	for _, id := range []string{"a", "b"} {
		_, _ = members.Join(ctx, full.SessionID, id, "")
	}
	_, _ = members.Join(ctx, older.SessionID, "c", "")

	svc := NewService(mem, 2, 0)
	resp, err := svc.Sessions(ctx, "dicepoker", 0, 0)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("items = %+v", resp.Items)
	}
	if resp.Items[0].SessionID != newer.SessionID || resp.Items[1].SessionID != older.SessionID {
		t.Fatalf("order = %+v", resp.Items)
	}
	if resp.Items[1].Players != 1 || resp.Items[1].MaxPlayers != 2 {
		t.Fatalf("older = %+v", resp.Items[1])
	}

	all, _ := svc.Sessions(ctx, "", 0, 0)
	if len(all.Items) != 3 {
		t.Fatalf("unfiltered = %+v", all.Items)
	}
	page, _ := svc.Sessions(ctx, "", 1, 2)
	if len(page.Items) != 1 || page.Items[0].SessionID != older.SessionID {
		t.Fatalf("page = %+v", page.Items)
	}
}

func TestLeaderboard(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	defer mem.Close()
	reg := lobby.NewRegistry(mem)
	members := lobby.NewMembership(mem)
	created, _ := reg.CreateSession(ctx, "dicepoker", lobby.Public)
	sid := created.SessionID
	for _, id := range []string{"p1", "p2", "p3"} {
		_, _ = members.Join(ctx, sid, id, "")
	}
	_ = mem.Write(ctx, lobby.ParticipantPath(sid, "p2")+"/totalWins", 3)
	_ = mem.Write(ctx, lobby.ParticipantPath(sid, "p3")+"/totalWins", 3)
	_ = members.SetScore(ctx, sid, "p1", 50)

	svc := NewService(mem, 0, 0)
	resp, err := svc.Leaderboard(ctx, sid, "")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	got := []string{}
	for _, row := range resp.Items {
		got = append(got, row.ParticipantID)
	}
	if len(got) != 3 || got[0] != "p2" || got[1] != "p3" || got[2] != "p1" || resp.Items[0].Rank != 1 {
		t.Fatalf("wins order = %v", got)
	}

	byScore, _ := svc.Leaderboard(ctx, sid, "score")
	if byScore.Items[0].ParticipantID != "p1" {
		t.Fatalf("score order = %+v", byScore.Items)
	}
	if _, err := svc.Leaderboard(ctx, sid, "elo"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("bad sort = %v", err)
	}
	if _, err := svc.Leaderboard(ctx, "missing", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("missing session = %v", err)
	}
}
