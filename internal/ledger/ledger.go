// Package ledger keeps the per-session economy counters on participant
// records: total wins and chips.
package ledger

import (
	"context"
	"fmt"

	"lobbysync/internal/lobby"
	"lobbysync/internal/store"

	"github.com/rs/zerolog/log"
)

type Ledger struct {
	Store store.Store
}

func New(s store.Store) *Ledger {
	return &Ledger{Store: s}
}

// IncrementWins adds one win to the participant. A missing record is created
// holding only the win count.
func (l *Ledger) IncrementWins(ctx context.Context, sessionID, participantID string) (int, error) {
	path := lobby.ParticipantPath(sessionID, participantID)
	var rec struct {
		TotalWins int `json:"totalWins"`
	}
	v, ok, err := l.Store.Read(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("read participant: %w", err)
	}
	if !ok {
		if err := l.Store.Write(ctx, path, map[string]any{"totalWins": 1}); err != nil {
			return 0, fmt.Errorf("write wins: %w", err)
		}
		return 1, nil
	}
	if err := store.Decode(v, &rec); err != nil {
		return 0, err
	}
	wins := rec.TotalWins + 1
	if err := l.Store.Update(ctx, path, map[string]any{"totalWins": wins}); err != nil {
		return 0, fmt.Errorf("write wins: %w", err)
	}
	return wins, nil
}

// AdjustChips applies delta to the participant's chips, never going below
// zero, and returns the new balance.
func (l *Ledger) AdjustChips(ctx context.Context, sessionID, participantID string, delta int64) (int64, error) {
	path := store.Join(lobby.ParticipantPath(sessionID, participantID), "chips")
	v, ok, err := l.Store.Read(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("read chips: %w", err)
	}
	balance := lobby.DefaultChips
	if ok {
		if err := store.Decode(v, &balance); err != nil {
			return 0, err
		}
	}
	balance += delta
	if balance < 0 {
		balance = 0
	}
	if err := l.Store.Write(ctx, path, balance); err != nil {
		return 0, fmt.Errorf("write chips: %w", err)
	}
	return balance, nil
}

// SettleGame credits the winner once per finished game. The settlement is
// recorded on the game state so a replayed call does nothing.
func (l *Ledger) SettleGame(ctx context.Context, sessionID, winnerID string) (bool, error) {
	if winnerID == "" {
		return false, nil
	}
	marker := store.Join(lobby.GameStatePath(sessionID), "settledAt")
	_, done, err := l.Store.Read(ctx, marker)
	if err != nil {
		return false, fmt.Errorf("read settlement: %w", err)
	}
	if done {
		return false, nil
	}
	wins, err := l.IncrementWins(ctx, sessionID, winnerID)
	if err != nil {
		return false, err
	}
	if err := l.Store.Write(ctx, marker, store.ServerTimestamp()); err != nil {
		return false, fmt.Errorf("write settlement: %w", err)
	}
	log.Info().Str("session_id", sessionID).Str("participant_id", winnerID).Int("total_wins", wins).Msg("game settled")
	return true, nil
}
