package session

import (
	"errors"

	"lobbysync/internal/game"
	"lobbysync/internal/lobby"
)

var (
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrSessionNotFound = lobby.ErrSessionNotFound
	ErrNotParticipant  = errors.New("not_participant")
	ErrNotReady        = errors.New("players_not_ready")
	ErrGameInProgress  = errors.New("game_in_progress")
	ErrClosed          = errors.New("service_closed")
)

// RejectedError reports a turn action the game refused.
type RejectedError struct {
	Rejection game.Rejection
}

func (e RejectedError) Error() string { return string(e.Rejection) }
