// Package game holds the turn engine and the two supported game variants.
package game

import "errors"

var ErrEmptyTurnOrder = errors.New("empty_turn_order")

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Rejection explains why a turn end was refused. The zero value means the
// turn end was accepted.
type Rejection string

const (
	RejectNotYourTurn Rejection = "not_your_turn"
	RejectGameOver    Rejection = "game_over"
	RejectNotStarted  Rejection = "game_not_started"
)

const (
	DefaultMaxRoundsPerPlayer = 1
	DefaultStartingCredits    = 1000
)

type Config struct {
	MaxRoundsPerPlayer int
	StartingCredits    int64
}

func (c Config) withDefaults() Config {
	if c.MaxRoundsPerPlayer <= 0 {
		c.MaxRoundsPerPlayer = DefaultMaxRoundsPerPlayer
	}
	if c.StartingCredits <= 0 {
		c.StartingCredits = DefaultStartingCredits
	}
	return c
}

// Extra carries variant specific turn end data.
type Extra struct {
	CreditDelta int64 `json:"creditDelta,omitempty"`
}

type Ranking struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

type TurnResult struct {
	Rejection     Rejection
	CanAdvance    bool
	ShouldEndGame bool
	Winner        string
	FinalScores   map[string]int
	Rankings      []Ranking
}

func (r TurnResult) Accepted() bool {
	return r.Rejection == ""
}

// State is everything the engine needs to decide the next transition. It can
// be rebuilt from the synced game state on any client.
type State struct {
	TurnOrder       []string
	CurrentTurn     string
	Round           int
	RoundsCompleted map[string]int
	Scores          map[string]int
	Credits         map[string]int64
	Departed        map[string]bool
	GameOver        bool
	FinalScores     map[string]int
}

func (s State) clone() State {
	out := s
	out.TurnOrder = append([]string(nil), s.TurnOrder...)
	out.RoundsCompleted = copyMap(s.RoundsCompleted)
	out.Scores = copyMap(s.Scores)
	out.Credits = copyMap(s.Credits)
	out.Departed = copyMap(s.Departed)
	out.FinalScores = copyMap(s.FinalScores)
	return out
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
