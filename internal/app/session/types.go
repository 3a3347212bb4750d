package session

import (
	"lobbysync/internal/game"
	"lobbysync/internal/lobby"
)

type CreateRequest struct {
	GameType      string `json:"game_type"`
	Private       bool   `json:"private"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
}

// JoinRequest accepts a six character join key or a session id.
type JoinRequest struct {
	Identifier    string `json:"identifier"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
}

type MatchRequest struct {
	GameType      string `json:"game_type"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
}

type JoinResponse struct {
	SessionID   string            `json:"session_id"`
	JoinKey     string            `json:"join_key"`
	Created     bool              `json:"created"`
	Participant lobby.Participant `json:"participant"`
}

type ReadyRequest struct {
	ParticipantID string `json:"participant_id"`
	Ready         bool   `json:"ready"`
}

type StartRequest struct {
	Force bool `json:"force"`
}

type BotRequest struct {
	Name string `json:"name"`
}

type BotResponse struct {
	ParticipantID string `json:"participant_id"`
}

type TurnEndRequest struct {
	ParticipantID string `json:"participant_id"`
	Score         int    `json:"score"`
	CreditDelta   int64  `json:"credit_delta"`
}

type TurnEndResponse struct {
	GameOver    bool           `json:"game_over"`
	Winner      string         `json:"winner,omitempty"`
	FinalScores map[string]int `json:"final_scores,omitempty"`
	Rankings    []game.Ranking `json:"rankings,omitempty"`
}

type MoveRequest struct {
	ParticipantID string `json:"participant_id"`
	Data          any    `json:"data"`
}

type SwitchGameRequest struct {
	GameType string `json:"game_type"`
}
