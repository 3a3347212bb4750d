// Package lobby creates, finds and joins sessions and manages their
// participant records.
package lobby

import (
	"lobbysync/internal/game"
	"lobbysync/internal/store"
)

const (
	SessionsRoot = "sessions"

	DefaultChips       int64 = 1000
	DefaultStatus            = "lobby"
	DefaultGameType          = "unknown"
	DefaultMaxPlayers        = 4
	DefaultScanLimit         = 50
	DefaultKeyRetries        = 6
)

type Visibility string

const (
	Private Visibility = "private"
	Public  Visibility = "public"
)

type Participant struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsBot     bool   `json:"isBot"`
	Score     int    `json:"score"`
	TotalWins int    `json:"totalWins"`
	JoinedAt  int64  `json:"joinedAt"`
	Chips     int64  `json:"chips"`
	Status    string `json:"status"`
}

type MatchState struct {
	Status      game.Status `json:"status"`
	TurnOrder   []string    `json:"turnOrder"`
	CurrentTurn string      `json:"currentTurn"`
	Round       int         `json:"round"`
}

// Session is the decoded value at sessions/{sessionId}.
type Session struct {
	ID           string                 `json:"-"`
	Key          string                 `json:"key"`
	GameType     string                 `json:"gameType"`
	IsPrivate    bool                   `json:"isPrivate"`
	CreatedAt    int64                  `json:"createdAt"`
	Participants map[string]Participant `json:"participants"`
	MatchState   MatchState             `json:"matchState"`
	GameState    *game.TurnState        `json:"gameState,omitempty"`
}

// Created is returned by CreateSession.
type Created struct {
	SessionID string `json:"session_id"`
	JoinKey   string `json:"join_key"`
}

// Match is the outcome of public matchmaking. Created is true when no
// waiting session fit and a new one was opened.
type Match struct {
	SessionID string `json:"session_id"`
	JoinKey   string `json:"join_key"`
	Created   bool   `json:"created"`
}

func SessionPath(sessionID string) string {
	return store.Join(SessionsRoot, sessionID)
}

func ParticipantsPath(sessionID string) string {
	return store.Join(SessionsRoot, sessionID, "participants")
}

func ParticipantPath(sessionID, participantID string) string {
	return store.Join(SessionsRoot, sessionID, "participants", participantID)
}

func GameStatePath(sessionID string) string {
	return store.Join(SessionsRoot, sessionID, "gameState")
}

// GameDataPath is the per-game auxiliary namespace. The game type is
// lowercased and stripped to letters and digits.
func GameDataPath(sessionID, gameType string) string {
	return store.Join(SessionsRoot, sessionID, "gameStates", store.Sanitize(gameType))
}

func decodeSession(id string, v any) (Session, error) {
	var s Session
	if err := store.Decode(v, &s); err != nil {
		return Session{}, err
	}
	s.ID = id
	if s.Participants == nil {
		s.Participants = map[string]Participant{}
	}
	return s, nil
}
