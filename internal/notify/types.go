package notify

import (
	"time"

	"lobbysync/internal/game"
)

const (
	EventGameStarted  = "game_started"
	EventGameFinished = "game_finished"
)

type Target struct {
	Platform       string   `json:"platform"`
	Endpoint       string   `json:"endpoint"`
	Secret         string   `json:"secret"`
	ScopeType      string   `json:"scope_type"`
	ScopeValue     string   `json:"scope_value"`
	EventAllowlist []string `json:"event_allowlist"`
	Enabled        bool     `json:"enabled"`
}

type Config struct {
	Enabled             bool
	Targets             []Target
	Workers             int
	RetryMax            int
	RetryBase           time.Duration
	FailureThreshold    int
	CircuitOpenDuration time.Duration
	RequestTimeout      time.Duration
	DispatchBuffer      int
}

// Event is a session lifecycle notification. It is also the body posted to
// generic webhooks.
type Event struct {
	Type        string         `json:"type"`
	SessionID   string         `json:"session_id"`
	GameType    string         `json:"game_type,omitempty"`
	TurnOrder   []string       `json:"turn_order,omitempty"`
	Winner      string         `json:"winner,omitempty"`
	FinalScores map[string]int `json:"final_scores,omitempty"`
	Rankings    []game.Ranking `json:"rankings,omitempty"`
	ServerTS    int64          `json:"server_ts"`
}

type MessageField struct {
	Name   string
	Value  string
	Inline bool
}

type FormattedMessage struct {
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []MessageField
}

type job struct {
	Target    Target
	Event     Event
	Formatted FormattedMessage
	Attempt   int
}

func (j job) key() string {
	return targetKey(j.Target)
}

func targetKey(t Target) string {
	return t.Platform + "|" + t.Endpoint + "|" + t.ScopeType + "|" + t.ScopeValue
}
