package public

type SessionsResponse struct {
	Items  []SessionItem `json:"items"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// SessionItem is one open public session.
type SessionItem struct {
	SessionID  string `json:"session_id"`
	JoinKey    string `json:"join_key"`
	GameType   string `json:"game_type"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"created_at"`
}

type LeaderboardResponse struct {
	SessionID string           `json:"session_id"`
	Sort      string           `json:"sort"`
	Items     []LeaderboardRow `json:"items"`
}

type LeaderboardRow struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	IsBot         bool   `json:"is_bot"`
	TotalWins     int    `json:"total_wins"`
	Score         int    `json:"score"`
	Chips         int64  `json:"chips"`
}
