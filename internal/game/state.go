package game

// PlayerState is gameState/playerStates/{participantId}.
type PlayerState struct {
	Score           int    `json:"score"`
	Ready           bool   `json:"ready"`
	RoundsCompleted int    `json:"roundsCompleted,omitempty"`
	Credits         *int64 `json:"credits,omitempty"`
	Departed        bool   `json:"departed,omitempty"`
}

// Move is the most recent broadcast action. It is overwritten by every move.
type Move struct {
	PlayerID  string `json:"playerId"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// TurnState is the synced value at sessions/{sessionId}/gameState.
type TurnState struct {
	Status       Status                 `json:"status"`
	TurnOrder    []string               `json:"turnOrder"`
	CurrentTurn  string                 `json:"currentTurn"`
	Round        int                    `json:"round"`
	CreatedAt    int64                  `json:"createdAt,omitempty"`
	StartedAt    int64                  `json:"startedAt,omitempty"`
	EndedAt      int64                  `json:"endedAt,omitempty"`
	PlayerStates map[string]PlayerState `json:"playerStates"`
	LastMove     *Move                  `json:"lastMove,omitempty"`
	FinalScores  map[string]int         `json:"finalScores,omitempty"`
	Winner       string                 `json:"winner,omitempty"`
	Rankings     []Ranking              `json:"rankings,omitempty"`
}

// EngineState extracts the engine-observable part of ts.
func (ts TurnState) EngineState() State {
	st := State{
		TurnOrder:       append([]string(nil), ts.TurnOrder...),
		CurrentTurn:     ts.CurrentTurn,
		Round:           ts.Round,
		RoundsCompleted: map[string]int{},
		Scores:          map[string]int{},
		Credits:         map[string]int64{},
		Departed:        map[string]bool{},
		GameOver:        ts.Status == StatusFinished,
		FinalScores:     copyMap(ts.FinalScores),
	}
	for id, ps := range ts.PlayerStates {
		st.RoundsCompleted[id] = ps.RoundsCompleted
		st.Scores[id] = ps.Score
		if ps.Credits != nil {
			st.Credits[id] = *ps.Credits
		}
		if ps.Departed {
			st.Departed[id] = true
		}
	}
	return st
}

// Ready reports whether participantID has flagged ready.
func (ts TurnState) Ready(participantID string) bool {
	return ts.PlayerStates[participantID].Ready
}
