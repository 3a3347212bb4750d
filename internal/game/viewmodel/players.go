package viewmodel

import (
	"sort"

	"lobbysync/internal/game"
	"lobbysync/internal/lobby"
)

type PlayerCard struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	IsBot         bool   `json:"is_bot"`
	Score         int    `json:"score"`
	Ready         bool   `json:"ready"`
	IsCurrentTurn bool   `json:"is_current_turn"`
	IsMe          bool   `json:"is_me"`
	Departed      bool   `json:"departed,omitempty"`
}

type SessionView struct {
	SessionID   string         `json:"session_id"`
	JoinKey     string         `json:"join_key"`
	GameType    string         `json:"game_type"`
	Status      game.Status    `json:"status"`
	Round       int            `json:"round"`
	CurrentTurn string         `json:"current_turn"`
	MyTurn      bool           `json:"my_turn"`
	Notice      string         `json:"notice"`
	Players     []PlayerCard   `json:"players"`
	Winner      string         `json:"winner,omitempty"`
	Rankings    []game.Ranking `json:"rankings,omitempty"`
}

// BuildPlayerList lists participants in turn order. Participants not yet in
// the turn order follow, sorted by join time then id. Turn order entries
// whose participant left are kept and flagged as departed.
func BuildPlayerList(participants map[string]lobby.Participant, st game.TurnState, self string) []PlayerCard {
	seen := map[string]bool{}
	out := make([]PlayerCard, 0, len(participants))
	for _, id := range st.TurnOrder {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, card(id, participants, st, self))
	}
	rest := make([]lobby.Participant, 0, len(participants))
	for id, p := range participants {
		if !seen[id] {
			p.ID = id
			rest = append(rest, p)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].JoinedAt != rest[j].JoinedAt {
			return rest[i].JoinedAt < rest[j].JoinedAt
		}
		return rest[i].ID < rest[j].ID
	})
	for _, p := range rest {
		out = append(out, card(p.ID, participants, st, self))
	}
	return out
}

func card(id string, participants map[string]lobby.Participant, st game.TurnState, self string) PlayerCard {
	p, present := participants[id]
	ps := st.PlayerStates[id]
	score := ps.Score
	if !present {
		p = lobby.Participant{ID: id, Name: id, IsBot: lobby.IsBotID(id)}
	} else if score == 0 {
		score = p.Score
	}
	return PlayerCard{
		ID:            id,
		Name:          p.Name,
		IsBot:         p.IsBot,
		Score:         score,
		Ready:         ps.Ready,
		IsCurrentTurn: st.CurrentTurn == id,
		IsMe:          self != "" && self == id,
		Departed:      !present || ps.Departed,
	}
}

// TurnNotice is the banner shown for the current turn.
func TurnNotice(st game.TurnState, participants map[string]lobby.Participant, self string) string {
	switch {
	case st.Status == game.StatusFinished:
		if p, ok := participants[st.Winner]; ok && st.Winner != "" {
			return p.Name + " wins!"
		}
		return "Game over"
	case st.CurrentTurn == "":
		return "Waiting for players"
	case st.CurrentTurn == self:
		return "It's your turn!"
	}
	if p, ok := participants[st.CurrentTurn]; ok && p.Name != "" {
		return p.Name + "'s turn"
	}
	return "Waiting for " + st.CurrentTurn
}

// BuildSessionView assembles the read model returned to one participant.
func BuildSessionView(s lobby.Session, self string) SessionView {
	var st game.TurnState
	if s.GameState != nil {
		st = *s.GameState
	}
	if st.Status == "" {
		st.Status = game.StatusWaiting
	}
	return SessionView{
		SessionID:   s.ID,
		JoinKey:     s.Key,
		GameType:    s.GameType,
		Status:      st.Status,
		Round:       st.Round,
		CurrentTurn: st.CurrentTurn,
		MyTurn:      self != "" && st.CurrentTurn == self,
		Notice:      TurnNotice(st, s.Participants, self),
		Players:     BuildPlayerList(s.Participants, st, self),
		Winner:      st.Winner,
		Rankings:    st.Rankings,
	}
}
