package game

import (
	"sort"
)

// Engine runs one game. It is not safe for concurrent use; the coordinator
// owns it from a single goroutine.
type Engine struct {
	variant Variant
	cfg     Config
	state   State
}

func NewEngine(v Variant, cfg Config) *Engine {
	return &Engine{variant: v, cfg: cfg.withDefaults()}
}

func (e *Engine) Variant() Variant { return e.variant }

func (e *Engine) Config() Config { return e.cfg }

// State returns a copy of the current engine state.
func (e *Engine) State() State { return e.state.clone() }

// Initialize starts a game over turnOrder. Counters are zeroed for every id in
// turnOrder and participants.
func (e *Engine) Initialize(turnOrder, participants []string) (State, error) {
	if len(turnOrder) == 0 {
		return State{}, ErrEmptyTurnOrder
	}
	st := State{
		TurnOrder:       append([]string(nil), turnOrder...),
		CurrentTurn:     turnOrder[0],
		Round:           1,
		RoundsCompleted: map[string]int{},
		Scores:          map[string]int{},
		Credits:         map[string]int64{},
		Departed:        map[string]bool{},
	}
	ids := append(append([]string(nil), turnOrder...), participants...)
	for _, id := range ids {
		st.RoundsCompleted[id] = 0
		st.Scores[id] = 0
		e.variant.initParticipant(&st, id, e.cfg)
	}
	e.state = st
	return e.State(), nil
}

// Restore replaces the engine state, typically with one decoded from the
// store.
func (e *Engine) Restore(st State) {
	st = st.clone()
	if st.RoundsCompleted == nil {
		st.RoundsCompleted = map[string]int{}
	}
	if st.Scores == nil {
		st.Scores = map[string]int{}
	}
	if st.Credits == nil {
		st.Credits = map[string]int64{}
	}
	if st.Departed == nil {
		st.Departed = map[string]bool{}
	}
	if st.Round == 0 {
		st.Round = 1
	}
	e.state = st
}

// MarkDeparted takes participantID out of rotation. A departed participant is
// skipped by AdvanceTurn and ignored for end of game and ranking.
func (e *Engine) MarkDeparted(participantID string) {
	e.state.Departed[participantID] = true
}

// ProcessTurnEnd records finalScore for participantID. Nothing changes when
// the result carries a Rejection.
func (e *Engine) ProcessTurnEnd(participantID string, finalScore int, extra Extra) TurnResult {
	if r := ValidateTurnEnd(&e.state, participantID); r != "" {
		return TurnResult{Rejection: r}
	}
	e.variant.applyTurnEnd(&e.state, participantID, finalScore, extra)
	e.state.RoundsCompleted[participantID]++

	if !e.allCompleted() {
		return TurnResult{CanAdvance: true}
	}
	return e.finish()
}

// Forfeit takes a participant who left out of the game. If it was their turn
// the turn moves on; if everyone still playing has completed, the game ends.
func (e *Engine) Forfeit(participantID string) TurnResult {
	if e.state.GameOver {
		return TurnResult{Rejection: RejectGameOver}
	}
	e.MarkDeparted(participantID)
	if e.allCompleted() {
		return e.finish()
	}
	if e.state.CurrentTurn == participantID {
		e.AdvanceTurn()
	}
	return TurnResult{CanAdvance: true}
}

func (e *Engine) finish() TurnResult {
	e.state.GameOver = true
	e.state.FinalScores = map[string]int{}
	for _, id := range e.active() {
		e.state.FinalScores[id] = e.state.Scores[id]
	}
	winner, _ := e.Winner()
	return TurnResult{
		ShouldEndGame: true,
		Winner:        winner,
		FinalScores:   copyMap(e.state.FinalScores),
		Rankings:      e.Rankings(),
	}
}

// AdvanceTurn moves the current turn to the next active participant in turn
// order. When the current turn is not in the turn order it resets to the
// first active participant. It returns false once the game is over or when
// nobody is left to play.
func (e *Engine) AdvanceTurn() (string, bool) {
	if e.state.GameOver || len(e.state.TurnOrder) == 0 {
		return "", false
	}
	order := e.state.TurnOrder
	idx := indexOf(order, e.state.CurrentTurn)
	if idx < 0 {
		for _, id := range order {
			if !e.state.Departed[id] {
				e.state.CurrentTurn = id
				return id, true
			}
		}
		return "", false
	}
	for step := 1; step <= len(order); step++ {
		next := (idx + step) % len(order)
		id := order[next]
		if e.state.Departed[id] {
			continue
		}
		if next <= idx {
			e.state.Round++
		}
		e.state.CurrentTurn = id
		return id, true
	}
	return "", false
}

// Winner returns the participant with the best final score. Participants are
// compared in ascending id order and only a strictly better score replaces
// the leader, so ties go to the smallest id.
func (e *Engine) Winner() (string, bool) {
	if !e.state.GameOver || len(e.state.FinalScores) == 0 {
		return "", false
	}
	ids := sortedKeys(e.state.FinalScores)
	best := ids[0]
	for _, id := range ids[1:] {
		if e.variant.Better(e.state.FinalScores[id], e.state.FinalScores[best]) {
			best = id
		}
	}
	return best, true
}

// Rankings orders final scores best first, 1-indexed. Ties keep ascending id
// order.
func (e *Engine) Rankings() []Ranking {
	if !e.state.GameOver {
		return nil
	}
	ids := sortedKeys(e.state.FinalScores)
	sort.SliceStable(ids, func(i, j int) bool {
		return e.variant.Better(e.state.FinalScores[ids[i]], e.state.FinalScores[ids[j]])
	})
	out := make([]Ranking, 0, len(ids))
	for i, id := range ids {
		out = append(out, Ranking{Rank: i + 1, PlayerID: id, Score: e.state.FinalScores[id]})
	}
	return out
}

func (e *Engine) allCompleted() bool {
	active := e.active()
	if len(active) == 0 {
		return true
	}
	for _, id := range active {
		if e.state.RoundsCompleted[id] < e.cfg.MaxRoundsPerPlayer {
			return false
		}
	}
	return true
}

func (e *Engine) active() []string {
	out := make([]string, 0, len(e.state.TurnOrder))
	for _, id := range e.state.TurnOrder {
		if !e.state.Departed[id] {
			out = append(out, id)
		}
	}
	return out
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
