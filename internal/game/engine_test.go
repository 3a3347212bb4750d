package game

import (
	"reflect"
	"testing"
)

func TestInitializeRejectsEmptyTurnOrder(t *testing.T) {
	e := NewEngine(ShutTheBox{}, Config{})
	if _, err := e.Initialize(nil, nil); err != ErrEmptyTurnOrder {
		t.Fatalf("err = %v, want ErrEmptyTurnOrder", err)
	}
}

func TestInitializeSetsFirstTurnAndCredits(t *testing.T) {
	e := NewEngine(DicePoker{}, Config{StartingCredits: 500})
	st, err := e.Initialize([]string{"a", "b"}, []string{"c"})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if st.CurrentTurn != "a" || st.Round != 1 {
		t.Fatalf("state = %+v", st)
	}
	for _, id := range []string{"a", "b", "c"} {
		if st.Credits[id] != 500 || st.Scores[id] != 0 || st.RoundsCompleted[id] != 0 {
			t.Fatalf("%s counters = %d %d %d", id, st.Credits[id], st.Scores[id], st.RoundsCompleted[id])
		}
	}
}

func TestAdvanceTurnCycles(t *testing.T) {
	e := NewEngine(ShutTheBox{}, Config{})
	e.Restore(State{TurnOrder: []string{"A", "B", "C"}, CurrentTurn: "C", Round: 1})
	next, ok := e.AdvanceTurn()
	if !ok || next != "A" {
		t.Fatalf("AdvanceTurn = %q, %v, want A", next, ok)
	}
	if e.State().Round != 2 {
		t.Fatalf("round = %d, want 2", e.State().Round)
	}
}

func TestAdvanceTurnResetsWhenCurrentMissing(t *testing.T) {
	e := NewEngine(ShutTheBox{}, Config{})
	e.Restore(State{TurnOrder: []string{"A", "B", "C"}, CurrentTurn: "gone"})
	next, ok := e.AdvanceTurn()
	if !ok || next != "A" {
		t.Fatalf("AdvanceTurn = %q, %v, want A", next, ok)
	}
	if e.State().CurrentTurn != "A" {
		t.Fatalf("current turn = %q, want A", e.State().CurrentTurn)
	}
}

func TestAdvanceTurnSkipsDeparted(t *testing.T) {
	e := NewEngine(ShutTheBox{}, Config{})
	e.Restore(State{TurnOrder: []string{"A", "B", "C"}, CurrentTurn: "A", Departed: map[string]bool{"B": true}})
	next, _ := e.AdvanceTurn()
	if next != "C" {
		t.Fatalf("AdvanceTurn = %q, want C", next)
	}
}

func TestAdvanceTurnAfterGameOver(t *testing.T) {
	e := NewEngine(ShutTheBox{}, Config{})
	e.Restore(State{TurnOrder: []string{"A"}, CurrentTurn: "A", GameOver: true})
	if next, ok := e.AdvanceTurn(); ok || next != "" {
		t.Fatalf("AdvanceTurn = %q, %v, want none", next, ok)
	}
}

func TestProcessTurnEndRejections(t *testing.T) {
	e := NewEngine(ShutTheBox{}, Config{})
	if _, err := e.Initialize([]string{"A", "B"}, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	before := e.State()
	res := e.ProcessTurnEnd("B", 10, Extra{})
	if res.Rejection != RejectNotYourTurn || res.Accepted() {
		t.Fatalf("result = %+v, want not_your_turn", res)
	}
	if !reflect.DeepEqual(before, e.State()) {
		t.Fatal("state changed on rejection")
	}

	e.ProcessTurnEnd("A", 5, Extra{})
	e.AdvanceTurn()
	if res := e.ProcessTurnEnd("B", 7, Extra{}); !res.ShouldEndGame {
		t.Fatalf("result = %+v, want end of game", res)
	}
	if res := e.ProcessTurnEnd("B", 1, Extra{}); res.Rejection != RejectGameOver {
		t.Fatalf("result = %+v, want game_over", res)
	}
}

func TestDicePokerHighestWins(t *testing.T) {
	e := NewEngine(DicePoker{}, Config{})
	if _, err := e.Initialize([]string{"A", "B", "C"}, nil); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	scores := map[string]int{"A": 50, "B": 80, "C": 30}
	var res TurnResult
	for _, id := range []string{"A", "B", "C"} {
		res = e.ProcessTurnEnd(id, scores[id], Extra{})
		if !res.Accepted() {
			t.Fatalf("turn end %s rejected: %s", id, res.Rejection)
		}
		if id != "C" {
			if !res.CanAdvance || res.ShouldEndGame {
				t.Fatalf("after %s result = %+v", id, res)
			}
			e.AdvanceTurn()
		}
	}
	if !res.ShouldEndGame || res.Winner != "B" {
		t.Fatalf("result = %+v, want winner B", res)
	}
	var order []string
	for i, r := range res.Rankings {
		if r.Rank != i+1 {
			t.Fatalf("rank = %d, want %d", r.Rank, i+1)
		}
		order = append(order, r.PlayerID)
	}
	if !reflect.DeepEqual(order, []string{"B", "A", "C"}) {
		t.Fatalf("rankings = %v, want [B A C]", order)
	}
	if !reflect.DeepEqual(res.FinalScores, scores) {
		t.Fatalf("final scores = %v", res.FinalScores)
	}
}

func TestDicePokerCreditsClampAtZero(t *testing.T) {
	e := NewEngine(DicePoker{}, Config{StartingCredits: 100})
	_, _ = e.Initialize([]string{"A", "B"}, nil)
	e.ProcessTurnEnd("A", 10, Extra{CreditDelta: -250})
	if got := e.State().Credits["A"]; got != 0 {
		t.Fatalf("credits = %d, want 0", got)
	}
}

func TestShutTheBoxLowestWinsAndTieBreak(t *testing.T) {
	e := NewEngine(ShutTheBox{}, Config{})
	_, _ = e.Initialize([]string{"c", "a", "b"}, nil)
	for _, id := range []string{"c", "a", "b"} {
		e.ProcessTurnEnd(id, 12, Extra{})
		e.AdvanceTurn()
	}
	winner, ok := e.Winner()
	if !ok || winner != "a" {
		t.Fatalf("winner = %q, %v, want a", winner, ok)
	}
	ranks := e.Rankings()
	if ranks[0].PlayerID != "a" || ranks[1].PlayerID != "b" || ranks[2].PlayerID != "c" {
		t.Fatalf("rankings = %+v", ranks)
	}
}

func TestDepartedParticipantDoesNotBlockEnd(t *testing.T) {
	e := NewEngine(ShutTheBox{}, Config{})
	_, _ = e.Initialize([]string{"A", "B"}, nil)
	e.MarkDeparted("B")
	res := e.ProcessTurnEnd("A", 20, Extra{})
	if !res.ShouldEndGame || res.Winner != "A" {
		t.Fatalf("result = %+v", res)
	}
	if _, ok := res.FinalScores["B"]; ok {
		t.Fatal("departed participant ranked")
	}
}

func TestMultipleRoundsPerPlayer(t *testing.T) {
	e := NewEngine(ShutTheBox{}, Config{MaxRoundsPerPlayer: 2})
	_, _ = e.Initialize([]string{"A", "B"}, nil)
	for i := 0; i < 3; i++ {
		id := e.State().CurrentTurn
		if res := e.ProcessTurnEnd(id, 5, Extra{}); res.ShouldEndGame {
			t.Fatalf("game ended after %d turns", i+1)
		}
		e.AdvanceTurn()
	}
	if res := e.ProcessTurnEnd("B", 5, Extra{}); !res.ShouldEndGame {
		t.Fatalf("result = %+v, want end", res)
	}
}

func TestTurnStateEngineState(t *testing.T) {
	credits := int64(40)
	ts := TurnState{
		Status:      StatusFinished,
		TurnOrder:   []string{"a"},
		CurrentTurn: "a",
		Round:       3,
		PlayerStates: map[string]PlayerState{
			"a": {Score: 9, RoundsCompleted: 1, Credits: &credits, Departed: true},
		},
	}
	st := ts.EngineState()
	if !st.GameOver || st.Scores["a"] != 9 || st.Credits["a"] != 40 || !st.Departed["a"] || st.RoundsCompleted["a"] != 1 {
		t.Fatalf("engine state = %+v", st)
	}
}

func TestForGameType(t *testing.T) {
	if v, ok := ForGameType("Shut-The-Box"); !ok || v.Name() != GameShutTheBox {
		t.Fatalf("ForGameType(Shut-The-Box) = %v, %v", v, ok)
	}
	if v, ok := ForGameType("dicepoker"); !ok || v.Name() != GameDicePoker {
		t.Fatalf("ForGameType(dicepoker) = %v, %v", v, ok)
	}
	if _, ok := ForGameType("chess"); ok {
		t.Fatal("expected unknown game type")
	}
}

func TestForfeitAdvancesOrEnds(t *testing.T) {
	e := NewEngine(ShutTheBox{}, Config{})
	_, _ = e.Initialize([]string{"A", "B", "C"}, nil)
	res := e.Forfeit("A")
	if !res.CanAdvance || e.State().CurrentTurn != "B" {
		t.Fatalf("result = %+v, current = %q", res, e.State().CurrentTurn)
	}
	e.ProcessTurnEnd("B", 3, Extra{})
	e.AdvanceTurn()
	if res := e.Forfeit("C"); !res.ShouldEndGame || res.Winner != "B" {
		t.Fatalf("result = %+v, want B to win", res)
	}
}

func TestValidateStatus(t *testing.T) {
	tests := []struct {
		status Status
		want   Rejection
	}{
		{StatusPlaying, ""},
		{StatusWaiting, RejectNotStarted},
		{"", RejectNotStarted},
		{StatusFinished, RejectGameOver},
	}
	for _, tt := range tests {
		if got := ValidateStatus(tt.status); got != tt.want {
			t.Fatalf("ValidateStatus(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
