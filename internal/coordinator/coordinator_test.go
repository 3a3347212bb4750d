package coordinator

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lobbysync/internal/game"
	"lobbysync/internal/ledger"
	"lobbysync/internal/lobby"
	"lobbysync/internal/store"
)

func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.UnixMilli(1_700_000_000_000)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fixture struct {
	mem     *store.Memory
	members *lobby.Membership
	sid     string
}

func newFixture(t *testing.T, gameType string, humans ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory(store.WithClock(tickingClock()))
	t.Cleanup(mem.Close)
	reg := lobby.NewRegistry(mem, lobby.WithRand(rand.New(rand.NewSource(7))))
	created, err := reg.CreateSession(ctx, gameType, lobby.Public)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	f := &fixture{
		mem:     mem,
		members: lobby.NewMembership(mem, lobby.WithRand(rand.New(rand.NewSource(8)))),
		sid:     created.SessionID,
	}
	for _, id := range humans {
		f.join(t, id)
	}
	return f
}

func (f *fixture) join(t *testing.T, id string) {
	t.Helper()
	if _, err := f.members.Join(context.Background(), f.sid, id, ""); err != nil {
		t.Fatalf("join %s: %v", id, err)
	}
}

func (f *fixture) coordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	c := New(f.mem, f.sid, opts...)
	t.Cleanup(c.Close)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return c
}

func (f *fixture) state(t *testing.T) game.TurnState {
	t.Helper()
	var st game.TurnState
	v, ok, err := f.mem.Read(context.Background(), lobby.GameStatePath(f.sid))
	if err != nil || !ok {
		t.Fatalf("read game state: ok=%v err=%v", ok, err)
	}
	if err := store.Decode(v, &st); err != nil {
		t.Fatalf("decode game state: %v", err)
	}
	return st
}

func (f *fixture) stateWhen(t *testing.T, what string, cond func(game.TurnState) bool) game.TurnState {
	t.Helper()
	var st game.TurnState
	waitFor(t, what, func() bool {
		st = f.state(t)
		return cond(st)
	})
	return st
}

func TestStartInitializesGameState(t *testing.T) {
	f := newFixture(t, "shutthebox", "pa", "pb")
	f.coordinator(t)

	st := f.state(t)
	if st.Status != game.StatusWaiting || st.Round != 1 || st.CurrentTurn != "pa" {
		t.Fatalf("state = %+v", st)
	}
	if !reflect.DeepEqual(st.TurnOrder, []string{"pa", "pb"}) {
		t.Fatalf("turnOrder = %v", st.TurnOrder)
	}
	if len(st.PlayerStates) != 2 || st.PlayerStates["pa"].Ready {
		t.Fatalf("playerStates = %+v", st.PlayerStates)
	}
	if st.CreatedAt == 0 {
		t.Fatal("createdAt not resolved")
	}
}

func TestLateJoinersGetPlayerStates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox", "pa", "pb")
	f.coordinator(t)

	f.join(t, "pc")
	bot, err := f.members.AddBot(ctx, f.sid, "Robo")
	if err != nil {
		t.Fatalf("add bot: %v", err)
	}
	st := f.stateWhen(t, "late joiner states", func(st game.TurnState) bool {
		_, c := st.PlayerStates["pc"]
		_, b := st.PlayerStates[bot]
		return c && b
	})
	if st.PlayerStates["pc"].Ready || !st.PlayerStates[bot].Ready {
		t.Fatalf("playerStates = %+v", st.PlayerStates)
	}
	if !reflect.DeepEqual(st.TurnOrder, []string{"pa", "pb"}) {
		t.Fatalf("turnOrder changed to %v", st.TurnOrder)
	}
}

func TestReconcileKeepsExistingEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox", "pa")
	_ = f.mem.Write(ctx, lobby.GameStatePath(f.sid), map[string]any{
		"status":       "waiting",
		"playerStates": map[string]any{"pa": map[string]any{"score": 12, "ready": true}},
	})
	f.join(t, "pb")
	f.coordinator(t)

	st := f.stateWhen(t, "seeded order", func(st game.TurnState) bool {
		_, ok := st.PlayerStates["pb"]
		return ok && len(st.TurnOrder) == 2
	})
	if st.PlayerStates["pa"].Score != 12 || !st.PlayerStates["pa"].Ready {
		t.Fatalf("existing entry overwritten: %+v", st.PlayerStates["pa"])
	}
	if st.CurrentTurn != "pa" {
		t.Fatalf("currentTurn = %q", st.CurrentTurn)
	}
}

func TestConcurrentStartsConverge(t *testing.T) {
	f := newFixture(t, "dicepoker", "pa", "pb")
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		c := New(f.mem, f.sid)
		t.Cleanup(c.Close)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Start(context.Background()); err != nil {
				t.Errorf("start: %v", err)
			}
		}()
	}
	wg.Wait()

	st := f.state(t)
	if !reflect.DeepEqual(st.TurnOrder, []string{"pa", "pb"}) || len(st.PlayerStates) != 2 {
		t.Fatalf("state = %+v", st)
	}
}

func TestPublishTurnEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox", "pa", "pb")
	c := f.coordinator(t)
	if err := c.StartGame(ctx); err != nil {
		t.Fatalf("start game: %v", err)
	}

	res, err := c.PublishTurnEnd(ctx, "pb", 3, game.Extra{})
	if err != nil {
		t.Fatalf("out of turn: %v", err)
	}
	if res.Rejection != game.RejectNotYourTurn {
		t.Fatalf("rejection = %q", res.Rejection)
	}
	if st := f.state(t); st.PlayerStates["pb"].Score != 0 || st.CurrentTurn != "pa" {
		t.Fatalf("rejected turn end changed state: %+v", st)
	}

	if _, err := c.PublishTurnEnd(ctx, "pa", 10, game.Extra{}); err != nil {
		t.Fatalf("pa turn end: %v", err)
	}
	st := f.state(t)
	if st.CurrentTurn != "pb" || st.PlayerStates["pa"].Score != 10 || st.PlayerStates["pa"].RoundsCompleted != 1 {
		t.Fatalf("state after pa = %+v", st)
	}

	res, err = c.PublishTurnEnd(ctx, "pb", 4, game.Extra{})
	if err != nil {
		t.Fatalf("pb turn end: %v", err)
	}
	if !res.ShouldEndGame || res.Winner != "pb" {
		t.Fatalf("result = %+v", res)
	}
	st = f.state(t)
	if st.Status != game.StatusFinished || st.Winner != "pb" || st.EndedAt == 0 {
		t.Fatalf("final state = %+v", st)
	}
	if !reflect.DeepEqual(st.FinalScores, map[string]int{"pa": 10, "pb": 4}) {
		t.Fatalf("finalScores = %v", st.FinalScores)
	}
	if len(st.Rankings) != 2 || st.Rankings[0].PlayerID != "pb" {
		t.Fatalf("rankings = %+v", st.Rankings)
	}
	status, _, _ := f.mem.Read(ctx, store.Join(lobby.SessionPath(f.sid), "matchState", "status"))
	if status != "finished" {
		t.Fatalf("matchState status = %v", status)
	}

	res, err = c.PublishTurnEnd(ctx, "pa", 1, game.Extra{})
	if err != nil || res.Rejection != game.RejectGameOver {
		t.Fatalf("after finish: %+v %v", res, err)
	}
}

func TestDicePokerTurnEndTracksCredits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "dicepoker", "pa", "pb")
	c := f.coordinator(t)
	if err := c.StartGame(ctx); err != nil {
		t.Fatalf("start game: %v", err)
	}
	if _, err := c.PublishTurnEnd(ctx, "pa", 512, game.Extra{CreditDelta: -200}); err != nil {
		t.Fatalf("turn end: %v", err)
	}
	credits := f.state(t).PlayerStates["pa"].Credits
	if credits == nil || *credits != game.DefaultStartingCredits-200 {
		t.Fatalf("credits = %v", credits)
	}
}

func TestPublishTurnEndWithoutGameState(t *testing.T) {
	mem := store.NewMemory()
	c := New(mem, "missing", WithVariant(game.ShutTheBox{}))
	defer c.Close()
	_, err := c.PublishTurnEnd(context.Background(), "pa", 1, game.Extra{})
	if !errors.Is(err, ErrNoGameState) {
		t.Fatalf("err = %v", err)
	}
}

func TestUnknownGameType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "", "pa")
	c := f.coordinator(t)
	if err := c.StartGame(ctx); !errors.Is(err, ErrUnknownGameType) {
		t.Fatalf("err = %v", err)
	}
}

func TestEndTurnPassesWithoutScoring(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox", "pa", "pb")
	c := f.coordinator(t)
	if err := c.StartGame(ctx); err != nil {
		t.Fatalf("start game: %v", err)
	}
	if _, r, err := c.EndTurn(ctx, "pb"); err != nil || r != game.RejectNotYourTurn {
		t.Fatalf("out of turn: %q %v", r, err)
	}
	next, r, err := c.EndTurn(ctx, "pa")
	if err != nil || r != "" || next != "pb" {
		t.Fatalf("end turn = %q %q %v", next, r, err)
	}
	next, _, _ = c.EndTurn(ctx, "pb")
	st := f.state(t)
	if next != "pa" || st.Round != 2 || st.PlayerStates["pa"].RoundsCompleted != 0 {
		t.Fatalf("state = %+v", st)
	}
}

func TestStartGameResetsCounters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox", "pa", "pb")
	c := f.coordinator(t)
	if err := c.StartGame(ctx); err != nil {
		t.Fatalf("start game: %v", err)
	}
	_, _ = c.PublishTurnEnd(ctx, "pa", 9, game.Extra{})
	_, _ = c.PublishTurnEnd(ctx, "pb", 3, game.Extra{})
	_ = c.PublishMove(ctx, "pb", map[string]any{"tiles": []int{1}})

	f.join(t, "pc")
	if err := f.members.Leave(ctx, f.sid, "pa"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := c.StartGame(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	st := f.state(t)
	if st.Status != game.StatusPlaying || st.Winner != "" || st.FinalScores != nil || st.LastMove != nil {
		t.Fatalf("state = %+v", st)
	}
	if !reflect.DeepEqual(st.TurnOrder, []string{"pb", "pc"}) || st.CurrentTurn != "pb" {
		t.Fatalf("turnOrder = %v current %q", st.TurnOrder, st.CurrentTurn)
	}
	if st.PlayerStates["pb"].Score != 0 || st.PlayerStates["pb"].RoundsCompleted != 0 {
		t.Fatalf("pb = %+v", st.PlayerStates["pb"])
	}
}

func TestPublishMove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox", "pa")
	c := f.coordinator(t)
	if err := c.PublishMove(ctx, "pa", map[string]any{"d1": 3, "d2": 4}); err != nil {
		t.Fatalf("publish move: %v", err)
	}
	st := f.state(t)
	if st.LastMove == nil || st.LastMove.PlayerID != "pa" || st.LastMove.Timestamp == 0 {
		t.Fatalf("lastMove = %+v", st.LastMove)
	}
}

func TestAllReady(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox")
	if _, err := f.members.AddBot(ctx, f.sid, ""); err != nil {
		t.Fatalf("add bot: %v", err)
	}
	c := f.coordinator(t)
	waitFor(t, "bot participant", func() bool { return len(c.Participants()) == 1 })
	if c.AllReady() {
		t.Fatal("bots only session reported ready")
	}

	f.join(t, "pa")
	waitFor(t, "human participant", func() bool { return len(c.Participants()) == 2 })
	if c.AllReady() {
		t.Fatal("unready human reported ready")
	}
	if err := c.SetReady(ctx, "pa", true); err != nil {
		t.Fatalf("set ready: %v", err)
	}
	waitFor(t, "all ready", c.AllReady)
}

func TestSetReadyRejectsBadID(t *testing.T) {
	f := newFixture(t, "shutthebox", "pa")
	c := f.coordinator(t)
	if err := c.SetReady(context.Background(), "a/b", true); !errors.Is(err, lobby.ErrInvalidIdentifier) {
		t.Fatalf("err = %v", err)
	}
}

func TestHooksAndSingleGameEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox", "pa", "pb")

	var ends atomic.Int32
	var mu sync.Mutex
	turns := []string{}
	c := f.coordinator(t,
		WithSelf("pb"),
		WithLedger(ledger.New(f.mem)),
		WithHooks(Hooks{
			OnTurnChange: func(current string, mine bool) {
				mu.Lock()
				defer mu.Unlock()
				if mine != (current == "pb") {
					t.Errorf("mine = %v for %q", mine, current)
				}
				turns = append(turns, current)
			},
			OnGameEnd: func(winner string, scores map[string]int) {
				if winner != "pa" || scores["pa"] != 2 {
					t.Errorf("game end = %q %v", winner, scores)
				}
				ends.Add(1)
			},
		}),
	)
	if err := c.StartGame(ctx); err != nil {
		t.Fatalf("start game: %v", err)
	}
	_, _ = c.PublishTurnEnd(ctx, "pa", 2, game.Extra{})
	waitFor(t, "my turn", c.IsMyTurn)
	_, _ = c.PublishTurnEnd(ctx, "pb", 8, game.Extra{})
	waitFor(t, "game end", func() bool { return ends.Load() == 1 })

	_ = c.UpdateScore(ctx, "pa", 3)
	_ = c.UpdateScore(ctx, "pb", 9)
	waitFor(t, "later updates", func() bool { return f.state(t).PlayerStates["pb"].Score == 9 })
	time.Sleep(20 * time.Millisecond)
	if n := ends.Load(); n != 1 {
		t.Fatalf("game end fired %d times", n)
	}

	waitFor(t, "settlement", func() bool {
		p, err := f.members.Participants(ctx, f.sid)
		return err == nil && p["pa"].TotalWins == 1
	})
	mu.Lock()
	defer mu.Unlock()
	if len(turns) < 2 || turns[0] != "pa" {
		t.Fatalf("turn changes = %v", turns)
	}
}

func TestDriverPlaysBotTurns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "dicepoker")
	bot, err := f.members.AddBot(ctx, f.sid, "Robo")
	if err != nil {
		t.Fatalf("add bot: %v", err)
	}
	f.join(t, "pa")
	c := f.coordinator(t, WithBotDriver(rand.New(rand.NewSource(3))), WithConfig(game.Config{MaxRoundsPerPlayer: 2}))
	if err := c.StartGame(ctx); err != nil {
		t.Fatalf("start game: %v", err)
	}

	for round := 1; round <= 2; round++ {
		f.stateWhen(t, "human turn", func(st game.TurnState) bool {
			return st.CurrentTurn == "pa" && st.PlayerStates[bot].RoundsCompleted == round
		})
		if _, err := c.PublishTurnEnd(ctx, "pa", 0, game.Extra{}); err != nil {
			t.Fatalf("human turn end: %v", err)
		}
	}
	st := f.stateWhen(t, "finish", func(st game.TurnState) bool { return st.Status == game.StatusFinished })
	if st.Winner != bot {
		t.Fatalf("winner = %q, want bot with a positive hand", st.Winner)
	}
	if st.LastMove == nil || st.LastMove.PlayerID != bot {
		t.Fatalf("lastMove = %+v", st.LastMove)
	}
}

func TestDriverSkipsDepartedParticipant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox", "pa", "pb", "pc")
	c := f.coordinator(t, WithBotDriver(rand.New(rand.NewSource(1))))
	if err := c.StartGame(ctx); err != nil {
		t.Fatalf("start game: %v", err)
	}
	if _, err := c.PublishTurnEnd(ctx, "pa", 5, game.Extra{}); err != nil {
		t.Fatalf("pa: %v", err)
	}
	if err := f.members.Leave(ctx, f.sid, "pb"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	st := f.stateWhen(t, "skip to pc", func(st game.TurnState) bool { return st.CurrentTurn == "pc" })
	if !st.PlayerStates["pb"].Departed {
		t.Fatalf("pb not marked departed: %+v", st.PlayerStates["pb"])
	}
	if _, err := c.PublishTurnEnd(ctx, "pc", 7, game.Extra{}); err != nil {
		t.Fatalf("pc: %v", err)
	}
	st = f.stateWhen(t, "finish", func(st game.TurnState) bool { return st.Status == game.StatusFinished })
	if !reflect.DeepEqual(st.FinalScores, map[string]int{"pa": 5, "pc": 7}) || st.Winner != "pa" {
		t.Fatalf("final = %v winner %q", st.FinalScores, st.Winner)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture(t, "shutthebox", "pa")
	c := New(f.mem, f.sid)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	c.Close()
	c.Close()
	if err := c.Subscribe(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("subscribe after close = %v", err)
	}
}

func TestStartOrder(t *testing.T) {
	participants := map[string]lobby.Participant{
		"a": {JoinedAt: 3},
		"b": {JoinedAt: 1},
		"c": {JoinedAt: 2},
	}
	got := startOrder([]string{"a", "x", "b"}, participants)
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("startOrder = %v, want %v", got, want)
	}
}

func TestTurnEndsWaitForStart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox", "pa", "pb")
	c := f.coordinator(t)
	f.stateWhen(t, "seeded turn", func(st game.TurnState) bool { return st.CurrentTurn == "pa" })

	res, err := c.PublishTurnEnd(ctx, "pa", 3, game.Extra{})
	if err != nil || res.Rejection != game.RejectNotStarted {
		t.Fatalf("turn end while waiting = %+v, %v", res, err)
	}
	if _, r, err := c.EndTurn(ctx, "pa"); err != nil || r != game.RejectNotStarted {
		t.Fatalf("end turn while waiting = %q, %v", r, err)
	}
	st := f.state(t)
	if st.Status != game.StatusWaiting || st.CurrentTurn != "pa" || st.PlayerStates["pa"].RoundsCompleted != 0 {
		t.Fatalf("state changed before start: %+v", st)
	}

	if err := c.StartGame(ctx); err != nil {
		t.Fatalf("start game: %v", err)
	}
	if res, err := c.PublishTurnEnd(ctx, "pa", 3, game.Extra{}); err != nil || !res.Accepted() {
		t.Fatalf("turn end after start = %+v, %v", res, err)
	}
}

func TestAttachingToFinishedGameDoesNotFireGameEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox", "pa", "pb")
	first := f.coordinator(t)
	if err := first.StartGame(ctx); err != nil {
		t.Fatalf("start game: %v", err)
	}
	_, _ = first.PublishTurnEnd(ctx, "pa", 2, game.Extra{})
	_, _ = first.PublishTurnEnd(ctx, "pb", 6, game.Extra{})
	f.stateWhen(t, "finished", func(st game.TurnState) bool { return st.Status == game.StatusFinished })

	var ends atomic.Int32
	late := f.coordinator(t, WithHooks(Hooks{
		OnGameEnd: func(string, map[string]int) { ends.Add(1) },
	}))
	waitFor(t, "late coordinator state", func() bool {
		st, ok := late.State()
		return ok && st.Status == game.StatusFinished
	})
	time.Sleep(20 * time.Millisecond)
	if n := ends.Load(); n != 0 {
		t.Fatalf("game end fired %d times on attach", n)
	}

	if err := first.StartGame(ctx); err != nil {
		t.Fatalf("restart game: %v", err)
	}
	_, _ = first.PublishTurnEnd(ctx, "pa", 4, game.Extra{})
	_, _ = first.PublishTurnEnd(ctx, "pb", 1, game.Extra{})
	waitFor(t, "second game end", func() bool { return ends.Load() == 1 })
}

func TestEndGame(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox", "pa", "pb")
	var ends atomic.Int32
	c := f.coordinator(t, WithHooks(Hooks{
		OnGameEnd: func(winner string, scores map[string]int) {
			if winner != "pb" || scores["pb"] != 1 {
				t.Errorf("game end = %q %v", winner, scores)
			}
			ends.Add(1)
		},
	}))
	if err := c.StartGame(ctx); err != nil {
		t.Fatalf("start game: %v", err)
	}
	waitFor(t, "playing", func() bool {
		st, _ := c.State()
		return st.Status == game.StatusPlaying
	})
	if err := c.EndGame(ctx, "pb", map[string]int{"pa": 4, "pb": 1}); err != nil {
		t.Fatalf("end game: %v", err)
	}
	st := f.stateWhen(t, "finished", func(st game.TurnState) bool { return st.Status == game.StatusFinished })
	if st.Winner != "pb" || !reflect.DeepEqual(st.FinalScores, map[string]int{"pa": 4, "pb": 1}) {
		t.Fatalf("state = %+v", st)
	}
	waitFor(t, "game end hook", func() bool { return ends.Load() == 1 })

	_ = c.UpdateScore(ctx, "pa", 7)
	waitFor(t, "later update", func() bool {
		st, _ := c.State()
		return st.PlayerStates["pa"].Score == 7
	})
	if n := ends.Load(); n != 1 {
		t.Fatalf("game end fired %d times", n)
	}
}

// deafStore never delivers subscription updates.
type deafStore struct {
	store.Store
}

type nopSubscription struct{}

func (nopSubscription) Unsubscribe() {}

func (deafStore) Subscribe(context.Context, string, func(store.Snapshot)) (store.Subscription, error) {
	return nopSubscription{}, nil
}

func TestResyncPicksUpMissedWrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "shutthebox", "pa", "pb")
	c := New(deafStore{Store: f.mem}, f.sid)
	t.Cleanup(c.Close)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, ok := c.State(); ok {
		t.Fatal("state seen without delivery")
	}

	if err := c.Resync(ctx); err != nil {
		t.Fatalf("resync: %v", err)
	}
	waitFor(t, "first resync", func() bool {
		return c.CurrentTurn() == "pa" && len(c.Participants()) == 2
	})

	if err := f.mem.Update(ctx, lobby.GameStatePath(f.sid), map[string]any{"currentTurn": "pb"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	f.join(t, "pc")
	if c.CurrentTurn() != "pa" {
		t.Fatalf("current turn moved without resync: %q", c.CurrentTurn())
	}
	if err := c.Resync(ctx); err != nil {
		t.Fatalf("resync: %v", err)
	}
	waitFor(t, "second resync", func() bool {
		return c.CurrentTurn() == "pb" && len(c.Participants()) == 3
	})
}
