// Package coordinator mirrors one session's shared state into a local view
// and publishes turn transitions back to the store.
package coordinator

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"sort"
	"sync"

	"lobbysync/internal/game"
	"lobbysync/internal/ledger"
	"lobbysync/internal/lobby"
	"lobbysync/internal/store"

	"github.com/rs/zerolog/log"
)

var (
	ErrClosed          = errors.New("coordinator_closed")
	ErrUnknownGameType = errors.New("unknown_game_type")
	ErrNoGameState     = errors.New("game_state_missing")
)

// Hooks are called from the coordinator's event loop, one at a time.
type Hooks struct {
	OnPlayersUpdate   func(participants map[string]lobby.Participant)
	OnGameStateUpdate func(state game.TurnState)
	OnTurnChange      func(currentTurn string, mine bool)
	OnGameEnd         func(winner string, finalScores map[string]int)
}

type Option func(*Coordinator)

// WithSelf sets the local participant used for OnTurnChange.
func WithSelf(participantID string) Option {
	return func(c *Coordinator) { c.self = participantID }
}

func WithHooks(h Hooks) Option {
	return func(c *Coordinator) { c.hooks = h }
}

// WithBotDriver makes this coordinator the session's driver: it plays bot
// turns and forfeits participants who left while holding the turn.
func WithBotDriver(rng *rand.Rand) Option {
	return func(c *Coordinator) { c.botRNG = rng }
}

// WithLedger settles the winner's total wins when a game finishes.
func WithLedger(l *ledger.Ledger) Option {
	return func(c *Coordinator) { c.ledger = l }
}

// WithVariant pins the game variant instead of deriving it from the
// session's gameType.
func WithVariant(v game.Variant) Option {
	return func(c *Coordinator) { c.variant = v }
}

func WithConfig(cfg game.Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

type eventKind int

const (
	sessionEvent eventKind = iota
	gameStateEvent
)

type event struct {
	kind eventKind
	snap store.Snapshot
}

type Coordinator struct {
	store     store.Store
	sessionID string
	self      string
	hooks     Hooks
	cfg       game.Config
	botRNG    *rand.Rand
	ledger    *ledger.Ledger

	events    chan event
	done      chan struct{}
	loopOnce  sync.Once
	closeOnce sync.Once
	loopDone  chan struct{}

	mu           sync.RWMutex
	running      bool
	subs         []store.Subscription
	variant      game.Variant
	gameType     string
	participants map[string]lobby.Participant
	state        game.TurnState
	stateExists  bool
	stateSeen    bool
	finished     bool
	lastTurn     string
	lastDriven   string
}

func New(st store.Store, sessionID string, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:        st,
		sessionID:    sessionID,
		events:       make(chan event, 64),
		done:         make(chan struct{}),
		loopDone:     make(chan struct{}),
		participants: map[string]lobby.Participant{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) SessionID() string { return c.sessionID }

// Start subscribes and creates the game state if the session has none.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.Subscribe(ctx); err != nil {
		return err
	}
	return c.initializeGameState(ctx)
}

// Subscribe opens the session and game state subscriptions and starts the
// event loop. Calling it again is a no-op.
func (c *Coordinator) Subscribe(ctx context.Context) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.mu.Lock()
	if len(c.subs) > 0 {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.startLoop()

	sessionSub, err := c.store.Subscribe(ctx, lobby.SessionPath(c.sessionID), c.forward(sessionEvent))
	if err != nil {
		return err
	}
	stateSub, err := c.store.Subscribe(ctx, lobby.GameStatePath(c.sessionID), c.forward(gameStateEvent))
	if err != nil {
		sessionSub.Unsubscribe()
		return err
	}
	c.mu.Lock()
	c.subs = []store.Subscription{sessionSub, stateSub}
	c.mu.Unlock()
	return nil
}

// Resync re-reads both subtrees and feeds them through the normal handlers.
func (c *Coordinator) Resync(ctx context.Context) error {
	sessionVal, sessionOK, err := c.store.Read(ctx, lobby.SessionPath(c.sessionID))
	if err != nil {
		return err
	}
	stateVal, stateOK, err := c.store.Read(ctx, lobby.GameStatePath(c.sessionID))
	if err != nil {
		return err
	}
	c.forward(sessionEvent)(store.Snapshot{Path: lobby.SessionPath(c.sessionID), Value: sessionVal, Exists: sessionOK})
	c.forward(gameStateEvent)(store.Snapshot{Path: lobby.GameStatePath(c.sessionID), Value: stateVal, Exists: stateOK})
	return nil
}

// Close detaches both subscriptions and stops the event loop. It is safe to
// call more than once.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		subs := c.subs
		c.subs = nil
		running := c.running
		c.mu.Unlock()
		for _, s := range subs {
			s.Unsubscribe()
		}
		close(c.done)
		if running {
			<-c.loopDone
		}
	})
}

func (c *Coordinator) startLoop() {
	c.loopOnce.Do(func() {
		c.mu.Lock()
		c.running = true
		c.mu.Unlock()
		go c.loop()
	})
}

func (c *Coordinator) forward(kind eventKind) func(store.Snapshot) {
	return func(snap store.Snapshot) {
		select {
		case c.events <- event{kind: kind, snap: snap}:
		case <-c.done:
		}
	}
}

func (c *Coordinator) loop() {
	defer close(c.loopDone)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.done
		cancel()
	}()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.events:
			switch ev.kind {
			case sessionEvent:
				c.handleSession(ctx, ev.snap)
			case gameStateEvent:
				c.handleGameState(ctx, ev.snap)
			}
			c.drive(ctx)
		}
	}
}

// Participants returns a copy of the last seen participant map.
func (c *Coordinator) Participants() map[string]lobby.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]lobby.Participant, len(c.participants))
	for k, v := range c.participants {
		out[k] = v
	}
	return out
}

// State returns the last seen game state and whether it exists.
func (c *Coordinator) State() (game.TurnState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.stateExists
}

func (c *Coordinator) CurrentTurn() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.CurrentTurn
}

func (c *Coordinator) IsMyTurn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self != "" && c.state.CurrentTurn == c.self
}

// AllReady holds when every human participant has flagged ready. With no
// human participants it never holds, so an all-bot session needs an
// explicit start.
func (c *Coordinator) AllReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return EveryoneReady(c.participants, c.state)
}

// EveryoneReady applies the AllReady rule to an arbitrary snapshot.
func EveryoneReady(participants map[string]lobby.Participant, st game.TurnState) bool {
	humans := 0
	for id, p := range participants {
		if p.IsBot {
			continue
		}
		humans++
		if !st.PlayerStates[id].Ready {
			return false
		}
	}
	return humans > 0
}

func (c *Coordinator) handleSession(ctx context.Context, snap store.Snapshot) {
	var s lobby.Session
	if snap.Exists {
		if err := store.Decode(snap.Value, &s); err != nil {
			log.Warn().Err(err).Str("session_id", c.sessionID).Msg("decode session")
			return
		}
	}
	if s.Participants == nil {
		s.Participants = map[string]lobby.Participant{}
	}
	for id, p := range s.Participants {
		p.ID = id
		s.Participants[id] = p
	}

	c.mu.Lock()
	changed := !reflect.DeepEqual(c.participants, s.Participants)
	c.participants = s.Participants
	c.gameType = s.GameType
	c.mu.Unlock()

	if s.GameState != nil {
		if err := c.reconcile(ctx, s.Participants, *s.GameState); err != nil {
			log.Warn().Err(err).Str("session_id", c.sessionID).Msg("lazy init failed")
		}
	}
	if changed && c.hooks.OnPlayersUpdate != nil {
		c.hooks.OnPlayersUpdate(c.Participants())
	}
}

// reconcile adds missing player states and seeds an empty turn order. It only
// ever adds keys, so racing clients converge on the same shape.
func (c *Coordinator) reconcile(ctx context.Context, participants map[string]lobby.Participant, st game.TurnState) error {
	patch := map[string]any{}
	for id, p := range participants {
		if _, ok := st.PlayerStates[id]; !ok {
			patch[store.Join("playerStates", id)] = map[string]any{"score": 0, "ready": p.IsBot}
		}
	}
	if len(st.TurnOrder) == 0 && (st.Status == "" || st.Status == game.StatusWaiting) && len(participants) > 0 {
		order := orderedIDs(participants)
		patch["turnOrder"] = order
		patch["currentTurn"] = order[0]
	}
	if len(patch) == 0 {
		return nil
	}
	return c.store.Update(ctx, lobby.GameStatePath(c.sessionID), patch)
}

func (c *Coordinator) handleGameState(ctx context.Context, snap store.Snapshot) {
	var st game.TurnState
	if snap.Exists {
		if err := store.Decode(snap.Value, &st); err != nil {
			log.Warn().Err(err).Str("session_id", c.sessionID).Msg("decode game state")
			return
		}
	}

	c.mu.Lock()
	c.state = st
	c.stateExists = snap.Exists
	turnChanged := st.CurrentTurn != "" && st.CurrentTurn != c.lastTurn
	c.lastTurn = st.CurrentTurn
	finished := st.Status == game.StatusFinished
	// The first snapshot is the baseline: a game that was already over when
	// this coordinator attached has no transition to report.
	baseline := !c.stateSeen
	ended := finished && !baseline && !c.finished
	c.finished = finished
	c.stateSeen = true
	mine := c.self != "" && st.CurrentTurn == c.self
	c.mu.Unlock()

	if !snap.Exists {
		return
	}
	if c.hooks.OnGameStateUpdate != nil {
		c.hooks.OnGameStateUpdate(st)
	}
	if turnChanged && c.hooks.OnTurnChange != nil {
		c.hooks.OnTurnChange(st.CurrentTurn, mine)
	}
	if baseline && finished {
		c.settle(ctx, st.Winner)
	}
	if ended {
		log.Info().Str("session_id", c.sessionID).Str("winner", st.Winner).Msg("game finished")
		if c.hooks.OnGameEnd != nil {
			c.hooks.OnGameEnd(st.Winner, st.FinalScores)
		}
		c.settle(ctx, st.Winner)
	}
}

// settle records the win once per game; SettleGame skips a game that is
// already settled.
func (c *Coordinator) settle(ctx context.Context, winner string) {
	if c.ledger == nil {
		return
	}
	if _, err := c.ledger.SettleGame(ctx, c.sessionID, winner); err != nil {
		log.Warn().Err(err).Str("session_id", c.sessionID).Msg("settle game")
	}
}

// orderedIDs sorts participants by join time, then id.
func orderedIDs(participants map[string]lobby.Participant) []string {
	ids := make([]string, 0, len(participants))
	for id := range participants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := participants[ids[i]], participants[ids[j]]
		if a.JoinedAt != b.JoinedAt {
			return a.JoinedAt < b.JoinedAt
		}
		return ids[i] < ids[j]
	})
	return ids
}
