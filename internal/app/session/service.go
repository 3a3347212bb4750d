// Package session is the authoritative session service: it owns one hosted
// coordinator per session and serializes every mutation of that session.
package session

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"lobbysync/internal/coordinator"
	"lobbysync/internal/game"
	"lobbysync/internal/game/viewmodel"
	"lobbysync/internal/identity"
	"lobbysync/internal/ledger"
	"lobbysync/internal/lobby"
	"lobbysync/internal/notify"
	"lobbysync/internal/store"

	"github.com/rs/zerolog/log"
)

type Service struct {
	store    store.Store
	registry *lobby.Registry
	members  *lobby.Membership
	ledger   *ledger.Ledger
	gameCfg  game.Config
	lobbyOpt []lobby.Option
	seed     int64
	notifier Notifier

	mu     sync.Mutex
	closed bool
	hosted map[string]*hosted
}

type hosted struct {
	mu    sync.Mutex
	coord *coordinator.Coordinator
}

// Notifier receives session lifecycle events. Notify must not block.
type Notifier interface {
	Notify(ev notify.Event)
}

type Option func(*Service)

func WithGameConfig(cfg game.Config) Option {
	return func(s *Service) { s.gameCfg = cfg }
}

func WithLobbyOptions(opts ...lobby.Option) Option {
	return func(s *Service) { s.lobbyOpt = append(s.lobbyOpt, opts...) }
}

// WithSeed fixes the bot dice. Session n is seeded with seed+n.
func WithSeed(seed int64) Option {
	return func(s *Service) { s.seed = seed }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		ledger: ledger.New(st),
		seed:   time.Now().UnixNano(),
		hosted: map[string]*hosted{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry = lobby.NewRegistry(st, s.lobbyOpt...)
	s.members = lobby.NewMembership(st, s.lobbyOpt...)
	return s
}

// Create opens a session and, when a participant is named or allocated,
// joins it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (JoinResponse, error) {
	vis := lobby.Public
	if req.Private {
		vis = lobby.Private
	}
	created, err := s.registry.CreateSession(ctx, strings.TrimSpace(req.GameType), vis)
	if err != nil {
		return JoinResponse{}, err
	}
	resp, err := s.join(ctx, created.SessionID, req.ParticipantID, req.Name)
	if err != nil {
		return JoinResponse{}, err
	}
	resp.JoinKey = created.JoinKey
	resp.Created = true
	return resp, nil
}

func (s *Service) Join(ctx context.Context, req JoinRequest) (JoinResponse, error) {
	sid, err := s.registry.Resolve(ctx, req.Identifier)
	if err != nil {
		return JoinResponse{}, err
	}
	sess, err := s.registry.Session(ctx, sid)
	if err != nil {
		return JoinResponse{}, err
	}
	resp, err := s.join(ctx, sid, req.ParticipantID, req.Name)
	if err != nil {
		return JoinResponse{}, err
	}
	resp.JoinKey = sess.Key
	return resp, nil
}

// Match joins the first public waiting session for the game type, opening
// one when none has room.
func (s *Service) Match(ctx context.Context, req MatchRequest) (JoinResponse, error) {
	gameType := strings.TrimSpace(req.GameType)
	if gameType == "" {
		return JoinResponse{}, ErrInvalidRequest
	}
	m, err := s.registry.FindPublicSession(ctx, gameType)
	if err != nil {
		return JoinResponse{}, err
	}
	resp, err := s.join(ctx, m.SessionID, req.ParticipantID, req.Name)
	if err != nil {
		return JoinResponse{}, err
	}
	resp.JoinKey = m.JoinKey
	resp.Created = m.Created
	return resp, nil
}

func (s *Service) join(ctx context.Context, sessionID, participantID, name string) (JoinResponse, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		participantID = identity.New()
	}
	var p lobby.Participant
	err := s.withSession(ctx, sessionID, func(*hosted) error {
		var err error
		p, err = s.members.Join(ctx, sessionID, participantID, name)
		return err
	})
	if err != nil {
		return JoinResponse{}, err
	}
	return JoinResponse{SessionID: sessionID, Participant: p}, nil
}

// Leave removes the participant. The hosted coordinator is released once the
// session has nobody left.
func (s *Service) Leave(ctx context.Context, sessionID, participantID string) error {
	var empty bool
	err := s.withSession(ctx, sessionID, func(*hosted) error {
		if err := s.members.Leave(ctx, sessionID, participantID); err != nil {
			return err
		}
		left, err := s.members.Participants(ctx, sessionID)
		if err != nil {
			return err
		}
		empty = len(left) == 0
		return nil
	})
	if err != nil {
		return err
	}
	if empty {
		s.release(sessionID)
	}
	return nil
}

func (s *Service) AddBot(ctx context.Context, sessionID, name string) (string, error) {
	var id string
	err := s.withSession(ctx, sessionID, func(*hosted) error {
		var err error
		id, err = s.members.AddBot(ctx, sessionID, name)
		return err
	})
	return id, err
}

func (s *Service) SetReady(ctx context.Context, sessionID string, req ReadyRequest) error {
	if req.ParticipantID == "" {
		return ErrInvalidRequest
	}
	return s.withSession(ctx, sessionID, func(h *hosted) error {
		present, err := s.members.Participants(ctx, sessionID)
		if err != nil {
			return err
		}
		if _, ok := present[req.ParticipantID]; !ok {
			return ErrNotParticipant
		}
		return h.coord.SetReady(ctx, req.ParticipantID, req.Ready)
	})
}

// Start begins play once every human participant is ready. Force skips the
// readiness check but not the in-progress check.
func (s *Service) Start(ctx context.Context, sessionID string, req StartRequest) error {
	return s.withSession(ctx, sessionID, func(h *hosted) error {
		sess, err := s.registry.Session(ctx, sessionID)
		if err != nil {
			return err
		}
		var st game.TurnState
		if sess.GameState != nil {
			st = *sess.GameState
		}
		if st.Status == game.StatusPlaying {
			return ErrGameInProgress
		}
		if !req.Force && !coordinator.EveryoneReady(sess.Participants, st) {
			return ErrNotReady
		}
		if err := h.coord.StartGame(ctx); err != nil {
			return err
		}
		for id, p := range sess.Participants {
			if p.IsBot {
				continue
			}
			if err := s.members.SetStatus(ctx, sessionID, id, "inGame"); err != nil {
				log.Warn().Err(err).Str("session_id", sessionID).Str("participant_id", id).Msg("set participant status")
			}
		}
		s.notifyGameStarted(ctx, sessionID)
		return nil
	})
}

// TurnEnd publishes a participant's final score for their turn. The score is
// mirrored onto the participant record and any credit delta onto their chips.
func (s *Service) TurnEnd(ctx context.Context, sessionID string, req TurnEndRequest) (TurnEndResponse, error) {
	if req.ParticipantID == "" {
		return TurnEndResponse{}, ErrInvalidRequest
	}
	var resp TurnEndResponse
	err := s.withSession(ctx, sessionID, func(h *hosted) error {
		present, err := s.members.Participants(ctx, sessionID)
		if err != nil {
			return err
		}
		if _, ok := present[req.ParticipantID]; !ok {
			return ErrNotParticipant
		}
		res, err := h.coord.PublishTurnEnd(ctx, req.ParticipantID, req.Score, game.Extra{CreditDelta: req.CreditDelta})
		if err != nil {
			return err
		}
		if !res.Accepted() {
			return RejectedError{Rejection: res.Rejection}
		}
		if err := s.members.SetScore(ctx, sessionID, req.ParticipantID, req.Score); err != nil {
			return err
		}
		if req.CreditDelta != 0 {
			if _, err := s.ledger.AdjustChips(ctx, sessionID, req.ParticipantID, req.CreditDelta); err != nil {
				return err
			}
		}
		resp = TurnEndResponse{
			GameOver:    res.ShouldEndGame,
			Winner:      res.Winner,
			FinalScores: res.FinalScores,
			Rankings:    res.Rankings,
		}
		return nil
	})
	return resp, err
}

// Move records the current participant's latest move.
func (s *Service) Move(ctx context.Context, sessionID string, req MoveRequest) error {
	if req.ParticipantID == "" {
		return ErrInvalidRequest
	}
	return s.withSession(ctx, sessionID, func(h *hosted) error {
		sess, err := s.registry.Session(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.GameState == nil {
			return RejectedError{Rejection: game.RejectNotStarted}
		}
		if r := game.ValidateStatus(sess.GameState.Status); r != "" {
			return RejectedError{Rejection: r}
		}
		if sess.GameState.CurrentTurn != req.ParticipantID {
			return RejectedError{Rejection: game.RejectNotYourTurn}
		}
		return h.coord.PublishMove(ctx, req.ParticipantID, req.Data)
	})
}

// SwitchGame changes the game type between games.
func (s *Service) SwitchGame(ctx context.Context, sessionID, gameType string) error {
	gameType = strings.TrimSpace(gameType)
	if gameType == "" {
		return ErrInvalidRequest
	}
	return s.withSession(ctx, sessionID, func(*hosted) error {
		sess, err := s.registry.Session(ctx, sessionID)
		if err != nil {
			return err
		}
		if sess.GameState != nil && sess.GameState.Status == game.StatusPlaying {
			return ErrGameInProgress
		}
		return s.registry.SwitchGame(ctx, sessionID, gameType)
	})
}

func (s *Service) Session(ctx context.Context, sessionID string) (lobby.Session, error) {
	return s.registry.Session(ctx, sessionID)
}

// View renders the session from one participant's point of view.
func (s *Service) View(ctx context.Context, sessionID, participantID string) (viewmodel.SessionView, error) {
	sess, err := s.registry.Session(ctx, sessionID)
	if err != nil {
		return viewmodel.SessionView{}, err
	}
	return viewmodel.BuildSessionView(sess, participantID), nil
}

// Hosted returns the number of sessions with a live coordinator.
func (s *Service) Hosted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hosted)
}

// Close stops every hosted coordinator.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	all := s.hosted
	s.hosted = map[string]*hosted{}
	s.mu.Unlock()
	for _, h := range all {
		h.coord.Close()
	}
}

func (s *Service) withSession(ctx context.Context, sessionID string, fn func(h *hosted) error) error {
	h, err := s.host(ctx, sessionID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h)
}

// host returns the session's coordinator, starting it on first use.
func (s *Service) host(ctx context.Context, sessionID string) (*hosted, error) {
	if strings.TrimSpace(sessionID) == "" || store.ValidSegment(sessionID) != nil {
		return nil, lobby.ErrInvalidIdentifier
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if h, ok := s.hosted[sessionID]; ok {
		return h, nil
	}
	if _, err := s.registry.Session(ctx, sessionID); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(s.seed + int64(len(s.hosted))))
	var c *coordinator.Coordinator
	c = coordinator.New(s.store, sessionID,
		coordinator.WithBotDriver(rng),
		coordinator.WithLedger(s.ledger),
		coordinator.WithConfig(s.gameCfg),
		coordinator.WithHooks(coordinator.Hooks{
			OnGameEnd: func(winner string, finalScores map[string]int) {
				st, _ := c.State()
				s.notifyGameFinished(sessionID, winner, finalScores, st.Rankings)
			},
		}),
	)
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, err
	}
	h := &hosted{coord: c}
	s.hosted[sessionID] = h
	log.Info().Str("session_id", sessionID).Msg("session hosted")
	return h, nil
}

func (s *Service) notifyGameStarted(ctx context.Context, sessionID string) {
	if s.notifier == nil {
		return
	}
	sess, err := s.registry.Session(ctx, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("read session for notification")
		return
	}
	ev := notify.Event{Type: notify.EventGameStarted, SessionID: sessionID, GameType: sess.GameType}
	if sess.GameState != nil {
		ev.TurnOrder = sess.GameState.TurnOrder
	}
	s.notifier.Notify(ev)
}

func (s *Service) notifyGameFinished(sessionID, winner string, finalScores map[string]int, rankings []game.Ranking) {
	if s.notifier == nil {
		return
	}
	ev := notify.Event{
		Type:        notify.EventGameFinished,
		SessionID:   sessionID,
		Winner:      winner,
		FinalScores: finalScores,
		Rankings:    rankings,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if sess, err := s.registry.Session(ctx, sessionID); err == nil {
		ev.GameType = sess.GameType
	}
	s.notifier.Notify(ev)
}

func (s *Service) release(sessionID string) {
	s.mu.Lock()
	h, ok := s.hosted[sessionID]
	delete(s.hosted, sessionID)
	s.mu.Unlock()
	if ok {
		h.coord.Close()
		log.Info().Str("session_id", sessionID).Msg("session released")
	}
}
