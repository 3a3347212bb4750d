package lobby

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"unicode/utf8"

	"lobbysync/internal/game"
	"lobbysync/internal/store"

	"github.com/rs/zerolog/log"
)

// Registry creates and locates sessions.
type Registry struct {
	store      store.Store
	keys       *keySource
	keyRetries int
	scanLimit  int
	maxPlayers int
}

type Option func(*options)

type options struct {
	rng        *rand.Rand
	keyRetries int
	scanLimit  int
	maxPlayers int
	chips      int64
}

func defaultOptions() options {
	return options{
		keyRetries: DefaultKeyRetries,
		scanLimit:  DefaultScanLimit,
		maxPlayers: DefaultMaxPlayers,
		chips:      DefaultChips,
	}
}

// WithRand fixes the random source used for join keys and bot ids.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

func WithKeyRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.keyRetries = n
		}
	}
}

func WithScanLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.scanLimit = n
		}
	}
}

func WithMaxPlayers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPlayers = n
		}
	}
}

// WithStartingChips sets the chip balance given to new human participants.
func WithStartingChips(n int64) Option {
	return func(o *options) { o.chips = n }
}

func NewRegistry(st store.Store, opts ...Option) *Registry {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		store:      st,
		keys:       newKeySource(o.rng),
		keyRetries: o.keyRetries,
		scanLimit:  o.scanLimit,
		maxPlayers: o.maxPlayers,
	}
}

// CreateSession writes a new waiting session. The join key is checked
// against existing sessions at most keyRetries times and regenerated on each
// collision; the key drawn after the last collision is used unchecked.
func (r *Registry) CreateSession(ctx context.Context, gameType string, vis Visibility) (Created, error) {
	if strings.TrimSpace(gameType) == "" {
		gameType = DefaultGameType
	}
	key := r.keys.key()
	for attempt := 1; attempt <= r.keyRetries; attempt++ {
		taken, err := r.keyTaken(ctx, key)
		if err != nil {
			return Created{}, err
		}
		if !taken {
			break
		}
		key = r.keys.key()
		if attempt == r.keyRetries {
			log.Warn().Str("join_key", key).Int("checks", attempt).Msg("join key used unchecked after collisions")
		}
	}

	id, err := r.store.Push(ctx, SessionsRoot)
	if err != nil {
		return Created{}, fmt.Errorf("allocate session id: %w", err)
	}
	record := map[string]any{
		"key":       key,
		"gameType":  gameType,
		"isPrivate": vis != Public,
		"createdAt": store.ServerTimestamp(),
		"matchState": map[string]any{
			"status":      string(game.StatusWaiting),
			"turnOrder":   []string{},
			"currentTurn": "",
			"round":       1,
		},
	}
	if err := r.store.Write(ctx, SessionPath(id), record); err != nil {
		return Created{}, fmt.Errorf("write session: %w", err)
	}
	log.Info().Str("session_id", id).Str("join_key", key).Str("game_type", gameType).Msg("session created")
	return Created{SessionID: id, JoinKey: key}, nil
}

func (r *Registry) keyTaken(ctx context.Context, key string) (bool, error) {
	matches, err := r.store.Query(ctx, SessionsRoot, store.Query{OrderByChild: "key", EqualTo: key})
	if err != nil {
		return false, fmt.Errorf("check join key: %w", err)
	}
	return len(matches) > 0, nil
}

// Resolve turns a join key or session id into a session id. Any identifier
// of exactly six characters is looked up as a key, never used as an id.
func (r *Registry) Resolve(ctx context.Context, identifier string) (string, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return "", ErrInvalidIdentifier
	}
	if normalized := strings.ToUpper(id); utf8.RuneCountInString(normalized) == KeyLength {
		matches, err := r.store.Query(ctx, SessionsRoot, store.Query{OrderByChild: "key", EqualTo: normalized})
		if err != nil {
			return "", fmt.Errorf("resolve join key: %w", err)
		}
		if len(matches) == 0 {
			return "", ErrKeyNotFound
		}
		return matches[0].Key, nil
	}
	if store.ValidSegment(id) != nil {
		return "", ErrInvalidIdentifier
	}
	return id, nil
}

// FindPublicSession returns the first recent public session that is still
// waiting for gameType and has room, or opens a new one. Nothing is reserved:
// concurrent callers can land on the same session.
func (r *Registry) FindPublicSession(ctx context.Context, gameType string) (Match, error) {
	candidates, err := r.store.Query(ctx, SessionsRoot, store.Query{
		OrderByChild: "isPrivate",
		EqualTo:      false,
		LimitToLast:  r.scanLimit,
	})
	if err != nil {
		return Match{}, fmt.Errorf("scan public sessions: %w", err)
	}
	for _, c := range candidates {
		s, err := decodeSession(c.Key, c.Value)
		if err != nil {
			log.Warn().Err(err).Str("session_id", c.Key).Msg("skip undecodable session")
			continue
		}
		if r.joinable(s, gameType) {
			return Match{SessionID: s.ID, JoinKey: s.Key}, nil
		}
	}
	created, err := r.CreateSession(ctx, gameType, Public)
	if err != nil {
		return Match{}, err
	}
	return Match{SessionID: created.SessionID, JoinKey: created.JoinKey, Created: true}, nil
}

func (r *Registry) joinable(s Session, gameType string) bool {
	if s.GameType != gameType || s.MatchState.Status != game.StatusWaiting {
		return false
	}
	if s.GameState != nil && s.GameState.Status != "" && s.GameState.Status != game.StatusWaiting {
		return false
	}
	return len(s.Participants) < r.maxPlayers
}

// Session reads the whole session record.
func (r *Registry) Session(ctx context.Context, sessionID string) (Session, error) {
	if store.ValidSegment(sessionID) != nil {
		return Session{}, ErrInvalidIdentifier
	}
	v, ok, err := r.store.Read(ctx, SessionPath(sessionID))
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return decodeSession(sessionID, v)
}

func (r *Registry) SwitchGame(ctx context.Context, sessionID, gameType string) error {
	if store.ValidSegment(sessionID) != nil {
		return ErrInvalidIdentifier
	}
	return r.store.Write(ctx, store.Join(SessionPath(sessionID), "gameType"), gameType)
}

// UpdateGameData merges patch into the game's auxiliary namespace.
func (r *Registry) UpdateGameData(ctx context.Context, sessionID, gameType string, patch map[string]any) error {
	if store.ValidSegment(sessionID) != nil || store.Sanitize(gameType) == "" {
		return ErrInvalidIdentifier
	}
	return r.store.Update(ctx, GameDataPath(sessionID, gameType), patch)
}

func (r *Registry) ClearGameData(ctx context.Context, sessionID, gameType string) error {
	if store.ValidSegment(sessionID) != nil || store.Sanitize(gameType) == "" {
		return ErrInvalidIdentifier
	}
	return r.store.Remove(ctx, GameDataPath(sessionID, gameType))
}
