package lobby

import (
	"context"
	"fmt"
	"strings"

	"lobbysync/internal/store"

	"github.com/rs/zerolog/log"
)

// BotPrefix marks participant ids synthesized for bots.
const BotPrefix = "bot-"

// Membership manages participant records inside a session.
type Membership struct {
	store store.Store
	keys  *keySource
	chips int64
}

func NewMembership(st store.Store, opts ...Option) *Membership {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Membership{store: st, keys: newKeySource(o.rng), chips: o.chips}
}

func IsBotID(participantID string) bool {
	return strings.HasPrefix(participantID, BotPrefix)
}

// DefaultName is the display name used when a participant joins without one.
func DefaultName(participantID string) string {
	short := participantID
	if len(short) > 4 {
		short = short[:4]
	}
	return "Player-" + short
}

// Join writes the participant record for participantID, keeping the join
// time, score, wins, chips, status, bot flag and name of an earlier join, so
// joining again with the same id changes nothing.
func (m *Membership) Join(ctx context.Context, sessionID, participantID, displayName string) (Participant, error) {
	if err := validIDs(sessionID, participantID); err != nil {
		return Participant{}, err
	}
	path := ParticipantPath(sessionID, participantID)
	raw, found, err := m.store.Read(ctx, path)
	if err != nil {
		return Participant{}, fmt.Errorf("read participant: %w", err)
	}
	prev, _ := raw.(map[string]any)
	var existing Participant
	if found {
		if err := store.Decode(raw, &existing); err != nil {
			return Participant{}, err
		}
	}

	name := strings.TrimSpace(displayName)
	if found && existing.Name != "" {
		name = existing.Name
	}
	if name == "" {
		name = DefaultName(participantID)
	}
	record := map[string]any{
		"id":        participantID,
		"name":      name,
		"isBot":     false,
		"joinedAt":  store.ServerTimestamp(),
		"score":     0,
		"totalWins": 0,
		"chips":     m.chips,
		"status":    DefaultStatus,
	}
	for _, field := range []string{"isBot", "joinedAt", "score", "totalWins", "chips", "status"} {
		if v, ok := prev[field]; ok {
			record[field] = v
		}
	}
	if err := m.store.Write(ctx, path, record); err != nil {
		return Participant{}, fmt.Errorf("write participant: %w", err)
	}
	p, _, err := m.participant(ctx, path)
	if err != nil {
		return Participant{}, err
	}
	log.Info().Str("session_id", sessionID).Str("participant_id", participantID).Bool("rejoin", found).Msg("participant joined")
	return p, nil
}

// Leave removes the participant record. Turn order is left alone.
func (m *Membership) Leave(ctx context.Context, sessionID, participantID string) error {
	if err := validIDs(sessionID, participantID); err != nil {
		return err
	}
	if err := m.store.Remove(ctx, ParticipantPath(sessionID, participantID)); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	log.Info().Str("session_id", sessionID).Str("participant_id", participantID).Msg("participant left")
	return nil
}

// AddBot writes a bot participant and returns its id.
func (m *Membership) AddBot(ctx context.Context, sessionID, name string) (string, error) {
	if store.ValidSegment(sessionID) != nil {
		return "", ErrInvalidIdentifier
	}
	if strings.TrimSpace(name) == "" {
		name = "Bot"
	}
	id := BotPrefix + m.keys.botSuffix()
	err := m.store.Write(ctx, ParticipantPath(sessionID, id), map[string]any{
		"id":        id,
		"name":      name,
		"isBot":     true,
		"joinedAt":  store.ServerTimestamp(),
		"score":     0,
		"totalWins": 0,
		"status":    DefaultStatus,
	})
	if err != nil {
		return "", fmt.Errorf("write bot: %w", err)
	}
	return id, nil
}

// SetStatus records a free-form presence string such as "inGame".
func (m *Membership) SetStatus(ctx context.Context, sessionID, participantID, status string) error {
	if err := validIDs(sessionID, participantID); err != nil {
		return err
	}
	return m.store.Write(ctx, store.Join(ParticipantPath(sessionID, participantID), "status"), status)
}

func (m *Membership) SetScore(ctx context.Context, sessionID, participantID string, score int) error {
	if err := validIDs(sessionID, participantID); err != nil {
		return err
	}
	return m.store.Write(ctx, store.Join(ParticipantPath(sessionID, participantID), "score"), score)
}

// Participants reads every participant of a session keyed by id.
func (m *Membership) Participants(ctx context.Context, sessionID string) (map[string]Participant, error) {
	if store.ValidSegment(sessionID) != nil {
		return nil, ErrInvalidIdentifier
	}
	v, _, err := m.store.Read(ctx, ParticipantsPath(sessionID))
	if err != nil {
		return nil, fmt.Errorf("read participants: %w", err)
	}
	out := map[string]Participant{}
	if v == nil {
		return out, nil
	}
	if err := store.Decode(v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Membership) participant(ctx context.Context, path string) (Participant, bool, error) {
	v, ok, err := m.store.Read(ctx, path)
	if err != nil {
		return Participant{}, false, fmt.Errorf("read participant: %w", err)
	}
	if !ok {
		return Participant{}, false, nil
	}
	var p Participant
	if err := store.Decode(v, &p); err != nil {
		return Participant{}, false, err
	}
	return p, true, nil
}

func validIDs(sessionID, participantID string) error {
	if store.ValidSegment(sessionID) != nil || store.ValidSegment(participantID) != nil {
		return ErrInvalidIdentifier
	}
	return nil
}
