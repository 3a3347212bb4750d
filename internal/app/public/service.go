// Package public serves read-only lobby listings.
package public

import (
	"context"
	"errors"
	"sort"

	"lobbysync/internal/game"
	"lobbysync/internal/lobby"
	"lobbysync/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	listingMaxRows  = 100
	defaultPageSize = 20
)

type Service struct {
	store      store.Store
	registry   *lobby.Registry
	members    *lobby.Membership
	maxPlayers int
	scanLimit  int
}

func NewService(st store.Store, maxPlayers, scanLimit int) *Service {
	if maxPlayers <= 0 {
		maxPlayers = lobby.DefaultMaxPlayers
	}
	if scanLimit <= 0 {
		scanLimit = listingMaxRows
	}
	return &Service{
		store:      st,
		registry:   lobby.NewRegistry(st),
		members:    lobby.NewMembership(st),
		maxPlayers: maxPlayers,
		scanLimit:  scanLimit,
	}
}

// Sessions lists recent public sessions still waiting for players, newest
// first. gameType filters when set.
func (s *Service) Sessions(ctx context.Context, gameType string, limit, offset int) (*SessionsResponse, error) {
	limit, ok := clampListingPage(limit, offset)
	if !ok {
		return &SessionsResponse{Items: []SessionItem{}, Limit: limit, Offset: offset}, nil
	}
	children, err := s.store.Query(ctx, lobby.SessionsRoot, store.Query{
		OrderByChild: "isPrivate",
		EqualTo:      false,
		LimitToLast:  s.scanLimit,
	})
	if err != nil {
		return nil, err
	}
	open := make([]SessionItem, 0, len(children))
	for i := len(children) - 1; i >= 0; i-- {
		var sess lobby.Session
		if err := store.Decode(children[i].Value, &sess); err != nil {
			log.Warn().Err(err).Str("session_id", children[i].Key).Msg("skip undecodable session")
			continue
		}
		if gameType != "" && sess.GameType != gameType {
			continue
		}
		if sess.MatchState.Status != game.StatusWaiting || len(sess.Participants) >= s.maxPlayers {
			continue
		}
		open = append(open, SessionItem{
			SessionID:  children[i].Key,
			JoinKey:    sess.Key,
			GameType:   sess.GameType,
			Players:    len(sess.Participants),
			MaxPlayers: s.maxPlayers,
			Status:     string(sess.MatchState.Status),
			CreatedAt:  sess.CreatedAt,
		})
	}
	items := []SessionItem{}
	if offset < len(open) {
		end := offset + limit
		if end > len(open) {
			end = len(open)
		}
		items = open[offset:end]
	}
	return &SessionsResponse{Items: items, Limit: limit, Offset: offset}, nil
}

// Leaderboard ranks a session's participants by sortBy, which must be one
// of wins, score or chips. Ties keep ascending participant id order.
func (s *Service) Leaderboard(ctx context.Context, sessionID, sortBy string) (*LeaderboardResponse, error) {
	if sortBy == "" {
		sortBy = "wins"
	}
	if !isAllowedLeaderboardSort(sortBy) {
		return nil, ErrInvalidRequest
	}
	if _, err := s.registry.Session(ctx, sessionID); err != nil {
		if errors.Is(err, lobby.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		if errors.Is(err, lobby.ErrInvalidIdentifier) {
			return nil, ErrInvalidRequest
		}
		return nil, err
	}
	participants, err := s.members.Participants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(participants))
	for id := range participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	key := leaderboardKey(sortBy)
	sort.SliceStable(ids, func(i, j int) bool {
		return key(participants[ids[i]]) > key(participants[ids[j]])
	})
	rows := make([]LeaderboardRow, 0, len(ids))
	for i, id := range ids {
		p := participants[id]
		rows = append(rows, LeaderboardRow{
			Rank:          i + 1,
			ParticipantID: id,
			Name:          p.Name,
			IsBot:         p.IsBot,
			TotalWins:     p.TotalWins,
			Score:         p.Score,
			Chips:         p.Chips,
		})
	}
	return &LeaderboardResponse{SessionID: sessionID, Sort: sortBy, Items: rows}, nil
}

func leaderboardKey(sortBy string) func(lobby.Participant) int64 {
	switch sortBy {
	case "score":
		return func(p lobby.Participant) int64 { return int64(p.Score) }
	case "chips":
		return func(p lobby.Participant) int64 { return p.Chips }
	default:
		return func(p lobby.Participant) int64 { return int64(p.TotalWins) }
	}
}

func isAllowedLeaderboardSort(v string) bool {
	switch v {
	case "wins", "score", "chips":
		return true
	default:
		return false
	}
}

func clampListingPage(limit, offset int) (int, bool) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 || offset >= listingMaxRows {
		return 0, false
	}
	if remain := listingMaxRows - offset; limit > remain {
		limit = remain
	}
	return limit, true
}
