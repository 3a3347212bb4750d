package main

import (
	"context"
	"math/rand"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"lobbysync/internal/config"
	"lobbysync/internal/coordinator"
	"lobbysync/internal/game"
	"lobbysync/internal/identity"
	"lobbysync/internal/lobby"
	"lobbysync/internal/logging"
	"lobbysync/internal/storeclient"

	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("bot stopped")
	}
}

func run(ctx context.Context, cfg config.BotConfig) error {
	// Subscriptions are only opened by coord.Start, after coord is set.
	var coord *coordinator.Coordinator
	client, err := storeclient.New(cfg.ServerURL, storeclient.WithOnResume(func(path string) {
		if err := coord.Resync(ctx); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("resync failed")
		}
	}))
	if err != nil {
		return err
	}
	me, err := identity.Wait(ctx, identity.Static(cfg.ParticipantID), cfg.IdentityTimeout, identity.DefaultInterval)
	if err != nil {
		return err
	}

	registry := lobby.NewRegistry(client)
	members := lobby.NewMembership(client)

	var sessionID string
	if cfg.Session != "" {
		sessionID, err = registry.Resolve(ctx, cfg.Session)
	} else {
		var m lobby.Match
		m, err = registry.FindPublicSession(ctx, cfg.GameType)
		sessionID = m.SessionID
	}
	if err != nil {
		return err
	}
	sess, err := registry.Session(ctx, sessionID)
	if err != nil {
		return err
	}
	variant, ok := game.ForGameType(sess.GameType)
	if !ok {
		return coordinator.ErrUnknownGameType
	}
	if _, err := members.Join(ctx, sessionID, me.ID, cfg.Name); err != nil {
		return err
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := members.Leave(leaveCtx, sessionID, me.ID); err != nil {
			log.Warn().Err(err).Msg("leave session failed")
		}
	}()
	log.Info().
		Str("session_id", sessionID).
		Str("join_key", sess.Key).
		Str("participant_id", me.ID).
		Bool("degraded_identity", me.Degraded).
		Msg("bot joined")

	turns := make(chan struct{}, 1)
	ended := make(chan struct{})
	var endOnce sync.Once
	coord = coordinator.New(client, sessionID,
		coordinator.WithSelf(me.ID),
		coordinator.WithVariant(variant),
		coordinator.WithHooks(coordinator.Hooks{
			// Starting a game often keeps the current turn, so the status
			// flip has to be watched as well as turn changes.
			OnGameStateUpdate: func(st game.TurnState) {
				if st.Status != game.StatusPlaying || st.CurrentTurn != me.ID {
					return
				}
				select {
				case turns <- struct{}{}:
				default:
				}
			},
			OnGameEnd: func(winner string, finalScores map[string]int) {
				log.Info().Str("winner", winner).Interface("final_scores", finalScores).Msg("game over")
				endOnce.Do(func() { close(ended) })
			},
		}),
	)
	defer coord.Close()
	if err := coord.Start(ctx); err != nil {
		return err
	}
	if err := coord.SetReady(ctx, me.ID, true); err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ended:
			return nil
		case <-turns:
			if st, _ := coord.State(); st.Status != game.StatusPlaying || !coord.IsMyTurn() {
				continue
			}
			turn := variant.PlayBot(rng)
			if err := coord.PublishMove(ctx, me.ID, turn.Moves); err != nil {
				log.Warn().Err(err).Msg("publish move failed")
			}
			res, err := coord.PublishTurnEnd(ctx, me.ID, turn.Score, turn.Extra)
			if err != nil {
				log.Warn().Err(err).Msg("publish turn end failed")
				continue
			}
			if !res.Accepted() {
				log.Warn().Str("rejection", string(res.Rejection)).Msg("turn end rejected")
				continue
			}
			log.Info().Int("score", turn.Score).Bool("game_over", res.ShouldEndGame).Msg("turn played")
		}
	}
}
