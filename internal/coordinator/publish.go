package coordinator

import (
	"context"
	"fmt"

	"lobbysync/internal/game"
	"lobbysync/internal/lobby"
	"lobbysync/internal/store"

	"github.com/rs/zerolog/log"
)

// initializeGameState writes the initial game state when none exists. The
// fields are written as separate children so a racing client's lazy init is
// not clobbered.
func (c *Coordinator) initializeGameState(ctx context.Context) error {
	_, exists, err := c.store.Read(ctx, lobby.GameStatePath(c.sessionID))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	participants, err := c.readParticipants(ctx)
	if err != nil {
		return err
	}
	order := orderedIDs(participants)
	current := ""
	if len(order) > 0 {
		current = order[0]
	}
	patch := map[string]any{
		"status":      string(game.StatusWaiting),
		"turnOrder":   order,
		"currentTurn": current,
		"round":       1,
		"createdAt":   store.ServerTimestamp(),
	}
	for id, p := range participants {
		patch[store.Join("playerStates", id)] = map[string]any{"score": 0, "ready": p.IsBot}
	}
	return c.store.Update(ctx, lobby.GameStatePath(c.sessionID), patch)
}

// PublishTurnEnd records participantID's final score and either advances the
// turn or finishes the game, in one write. A rejected turn end writes
// nothing and is reported through the result, not the error.
func (c *Coordinator) PublishTurnEnd(ctx context.Context, participantID string, finalScore int, extra game.Extra) (game.TurnResult, error) {
	st, err := c.mustReadGameState(ctx)
	if err != nil {
		return game.TurnResult{}, err
	}
	if r := game.ValidateStatus(st.Status); r != "" {
		return game.TurnResult{Rejection: r}, nil
	}
	engine, err := c.engine(st)
	if err != nil {
		return game.TurnResult{}, err
	}
	res := engine.ProcessTurnEnd(participantID, finalScore, extra)
	if !res.Accepted() {
		return res, nil
	}
	next := engine.State()
	patch := map[string]any{
		stateKey("playerStates", participantID, "score"):           finalScore,
		stateKey("playerStates", participantID, "roundsCompleted"): next.RoundsCompleted[participantID],
	}
	if credits, ok := next.Credits[participantID]; ok {
		patch[stateKey("playerStates", participantID, "credits")] = credits
	}
	if res.ShouldEndGame {
		addEndPatch(patch, res.Winner, res.FinalScores, res.Rankings)
	} else {
		turn, _ := engine.AdvanceTurn()
		addTurnPatch(patch, turn, engine.State().Round)
	}
	if err := c.store.Update(ctx, lobby.SessionPath(c.sessionID), patch); err != nil {
		return game.TurnResult{}, fmt.Errorf("publish turn end: %w", err)
	}
	log.Debug().Str("session_id", c.sessionID).Str("participant_id", participantID).Int("score", finalScore).Bool("end", res.ShouldEndGame).Msg("turn end published")
	return res, nil
}

// EndTurn passes the turn on without recording a score.
func (c *Coordinator) EndTurn(ctx context.Context, participantID string) (string, game.Rejection, error) {
	st, err := c.mustReadGameState(ctx)
	if err != nil {
		return "", "", err
	}
	if r := game.ValidateStatus(st.Status); r != "" {
		return "", r, nil
	}
	engine, err := c.engine(st)
	if err != nil {
		return "", "", err
	}
	es := engine.State()
	if r := game.ValidateTurnEnd(&es, participantID); r != "" {
		return "", r, nil
	}
	next, _ := engine.AdvanceTurn()
	patch := map[string]any{}
	addTurnPatch(patch, next, engine.State().Round)
	if err := c.store.Update(ctx, lobby.SessionPath(c.sessionID), patch); err != nil {
		return "", "", fmt.Errorf("end turn: %w", err)
	}
	return next, "", nil
}

// PublishMove overwrites lastMove with payload.
func (c *Coordinator) PublishMove(ctx context.Context, participantID string, payload any) error {
	err := c.store.Write(ctx, store.Join(lobby.GameStatePath(c.sessionID), "lastMove"), map[string]any{
		"playerId":  participantID,
		"data":      payload,
		"timestamp": store.ServerTimestamp(),
	})
	if err != nil {
		return fmt.Errorf("publish move: %w", err)
	}
	return nil
}

func (c *Coordinator) SetReady(ctx context.Context, participantID string, ready bool) error {
	return c.updatePlayerState(ctx, participantID, "ready", ready)
}

func (c *Coordinator) UpdateScore(ctx context.Context, participantID string, score int) error {
	return c.updatePlayerState(ctx, participantID, "score", score)
}

func (c *Coordinator) updatePlayerState(ctx context.Context, participantID, field string, value any) error {
	if store.ValidSegment(participantID) != nil {
		return lobby.ErrInvalidIdentifier
	}
	path := store.Join(lobby.GameStatePath(c.sessionID), "playerStates", participantID)
	if err := c.store.Update(ctx, path, map[string]any{field: value}); err != nil {
		return fmt.Errorf("update %s: %w", field, err)
	}
	return nil
}

// StartGame fixes the turn order to the participants present now, resets
// every counter and flips the status to playing.
func (c *Coordinator) StartGame(ctx context.Context) error {
	st, err := c.mustReadGameState(ctx)
	if err != nil {
		return err
	}
	participants, err := c.readParticipants(ctx)
	if err != nil {
		return err
	}
	order := startOrder(st.TurnOrder, participants)
	engine, err := c.engine(st)
	if err != nil {
		return err
	}
	init, err := engine.Initialize(order, nil)
	if err != nil {
		return err
	}
	patch := map[string]any{
		stateKey("status"):     string(game.StatusPlaying),
		stateKey("startedAt"):  store.ServerTimestamp(),
		stateKey("turnOrder"):  order,
		"matchState/status":    string(game.StatusPlaying),
		"matchState/turnOrder": order,
	}
	for _, k := range []string{"endedAt", "winner", "finalScores", "rankings", "settledAt", "lastMove"} {
		patch[stateKey(k)] = nil
	}
	addTurnPatch(patch, init.CurrentTurn, init.Round)
	for _, id := range order {
		patch[stateKey("playerStates", id, "score")] = 0
		patch[stateKey("playerStates", id, "roundsCompleted")] = 0
		patch[stateKey("playerStates", id, "departed")] = nil
		if credits, ok := init.Credits[id]; ok {
			patch[stateKey("playerStates", id, "credits")] = credits
		}
	}
	if err := c.store.Update(ctx, lobby.SessionPath(c.sessionID), patch); err != nil {
		return fmt.Errorf("start game: %w", err)
	}
	log.Info().Str("session_id", c.sessionID).Strs("turn_order", order).Msg("game started")
	return nil
}

// EndGame marks the game finished with the given result.
func (c *Coordinator) EndGame(ctx context.Context, winner string, finalScores map[string]int) error {
	patch := map[string]any{}
	addEndPatch(patch, winner, finalScores, nil)
	if err := c.store.Update(ctx, lobby.SessionPath(c.sessionID), patch); err != nil {
		return fmt.Errorf("end game: %w", err)
	}
	return nil
}

func addTurnPatch(patch map[string]any, currentTurn string, round int) {
	patch[stateKey("currentTurn")] = currentTurn
	patch[stateKey("round")] = round
	patch["matchState/currentTurn"] = currentTurn
	patch["matchState/round"] = round
}

func addEndPatch(patch map[string]any, winner string, finalScores map[string]int, rankings []game.Ranking) {
	patch[stateKey("status")] = string(game.StatusFinished)
	patch[stateKey("winner")] = winner
	patch[stateKey("finalScores")] = finalScores
	patch[stateKey("endedAt")] = store.ServerTimestamp()
	if rankings != nil {
		patch[stateKey("rankings")] = rankings
	}
	patch["matchState/status"] = string(game.StatusFinished)
}

// drive plays bot turns and forfeits departed participants. Only a
// coordinator built with WithBotDriver does this.
func (c *Coordinator) drive(ctx context.Context) {
	if c.botRNG == nil {
		return
	}
	st, exists, err := c.readGameState(ctx)
	if err != nil || !exists || st.Status != game.StatusPlaying || st.CurrentTurn == "" {
		return
	}
	participants, err := c.readParticipants(ctx)
	if err != nil {
		return
	}
	cur := st.CurrentTurn
	key := fmt.Sprintf("%s/%d/%d", cur, st.Round, st.PlayerStates[cur].RoundsCompleted)
	c.mu.RLock()
	seen := key == c.lastDriven
	c.mu.RUnlock()
	if seen {
		return
	}

	p, present := participants[cur]
	switch {
	case !present:
		err = c.forfeit(ctx, st, cur)
	case p.IsBot || lobby.IsBotID(cur):
		err = c.playBot(ctx, cur)
	default:
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("session_id", c.sessionID).Str("participant_id", cur).Msg("drive turn")
		return
	}
	c.mu.Lock()
	c.lastDriven = key
	c.mu.Unlock()
}

func (c *Coordinator) playBot(ctx context.Context, botID string) error {
	v, err := c.resolveVariant()
	if err != nil {
		return err
	}
	turn := v.PlayBot(c.botRNG)
	if err := c.PublishMove(ctx, botID, turn.Moves); err != nil {
		return err
	}
	res, err := c.PublishTurnEnd(ctx, botID, turn.Score, turn.Extra)
	if err != nil {
		return err
	}
	if !res.Accepted() {
		return fmt.Errorf("bot turn rejected: %s", res.Rejection)
	}
	log.Debug().Str("session_id", c.sessionID).Str("participant_id", botID).Int("score", turn.Score).Msg("bot turn played")
	return nil
}

func (c *Coordinator) forfeit(ctx context.Context, st game.TurnState, participantID string) error {
	engine, err := c.engine(st)
	if err != nil {
		return err
	}
	res := engine.Forfeit(participantID)
	if !res.Accepted() {
		return nil
	}
	next := engine.State()
	patch := map[string]any{
		stateKey("playerStates", participantID, "departed"): true,
	}
	if res.ShouldEndGame {
		addEndPatch(patch, res.Winner, res.FinalScores, res.Rankings)
	} else {
		addTurnPatch(patch, next.CurrentTurn, next.Round)
	}
	if err := c.store.Update(ctx, lobby.SessionPath(c.sessionID), patch); err != nil {
		return fmt.Errorf("forfeit: %w", err)
	}
	log.Info().Str("session_id", c.sessionID).Str("participant_id", participantID).Msg("departed participant skipped")
	return nil
}

func (c *Coordinator) engine(st game.TurnState) (*game.Engine, error) {
	v, err := c.resolveVariant()
	if err != nil {
		return nil, err
	}
	e := game.NewEngine(v, c.cfg)
	e.Restore(st.EngineState())
	return e, nil
}

func (c *Coordinator) resolveVariant() (game.Variant, error) {
	c.mu.RLock()
	v, gameType := c.variant, c.gameType
	c.mu.RUnlock()
	if v != nil {
		return v, nil
	}
	if gameType == "" {
		val, _, err := c.store.Read(context.Background(), store.Join(lobby.SessionPath(c.sessionID), "gameType"))
		if err != nil {
			return nil, err
		}
		gameType, _ = val.(string)
	}
	v, ok := game.ForGameType(gameType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGameType, gameType)
	}
	return v, nil
}

func (c *Coordinator) readGameState(ctx context.Context) (game.TurnState, bool, error) {
	var st game.TurnState
	v, ok, err := c.store.Read(ctx, lobby.GameStatePath(c.sessionID))
	if err != nil || !ok {
		return st, ok, err
	}
	if err := store.Decode(v, &st); err != nil {
		return st, false, err
	}
	return st, true, nil
}

func (c *Coordinator) mustReadGameState(ctx context.Context) (game.TurnState, error) {
	st, ok, err := c.readGameState(ctx)
	if err != nil {
		return st, err
	}
	if !ok {
		return st, ErrNoGameState
	}
	return st, nil
}

func (c *Coordinator) readParticipants(ctx context.Context) (map[string]lobby.Participant, error) {
	out := map[string]lobby.Participant{}
	v, ok, err := c.store.Read(ctx, lobby.ParticipantsPath(c.sessionID))
	if err != nil || !ok {
		return out, err
	}
	if err := store.Decode(v, &out); err != nil {
		return nil, err
	}
	for id, p := range out {
		p.ID = id
		out[id] = p
	}
	return out, nil
}

// startOrder keeps the seeded order for participants still present and
// appends anyone who joined since.
func startOrder(seeded []string, participants map[string]lobby.Participant) []string {
	order := make([]string, 0, len(participants))
	seen := map[string]bool{}
	for _, id := range seeded {
		if _, ok := participants[id]; ok && !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, id := range orderedIDs(participants) {
		if !seen[id] {
			order = append(order, id)
		}
	}
	return order
}

func stateKey(parts ...string) string {
	return store.Join(append([]string{"gameState"}, parts...)...)
}
