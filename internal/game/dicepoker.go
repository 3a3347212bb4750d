package game

import "math/rand"

// DicePoker is the highest-score-wins variant. Each participant also carries
// a credit balance that turn ends adjust but never push below zero.
type DicePoker struct{}

func (DicePoker) Name() string { return GameDicePoker }

func (DicePoker) Better(a, b int) bool { return a > b }

func (DicePoker) initParticipant(s *State, id string, cfg Config) {
	s.Credits[id] = cfg.StartingCredits
}

func (DicePoker) applyTurnEnd(s *State, id string, score int, extra Extra) {
	s.Scores[id] = score
	credits, ok := s.Credits[id]
	if !ok {
		credits = DefaultStartingCredits
	}
	credits += extra.CreditDelta
	if credits < 0 {
		credits = 0
	}
	s.Credits[id] = credits
}

// PlayBot rolls five dice once and scores them.
func (DicePoker) PlayBot(rng *rand.Rand) BotTurn {
	dice := RollDice(rng, 5)
	return BotTurn{
		Score: HandScore(dice),
		Moves: []any{map[string]any{"dice": dice}},
	}
}

func RollDice(rng *rand.Rand, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = rng.Intn(6) + 1
	}
	return out
}
