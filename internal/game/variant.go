package game

import (
	"math/rand"
	"strings"
)

const (
	GameDicePoker  = "dicepoker"
	GameShutTheBox = "shutthebox"
)

// Variant is the closed set of supported games. The unexported methods keep
// implementations inside this package.
type Variant interface {
	Name() string
	// Better reports whether score a beats score b.
	Better(a, b int) bool
	// PlayBot plays a whole turn for a bot.
	PlayBot(rng *rand.Rand) BotTurn

	initParticipant(s *State, id string, cfg Config)
	applyTurnEnd(s *State, id string, score int, extra Extra)
}

// BotTurn is a complete turn synthesized for a bot participant.
type BotTurn struct {
	Score int
	Extra Extra
	Moves []any
}

// ForGameType returns the variant for gameType. Matching ignores case and
// anything that is not a letter or digit.
func ForGameType(gameType string) (Variant, bool) {
	switch normalizeGameType(gameType) {
	case GameDicePoker:
		return DicePoker{}, true
	case GameShutTheBox:
		return ShutTheBox{}, true
	default:
		return nil, false
	}
}

func normalizeGameType(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
