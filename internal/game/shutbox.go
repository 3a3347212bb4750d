package game

import (
	"math/rand"
	"sort"
)

// ShutTheBox is the lowest-score-wins variant. A turn ends with the sum of
// the tiles still open; shutting every tile scores zero.
type ShutTheBox struct{}

var boxTiles = []int{1, 2, 3, 4, 5, 6, 7, 8, 9}

func (ShutTheBox) Name() string { return GameShutTheBox }

func (ShutTheBox) Better(a, b int) bool { return a < b }

func (ShutTheBox) initParticipant(*State, string, Config) {}

func (ShutTheBox) applyTurnEnd(s *State, id string, score int, _ Extra) {
	s.Scores[id] = score
}

// BoxRoll is one roll of a shut-the-box turn and the tiles it shuts.
type BoxRoll struct {
	D1    int   `json:"d1"`
	D2    int   `json:"d2"`
	Sum   int   `json:"sum"`
	Tiles []int `json:"selectedTiles"`
}

// PlayBot rolls until no combination fits the roll or the box is shut.
func (ShutTheBox) PlayBot(rng *rand.Rand) BotTurn {
	shut := []int{}
	moves := []any{}
	for len(AvailableTiles(shut)) > 0 {
		roll := RollBot(rng, shut)
		moves = append(moves, roll)
		if len(roll.Tiles) == 0 {
			break
		}
		shut = append(shut, roll.Tiles...)
	}
	return BotTurn{Score: BoxScore(shut), Moves: moves}
}

// AvailableTiles lists the open tiles in ascending order.
func AvailableTiles(shut []int) []int {
	out := make([]int, 0, len(boxTiles))
	for _, t := range boxTiles {
		if !contains(shut, t) {
			out = append(out, t)
		}
	}
	return out
}

// BoxScore is the sum of the tiles that are still open.
func BoxScore(shut []int) int {
	sum := 0
	for _, t := range AvailableTiles(shut) {
		sum += t
	}
	return sum
}

// FindTileCombo returns the first subset of available summing to target,
// trying tiles in ascending order and never reusing one. A zero target is
// satisfied by the empty subset.
func FindTileCombo(available []int, target int) ([]int, bool) {
	tiles := append([]int(nil), available...)
	sort.Ints(tiles)
	return findCombo(tiles, target, 0, []int{})
}

func findCombo(tiles []int, target, start int, combo []int) ([]int, bool) {
	if target == 0 {
		return combo, true
	}
	for i := start; i < len(tiles); i++ {
		if tiles[i] > target {
			continue
		}
		next := append(append([]int(nil), combo...), tiles[i])
		if out, ok := findCombo(tiles, target-tiles[i], i+1, next); ok {
			return out, true
		}
	}
	return nil, false
}

func CanShut(available []int, sum int) bool {
	_, ok := FindTileCombo(available, sum)
	return ok
}

// ValidShut reports whether selected is a set of distinct open tiles adding
// up to sum.
func ValidShut(available, selected []int, sum int) bool {
	seen := map[int]bool{}
	total := 0
	for _, t := range selected {
		if seen[t] || !contains(available, t) {
			return false
		}
		seen[t] = true
		total += t
	}
	return total == sum
}

// RollBot rolls two dice and picks the first combination for their sum. With
// no open tiles it returns a fixed 1+1 roll and no selection.
func RollBot(rng *rand.Rand, shut []int) BoxRoll {
	available := AvailableTiles(shut)
	if len(available) == 0 {
		return BoxRoll{D1: 1, D2: 1, Sum: 2, Tiles: []int{}}
	}
	d1 := rng.Intn(6) + 1
	d2 := rng.Intn(6) + 1
	tiles, ok := FindTileCombo(available, d1+d2)
	if !ok {
		tiles = []int{}
	}
	return BoxRoll{D1: d1, D2: d2, Sum: d1 + d2, Tiles: tiles}
}
