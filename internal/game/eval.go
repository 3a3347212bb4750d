package game

import (
	"sort"
)

// HandRank is a dice hand category with its tie-break faces, highest first.
type HandRank struct {
	Category int
	Faces    []int
}

// Category ranking: 7 Five, 6 Four, 5 Full House, 4 Straight, 3 Trips, 2 Two Pair, 1 Pair, 0 Nothing
func EvaluateDice(dice []int) HandRank {
	counts := map[int]int{}
	faces := make([]int, 0, len(dice))
	for _, d := range dice {
		counts[d]++
		faces = append(faces, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(faces)))
	if len(faces) == 0 {
		return HandRank{Category: 0}
	}

	type fc struct {
		face  int
		count int
	}
	groups := make([]fc, 0, len(counts))
	for f, c := range counts {
		groups = append(groups, fc{face: f, count: c})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].face > groups[j].face
	})
	second := 0
	if len(groups) > 1 {
		second = groups[1].count
	}

	switch {
	case groups[0].count >= 5:
		return HandRank{Category: 7, Faces: []int{groups[0].face}}
	case groups[0].count == 4:
		return HandRank{Category: 6, Faces: []int{groups[0].face, highestExcluding(faces, groups[0].face)}}
	case groups[0].count == 3 && second == 2:
		return HandRank{Category: 5, Faces: []int{groups[0].face, groups[1].face}}
	case isStraight(faces):
		return HandRank{Category: 4, Faces: []int{faces[0]}}
	case groups[0].count == 3:
		return HandRank{Category: 3, Faces: append([]int{groups[0].face}, topKickers(faces, []int{groups[0].face}, 2)...)}
	case groups[0].count == 2 && second == 2:
		return HandRank{Category: 2, Faces: []int{groups[0].face, groups[1].face, highestExcluding(faces, groups[0].face, groups[1].face)}}
	case groups[0].count == 2:
		return HandRank{Category: 1, Faces: append([]int{groups[0].face}, topKickers(faces, []int{groups[0].face}, 3)...)}
	}
	return HandRank{Category: 0, Faces: faces}
}

// HandScore flattens a dice hand into a single comparable score: the
// category in the hundreds and the pip total below it.
func HandScore(dice []int) int {
	total := 0
	for _, d := range dice {
		total += d
	}
	return EvaluateDice(dice).Category*100 + total
}

// isStraight expects faces sorted high to low.
func isStraight(faces []int) bool {
	if len(faces) != 5 {
		return false
	}
	for i := 1; i < len(faces); i++ {
		if faces[i-1]-faces[i] != 1 {
			return false
		}
	}
	return true
}

func highestExcluding(faces []int, exclude ...int) int {
	for _, f := range faces {
		if !contains(exclude, f) {
			return f
		}
	}
	return 0
}

func topKickers(faces []int, exclude []int, n int) []int {
	out := []int{}
	for _, f := range faces {
		if contains(exclude, f) {
			continue
		}
		out = append(out, f)
		if len(out) == n {
			break
		}
	}
	return out
}

func contains(arr []int, v int) bool {
	for _, x := range arr {
		if x == v {
			return true
		}
	}
	return false
}
