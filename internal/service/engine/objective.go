package engine

import "math"

// Difficulty selects the round-objective table and the infinite-mode
// scaling factor.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

func ValidDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	}
	return false
}

// Objectives for rounds 1-10. Round 10 is the victory round; rounds
// 11+ (infinite mode) scale exponentially from the round-10 value.
var roundObjectives = map[Difficulty][10]int{
	DifficultyEasy:   {200, 350, 500, 700, 1000, 1350, 1800, 2400, 3200, 4200},
	DifficultyNormal: {300, 450, 600, 900, 1250, 1700, 2300, 3100, 4200, 5700},
	DifficultyHard:   {450, 700, 1000, 1500, 2100, 3000, 4200, 5800, 7800, 10500},
}

var infiniteFactors = map[Difficulty]float64{
	DifficultyEasy:   1.3,
	DifficultyNormal: 1.5,
	DifficultyHard:   1.7,
}

// RoundObjective returns the score threshold for a round. Unknown
// difficulties fall back to normal.
func RoundObjective(round int, difficulty Difficulty) int {
	base, ok := roundObjectives[difficulty]
	if !ok {
		base = roundObjectives[DifficultyNormal]
	}
	if round < 1 {
		round = 1
	}
	if round <= 10 {
		return base[round-1]
	}

	factor, ok := infiniteFactors[difficulty]
	if !ok {
		factor = infiniteFactors[DifficultyNormal]
	}
	exponent := float64(round - 10)
	return int(math.Floor(float64(base[9]) * math.Pow(factor, exponent)))
}
