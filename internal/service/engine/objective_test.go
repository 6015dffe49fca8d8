package engine

import "testing"

func TestRoundObjectiveTables(t *testing.T) {
	cases := []struct {
		difficulty Difficulty
		round      int
		want       int
	}{
		{DifficultyEasy, 1, 200},
		{DifficultyEasy, 10, 4200},
		{DifficultyNormal, 1, 300},
		{DifficultyNormal, 5, 1250},
		{DifficultyNormal, 10, 5700},
		{DifficultyHard, 1, 450},
		{DifficultyHard, 10, 10500},
	}
	for _, tc := range cases {
		if got := RoundObjective(tc.round, tc.difficulty); got != tc.want {
			t.Fatalf("%s round %d: got %d, want %d", tc.difficulty, tc.round, got, tc.want)
		}
	}
}

func TestRoundObjectiveMonotonic(t *testing.T) {
	for _, d := range []Difficulty{DifficultyEasy, DifficultyNormal, DifficultyHard} {
		prev := 0
		for round := 1; round <= 20; round++ {
			obj := RoundObjective(round, d)
			if obj <= prev {
				t.Fatalf("%s round %d: objective %d not increasing (prev %d)", d, round, obj, prev)
			}
			prev = obj
		}
	}
}

func TestRoundObjectiveInfiniteScaling(t *testing.T) {
	// Round 11 on normal: floor(5700 * 1.5) = 8550.
	if got := RoundObjective(11, DifficultyNormal); got != 8550 {
		t.Fatalf("round 11 normal = %d, want 8550", got)
	}
	// Round 12 easy: floor(4200 * 1.3^2) = floor(7098) = 7097 or 7098
	// depending on float representation; assert through the formula's
	// own bounds instead of a brittle constant.
	got := RoundObjective(12, DifficultyEasy)
	if got < 7097 || got > 7098 {
		t.Fatalf("round 12 easy = %d, out of expected range", got)
	}
}

func TestRoundObjectiveUnknownDifficultyFallsBack(t *testing.T) {
	if got, want := RoundObjective(1, "medium"), RoundObjective(1, DifficultyNormal); got != want {
		t.Fatalf("fallback = %d, want %d", got, want)
	}
}

func TestValidDifficulty(t *testing.T) {
	for _, d := range []Difficulty{DifficultyEasy, DifficultyNormal, DifficultyHard} {
		if !ValidDifficulty(d) {
			t.Fatalf("%s should be valid", d)
		}
	}
	if ValidDifficulty("medium") {
		t.Fatal("medium should be invalid")
	}
}
