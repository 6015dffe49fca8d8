package engine

import (
	mrand "math/rand"
)

// Evaluation is the per-selection scoring record. It is recomputed on
// every selection change and only the latest one is kept.
type Evaluation struct {
	Hand            HandCategory `json:"hand"`
	Chips           int          `json:"chips"`
	Multiplier      float64      `json:"multiplier"`
	BonusChips      int          `json:"bonusChips"`
	JokerChips      int          `json:"jokerChips"`
	JokerMultiplier float64      `json:"jokerMultiplier"`
	TotalChips      int          `json:"totalChips"`
	TotalMultiplier float64      `json:"totalMultiplier"`
	Score           float64      `json:"score"`
	CoinsGenerated  int          `json:"coinsGenerated"`
}

// Evaluator runs the classification, score formula and joker pipeline.
// It owns the random source consumed by probability-kind jokers; tests
// inject a seeded source for determinism.
type Evaluator struct {
	rng *mrand.Rand
}

func NewEvaluator(rng *mrand.Rand) *Evaluator {
	return &Evaluator{rng: rng}
}

// Evaluate computes the full scoring record for a selection:
//
//	score = (baseChips + bonusChips + jokerChips) × (baseMult + jokerMult)
//
// An empty selection short-circuits to the sentinel result without
// touching the classifier or any joker. Joker contributions accumulate
// additively in list order; aside from probability-kind draws the
// result is a pure function of its inputs.
func (e *Evaluator) Evaluate(cards []Card, jokers []*Joker, state RunState) Evaluation {
	if len(cards) == 0 {
		return Evaluation{Hand: NoSelection}
	}

	hand := Classify(cards)
	base := BaseValue(hand)
	relevant := RelevantCards(cards, hand)
	bonus := BonusChips(relevant)

	var jokerMult float64
	var jokerChips, coins int
	for _, j := range jokers {
		effect := j.Apply(hand, relevant, state, e.rng)
		jokerMult += effect.Multiplier
		jokerChips += effect.Chips
		coins += effect.Coins
	}

	totalChips := base.Chips + bonus + jokerChips
	totalMult := base.Multiplier + jokerMult

	return Evaluation{
		Hand:            hand,
		Chips:           base.Chips,
		Multiplier:      base.Multiplier,
		BonusChips:      bonus,
		JokerChips:      jokerChips,
		JokerMultiplier: jokerMult,
		TotalChips:      totalChips,
		TotalMultiplier: totalMult,
		Score:           float64(totalChips) * totalMult,
		CoinsGenerated:  coins,
	}
}
