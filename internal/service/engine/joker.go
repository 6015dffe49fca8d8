package engine

import (
	mrand "math/rand"
	"sort"
)

// EffectKind tags the behavior of a joker. The dispatcher in Apply is
// the single place that interprets kinds; an unknown kind contributes
// nothing.
type EffectKind string

const (
	EffectConstant            EffectKind = "constant"
	EffectSuitMultiplier      EffectKind = "suit_multiplier"
	EffectHandType            EffectKind = "hand_type"
	EffectCardValue           EffectKind = "card_value"
	EffectFigures             EffectKind = "figures"
	EffectPairOnly            EffectKind = "pair_only"
	EffectConsecutive         EffectKind = "consecutive"
	EffectAccumulativeDiscard EffectKind = "accumulative_discard"
	EffectAccumulativeStreak  EffectKind = "accumulative_streak"
	EffectCoinsBased          EffectKind = "coins_based"
	EffectCardCount           EffectKind = "card_count"
	EffectChipsPerCard        EffectKind = "chips_per_card"
	EffectColorCombo          EffectKind = "color_combo"
	EffectEarlyPlay           EffectKind = "early_play"
	EffectCoinGenerator       EffectKind = "coin_generator"
	EffectNoDiscards          EffectKind = "no_discards"
	EffectResourceBoost       EffectKind = "resource_boost"
	EffectProbability         EffectKind = "probability"
	EffectLastPlay            EffectKind = "last_play"
)

// EffectConfig carries the behavior-specific parameters of a joker.
// A missing required field makes the effect's condition unsatisfiable
// rather than an error.
type EffectConfig struct {
	TargetSuit         Suit         `json:"targetSuit,omitempty"`
	TargetHand         HandCategory `json:"targetHand,omitempty"`
	TargetRank         Rank         `json:"targetRank,omitempty"`
	MinFigures         int          `json:"minFigures,omitempty"`
	MaxCards           int          `json:"maxCards,omitempty"`
	CoinsPerMultiplier int          `json:"coinsPerMultiplier,omitempty"`
	MaxPlaysUsed       int          `json:"maxPlaysUsed,omitempty"`
	MaxCoinsPerRound   int          `json:"maxCoinsPerRound,omitempty"`
	Probability        float64      `json:"probability,omitempty"`
	FailureValue       float64      `json:"failureValue,omitempty"`
	MaxAccumulation    float64      `json:"maxAccumulation,omitempty"`
	ResourceType       string       `json:"resourceType,omitempty"`
}

// Joker is a catalog-defined scoring modifier. Identity fields are
// immutable after creation; Accumulated is the only mutable state and
// is driven exclusively by IncrementAccumulation and ResetAccumulation
// at lifecycle points owned by the round driver.
type Joker struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Cost        int          `json:"cost"`
	Kind        EffectKind   `json:"kind"`
	Value       float64      `json:"value"`
	Config      EffectConfig `json:"config"`
	Accumulated float64      `json:"accumulatedValue"`
}

// Effect is a single joker's additive contribution to one evaluation.
type Effect struct {
	Multiplier float64
	Chips      int
	Coins      int
}

// RunState is the ambient, read-only snapshot of run resources passed
// into each evaluation.
type RunState struct {
	Coins                   int `json:"coins"`
	PlaysRemaining          int `json:"playsRemaining"`
	DiscardsRemaining       int `json:"discardsRemaining"`
	PlaysUsed               int `json:"playsUsed"`
	CoinsGeneratedThisRound int `json:"coinsGeneratedThisRound"`
}

// Apply computes the joker's contribution for one evaluation. Pure
// except for the probability kind, which draws once from rng per call.
func (j *Joker) Apply(hand HandCategory, relevant []Card, state RunState, rng *mrand.Rand) Effect {
	switch j.Kind {
	case EffectConstant:
		return Effect{Multiplier: j.Value}

	case EffectSuitMultiplier:
		if j.Config.TargetSuit == "" {
			return Effect{}
		}
		var mult float64
		for _, c := range relevant {
			if c.Suit == j.Config.TargetSuit {
				mult += j.Value
			}
		}
		return Effect{Multiplier: mult}

	case EffectHandType:
		if j.Config.TargetHand != "" && hand == j.Config.TargetHand {
			return Effect{Multiplier: j.Value}
		}
		return Effect{}

	case EffectCardValue:
		if j.Config.TargetRank == "" {
			return Effect{}
		}
		var mult float64
		for _, c := range relevant {
			if c.Rank == j.Config.TargetRank {
				mult += j.Value
			}
		}
		return Effect{Multiplier: mult}

	case EffectFigures:
		if j.Config.MinFigures <= 0 {
			return Effect{}
		}
		figures := 0
		for _, c := range relevant {
			if c.IsFace() {
				figures++
			}
		}
		if figures >= j.Config.MinFigures {
			return Effect{Chips: int(j.Value)}
		}
		return Effect{}

	case EffectPairOnly:
		if len(relevant) == 2 && hand == Pair {
			return Effect{Multiplier: j.Value}
		}
		return Effect{}

	case EffectConsecutive:
		if areConsecutive(relevant) {
			return Effect{Multiplier: float64(len(relevant)) * j.Value}
		}
		return Effect{}

	case EffectAccumulativeDiscard, EffectAccumulativeStreak:
		return Effect{Multiplier: j.Accumulated}

	case EffectCoinsBased:
		if j.Config.CoinsPerMultiplier <= 0 {
			return Effect{}
		}
		return Effect{Multiplier: float64(state.Coins / j.Config.CoinsPerMultiplier)}

	case EffectCardCount:
		if j.Config.MaxCards <= 0 {
			return Effect{}
		}
		if len(relevant) <= j.Config.MaxCards {
			return Effect{Multiplier: j.Value}
		}
		return Effect{}

	case EffectChipsPerCard:
		return Effect{Chips: len(relevant) * int(j.Value)}

	case EffectColorCombo:
		if len(relevant) == 0 {
			return Effect{}
		}
		if sameColor(relevant) {
			return Effect{Multiplier: j.Value}
		}
		return Effect{}

	case EffectEarlyPlay:
		if j.Config.MaxPlaysUsed <= 0 {
			return Effect{}
		}
		// PlaysUsed counts completed plays, so the current play is
		// number PlaysUsed+1. Strictly less covers the first N plays.
		if state.PlaysUsed < j.Config.MaxPlaysUsed {
			return Effect{Chips: int(j.Value)}
		}
		return Effect{}

	case EffectCoinGenerator:
		if state.CoinsGeneratedThisRound < j.Config.MaxCoinsPerRound {
			return Effect{Coins: int(j.Value)}
		}
		return Effect{}

	case EffectNoDiscards:
		if state.DiscardsRemaining == 0 {
			return Effect{Multiplier: j.Value}
		}
		return Effect{}

	case EffectResourceBoost:
		// Resolved by round-start logic, never per evaluation.
		return Effect{}

	case EffectProbability:
		if rng.Float64() < j.Config.Probability {
			return Effect{Multiplier: j.Value}
		}
		return Effect{Multiplier: j.Config.FailureValue}

	case EffectLastPlay:
		if state.PlaysRemaining == 1 {
			return Effect{Multiplier: j.Value}
		}
		return Effect{}
	}

	// Unknown kinds are permissive catalog data, not errors.
	return Effect{}
}

// areConsecutive reports whether the cards' rank values form a
// contiguous ascending run. Requires at least two cards.
func areConsecutive(cards []Card) bool {
	if len(cards) < 2 {
		return false
	}
	values := make([]int, len(cards))
	for i, c := range cards {
		values[i] = c.Value()
	}
	sort.Ints(values)
	return consecutive(values)
}

func sameColor(cards []Card) bool {
	for _, c := range cards {
		if c.Color() != cards[0].Color() {
			return false
		}
	}
	return true
}

// IncrementAccumulation adds to the running counter, clamped by
// MaxAccumulation when configured.
func (j *Joker) IncrementAccumulation(amount float64) {
	j.Accumulated += amount
	if j.Config.MaxAccumulation > 0 && j.Accumulated > j.Config.MaxAccumulation {
		j.Accumulated = j.Config.MaxAccumulation
	}
}

// ResetAccumulation zeroes the running counter.
func (j *Joker) ResetAccumulation() {
	j.Accumulated = 0
}
