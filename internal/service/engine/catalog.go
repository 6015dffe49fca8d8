package engine

import "sort"

// catalog holds the static joker definitions. Instances handed out by
// NewJoker are copies; templates are never mutated.
var catalog = map[string]Joker{
	"wildcard": {
		ID: "wildcard", Name: "🃏 Wildcard", Description: "+4 Multiplier",
		Cost: 5, Kind: EffectConstant, Value: 4,
	},
	"lover": {
		ID: "lover", Name: "❤️ Lover", Description: "+3 Mult per scoring ♥",
		Cost: 6, Kind: EffectSuitMultiplier, Value: 3,
		Config: EffectConfig{TargetSuit: Hearts},
	},
	"gardener": {
		ID: "gardener", Name: "☘️ Gardener", Description: "+3 Mult per scoring ♣",
		Cost: 6, Kind: EffectSuitMultiplier, Value: 3,
		Config: EffectConfig{TargetSuit: Clubs},
	},
	"jeweler": {
		ID: "jeweler", Name: "💎 Jeweler", Description: "+3 Mult per scoring ♦",
		Cost: 6, Kind: EffectSuitMultiplier, Value: 3,
		Config: EffectConfig{TargetSuit: Diamonds},
	},
	"duelist": {
		ID: "duelist", Name: "⚔️ Duelist", Description: "+3 Mult per scoring ♠",
		Cost: 6, Kind: EffectSuitMultiplier, Value: 3,
		Config: EffectConfig{TargetSuit: Spades},
	},
	"actor": {
		ID: "actor", Name: "🎭 Actor", Description: "+2 Mult when playing a Pair",
		Cost: 5, Kind: EffectHandType, Value: 2,
		Config: EffectConfig{TargetHand: Pair},
	},
	"climber": {
		ID: "climber", Name: "🔥 Climber", Description: "+3 Mult with a Straight",
		Cost: 7, Kind: EffectHandType, Value: 3,
		Config: EffectConfig{TargetHand: Straight},
	},
	"royalty": {
		ID: "royalty", Name: "👑 Royalty", Description: "+50 Chips with 3+ face cards",
		Cost: 6, Kind: EffectFigures, Value: 50,
		Config: EffectConfig{MinFigures: 3},
	},
	"lucky_seven": {
		ID: "lucky_seven", Name: "🎲 Lucky Seven", Description: "+2 Mult per scoring 7",
		Cost: 6, Kind: EffectCardValue, Value: 2,
		Config: EffectConfig{TargetRank: "7"},
	},
	"pair_or_nothing": {
		ID: "pair_or_nothing", Name: "🃏 Pair or Nothing", Description: "+4 Mult with a pure pair",
		Cost: 6, Kind: EffectPairOnly, Value: 4,
	},
	"ascendant": {
		ID: "ascendant", Name: "📈 Ascendant", Description: "+1 Mult per consecutive card",
		Cost: 7, Kind: EffectConsecutive, Value: 1,
	},
	"trainer": {
		ID: "trainer", Name: "💪 Trainer", Description: "+0.5 Mult per discard",
		Cost: 5, Kind: EffectAccumulativeDiscard, Value: 0.5,
		Config: EffectConfig{MaxAccumulation: 5},
	},
	"hot_streak": {
		ID: "hot_streak", Name: "🌟 Hot Streak", Description: "+1 Mult per play without discarding",
		Cost: 6, Kind: EffectAccumulativeStreak, Value: 1,
		Config: EffectConfig{MaxAccumulation: 6},
	},
	"economist": {
		ID: "economist", Name: "📊 Economist", Description: "+1 Mult per 10 coins held",
		Cost: 8, Kind: EffectCoinsBased, Value: 1,
		Config: EffectConfig{CoinsPerMultiplier: 10},
	},
	"minimalist": {
		ID: "minimalist", Name: "🎯 Minimalist", Description: "+2 Mult with 3 cards or fewer",
		Cost: 5, Kind: EffectCardCount, Value: 2,
		Config: EffectConfig{MaxCards: 3},
	},
	"juggler": {
		ID: "juggler", Name: "🎪 Juggler", Description: "+10 Chips per card played",
		Cost: 6, Kind: EffectChipsPerCard, Value: 10,
	},
	"painter": {
		ID: "painter", Name: "🎨 Painter", Description: "+3 Mult when all cards share a color",
		Cost: 6, Kind: EffectColorCombo, Value: 3,
	},
	"sprinter": {
		ID: "sprinter", Name: "⚡ Sprinter", Description: "+20 Chips on the 1st or 2nd play",
		Cost: 5, Kind: EffectEarlyPlay, Value: 20,
		Config: EffectConfig{MaxPlaysUsed: 2},
	},
	"generous": {
		ID: "generous", Name: "🎁 Generous", Description: "+1 Coin per play (max 3 per round)",
		Cost: 7, Kind: EffectCoinGenerator, Value: 1,
		Config: EffectConfig{MaxCoinsPerRound: 3},
	},
	"nocturnal": {
		ID: "nocturnal", Name: "🌙 Nocturnal", Description: "+2 Mult with no discards left",
		Cost: 6, Kind: EffectNoDiscards, Value: 2,
	},
	"recycler": {
		ID: "recycler", Name: "🔄 Recycler", Description: "+1 Discard each round",
		Cost: 8, Kind: EffectResourceBoost, Value: 1,
		Config: EffectConfig{ResourceType: "discards"},
	},
	"gambler": {
		ID: "gambler", Name: "🎰 Gambler", Description: "50%: +3 Mult or +0.5",
		Cost: 4, Kind: EffectProbability, Value: 3,
		Config: EffectConfig{Probability: 0.5, FailureValue: 0.5},
	},
	"champion": {
		ID: "champion", Name: "🏆 Champion", Description: "+2 Mult on the last play",
		Cost: 6, Kind: EffectLastPlay, Value: 2,
	},
}

// NewJoker builds a fresh instance from the catalog with a zeroed
// accumulator. The second return is false for unknown ids.
func NewJoker(id string) (*Joker, bool) {
	template, ok := catalog[id]
	if !ok {
		return nil, false
	}
	j := template
	j.Accumulated = 0
	return &j, true
}

// RestoreJoker rebuilds a persisted joker: a fresh catalog instance
// with only the accumulated value carried over.
func RestoreJoker(id string, accumulated float64) (*Joker, bool) {
	j, ok := NewJoker(id)
	if !ok {
		return nil, false
	}
	j.Accumulated = accumulated
	return j, true
}

// CatalogIDs returns all joker ids in stable order.
func CatalogIDs() []string {
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CatalogJokers returns fresh instances of every catalog entry, in
// stable id order.
func CatalogJokers() []*Joker {
	ids := CatalogIDs()
	jokers := make([]*Joker, 0, len(ids))
	for _, id := range ids {
		j, _ := NewJoker(id)
		jokers = append(jokers, j)
	}
	return jokers
}
