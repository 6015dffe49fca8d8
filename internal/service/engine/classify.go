package engine

import "sort"

// HandCategory is one of the nine canonical poker-hand classifications
// used for scoring, plus the NoSelection sentinel for empty input.
type HandCategory string

const (
	StraightFlush HandCategory = "Straight Flush"
	FourOfAKind   HandCategory = "Four of a Kind"
	FullHouse     HandCategory = "Full House"
	Flush         HandCategory = "Flush"
	Straight      HandCategory = "Straight"
	ThreeOfAKind  HandCategory = "Three of a Kind"
	TwoPair       HandCategory = "Two Pair"
	Pair          HandCategory = "Pair"
	HighCard      HandCategory = "High Card"

	// NoSelection is returned when nothing is selected. It carries no
	// base value and never reaches the joker engine.
	NoSelection HandCategory = "Nothing Selected"
)

// HandValue is the fixed base (chips, multiplier) pair of a category.
type HandValue struct {
	Chips      int     `json:"chips"`
	Multiplier float64 `json:"multiplier"`
}

var handValues = map[HandCategory]HandValue{
	StraightFlush: {Chips: 100, Multiplier: 8},
	FourOfAKind:   {Chips: 60, Multiplier: 7},
	FullHouse:     {Chips: 40, Multiplier: 4},
	Flush:         {Chips: 35, Multiplier: 4},
	Straight:      {Chips: 30, Multiplier: 4},
	ThreeOfAKind:  {Chips: 30, Multiplier: 3},
	TwoPair:       {Chips: 20, Multiplier: 2},
	Pair:          {Chips: 10, Multiplier: 2},
	HighCard:      {Chips: 5, Multiplier: 1},
}

// Categories lists the scoring categories strongest to weakest.
func Categories() []HandCategory {
	return []HandCategory{
		StraightFlush, FourOfAKind, FullHouse, Flush, Straight,
		ThreeOfAKind, TwoPair, Pair, HighCard,
	}
}

// BaseValue returns the base chips and multiplier of a category.
// NoSelection and unknown categories yield the zero value.
func BaseValue(cat HandCategory) HandValue {
	return handValues[cat]
}

// Classify maps a selection of 1-5 cards to its hand category.
// Resolution follows strict priority order, first match wins.
func Classify(cards []Card) HandCategory {
	if len(cards) == 0 {
		return NoSelection
	}

	counts := rankCounts(cards)
	flush := isFlush(cards)
	straight := isStraight(cards)

	switch {
	case flush && straight:
		return StraightFlush
	case hasGroup(counts, 4):
		return FourOfAKind
	case hasGroup(counts, 3) && hasGroup(counts, 2):
		return FullHouse
	case flush:
		return Flush
	case straight:
		return Straight
	case hasGroup(counts, 3):
		return ThreeOfAKind
	case groupCount(counts, 2) == 2:
		return TwoPair
	case hasGroup(counts, 2):
		return Pair
	default:
		return HighCard
	}
}

func rankCounts(cards []Card) map[Rank]int {
	counts := make(map[Rank]int, len(cards))
	for _, c := range cards {
		counts[c.Rank]++
	}
	return counts
}

func hasGroup(counts map[Rank]int, size int) bool {
	for _, n := range counts {
		if n == size {
			return true
		}
	}
	return false
}

func groupCount(counts map[Rank]int, size int) int {
	total := 0
	for _, n := range counts {
		if n == size {
			total++
		}
	}
	return total
}

// isFlush requires exactly 5 cards of a single suit.
func isFlush(cards []Card) bool {
	if len(cards) != 5 {
		return false
	}
	for _, c := range cards {
		if c.Suit != cards[0].Suit {
			return false
		}
	}
	return true
}

// isStraight requires exactly 5 consecutive rank values, with the
// wheel exception: the ace counts as 1 when the hand is A-2-3-4-5.
func isStraight(cards []Card) bool {
	if len(cards) != 5 {
		return false
	}
	values := make([]int, len(cards))
	for i, c := range cards {
		values[i] = c.Value()
	}
	sort.Ints(values)

	if consecutive(values) {
		return true
	}
	if values[4] == 14 {
		low := append([]int{1}, values[:4]...)
		sort.Ints(low)
		return consecutive(low)
	}
	return false
}

func consecutive(values []int) bool {
	for i := 1; i < len(values); i++ {
		if values[i] != values[i-1]+1 {
			return false
		}
	}
	return true
}

// RelevantCards returns the subset of the selection that counts toward
// bonus chips and most joker triggers for the given category.
func RelevantCards(cards []Card, cat HandCategory) []Card {
	counts := rankCounts(cards)

	switch cat {
	case FourOfAKind:
		return filterByGroupSize(cards, counts, 4)
	case ThreeOfAKind:
		return filterByGroupSize(cards, counts, 3)
	case TwoPair, Pair:
		return filterByGroupSize(cards, counts, 2)
	case FullHouse:
		relevant := make([]Card, 0, len(cards))
		for _, c := range cards {
			if counts[c.Rank] == 3 || counts[c.Rank] == 2 {
				relevant = append(relevant, c)
			}
		}
		return relevant
	case HighCard:
		highest := cards[0]
		for _, c := range cards[1:] {
			if c.Value() > highest.Value() {
				highest = c
			}
		}
		return []Card{highest}
	default:
		// Straights, flushes and straight flushes score every card.
		return append([]Card(nil), cards...)
	}
}

func filterByGroupSize(cards []Card, counts map[Rank]int, size int) []Card {
	relevant := make([]Card, 0, len(cards))
	for _, c := range cards {
		if counts[c.Rank] == size {
			relevant = append(relevant, c)
		}
	}
	return relevant
}

// BonusChips sums the chip values of the scoring cards.
func BonusChips(cards []Card) int {
	total := 0
	for _, c := range cards {
		total += c.ChipValue()
	}
	return total
}
