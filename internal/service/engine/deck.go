package engine

import (
	mrand "math/rand"
)

// Deck owns the draw pile and the discard pile of a single standard
// 52-card deck. Cards held by the caller (the hand) are outside the
// deck; the caller is responsible for returning them via Discard.
//
// The random source is injected so tests can run deterministically.
type Deck struct {
	rng     *mrand.Rand
	draw    []Card
	discard []Card
}

// NewDeck returns a freshly shuffled standard deck.
func NewDeck(rng *mrand.Rand) *Deck {
	d := &Deck{rng: rng}
	d.Reset()
	return d
}

// Reset reinitializes to a full shuffled 52-card draw pile and an
// empty discard pile.
func (d *Deck) Reset() {
	d.draw = d.draw[:0]
	for _, suit := range Suits {
		for _, rank := range Ranks {
			d.draw = append(d.draw, Card{Rank: rank, Suit: suit})
		}
	}
	d.discard = nil
	d.shuffle()
}

// shuffle applies a Fisher-Yates permutation to the draw pile.
func (d *Deck) shuffle() {
	d.rng.Shuffle(len(d.draw), func(i, j int) {
		d.draw[i], d.draw[j] = d.draw[j], d.draw[i]
	})
}

// Draw removes up to n cards from the top of the draw pile. When the
// draw pile runs out the discard pile is reshuffled into it; when both
// are empty the returned slice is shorter than n. A short draw is a
// signal, not an error: the round driver treats it as run-ending.
func (d *Deck) Draw(n int) []Card {
	cards := make([]Card, 0, n)
	for len(cards) < n {
		if len(d.draw) == 0 {
			if len(d.discard) == 0 {
				break
			}
			d.recycle()
		}
		top := len(d.draw) - 1
		cards = append(cards, d.draw[top])
		d.draw = d.draw[:top]
	}
	return cards
}

// recycle moves the discard pile back into the draw pile and shuffles.
func (d *Deck) recycle() {
	d.draw = append(d.draw, d.discard...)
	d.discard = nil
	d.shuffle()
}

// Discard appends cards to the discard pile. Origin of the cards is
// not validated; that is the caller's responsibility.
func (d *Deck) Discard(cards ...Card) {
	d.discard = append(d.discard, cards...)
}

// Remaining returns the number of cards left in the draw pile.
func (d *Deck) Remaining() int {
	return len(d.draw)
}

// Discarded returns the number of cards in the discard pile.
func (d *Deck) Discarded() int {
	return len(d.discard)
}

// DeckState is the serializable snapshot of both piles, ordered.
type DeckState struct {
	DrawPile    []Card `json:"drawPile"`
	DiscardPile []Card `json:"discardPile"`
}

// Snapshot copies both piles for persistence.
func (d *Deck) Snapshot() DeckState {
	return DeckState{
		DrawPile:    append([]Card(nil), d.draw...),
		DiscardPile: append([]Card(nil), d.discard...),
	}
}

// RestoreDeck rebuilds a deck from a persisted snapshot. The snapshot
// is not validated here; the persistence layer performs the 52-card
// integrity check before calling this.
func RestoreDeck(rng *mrand.Rand, state DeckState) *Deck {
	return &Deck{
		rng:     rng,
		draw:    append([]Card(nil), state.DrawPile...),
		discard: append([]Card(nil), state.DiscardPile...),
	}
}
