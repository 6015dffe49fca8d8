package engine

import (
	"fmt"
	"strconv"
)

// Suit is one of the four french suits, encoded as a single letter.
type Suit string

const (
	Hearts   Suit = "H"
	Diamonds Suit = "D"
	Clubs    Suit = "C"
	Spades   Suit = "S"
)

// Suits in canonical display order.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

// Rank is the printed rank of a card: A, 2-10, J, Q, K.
type Rank string

// Ranks in ascending chip order starting from the ace.
var Ranks = []Rank{"A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

// Color groups suits into the red/black classes used by color-combo effects.
type Color string

const (
	Red   Color = "red"
	Black Color = "black"
)

// Card is an immutable card value. The zero value is not a valid card;
// build cards through NewCard or the deck.
type Card struct {
	Rank Rank `json:"rank"`
	Suit Suit `json:"suit"`
}

// NewCard validates rank and suit. Malformed card data is a caller
// contract violation, the only condition in this package that errors.
func NewCard(rank Rank, suit Suit) (Card, error) {
	if !rank.valid() {
		return Card{}, fmt.Errorf("invalid rank %q", rank)
	}
	if !suit.valid() {
		return Card{}, fmt.Errorf("invalid suit %q", suit)
	}
	return Card{Rank: rank, Suit: suit}, nil
}

func (r Rank) valid() bool {
	for _, known := range Ranks {
		if r == known {
			return true
		}
	}
	return false
}

func (s Suit) valid() bool {
	switch s {
	case Hearts, Diamonds, Clubs, Spades:
		return true
	}
	return false
}

// Value returns the ordering value used for straights and high-card
// comparison: 2-10 literal, J=11, Q=12, K=13, A=14.
func (c Card) Value() int {
	switch c.Rank {
	case "A":
		return 14
	case "K":
		return 13
	case "Q":
		return 12
	case "J":
		return 11
	}
	v, _ := strconv.Atoi(string(c.Rank))
	return v
}

// ChipValue returns the chips a card contributes when it scores:
// A=11, face cards=10, numerals their printed value.
func (c Card) ChipValue() int {
	switch c.Rank {
	case "A":
		return 11
	case "K", "Q", "J":
		return 10
	}
	v, _ := strconv.Atoi(string(c.Rank))
	return v
}

// IsFace reports whether the card is a J, Q or K.
func (c Card) IsFace() bool {
	switch c.Rank {
	case "J", "Q", "K":
		return true
	}
	return false
}

// Color returns red for hearts/diamonds and black for clubs/spades.
func (c Card) Color() Color {
	if c.Suit == Hearts || c.Suit == Diamonds {
		return Red
	}
	return Black
}

func (s Suit) Symbol() string {
	switch s {
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	}
	return string(s)
}

func (c Card) String() string {
	return string(c.Rank) + c.Suit.Symbol()
}
