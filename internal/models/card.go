// internal/models/card.go
package models

import "fmt"

// Suits in canonical deck order.
var Suits = []string{"Hearts", "Diamonds", "Clubs", "Spades"}

// Ranks in canonical deck order.
var Ranks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "Jack", "Queen", "King", "Ace"}

// Card is an immutable playing card. Value is the score it adds to a hand.
type Card struct {
	Rank  string `json:"rank"`
	Suit  string `json:"suit"`
	Value int    `json:"value"`
}

// NewCard builds a card and derives its value from the rank.
func NewCard(rank, suit string) Card {
	return Card{Rank: rank, Suit: suit, Value: RankValue(rank)}
}

// RankValue maps numeric ranks to their face value, court cards to 10 and the Ace to 11.
// Unknown ranks are worth 0.
func RankValue(rank string) int {
	switch rank {
	case "Ace":
		return 11
	case "Jack", "Queen", "King":
		return 10
	}
	var v int
	if _, err := fmt.Sscanf(rank, "%d", &v); err != nil || v < 2 || v > 10 {
		return 0
	}
	return v
}

func (c Card) String() string {
	return c.Rank + " of " + c.Suit
}
