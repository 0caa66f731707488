// internal/game/deck.go
package game

import (
	"math/rand/v2"

	"github.com/teamboningen/yunoDaifugo/internal/models"
)

// DeckSize is the number of cards in a full deck.
const DeckSize = 52

// Deck is an ordered, mutable pile of cards. The top of the deck is the last element.
type Deck struct {
	cards []models.Card
	intn  func(n int) int
}

// NewDeck returns an empty deck backed by the default random source.
// Call Initialize to fill and shuffle it.
func NewDeck() *Deck {
	return &Deck{intn: rand.IntN}
}

// NewDeckFromCards restores a deck in the given order. The slice is copied.
func NewDeckFromCards(cards []models.Card) *Deck {
	d := NewDeck()
	d.cards = make([]models.Card, len(cards))
	copy(d.cards, cards)
	return d
}

// WithRand swaps the random source used by Shuffle. intn must return a value in [0, n).
func (d *Deck) WithRand(intn func(n int) int) *Deck {
	d.intn = intn
	return d
}

// Initialize rebuilds all 52 cards in suit-major order and shuffles them.
func (d *Deck) Initialize() {
	d.cards = make([]models.Card, 0, DeckSize)
	for _, suit := range models.Suits {
		for _, rank := range models.Ranks {
			d.cards = append(d.cards, models.NewCard(rank, suit))
		}
	}
	d.Shuffle()
}

// Shuffle permutes the deck in place with Fisher-Yates.
func (d *Deck) Shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw removes and returns the top card.
func (d *Deck) Draw() (models.Card, error) {
	if len(d.cards) == 0 {
		return models.Card{}, ErrDeckEmpty
	}
	last := len(d.cards) - 1
	card := d.cards[last]
	d.cards = d.cards[:last]
	return card, nil
}

// Size is the number of cards left.
func (d *Deck) Size() int {
	return len(d.cards)
}

// Cards returns a copy of the remaining cards, bottom first.
func (d *Deck) Cards() []models.Card {
	out := make([]models.Card, len(d.cards))
	copy(out, d.cards)
	return out
}
