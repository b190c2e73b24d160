package dealer

import (
	"math/rand"

	"Jaffre/internal/game/table"
)

// Dealer 只负责洗牌与发牌（无规则判断）
type Dealer struct {
	deck []table.Card
	rnd  *rand.Rand
}

func NewDealer(seed int64) *Dealer {
	return &Dealer{
		deck: make([]table.Card, 0, table.DeckSize),
		rnd:  rand.New(rand.NewSource(seed)),
	}
}

// NewDeck 初始化一副 32 张的牌并洗牌
func (d *Dealer) NewDeck() {
	d.deck = table.FullDeck()
	d.shuffle()
}

func (d *Dealer) shuffle() {
	d.rnd.Shuffle(len(d.deck), func(i, j int) {
		d.deck[i], d.deck[j] = d.deck[j], d.deck[i]
	})
}

// DealHands 每人 8 张，每局都用一副新牌，保证一局内不会有重复的牌
func (d *Dealer) DealHands() [table.Seats][]table.Card {
	d.NewDeck()
	var hands [table.Seats][]table.Card
	for i := 0; i < table.HandSize; i++ {
		for seat := 0; seat < table.Seats; seat++ {
			hands[seat] = append(hands[seat], d.draw())
		}
	}
	return hands
}

func (d *Dealer) Remaining() int {
	return len(d.deck)
}

func (d *Dealer) draw() table.Card {
	if len(d.deck) == 0 {
		// should not happen if properly invoked
		d.NewDeck()
	}
	c := d.deck[0]
	d.deck = d.deck[1:]
	return c
}
