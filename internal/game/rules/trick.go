package rules

import (
	"errors"
	"slices"

	"Jaffre/internal/game/table"
)

const (
	NormalTrickValue = 1
	RedZeroValue     = 6
	BrownZeroValue   = -2
)

var (
	ErrCardNotInHand = errors.New("card not in hand")
	ErrMustFollow    = errors.New("must follow the led color")
	ErrTrickFull     = errors.New("trick already complete")
	ErrInvalidCard   = errors.New("invalid card")
)

// CheckPlay 有首花色且手里有该花色时必须跟
func CheckPlay(hand []table.Card, trick *table.Trick, c table.Card) error {
	if !c.Valid() {
		return ErrInvalidCard
	}
	if trick != nil && len(trick.Cards) >= table.Seats {
		return ErrTrickFull
	}
	if !slices.Contains(hand, c) {
		return ErrCardNotInHand
	}
	led, ok := trick.LedColor()
	if !ok || c.Color == led {
		return nil
	}
	if slices.ContainsFunc(hand, func(h table.Card) bool { return h.Color == led }) {
		return ErrMustFollow
	}
	return nil
}

// LegalPlays 返回手牌中可以出的牌（保持手牌顺序）
func LegalPlays(hand []table.Card, trick *table.Trick) []table.Card {
	out := make([]table.Card, 0, len(hand))
	for _, c := range hand {
		if CheckPlay(hand, trick, c) == nil {
			out = append(out, c)
		}
	}
	return out
}

// LowestCard 点数最小的牌，点数相同按花色顺序
func LowestCard(cards []table.Card) (table.Card, bool) {
	if len(cards) == 0 {
		return table.Card{}, false
	}
	low := cards[0]
	for _, c := range cards[1:] {
		if c.Less(low) {
			low = c
		}
	}
	return low, true
}

// TrickWinner 返回赢家在 cards 中的下标
// 有主牌时最大的主牌赢，否则首花色最大的牌赢；trump 为 nil 表示无主
func TrickWinner(cards []table.PlayedCard, trump *table.Color) int {
	if len(cards) == 0 {
		return -1
	}
	led := cards[0].Card.Color
	best := 0
	for i := 1; i < len(cards); i++ {
		if beats(cards[i].Card, cards[best].Card, led, trump) {
			best = i
		}
	}
	return best
}

func beats(c, cur table.Card, led table.Color, trump *table.Color) bool {
	if trump != nil {
		cTrump, curTrump := c.Color == *trump, cur.Color == *trump
		if cTrump != curTrump {
			return cTrump
		}
		if cTrump {
			return c.Value > cur.Value
		}
	}
	if c.Color != led {
		return false
	}
	if cur.Color != led {
		return true
	}
	return c.Value > cur.Value
}

// TrickValue 普通一墩 1 分；红 0 为 6 分；棕 0 为 -2 分；两张都在时为 4 分
func TrickValue(cards []table.PlayedCard) int {
	red, brown := false, false
	for _, pc := range cards {
		switch pc.Card {
		case table.RedZero:
			red = true
		case table.BrownZero:
			brown = true
		}
	}
	switch {
	case red && brown:
		return RedZeroValue + BrownZeroValue
	case red:
		return RedZeroValue
	case brown:
		return BrownZeroValue
	default:
		return NormalTrickValue
	}
}

// ResolveTrick 结算完整的一墩
func ResolveTrick(trick *table.Trick, trump *table.Color, teamOf func(seat int) int) table.TrickSummary {
	w := TrickWinner(trick.Cards, trump)
	pc := trick.Cards[w]
	return table.TrickSummary{
		Cards:      append([]table.PlayedCard(nil), trick.Cards...),
		WinnerSeat: pc.Seat,
		WinnerID:   pc.PlayerID,
		Team:       teamOf(pc.Seat),
		Points:     TrickValue(trick.Cards),
	}
}
