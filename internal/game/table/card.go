package table

import (
	"fmt"
	"slices"
	"strings"
)

// Color 牌的花色
type Color int

const (
	Red Color = iota
	Brown
	Green
	Blue
)

// Colors 按固定顺序列出四种花色
var Colors = []Color{Red, Brown, Green, Blue}

const (
	MinValue = 0
	MaxValue = 7
	DeckSize = 32
	HandSize = 8
)

var colorNames = []string{"red", "brown", "green", "blue"}

func (c Color) String() string {
	if c < 0 || int(c) >= len(colorNames) {
		return "?"
	}
	return colorNames[c]
}

func (c Color) Valid() bool {
	return c >= Red && c <= Blue
}

func ParseColor(s string) (Color, error) {
	for i, name := range colorNames {
		if strings.EqualFold(s, name) {
			return Color(i), nil
		}
	}
	return 0, fmt.Errorf("unknown color %q", s)
}

func (c Color) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid color %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Card 不可变的牌值
type Card struct {
	Color Color `json:"color"`
	Value int   `json:"value"`
}

var (
	// RedZero 所在的一墩值 6 分
	RedZero = Card{Color: Red, Value: 0}
	// BrownZero 所在的一墩值 -2 分
	BrownZero = Card{Color: Brown, Value: 0}
)

func (c Card) Valid() bool {
	return c.Color.Valid() && c.Value >= MinValue && c.Value <= MaxValue
}

func (c Card) String() string {
	return fmt.Sprintf("%s-%d", c.Color, c.Value)
}

// Less 先比点数再比花色，用于“最小的合法牌”
func (c Card) Less(o Card) bool {
	if c.Value != o.Value {
		return c.Value < o.Value
	}
	return c.Color < o.Color
}

func CompareCards(a, b Card) int {
	switch {
	case a == b:
		return 0
	case a.Less(b):
		return -1
	default:
		return 1
	}
}

// SortHand 按花色、点数排序（展示用）
func SortHand(hand []Card) {
	slices.SortFunc(hand, func(a, b Card) int {
		if a.Color != b.Color {
			return int(a.Color) - int(b.Color)
		}
		return a.Value - b.Value
	})
}

// FullDeck 返回未洗的 32 张牌
func FullDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, c := range Colors {
		for v := MinValue; v <= MaxValue; v++ {
			deck = append(deck, Card{Color: c, Value: v})
		}
	}
	return deck
}
