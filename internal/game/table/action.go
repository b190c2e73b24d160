package table

import "fmt"

// ActionKind 玩家在自己回合可以做的动作
type ActionKind string

const (
	ActionBet  ActionKind = "bet"
	ActionSkip ActionKind = "skip"
	ActionPlay ActionKind = "play"
)

// Action 合法动作集合中的一个元素（机器人、超时托管共用）
type Action struct {
	Kind         ActionKind `json:"kind"`
	Amount       int        `json:"amount,omitempty"`
	WithoutTrump bool       `json:"withoutTrump,omitempty"`
	Card         *Card      `json:"card,omitempty"`
}

func BetAction(amount int, withoutTrump bool) Action {
	return Action{Kind: ActionBet, Amount: amount, WithoutTrump: withoutTrump}
}

func SkipAction() Action {
	return Action{Kind: ActionSkip}
}

func PlayAction(c Card) Action {
	return Action{Kind: ActionPlay, Card: &c}
}

func (a Action) Equal(o Action) bool {
	if a.Kind != o.Kind || a.Amount != o.Amount || a.WithoutTrump != o.WithoutTrump {
		return false
	}
	if a.Card == nil || o.Card == nil {
		return a.Card == nil && o.Card == nil
	}
	return *a.Card == *o.Card
}

func (a Action) String() string {
	switch a.Kind {
	case ActionBet:
		if a.WithoutTrump {
			return fmt.Sprintf("bet %d without trump", a.Amount)
		}
		return fmt.Sprintf("bet %d", a.Amount)
	case ActionPlay:
		if a.Card != nil {
			return "play " + a.Card.String()
		}
	}
	return string(a.Kind)
}
