package engine

import (
	"fmt"

	"Jaffre/internal/game/table"
)

// IntentKind 进入状态机的请求类型
type IntentKind string

const (
	IntentJoin         IntentKind = "join_game"
	IntentLeave        IntentKind = "leave_game"
	IntentAddBot       IntentKind = "add_bot"
	IntentSelectTeam   IntentKind = "select_team"
	IntentSwapPosition IntentKind = "swap_position"
	IntentStartGame    IntentKind = "start_game"
	IntentPlaceBet     IntentKind = "place_bet"
	IntentSkipBet      IntentKind = "skip_bet"
	IntentPlayCard     IntentKind = "play_card"
	IntentAcknowledge  IntentKind = "acknowledge_round"
	IntentVoteRematch  IntentKind = "vote_rematch"
	IntentResync       IntentKind = "resync"

	IntentDisconnected IntentKind = "player_disconnected"
	IntentReconnected  IntentKind = "player_reconnected"

	// 系统内部（定时器、机器人）
	IntentTurnTimeout   IntentKind = "turn_timeout"
	IntentGraceExpired  IntentKind = "grace_expired"
	IntentReviewTimeout IntentKind = "review_timeout"
	IntentBotMove       IntentKind = "bot_move"

	// 仅限可信调用方（管理接口）
	IntentForceScores IntentKind = "force_scores"
	IntentForcePhase  IntentKind = "force_phase"
)

// Intent 所有输入统一成一个结构，由 Engine 串行处理
// 客户端发来的 data 直接解到这里，身份字段由服务端填
type Intent struct {
	Kind     IntentKind `json:"-"`
	PlayerID string     `json:"-"`
	Token    uint64     `json:"-"`
	Trusted  bool       `json:"-"`

	Name         string            `json:"name,omitempty"`
	Team         int               `json:"team,omitempty"`
	Seat         int               `json:"seat,omitempty"`
	Amount       int               `json:"amount,omitempty"`
	WithoutTrump bool              `json:"withoutTrump,omitempty"`
	Card         *table.Card       `json:"card,omitempty"`
	Action       *table.Action     `json:"action,omitempty"`
	Scores       *table.TeamScores `json:"scores,omitempty"`
	Phase        table.Phase       `json:"phase,omitempty"`
}

func (in Intent) String() string {
	switch in.Kind {
	case IntentPlaceBet:
		return fmt.Sprintf("%s(%s, %d, wt=%v)", in.Kind, in.PlayerID, in.Amount, in.WithoutTrump)
	case IntentPlayCard:
		if in.Card != nil {
			return fmt.Sprintf("%s(%s, %s)", in.Kind, in.PlayerID, in.Card)
		}
	case IntentTurnTimeout, IntentGraceExpired, IntentReviewTimeout, IntentBotMove:
		return fmt.Sprintf("%s(%s, token=%d)", in.Kind, in.PlayerID, in.Token)
	}
	return fmt.Sprintf("%s(%s)", in.Kind, in.PlayerID)
}

// FromAction 把合法动作集合中的元素转成对应的意图
func FromAction(playerID string, a table.Action) Intent {
	in := Intent{PlayerID: playerID}
	switch a.Kind {
	case table.ActionBet:
		in.Kind = IntentPlaceBet
		in.Amount = a.Amount
		in.WithoutTrump = a.WithoutTrump
	case table.ActionSkip:
		in.Kind = IntentSkipBet
	case table.ActionPlay:
		in.Kind = IntentPlayCard
		in.Card = a.Card
	}
	return in
}
