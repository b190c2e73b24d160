package table

import (
	"encoding/json"
	"time"
)

// Phase 对局阶段
type Phase string

const (
	PhaseTeamSelection Phase = "team_selection"
	PhaseBetting       Phase = "betting"
	PhasePlaying       Phase = "playing"
	PhaseScoring       Phase = "scoring"
	PhaseGameOver      Phase = "game_over"
	PhaseRematchVoting Phase = "rematch_voting"
	PhaseTerminated    Phase = "terminated"
)

const (
	Seats          = 4
	TricksPerRound = HandSize
	NoTeam         = 0
	Team1          = 1
	Team2          = 2
)

// ConnState 座位的连接状态
type ConnState string

const (
	Connected    ConnState = "connected"
	Disconnected ConnState = "disconnected"
	Reconnecting ConnState = "reconnecting"
)

// Player 只属于某一局
type Player struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Team      int       `json:"team"`
	Seat      int       `json:"seat"`
	Hand      []Card    `json:"hand"`
	TricksWon int       `json:"tricksWon"`
	PointsWon int       `json:"pointsWon"`
	Conn      ConnState `json:"conn"`
	IsBot     bool      `json:"isBot"`
	// Epoch 每次掉线 +1，宽限期定时器带着它，重连后旧定时器失效
	Epoch uint64 `json:"epoch,omitempty"`
}

// RemoveCard 从手牌中移除一张，返回是否找到
func (p *Player) RemoveCard(c Card) bool {
	for i, h := range p.Hand {
		if h == c {
			p.Hand = append(p.Hand[:i:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// Active 连线中或由机器人接管
func (p *Player) Active() bool {
	return p.IsBot || p.Conn == Connected
}

// Bet 每人每局一次；Skipped 为 true 时 Amount 无意义
type Bet struct {
	PlayerID     string `json:"playerId"`
	Seat         int    `json:"seat"`
	Amount       int    `json:"amount,omitempty"`
	WithoutTrump bool   `json:"withoutTrump,omitempty"`
	Skipped      bool   `json:"skipped,omitempty"`
}

// Multiplier 不要主牌时赌注翻倍
func (b Bet) Multiplier() int {
	if b.WithoutTrump {
		return 2
	}
	return 1
}

type PlayedCard struct {
	Card     Card   `json:"card"`
	Seat     int    `json:"seat"`
	PlayerID string `json:"playerId"`
}

// Trick 当前这一墩
type Trick struct {
	Leader int          `json:"leader"`
	Cards  []PlayedCard `json:"cards"`
}

// LedColor 首张牌的花色；空墩时 ok=false
func (t *Trick) LedColor() (Color, bool) {
	if t == nil || len(t.Cards) == 0 {
		return 0, false
	}
	return t.Cards[0].Card.Color, true
}

// TrickSummary 已结算的一墩，仅保留在本局回顾中
type TrickSummary struct {
	Cards      []PlayedCard `json:"cards"`
	WinnerSeat int          `json:"winnerSeat"`
	WinnerID   string       `json:"winnerId"`
	Team       int          `json:"team"`
	Points     int          `json:"points"`
}

// Round 一局（8 墩）
type Round struct {
	Number       int             `json:"number"`
	Dealer       int             `json:"dealer"`
	Bets         []Bet           `json:"bets"`
	WinningBet   *Bet            `json:"winningBet,omitempty"`
	Trump        *Color          `json:"trump,omitempty"`
	Tricks       []TrickSummary  `json:"tricks"`
	TeamPoints   map[int]int     `json:"teamPoints"`
	InitialHands [Seats][]Card   `json:"initialHands"`
	Acks         map[string]bool `json:"acks,omitempty"`
}

// PlayedCards 本局已出的全部牌（含当前墩）
func (r *Round) PlayedCards(current *Trick) []Card {
	var out []Card
	for _, s := range r.Tricks {
		for _, pc := range s.Cards {
			out = append(out, pc.Card)
		}
	}
	if current != nil {
		for _, pc := range current.Cards {
			out = append(out, pc.Card)
		}
	}
	return out
}

type TeamScores struct {
	Team1 int `json:"team1"`
	Team2 int `json:"team2"`
}

func (s TeamScores) Of(team int) int {
	if team == Team1 {
		return s.Team1
	}
	return s.Team2
}

func (s *TeamScores) Add(team, delta int) {
	if team == Team1 {
		s.Team1 += delta
	} else {
		s.Team2 += delta
	}
}

// Rules 每局可调的规则参数
type Rules struct {
	WinningScore           int  `json:"winningScore"`
	InitialDealer          int  `json:"initialDealer"`
	DealerMaySkip          bool `json:"dealerMaySkip"`
	WithoutTrumpBreaksTies bool `json:"withoutTrumpBreaksTies"`
	ConvertToBotAfterGrace bool `json:"convertToBotAfterGrace"`
	AckRounds              bool `json:"ackRounds"`
}

func DefaultRules() Rules {
	return Rules{WinningScore: 41}
}

// Table 一个对局会话的全部权威状态，可整体序列化用于断线重连
type Table struct {
	ID           string          `json:"id"`
	Phase        Phase           `json:"phase"`
	Players      [Seats]*Player  `json:"players"`
	Scores       TeamScores      `json:"scores"`
	RoundNumber  int             `json:"roundNumber"`
	Dealer       int             `json:"dealer"`
	Current      int             `json:"current"`
	Round        *Round          `json:"round,omitempty"`
	Trick        *Trick          `json:"trick,omitempty"`
	RematchVotes map[string]bool `json:"rematchVotes,omitempty"`
	WinningTeam  int             `json:"winningTeam,omitempty"`
	Turn         uint64          `json:"turn"`
	Rules        Rules           `json:"rules"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func New(id string, rules Rules) *Table {
	if rules.WinningScore <= 0 {
		rules.WinningScore = DefaultRules().WinningScore
	}
	if rules.InitialDealer < 0 || rules.InitialDealer >= Seats {
		rules.InitialDealer = 0
	}
	return &Table{
		ID:        id,
		Phase:     PhaseTeamSelection,
		Dealer:    rules.InitialDealer,
		Current:   -1,
		Rules:     rules,
		CreatedAt: time.Now(),
	}
}

// PlayerByID 返回玩家及座位号；不存在时返回 nil,-1
func (t *Table) PlayerByID(id string) (*Player, int) {
	for i, p := range t.Players {
		if p != nil && p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

func (t *Table) CurrentPlayer() *Player {
	if t.Current < 0 || t.Current >= Seats {
		return nil
	}
	return t.Players[t.Current]
}

func (t *Table) PlayerIDs() []string {
	ids := make([]string, 0, Seats)
	for _, p := range t.Players {
		if p != nil {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

// HumanIDs 需要推送消息的玩家
func (t *Table) HumanIDs() []string {
	ids := make([]string, 0, Seats)
	for _, p := range t.Players {
		if p != nil && !p.IsBot {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (t *Table) TeamCount(team int) int {
	n := 0
	for _, p := range t.Players {
		if p != nil && p.Team == team {
			n++
		}
	}
	return n
}

func (t *Table) Occupied() int {
	n := 0
	for _, p := range t.Players {
		if p != nil {
			n++
		}
	}
	return n
}

func NextSeat(seat int) int {
	return (seat + 1) % Seats
}

// Clone 深拷贝；状态机在副本上应用意图，成功后才提交
func (t *Table) Clone() *Table {
	b, err := json.Marshal(t)
	if err != nil {
		panic(err)
	}
	var out Table
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return &out
}

// Marshal / Unmarshal 快照序列化
func (t *Table) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

func Unmarshal(data []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
