package table

import "slices"

// SeatView 对其他玩家隐藏手牌
type SeatView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Team      int       `json:"team"`
	Seat      int       `json:"seat"`
	HandSize  int       `json:"handSize"`
	TricksWon int       `json:"tricksWon"`
	PointsWon int       `json:"pointsWon"`
	Conn      ConnState `json:"conn"`
	IsBot     bool      `json:"isBot"`
}

// View 某个座位看到的局面，用于重连同步和机器人决策
type View struct {
	GameID       string           `json:"gameId"`
	Phase        Phase            `json:"phase"`
	Seat         int              `json:"seat"`
	Hand         []Card           `json:"hand"`
	Seats        [Seats]*SeatView `json:"seats"`
	Scores       TeamScores       `json:"scores"`
	RoundNumber  int              `json:"roundNumber"`
	Dealer       int              `json:"dealer"`
	Current      int              `json:"current"`
	Bets         []Bet            `json:"bets,omitempty"`
	WinningBet   *Bet             `json:"winningBet,omitempty"`
	Trump        *Color           `json:"trump,omitempty"`
	Trick        []PlayedCard     `json:"trick,omitempty"`
	LastTrick    *TrickSummary    `json:"lastTrick,omitempty"`
	TeamPoints   map[int]int      `json:"teamPoints,omitempty"`
	RematchVotes []string         `json:"rematchVotes,omitempty"`
	WinningTeam  int              `json:"winningTeam,omitempty"`
	Turn         uint64           `json:"turn"`
	Legal        []Action         `json:"legal,omitempty"`
}

// ViewFor seat 为 -1 时是旁观视角（没有手牌）
func (t *Table) ViewFor(seat int) View {
	v := View{
		GameID:      t.ID,
		Phase:       t.Phase,
		Seat:        seat,
		Scores:      t.Scores,
		RoundNumber: t.RoundNumber,
		Dealer:      t.Dealer,
		Current:     t.Current,
		WinningTeam: t.WinningTeam,
		Turn:        t.Turn,
	}
	for i, p := range t.Players {
		if p == nil {
			continue
		}
		v.Seats[i] = &SeatView{
			ID:        p.ID,
			Name:      p.Name,
			Team:      p.Team,
			Seat:      p.Seat,
			HandSize:  len(p.Hand),
			TricksWon: p.TricksWon,
			PointsWon: p.PointsWon,
			Conn:      p.Conn,
			IsBot:     p.IsBot,
		}
		if i == seat {
			v.Hand = append([]Card(nil), p.Hand...)
			SortHand(v.Hand)
		}
	}
	if r := t.Round; r != nil {
		v.Bets = append([]Bet(nil), r.Bets...)
		if r.WinningBet != nil {
			wb := *r.WinningBet
			v.WinningBet = &wb
		}
		if r.Trump != nil {
			tc := *r.Trump
			v.Trump = &tc
		}
		if n := len(r.Tricks); n > 0 {
			last := r.Tricks[n-1]
			v.LastTrick = &last
		}
		v.TeamPoints = map[int]int{Team1: r.TeamPoints[Team1], Team2: r.TeamPoints[Team2]}
	}
	if t.Trick != nil {
		v.Trick = append([]PlayedCard(nil), t.Trick.Cards...)
	}
	for id, ok := range t.RematchVotes {
		if ok {
			v.RematchVotes = append(v.RematchVotes, id)
		}
	}
	slices.Sort(v.RematchVotes)
	return v
}
