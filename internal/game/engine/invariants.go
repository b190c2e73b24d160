package engine

import (
	"fmt"

	"Jaffre/internal/game/rules"
	"Jaffre/internal/game/table"
)

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

// CheckInvariants 每次提交前调用
func CheckInvariants(t *table.Table) error {
	for i, p := range t.Players {
		if p != nil && p.Seat != i {
			return violation("player %s sits at %d but records seat %d", p.ID, i, p.Seat)
		}
	}
	switch t.Phase {
	case table.PhaseBetting, table.PhasePlaying, table.PhaseScoring:
	default:
		return nil
	}

	if t.Occupied() != table.Seats {
		return violation("%d seats occupied during %s", t.Occupied(), t.Phase)
	}
	if t.TeamCount(table.Team1) != 2 || t.TeamCount(table.Team2) != 2 {
		return violation("teams are not 2 against 2")
	}
	if t.Round == nil {
		return violation("no round during %s", t.Phase)
	}
	if err := checkCurrent(t); err != nil {
		return err
	}
	if err := checkCards(t); err != nil {
		return err
	}
	if err := checkTrickPoints(t); err != nil {
		return err
	}
	if w := rules.MatchWinner(t.Scores, table.Team1, t.Rules.WinningScore); w != table.NoTeam {
		return violation("team %d reached %d but the match goes on", w, t.Rules.WinningScore)
	}
	return nil
}

// checkCurrent 只校验轮次顺序；当前座位可以是掉线的真人，由掉线超时（DisconnectedTurnTimeout）推进
func checkCurrent(t *table.Table) error {
	switch t.Phase {
	case table.PhaseBetting:
		if want := rules.NextBettor(t.Dealer, t.Round.Bets); t.Current != want {
			return violation("betting turn at seat %d, expected %d", t.Current, want)
		}
	case table.PhasePlaying:
		if t.Trick == nil || t.Round.WinningBet == nil {
			return violation("playing without trick or winning bet")
		}
		if want := (t.Trick.Leader + len(t.Trick.Cards)) % table.Seats; t.Current != want {
			return violation("playing turn at seat %d, expected %d", t.Current, want)
		}
	}
	return nil
}

// checkCards 手牌加已出的牌正好是一整副，手牌数量随出牌递减
func checkCards(t *table.Table) error {
	seen := make(map[table.Card]bool, table.DeckSize)
	add := func(c table.Card) error {
		if !c.Valid() {
			return violation("invalid card %v", c)
		}
		if seen[c] {
			return violation("card %s appears twice", c)
		}
		seen[c] = true
		return nil
	}

	inTrick := make(map[int]int)
	if t.Trick != nil {
		for _, pc := range t.Trick.Cards {
			inTrick[pc.Seat]++
		}
	}
	for seat, p := range t.Players {
		want := table.HandSize - len(t.Round.Tricks) - inTrick[seat]
		if len(p.Hand) != want {
			return violation("seat %d holds %d cards, expected %d", seat, len(p.Hand), want)
		}
		for _, c := range p.Hand {
			if err := add(c); err != nil {
				return err
			}
		}
	}
	for _, c := range t.Round.PlayedCards(t.Trick) {
		if err := add(c); err != nil {
			return err
		}
	}
	if len(seen) != table.DeckSize {
		return violation("%d cards in play, expected %d", len(seen), table.DeckSize)
	}
	return nil
}

// checkTrickPoints 每墩的分值只记一次，且和墩内特殊牌一致
func checkTrickPoints(t *table.Table) error {
	sums := map[int]int{}
	for i, s := range t.Round.Tricks {
		if len(s.Cards) != table.Seats {
			return violation("trick %d has %d cards", i+1, len(s.Cards))
		}
		if v := rules.TrickValue(s.Cards); s.Points != v {
			return violation("trick %d awarded %d, worth %d", i+1, s.Points, v)
		}
		if w := t.Players[s.WinnerSeat]; w == nil || w.Team != s.Team {
			return violation("trick %d credited to the wrong team", i+1)
		}
		sums[s.Team] += s.Points
	}
	for _, team := range []int{table.Team1, table.Team2} {
		if sums[team] != t.Round.TeamPoints[team] {
			return violation("team %d has %d trick points, tricks sum to %d", team, t.Round.TeamPoints[team], sums[team])
		}
	}
	return nil
}
