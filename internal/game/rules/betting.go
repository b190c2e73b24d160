package rules

import (
	"errors"
	"fmt"

	"Jaffre/internal/game/table"
)

const (
	MinBet = 7
	MaxBet = 12
)

var (
	ErrNotYourTurn   = errors.New("not your turn")
	ErrAlreadyActed  = errors.New("already bet this round")
	ErrBetRange      = fmt.Errorf("bet must be between %d and %d", MinBet, MaxBet)
	ErrDealerMustBet = errors.New("dealer must bet when nobody has bet")
	ErrMustRaise     = errors.New("bet must be higher than the current bet")
	ErrDealerRaise   = errors.New("dealer must equal or raise the current bet")
)

// BettingOrder 庄家下一位先叫，庄家最后
func BettingOrder(dealer int) [table.Seats]int {
	var order [table.Seats]int
	for i := range order {
		order[i] = (dealer + 1 + i) % table.Seats
	}
	return order
}

// NextBettor 还没叫的下一个座位；全部叫完返回 -1
func NextBettor(dealer int, bets []table.Bet) int {
	if len(bets) >= table.Seats {
		return -1
	}
	return BettingOrder(dealer)[len(bets)]
}

// HighBet 当前有效的最高叫分，即最后一个被接受的叫分
func HighBet(bets []table.Bet) *table.Bet {
	for i := len(bets) - 1; i >= 0; i-- {
		if !bets[i].Skipped {
			b := bets[i]
			return &b
		}
	}
	return nil
}

// WinningBet 叫分结束后的赢家；四人都跳过时返回 nil（需要重新发牌）
func WinningBet(bets []table.Bet) *table.Bet {
	if len(bets) < table.Seats {
		return nil
	}
	return HighBet(bets)
}

func BettingComplete(bets []table.Bet) bool {
	return len(bets) >= table.Seats
}

// CheckSkip 判断 seat 此刻能否跳过
func CheckSkip(seat, dealer int, bets []table.Bet, r table.Rules) error {
	if err := checkTurn(seat, dealer, bets); err != nil {
		return err
	}
	if seat == dealer && HighBet(bets) == nil && !r.DealerMaySkip {
		return ErrDealerMustBet
	}
	return nil
}

// CheckBet 判断叫分是否合法
//   - 还没有人叫：7..12 任意
//   - 已有人叫，非庄家：必须严格加分（可配置：同分 + 不要主牌 视为加分）
//   - 庄家：同分即可（平局庄家赢）或加分
func CheckBet(seat, dealer int, bets []table.Bet, amount int, withoutTrump bool, r table.Rules) error {
	if err := checkTurn(seat, dealer, bets); err != nil {
		return err
	}
	if amount < MinBet || amount > MaxBet {
		return ErrBetRange
	}
	high := HighBet(bets)
	if high == nil {
		return nil
	}
	if seat == dealer {
		if amount < high.Amount {
			return ErrDealerRaise
		}
		return nil
	}
	if amount > high.Amount {
		return nil
	}
	if amount == high.Amount && r.WithoutTrumpBreaksTies && withoutTrump && !high.WithoutTrump {
		return nil
	}
	return ErrMustRaise
}

func checkTurn(seat, dealer int, bets []table.Bet) error {
	for _, b := range bets {
		if b.Seat == seat {
			return ErrAlreadyActed
		}
	}
	if NextBettor(dealer, bets) != seat {
		return ErrNotYourTurn
	}
	return nil
}

// LegalBetActions 该座位此刻全部合法动作：跳过在前，叫分按分数升序
func LegalBetActions(seat, dealer int, bets []table.Bet, r table.Rules) []table.Action {
	var out []table.Action
	if CheckSkip(seat, dealer, bets, r) == nil {
		out = append(out, table.SkipAction())
	}
	for amount := MinBet; amount <= MaxBet; amount++ {
		for _, wt := range []bool{false, true} {
			if CheckBet(seat, dealer, bets, amount, wt, r) == nil {
				out = append(out, table.BetAction(amount, wt))
			}
		}
	}
	return out
}

// DefaultBetAction 超时托管：能跳过就跳过，否则叫最小的合法分
func DefaultBetAction(legal []table.Action) (table.Action, bool) {
	var min *table.Action
	for i, a := range legal {
		switch a.Kind {
		case table.ActionSkip:
			return a, true
		case table.ActionBet:
			if a.WithoutTrump {
				continue
			}
			if min == nil || a.Amount < min.Amount {
				min = &legal[i]
			}
		}
	}
	if min == nil {
		return table.Action{}, false
	}
	return *min, true
}
