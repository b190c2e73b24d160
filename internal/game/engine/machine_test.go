package engine

import (
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Jaffre/internal/game/dealer"
	"Jaffre/internal/game/rules"
	"Jaffre/internal/game/table"
)

// ---------------------------------------------------------
// 测试工具
// ---------------------------------------------------------

var playerIDs = []string{"p1", "p2", "p3", "p4"}

// newLobby 四个真人依次入座，队伍交替：座位 0/2 为一队，1/3 为二队
func newLobby(t *testing.T, cfg table.Rules) *Machine {
	t.Helper()
	m := NewMachine(table.New("g1", cfg), dealer.NewDealer(42))
	n := 0
	m.newID = func() string {
		n++
		return fmt.Sprintf("bot-%d", n)
	}
	for i, id := range playerIDs {
		mustApply(t, m, Intent{Kind: IntentJoin, PlayerID: id, Team: i%2 + 1})
	}
	return m
}

func started(t *testing.T, cfg table.Rules) *Machine {
	t.Helper()
	m := newLobby(t, cfg)
	mustApply(t, m, Intent{Kind: IntentStartGame, PlayerID: "p1"})
	return m
}

func mustApply(t *testing.T, m *Machine, in Intent) []Event {
	t.Helper()
	evs, err := m.Apply(in)
	require.NoError(t, err, "apply %s", in)
	return evs
}

func kinds(evs []Event) []EventKind {
	out := make([]EventKind, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Kind)
	}
	return out
}

func find(evs []Event, k EventKind) (Event, bool) {
	for _, e := range evs {
		if e.Kind == k {
			return e, true
		}
	}
	return Event{}, false
}

func suit(c table.Color, values ...int) []table.Card {
	out := make([]table.Card, len(values))
	for i, v := range values {
		out[i] = table.Card{Color: c, Value: v}
	}
	return out
}

var (
	ascending  = []int{0, 1, 2, 3, 4, 5, 6, 7}
	descending = []int{7, 6, 5, 4, 3, 2, 1, 0}
	// 第 4 墩出棕 0
	brownOrder = []int{3, 1, 2, 0, 4, 5, 6, 7}
)

// rig 替换当前这一局的手牌（整副牌仍然完整）
func rig(m *Machine, hands [table.Seats][]table.Card) {
	for i, p := range m.t.Players {
		p.Hand = slices.Clone(hands[i])
		m.t.Round.InitialHands[i] = slices.Clone(hands[i])
	}
}

func bet(id string, amount int) Intent {
	return Intent{Kind: IntentPlaceBet, PlayerID: id, Amount: amount}
}

func skip(id string) Intent {
	return Intent{Kind: IntentSkipBet, PlayerID: id}
}

func play(id string, c table.Card) Intent {
	return Intent{Kind: IntentPlayCard, PlayerID: id, Card: &c}
}

// playRound 每墩都由 leader 先出，plays[seat][i] 是该座位第 i 墩出的牌
// 同时检查每出一张牌手牌数减一
func playRound(t *testing.T, m *Machine, leader int, plays [table.Seats][]table.Card) []Event {
	t.Helper()
	var all []Event
	round := m.t.RoundNumber
	for i := 0; i < table.TricksPerRound; i++ {
		for k := 0; k < table.Seats; k++ {
			seat := (leader + k) % table.Seats
			p := m.t.Players[seat]
			before := len(p.Hand)
			all = append(all, mustApply(t, m, play(p.ID, plays[seat][i]))...)
			if m.t.RoundNumber == round && m.t.Phase == table.PhasePlaying {
				assert.Len(t, m.t.Players[seat].Hand, before-1)
			}
		}
	}
	return all
}

// ---------------------------------------------------------
// 选队阶段
// ---------------------------------------------------------

func TestLobbyJoinAndStart(t *testing.T) {
	m := NewMachine(table.New("g1", table.DefaultRules()), dealer.NewDealer(1))

	evs := mustApply(t, m, Intent{Kind: IntentJoin, PlayerID: "p1", Name: "Ana"})
	assert.Equal(t, []EventKind{EventPlayerJoined}, kinds(evs))
	assert.Equal(t, "Ana", m.t.Players[0].Name)

	_, err := m.Apply(Intent{Kind: IntentJoin, PlayerID: "p1"})
	assert.ErrorIs(t, err, ErrIllegalAction)

	_, err = m.Apply(Intent{Kind: IntentStartGame, PlayerID: "p1"})
	assert.ErrorIs(t, err, ErrIllegalAction, "cannot start with one player")

	mustApply(t, m, Intent{Kind: IntentJoin, PlayerID: "p2"})
	mustApply(t, m, Intent{Kind: IntentJoin, PlayerID: "p3"})
	mustApply(t, m, Intent{Kind: IntentJoin, PlayerID: "p4"})
	assert.Equal(t, 2, m.t.TeamCount(table.Team1))
	assert.Equal(t, 2, m.t.TeamCount(table.Team2))

	_, err = m.Apply(Intent{Kind: IntentJoin, PlayerID: "p5"})
	assert.ErrorIs(t, err, ErrIllegalAction, "table is full")

	_, err = m.Apply(Intent{Kind: IntentStartGame, PlayerID: "stranger"})
	assert.ErrorIs(t, err, ErrIllegalAction)

	evs = mustApply(t, m, Intent{Kind: IntentStartGame, PlayerID: "p2"})
	assert.Equal(t, EventGameStarted, evs[0].Kind)
	assert.Equal(t, table.PhaseBetting, m.t.Phase)
	assert.Equal(t, 1, m.t.RoundNumber)
	assert.Equal(t, 1, m.t.Current, "seat after the dealer bets first")

	// 每个真人私下收到 8 张牌
	dealt := 0
	for _, e := range evs {
		if e.Kind == EventHandDealt {
			dealt++
			require.Len(t, e.To, 1)
			assert.Len(t, e.Payload.(HandPayload).Hand, table.HandSize)
		}
	}
	assert.Equal(t, 4, dealt)
	yt, ok := find(evs, EventYourTurn)
	require.True(t, ok)
	assert.Equal(t, []string{"p2"}, yt.To)
}

func TestLobbyTeamsAndSeats(t *testing.T) {
	m := newLobby(t, table.DefaultRules())

	_, err := m.Apply(Intent{Kind: IntentSelectTeam, PlayerID: "p1", Team: table.Team2})
	assert.ErrorIs(t, err, ErrIllegalAction, "team 2 already has two players")

	evs, err := m.Apply(Intent{Kind: IntentSelectTeam, PlayerID: "p1", Team: table.Team1})
	require.NoError(t, err)
	assert.Empty(t, evs, "selecting own team is a no-op")

	// p1 换到 3 号座位，p4 到 0 号座位，队伍跟着人走
	evs = mustApply(t, m, Intent{Kind: IntentSwapPosition, PlayerID: "p1", Seat: 3})
	assert.Equal(t, []EventKind{EventPositionSwapped}, kinds(evs))
	assert.Equal(t, "p1", m.t.Players[3].ID)
	assert.Equal(t, "p4", m.t.Players[0].ID)
	assert.Equal(t, 3, m.t.Players[3].Seat)
	assert.Equal(t, table.Team1, m.t.Players[3].Team)

	_, err = m.Apply(Intent{Kind: IntentSwapPosition, PlayerID: "p1", Seat: 4})
	assert.ErrorIs(t, err, ErrIllegalAction)

	// 离开后座位空出，可以加机器人
	evs = mustApply(t, m, Intent{Kind: IntentLeave, PlayerID: "p2"})
	assert.Equal(t, []EventKind{EventPlayerLeft}, kinds(evs))
	assert.Nil(t, m.t.Players[1])

	evs = mustApply(t, m, Intent{Kind: IntentAddBot, PlayerID: "p3"})
	require.Equal(t, []EventKind{EventPlayerJoined}, kinds(evs))
	bot := m.t.Players[1]
	require.NotNil(t, bot)
	assert.True(t, bot.IsBot)
	assert.Equal(t, "bot-1", bot.ID)
	assert.Equal(t, table.Team2, bot.Team)

	_, err = m.Apply(Intent{Kind: IntentAddBot, PlayerID: "p3"})
	assert.ErrorIs(t, err, ErrIllegalAction, "no free seat")

	// 不是选队阶段
	mustApply(t, m, Intent{Kind: IntentStartGame, PlayerID: "p3"})
	_, err = m.Apply(Intent{Kind: IntentJoin, PlayerID: "late"})
	assert.ErrorIs(t, err, ErrIllegalAction)
}

func TestLobbyEmptiedTerminates(t *testing.T) {
	m := NewMachine(table.New("g1", table.DefaultRules()), dealer.NewDealer(1))
	mustApply(t, m, Intent{Kind: IntentJoin, PlayerID: "p1"})
	mustApply(t, m, Intent{Kind: IntentAddBot, PlayerID: "p1"})

	evs := mustApply(t, m, Intent{Kind: IntentLeave, PlayerID: "p1"})
	assert.Equal(t, []EventKind{EventPlayerLeft, EventTerminated}, kinds(evs))
	assert.Equal(t, table.PhaseTerminated, m.t.Phase)

	_, err := m.Apply(Intent{Kind: IntentJoin, PlayerID: "p2"})
	assert.ErrorIs(t, err, ErrIllegalAction)
}

// ---------------------------------------------------------
// 叫分
// ---------------------------------------------------------

// ✅ 庄家在 P2：P3=7, P4=8, P1=9, P2=9 → P2 以 9 分赢得叫分并先出
func TestDealerTieBreak(t *testing.T) {
	cfg := table.DefaultRules()
	cfg.InitialDealer = 1
	m := started(t, cfg)
	require.Equal(t, 2, m.t.Current)

	mustApply(t, m, bet("p3", 7))
	mustApply(t, m, bet("p4", 8))
	mustApply(t, m, bet("p1", 9))
	evs := mustApply(t, m, bet("p2", 9))

	assert.Equal(t, []EventKind{EventBetPlaced, EventBettingConcluded, EventYourTurn}, kinds(evs))
	concluded := evs[1].Payload.(BettingConcludedPayload)
	assert.Equal(t, "p2", concluded.WinningBet.PlayerID)
	assert.Equal(t, 9, concluded.WinningBet.Amount)
	assert.Nil(t, concluded.Trump, "trump is fixed by the first card")

	assert.Equal(t, table.PhasePlaying, m.t.Phase)
	assert.Equal(t, 1, m.t.Current)
	assert.Equal(t, 1, m.t.Trick.Leader)
}

func TestBettingRejectsIllegalBids(t *testing.T) {
	m := started(t, table.DefaultRules())
	snap, err := m.t.Marshal()
	require.NoError(t, err)
	turn := m.t.Turn

	cases := []Intent{
		bet("p3", 7),  // 不是他的回合
		bet("p2", 6),  // 低于 7
		bet("p2", 13), // 高于 12
		{Kind: IntentPlayCard, PlayerID: "p2", Card: &table.RedZero},
		bet("nobody", 8),
	}
	for _, in := range cases {
		_, err := m.Apply(in)
		assert.ErrorIs(t, err, ErrIllegalAction, in.String())
	}

	// 被拒绝的意图没有任何副作用
	after, err := m.t.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, string(snap), string(after))
	assert.Equal(t, turn, m.t.Turn)

	mustApply(t, m, bet("p2", 8))
	_, err = m.Apply(bet("p3", 8))
	assert.ErrorIs(t, err, ErrIllegalAction, "non-dealer must strictly raise")
	_, err = m.Apply(Intent{Kind: IntentPlaceBet, PlayerID: "p3", Amount: 8, WithoutTrump: true})
	assert.ErrorIs(t, err, ErrIllegalAction, "without trump does not break ties by default")
	mustApply(t, m, skip("p3"))
	mustApply(t, m, skip("p4"))

	// 庄家可以跳过，也可以平分
	legal := m.LegalActions(0)
	assert.Equal(t, table.SkipAction(), legal[0])
	assert.Contains(t, legal, table.BetAction(8, false))
	assert.NotContains(t, legal, table.BetAction(7, false))
}

func TestDealerMustBetWhenAllSkip(t *testing.T) {
	m := started(t, table.DefaultRules())
	mustApply(t, m, skip("p2"))
	mustApply(t, m, skip("p3"))
	mustApply(t, m, skip("p4"))

	_, err := m.Apply(skip("p1"))
	assert.ErrorIs(t, err, ErrIllegalAction)
	for _, a := range m.LegalActions(0) {
		assert.Equal(t, table.ActionBet, a.Kind)
	}
}

// ✅ 允许庄家跳过时，四人都跳过就重新发牌，庄家不变
func TestAllSkipRedeals(t *testing.T) {
	cfg := table.DefaultRules()
	cfg.DealerMaySkip = true
	m := started(t, cfg)
	first := slices.Clone(m.t.Players[0].Hand)

	mustApply(t, m, skip("p2"))
	mustApply(t, m, skip("p3"))
	mustApply(t, m, skip("p4"))
	evs := mustApply(t, m, skip("p1"))

	assert.Equal(t, EventBetSkipped, evs[0].Kind)
	assert.Equal(t, EventRedeal, evs[1].Kind)
	assert.Equal(t, table.PhaseBetting, m.t.Phase)
	assert.Equal(t, 0, m.t.Dealer)
	assert.Equal(t, 1, m.t.RoundNumber)
	assert.Empty(t, m.t.Round.Bets)
	assert.Equal(t, 1, m.t.Current)
	assert.Len(t, m.t.Players[0].Hand, table.HandSize)
	assert.NotEqual(t, first, m.t.Players[0].Hand)
}

func TestWithoutTrumpTieBreakOption(t *testing.T) {
	cfg := table.DefaultRules()
	cfg.WithoutTrumpBreaksTies = true
	m := started(t, cfg)
	mustApply(t, m, bet("p2", 8))
	mustApply(t, m, Intent{Kind: IntentPlaceBet, PlayerID: "p3", Amount: 8, WithoutTrump: true})
	mustApply(t, m, skip("p4"))
	mustApply(t, m, skip("p1"))
	assert.Equal(t, "p3", m.t.Round.WinningBet.PlayerID)
	assert.True(t, m.t.Round.WinningBet.WithoutTrump)
}

// ---------------------------------------------------------
// 出牌 / 计分
// ---------------------------------------------------------

// ✅ 红 0 所在的一墩值 6 分；整局打完后计分并换庄
func TestRedZeroTrickAndRoundScoring(t *testing.T) {
	m := started(t, table.DefaultRules())
	rig(m, [table.Seats][]table.Card{
		suit(table.Red, ascending...),
		suit(table.Green, ascending...),
		suit(table.Brown, ascending...),
		suit(table.Blue, ascending...),
	})

	mustApply(t, m, bet("p2", 7))
	mustApply(t, m, skip("p3"))
	mustApply(t, m, skip("p4"))
	mustApply(t, m, skip("p1"))
	require.Equal(t, 1, m.t.Current)

	// 第一墩
	evs := mustApply(t, m, play("p2", table.Card{Color: table.Green, Value: 7}))
	require.NotNil(t, m.t.Round.Trump)
	assert.Equal(t, table.Green, *m.t.Round.Trump)
	assert.Equal(t, table.Green, *evs[0].Payload.(CardPlayedPayload).Trump)

	_, err := m.Apply(play("p2", table.Card{Color: table.Green, Value: 6}))
	assert.ErrorIs(t, err, ErrIllegalAction, "not p2's turn anymore")

	mustApply(t, m, play("p3", table.Card{Color: table.Brown, Value: 3}))
	mustApply(t, m, play("p4", table.Card{Color: table.Blue, Value: 0}))
	evs = mustApply(t, m, play("p1", table.RedZero))

	tr, ok := find(evs, EventTrickResolved)
	require.True(t, ok)
	res := tr.Payload.(TrickResolvedPayload)
	assert.Equal(t, "p2", res.WinnerID)
	assert.Equal(t, 6, res.PointsAwarded)
	assert.Equal(t, table.Team2, res.Team)
	assert.Equal(t, 6, m.t.Round.TeamPoints[table.Team2])
	assert.Equal(t, 0, m.t.Round.TeamPoints[table.Team1])
	assert.Equal(t, 6, m.t.Players[1].PointsWon)
	assert.Equal(t, 1, m.t.Current, "winner leads the next trick")

	// 剩下 7 墩：p2 一直出主牌，第 4 墩有棕 0
	var rest [table.Seats][]table.Card
	rest[0] = suit(table.Red, ascending[1:]...)
	rest[1] = suit(table.Green, descending[1:]...)
	rest[2] = suit(table.Brown, brownOrder[1:]...)
	rest[3] = suit(table.Blue, ascending[1:]...)
	all := make([]Event, 0)
	for i := 0; i < 7; i++ {
		for k := 0; k < table.Seats; k++ {
			seat := (1 + k) % table.Seats
			all = append(all, mustApply(t, m, play(playerIDs[seat], rest[seat][i]))...)
		}
	}

	scored, ok := find(all, EventRoundScored)
	require.True(t, ok)
	sc := scored.Payload.(RoundScoredPayload)
	assert.Equal(t, 10, sc.Result.OffensivePoints, "6 - 2 + 6 ordinary tricks")
	assert.True(t, sc.Result.Made)
	assert.Equal(t, table.TeamScores{Team1: 0, Team2: 7}, sc.TeamScores)
	assert.Len(t, sc.Tricks, 8)
	assert.Equal(t, suit(table.Red, ascending...), sc.InitialHands[0])

	// 马上开始下一局，庄家顺时针轮换
	assert.Equal(t, table.PhaseBetting, m.t.Phase)
	assert.Equal(t, 2, m.t.RoundNumber)
	assert.Equal(t, 1, m.t.Dealer)
	assert.Equal(t, 2, m.t.Current)
	assert.Equal(t, table.TeamScores{Team1: 0, Team2: 7}, m.t.Scores)
	for _, p := range m.t.Players {
		assert.Len(t, p.Hand, table.HandSize)
	}
}

func TestMustFollowLedColor(t *testing.T) {
	m := started(t, table.DefaultRules())
	hands := [table.Seats][]table.Card{
		append(suit(table.Red, 0, 1, 2, 3), suit(table.Green, 0, 1, 2, 3)...),
		append(suit(table.Red, 4, 5, 6, 7), suit(table.Green, 4, 5, 6, 7)...),
		append(suit(table.Brown, 0, 1, 2, 3), suit(table.Blue, 0, 1, 2, 3)...),
		append(suit(table.Brown, 4, 5, 6, 7), suit(table.Blue, 4, 5, 6, 7)...),
	}
	rig(m, hands)
	mustApply(t, m, bet("p2", 7))
	mustApply(t, m, skip("p3"))
	mustApply(t, m, skip("p4"))
	mustApply(t, m, skip("p1"))

	mustApply(t, m, play("p2", table.Card{Color: table.Red, Value: 4}))
	// p3 没有红色，可以出任意牌
	assert.Len(t, m.LegalActions(2), 8)
	mustApply(t, m, play("p3", table.Card{Color: table.Blue, Value: 0}))
	mustApply(t, m, play("p4", table.Card{Color: table.Brown, Value: 7}))

	// p1 有红色必须跟
	_, err := m.Apply(play("p1", table.Card{Color: table.Green, Value: 0}))
	assert.ErrorIs(t, err, ErrIllegalAction)
	assert.Len(t, m.LegalActions(0), 4)
	evs := mustApply(t, m, play("p1", table.Card{Color: table.Red, Value: 3}))
	tr, _ := find(evs, EventTrickResolved)
	assert.Equal(t, "p2", tr.Payload.(TrickResolvedPayload).WinnerID)
}

func TestWithoutTrumpRoundDoublesStake(t *testing.T) {
	m := started(t, table.DefaultRules())
	rig(m, [table.Seats][]table.Card{
		suit(table.Red, ascending...),
		suit(table.Green, ascending...),
		suit(table.Brown, ascending...),
		suit(table.Blue, ascending...),
	})
	mustApply(t, m, Intent{Kind: IntentPlaceBet, PlayerID: "p2", Amount: 7, WithoutTrump: true})
	mustApply(t, m, skip("p3"))
	mustApply(t, m, skip("p4"))
	mustApply(t, m, skip("p1"))

	evs := playRound(t, m, 1, [table.Seats][]table.Card{
		suit(table.Red, ascending...),
		suit(table.Green, descending...),
		suit(table.Brown, brownOrder...),
		suit(table.Blue, ascending...),
	})
	scored, ok := find(evs, EventRoundScored)
	require.True(t, ok)
	res := scored.Payload.(RoundScoredPayload).Result
	assert.Equal(t, 14, res.OffensiveDelta)
	assert.Equal(t, 2, res.Bet.Multiplier())
	assert.Equal(t, table.TeamScores{Team2: 14}, m.t.Scores)
}

// ✅ 38:36，一队本局 +9 到 47，直接结束对局
func TestMatchEndsAtThreshold(t *testing.T) {
	m := started(t, table.DefaultRules())
	m.t.Scores = table.TeamScores{Team1: 38, Team2: 36}
	rig(m, [table.Seats][]table.Card{
		suit(table.Green, ascending...),
		suit(table.Red, ascending...),
		suit(table.Brown, ascending...),
		suit(table.Blue, ascending...),
	})
	mustApply(t, m, skip("p2"))
	mustApply(t, m, skip("p3"))
	mustApply(t, m, skip("p4"))
	mustApply(t, m, bet("p1", 9))

	evs := playRound(t, m, 0, [table.Seats][]table.Card{
		suit(table.Green, descending...),
		suit(table.Red, ascending...),
		suit(table.Brown, brownOrder...),
		suit(table.Blue, ascending...),
	})

	assert.Equal(t, table.TeamScores{Team1: 47, Team2: 36}, m.t.Scores)
	over, ok := find(evs, EventGameOver)
	require.True(t, ok)
	assert.Equal(t, table.Team1, over.Payload.(GameOverPayload).WinningTeam)
	_, ok = find(evs, EventRematchStarted)
	assert.True(t, ok)
	_, ok = find(evs, EventRoundStarted)
	assert.False(t, ok, "no further rounds")

	assert.Equal(t, table.PhaseRematchVoting, m.t.Phase)
	assert.Equal(t, table.Team1, m.t.WinningTeam)
	assert.Equal(t, 1, m.t.RoundNumber)
	assert.Equal(t, -1, m.t.Current)
	assert.Nil(t, m.LegalActions(0))
}

func TestAcknowledgeRounds(t *testing.T) {
	cfg := table.DefaultRules()
	cfg.AckRounds = true
	m := started(t, cfg)
	rig(m, [table.Seats][]table.Card{
		suit(table.Red, ascending...),
		suit(table.Green, ascending...),
		suit(table.Brown, ascending...),
		suit(table.Blue, ascending...),
	})
	mustApply(t, m, bet("p2", 7))
	mustApply(t, m, skip("p3"))
	mustApply(t, m, skip("p4"))
	mustApply(t, m, skip("p1"))
	playRound(t, m, 1, [table.Seats][]table.Card{
		suit(table.Red, ascending...),
		suit(table.Green, descending...),
		suit(table.Brown, brownOrder...),
		suit(table.Blue, ascending...),
	})
	require.Equal(t, table.PhaseScoring, m.t.Phase)

	_, err := m.Apply(bet("p3", 7))
	assert.ErrorIs(t, err, ErrIllegalAction)

	mustApply(t, m, Intent{Kind: IntentAcknowledge, PlayerID: "p1"})
	evs, err := m.Apply(Intent{Kind: IntentAcknowledge, PlayerID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, evs, "duplicate acknowledgement")

	mustApply(t, m, Intent{Kind: IntentAcknowledge, PlayerID: "p2"})
	mustApply(t, m, Intent{Kind: IntentAcknowledge, PlayerID: "p3"})
	require.Equal(t, table.PhaseScoring, m.t.Phase)

	// 掉线的人不用确认
	evs = mustApply(t, m, Intent{Kind: IntentDisconnected, PlayerID: "p4"})
	_, ok := find(evs, EventRoundStarted)
	assert.True(t, ok)
	assert.Equal(t, table.PhaseBetting, m.t.Phase)
	assert.Equal(t, 2, m.t.RoundNumber)
}

func TestReviewTimeoutStartsNextRound(t *testing.T) {
	cfg := table.DefaultRules()
	cfg.AckRounds = true
	m := started(t, cfg)
	m.t.Phase = table.PhaseScoring
	m.t.Current = -1
	for _, p := range m.t.Players {
		p.Hand = nil
	}
	// 构造一个已打完的局：直接用整副牌做 8 墩
	deck := table.FullDeck()
	m.t.Round.Tricks = nil
	m.t.Round.TeamPoints = map[int]int{table.Team1: 0, table.Team2: 0}
	for i := 0; i < table.TricksPerRound; i++ {
		cards := make([]table.PlayedCard, table.Seats)
		for s := 0; s < table.Seats; s++ {
			cards[s] = table.PlayedCard{Card: deck[i*4+s], Seat: s, PlayerID: playerIDs[s]}
		}
		sum := table.TrickSummary{Cards: cards, WinnerSeat: 0, WinnerID: "p1", Team: table.Team1}
		sum.Points = rules.TrickValue(cards)
		m.t.Round.Tricks = append(m.t.Round.Tricks, sum)
		m.t.Round.TeamPoints[table.Team1] += sum.Points
	}
	require.NoError(t, CheckInvariants(m.t))

	evs, err := m.Apply(Intent{Kind: IntentReviewTimeout, Token: m.t.Turn - 1})
	require.NoError(t, err)
	assert.Empty(t, evs, "stale review timer")

	evs = mustApply(t, m, Intent{Kind: IntentReviewTimeout, Token: m.t.Turn})
	assert.Equal(t, EventRoundStarted, evs[0].Kind)
	assert.Equal(t, table.PhaseBetting, m.t.Phase)
}

// ---------------------------------------------------------
// 再来一局
// ---------------------------------------------------------

func TestRematchVotesAreIdempotent(t *testing.T) {
	m := newLobby(t, table.DefaultRules())
	mustApply(t, m, Intent{Kind: IntentLeave, PlayerID: "p4"})
	mustApply(t, m, Intent{Kind: IntentAddBot, PlayerID: "p1"})
	mustApply(t, m, Intent{Kind: IntentStartGame, PlayerID: "p1"})

	_, err := m.Apply(Intent{Kind: IntentVoteRematch, PlayerID: "p1"})
	assert.ErrorIs(t, err, ErrIllegalAction, "no vote before the game is over")

	_, err = m.Apply(Intent{Kind: IntentForceScores, Scores: &table.TeamScores{Team1: 41}})
	assert.ErrorIs(t, err, ErrIllegalAction, "only trusted callers may override scores")

	evs := mustApply(t, m, Intent{Kind: IntentForceScores, Trusted: true, Scores: &table.TeamScores{Team1: 41, Team2: 20}})
	assert.Equal(t, []EventKind{EventScoresOverridden, EventGameOver, EventRematchStarted, EventRematchVote}, kinds(evs))
	assert.Equal(t, []string{"bot-1"}, votes(m.t), "bots vote automatically")

	evs = mustApply(t, m, Intent{Kind: IntentVoteRematch, PlayerID: "p1"})
	assert.Equal(t, []EventKind{EventRematchVote}, kinds(evs))
	evs, err = m.Apply(Intent{Kind: IntentVoteRematch, PlayerID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.Len(t, m.t.RematchVotes, 2)

	mustApply(t, m, Intent{Kind: IntentVoteRematch, PlayerID: "p2"})
	assert.Equal(t, table.PhaseRematchVoting, m.t.Phase)
	evs = mustApply(t, m, Intent{Kind: IntentVoteRematch, PlayerID: "p3"})
	assert.Equal(t, []EventKind{EventRematchVote, EventRematchAccepted}, kinds(evs))
	acc := evs[1].Payload.(RematchAcceptedPayload)
	assert.Equal(t, []string{"p1", "p2", "p3", "bot-1"}, acc.Players)
	assert.Equal(t, table.PhaseTerminated, m.t.Phase)
}

func TestLeavingDuringRematchTerminates(t *testing.T) {
	m := started(t, table.DefaultRules())
	mustApply(t, m, Intent{Kind: IntentForcePhase, Trusted: true, Phase: table.PhaseGameOver})
	require.Equal(t, table.PhaseRematchVoting, m.t.Phase)

	evs := mustApply(t, m, Intent{Kind: IntentLeave, PlayerID: "p3"})
	assert.Equal(t, []EventKind{EventPlayerLeft, EventTerminated}, kinds(evs))
}

// ---------------------------------------------------------
// 掉线 / 超时 / 机器人
// ---------------------------------------------------------

func TestTurnTimeoutPerformsDefaultAction(t *testing.T) {
	m := started(t, table.DefaultRules())

	evs, err := m.Apply(Intent{Kind: IntentTurnTimeout, Token: m.t.Turn - 1})
	require.NoError(t, err)
	assert.Empty(t, evs, "stale timer is dropped")

	for _, id := range []string{"p2", "p3", "p4"} {
		evs = mustApply(t, m, Intent{Kind: IntentTurnTimeout, PlayerID: id, Token: m.t.Turn})
		assert.Equal(t, EventPlayerTimedOut, evs[0].Kind)
		assert.Equal(t, EventBetSkipped, evs[1].Kind)
	}
	// 庄家不能跳过：自动叫最小分
	evs = mustApply(t, m, Intent{Kind: IntentTurnTimeout, PlayerID: "p1", Token: m.t.Turn})
	to := evs[0].Payload.(TimedOutPayload)
	assert.Equal(t, table.BetAction(7, false), to.Action)
	assert.Equal(t, table.PhasePlaying, m.t.Phase)

	// 出牌阶段：出最小的合法牌
	low, _ := DefaultAction(m.t, 0)
	evs = mustApply(t, m, Intent{Kind: IntentTurnTimeout, PlayerID: "p1", Token: m.t.Turn})
	played := evs[1].Payload.(CardPlayedPayload)
	assert.Equal(t, *low.Card, played.Card)
	for _, c := range m.t.Players[0].Hand {
		assert.False(t, c.Less(played.Card))
	}
}

func TestDisconnectGraceAndReconnect(t *testing.T) {
	cfg := table.DefaultRules()
	cfg.ConvertToBotAfterGrace = true
	m := started(t, cfg)
	turn := m.t.Turn

	evs := mustApply(t, m, Intent{Kind: IntentDisconnected, PlayerID: "p2"})
	assert.Equal(t, EventDisconnected, evs[0].Kind)
	assert.Equal(t, table.Disconnected, m.t.Players[1].Conn)
	assert.Greater(t, m.t.Turn, turn, "current seat disconnecting restarts the turn")

	evs, err := m.Apply(Intent{Kind: IntentDisconnected, PlayerID: "p2"})
	require.NoError(t, err)
	assert.Empty(t, evs)

	// 其他人的回合不受影响
	mustApply(t, m, skip("p2"))
	assert.Equal(t, 2, m.t.Current)

	evs = mustApply(t, m, Intent{Kind: IntentReconnected, PlayerID: "p2"})
	assert.Equal(t, []EventKind{EventReconnected, EventStateResync}, kinds(evs))
	assert.Equal(t, []string{"p2"}, evs[1].To)
	view := evs[1].Payload.(table.View)
	assert.Len(t, view.Hand, table.HandSize)
	assert.Empty(t, view.Legal)

	// 旧的宽限期定时器失效
	evs, err = m.Apply(Intent{Kind: IntentGraceExpired, PlayerID: "p2", Token: 1})
	require.NoError(t, err)
	assert.Empty(t, evs)

	mustApply(t, m, Intent{Kind: IntentDisconnected, PlayerID: "p2"})
	evs, err = m.Apply(Intent{Kind: IntentGraceExpired, PlayerID: "p2", Token: 1})
	require.NoError(t, err)
	assert.Empty(t, evs, "epoch from the first disconnect")

	evs = mustApply(t, m, Intent{Kind: IntentGraceExpired, PlayerID: "p2", Token: 2})
	assert.Equal(t, []EventKind{EventSeatToBot}, kinds(evs))
	assert.True(t, m.t.Players[1].IsBot)
}

func TestGraceExpiryWithoutConversion(t *testing.T) {
	m := started(t, table.DefaultRules())
	mustApply(t, m, Intent{Kind: IntentDisconnected, PlayerID: "p3"})
	evs, err := m.Apply(Intent{Kind: IntentGraceExpired, PlayerID: "p3", Token: 1})
	require.NoError(t, err)
	assert.Empty(t, evs)
	assert.False(t, m.t.Players[2].IsBot)
}

func TestBotMoveFallsBackToDefault(t *testing.T) {
	m := started(t, table.DefaultRules())
	m.t.Players[1].IsBot = true

	evs, err := m.Apply(Intent{Kind: IntentBotMove, PlayerID: "p2", Token: m.t.Turn - 1})
	require.NoError(t, err)
	assert.Empty(t, evs)

	bad := table.BetAction(3, false)
	evs = mustApply(t, m, Intent{Kind: IntentBotMove, PlayerID: "p2", Token: m.t.Turn, Action: &bad})
	assert.Equal(t, EventBetSkipped, evs[0].Kind)

	// 人类的意图不能冒充机器人
	evs, err = m.Apply(Intent{Kind: IntentBotMove, PlayerID: "p3", Token: m.t.Turn})
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestLeaveMidGameHandsSeatToBot(t *testing.T) {
	m := started(t, table.DefaultRules())
	turn := m.t.Turn
	evs := mustApply(t, m, Intent{Kind: IntentLeave, PlayerID: "p2"})
	assert.Equal(t, []EventKind{EventPlayerLeft, EventSeatToBot}, kinds(evs))
	assert.True(t, m.t.Players[1].IsBot)
	assert.Greater(t, m.t.Turn, turn)
}

// ---------------------------------------------------------
// 快照 / 不变量 / 管理接口
// ---------------------------------------------------------

// ✅ 快照恢复后合法动作完全一致
func TestSnapshotRoundTripPreservesLegalActions(t *testing.T) {
	m := started(t, table.DefaultRules())
	mustApply(t, m, bet("p2", 8))
	mustApply(t, m, skip("p3"))

	data, err := m.t.Marshal()
	require.NoError(t, err)
	restored, err := table.Unmarshal(data)
	require.NoError(t, err)
	r := NewMachine(restored, dealer.NewDealer(7))
	require.NoError(t, CheckInvariants(restored))

	for seat := 0; seat < table.Seats; seat++ {
		assert.Equal(t, m.LegalActions(seat), r.LegalActions(seat), "seat %d", seat)
	}

	a := mustApply(t, m, bet("p4", 10))
	b := mustApply(t, r, bet("p4", 10))
	assert.Equal(t, kinds(a), kinds(b))
	assert.Equal(t, m.t.Turn, r.t.Turn)

	// 出牌阶段同样成立
	mustApply(t, m, skip("p1"))
	mustApply(t, r, skip("p1"))
	data, err = m.t.Marshal()
	require.NoError(t, err)
	again, err := table.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, LegalActions(m.t, 3), LegalActions(again, 3))
	assert.NotEmpty(t, LegalActions(again, 3))
}

func TestInvariantViolationLeavesStateUntouched(t *testing.T) {
	m := started(t, table.DefaultRules())
	m.t.Players[1].Hand[0] = m.t.Players[0].Hand[0]

	_, err := m.Apply(skip("p2"))
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.Empty(t, m.t.Round.Bets)
	assert.Equal(t, table.PhaseBetting, m.t.Phase)

	evs := m.Terminate("this game could not continue")
	assert.Equal(t, EventTerminated, evs[0].Kind)
	_, err = m.Apply(skip("p2"))
	assert.ErrorIs(t, err, ErrIllegalAction)
}

func TestCheckInvariants(t *testing.T) {
	m := started(t, table.DefaultRules())
	require.NoError(t, CheckInvariants(m.t))

	broken := m.t.Clone()
	broken.Current = 3
	assert.ErrorIs(t, CheckInvariants(broken), ErrInvariantViolation)

	broken = m.t.Clone()
	broken.Players[0].Hand = broken.Players[0].Hand[1:]
	assert.ErrorIs(t, CheckInvariants(broken), ErrInvariantViolation)

	broken = m.t.Clone()
	broken.Players[3].Team = table.Team1
	assert.ErrorIs(t, CheckInvariants(broken), ErrInvariantViolation)

	broken = m.t.Clone()
	broken.Scores.Team2 = 41
	assert.ErrorIs(t, CheckInvariants(broken), ErrInvariantViolation)

	broken = m.t.Clone()
	broken.Round.TeamPoints[table.Team1] = 3
	assert.ErrorIs(t, CheckInvariants(broken), ErrInvariantViolation)
}

func TestForcePhase(t *testing.T) {
	m := newLobby(t, table.DefaultRules())

	_, err := m.Apply(Intent{Kind: IntentForcePhase, PlayerID: "p1", Phase: table.PhaseBetting})
	assert.ErrorIs(t, err, ErrIllegalAction)

	evs := mustApply(t, m, Intent{Kind: IntentForcePhase, Trusted: true, Phase: table.PhaseBetting})
	assert.Equal(t, EventPhaseOverridden, evs[0].Kind)
	assert.Equal(t, table.PhaseBetting, m.t.Phase)

	_, err = m.Apply(Intent{Kind: IntentForcePhase, Trusted: true, Phase: table.PhasePlaying})
	assert.ErrorIs(t, err, ErrIllegalAction)

	evs = mustApply(t, m, Intent{Kind: IntentForcePhase, Trusted: true, Phase: table.PhaseTerminated})
	assert.Equal(t, []EventKind{EventPhaseOverridden, EventTerminated}, kinds(evs))
}

func TestResyncIsPrivate(t *testing.T) {
	m := started(t, table.DefaultRules())
	evs := mustApply(t, m, Intent{Kind: IntentResync, PlayerID: "p2"})
	require.Len(t, evs, 1)
	assert.Equal(t, []string{"p2"}, evs[0].To)
	v := evs[0].Payload.(table.View)
	assert.Equal(t, 1, v.Seat)
	assert.NotEmpty(t, v.Legal)
	require.NotNil(t, v.Seats[0])
	assert.False(t, v.Seats[0].IsBot)
	assert.Equal(t, "p1", v.Seats[0].ID)
}
