package engine

import (
	"fmt"
	"slices"

	"github.com/google/uuid"

	"Jaffre/internal/game/dealer"
	"Jaffre/internal/game/rules"
	"Jaffre/internal/game/table"
)

// Machine 单个对局的权威状态机
// 每个意图都在 Table 的深拷贝上执行，检查不变量通过后才替换，失败时原状态不变
type Machine struct {
	t      *table.Table
	dealer *dealer.Dealer
	newID  func() string
}

func NewMachine(t *table.Table, d *dealer.Dealer) *Machine {
	return &Machine{
		t:      t,
		dealer: d,
		newID:  func() string { return "bot-" + uuid.NewString()[:8] },
	}
}

// Table 当前已提交的状态，只能在 Engine 协程里读
func (m *Machine) Table() *table.Table { return m.t }

func (m *Machine) Snapshot() *table.Table { return m.t.Clone() }

func (m *Machine) LegalActions(seat int) []table.Action {
	return LegalActions(m.t, seat)
}

// Apply 执行一个意图，返回要推送的事件
// 返回 (nil, nil) 表示被忽略（过期的定时器、重复投票等）
func (m *Machine) Apply(in Intent) ([]Event, error) {
	x := &txn{t: m.t.Clone(), dealer: m.dealer, newID: m.newID}
	before := m.t.Turn
	if err := x.apply(in); err != nil {
		return nil, err
	}
	if len(x.events) == 0 {
		return nil, nil
	}
	if err := CheckInvariants(x.t); err != nil {
		return nil, err
	}
	x.notifyTurn(before)
	m.t = x.t
	return x.events, nil
}

// Terminate 不变量被破坏后直接结束对局
func (m *Machine) Terminate(reason string) []Event {
	m.t.Phase = table.PhaseTerminated
	m.t.Current = -1
	m.t.Turn++
	return []Event{{Kind: EventTerminated, Payload: SeatPayload{Seat: -1, Reason: reason}}}
}

// LegalActions 只有轮到的座位才有合法动作
func LegalActions(t *table.Table, seat int) []table.Action {
	if seat < 0 || seat != t.Current || t.Players[seat] == nil || t.Round == nil {
		return nil
	}
	switch t.Phase {
	case table.PhaseBetting:
		return rules.LegalBetActions(seat, t.Dealer, t.Round.Bets, t.Rules)
	case table.PhasePlaying:
		var out []table.Action
		for _, c := range rules.LegalPlays(t.Players[seat].Hand, t.Trick) {
			out = append(out, table.PlayAction(c))
		}
		return out
	}
	return nil
}

// DefaultAction 超时托管：叫分阶段能跳过就跳过否则叫最小分，出牌阶段出最小的合法牌
func DefaultAction(t *table.Table, seat int) (table.Action, bool) {
	legal := LegalActions(t, seat)
	switch t.Phase {
	case table.PhaseBetting:
		return rules.DefaultBetAction(legal)
	case table.PhasePlaying:
		cards := make([]table.Card, 0, len(legal))
		for _, a := range legal {
			cards = append(cards, *a.Card)
		}
		if low, ok := rules.LowestCard(cards); ok {
			return table.PlayAction(low), true
		}
	}
	return table.Action{}, false
}

// ---------------------
//     TRANSACTION
// ---------------------

type txn struct {
	t      *table.Table
	dealer *dealer.Dealer
	newID  func() string
	events []Event
}

func illegal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalAction, fmt.Sprintf(format, args...))
}

func (x *txn) emit(kind EventKind, payload any) {
	x.events = append(x.events, Event{Kind: kind, Payload: payload})
}

func (x *txn) emitTo(id string, kind EventKind, payload any) {
	x.events = append(x.events, Event{Kind: kind, Payload: payload, To: []string{id}})
}

// setCurrent 换人或换阶段都会让 turn token 变化，旧的定时器和机器人结果随之作废
func (x *txn) setCurrent(seat int) {
	x.t.Current = seat
	x.t.Turn++
}

func (x *txn) notifyTurn(before uint64) {
	t := x.t
	if t.Turn == before || (t.Phase != table.PhaseBetting && t.Phase != table.PhasePlaying) {
		return
	}
	p := t.CurrentPlayer()
	if p == nil || p.IsBot {
		return
	}
	x.emitTo(p.ID, EventYourTurn, TurnPayload{
		Phase: t.Phase,
		Seat:  t.Current,
		Turn:  t.Turn,
		Legal: LegalActions(t, t.Current),
	})
}

func (x *txn) seated(id string) (*table.Player, int, error) {
	p, seat := x.t.PlayerByID(id)
	if p == nil {
		return nil, -1, illegal("player %s is not seated in this game", id)
	}
	return p, seat, nil
}

func (x *txn) apply(in Intent) error {
	t := x.t
	if t.Phase == table.PhaseTerminated {
		return illegal("game is over")
	}
	switch in.Kind {
	case IntentJoin:
		return x.join(in)
	case IntentLeave:
		return x.leave(in)
	case IntentAddBot:
		return x.addBot(in)
	case IntentSelectTeam:
		return x.selectTeam(in)
	case IntentSwapPosition:
		return x.swap(in)
	case IntentStartGame:
		return x.startGame(in)
	case IntentPlaceBet, IntentSkipBet, IntentPlayCard:
		p, seat, err := x.seated(in.PlayerID)
		if err != nil {
			return err
		}
		return x.act(p, seat, actionOf(in))
	case IntentAcknowledge:
		return x.acknowledge(in)
	case IntentVoteRematch:
		return x.vote(in)
	case IntentResync:
		_, seat, err := x.seated(in.PlayerID)
		if err != nil {
			return err
		}
		x.resync(in.PlayerID, seat)
		return nil
	case IntentDisconnected:
		return x.disconnected(in)
	case IntentReconnected:
		return x.reconnected(in)
	case IntentTurnTimeout:
		return x.turnTimeout(in)
	case IntentGraceExpired:
		return x.graceExpired(in)
	case IntentReviewTimeout:
		if t.Phase == table.PhaseScoring && in.Token == t.Turn {
			x.startRound()
		}
		return nil
	case IntentBotMove:
		return x.botMove(in)
	case IntentForceScores:
		return x.forceScores(in)
	case IntentForcePhase:
		return x.forcePhase(in)
	}
	return illegal("unknown intent %q", in.Kind)
}

func actionOf(in Intent) table.Action {
	switch in.Kind {
	case IntentPlaceBet:
		return table.BetAction(in.Amount, in.WithoutTrump)
	case IntentSkipBet:
		return table.SkipAction()
	case IntentPlayCard:
		if in.Card == nil {
			return table.Action{Kind: table.ActionPlay}
		}
		return table.PlayAction(*in.Card)
	}
	return table.Action{}
}

// ---------------------------------------------------------
// 选队阶段
// ---------------------------------------------------------

func (x *txn) lobby() error {
	if x.t.Phase != table.PhaseTeamSelection {
		return illegal("not allowed in phase %s", x.t.Phase)
	}
	return nil
}

func (x *txn) pickTeam(want, ignoreSeat int) (int, error) {
	count := func(team int) int {
		n := 0
		for i, p := range x.t.Players {
			if p != nil && i != ignoreSeat && p.Team == team {
				n++
			}
		}
		return n
	}
	switch want {
	case table.Team1, table.Team2:
		if count(want) >= 2 {
			return 0, illegal("team %d is full", want)
		}
		return want, nil
	case table.NoTeam:
		if count(table.Team1) <= count(table.Team2) {
			return table.Team1, nil
		}
		return table.Team2, nil
	}
	return 0, illegal("unknown team %d", want)
}

func (x *txn) freeSeat() int {
	for i, p := range x.t.Players {
		if p == nil {
			return i
		}
	}
	return -1
}

func (x *txn) seatPlayer(p *table.Player) error {
	seat := x.freeSeat()
	if seat < 0 {
		return illegal("table is full")
	}
	team, err := x.pickTeam(p.Team, -1)
	if err != nil {
		return err
	}
	p.Seat, p.Team = seat, team
	x.t.Players[seat] = p
	x.emit(EventPlayerJoined, SeatPayload{PlayerID: p.ID, Seat: seat, Team: team, Player: seatView(p)})
	return nil
}

func (x *txn) join(in Intent) error {
	if err := x.lobby(); err != nil {
		return err
	}
	if in.PlayerID == "" {
		return illegal("missing player id")
	}
	if p, _ := x.t.PlayerByID(in.PlayerID); p != nil {
		return illegal("already seated at seat %d", p.Seat)
	}
	name := in.Name
	if name == "" {
		name = in.PlayerID
	}
	return x.seatPlayer(&table.Player{ID: in.PlayerID, Name: name, Team: in.Team, Conn: table.Connected})
}

func (x *txn) addBot(in Intent) error {
	if err := x.lobby(); err != nil {
		return err
	}
	if !in.Trusted {
		if _, _, err := x.seated(in.PlayerID); err != nil {
			return err
		}
	}
	id := x.newID()
	name := in.Name
	if name == "" {
		name = "Bot"
		if len(id) > 4 {
			name += " " + id[len(id)-4:]
		}
	}
	return x.seatPlayer(&table.Player{ID: id, Name: name, Team: in.Team, IsBot: true, Conn: table.Connected})
}

func (x *txn) selectTeam(in Intent) error {
	if err := x.lobby(); err != nil {
		return err
	}
	p, seat, err := x.seated(in.PlayerID)
	if err != nil {
		return err
	}
	if in.Team == p.Team {
		return nil
	}
	if in.Team == table.NoTeam {
		return illegal("unknown team %d", in.Team)
	}
	team, err := x.pickTeam(in.Team, seat)
	if err != nil {
		return err
	}
	p.Team = team
	x.emit(EventTeamSelected, SeatPayload{PlayerID: p.ID, Seat: seat, Team: team})
	return nil
}

// swap 与目标座位上的人交换（空座位则直接移过去），队伍跟着人走
func (x *txn) swap(in Intent) error {
	if err := x.lobby(); err != nil {
		return err
	}
	p, from, err := x.seated(in.PlayerID)
	if err != nil {
		return err
	}
	to := in.Seat
	if to < 0 || to >= table.Seats {
		return illegal("seat %d out of range", to)
	}
	if to == from {
		return nil
	}
	other := x.t.Players[to]
	x.t.Players[to], x.t.Players[from] = p, other
	p.Seat = to
	payload := SwapPayload{PlayerID: p.ID, From: from, To: to}
	if other != nil {
		other.Seat = from
		payload.OtherID = other.ID
	}
	x.emit(EventPositionSwapped, payload)
	return nil
}

func (x *txn) startGame(in Intent) error {
	if err := x.lobby(); err != nil {
		return err
	}
	if !in.Trusted {
		if _, _, err := x.seated(in.PlayerID); err != nil {
			return err
		}
	}
	t := x.t
	if t.Occupied() != table.Seats {
		return illegal("need %d players, have %d", table.Seats, t.Occupied())
	}
	if t.TeamCount(table.Team1) != 2 || t.TeamCount(table.Team2) != 2 {
		return illegal("each team needs exactly 2 players")
	}
	t.Scores = table.TeamScores{}
	t.RoundNumber = 0
	x.emit(EventGameStarted, GameStartedPayload{Seats: seatViews(t), Dealer: t.Dealer, Rules: t.Rules})
	x.startRound()
	return nil
}

func (x *txn) leave(in Intent) error {
	t := x.t
	p, seat, err := x.seated(in.PlayerID)
	if err != nil {
		return err
	}
	switch t.Phase {
	case table.PhaseTeamSelection:
		x.removeSeat(p, seat, "left")
	case table.PhaseGameOver, table.PhaseRematchVoting:
		x.emit(EventPlayerLeft, SeatPayload{PlayerID: p.ID, Seat: seat})
		x.terminate("a player left")
		return nil
	default:
		// 对局中离开：座位交给机器人
		x.emit(EventPlayerLeft, SeatPayload{PlayerID: p.ID, Seat: seat})
		x.toBot(p, seat)
	}
	if len(t.HumanIDs()) == 0 {
		x.terminate("all players left")
		return nil
	}
	if t.Phase == table.PhaseScoring && t.Rules.AckRounds && len(x.pendingAcks()) == 0 {
		x.startRound()
	}
	return nil
}

func (x *txn) removeSeat(p *table.Player, seat int, reason string) {
	x.t.Players[seat] = nil
	x.emit(EventPlayerLeft, SeatPayload{PlayerID: p.ID, Seat: seat, Reason: reason})
}

func (x *txn) toBot(p *table.Player, seat int) {
	if p.IsBot {
		return
	}
	p.IsBot = true
	x.emit(EventSeatToBot, SeatPayload{PlayerID: p.ID, Seat: seat})
	if seat == x.t.Current {
		x.t.Turn++
	}
}

func (x *txn) terminate(reason string) {
	x.t.Phase = table.PhaseTerminated
	x.setCurrent(-1)
	x.emit(EventTerminated, SeatPayload{Seat: -1, Reason: reason})
}

// ---------------------------------------------------------
// 发牌 / 叫分 / 出牌
// ---------------------------------------------------------

func (x *txn) startRound() {
	x.t.RoundNumber++
	x.emit(EventRoundStarted, RoundPayload{Round: x.t.RoundNumber, Dealer: x.t.Dealer, Scores: x.t.Scores})
	x.deal()
}

func (x *txn) deal() {
	t := x.t
	hands := x.dealer.DealHands()
	r := &table.Round{
		Number:     t.RoundNumber,
		Dealer:     t.Dealer,
		TeamPoints: map[int]int{table.Team1: 0, table.Team2: 0},
	}
	for seat, p := range t.Players {
		r.InitialHands[seat] = slices.Clone(hands[seat])
		p.Hand = slices.Clone(hands[seat])
		p.TricksWon, p.PointsWon = 0, 0
		if !p.IsBot {
			x.emitTo(p.ID, EventHandDealt, HandPayload{Round: t.RoundNumber, Hand: sortedHand(p.Hand)})
		}
	}
	t.Round = r
	t.Trick = nil
	t.Phase = table.PhaseBetting
	x.setCurrent(table.NextSeat(t.Dealer))
}

// act 先校验再修改，校验失败时 t 保持不变
func (x *txn) act(p *table.Player, seat int, a table.Action) error {
	t := x.t
	if t.Current != seat {
		return illegal("not your turn")
	}
	switch t.Phase {
	case table.PhaseBetting:
		return x.bet(p, seat, a)
	case table.PhasePlaying:
		return x.play(p, seat, a)
	}
	return illegal("not allowed in phase %s", t.Phase)
}

func (x *txn) bet(p *table.Player, seat int, a table.Action) error {
	t := x.t
	r := t.Round
	b := table.Bet{PlayerID: p.ID, Seat: seat}
	switch a.Kind {
	case table.ActionSkip:
		if err := rules.CheckSkip(seat, t.Dealer, r.Bets, t.Rules); err != nil {
			return illegal("%v", err)
		}
		b.Skipped = true
	case table.ActionBet:
		if err := rules.CheckBet(seat, t.Dealer, r.Bets, a.Amount, a.WithoutTrump, t.Rules); err != nil {
			return illegal("%v", err)
		}
		b.Amount, b.WithoutTrump = a.Amount, a.WithoutTrump
	default:
		return illegal("cannot %s while betting", a.Kind)
	}
	r.Bets = append(r.Bets, b)
	next := rules.NextBettor(t.Dealer, r.Bets)
	if b.Skipped {
		x.emit(EventBetSkipped, BetPayload{Bet: b, Next: next})
	} else {
		x.emit(EventBetPlaced, BetPayload{Bet: b, Next: next})
	}
	if next >= 0 {
		x.setCurrent(next)
		return nil
	}

	win := rules.WinningBet(r.Bets)
	if win == nil {
		// 四人都跳过：同一庄家重新发牌
		x.emit(EventRedeal, RoundPayload{Round: t.RoundNumber, Dealer: t.Dealer, Scores: t.Scores})
		x.deal()
		return nil
	}
	r.WinningBet = win
	t.Phase = table.PhasePlaying
	t.Trick = &table.Trick{Leader: win.Seat}
	x.setCurrent(win.Seat)
	x.emit(EventBettingConcluded, BettingConcludedPayload{WinningBet: *win, Trump: nil, Leader: win.Seat})
	return nil
}

func (x *txn) play(p *table.Player, seat int, a table.Action) error {
	t := x.t
	r := t.Round
	if a.Kind != table.ActionPlay || a.Card == nil {
		return illegal("cannot %s while playing", a.Kind)
	}
	c := *a.Card
	if err := rules.CheckPlay(p.Hand, t.Trick, c); err != nil {
		return illegal("%v", err)
	}

	p.RemoveCard(c)
	// 本局第一张牌决定主牌花色（无主局除外）
	if len(r.Tricks) == 0 && len(t.Trick.Cards) == 0 && r.Trump == nil && !r.WinningBet.WithoutTrump {
		trump := c.Color
		r.Trump = &trump
	}
	t.Trick.Cards = append(t.Trick.Cards, table.PlayedCard{Card: c, Seat: seat, PlayerID: p.ID})

	payload := CardPlayedPayload{PlayerID: p.ID, Seat: seat, Card: c, Trump: r.Trump, Next: -1}
	if len(t.Trick.Cards) < table.Seats {
		payload.Next = table.NextSeat(seat)
		x.emit(EventCardPlayed, payload)
		x.setCurrent(payload.Next)
		return nil
	}
	x.emit(EventCardPlayed, payload)
	x.resolveTrick()
	return nil
}

func (x *txn) resolveTrick() {
	t := x.t
	r := t.Round
	sum := rules.ResolveTrick(t.Trick, r.Trump, func(seat int) int { return t.Players[seat].Team })
	r.Tricks = append(r.Tricks, sum)
	r.TeamPoints[sum.Team] += sum.Points
	w := t.Players[sum.WinnerSeat]
	w.TricksWon++
	w.PointsWon += sum.Points
	x.emit(EventTrickResolved, TrickResolvedPayload{
		WinnerID:      sum.WinnerID,
		WinnerSeat:    sum.WinnerSeat,
		Team:          sum.Team,
		PointsAwarded: sum.Points,
		Cards:         sum.Cards,
		TeamPoints:    map[int]int{table.Team1: r.TeamPoints[table.Team1], table.Team2: r.TeamPoints[table.Team2]},
	})

	if len(r.Tricks) < table.TricksPerRound {
		t.Trick = &table.Trick{Leader: sum.WinnerSeat}
		x.setCurrent(sum.WinnerSeat)
		return
	}
	t.Trick = nil
	x.scoreRound()
}

// ---------------------------------------------------------
// 计分 / 结束 / 再来一局
// ---------------------------------------------------------

func (x *txn) scoreRound() {
	t := x.t
	r := t.Round
	offense := t.Players[r.WinningBet.Seat].Team
	res := rules.ScoreRound(t.Scores, *r.WinningBet, offense, r.TeamPoints, t.Rules.WinningScore)
	t.Scores = res.Scores
	t.Phase = table.PhaseScoring
	x.setCurrent(-1)
	if res.WinningTeam == table.NoTeam {
		t.Dealer = table.NextSeat(t.Dealer)
	}
	x.emit(EventRoundScored, RoundScoredPayload{
		Round:        r.Number,
		Result:       res,
		TeamScores:   t.Scores,
		Tricks:       r.Tricks,
		InitialHands: r.InitialHands,
		NextDealer:   t.Dealer,
	})

	if res.WinningTeam != table.NoTeam {
		x.gameOver(res.WinningTeam)
		return
	}
	if !t.Rules.AckRounds || len(x.pendingAcks()) == 0 {
		x.startRound()
		return
	}
	r.Acks = map[string]bool{}
}

// pendingAcks 在线的真人还没确认本局结果
func (x *txn) pendingAcks() []string {
	var out []string
	for _, p := range x.t.Players {
		if p == nil || p.IsBot || !p.Active() {
			continue
		}
		if x.t.Round == nil || !x.t.Round.Acks[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out
}

func (x *txn) acknowledge(in Intent) error {
	t := x.t
	if t.Phase != table.PhaseScoring {
		return illegal("not allowed in phase %s", t.Phase)
	}
	p, seat, err := x.seated(in.PlayerID)
	if err != nil {
		return err
	}
	if t.Round.Acks == nil {
		t.Round.Acks = map[string]bool{}
	}
	if t.Round.Acks[p.ID] {
		return nil
	}
	t.Round.Acks[p.ID] = true
	x.emit(EventRoundAcked, SeatPayload{PlayerID: p.ID, Seat: seat})
	if len(x.pendingAcks()) == 0 {
		x.startRound()
	}
	return nil
}

func (x *txn) gameOver(winner int) {
	t := x.t
	t.WinningTeam = winner
	t.Phase = table.PhaseGameOver
	x.emit(EventGameOver, GameOverPayload{WinningTeam: winner, Scores: t.Scores})

	// GameOver 自动进入再来一局投票，机器人直接同意
	t.Phase = table.PhaseRematchVoting
	t.RematchVotes = map[string]bool{}
	x.setCurrent(-1)
	x.emit(EventRematchStarted, SeatPayload{Seat: -1})
	for seat, p := range t.Players {
		if p != nil && p.IsBot {
			x.recordVote(p, seat)
		}
	}
	x.checkRematch()
}

func (x *txn) vote(in Intent) error {
	t := x.t
	if t.Phase != table.PhaseRematchVoting {
		return illegal("not allowed in phase %s", t.Phase)
	}
	p, seat, err := x.seated(in.PlayerID)
	if err != nil {
		return err
	}
	if t.RematchVotes[p.ID] {
		return nil
	}
	x.recordVote(p, seat)
	x.checkRematch()
	return nil
}

func (x *txn) recordVote(p *table.Player, seat int) {
	if x.t.RematchVotes == nil {
		x.t.RematchVotes = map[string]bool{}
	}
	x.t.RematchVotes[p.ID] = true
	x.emit(EventRematchVote, SeatPayload{PlayerID: p.ID, Seat: seat, Votes: votes(x.t)})
}

func (x *txn) checkRematch() {
	t := x.t
	for _, p := range t.Players {
		if p == nil || !t.RematchVotes[p.ID] {
			return
		}
	}
	x.emit(EventRematchAccepted, RematchAcceptedPayload{GameID: t.ID, Players: t.PlayerIDs()})
	// 旧对局到此结束，新对局由 manager 创建
	t.Phase = table.PhaseTerminated
	x.setCurrent(-1)
}

// ---------------------------------------------------------
// 连接 / 定时器 / 机器人
// ---------------------------------------------------------

func (x *txn) disconnected(in Intent) error {
	p, seat, err := x.seated(in.PlayerID)
	if err != nil {
		return err
	}
	if p.Conn == table.Disconnected {
		return nil
	}
	p.Conn = table.Disconnected
	p.Epoch++
	x.emit(EventDisconnected, SeatPayload{PlayerID: p.ID, Seat: seat})
	if seat == x.t.Current {
		// 轮到掉线玩家：换成掉线的超时时长
		x.t.Turn++
	}
	if x.t.Phase == table.PhaseScoring && x.t.Rules.AckRounds && len(x.pendingAcks()) == 0 {
		x.startRound()
	}
	return nil
}

func (x *txn) reconnected(in Intent) error {
	p, seat, err := x.seated(in.PlayerID)
	if err != nil {
		return err
	}
	if p.Conn != table.Connected {
		p.Conn = table.Connected
		x.emit(EventReconnected, SeatPayload{PlayerID: p.ID, Seat: seat})
		if seat == x.t.Current {
			x.t.Turn++
		}
	}
	x.resync(p.ID, seat)
	return nil
}

func (x *txn) resync(id string, seat int) {
	v := x.t.ViewFor(seat)
	v.Legal = LegalActions(x.t, seat)
	x.emitTo(id, EventStateResync, v)
}

func (x *txn) turnTimeout(in Intent) error {
	t := x.t
	if in.Token != t.Turn {
		return nil
	}
	p := t.CurrentPlayer()
	if p == nil {
		return nil
	}
	a, ok := DefaultAction(t, t.Current)
	if !ok {
		return nil
	}
	seat := t.Current
	x.emit(EventPlayerTimedOut, TimedOutPayload{PlayerID: p.ID, Seat: seat, Action: a})
	return x.act(p, seat, a)
}

func (x *txn) graceExpired(in Intent) error {
	t := x.t
	p, seat := t.PlayerByID(in.PlayerID)
	if p == nil || p.IsBot || p.Conn == table.Connected || p.Epoch != in.Token {
		return nil
	}
	switch t.Phase {
	case table.PhaseTeamSelection:
		x.removeSeat(p, seat, "timed out")
	case table.PhaseRematchVoting:
		x.terminate("a player did not come back")
		return nil
	default:
		if !t.Rules.ConvertToBotAfterGrace {
			return nil
		}
		x.toBot(p, seat)
	}
	if len(t.HumanIDs()) == 0 {
		x.terminate("all players left")
	}
	return nil
}

// botMove 机器人给出的动作走同一套校验；非法时退回默认动作
func (x *txn) botMove(in Intent) error {
	t := x.t
	p := t.CurrentPlayer()
	if in.Token != t.Turn || p == nil || !p.IsBot || p.ID != in.PlayerID {
		return nil
	}
	seat := t.Current
	if in.Action != nil {
		if err := x.act(p, seat, *in.Action); err == nil {
			return nil
		}
	}
	a, ok := DefaultAction(t, seat)
	if !ok {
		return nil
	}
	return x.act(p, seat, a)
}

// ---------------------------------------------------------
// 管理接口
// ---------------------------------------------------------

func (x *txn) forceScores(in Intent) error {
	t := x.t
	if !in.Trusted {
		return illegal("not allowed")
	}
	if in.Scores == nil {
		return illegal("missing scores")
	}
	switch t.Phase {
	case table.PhaseBetting, table.PhasePlaying, table.PhaseScoring:
	default:
		return illegal("no match in progress")
	}
	t.Scores = *in.Scores
	x.emit(EventScoresOverridden, SeatPayload{Seat: -1, Scores: &t.Scores})
	if w := rules.MatchWinner(t.Scores, table.Team1, t.Rules.WinningScore); w != table.NoTeam {
		t.Trick = nil
		x.gameOver(w)
	}
	return nil
}

func (x *txn) forcePhase(in Intent) error {
	t := x.t
	if !in.Trusted {
		return illegal("not allowed")
	}
	from := t.Phase
	switch in.Phase {
	case table.PhaseBetting:
		if t.Occupied() != table.Seats || t.TeamCount(table.Team1) != 2 {
			return illegal("need 4 players in two teams")
		}
		if from == table.PhaseRematchVoting {
			return illegal("match already finished")
		}
		x.emit(EventPhaseOverridden, PhasePayload{From: from, To: in.Phase})
		x.startRound()
	case table.PhaseGameOver:
		if from != table.PhaseBetting && from != table.PhasePlaying && from != table.PhaseScoring {
			return illegal("no match in progress")
		}
		winner := table.NoTeam
		switch {
		case t.Scores.Team1 > t.Scores.Team2:
			winner = table.Team1
		case t.Scores.Team2 > t.Scores.Team1:
			winner = table.Team2
		}
		x.emit(EventPhaseOverridden, PhasePayload{From: from, To: in.Phase})
		t.Trick = nil
		x.gameOver(winner)
	case table.PhaseTerminated:
		x.emit(EventPhaseOverridden, PhasePayload{From: from, To: in.Phase})
		x.terminate("stopped by administrator")
	default:
		return illegal("cannot force phase %q", in.Phase)
	}
	return nil
}

// ---------------------
//       HELPERS
// ---------------------

func seatView(p *table.Player) *table.SeatView {
	return &table.SeatView{
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
}

func seatViews(t *table.Table) [table.Seats]*table.SeatView {
	var out [table.Seats]*table.SeatView
	for i, p := range t.Players {
		if p != nil {
			out[i] = seatView(p)
		}
	}
	return out
}

func sortedHand(h []table.Card) []table.Card {
	out := slices.Clone(h)
	table.SortHand(out)
	return out
}

func votes(t *table.Table) []string {
	var out []string
	for id, ok := range t.RematchVotes {
		if ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
