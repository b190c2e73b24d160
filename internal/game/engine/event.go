package engine

import (
	"Jaffre/internal/game/rules"
	"Jaffre/internal/game/table"
)

// EventKind 推送给客户端的事件名
type EventKind string

const (
	EventPlayerJoined     EventKind = "player_joined"
	EventPlayerLeft       EventKind = "player_left"
	EventTeamSelected     EventKind = "team_selected"
	EventPositionSwapped  EventKind = "position_swapped"
	EventGameStarted      EventKind = "game_started"
	EventRoundStarted     EventKind = "round_started"
	EventHandDealt        EventKind = "hand_dealt"
	EventRedeal           EventKind = "redeal"
	EventYourTurn         EventKind = "your_turn"
	EventBetPlaced        EventKind = "bet_placed"
	EventBetSkipped       EventKind = "bet_skipped"
	EventBettingConcluded EventKind = "betting_concluded"
	EventCardPlayed       EventKind = "card_played"
	EventTrickResolved    EventKind = "trick_resolved"
	EventRoundScored      EventKind = "round_scored"
	EventRoundAcked       EventKind = "round_acknowledged"
	EventGameOver         EventKind = "game_over"
	EventRematchStarted   EventKind = "rematch_voting_started"
	EventRematchVote      EventKind = "rematch_vote_recorded"
	EventRematchAccepted  EventKind = "rematch_accepted"
	EventPlayerTimedOut   EventKind = "player_timed_out"
	EventDisconnected     EventKind = "player_disconnected"
	EventReconnected      EventKind = "player_reconnected"
	EventSeatToBot        EventKind = "seat_converted_to_bot"
	EventStateResync      EventKind = "state_resync"
	EventIllegalAction    EventKind = "illegal_action"
	EventTerminated       EventKind = "session_terminated"
	EventScoresOverridden EventKind = "scores_overridden"
	EventPhaseOverridden  EventKind = "phase_overridden"
)

// Event To 为空时发给本局所有真人玩家，否则只发给 To
type Event struct {
	Kind    EventKind
	Payload any
	To      []string
}

func (e Event) Private() bool {
	return len(e.To) > 0
}

// ---------------------
//       PAYLOADS
// ---------------------

type SeatPayload struct {
	PlayerID string            `json:"playerId"`
	Seat     int               `json:"seat"`
	Player   *table.SeatView   `json:"player,omitempty"`
	Team     int               `json:"team,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Votes    []string          `json:"votes,omitempty"`
	Scores   *table.TeamScores `json:"scores,omitempty"`
}

type SwapPayload struct {
	PlayerID string `json:"playerId"`
	From     int    `json:"from"`
	To       int    `json:"to"`
	OtherID  string `json:"otherId,omitempty"`
}

type GameStartedPayload struct {
	Seats  [table.Seats]*table.SeatView `json:"seats"`
	Dealer int                          `json:"dealer"`
	Rules  table.Rules                  `json:"rules"`
}

type RoundPayload struct {
	Round  int              `json:"round"`
	Dealer int              `json:"dealer"`
	Scores table.TeamScores `json:"scores"`
}

type HandPayload struct {
	Round int          `json:"round"`
	Hand  []table.Card `json:"hand"`
}

type TurnPayload struct {
	Phase table.Phase    `json:"phase"`
	Seat  int            `json:"seat"`
	Turn  uint64         `json:"turn"`
	Legal []table.Action `json:"legal"`
}

type BetPayload struct {
	Bet  table.Bet `json:"bet"`
	Next int       `json:"next"`
}

type BettingConcludedPayload struct {
	WinningBet table.Bet    `json:"winningBet"`
	Trump      *table.Color `json:"trump"`
	Leader     int          `json:"leader"`
}

type CardPlayedPayload struct {
	PlayerID string       `json:"playerId"`
	Seat     int          `json:"seat"`
	Card     table.Card   `json:"card"`
	Trump    *table.Color `json:"trump,omitempty"`
	Next     int          `json:"next"`
}

type TrickResolvedPayload struct {
	WinnerID      string             `json:"winnerId"`
	WinnerSeat    int                `json:"winnerSeat"`
	Team          int                `json:"team"`
	PointsAwarded int                `json:"pointsAwarded"`
	Cards         []table.PlayedCard `json:"cards"`
	TeamPoints    map[int]int        `json:"teamPoints"`
}

type RoundScoredPayload struct {
	Round        int                       `json:"round"`
	Result       rules.RoundResult         `json:"result"`
	TeamScores   table.TeamScores          `json:"teamScores"`
	Tricks       []table.TrickSummary      `json:"tricks"`
	InitialHands [table.Seats][]table.Card `json:"initialHands"`
	NextDealer   int                       `json:"nextDealer"`
}

type GameOverPayload struct {
	WinningTeam int              `json:"winningTeam"`
	Scores      table.TeamScores `json:"scores"`
}

type RematchAcceptedPayload struct {
	GameID  string   `json:"gameId"`
	Players []string `json:"players"`
}

type TimedOutPayload struct {
	PlayerID string       `json:"playerId"`
	Seat     int          `json:"seat"`
	Action   table.Action `json:"action"`
}

type IllegalPayload struct {
	Reason string     `json:"reason"`
	Intent IntentKind `json:"intent"`
}

type PhasePayload struct {
	From table.Phase `json:"from"`
	To   table.Phase `json:"to"`
}
