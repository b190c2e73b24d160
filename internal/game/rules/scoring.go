package rules

import "Jaffre/internal/game/table"

// RoundResult 一局结束时的结算结果
type RoundResult struct {
	Bet             table.Bet        `json:"bet"`
	OffensiveTeam   int              `json:"offensiveTeam"`
	DefensiveTeam   int              `json:"defensiveTeam"`
	OffensivePoints int              `json:"offensivePoints"`
	DefensivePoints int              `json:"defensivePoints"`
	Made            bool             `json:"made"`
	OffensiveDelta  int              `json:"offensiveDelta"`
	DefensiveDelta  int              `json:"defensiveDelta"`
	Scores          table.TeamScores `json:"scores"`
	WinningTeam     int              `json:"winningTeam,omitempty"`
}

func OtherTeam(team int) int {
	if team == table.Team1 {
		return table.Team2
	}
	return table.Team1
}

// ScoreRound
// 进攻方拿到的墩分 >= 叫分则加 mult*叫分，否则扣 mult*叫分；防守方加自己拿到的墩分。
// 先判进攻方是否过线，再判防守方。
func ScoreRound(scores table.TeamScores, bet table.Bet, offensiveTeam int, teamPoints map[int]int, threshold int) RoundResult {
	def := OtherTeam(offensiveTeam)
	res := RoundResult{
		Bet:             bet,
		OffensiveTeam:   offensiveTeam,
		DefensiveTeam:   def,
		OffensivePoints: teamPoints[offensiveTeam],
		DefensivePoints: teamPoints[def],
	}
	stake := bet.Multiplier() * bet.Amount
	res.Made = res.OffensivePoints >= bet.Amount
	if res.Made {
		res.OffensiveDelta = stake
	} else {
		res.OffensiveDelta = -stake
	}
	res.DefensiveDelta = res.DefensivePoints

	scores.Add(offensiveTeam, res.OffensiveDelta)
	scores.Add(def, res.DefensiveDelta)
	res.Scores = scores
	res.WinningTeam = MatchWinner(scores, offensiveTeam, threshold)
	return res
}

// MatchWinner 有队伍达到 threshold 时返回该队，first 优先判断
func MatchWinner(scores table.TeamScores, first, threshold int) int {
	if scores.Of(first) >= threshold {
		return first
	}
	if other := OtherTeam(first); scores.Of(other) >= threshold {
		return other
	}
	return table.NoTeam
}
