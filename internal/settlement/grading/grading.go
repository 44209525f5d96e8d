package grading

import (
	"errors"
	"fmt"
	"strings"

	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// ErrUnresolvedTeam indica que o time da seleção não é nem mandante nem visitante
var ErrUnresolvedTeam = errors.New("unresolved team reference")

// TiePolicy define o resultado de um spread com placar ajustado exatamente empatado
type TiePolicy string

const (
	TieLost TiePolicy = "lost"
	TiePush TiePolicy = "push"
)

// ParseTiePolicy aceita "lost" ou "push"; vazio => lost
func ParseTiePolicy(s string) (TiePolicy, error) {
	switch TiePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", TieLost:
		return TieLost, nil
	case TiePush:
		return TiePush, nil
	}
	return "", fmt.Errorf("unknown spread tie policy %q", s)
}

// Engine aplica as regras de liquidação; o zero value usa TieLost
type Engine struct {
	SpreadTie TiePolicy
}

// Grade com a política padrão (empate de spread => lost)
func Grade(c wager.Condition, homeTeam, awayTeam string, homeScore, awayScore int) (wager.Result, error) {
	return Engine{}.Grade(c, homeTeam, awayTeam, homeScore, awayScore)
}

// Grade decide WON/LOST/PUSH para a condição dado o placar final
func (e Engine) Grade(c wager.Condition, homeTeam, awayTeam string, homeScore, awayScore int) (wager.Result, error) {
	switch c.Kind {
	case wager.KindMoneyline:
		return moneyline(c, homeTeam, awayTeam, homeScore, awayScore), nil
	case wager.KindSpread:
		return e.spread(c, homeTeam, awayTeam, homeScore, awayScore)
	case wager.KindTotal:
		return total(c, homeScore, awayScore)
	}
	return "", fmt.Errorf("cannot grade bet kind %q", c.Kind)
}

func moneyline(c wager.Condition, homeTeam, awayTeam string, homeScore, awayScore int) wager.Result {
	var winner string
	switch {
	case homeScore > awayScore:
		winner = homeTeam
	case awayScore > homeScore:
		winner = awayTeam
	default:
		return wager.ResultPush
	}
	if strings.EqualFold(c.Team, winner) {
		return wager.ResultWon
	}
	return wager.ResultLost
}

func (e Engine) spread(c wager.Condition, homeTeam, awayTeam string, homeScore, awayScore int) (wager.Result, error) {
	var own, opp int
	switch {
	case strings.EqualFold(c.Team, homeTeam):
		own, opp = homeScore, awayScore
	case strings.EqualFold(c.Team, awayTeam):
		own, opp = awayScore, homeScore
	default:
		return "", fmt.Errorf("%w: %q is neither %q nor %q", ErrUnresolvedTeam, c.Team, homeTeam, awayTeam)
	}

	adjusted := float64(own) + c.Line
	switch {
	case adjusted > float64(opp):
		return wager.ResultWon, nil
	case adjusted == float64(opp) && e.SpreadTie == TiePush:
		return wager.ResultPush, nil
	}
	return wager.ResultLost, nil
}

func total(c wager.Condition, homeScore, awayScore int) (wager.Result, error) {
	gameTotal := float64(homeScore + awayScore)
	if gameTotal == c.Threshold {
		return wager.ResultPush, nil
	}

	var won bool
	switch c.Direction {
	case wager.DirectionOver:
		won = gameTotal > c.Threshold
	case wager.DirectionUnder:
		won = gameTotal < c.Threshold
	default:
		return "", fmt.Errorf("cannot grade total direction %q", c.Direction)
	}
	if won {
		return wager.ResultWon, nil
	}
	return wager.ResultLost, nil
}
