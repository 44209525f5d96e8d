package wager

import "github.com/radieske/sports-bet-settlement/pkg/oddsmath"

// PnL retorna o lucro/prejuízo assinado de uma aposta:
// won => lucro pelas odds; lost => -stake; push/pending => 0
func (w Wager) PnL() (float64, error) {
	switch w.Result {
	case ResultWon:
		return oddsmath.Profit(w.Stake, w.Odds)
	case ResultLost:
		return -w.Stake, nil
	}
	return 0, nil
}
