package oddsmath

import (
	"errors"
	"math"
)

// ErrInvalidOdds indica odd americana igual a zero (sem payout definido)
var ErrInvalidOdds = errors.New("invalid american odds: cannot be 0")

// Profit retorna o lucro líquido de uma aposta vencedora
// +150 com stake 100 => 150; -110 com stake 110 => 100
func Profit(stake, american float64) (float64, error) {
	if american == 0 {
		return 0, ErrInvalidOdds
	}
	if american > 0 {
		return stake * (american / 100), nil
	}
	return stake * (100 / math.Abs(american)), nil
}

// Payout retorna stake + lucro
func Payout(stake, american float64) (float64, error) {
	p, err := Profit(stake, american)
	if err != nil {
		return 0, err
	}
	return stake + p, nil
}

// AmericanToDecimal converte odd americana para decimal (usado só para exibição)
// +150 => 2.50; -150 => 1.67
func AmericanToDecimal(american float64) (float64, error) {
	p, err := Profit(1, american)
	if err != nil {
		return 0, err
	}
	return 1 + p, nil
}
