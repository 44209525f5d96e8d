package selection

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// ErrMalformedSelection indica texto fora da gramática do mercado
var ErrMalformedSelection = errors.New("malformed selection")

const moneylineSuffix = " ML"

// Parse decodifica o texto livre da seleção de acordo com o mercado:
//
//	moneyline: "<TEAM> ML"
//	spread:    "<TEAM> <signed line>"   ex: "UNC +3.5"
//	total:     "Over|Under <threshold>" ex: "Over 145.5"
func Parse(text string, kind wager.Kind) (wager.Condition, error) {
	switch kind {
	case wager.KindMoneyline:
		return parseMoneyline(text)
	case wager.KindSpread:
		return parseSpread(text)
	case wager.KindTotal:
		return parseTotal(text)
	}
	return wager.Condition{}, fmt.Errorf("%w: unknown bet kind %q", ErrMalformedSelection, kind)
}

func parseMoneyline(text string) (wager.Condition, error) {
	s := strings.TrimSpace(text)
	if !strings.HasSuffix(s, moneylineSuffix) {
		return wager.Condition{}, fmt.Errorf("%w: moneyline %q missing %q suffix", ErrMalformedSelection, text, strings.TrimSpace(moneylineSuffix))
	}
	team := strings.TrimSpace(strings.TrimSuffix(s, moneylineSuffix))
	if team == "" {
		return wager.Condition{}, fmt.Errorf("%w: moneyline %q has no team", ErrMalformedSelection, text)
	}
	return wager.Condition{Kind: wager.KindMoneyline, Team: team}, nil
}

func parseSpread(text string) (wager.Condition, error) {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return wager.Condition{}, fmt.Errorf("%w: spread %q needs team and line", ErrMalformedSelection, text)
	}
	line, ok := parseNumber(tokens[1])
	if !ok {
		return wager.Condition{}, fmt.Errorf("%w: spread line %q is not a number", ErrMalformedSelection, tokens[1])
	}
	return wager.Condition{Kind: wager.KindSpread, Team: tokens[0], Line: line}, nil
}

// parseTotal detecta a direção por substring ("OVER"/"UNDER" em qualquer
// posição do texto em maiúsculas); seleções já gravadas dependem disso.
func parseTotal(text string) (wager.Condition, error) {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return wager.Condition{}, fmt.Errorf("%w: total %q needs direction and threshold", ErrMalformedSelection, text)
	}
	threshold, ok := parseNumber(tokens[1])
	if !ok {
		return wager.Condition{}, fmt.Errorf("%w: total threshold %q is not a number", ErrMalformedSelection, tokens[1])
	}

	upper := strings.ToUpper(text)
	var dir wager.Direction
	switch {
	case strings.Contains(upper, "OVER"):
		dir = wager.DirectionOver
	case strings.Contains(upper, "UNDER"):
		dir = wager.DirectionUnder
	default:
		return wager.Condition{}, fmt.Errorf("%w: total %q has no over/under", ErrMalformedSelection, text)
	}
	return wager.Condition{Kind: wager.KindTotal, Direction: dir, Threshold: threshold}, nil
}

// parseNumber aceita só valores finitos (ParseFloat também aceita NaN/Inf)
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
