package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// Timeframe é a janela de lookback do gráfico de equity
type Timeframe string

const (
	OneDay      Timeframe = "1D"
	OneWeek     Timeframe = "1W"
	OneMonth    Timeframe = "1M"
	ThreeMonths Timeframe = "3M"
	YearToDate  Timeframe = "YTD"
	AllTime     Timeframe = "All"
)

// Timeframes na ordem exibida no seletor
var Timeframes = []Timeframe{OneDay, OneWeek, OneMonth, ThreeMonths, YearToDate, AllTime}

// ParseTimeframe aceita os códigos acima sem diferenciar maiúsculas; vazio => 1W
func ParseTimeframe(s string) (Timeframe, error) {
	if s == "" {
		return OneWeek, nil
	}
	for _, tf := range Timeframes {
		if strings.EqualFold(s, string(tf)) {
			return tf, nil
		}
	}
	return "", fmt.Errorf("unknown timeframe %q", s)
}

// ResolveSince calcula o início da janela.
// YTD => 1º de janeiro do ano corrente; All => aposta mais antiga (qualquer resultado) ou now.
func ResolveSince(tf Timeframe, wagers []wager.Wager, now time.Time) time.Time {
	switch tf {
	case OneDay:
		return now.AddDate(0, 0, -1)
	case OneWeek:
		return now.AddDate(0, 0, -7)
	case OneMonth:
		return now.AddDate(0, -1, 0)
	case ThreeMonths:
		return now.AddDate(0, -3, 0)
	case YearToDate:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	case AllTime:
		earliest := now
		for _, w := range wagers {
			if w.PlacedAt.Before(earliest) {
				earliest = w.PlacedAt
			}
		}
		return earliest
	}
	return now
}
