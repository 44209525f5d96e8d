package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// Point é um ponto da curva de equity (P&L acumulado até At)
type Point struct {
	At  time.Time `json:"date"`
	PnL float64   `json:"pnl"`
}

// Snapshot é a visão derivada do portfólio; recalculada sob demanda
type Snapshot struct {
	Since       time.Time `json:"since"`
	TotalStaked float64   `json:"totalStaked"`
	TotalPnL    float64   `json:"totalPnL"`
	ROI         float64   `json:"roi"` // razão (0.125 = 12,5%)
	Settled     int       `json:"settled"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	Pushes      int       `json:"pushes"`
	Equity      []Point   `json:"equity"`
}

// Summarize agrega apostas liquidadas com PlacedAt >= since.
// Não faz I/O nem altera o slice recebido.
func Summarize(wagers []wager.Wager, since, now time.Time) (Snapshot, error) {
	settled := make([]wager.Wager, 0, len(wagers))
	for _, w := range wagers {
		if !w.Result.Settled() || w.PlacedAt.Before(since) {
			continue
		}
		settled = append(settled, w)
	}
	sort.SliceStable(settled, func(i, j int) bool {
		return settled[i].PlacedAt.Before(settled[j].PlacedAt)
	})

	snap := Snapshot{
		Since:  since,
		Equity: make([]Point, 0, len(settled)+2),
	}
	snap.Equity = append(snap.Equity, Point{At: since, PnL: 0})

	var running float64
	for _, w := range settled {
		pnl, err := w.PnL()
		if err != nil {
			return Snapshot{}, fmt.Errorf("wager %s: %w", w.ID, err)
		}
		running += pnl
		snap.TotalStaked += w.Stake
		snap.Settled++
		switch w.Result {
		case wager.ResultWon:
			snap.Wins++
		case wager.ResultLost:
			snap.Losses++
		case wager.ResultPush:
			snap.Pushes++
		}
		snap.Equity = append(snap.Equity, Point{At: w.PlacedAt, PnL: running})
	}

	snap.TotalPnL = running
	if snap.TotalStaked > 0 {
		snap.ROI = snap.TotalPnL / snap.TotalStaked
	}

	// estende a linha até o presente; sem apostas, sempre dois pontos zerados
	if last := snap.Equity[len(snap.Equity)-1]; last.At.Before(now) || len(snap.Equity) == 1 {
		snap.Equity = append(snap.Equity, Point{At: now, PnL: running})
	}
	return snap, nil
}

// SummarizeTimeframe resolve a janela e chama Summarize
func SummarizeTimeframe(wagers []wager.Wager, tf Timeframe, now time.Time) (Snapshot, error) {
	return Summarize(wagers, ResolveSince(tf, wagers, now), now)
}
