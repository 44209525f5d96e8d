package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-bet-settlement/internal/portfolio/analytics"
	"github.com/radieske/sports-bet-settlement/pkg/oddsmath"
	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// CreateWagerRequest é o corpo de POST /v1/users/{userId}/wagers
type CreateWagerRequest struct {
	GameID    string     `json:"gameId"`
	Type      wager.Kind `json:"type"`      // moneyline | spread | total
	Selection string     `json:"selection"` // "DUKE ML", "UNC +3.5", "Over 145.5"
	Odds      float64    `json:"odds"`      // americanas, != 0
	Amount    float64    `json:"amount"`    // stake > 0
	PlacedAt  *time.Time `json:"placedAt,omitempty"`
}

// WagerView é a aposta com dados do jogo (ou "Unknown" se o jogo sumiu)
type WagerView struct {
	ID          string           `json:"id"`
	GameID      string           `json:"gameId"`
	Type        wager.Kind       `json:"type"`
	Selection   string           `json:"selection"`
	Condition   *wager.Condition `json:"condition,omitempty"`
	Odds        float64          `json:"odds"`
	DecimalOdds float64          `json:"decimalOdds,omitempty"`
	Amount      float64          `json:"amount"`
	Result      wager.Result     `json:"result"`
	PnL         float64          `json:"pnl"`
	PlacedAt    time.Time        `json:"placedAt"`

	HomeTeam string     `json:"homeTeam"`
	AwayTeam string     `json:"awayTeam"`
	GameDate *time.Time `json:"gameDate,omitempty"`
	Score    string     `json:"score,omitempty"`
}

type PointView struct {
	Date time.Time `json:"date"`
	PnL  float64   `json:"pnl"`
}

// PortfolioResponse é o snapshot com valores arredondados para exibição
type PortfolioResponse struct {
	UserID      string      `json:"userId"`
	Timeframe   string      `json:"timeframe"`
	Since       time.Time   `json:"since"`
	TotalStaked float64     `json:"totalStaked"`
	TotalPnL    float64     `json:"totalPnL"`
	ROI         float64     `json:"roi"`
	Settled     int         `json:"settled"`
	Wins        int         `json:"wins"`
	Losses      int         `json:"losses"`
	Pushes      int         `json:"pushes"`
	Equity      []PointView `json:"equity"`
}

// UpsertGameRequest é o corpo de PUT /v1/admin/games/{id}
type UpsertGameRequest struct {
	HomeTeam    string          `json:"homeTeam"`
	AwayTeam    string          `json:"awayTeam"`
	Date        time.Time       `json:"date"`
	NeutralSite bool            `json:"neutralSite"`
	State       wager.GameState `json:"state,omitempty"` // NP | IP
}

// FinalizeGameRequest é o corpo de POST /v1/admin/games/{id}/final
type FinalizeGameRequest struct {
	HomeScore *int `json:"homeScore"`
	AwayScore *int `json:"awayScore"`
}

type FinalizeGameResponse struct {
	Game      wager.Game `json:"game"`
	Changed   bool       `json:"changed"`
	Published bool       `json:"published"`
}

// money arredonda para centavos; só na borda, os cálculos seguem em float64
func money(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func ratio(v float64) float64 {
	return decimal.NewFromFloat(v).Round(4).InexactFloat64()
}

const unknownTeam = "Unknown"

func toWagerView(w wager.Wager, g *wager.Game) WagerView {
	v := WagerView{
		ID:        w.ID,
		GameID:    w.GameID,
		Type:      w.Kind,
		Selection: w.Selection,
		Condition: w.Condition,
		Odds:      w.Odds,
		Amount:    money(w.Stake),
		Result:    w.Result,
		PlacedAt:  w.PlacedAt,
		HomeTeam:  unknownTeam,
		AwayTeam:  unknownTeam,
	}
	if d, err := oddsmath.AmericanToDecimal(w.Odds); err == nil {
		v.DecimalOdds = ratio(d)
	}
	if pnl, err := w.PnL(); err == nil {
		v.PnL = money(pnl)
	}
	if g != nil {
		v.HomeTeam, v.AwayTeam = g.HomeTeam, g.AwayTeam
		date := g.StartsAt
		v.GameDate = &date
		v.Score = g.Status.String()
	}
	return v
}

func toPortfolioResponse(userID string, tf analytics.Timeframe, s analytics.Snapshot) PortfolioResponse {
	resp := PortfolioResponse{
		UserID:      userID,
		Timeframe:   string(tf),
		Since:       s.Since,
		TotalStaked: money(s.TotalStaked),
		TotalPnL:    money(s.TotalPnL),
		ROI:         ratio(s.ROI),
		Settled:     s.Settled,
		Wins:        s.Wins,
		Losses:      s.Losses,
		Pushes:      s.Pushes,
		Equity:      make([]PointView, 0, len(s.Equity)),
	}
	for _, p := range s.Equity {
		resp.Equity = append(resp.Equity, PointView{Date: p.At, PnL: money(p.PnL)})
	}
	return resp
}
