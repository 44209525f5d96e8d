package events

import "time"

// Evento emitido pelo settlement-worker para cada aposta liquidada.
// Também vai para o canal Redis consumido pelo websocket.
type BetSettled struct {
	WagerID   string    `json:"wagerId"`
	UserID    string    `json:"userId"`
	GameID    string    `json:"gameId"`
	Condition string    `json:"condition"`
	Result    string    `json:"result"` // "won" | "lost" | "push"
	Stake     float64   `json:"stake"`
	Odds      float64   `json:"odds"`
	PnL       float64   `json:"pnl"`
	SettledAt time.Time `json:"settledAt"`
}
