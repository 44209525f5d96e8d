package events

import "time"

// SettlementFailure descreve uma aposta que ficou pending no lote
type SettlementFailure struct {
	UserID  string `json:"userId"`
	WagerID string `json:"wagerId"`
	Stage   string `json:"stage"`
	Reason  string `json:"reason"`
}

// Resumo de um lote de liquidação, publicado em "settlement_completed"
type SettlementCompleted struct {
	GameID     string              `json:"gameId"`
	HomeScore  int                 `json:"homeScore"`
	AwayScore  int                 `json:"awayScore"`
	Candidates int                 `json:"candidates"`
	Settled    int                 `json:"settled"`
	Skipped    int                 `json:"skipped"`
	Won        int                 `json:"won"`
	Lost       int                 `json:"lost"`
	Push       int                 `json:"push"`
	Failures   []SettlementFailure `json:"failures"`
	ElapsedMs  int64               `json:"elapsedMs"`
	Ts         time.Time           `json:"ts"`
}
