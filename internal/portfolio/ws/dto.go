package ws

import "github.com/radieske/sports-bet-settlement/pkg/contracts/events"

// ClientMsg é a mensagem recebida do cliente WebSocket
type ClientMsg struct {
	Type   string `json:"type"`   // subscribe | unsubscribe | ping
	UserID string `json:"userId"` // requerido em subscribe/unsubscribe
}

// SettlementUpdate é o que o cliente recebe quando uma aposta sua é liquidada
type SettlementUpdate struct {
	Type    string            `json:"type"` // "bet_settled"
	UserID  string            `json:"userId"`
	Payload events.BetSettled `json:"payload"`
}
