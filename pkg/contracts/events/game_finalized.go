package events

import "time"

// Evento publicado no tópico "game_finalized" quando um jogo recebe placar final
type GameFinalized struct {
	GameID      string    `json:"gameId"`
	HomeScore   int       `json:"homeScore"`
	AwayScore   int       `json:"awayScore"`
	FinalizedAt time.Time `json:"finalizedAt"`
	Source      string    `json:"source"` // "admin" | "sweeper"
}

// GameFinalizedDLQ embrulha a mensagem original que não pôde iniciar a liquidação
type GameFinalizedDLQ struct {
	Payload  []byte    `json:"payload"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}
