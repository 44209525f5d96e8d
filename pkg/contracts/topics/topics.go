package topics

const (
	// Jogos
	GameFinalized = "game_finalized"

	// Liquidação
	BetSettled          = "bet_settled"
	SettlementCompleted = "settlement_completed"

	// DLQs
	GameFinalizedDLQ = "game_finalized_dlq"

	// Redis pub/sub (fan-out para o websocket do portfolio-service)
	BetSettledBroadcast = "bet_settled_broadcast"
)
