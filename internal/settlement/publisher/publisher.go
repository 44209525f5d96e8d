package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement/processor"
	"github.com/radieske/sports-bet-settlement/internal/shared/kafka"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
)

// Broadcaster publica payloads num canal pub/sub (Redis em produção)
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisBroadcaster envia para o Redis Pub/Sub consumido pelo websocket do portfolio-service
type RedisBroadcaster struct {
	r redis.Cmdable
}

func NewRedisBroadcaster(r redis.Cmdable) *RedisBroadcaster {
	return &RedisBroadcaster{r: r}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.r.Publish(ctx, channel, payload).Err()
}

// Publisher emite os eventos de liquidação: um bet_settled por aposta e um
// settlement_completed por lote. Falhas de broadcast só geram log.
type Publisher struct {
	Log       *zap.Logger
	Settled   kafka.MessageWriter
	Completed kafka.MessageWriter
	Broadcast Broadcaster // opcional
	Channel   string
	Now       func() time.Time

	OnError func(stage string) // métricas
}

func (p *Publisher) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}

// BetSettled publica no Kafka (chave userId, mantém ordem por usuário) e no canal Redis
func (p *Publisher) BetSettled(ctx context.Context, o processor.Outcome) error {
	ev := events.BetSettled{
		WagerID:   o.WagerID,
		UserID:    o.UserID,
		GameID:    o.GameID,
		Condition: o.Condition.String(),
		Result:    string(o.Result),
		Stake:     o.Stake,
		Odds:      o.Odds,
		PnL:       o.PnL,
		SettledAt: p.now(),
	}

	if err := kafka.WriteJSON(ctx, p.Settled, ev.UserID, ev); err != nil {
		p.error("publish_settled")
		return fmt.Errorf("publish bet_settled %s: %w", ev.WagerID, err)
	}

	if p.Broadcast != nil {
		b, err := json.Marshal(ev)
		if err == nil {
			bctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			err = p.Broadcast.Publish(bctx, p.Channel, b)
			cancel()
		}
		if err != nil {
			p.logger().Warn("ws broadcast publish failed", zap.String("wager_id", ev.WagerID), zap.Error(err))
			p.error("broadcast")
		}
	}
	return nil
}

// SettlementCompleted publica o resumo do lote (chave gameId)
func (p *Publisher) SettlementCompleted(ctx context.Context, r *processor.Report, elapsed time.Duration) error {
	ev := events.SettlementCompleted{
		GameID:     r.GameID,
		HomeScore:  r.HomeScore,
		AwayScore:  r.AwayScore,
		Candidates: r.Candidates,
		Settled:    r.Succeeded(),
		Skipped:    r.Skipped,
		Won:        r.Won,
		Lost:       r.Lost,
		Push:       r.Push,
		Failures:   make([]events.SettlementFailure, 0, len(r.Failures)),
		ElapsedMs:  elapsed.Milliseconds(),
		Ts:         p.now(),
	}
	for _, f := range r.Failures {
		ev.Failures = append(ev.Failures, events.SettlementFailure{
			UserID:  f.UserID,
			WagerID: f.WagerID,
			Stage:   f.Stage,
			Reason:  f.Err.Error(),
		})
	}

	if err := kafka.WriteJSON(ctx, p.Completed, ev.GameID, ev); err != nil {
		p.error("publish_completed")
		return fmt.Errorf("publish settlement_completed %s: %w", ev.GameID, err)
	}
	return nil
}

func (p *Publisher) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

func (p *Publisher) error(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
