package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement/processor"
	"github.com/radieske/sports-bet-settlement/internal/shared/kafka"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// Settler é o processador de lote (processor.Processor)
type Settler interface {
	SettleGame(ctx context.Context, gameID string, homeScore, awayScore int) (*processor.Report, error)
}

// MessageReader é o subconjunto do *kafka.Reader usado aqui (commit manual)
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer lê game_finalized e dispara a liquidação do jogo.
// Mensagens inválidas ou rejeitadas de forma permanente vão para a DLQ; falhas
// transitórias (store fora) são reprocessadas. O offset só é commitado depois de
// liquidar ou de encaminhar para a DLQ.
type Consumer struct {
	Log     *zap.Logger
	Reader  MessageReader
	Settler Settler
	DLQ     kafka.MessageWriter

	OnConsumed func()             // métricas
	OnError    func(stage string) // métricas por fase
	Backoff    time.Duration      // pausa após erro de leitura ou de liquidação; 0 => 500ms
}

// Run executa o loop de consumo até o contexto ser cancelado
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Log.Warn("kafka read failed", zap.Error(err))
			c.error("read")
			if !sleep(ctx, c.backoff()) {
				return ctx.Err()
			}
			continue
		}

		if c.OnConsumed != nil {
			c.OnConsumed()
		}

		// erro transitório: reprocessa a mesma mensagem; avançar commitaria por cima dela
		for {
			err := c.HandleMessage(ctx, m)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Log.Error("message not handled, retrying", zap.Int64("offset", m.Offset), zap.Error(err))
			if !sleep(ctx, c.backoff()) {
				return ctx.Err()
			}
		}

		if err := c.Reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			c.error("commit")
		}
	}
}

// HandleMessage decodifica e liquida um game_finalized.
// Erro de retorno significa "não commitar" (store ou DLQ indisponível, contexto cancelado).
func (c *Consumer) HandleMessage(ctx context.Context, m kafka.Message) error {
	var ev events.GameFinalized
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		c.Log.Warn("invalid message", zap.Error(err))
		c.error("decode")
		return c.deadLetter(ctx, m, fmt.Sprintf("decode: %v", err))
	}
	if ev.GameID == "" || ev.HomeScore < 0 || ev.AwayScore < 0 {
		c.error("validate")
		return c.deadLetter(ctx, m, "invalid game_finalized payload")
	}

	log := c.Log.With(zap.String("game_id", ev.GameID))
	report, err := c.Settler.SettleGame(ctx, ev.GameID, ev.HomeScore, ev.AwayScore)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		c.error("settle")
		if !permanent(err) {
			log.Warn("settlement batch could not start, will retry", zap.Error(err))
			return fmt.Errorf("settle %s: %w", ev.GameID, err)
		}
		log.Warn("settlement batch rejected", zap.Error(err))
		return c.deadLetter(ctx, m, err.Error())
	}

	if report.Failed() > 0 {
		// falhas por aposta ficam pending; o sweeper tenta de novo
		log.Warn("settlement batch finished with failures", zap.Int("failed", report.Failed()))
	}
	return nil
}

// permanent: repetir a mensagem não muda o resultado (jogo inexistente, não FINAL, placar divergente)
func permanent(err error) bool {
	return errors.Is(err, wager.ErrNotFound) ||
		errors.Is(err, wager.ErrGameNotFinal) ||
		errors.Is(err, wager.ErrScoreConflict)
}

func (c *Consumer) deadLetter(ctx context.Context, m kafka.Message, reason string) error {
	if c.DLQ == nil {
		return nil
	}
	dl := events.GameFinalizedDLQ{Payload: m.Value, Reason: reason, FailedAt: time.Now().UTC()}
	if err := kafka.WriteJSON(ctx, c.DLQ, string(m.Key), dl); err != nil {
		c.error("dlq")
		return fmt.Errorf("dead-letter: %w", err)
	}
	c.Log.Info("message sent to dlq", zap.String("reason", reason))
	return nil
}

func (c *Consumer) error(stage string) {
	if c.OnError != nil {
		c.OnError(stage)
	}
}

func (c *Consumer) backoff() time.Duration {
	if c.Backoff <= 0 {
		return 500 * time.Millisecond
	}
	return c.Backoff
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
