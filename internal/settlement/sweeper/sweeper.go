package sweeper

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement/processor"
	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// GameLister lista jogos FINAL que ainda têm apostas pending
type GameLister interface {
	ListFinalGamesWithPending(ctx context.Context) ([]wager.Game, error)
}

type Settler interface {
	SettleGame(ctx context.Context, gameID string, homeScore, awayScore int) (*processor.Report, error)
}

// Sweeper re-executa a liquidação periodicamente para apostas que ficaram pending
// (falha de escrita, evento perdido, selection corrigida). Seguro por idempotência.
type Sweeper struct {
	Log     *zap.Logger
	Games   GameLister
	Settler Settler

	cron *cron.Cron
}

func New(log *zap.Logger, games GameLister, settler Settler) *Sweeper {
	return &Sweeper{
		Log:     log,
		Games:   games,
		Settler: settler,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log.Sugar()})),
		),
	}
}

// Register agenda o sweep com uma expressão cron de 6 campos (com segundos).
// ctx vale para todas as execuções; cancelado, o sweep em andamento para.
func (s *Sweeper) Register(ctx context.Context, spec string) error {
	job := func() {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.Log.Error("settlement sweep failed", zap.Error(err))
		}
	}
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("register sweep %q: %w", spec, err)
	}
	return nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.Log.Info("settlement sweeper started")
}

// Stop espera o sweep em andamento terminar
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.Log.Info("settlement sweeper stopped")
}

// RunOnce liquida todos os jogos finalizados com pendências; retorna quantos jogos foram processados.
// Falha de um jogo não interrompe os demais.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	games, err := s.Games.ListFinalGamesWithPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list final games with pending wagers: %w", err)
	}

	processed := 0
	for _, g := range games {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		home, away, ok := g.Status.Score()
		if !ok {
			continue
		}
		report, err := s.Settler.SettleGame(ctx, g.ID, home, away)
		if err != nil {
			s.Log.Warn("sweep settle failed", zap.String("game_id", g.ID), zap.Error(err))
			continue
		}
		processed++
		s.Log.Info("sweep settled game",
			zap.String("game_id", g.ID),
			zap.Int("settled", report.Succeeded()),
			zap.Int("still_pending", report.Failed()),
		)
	}
	return processed, nil
}

// cronLogger adapta o zap ao cron.Logger
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
