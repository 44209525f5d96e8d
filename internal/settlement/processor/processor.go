package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement/grading"
	"github.com/radieske/sports-bet-settlement/internal/settlement/selection"
	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// GameReader resolve o jogo (mandante/visitante). Normalmente um cache read-through.
type GameReader interface {
	GetGame(ctx context.Context, gameID string) (wager.Game, error)
}

// WagerStore é o subconjunto do store de apostas usado na liquidação
type WagerStore interface {
	ListPendingWagersForGame(ctx context.Context, gameID string) ([]wager.Wager, error)
	UpdateWagerResult(ctx context.Context, userID, wagerID string, result wager.Result) error
}

const defaultWorkers = 8

// Processor liquida todas as apostas pendentes de um jogo finalizado.
// Callbacks opcionais alimentam métricas e publicação de eventos.
type Processor struct {
	Log     *zap.Logger
	Games   GameReader
	Wagers  WagerStore
	Grader  grading.Engine
	Workers int // escritas paralelas; <= 0 usa defaultWorkers

	OnGraded  func(result wager.Result)              // métricas
	OnError   func(stage string)                     // métricas por estágio
	OnSettled func(ctx context.Context, o Outcome)   // após persistir cada aposta
	OnBatch   func(r *Report, elapsed time.Duration) // fim do lote
}

// SettleGame carrega as apostas pending do jogo, liquida cada uma e persiste o resultado.
// Idempotente: apostas já liquidadas não são candidatas. Falhas por aposta vão para o
// relatório; só falhas que impedem o lote de começar retornam erro (jogo inexistente,
// jogo não FINAL, placar diferente do gravado).
func (p *Processor) SettleGame(ctx context.Context, gameID string, homeScore, awayScore int) (*Report, error) {
	start := time.Now()
	log := p.logger().With(zap.String("game_id", gameID))

	game, err := p.Games.GetGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("resolve game %s: %w", gameID, err)
	}
	// só o placar final gravado liquida; resultado nunca volta para pending
	h, a, ok := game.Status.Score()
	if !ok {
		return nil, fmt.Errorf("settle game %s: state %q: %w", gameID, game.Status.State, wager.ErrGameNotFinal)
	}
	if h != homeScore || a != awayScore {
		return nil, fmt.Errorf("settle game %s with %d - %d, stored %s: %w", gameID, homeScore, awayScore, game.Status, wager.ErrScoreConflict)
	}

	pending, err := p.Wagers.ListPendingWagersForGame(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list pending wagers for %s: %w", gameID, err)
	}

	report := &Report{
		GameID:     gameID,
		HomeTeam:   game.HomeTeam,
		AwayTeam:   game.AwayTeam,
		HomeScore:  homeScore,
		AwayScore:  awayScore,
		Candidates: len(pending),
		Settled:    []Outcome{},
		Failures:   []*GradingError{},
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.workers())
	)

	for _, w := range pending {
		if w.Result != wager.ResultPending {
			continue // store deveria filtrar; garante idempotência mesmo assim
		}

		// grading é puro e síncrono; só a escrita roda em paralelo
		outcome, gerr := p.grade(w, game, homeScore, awayScore)
		if gerr != nil {
			p.fail(log, report, &mu, gerr)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(o Outcome) {
			defer wg.Done()
			defer func() { <-sem }()
			p.persist(ctx, log, report, &mu, o)
		}(outcome)
	}
	wg.Wait()

	report.sortEntries()

	log.Info("settlement batch finished",
		zap.Int("candidates", report.Candidates),
		zap.Int("settled", report.Succeeded()),
		zap.Int("failed", report.Failed()),
		zap.Int("skipped", report.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	)
	if p.OnBatch != nil {
		p.OnBatch(report, time.Since(start))
	}
	return report, nil
}

// grade usa a condição gravada na criação da aposta; o parser só cobre registros antigos
func (p *Processor) grade(w wager.Wager, g wager.Game, homeScore, awayScore int) (Outcome, *GradingError) {
	var cond wager.Condition
	if w.Condition != nil && w.Condition.Kind == w.Kind {
		cond = *w.Condition
	} else {
		c, err := selection.Parse(w.Selection, w.Kind)
		if err != nil {
			return Outcome{}, &GradingError{UserID: w.UserID, WagerID: w.ID, Stage: StageParse, Err: err}
		}
		cond = c
	}

	result, err := p.Grader.Grade(cond, g.HomeTeam, g.AwayTeam, homeScore, awayScore)
	if err != nil {
		return Outcome{}, &GradingError{UserID: w.UserID, WagerID: w.ID, Stage: StageGrade, Err: err}
	}

	w.Result = result
	pnl, err := w.PnL()
	if err != nil {
		return Outcome{}, &GradingError{UserID: w.UserID, WagerID: w.ID, Stage: StageGrade, Err: err}
	}

	return Outcome{
		UserID:    w.UserID,
		WagerID:   w.ID,
		GameID:    w.GameID,
		Condition: cond,
		Result:    result,
		Stake:     w.Stake,
		Odds:      w.Odds,
		PnL:       pnl,
	}, nil
}

func (p *Processor) persist(ctx context.Context, log *zap.Logger, report *Report, mu *sync.Mutex, o Outcome) {
	err := ctx.Err()
	if err == nil {
		err = p.Wagers.UpdateWagerResult(ctx, o.UserID, o.WagerID, o.Result)
	}

	if errors.Is(err, wager.ErrNotPending) {
		// outra execução já liquidou esta aposta
		mu.Lock()
		report.Skipped++
		mu.Unlock()
		log.Debug("wager already settled", zap.String("user_id", o.UserID), zap.String("wager_id", o.WagerID))
		return
	}
	if err != nil {
		p.fail(log, report, mu, &GradingError{UserID: o.UserID, WagerID: o.WagerID, Stage: StagePersist, Err: err})
		return
	}

	mu.Lock()
	report.add(o)
	mu.Unlock()

	log.Debug("wager graded",
		zap.String("user_id", o.UserID),
		zap.String("wager_id", o.WagerID),
		zap.String("condition", o.Condition.String()),
		zap.String("result", string(o.Result)),
		zap.Float64("pnl", o.PnL),
	)
	if p.OnGraded != nil {
		p.OnGraded(o.Result)
	}
	if p.OnSettled != nil {
		p.OnSettled(ctx, o)
	}
}

func (p *Processor) fail(log *zap.Logger, report *Report, mu *sync.Mutex, gerr *GradingError) {
	mu.Lock()
	report.Failures = append(report.Failures, gerr)
	mu.Unlock()

	log.Warn("wager settlement failed",
		zap.String("user_id", gerr.UserID),
		zap.String("wager_id", gerr.WagerID),
		zap.String("stage", gerr.Stage),
		zap.Error(gerr.Err),
	)
	if p.OnError != nil {
		p.OnError(gerr.Stage)
	}
}

func (p *Processor) workers() int {
	if p.Workers <= 0 {
		return defaultWorkers
	}
	return p.Workers
}

func (p *Processor) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}
