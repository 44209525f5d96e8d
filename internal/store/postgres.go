package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// Postgres implementa o store de jogos e apostas.
// Chave da aposta é (user_id, id); resultado só sai de pending uma vez.
type Postgres struct {
	db  *sql.DB
	log *zap.Logger
}

func NewPostgres(db *sql.DB, log *zap.Logger) *Postgres {
	if log == nil {
		log = zap.NewNop()
	}
	return &Postgres{db: db, log: log}
}

// rowScanner cobre *sql.Row e *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

const gameColumns = `id, home_team, away_team, starts_at, neutral_site, state, home_score, away_score`

func scanGame(s rowScanner) (wager.Game, error) {
	var (
		g          wager.Game
		state      string
		home, away sql.NullInt64
	)
	if err := s.Scan(&g.ID, &g.HomeTeam, &g.AwayTeam, &g.StartsAt, &g.NeutralSite, &state, &home, &away); err != nil {
		return wager.Game{}, err
	}
	g.Status.State = wager.GameState(state)
	if g.Status.IsFinal() {
		g.Status.HomeScore = int(home.Int64)
		g.Status.AwayScore = int(away.Int64)
	}
	return g, nil
}

// GetGame retorna wager.ErrNotFound se o jogo não existir
func (p *Postgres) GetGame(ctx context.Context, gameID string) (wager.Game, error) {
	g, err := scanGame(p.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id=$1`, gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return wager.Game{}, wager.ErrNotFound
	}
	if err != nil {
		return wager.Game{}, fmt.Errorf("get game: %w", err)
	}
	return g, nil
}

// UpsertGame grava a agenda de um jogo; não mexe em placar de jogo já finalizado
func (p *Postgres) UpsertGame(ctx context.Context, g wager.Game) error {
	state := g.Status.State
	if state == "" || state == wager.StateFinal {
		state = wager.StateNotPlayed // FINAL só via FinalizeGame
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO games (id, home_team, away_team, starts_at, neutral_site, state)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET
		  home_team    = EXCLUDED.home_team,
		  away_team    = EXCLUDED.away_team,
		  starts_at    = EXCLUDED.starts_at,
		  neutral_site = EXCLUDED.neutral_site,
		  state        = CASE WHEN games.state = 'FINAL' THEN games.state ELSE EXCLUDED.state END,
		  updated_at   = now()`,
		g.ID, g.HomeTeam, g.AwayTeam, g.StartsAt, g.NeutralSite, string(state),
	)
	if err != nil {
		return fmt.Errorf("upsert game: %w", err)
	}
	return nil
}

// FinalizeGame grava o placar final.
// Mesmo placar de novo => changed=false; placar diferente => wager.ErrScoreConflict.
func (p *Postgres) FinalizeGame(ctx context.Context, gameID string, homeScore, awayScore int) (g wager.Game, changed bool, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return wager.Game{}, false, err
	}
	defer tx.Rollback()

	g, err = scanGame(tx.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id=$1 FOR UPDATE`, gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return wager.Game{}, false, wager.ErrNotFound
	}
	if err != nil {
		return wager.Game{}, false, fmt.Errorf("lock game: %w", err)
	}

	if h, a, ok := g.Status.Score(); ok {
		if h == homeScore && a == awayScore {
			return g, false, nil
		}
		return g, false, wager.ErrScoreConflict
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE games SET state='FINAL', home_score=$2, away_score=$3, finalized_at=now(), updated_at=now()
		WHERE id=$1`, gameID, homeScore, awayScore); err != nil {
		return wager.Game{}, false, fmt.Errorf("finalize game: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return wager.Game{}, false, err
	}

	g.Status = wager.GameStatus{State: wager.StateFinal, HomeScore: homeScore, AwayScore: awayScore}
	return g, true, nil
}

// ListGames lista jogos por data; openOnly filtra os que ainda não são FINAL
func (p *Postgres) ListGames(ctx context.Context, openOnly bool) ([]wager.Game, error) {
	q := `SELECT ` + gameColumns + ` FROM games`
	if openOnly {
		q += ` WHERE state <> 'FINAL'`
	}
	q += ` ORDER BY starts_at, id`
	return p.queryGames(ctx, q)
}

// ListFinalGamesWithPending alimenta o sweeper de re-liquidação
func (p *Postgres) ListFinalGamesWithPending(ctx context.Context) ([]wager.Game, error) {
	return p.queryGames(ctx, `
		SELECT `+gameColumns+` FROM games g
		WHERE g.state = 'FINAL'
		  AND EXISTS (SELECT 1 FROM wagers w WHERE w.game_id = g.id AND w.result = 'pending')
		ORDER BY g.finalized_at, g.id`)
}

func (p *Postgres) queryGames(ctx context.Context, q string, args ...any) ([]wager.Game, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var out []wager.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

const wagerColumns = `id, user_id, game_id, kind, selection, condition, odds, stake, result, placed_at`

// scanWager: condition ilegível vira nil com warning; a liquidação cai no parser
// em vez de travar o lote inteiro do jogo.
func scanWager(s rowScanner, log *zap.Logger) (wager.Wager, error) {
	var (
		w            wager.Wager
		kind, result string
		cond         []byte
	)
	if err := s.Scan(&w.ID, &w.UserID, &w.GameID, &kind, &w.Selection, &cond, &w.Odds, &w.Stake, &result, &w.PlacedAt); err != nil {
		return wager.Wager{}, err
	}
	w.Kind = wager.Kind(kind)
	w.Result = wager.Result(result)
	c, err := decodeCondition(cond)
	if err != nil {
		log.Warn("wager condition ignored",
			zap.String("user_id", w.UserID),
			zap.String("wager_id", w.ID),
			zap.Error(err),
		)
		return w, nil
	}
	w.Condition = c
	return w, nil
}

// decodeCondition: NULL => nil (registro antigo, o parser resolve na liquidação)
func decodeCondition(raw []byte) (*wager.Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var c wager.Condition
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode condition: %w", err)
	}
	return &c, nil
}

func encodeCondition(c *wager.Condition) (any, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode condition: %w", err)
	}
	return b, nil
}

func (p *Postgres) queryWagers(ctx context.Context, q string, args ...any) ([]wager.Wager, error) {
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query wagers: %w", err)
	}
	defer rows.Close()

	var out []wager.Wager
	for rows.Next() {
		w, err := scanWager(rows, p.log)
		if err != nil {
			return nil, fmt.Errorf("scan wager: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListPendingWagersForGame enumera todas as apostas pending do jogo, de todos os usuários
func (p *Postgres) ListPendingWagersForGame(ctx context.Context, gameID string) ([]wager.Wager, error) {
	return p.queryWagers(ctx, `
		SELECT `+wagerColumns+` FROM wagers
		WHERE game_id=$1 AND result='pending'
		ORDER BY user_id, id`, gameID)
}

// ListWagers retorna as apostas do usuário, mais recentes primeiro
func (p *Postgres) ListWagers(ctx context.Context, userID string) ([]wager.Wager, error) {
	return p.queryWagers(ctx, `
		SELECT `+wagerColumns+` FROM wagers
		WHERE user_id=$1
		ORDER BY placed_at DESC, id`, userID)
}

// UpdateWagerResult faz a transição pending -> resultado de forma condicional.
// Aposta já liquidada => wager.ErrNotPending; inexistente => wager.ErrNotFound.
func (p *Postgres) UpdateWagerResult(ctx context.Context, userID, wagerID string, result wager.Result) error {
	if !result.Settled() {
		return fmt.Errorf("invalid settlement result %q", result)
	}
	if _, err := uuid.Parse(wagerID); err != nil {
		return wager.ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE wagers SET result=$3, settled_at=now()
		WHERE user_id=$1 AND id=$2 AND result='pending'`,
		userID, wagerID, string(result),
	)
	if err != nil {
		return fmt.Errorf("update wager result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM wagers WHERE user_id=$1 AND id=$2)`, userID, wagerID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check wager: %w", err)
	}
	if exists {
		return wager.ErrNotPending
	}
	return wager.ErrNotFound
}

// AddWager gera o id e grava a aposta como pending
func (p *Postgres) AddWager(ctx context.Context, w wager.Wager) (wager.Wager, error) {
	w.ID = uuid.NewString()
	w.Result = wager.ResultPending
	if w.PlacedAt.IsZero() {
		w.PlacedAt = time.Now().UTC()
	}
	cond, err := encodeCondition(w.Condition)
	if err != nil {
		return wager.Wager{}, err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO wagers (id, user_id, game_id, kind, selection, condition, odds, stake, result, placed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		w.ID, w.UserID, w.GameID, string(w.Kind), w.Selection, cond, w.Odds, w.Stake, string(w.Result), w.PlacedAt,
	)
	if err != nil {
		return wager.Wager{}, fmt.Errorf("insert wager: %w", err)
	}
	return w, nil
}

// DeleteWager remove a aposta; o efeito no P&L some no próximo cálculo
func (p *Postgres) DeleteWager(ctx context.Context, userID, wagerID string) error {
	if _, err := uuid.Parse(wagerID); err != nil {
		return wager.ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM wagers WHERE user_id=$1 AND id=$2`, userID, wagerID)
	if err != nil {
		return fmt.Errorf("delete wager: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return wager.ErrNotFound
	}
	return nil
}
