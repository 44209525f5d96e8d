package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/shared/kafka"
	"github.com/radieske/sports-bet-settlement/pkg/contracts/events"
	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// listGames lista jogos; open=true só os que ainda não terminaram
func (a *API) listGames(w http.ResponseWriter, r *http.Request) {
	open := r.URL.Query().Get("open") == "true"
	games, err := a.Games.ListGames(r.Context(), open)
	if err != nil {
		a.logger().Error("list games failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list games")
		return
	}
	if games == nil {
		games = []wager.Game{}
	}
	writeJSON(w, http.StatusOK, games)
}

// upsertGame grava a agenda; placar final só via /final
func (a *API) upsertGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")

	var req UpsertGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.HomeTeam, req.AwayTeam = strings.TrimSpace(req.HomeTeam), strings.TrimSpace(req.AwayTeam)
	if req.HomeTeam == "" || req.AwayTeam == "" || req.Date.IsZero() {
		writeError(w, http.StatusBadRequest, "homeTeam, awayTeam and date are required")
		return
	}
	if strings.EqualFold(req.HomeTeam, req.AwayTeam) {
		writeError(w, http.StatusBadRequest, "homeTeam and awayTeam must differ")
		return
	}
	switch req.State {
	case "", wager.StateNotPlayed, wager.StateInProgress:
	default:
		writeError(w, http.StatusBadRequest, "state must be NP or IP")
		return
	}

	g := wager.Game{
		ID:          gameID,
		HomeTeam:    req.HomeTeam,
		AwayTeam:    req.AwayTeam,
		StartsAt:    req.Date.UTC(),
		NeutralSite: req.NeutralSite,
		Status:      wager.GameStatus{State: req.State},
	}
	if err := a.Games.UpsertGame(r.Context(), g); err != nil {
		a.logger().Error("upsert game failed", zap.String("game_id", gameID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save game")
		return
	}
	a.invalidate(r.Context(), gameID)
	writeJSON(w, http.StatusOK, g)
}

// finalizeGame grava o placar final e publica game_finalized para o settlement-worker.
// Repetir o mesmo placar é no-op; placar diferente => 409.
func (a *API) finalizeGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")
	log := a.logger().With(zap.String("game_id", gameID))

	var req FinalizeGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.HomeScore == nil || req.AwayScore == nil || *req.HomeScore < 0 || *req.AwayScore < 0 {
		writeError(w, http.StatusBadRequest, "homeScore and awayScore must be non-negative integers")
		return
	}

	g, changed, err := a.Games.FinalizeGame(r.Context(), gameID, *req.HomeScore, *req.AwayScore)
	switch {
	case errors.Is(err, wager.ErrNotFound):
		writeError(w, http.StatusNotFound, "game not found")
		return
	case errors.Is(err, wager.ErrScoreConflict):
		writeError(w, http.StatusConflict, err.Error()+": "+g.Status.String())
		return
	case err != nil:
		log.Error("finalize game failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not finalize game")
		return
	}

	if !changed {
		writeJSON(w, http.StatusOK, FinalizeGameResponse{Game: g})
		return
	}
	a.invalidate(r.Context(), gameID)

	ev := events.GameFinalized{
		GameID:      gameID,
		HomeScore:   *req.HomeScore,
		AwayScore:   *req.AwayScore,
		FinalizedAt: a.now(),
		Source:      "admin",
	}
	published := true
	if err := kafka.WriteJSON(r.Context(), a.Finalized, gameID, ev); err != nil {
		// o jogo já está FINAL; o sweeper liquida no próximo ciclo
		log.Warn("publish game_finalized failed", zap.Error(err))
		published = false
	}
	log.Info("game finalized", zap.Int("home_score", ev.HomeScore), zap.Int("away_score", ev.AwayScore))
	writeJSON(w, http.StatusAccepted, FinalizeGameResponse{Game: g, Changed: true, Published: published})
}

func (a *API) invalidate(ctx context.Context, gameID string) {
	inv, ok := a.GameInfo.(interface {
		Invalidate(ctx context.Context, gameID string) error
	})
	if !ok {
		return
	}
	if err := inv.Invalidate(ctx, gameID); err != nil {
		a.logger().Warn("game cache invalidate failed", zap.String("game_id", gameID), zap.Error(err))
	}
}
