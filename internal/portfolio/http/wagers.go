package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement/selection"
	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

const recentLimit = 10

// listWagers retorna as apostas do usuário com dados do jogo.
// view=tracked => só pending; view=recent => as 10 mais recentes.
func (a *API) listWagers(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	all, err := a.Wagers.ListWagers(r.Context(), userID)
	if err != nil {
		a.logger().Error("list wagers failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list wagers")
		return
	}

	var picked []wager.Wager
	switch view := r.URL.Query().Get("view"); view {
	case "", "all":
		picked = all
	case "tracked":
		for _, wg := range all {
			if wg.Result == wager.ResultPending {
				picked = append(picked, wg)
			}
		}
	case "recent":
		picked = all
		if len(picked) > recentLimit {
			picked = picked[:recentLimit]
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown view "+view)
		return
	}

	games := make(map[string]*wager.Game)
	out := make([]WagerView, 0, len(picked))
	for _, wg := range picked {
		g, seen := games[wg.GameID]
		if !seen {
			if found, err := a.GameInfo.GetGame(r.Context(), wg.GameID); err == nil {
				g = &found
			} else if !errors.Is(err, wager.ErrNotFound) {
				a.logger().Warn("game lookup failed", zap.String("game_id", wg.GameID), zap.Error(err))
			}
			games[wg.GameID] = g
		}
		out = append(out, toWagerView(wg, g))
	}
	writeJSON(w, http.StatusOK, out)
}

// createWager valida, decodifica a seleção uma única vez e grava a condição estruturada
func (a *API) createWager(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var req CreateWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	req.Selection = strings.TrimSpace(req.Selection)
	switch {
	case req.GameID == "" || req.Selection == "":
		writeError(w, http.StatusBadRequest, "gameId and selection are required")
		return
	case !req.Type.Valid():
		writeError(w, http.StatusBadRequest, "type must be moneyline, spread or total")
		return
	case req.Odds == 0:
		writeError(w, http.StatusBadRequest, "odds cannot be 0")
		return
	case req.Amount <= 0:
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	cond, err := selection.Parse(req.Selection, req.Type)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	game, err := a.GameInfo.GetGame(r.Context(), req.GameID)
	if errors.Is(err, wager.ErrNotFound) {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	if err != nil {
		a.logger().Error("game lookup failed", zap.String("game_id", req.GameID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not resolve game")
		return
	}
	if game.Status.IsFinal() {
		writeError(w, http.StatusConflict, "game already final")
		return
	}
	if cond.Kind != wager.KindTotal && !strings.EqualFold(cond.Team, game.HomeTeam) && !strings.EqualFold(cond.Team, game.AwayTeam) {
		writeError(w, http.StatusBadRequest, "selection team is not playing in this game")
		return
	}

	nw := wager.Wager{
		UserID:    userID,
		GameID:    req.GameID,
		Kind:      req.Type,
		Selection: req.Selection,
		Condition: &cond,
		Odds:      req.Odds,
		Stake:     req.Amount,
	}
	if req.PlacedAt != nil {
		nw.PlacedAt = req.PlacedAt.UTC()
	} else {
		nw.PlacedAt = a.now()
	}

	saved, err := a.Wagers.AddWager(r.Context(), nw)
	if err != nil {
		a.logger().Error("add wager failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save wager")
		return
	}
	writeJSON(w, http.StatusCreated, toWagerView(saved, &game))
}

// deleteWager remove a aposta; o snapshot recalculado já não a considera
func (a *API) deleteWager(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	wagerID := chi.URLParam(r, "wagerId")

	err := a.Wagers.DeleteWager(r.Context(), userID, wagerID)
	if errors.Is(err, wager.ErrNotFound) {
		writeError(w, http.StatusNotFound, "wager not found")
		return
	}
	if err != nil {
		a.logger().Error("delete wager failed", zap.String("user_id", userID), zap.String("wager_id", wagerID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete wager")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
