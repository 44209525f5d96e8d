package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/portfolio/analytics"
)

// getPortfolio recalcula o snapshot a partir das apostas atuais do usuário
func (a *API) getPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	tf, err := analytics.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wagers, err := a.Wagers.ListWagers(r.Context(), userID)
	if err != nil {
		a.logger().Error("list wagers failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not list wagers")
		return
	}

	snap, err := analytics.SummarizeTimeframe(wagers, tf, a.now())
	if err != nil {
		a.logger().Error("portfolio summary failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toPortfolioResponse(userID, tf, snap))
}
