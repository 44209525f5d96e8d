package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/shared/kafka"
	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

// WagerStore é o subconjunto do store usado pelas rotas de apostas/portfólio
type WagerStore interface {
	ListWagers(ctx context.Context, userID string) ([]wager.Wager, error)
	AddWager(ctx context.Context, w wager.Wager) (wager.Wager, error)
	DeleteWager(ctx context.Context, userID, wagerID string) error
}

// GameStore cobre as ações administrativas de jogos
type GameStore interface {
	UpsertGame(ctx context.Context, g wager.Game) error
	FinalizeGame(ctx context.Context, gameID string, homeScore, awayScore int) (wager.Game, bool, error)
	ListGames(ctx context.Context, openOnly bool) ([]wager.Game, error)
}

// GameReader resolve dados do jogo (cache read-through)
type GameReader interface {
	GetGame(ctx context.Context, gameID string) (wager.Game, error)
}

// API expõe o REST do portfolio-service e o websocket de liquidações
type API struct {
	Log       *zap.Logger
	Wagers    WagerStore
	Games     GameStore
	GameInfo  GameReader
	Finalized kafka.MessageWriter // tópico game_finalized
	WS        http.Handler        // opcional
	Origins   []string
	Now       func() time.Time

	OnRequest func(route string) // métricas
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.Origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(a.observe)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		r.Route("/v1/users/{userId}", func(r chi.Router) {
			r.Get("/wagers", a.listWagers)               // ?view=tracked|recent
			r.Post("/wagers", a.createWager)             // cria aposta pending
			r.Delete("/wagers/{wagerId}", a.deleteWager) // remove aposta
			r.Get("/portfolio", a.getPortfolio)          // ?timeframe=1D|1W|1M|3M|YTD|All
		})

		r.Route("/v1/admin/games", func(r chi.Router) {
			r.Get("/", a.listGames)                   // ?open=true
			r.Put("/{gameId}", a.upsertGame)          // agenda do jogo
			r.Post("/{gameId}/final", a.finalizeGame) // placar final + game_finalized
		})
	})

	if a.WS != nil {
		r.Handle("/v1/ws", a.WS)
	}
	return r
}

// observe registra a requisição com o padrão da rota (sem ids) para métricas e log
func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		if a.OnRequest != nil {
			a.OnRequest(route)
		}
		a.logger().Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *API) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
