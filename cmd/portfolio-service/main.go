package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httpapi "github.com/radieske/sports-bet-settlement/internal/portfolio/http"
	"github.com/radieske/sports-bet-settlement/internal/portfolio/ws"
	"github.com/radieske/sports-bet-settlement/internal/shared/cache"
	"github.com/radieske/sports-bet-settlement/internal/shared/config"
	"github.com/radieske/sports-bet-settlement/internal/shared/db"
	"github.com/radieske/sports-bet-settlement/internal/shared/kafka"
	"github.com/radieske/sports-bet-settlement/internal/shared/logger"
	"github.com/radieske/sports-bet-settlement/internal/shared/metrics"
	"github.com/radieske/sports-bet-settlement/internal/store"
)

func main() {
	// carrega config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// conecta com db Postgres e aplica migrações
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if err := store.Migrate(pg); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}
	log.Info("postgres connected")

	// conecta com cache Redis
	redisClient, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	// writer Kafka para game_finalized (ação de admin)
	finalized := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicGameFinalized)
	defer finalized.Close()

	repo := store.NewPostgres(pg, log)
	games := cache.NewGameCache(redisClient, repo, cfg.GameCacheTTL, log)

	// websocket: liquidações chegam via Redis Pub/Sub publicadas pelo settlement-worker
	origins := cfg.AllowedOrigins()
	hub := ws.NewHub(log, func(r *http.Request) bool { return originAllowed(origins, r.Header.Get("Origin")) })
	ws.StartRedisSubscriber(ctx, redisClient, cfg.RedisPubSubChannel, hub, log)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "portfolio_requests_total", Help: "requisições por rota"}, []string{"route"})
	prometheus.MustRegister(requests)

	api := &httpapi.API{
		Log:       log,
		Wagers:    repo,
		Games:     repo,
		GameInfo:  games,
		Finalized: finalized,
		WS:        hub,
		Origins:   origins,
		OnRequest: func(route string) { requests.WithLabelValues(route).Inc() },
	}

	// sobe servidor de métricas e health
	msrv := metrics.StartMetricsServer(cfg.MetricsPort, log, map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("portfolio-service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	_ = srv.Shutdown(sctx)
	_ = msrv.Shutdown(sctx)
}

// originAllowed aplica a mesma lista do CORS ao upgrade do websocket
func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
