package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/sports-bet-settlement/internal/settlement/consumer"
	"github.com/radieske/sports-bet-settlement/internal/settlement/grading"
	"github.com/radieske/sports-bet-settlement/internal/settlement/processor"
	"github.com/radieske/sports-bet-settlement/internal/settlement/publisher"
	"github.com/radieske/sports-bet-settlement/internal/settlement/sweeper"
	"github.com/radieske/sports-bet-settlement/internal/shared/cache"
	"github.com/radieske/sports-bet-settlement/internal/shared/config"
	"github.com/radieske/sports-bet-settlement/internal/shared/db"
	"github.com/radieske/sports-bet-settlement/internal/shared/kafka"
	"github.com/radieske/sports-bet-settlement/internal/shared/logger"
	"github.com/radieske/sports-bet-settlement/internal/shared/metrics"
	"github.com/radieske/sports-bet-settlement/internal/store"
	"github.com/radieske/sports-bet-settlement/pkg/wager"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	tie, err := grading.ParseTiePolicy(cfg.SpreadTiePolicy)
	if err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if err := store.Migrate(pg); err != nil {
		log.Fatal("migrations", zap.Error(err))
	}

	redisClient, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	if cfg.Env == "local" {
		if err := kafka.EnsureTopics(ctx, cfg.KafkaBrokers, log,
			cfg.TopicGameFinalized, cfg.TopicGameFinalizedDLQ, cfg.TopicBetSettled, cfg.TopicSettlementCompleted,
		); err != nil {
			log.Warn("kafka topics not ensured", zap.Error(err))
		}
	}

	repo := store.NewPostgres(pg, log)

	// Métricas Prometheus
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_messages_consumed_total", Help: "mensagens game_finalized consumidas"})
	graded := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_wagers_graded_total", Help: "apostas liquidadas por resultado"}, []string{"result"})
	wagerErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_wager_errors_total", Help: "falhas de liquidação por estágio"}, []string{"stage"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_batches_total", Help: "lotes de liquidação executados"})
	batchDuration := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "settlement_batch_duration_seconds", Help: "duração do lote", Buckets: prometheus.DefBuckets})
	pipelineErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_pipeline_errors_total", Help: "erros de consumo/publicação por fase"}, []string{"stage"})
	prometheus.MustRegister(consumed, graded, wagerErrors, batches, batchDuration, pipelineErrors)

	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer settledWriter.Close()
	completedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementCompleted)
	defer completedWriter.Close()
	dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicGameFinalizedDLQ)
	defer dlqWriter.Close()

	pub := &publisher.Publisher{
		Log:       log,
		Settled:   settledWriter,
		Completed: completedWriter,
		Broadcast: publisher.NewRedisBroadcaster(redisClient),
		Channel:   cfg.RedisPubSubChannel,
		OnError:   func(stage string) { pipelineErrors.WithLabelValues(stage).Inc() },
	}

	// Instancia o processor, conectando callbacks de métricas e publicação
	proc := &processor.Processor{
		Log:     log,
		Games:   repo, // estado FINAL e placar lidos da fonte, sem cache
		Wagers:  repo,
		Grader:  grading.Engine{SpreadTie: tie},
		Workers: cfg.SettlementWorkers,

		OnGraded: func(r wager.Result) { graded.WithLabelValues(string(r)).Inc() },
		OnError:  func(stage string) { wagerErrors.WithLabelValues(stage).Inc() },
		OnSettled: func(ctx context.Context, o processor.Outcome) {
			if err := pub.BetSettled(ctx, o); err != nil {
				log.Warn("bet_settled not published", zap.Error(err))
			}
		},
		OnBatch: func(r *processor.Report, elapsed time.Duration) {
			batches.Inc()
			batchDuration.Observe(elapsed.Seconds())

			pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer pcancel()
			if err := pub.SettlementCompleted(pctx, r, elapsed); err != nil {
				log.Warn("settlement_completed not published", zap.Error(err))
			}
		},
	}

	// Sweeper: re-liquida jogos finalizados que ainda têm apostas pending
	sw := sweeper.New(log, repo, proc)
	if err := sw.Register(ctx, cfg.SweepCron); err != nil {
		log.Fatal("sweeper", zap.Error(err))
	}
	sw.Start()
	defer sw.Stop()

	// Servidor HTTP para métricas e health check
	srv := metrics.StartMetricsServer(cfg.MetricsPort, log, map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = srv.Shutdown(sctx)
	}()

	// Consumer group settlement-worker
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicGameFinalized, "settlement-worker")
	defer reader.Close()

	c := &consumer.Consumer{
		Log:        log,
		Reader:     reader,
		Settler:    proc,
		DLQ:        dlqWriter,
		OnConsumed: func() { consumed.Inc() },
		OnError:    func(stage string) { pipelineErrors.WithLabelValues(stage).Inc() },
	}

	log.Info("settlement-worker started",
		zap.Int("workers", cfg.SettlementWorkers),
		zap.String("sweep_cron", cfg.SweepCron),
		zap.String("spread_tie_policy", string(tie)),
	)
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("consumer stopped with error", zap.Error(err))
	}
	log.Info("settlement-worker stopped")
}
