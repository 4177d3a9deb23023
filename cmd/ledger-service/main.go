package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	lhttp "github.com/radieske/bet-ledger/internal/ledger-service/http"
	"github.com/radieske/bet-ledger/internal/ledger-service/producer"
	"github.com/radieske/bet-ledger/internal/ledger-service/repo"
	"github.com/radieske/bet-ledger/internal/ledger-service/stats"
	"github.com/radieske/bet-ledger/internal/shared/cache"
	"github.com/radieske/bet-ledger/internal/shared/config"
	"github.com/radieske/bet-ledger/internal/shared/db"
	skafka "github.com/radieske/bet-ledger/internal/shared/kafka"
	"github.com/radieske/bet-ledger/internal/shared/logger"
	"github.com/radieske/bet-ledger/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	repository := repo.NewPostgres(pg)
	if err := repository.EnsureSchema(context.Background()); err != nil {
		log.Fatal("schema", zap.Error(err))
	}
	if err := repository.SeedBookmakers(context.Background(), repo.DefaultBookmakers); err != nil {
		log.Fatal("seed bookmakers", zap.Error(err))
	}

	// Redis opcional pro cache de estatísticas
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
	} else {
		log.Info("stats cache disabled (REDIS_ADDR empty)")
	}
	st := stats.New(pg, rdb, cfg.StatsCacheTTL)

	// Kafka opcional pros eventos do ledger
	var publ lhttp.Publisher = producer.Noop{}
	if cfg.KafkaBrokers != "" {
		writer := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicLedgerEvents)
		defer writer.Close()
		publ = producer.NewKafkaPublisher(writer)
		log.Info("ledger events enabled", zap.String("topic", cfg.TopicLedgerEvents))
	}

	api := lhttp.NewServer(log, repository, st, publ)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health em porta separada
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		if rdb != nil {
			return rdb.Ping(ctx).Err()
		}
		return nil
	})
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	log.Info("ledger-service listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
