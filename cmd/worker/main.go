package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/framework/internal/infrastructure/config"
	"github.com/erp/framework/internal/infrastructure/logger"
	"github.com/erp/framework/internal/infrastructure/persistence"
	"github.com/erp/framework/internal/infrastructure/stream"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// The worker runs the consumer runtime and the emission reconciler for
// one service deployment. Mutations themselves run inside the owning
// service's request path; this process only drains the stream and
// replays journaled emission failures.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting framework worker",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("consumer_group", cfg.Stream.ConsumerGroup),
	)

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	pingCancel()
	defer func() {
		_ = redisClient.Close()
	}()

	publisher := stream.NewRedisPublisher(redisClient, cfg.Stream.MaxStreamLength, log)
	auditor := persistence.NewGormAuditRepository(db.DB)
	journal := persistence.NewGormFailureJournal(db.DB)

	consumer := stream.NewRedisConsumer(redisClient, stream.ConsumerConfig{
		Group:          cfg.Stream.ConsumerGroup,
		Consumer:       cfg.Stream.ConsumerName,
		EntityTypes:    cfg.Stream.EntityTypes,
		BatchSize:      cfg.Stream.BatchSize,
		BlockTimeout:   cfg.Stream.BlockTimeout,
		ReclaimTimeout: cfg.Stream.ReclaimTimeout,
	}, log)

	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		log.Fatal("Failed to start consumer runtime", zap.Error(err))
	}

	var reconciler *stream.Reconciler
	if cfg.Stream.ReplayEnabled {
		reconciler = stream.NewReconciler(journal, publisher, auditor, stream.ReconcilerConfig{
			BatchSize:        cfg.Stream.ReplayBatchSize,
			PollInterval:     cfg.Stream.ReplayInterval,
			MaxRetries:       cfg.Stream.ReplayMaxRetries,
			BaseBackoff:      cfg.Stream.ReplayBackoff,
			CleanupEnabled:   true,
			CleanupRetention: cfg.Stream.RetentionPeriod,
			CleanupInterval:  time.Hour,
		}, log)
		if err := reconciler.Start(ctx); err != nil {
			log.Fatal("Failed to start reconciler", zap.Error(err))
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := consumer.Stop(shutdownCtx); err != nil {
		log.Error("Consumer runtime shutdown failed", zap.Error(err))
	}
	if reconciler != nil {
		if err := reconciler.Stop(shutdownCtx); err != nil {
			log.Error("Reconciler shutdown failed", zap.Error(err))
		}
	}
	log.Info("Worker stopped")
}
