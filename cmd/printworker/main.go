// Command printworker consumes order events from Kafka and prints receipts
// for restaurants with automatic printing turned on.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/tablekiosk/api/internal/config"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/enum"
	"github.com/tablekiosk/api/internal/events"
	"github.com/tablekiosk/api/internal/logger"
	"github.com/tablekiosk/api/internal/printing"
	"github.com/tablekiosk/api/internal/service"
	"github.com/tablekiosk/api/internal/ws"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()

	// Fallback notices reach staff browsers only through the Redis bridge;
	// without Redis they are recorded as print jobs and nothing more.
	var publisher ws.Publisher
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		publisher = ws.NewRedisBridge(rdb, nil, log)
	}

	printer := service.NewPrintService(database.New(pool), printing.NewClient(cfg.PrintNodeBaseURL), publisher, log)

	reader := events.NewReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	defer reader.Close()

	consumer := events.NewConsumer(reader, log)
	consumer.Handle(enum.EventOrderCreated, printer.AutoPrint)

	log.Info("print worker started", zap.String("topic", cfg.KafkaTopic), zap.String("group", cfg.KafkaGroupID))
	if err := consumer.Run(ctx); err != nil {
		log.Fatal("consumer stopped", zap.Error(err))
	}
}
