package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/tablekiosk/api/internal/cart"
	"github.com/tablekiosk/api/internal/config"
	"github.com/tablekiosk/api/internal/database"
	"github.com/tablekiosk/api/internal/events"
	"github.com/tablekiosk/api/internal/logger"
	mw "github.com/tablekiosk/api/internal/middleware"
	"github.com/tablekiosk/api/internal/printing"
	"github.com/tablekiosk/api/internal/router"
	"github.com/tablekiosk/api/internal/service"
	"github.com/tablekiosk/api/internal/storage"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal("ping database", zap.Error(err))
	}
	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run(ctx)

	// Without Redis everything stays in process: one instance only.
	var (
		publisher ws.Publisher = hub
		mem                    = cart.NewMemoryStore()
		carts     cart.Store   = mem
		idem      mw.IdempotencyKV
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("ping redis", zap.Error(err))
		}
		bridge := ws.NewRedisBridge(rdb, hub, log)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.Error("redis bridge stopped", zap.Error(err))
			}
		}()
		publisher = bridge
		carts = cart.NewRedisStore(rdb)
		idem = rdb
	} else {
		log.Warn("REDIS_ADDR not set; carts and realtime events are local to this instance")
		go mem.RunCleanup(time.Minute, ctx.Done())
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := events.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer writer.Close()
		relay := events.NewRelay(pool, func(db database.DBTX) events.OutboxStore {
			return database.New(db)
		}, writer, log)
		go relay.Run(ctx)
	} else {
		log.Warn("KAFKA_BROKERS not set; outbox events stay pending")
	}

	images, err := storage.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	if err != nil {
		log.Fatal("init image storage", zap.Error(err))
	}

	printer := service.NewPrintService(queries, printing.NewClient(cfg.PrintNodeBaseURL), publisher, log)

	limiter := mw.NewRateLimiter(cfg.KioskRateRPS, cfg.KioskRateBurst)
	go limiter.RunCleanup(time.Minute, ctx.Done())

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(router.Deps{
			Config:       cfg,
			Queries:      queries,
			Pool:         pool,
			Hub:          hub,
			Publisher:    publisher,
			Carts:        carts,
			Idempotency:  idem,
			KioskLimiter: limiter,
			Images:       images,
			Printer:      printer,
			Logger:       log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
