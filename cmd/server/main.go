package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/parking-booking-backend/internal/app"
	"github.com/nekogravitycat/parking-booking-backend/internal/booking"
	"github.com/nekogravitycat/parking-booking-backend/internal/config"
	"github.com/nekogravitycat/parking-booking-backend/internal/db"
	"github.com/nekogravitycat/parking-booking-backend/internal/logger"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/lease"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/mq"
)

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.IsProduction)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zap.ReplaceGlobals(zlog)

	// Connect DB
	pool, err := db.NewPool(ctx, cfg.DBDSN, int32(cfg.DBMaxConns))
	if err != nil {
		zlog.Fatal("failed to connect to db", zap.Error(err))
	}
	defer pool.Close()

	// Redis only guards the reclamation pass; run without it if unreachable.
	rdb, err := lease.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		zlog.Warn("redis unavailable, reclamation lease disabled", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var publisher booking.Publisher = mq.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		p, err := mq.NewPublisher(cfg.RabbitMQURL, cfg.BookingExchange)
		if err != nil {
			zlog.Warn("rabbitmq unavailable, booking events disabled", zap.Error(err))
		} else {
			defer p.Close()
			publisher = p
		}
	}

	container := app.NewContainer(app.Config{
		IsProduction:          cfg.IsProduction,
		ProdOrigins:           cfg.ProdOrigins,
		DBPool:                pool,
		Redis:                 rdb,
		Publisher:             publisher,
		Logger:                zlog,
		JWTSecret:             cfg.JWTSecret,
		JWTTTL:                cfg.JWTAccessTokenTTL,
		HardwareKeyHash:       cfg.HardwareKeyHash,
		HardwareRatePerMinute: cfg.HardwareRatePerMinute,
		ReclaimInterval:       cfg.ReclaimInterval,
		ExpiryWindow:          cfg.ExpiryWindow,
		ExpiryWarning:         cfg.ExpiryWarning,
		MinBillingMinutes:     cfg.MinBillingMinutes,
		ProvisionalEndOffset:  cfg.ProvisionalEndOffset,
	})

	// Reclamation scheduler
	if err := container.Scheduler.Start(); err != nil {
		zlog.Fatal("failed to start reclamation scheduler", zap.Error(err))
	}

	// Hardware signal consumer
	consumerDone := make(chan struct{})
	if cfg.RabbitMQURL != "" {
		consumer := mq.NewConsumer(cfg.RabbitMQURL, cfg.BookingExchange, cfg.HardwareQueue, []string{"hardware.#"}, zlog)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx, container.HardwareHandler); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("hardware consumer stopped", zap.Error(err))
			}
		}()
	} else {
		close(consumerDone)
	}

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: container.Router,
	}

	// Run server in separate goroutine
	go func() {
		zlog.Info("server running", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for Ctrl+C
	<-ctx.Done()
	zlog.Info("shutdown signal received")

	// No new reclamation passes once shutdown starts.
	container.Scheduler.Stop()

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	<-consumerDone
	zlog.Info("server exited gracefully")
}
