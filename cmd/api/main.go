package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"flash-sale/internal/config"
	"flash-sale/internal/database"
	"flash-sale/internal/events"
	"flash-sale/internal/logger"
	"flash-sale/internal/metrics"
	"flash-sale/internal/server"
	"flash-sale/internal/telemetry"

	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *server.Server, shutdownTracing telemetry.ShutdownFunc, log *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop()

	// In-flight purchases get 30 seconds to commit or roll back.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := shutdownTracing(ctx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}

	if err := apiServer.Close(); err != nil {
		log.Error("Error closing server resources", zap.Error(err))
	}

	log.Info("Server exiting")
	done <- true
}

// auditSales logs every purchase notification until ctx ends.
func auditSales(ctx context.Context, bus *events.RedisBus, log *zap.Logger) {
	sales, cancel, err := bus.Subscribe(ctx)
	if err != nil {
		log.Warn("Sales audit log disabled", zap.Error(err))
		return
	}
	defer cancel()

	for event := range sales {
		log.Info("Sale committed",
			zap.String("order_id", event.OrderID.String()),
			zap.Int64("product_id", event.ProductID),
			zap.String("user_id", event.UserID),
			zap.Int("quantity", event.Quantity),
			zap.Int("remaining_stock", event.RemainingStock),
		)
	}
}

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting flash sale API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	if cfg.JWT.Secret == "" {
		if cfg.Server.IsProduction() {
			log.Fatal("JWT_SECRET must be set in production")
		}
		log.Warn("JWT_SECRET not set, admin API will reject every request")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbService, err := database.New(ctx, cfg.Database, logger.ForComponent(log, "database"))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database health check", zap.Any("health", dbService.Health()))

	if err := database.RunMigrations(dbService.DB(), cfg.Database.MigrationsDir, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database migrations completed successfully")

	rdb := database.NewRedis(ctx, cfg.Redis, logger.ForComponent(log, "redis"))

	shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, logger.ForComponent(log, "telemetry"))
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	registry := metrics.NewRegistry()
	bus := events.NewRedisBus(rdb, cfg.Events.Channel, registry, logger.ForComponent(log, "events"))
	go auditSales(ctx, bus, logger.ForComponent(log, "audit"))

	srv := server.NewServer(cfg, log, dbService, rdb, registry, bus)

	done := make(chan bool, 1)
	go gracefulShutdown(srv, shutdownTracing, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("HTTP server error", zap.Error(err))
	}

	<-done
	cancel()
	log.Info("Graceful shutdown complete")
}
