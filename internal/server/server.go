package server

import (
	"fmt"
	"net/http"
	"time"

	"flash-sale/internal/config"
	"flash-sale/internal/database"
	"flash-sale/internal/domain"
	"flash-sale/internal/events"
	"flash-sale/internal/logger"
	"flash-sale/internal/metrics"
	custommiddleware "flash-sale/internal/middleware"
	"flash-sale/internal/ratelimit"
	"flash-sale/internal/repository"
	"flash-sale/internal/service"
	"flash-sale/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const rateLimitKeyPrefix = "ratelimit"

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

func NewServer(cfg *config.Config, log *zap.Logger, db database.Service, rdb *redis.Client, registry *metrics.Registry, publisher events.Publisher) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(custommiddleware.LoggingMiddleware(logger.ForComponent(log, "http")))
	router.Use(custommiddleware.ErrorHandlingMiddleware(log))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, !cfg.Server.IsProduction()))

	router.Get("/health", healthHandler(db, rdb))
	router.Handle("/metrics", registry.Handler())

	// Repositories
	productRepo := repository.NewProductRepository(db.DB())
	inventoryRepo := repository.NewInventoryRepository(db.DB())
	orderRepo := repository.NewOrderRepository(db.DB())

	// Services
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(rdb), rateLimitKeyPrefix, registry, logger.ForComponent(log, "ratelimit"))
	inventoryService := service.NewInventoryService(inventoryRepo, productRepo, registry, logger.ForComponent(log, "inventory"))
	purchaseService := service.NewPurchaseService(
		inventoryService,
		limiter,
		domain.RateLimitPolicy{MaxRequests: cfg.RateLimit.IPRequests, Window: cfg.RateLimit.IPWindow},
		publisher,
		registry,
		logger.ForComponent(log, "purchase"),
	)
	catalogService := service.NewCatalogService(productRepo, orderRepo, logger.ForComponent(log, "catalog"))

	// Handlers
	userPolicy := domain.RateLimitPolicy{MaxRequests: cfg.RateLimit.UserRequests, Window: cfg.RateLimit.UserWindow}
	stockPolicy := domain.RateLimitPolicy{MaxRequests: cfg.RateLimit.StockRequests, Window: cfg.RateLimit.StockWindow}

	transport.NewPurchaseHandler(purchaseService, userPolicy, log).RegisterRoutes(router)
	transport.NewProductHandler(inventoryService, log).RegisterRoutes(router,
		custommiddleware.RateLimitMiddleware(limiter, domain.TierStock, stockPolicy, log))
	transport.NewAdminHandler(catalogService, log).RegisterRoutes(router,
		custommiddleware.AuthMiddleware(cfg.JWT.Secret, log),
		custommiddleware.RequireAdmin(log))

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      otelhttp.NewHandler(router, "flash-sale"),
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: log,
		db:     db,
		redis:  rdb,
	}
}

func healthHandler(db database.Service, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK

		dbHealth := db.Health()
		if dbHealth["status"] != "up" {
			status = http.StatusServiceUnavailable
		}

		redisHealth := map[string]string{"status": "up"}
		if err := database.RedisHealth(r.Context(), rdb); err != nil {
			// Degraded only: the limiter fails open without Redis.
			redisHealth = map[string]string{"status": "down", "error": "redis unreachable"}
		}

		custommiddleware.RespondWithJSON(w, status, map[string]interface{}{
			"database": dbHealth,
			"redis":    redisHealth,
		})
	}
}

// Close releases the Redis client and the database pool, in that order.
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	return nil
}
