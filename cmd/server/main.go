package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/traceline/payment-service/internal/config"
	"github.com/traceline/payment-service/internal/infrastructure/cache"
	"github.com/traceline/payment-service/internal/infrastructure/database"
	grpcServer "github.com/traceline/payment-service/internal/infrastructure/grpc"
	httpServer "github.com/traceline/payment-service/internal/infrastructure/http"
	"github.com/traceline/payment-service/internal/middleware/auth"
	"github.com/traceline/payment-service/internal/pkg/logger"
	"github.com/traceline/payment-service/internal/ratelimit"
	"github.com/traceline/payment-service/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		Development: cfg.Service.Environment != "production",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, zapLogger)

	// Optional redis-backed stats cache
	var statsCache usecase.StatsCache
	if cfg.Service.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(
			cfg.Service.Redis.Addr,
			cfg.Service.Redis.Password,
			cfg.Service.Redis.DB,
		)
		if err != nil {
			zapLogger.Warn("Redis unavailable, stats cache disabled", zap.Error(err))
		} else {
			statsCache = redisClient
			defer redisClient.Close()
		}
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	clock := usecase.SystemClock()
	lifecycle := usecase.NewPaymentLifecycleService(repos.Payment, repos.User, repos.Product, clock, zapLogger)
	stats := usecase.NewStatsService(repos.Payment, statsCache, cfg.Service.Stats.CacheTTL, zapLogger)
	tokens := auth.NewTokenService(cfg.Service.JWT.Secret, cfg.Service.JWT.Issuer, cfg.Service.JWT.TokenTTL)

	// Admission gate rate limiters
	authLimiter := ratelimit.NewLimiter(cfg.Service.RateLimit.AuthMaxRequests, cfg.Service.RateLimit.AuthWindow)
	apiLimiter := ratelimit.NewLimiter(cfg.Service.RateLimit.APIMaxRequests, cfg.Service.RateLimit.APIWindow)
	authLimiter.StartSweeper(ctx, cfg.Service.RateLimit.SweepInterval, zapLogger)
	apiLimiter.StartSweeper(ctx, cfg.Service.RateLimit.SweepInterval, zapLogger)

	// Background reaper for overdue pending payments
	go runReaper(ctx, lifecycle, cfg.Service.Reaper.Interval, zapLogger)

	// Initialize servers
	grpcSrv := grpcServer.NewServer(cfg, zapLogger)
	httpSrv := httpServer.NewServer(cfg, zapLogger, httpServer.Dependencies{
		Repos:       repos,
		Lifecycle:   lifecycle,
		Stats:       stats,
		Tokens:      tokens,
		AuthLimiter: authLimiter,
		APILimiter:  apiLimiter,
		Clock:       clock,
	})

	// Start servers
	go func() {
		if err := grpcSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start gRPC server", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down servers...")

	// Shutdown servers
	if err := grpcSrv.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	if err := httpSrv.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Servers shut down successfully")
}

// runReaper periodically expires overdue pending payments. Lazy expiry on
// read already guarantees correctness; the reaper keeps listings tidy when
// nobody is reading.
func runReaper(ctx context.Context, lifecycle *usecase.PaymentLifecycleService, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reapCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			count, err := lifecycle.Reap(reapCtx)
			cancel()
			if err != nil {
				logger.Error("Expiry reap failed", zap.Error(err))
				continue
			}
			if count > 0 {
				logger.Info("Expired overdue pending payments", zap.Int("count", count))
			}
		case <-ctx.Done():
			logger.Info("Reaper stopped")
			return
		}
	}
}
