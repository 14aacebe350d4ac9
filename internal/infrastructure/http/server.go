package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	handlers "github.com/traceline/payment-service/internal/adapter/handler/http"
	"github.com/traceline/payment-service/internal/config"
	"github.com/traceline/payment-service/internal/infrastructure/database"
	"github.com/traceline/payment-service/internal/middleware/auth"
	"github.com/traceline/payment-service/internal/ratelimit"
	"github.com/traceline/payment-service/internal/usecase"
)

// Dependencies carries the wired services the HTTP surface exposes.
type Dependencies struct {
	Repos       *database.Repositories
	Lifecycle   *usecase.PaymentLifecycleService
	Stats       *usecase.StatsService
	Tokens      *auth.TokenService
	AuthLimiter *ratelimit.Limiter
	APILimiter  *ratelimit.Limiter
	Clock       usecase.Clock
}

type Server struct {
	config *config.Config
	logger *zap.Logger
	echo   *echo.Echo
	deps   Dependencies
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.Service.ClientURL},
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE},
	}))

	s := &Server{
		config: cfg,
		logger: logger,
		echo:   e,
		deps:   deps,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the routed handler for in-process serving.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.HTTP.Host, s.config.Server.HTTP.Port)
	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": s.config.Service.Name,
		})
	})

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(s.deps.Lifecycle, s.deps.Stats, s.logger)
	authHandler := handlers.NewAuthHandler(s.deps.Tokens, s.deps.Repos.User, s.deps.Clock, s.logger)
	userHandler := handlers.NewUserHandler(s.deps.Repos.User, s.logger)

	jwtConfig := auth.JWTConfig{
		Tokens: s.deps.Tokens,
		Logger: s.logger,
	}
	apiLimit := ratelimit.Middleware(s.deps.APILimiter, s.logger)
	authLimit := ratelimit.Middleware(s.deps.AuthLimiter, s.logger)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	// Credential issue sits behind its own strict budget
	v1.POST("/auth", authHandler.Signin, authLimit)

	// Public reads carry no admission budget. The optional credential is
	// still decoded so owner-scoped views work.
	reads := v1.Group("", auth.OptionalJWTMiddleware(jwtConfig))
	reads.GET("/payments", paymentHandler.ListPayments)
	reads.GET("/payments/stats", paymentHandler.GetStats)
	reads.GET("/payments/:id", paymentHandler.GetPayment)
	reads.GET("/users", userHandler.GetUser)

	// The wallet-network callback mutates state, so it is budgeted even
	// though it arrives unauthenticated; a presented credential triggers
	// the ownership check.
	v1.PUT("/payments", paymentHandler.UpdatePayment, auth.OptionalJWTMiddleware(jwtConfig), apiLimit)

	// Mutating routes require a verified identity.
	protected := v1.Group("", auth.JWTMiddleware(jwtConfig), apiLimit)
	protected.POST("/payments", paymentHandler.CreatePayment)
	protected.POST("/payments/:id/retry", paymentHandler.RetryPayment)
	protected.POST("/payments/:id/refund", paymentHandler.RefundPayment)
}
