package ratelimit

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/traceline/payment-service/internal/middleware/auth"
)

// Middleware enforces the limiter's budget per caller identity: the
// verified uid when the request is authenticated, the client IP otherwise.
// Identities never interfere with each other.
func Middleware(limiter *Limiter, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := c.RealIP()
			if user, err := auth.GetUserFromContext(c); err == nil {
				identity = user.UID
			}

			if err := limiter.Allow(identity); err != nil {
				logger.Warn("Request quota exceeded",
					zap.String("identity", identity),
					zap.String("path", c.Request().URL.Path))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"success": false,
					"error":   "Too many requests, try again later",
				})
			}

			return next(c)
		}
	}
}
