package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	domainErrors "github.com/traceline/payment-service/internal/domain/errors"
)

// envelope is the standard response shape of the API surface.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondData(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}

func respondBadRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, envelope{Success: false, Error: message})
}

// respondError maps a domain error onto the HTTP outcome class. Internal
// failures are logged with their cause and reported generically.
func respondError(c echo.Context, logger *zap.Logger, err error) error {
	status := domainErrors.StatusOf(err)

	if status == http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Request().URL.Path),
			zap.String("method", c.Request().Method),
			zap.Error(err))
		return c.JSON(status, envelope{Success: false, Error: "Internal server error"})
	}

	var pe *domainErrors.PaymentError
	message := err.Error()
	if errors.As(err, &pe) {
		message = pe.Message
	}
	return c.JSON(status, envelope{Success: false, Error: message})
}
