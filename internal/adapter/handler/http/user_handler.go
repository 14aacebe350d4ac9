package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/traceline/payment-service/internal/domain/repository"
)

// UserHandler serves profile lookups for payment owners.
type UserHandler struct {
	users  repository.UserRepository
	logger *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(users repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// GetUser handles GET /users?uid=
func (h *UserHandler) GetUser(c echo.Context) error {
	uid := c.QueryParam("uid")
	if uid == "" {
		return respondBadRequest(c, "uid query parameter is required")
	}

	user, err := h.users.GetByUID(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if user == nil {
		return c.JSON(http.StatusNotFound, envelope{Success: false, Error: "User not found"})
	}

	return respondData(c, http.StatusOK, user)
}
