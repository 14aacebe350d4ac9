package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/traceline/payment-service/internal/domain/model"
	"github.com/traceline/payment-service/internal/domain/repository"
	"github.com/traceline/payment-service/internal/middleware/auth"
	"github.com/traceline/payment-service/internal/usecase"
)

// AuthHandler issues the bearer credentials the admission gate verifies.
type AuthHandler struct {
	tokens   *auth.TokenService
	users    repository.UserRepository
	clock    usecase.Clock
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	tokens *auth.TokenService,
	users repository.UserRepository,
	clock usecase.Clock,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		tokens:   tokens,
		users:    users,
		clock:    clock,
		validate: validator.New(),
		logger:   logger,
	}
}

type signinRequest struct {
	UID           string `json:"uid" validate:"required"`
	Username      string `json:"username" validate:"required"`
	WalletAddress string `json:"walletAddress"`
	LoginType     string `json:"loginType" validate:"required,oneof=wallet google apple"`
}

type signinResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Signin handles POST /auth: upserts the caller profile and returns a signed
// credential. This endpoint sits behind the strict rate limit budget.
func (h *AuthHandler) Signin(c echo.Context) error {
	var req signinRequest
	if err := c.Bind(&req); err != nil {
		return respondBadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return respondBadRequest(c, err.Error())
	}

	user := &model.User{
		UID:           req.UID,
		Username:      req.Username,
		WalletAddress: req.WalletAddress,
		LoginType:     req.LoginType,
	}
	if err := h.users.Upsert(c.Request().Context(), user); err != nil {
		return respondError(c, h.logger, err)
	}

	token, err := h.tokens.Issue(auth.AuthUser{
		UID:           user.UID,
		Username:      user.Username,
		WalletAddress: user.WalletAddress,
		LoginType:     user.LoginType,
	}, h.clock.Now())
	if err != nil {
		return respondError(c, h.logger, err)
	}

	h.logger.Info("Credential issued", zap.String("uid", user.UID))

	return respondData(c, http.StatusOK, signinResponse{Token: token, User: user})
}
