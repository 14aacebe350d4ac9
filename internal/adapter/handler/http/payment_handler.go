package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/traceline/payment-service/internal/domain/entity"
	"github.com/traceline/payment-service/internal/domain/model"
	"github.com/traceline/payment-service/internal/domain/repository"
	"github.com/traceline/payment-service/internal/middleware/auth"
	"github.com/traceline/payment-service/internal/usecase"
)

// PaymentHandler routes payment requests into the lifecycle manager.
type PaymentHandler struct {
	lifecycle *usecase.PaymentLifecycleService
	stats     *usecase.StatsService
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(
	lifecycle *usecase.PaymentLifecycleService,
	stats *usecase.StatsService,
	logger *zap.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		lifecycle: lifecycle,
		stats:     stats,
		validate:  validator.New(),
		logger:    logger,
	}
}

type createPaymentRequest struct {
	Amount     decimal.Decimal        `json:"amount"`
	Currency   string                 `json:"currency" validate:"required"`
	Memo       string                 `json:"memo"`
	Identifier *string                `json:"identifier"`
	Metadata   map[string]interface{} `json:"metadata"`
	ProductID  string                 `json:"productId"`
	Quantity   int                    `json:"quantity"`
	Service    *model.ServiceRef      `json:"service"`
}

// CreatePayment handles POST /payments. Requires a verified identity; the
// caller becomes the payment owner.
func (h *PaymentHandler) CreatePayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err // RequireAuth already wrote the response
	}

	var req createPaymentRequest
	if err := c.Bind(&req); err != nil {
		return respondBadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return respondBadRequest(c, err.Error())
	}

	payment, err := h.lifecycle.Create(c.Request().Context(), usecase.CreateInput{
		OwnerUID:   user.UID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Memo:       req.Memo,
		Identifier: req.Identifier,
		Metadata:   req.Metadata,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		Service:    req.Service,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return respondData(c, http.StatusCreated, entity.NewPaymentView(payment, h.lifecycle.Now()))
}

// GetPayment handles GET /payments/:id
func (h *PaymentHandler) GetPayment(c echo.Context) error {
	payment, err := h.lifecycle.GetPayment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return respondData(c, http.StatusOK, entity.NewPaymentView(payment, h.lifecycle.Now()))
}

// ListPayments handles GET /payments?userId=&status=&page=&limit=
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	params := entity.PaginationParams{}
	if err := c.Bind(&params); err != nil {
		return respondBadRequest(c, "Invalid pagination parameters")
	}
	params.Normalize()

	filter := repository.PaymentFilter{
		OwnerUID: c.QueryParam("userId"),
		Limit:    params.Limit,
		Offset:   params.Offset(),
	}
	if raw := c.QueryParam("status"); raw != "" {
		status := model.PaymentStatus(raw)
		if !knownStatus(status) {
			return respondBadRequest(c, "Unknown status filter: "+raw)
		}
		filter.Status = &status
	}

	payments, total, err := h.lifecycle.ListPayments(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return respondData(c, http.StatusOK, entity.PaginatedPaymentsResponse{
		Data:       entity.NewPaymentViews(payments, h.lifecycle.Now()),
		Pagination: entity.NewPaginationMeta(params, total),
	})
}

// GetStats handles GET /payments/stats?userId=, the public rollup. It is a
// read-only aggregate of public data and carries no admission checks.
func (h *PaymentHandler) GetStats(c echo.Context) error {
	stats, err := h.stats.Stats(c.Request().Context(), c.QueryParam("userId"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return respondData(c, http.StatusOK, stats)
}

type updatePaymentRequest struct {
	PaymentID   string                 `json:"paymentId"`
	Identifier  string                 `json:"identifier"`
	Status      string                 `json:"status" validate:"required"`
	Transaction *model.TransactionData `json:"transaction"`
	Error       *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// UpdatePayment handles PUT /payments, the webhook-style status transition
// endpoint. The wallet network calls it without caller authentication; when
// a credential is presented anyway the ownership check is enforced.
func (h *PaymentHandler) UpdatePayment(c echo.Context) error {
	var req updatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return respondBadRequest(c, "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return respondBadRequest(c, err.Error())
	}

	lookupKey := req.PaymentID
	if lookupKey == "" {
		lookupKey = req.Identifier
	}
	if lookupKey == "" {
		return respondBadRequest(c, "paymentId or identifier is required")
	}

	if user, err := auth.GetUserFromContext(c); err == nil {
		payment, err := h.lifecycle.GetPayment(c.Request().Context(), lookupKey)
		if err != nil {
			return respondError(c, h.logger, err)
		}
		if payment.Owner.UID != user.UID {
			return c.JSON(http.StatusForbidden, envelope{Success: false, Error: "Caller does not own this payment"})
		}
	}

	input := usecase.TransitionInput{
		LookupKey:   lookupKey,
		Target:      model.PaymentStatus(req.Status),
		Transaction: req.Transaction,
		FromWebhook: true,
	}
	if req.Error != nil {
		input.Error = &model.ErrorDetail{Message: req.Error.Message, Code: req.Error.Code}
	}

	payment, err := h.lifecycle.Transition(c.Request().Context(), input)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return respondData(c, http.StatusOK, entity.NewPaymentView(payment, h.lifecycle.Now()))
}

// RetryPayment handles POST /payments/:id/retry
func (h *PaymentHandler) RetryPayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	id := c.Param("id")
	if err := h.authorizeOwner(c, id, user.UID); err != nil {
		return err
	}

	payment, err := h.lifecycle.Retry(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return respondData(c, http.StatusOK, entity.NewPaymentView(payment, h.lifecycle.Now()))
}

type refundPaymentRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

// RefundPayment handles POST /payments/:id/refund
func (h *PaymentHandler) RefundPayment(c echo.Context) error {
	user, err := auth.RequireAuth(c)
	if err != nil {
		return err
	}

	id := c.Param("id")
	if err := h.authorizeOwner(c, id, user.UID); err != nil {
		return err
	}

	var req refundPaymentRequest
	if err := c.Bind(&req); err != nil {
		return respondBadRequest(c, "Invalid request body")
	}

	payment, err := h.lifecycle.Refund(c.Request().Context(), id, req.Amount, req.Reason)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return respondData(c, http.StatusOK, entity.NewPaymentView(payment, h.lifecycle.Now()))
}

// authorizeOwner writes the response itself on failure.
func (h *PaymentHandler) authorizeOwner(c echo.Context, paymentID, callerUID string) error {
	payment, err := h.lifecycle.GetPayment(c.Request().Context(), paymentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if payment.Owner.UID != callerUID {
		return c.JSON(http.StatusForbidden, envelope{Success: false, Error: "Caller does not own this payment"})
	}
	return nil
}

func knownStatus(s model.PaymentStatus) bool {
	switch s {
	case model.PaymentStatusPending, model.PaymentStatusApproved, model.PaymentStatusCompleted,
		model.PaymentStatusCancelled, model.PaymentStatusExpired, model.PaymentStatusFailed,
		model.PaymentStatusRefunded:
		return true
	}
	return false
}
