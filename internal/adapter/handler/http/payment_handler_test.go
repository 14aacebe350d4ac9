package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	handlers "github.com/traceline/payment-service/internal/adapter/handler/http"
	"github.com/traceline/payment-service/internal/domain/entity"
	"github.com/traceline/payment-service/internal/domain/model"
	"github.com/traceline/payment-service/internal/domain/repository"
	"github.com/traceline/payment-service/internal/middleware/auth"
	"github.com/traceline/payment-service/internal/usecase"
)

// memoryPaymentRepo is a minimal in-memory PaymentRepository for exercising
// the HTTP surface.
type memoryPaymentRepo struct {
	mu      sync.Mutex
	records map[string]*model.Payment
}

func newMemoryPaymentRepo() *memoryPaymentRepo {
	return &memoryPaymentRepo{records: make(map[string]*model.Payment)}
}

func (r *memoryPaymentRepo) Insert(ctx context.Context, payment *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[payment.ID]; ok {
		return repository.ErrDuplicateKey
	}
	if payment.Identifier != nil {
		for _, p := range r.records {
			if p.Identifier != nil && *p.Identifier == *payment.Identifier {
				return repository.ErrDuplicateKey
			}
		}
	}
	clone := *payment
	r.records[payment.ID] = &clone
	return nil
}

func (r *memoryPaymentRepo) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.records[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, nil
}

func (r *memoryPaymentRepo) GetByIdentifier(ctx context.Context, identifier string) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.records {
		if p.Identifier != nil && *p.Identifier == identifier {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memoryPaymentRepo) UpdateVersioned(ctx context.Context, payment *model.Payment, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.records[payment.ID]
	if !ok || stored.Version != expectedVersion {
		return repository.ErrVersionMismatch
	}
	payment.Version = expectedVersion + 1
	clone := *payment
	r.records[payment.ID] = &clone
	return nil
}

func (r *memoryPaymentRepo) List(ctx context.Context, filter repository.PaymentFilter) ([]*model.Payment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*model.Payment
	for _, p := range r.records {
		if filter.OwnerUID != "" && p.Owner.UID != filter.OwnerUID {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		clone := *p
		matched = append(matched, &clone)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	if filter.Offset < len(matched) {
		matched = matched[filter.Offset:]
	} else {
		matched = nil
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (r *memoryPaymentRepo) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*model.Payment, error) {
	return nil, nil
}

func (r *memoryPaymentRepo) StatusStats(ctx context.Context, ownerUID string) ([]entity.StatusStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byStatus := make(map[string]*entity.StatusStat)
	for _, p := range r.records {
		if ownerUID != "" && p.Owner.UID != ownerUID {
			continue
		}
		row, ok := byStatus[string(p.Status)]
		if !ok {
			row = &entity.StatusStat{Status: string(p.Status), TotalAmount: decimal.Zero}
			byStatus[string(p.Status)] = row
		}
		row.Count++
		row.TotalAmount = row.TotalAmount.Add(p.Amount)
	}
	var rows []entity.StatusStat
	for _, row := range byStatus {
		rows = append(rows, *row)
	}
	return rows, nil
}

type stubUserRepo struct{ users map[string]*model.User }

func (r *stubUserRepo) GetByUID(ctx context.Context, uid string) (*model.User, error) {
	return r.users[uid], nil
}

func (r *stubUserRepo) Upsert(ctx context.Context, user *model.User) error {
	r.users[user.UID] = user
	return nil
}

type stubProductRepo struct{}

func (r *stubProductRepo) GetByProductID(ctx context.Context, productID string) (*model.Product, error) {
	return nil, nil
}

type apiFixture struct {
	echo    *echo.Echo
	tokens  *auth.TokenService
	repo    *memoryPaymentRepo
	service *usecase.PaymentLifecycleService
}

func newAPIFixture() *apiFixture {
	logger := zap.NewNop()
	repo := newMemoryPaymentRepo()
	users := &stubUserRepo{users: map[string]*model.User{
		"user_1": {UID: "user_1", Username: "Alice", WalletAddress: "wallet_1", LoginType: "wallet"},
		"user_2": {UID: "user_2", Username: "Bob", WalletAddress: "wallet_2", LoginType: "wallet"},
	}}

	lifecycle := usecase.NewPaymentLifecycleService(repo, users, &stubProductRepo{}, nil, logger)
	stats := usecase.NewStatsService(repo, nil, 0, logger)
	tokens := auth.NewTokenService("test-secret", "payment-service", time.Hour)

	paymentHandler := handlers.NewPaymentHandler(lifecycle, stats, logger)
	jwtConfig := auth.JWTConfig{Tokens: tokens, Logger: logger}

	e := echo.New()
	v1 := e.Group("/api/v1")

	public := v1.Group("", auth.OptionalJWTMiddleware(jwtConfig))
	public.GET("/payments", paymentHandler.ListPayments)
	public.GET("/payments/stats", paymentHandler.GetStats)
	public.GET("/payments/:id", paymentHandler.GetPayment)
	public.PUT("/payments", paymentHandler.UpdatePayment)

	protected := v1.Group("", auth.JWTMiddleware(jwtConfig))
	protected.POST("/payments", paymentHandler.CreatePayment)
	protected.POST("/payments/:id/retry", paymentHandler.RetryPayment)
	protected.POST("/payments/:id/refund", paymentHandler.RefundPayment)

	return &apiFixture{echo: e, tokens: tokens, repo: repo, service: lifecycle}
}

func (fx *apiFixture) bearer(t *testing.T, uid string) string {
	t.Helper()
	signed, err := fx.tokens.Issue(auth.AuthUser{UID: uid, Username: uid, LoginType: "wallet"}, time.Now())
	require.NoError(t, err)
	return "Bearer " + signed
}

func (fx *apiFixture) do(method, path, body, authHeader string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	fx.echo.ServeHTTP(rec, req)
	return rec
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestCreatePayment(t *testing.T) {
	t.Run("authenticated creation returns the sanitized view", func(t *testing.T) {
		fx := newAPIFixture()

		rec := fx.do(http.MethodPost, "/api/v1/payments",
			`{"amount": "7.5", "currency": "PI", "memo": "coffee"}`, fx.bearer(t, "user_1"))

		assert.Equal(t, http.StatusCreated, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.True(t, env.Success)

		var view entity.PaymentView
		require.NoError(t, json.Unmarshal(env.Data, &view))
		assert.Equal(t, model.PaymentStatusPending, view.Status)
		assert.Equal(t, "7.50 PI", view.FormattedAmount)
		assert.Equal(t, "user_1", view.Owner.UID)
	})

	t.Run("anonymous creation is rejected", func(t *testing.T) {
		fx := newAPIFixture()

		rec := fx.do(http.MethodPost, "/api/v1/payments",
			`{"amount": "7.5", "currency": "PI"}`, "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid amount maps to bad request", func(t *testing.T) {
		fx := newAPIFixture()

		rec := fx.do(http.MethodPost, "/api/v1/payments",
			`{"amount": "-1", "currency": "PI"}`, fx.bearer(t, "user_1"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Error)
	})
}

func TestUpdatePayment(t *testing.T) {
	create := func(t *testing.T, fx *apiFixture, uid string) string {
		t.Helper()
		payment, err := fx.service.Create(context.Background(), usecase.CreateInput{
			OwnerUID: uid,
			Amount:   decimal.NewFromInt(3),
			Currency: "PI",
		})
		require.NoError(t, err)
		return payment.ID
	}

	t.Run("anonymous callback transitions the payment", func(t *testing.T) {
		fx := newAPIFixture()
		id := create(t, fx, "user_1")

		rec := fx.do(http.MethodPut, "/api/v1/payments",
			`{"paymentId": "`+id+`", "status": "approved"}`, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.True(t, env.Success)

		var view entity.PaymentView
		require.NoError(t, json.Unmarshal(env.Data, &view))
		assert.Equal(t, model.PaymentStatusApproved, view.Status)
	})

	t.Run("authenticated non-owner is forbidden", func(t *testing.T) {
		fx := newAPIFixture()
		id := create(t, fx, "user_1")

		rec := fx.do(http.MethodPut, "/api/v1/payments",
			`{"paymentId": "`+id+`", "status": "approved"}`, fx.bearer(t, "user_2"))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("illegal transition maps to bad request", func(t *testing.T) {
		fx := newAPIFixture()
		id := create(t, fx, "user_1")

		rec := fx.do(http.MethodPut, "/api/v1/payments",
			`{"paymentId": "`+id+`", "status": "completed"}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing lookup key is rejected", func(t *testing.T) {
		fx := newAPIFixture()

		rec := fx.do(http.MethodPut, "/api/v1/payments", `{"status": "approved"}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown payment maps to not found", func(t *testing.T) {
		fx := newAPIFixture()

		rec := fx.do(http.MethodPut, "/api/v1/payments",
			`{"paymentId": "pay_missing", "status": "approved"}`, "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRefundPayment(t *testing.T) {
	t.Run("refund from pending maps to bad request", func(t *testing.T) {
		fx := newAPIFixture()
		payment, err := fx.service.Create(context.Background(), usecase.CreateInput{
			OwnerUID: "user_1",
			Amount:   decimal.NewFromInt(3),
			Currency: "PI",
		})
		require.NoError(t, err)

		rec := fx.do(http.MethodPost, "/api/v1/payments/"+payment.ID+"/refund",
			`{}`, fx.bearer(t, "user_1"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.False(t, env.Success)
	})

	t.Run("non-owner refund is forbidden", func(t *testing.T) {
		fx := newAPIFixture()
		payment, err := fx.service.Create(context.Background(), usecase.CreateInput{
			OwnerUID: "user_1",
			Amount:   decimal.NewFromInt(3),
			Currency: "PI",
		})
		require.NoError(t, err)

		rec := fx.do(http.MethodPost, "/api/v1/payments/"+payment.ID+"/refund",
			`{}`, fx.bearer(t, "user_2"))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestListPayments(t *testing.T) {
	t.Run("listing is public and paginated", func(t *testing.T) {
		fx := newAPIFixture()
		for i := 0; i < 3; i++ {
			_, err := fx.service.Create(context.Background(), usecase.CreateInput{
				OwnerUID: "user_1",
				Amount:   decimal.NewFromInt(int64(i + 1)),
				Currency: "PI",
			})
			require.NoError(t, err)
		}

		rec := fx.do(http.MethodGet, "/api/v1/payments?limit=2", "", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.True(t, env.Success)

		var page entity.PaginatedPaymentsResponse
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.Len(t, page.Data, 2)
		assert.Equal(t, int64(3), page.Pagination.Total)
		assert.Equal(t, 2, page.Pagination.TotalPages)
	})

	t.Run("unknown status filter is rejected", func(t *testing.T) {
		fx := newAPIFixture()

		rec := fx.do(http.MethodGet, "/api/v1/payments?status=bogus", "", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetStats(t *testing.T) {
	fx := newAPIFixture()
	_, err := fx.service.Create(context.Background(), usecase.CreateInput{
		OwnerUID: "user_1",
		Amount:   decimal.NewFromInt(4),
		Currency: "PI",
	})
	require.NoError(t, err)

	rec := fx.do(http.MethodGet, "/api/v1/payments/stats", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	var stats entity.PaymentStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.TotalCount)
}
