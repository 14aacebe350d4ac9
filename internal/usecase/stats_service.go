package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/traceline/payment-service/internal/domain/entity"
	domainErrors "github.com/traceline/payment-service/internal/domain/errors"
	"github.com/traceline/payment-service/internal/domain/repository"
)

const statsCacheKey = "payments:stats:public"

// StatsCache is the optional short-TTL cache in front of the public rollup.
type StatsCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// StatsService is the read-only rollup of payment counts and totals by
// status. It does not go through the admission gate: the unscoped rollup is
// public data.
type StatsService struct {
	payments repository.PaymentRepository
	cache    StatsCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewStatsService creates a new stats service. cache may be nil.
func NewStatsService(
	payments repository.PaymentRepository,
	cache StatsCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *StatsService {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &StatsService{
		payments: payments,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Stats groups persisted payments by status, returning per-status count and
// total amount plus grand totals, optionally scoped to one owner. Reads are
// eventually consistent; records present at call start are neither
// double-counted nor omitted (single aggregate query).
func (s *StatsService) Stats(ctx context.Context, ownerUID string) (*entity.PaymentStats, error) {
	// Only the public unscoped rollup is cached.
	if ownerUID == "" && s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, statsCacheKey); err == nil && ok {
			var cached entity.PaymentStats
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		} else if err != nil {
			s.logger.Debug("Stats cache read failed", zap.Error(err))
		}
	}

	rows, err := s.payments.StatusStats(ctx, ownerUID)
	if err != nil {
		return nil, domainErrors.NewInternalError("failed to aggregate payment stats", err)
	}

	stats := &entity.PaymentStats{
		ByStatus:    make(map[string]entity.StatusStat, len(rows)),
		TotalAmount: decimal.Zero,
		OwnerUID:    ownerUID,
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row
		stats.TotalCount += row.Count
		stats.TotalAmount = stats.TotalAmount.Add(row.TotalAmount)
	}

	if ownerUID == "" && s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey, raw, s.cacheTTL); err != nil {
				s.logger.Debug("Stats cache write failed", zap.Error(err))
			}
		}
	}

	return stats, nil
}
