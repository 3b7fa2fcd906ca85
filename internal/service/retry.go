package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/metrics"
	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// RetryConfig параметры повтора транзакций при конфликте сериализации
type RetryConfig struct {
	MaxRetries  uint64
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryConfig значения по умолчанию
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  5,
		BaseBackoff: 20 * time.Millisecond,
		MaxBackoff:  time.Second,
	}
}

// Retrier повторяет транзакцию с ограниченным экспоненциальным backoff
type Retrier struct {
	cfg     RetryConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewRetrier(cfg RetryConfig, logger *zap.Logger, m *metrics.Metrics) *Retrier {
	def := DefaultRetryConfig()
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	return &Retrier{cfg: cfg, logger: logger, metrics: m}
}

// Do выполняет fn, повторяя её только на конфликтах сериализации.
// Исчерпав попытки, возвращает ErrTemporarilyUnavailable.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	defer r.metrics.ObserveTx(operation, start)

	b := retry.NewExponential(r.cfg.BaseBackoff)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(r.cfg.MaxBackoff, b)
	b = retry.WithMaxRetries(r.cfg.MaxRetries, b)

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if model.IsRetryable(err) {
			r.metrics.TxConflict(operation)
			r.logger.Debug("Transaction conflict, retrying",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return err
	})

	if model.IsRetryable(err) {
		r.logger.Warn("Transaction retries exhausted",
			zap.String("operation", operation),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w", operation, model.ErrTemporarilyUnavailable)
	}

	return err
}
