package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/metrics"
	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastRetrier(maxRetries uint64, m *metrics.Metrics) *Retrier {
	return NewRetrier(RetryConfig{MaxRetries: maxRetries, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}, zap.NewNop(), m)
}

func TestRetrier_Do(t *testing.T) {
	t.Run("non retryable errors return immediately", func(t *testing.T) {
		sentinel := errors.New("boom")
		calls := 0

		err := fastRetrier(5, nil).Do(context.Background(), "op", func(context.Context) error {
			calls++
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls)
	})

	t.Run("domain errors pass through", func(t *testing.T) {
		calls := 0
		err := fastRetrier(5, nil).Do(context.Background(), "op", func(context.Context) error {
			calls++
			return model.ErrStaleState
		})
		require.ErrorIs(t, err, model.ErrStaleState)
		assert.Equal(t, 1, calls)
	})

	t.Run("conflicts are retried and counted", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := metrics.New(reg)
		calls := 0

		err := fastRetrier(5, m).Do(context.Background(), "request", func(context.Context) error {
			calls++
			if calls < 3 {
				return model.ErrSerializationConflict
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2.0, counterValue(t, reg, "lab_reservations_tx_conflicts_total"))
	})

	t.Run("zero retries means a single attempt", func(t *testing.T) {
		calls := 0
		err := fastRetrier(0, nil).Do(context.Background(), "op", func(context.Context) error {
			calls++
			return model.ErrAllocationOverlap
		})
		require.ErrorIs(t, err, model.ErrTemporarilyUnavailable)
		assert.Equal(t, 1, calls)
	})
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func admissionCount(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != "lab_reservations_admissions_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
