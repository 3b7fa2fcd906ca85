package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// WaitlistSweeper продвигает очереди всех приборов
type WaitlistSweeper interface {
	SweepWaitlists(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	sweeper  WaitlistSweeper
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	done     chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(sweeper WaitlistSweeper, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Waitlist sweep disabled")
		close(s.done)
		return
	}

	s.logger.Info("Starting background scheduler", zap.Duration("sweep_interval", s.interval))

	go s.runSweepTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
	<-s.done
}

// runSweepTask периодически дочищает очереди, которые не продвинулись после отмен
func (s *Scheduler) runSweepTask(ctx context.Context) {
	defer close(s.done)

	// Первый запуск сразу при старте
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("Waitlist sweep task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Waitlist sweep task cancelled")
			return
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	promoted, err := s.sweeper.SweepWaitlists(ctx)
	if err != nil {
		s.logger.Error("Waitlist sweep failed", zap.Error(err))
		return
	}

	if promoted > 0 {
		s.logger.Info("Waitlist sweep promoted reservations", zap.Int("promoted", promoted))
	} else {
		s.logger.Debug("Waitlist sweep found nothing to promote")
	}
}
