package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/model"
	"go.uber.org/zap"
)

// PromoteNext продвигает самую раннюю заявку из очереди прибора, которая
// больше ни с чем не пересекается. Порядок строго FIFO по created_at, затем id,
// независимо от того, совпадает ли интервал заявки с освободившимся.
// Возвращает nil, если продвигать некого.
func (s *ReservationService) PromoteNext(ctx context.Context, resourceID int64, freedStart, freedEnd time.Time) (*model.Reservation, error) {
	var promoted *model.Reservation

	err := s.retrier.Do(ctx, "promote", func(ctx context.Context) error {
		promoted = nil
		return s.store.WithTx(ctx, func(txCtx context.Context) error {
			res, err := s.promoteLocked(txCtx, resourceID)
			if err != nil {
				return err
			}
			promoted = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if promoted == nil {
		s.logger.Debug("Nothing to promote",
			zap.Int64("resource_id", resourceID),
			zap.Time("freed_start", freedStart),
			zap.Time("freed_end", freedEnd),
		)
		return nil, nil
	}

	s.metrics.Promotion()
	s.logger.Info("Reservation promoted from waitlist",
		zap.String("reservation_id", promoted.ID.String()),
		zap.Int64("resource_id", resourceID),
		zap.Int64("requester_id", promoted.RequesterID),
		zap.Time("freed_start", freedStart),
		zap.Time("freed_end", freedEnd),
	)

	s.emitAudit(ctx, AuditEvent{
		ActorID:   0,
		Action:    AuditPromoted,
		EntityRef: EntityRef(promoted.ID),
		Details: map[string]any{
			"reservation_id": promoted.ID.String(),
			"requester_id":   promoted.RequesterID,
			"resource_id":    promoted.ResourceID,
		},
	})
	s.notify(ctx, Notification{
		UserID:  promoted.RequesterID,
		Title:   "Слот освободился",
		Message: fmt.Sprintf("Ваша заявка на прибор #%d на %s вышла из очереди и ждёт подтверждения.", promoted.ResourceID, s.formatInterval(promoted.Interval())),
		LinkRef: EntityRef(promoted.ID),
	})

	return promoted, nil
}

// promoteLocked выполняется внутри транзакции под блокировкой прибора
func (s *ReservationService) promoteLocked(ctx context.Context, resourceID int64) (*model.Reservation, error) {
	if err := s.store.LockResource(ctx, resourceID); err != nil {
		return nil, err
	}

	waitlist, err := s.store.ListWaitlisted(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if len(waitlist) == 0 {
		return nil, nil
	}

	allocations, err := s.store.ListAllocating(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	for _, candidate := range waitlist {
		// Слот мог быть занят параллельно, такую заявку пропускаем
		if conflictsWith(candidate.Interval(), allocations) {
			continue
		}

		to, err := ValidateTransition(candidate, ActionPromote, SystemActor)
		if err != nil {
			return nil, err
		}

		now := s.clock.Now().Truncate(time.Microsecond)
		ok, err := s.store.CompareAndSetStatus(ctx, candidate.ID, candidate.Status, to, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Заявку успели отменить
			continue
		}

		promoted := *candidate
		promoted.Status = to
		promoted.UpdatedAt = now
		return &promoted, nil
	}

	return nil, nil
}

// promoteAfterRelease продвигает очередь после освобождения слота.
// Продвигает всех, кто поместился, по одной транзакции на заявку.
// Ошибка не отменяет уже выполненную отмену: очередь дочистит фоновая задача.
func (s *ReservationService) promoteAfterRelease(ctx context.Context, released *model.Reservation) {
	// Клиент мог уже отключиться, но отмена зафиксирована и очередь должна сдвинуться
	ctx = context.WithoutCancel(ctx)

	for {
		promoted, err := s.PromoteNext(ctx, released.ResourceID, released.StartTime, released.EndTime)
		if err != nil {
			s.logger.Error("Failed to promote waitlist after release",
				zap.String("released_id", released.ID.String()),
				zap.Int64("resource_id", released.ResourceID),
				zap.Error(err),
			)
			return
		}
		if promoted == nil {
			return
		}
	}
}

// SweepWaitlists проходит по всем приборам с очередью и продвигает всё,
// что может быть продвинуто. Возвращает число продвинутых заявок.
func (s *ReservationService) SweepWaitlists(ctx context.Context) (int, error) {
	resourceIDs, err := s.store.ResourcesWithWaitlist(ctx)
	if err != nil {
		return 0, fmt.Errorf("list resources with waitlist: %w", err)
	}

	total := 0
	for _, resourceID := range resourceIDs {
		for {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			promoted, err := s.PromoteNext(ctx, resourceID, time.Time{}, time.Time{})
			if err != nil {
				s.logger.Warn("Sweep promotion failed",
					zap.Int64("resource_id", resourceID),
					zap.Error(err),
				)
				break
			}
			if promoted == nil {
				break
			}
			total++
		}
	}

	return total, nil
}
