package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/model"
	"go.uber.org/zap"
)

// emitAudit отправляет событие журнала. Ошибка только логируется.
func (s *ReservationService) emitAudit(ctx context.Context, event AuditEvent) {
	if s.audit == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now().Truncate(time.Microsecond)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideChannelTimeout)
	defer cancel()

	if err := s.audit.EmitAuditEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to emit audit event",
			zap.String("action", event.Action),
			zap.String("entity", event.EntityRef),
			zap.Error(err),
		)
	}
}

// notify отправляет уведомление. Ошибка только логируется.
func (s *ReservationService) notify(ctx context.Context, n Notification) {
	if s.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideChannelTimeout)
	defer cancel()

	if err := s.notifier.EmitNotification(ctx, n); err != nil {
		s.logger.Warn("Failed to send notification",
			zap.Int64("user_id", n.UserID),
			zap.String("title", n.Title),
			zap.Error(err),
		)
	}
}

func (s *ReservationService) admissionNotification(res *model.Reservation) Notification {
	n := Notification{
		UserID:  res.RequesterID,
		LinkRef: EntityRef(res.ID),
	}
	if res.Status == model.ReservationStatusWaitlisted {
		n.Title = "Заявка в очереди"
		n.Message = fmt.Sprintf("Прибор #%d на %s уже занят. Заявка поставлена в очередь.", res.ResourceID, s.formatInterval(res.Interval()))
	} else {
		n.Title = "Заявка принята"
		n.Message = fmt.Sprintf("Прибор #%d на %s зарезервирован и ждёт подтверждения.", res.ResourceID, s.formatInterval(res.Interval()))
	}
	return n
}

// formatInterval печатает интервал в часовом поясе лаборатории
func (s *ReservationService) formatInterval(i model.Interval) string {
	i = model.Interval{Start: i.Start.In(s.location), End: i.End.In(s.location)}
	if i.Start.Year() == i.End.Year() && i.Start.YearDay() == i.End.YearDay() {
		return fmt.Sprintf("%s %s–%s", i.Start.Format("02.01.2006"), i.Start.Format("15:04"), i.End.Format("15:04"))
	}
	return fmt.Sprintf("%s – %s", i.Start.Format("02.01.2006 15:04"), i.End.Format("02.01.2006 15:04"))
}
