package notify

import (
	"context"

	"github.com/Freeeeeet/lab_reservations/internal/service"
	"go.uber.org/zap"
)

// LogAuditEmitter пишет журнал в лог, когда брокер не настроен
type LogAuditEmitter struct {
	logger *zap.Logger
}

func NewLogAuditEmitter(logger *zap.Logger) *LogAuditEmitter {
	return &LogAuditEmitter{logger: logger.Named("audit")}
}

func (e *LogAuditEmitter) EmitAuditEvent(_ context.Context, event service.AuditEvent) error {
	e.logger.Info(event.Action,
		zap.Int64("actor_id", event.ActorID),
		zap.String("entity", event.EntityRef),
		zap.Any("details", event.Details),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

// LogNotifier пишет уведомления в лог, когда бот не настроен
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notify")}
}

func (n *LogNotifier) EmitNotification(_ context.Context, msg service.Notification) error {
	n.logger.Info(msg.Title,
		zap.Int64("user_id", msg.UserID),
		zap.String("message", msg.Message),
		zap.String("link", msg.LinkRef),
	)
	return nil
}
