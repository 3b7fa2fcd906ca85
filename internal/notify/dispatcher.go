package notify

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/service"
	"go.uber.org/zap"
)

const (
	defaultQueueSize     = 256
	defaultDeliveryLimit = 10 * time.Second
)

type envelope struct {
	audit        *service.AuditEvent
	notification *service.Notification
}

// Dispatcher доставляет журнал и уведомления в фоне.
// Emit* не блокируют вызывающего: при переполнении очереди событие
// отбрасывается с предупреждением в логе.
type Dispatcher struct {
	audit    service.AuditEmitter
	notifier service.Notifier
	queue    chan envelope
	logger   *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

func NewDispatcher(audit service.AuditEmitter, notifier service.Notifier, logger *zap.Logger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		audit:    audit,
		notifier: notifier,
		queue:    make(chan envelope, queueSize),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start запускает воркер доставки
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
	})
}

// Stop закрывает очередь и ждёт доставки оставшихся событий
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.queue)
		d.Start()
		<-d.done
	})
}

func (d *Dispatcher) EmitAuditEvent(_ context.Context, event service.AuditEvent) error {
	d.enqueue(envelope{audit: &event})
	return nil
}

func (d *Dispatcher) EmitNotification(_ context.Context, n service.Notification) error {
	d.enqueue(envelope{notification: &n})
	return nil
}

func (d *Dispatcher) enqueue(e envelope) {
	defer func() {
		// Событие после Stop теряется, это допустимо для побочного канала
		if recover() != nil {
			d.logger.Warn("Dispatcher stopped, event dropped")
		}
	}()

	select {
	case d.queue <- e:
	default:
		d.logger.Warn("Dispatcher queue full, event dropped")
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for e := range d.queue {
		d.deliver(e)
	}
}

func (d *Dispatcher) deliver(e envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultDeliveryLimit)
	defer cancel()

	switch {
	case e.audit != nil && d.audit != nil:
		if err := d.audit.EmitAuditEvent(ctx, *e.audit); err != nil {
			d.logger.Warn("Audit delivery failed",
				zap.String("action", e.audit.Action),
				zap.String("entity", e.audit.EntityRef),
				zap.Error(err),
			)
		}
	case e.notification != nil && d.notifier != nil:
		if err := d.notifier.EmitNotification(ctx, *e.notification); err != nil {
			d.logger.Warn("Notification delivery failed",
				zap.Int64("user_id", e.notification.UserID),
				zap.Error(err),
			)
		}
	}
}
