package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/google/uuid"
)

// ReservationStore хранилище броней с транзакциями.
// Методы, вызванные с контекстом из WithTx, работают внутри транзакции.
type ReservationStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockResource(ctx context.Context, resourceID int64) error
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error)
	ListAllocatingOverlapping(ctx context.Context, resourceID int64, start, end time.Time) ([]*model.Reservation, error)
	ListAllocating(ctx context.Context, resourceID int64) ([]*model.Reservation, error)
	ListWaitlisted(ctx context.Context, resourceID int64) ([]*model.Reservation, error)
	ListByRequester(ctx context.Context, requesterID int64) ([]*model.Reservation, error)
	ResourcesWithWaitlist(ctx context.Context) ([]int64, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to model.ReservationStatus, at time.Time) (bool, error)
}

// ResourceCatalog внешний каталог приборов
type ResourceCatalog interface {
	IsResourceBookable(ctx context.Context, resourceID int64) (bool, error)
	AllowsQueueing(ctx context.Context, resourceID int64) (bool, error)
}

// ActorDirectory источник пользователей и их прав
type ActorDirectory interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// AvailabilityRule внешнее правило доступности (праздники, плановые закрытия)
type AvailabilityRule interface {
	Allows(ctx context.Context, resourceID int64, interval model.Interval) (bool, error)
}

// AuditEvent запись журнала действий
type AuditEvent struct {
	ActorID    int64          `json:"actor_id"`
	Action     string         `json:"action"`
	EntityRef  string         `json:"entity_ref"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// AuditEmitter принимает события журнала. Ошибки не откатывают операцию.
type AuditEmitter interface {
	EmitAuditEvent(ctx context.Context, event AuditEvent) error
}

// Notification уведомление пользователю
type Notification struct {
	UserID  int64
	Title   string
	Message string
	LinkRef string
}

// Notifier доставляет уведомления. Ошибки не откатывают операцию.
type Notifier interface {
	EmitNotification(ctx context.Context, n Notification) error
}

// Аудит-действия
const (
	AuditRequested = "reservation.requested"
	AuditApproved  = "reservation.approved"
	AuditRejected  = "reservation.rejected"
	AuditCancelled = "reservation.cancelled"
	AuditPromoted  = "reservation.promoted"
)

// EntityRef ссылка на бронь для журнала и уведомлений
func EntityRef(id uuid.UUID) string {
	return "reservation:" + id.String()
}
