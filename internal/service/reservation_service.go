package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/clock"
	"github.com/Freeeeeet/lab_reservations/internal/metrics"
	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sideChannelTimeout = 5 * time.Second

// ReservationService движок допуска броней, переходов статусов и продвижения очереди
type ReservationService struct {
	store        ReservationStore
	resources    ResourceCatalog
	actors       ActorDirectory
	audit        AuditEmitter
	notifier     Notifier
	availability AvailabilityRule
	clock        clock.Clock
	location     *time.Location
	retrier      *Retrier
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

type ReservationServiceOption func(*ReservationService)

// WithClock подменяет часы (для тестов)
func WithClock(c clock.Clock) ReservationServiceOption {
	return func(s *ReservationService) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLocation задаёт часовой пояс для текста уведомлений
func WithLocation(loc *time.Location) ReservationServiceOption {
	return func(s *ReservationService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithRetryConfig задаёт параметры повтора транзакций
func WithRetryConfig(cfg RetryConfig) ReservationServiceOption {
	return func(s *ReservationService) {
		s.retrier = NewRetrier(cfg, s.logger, s.metrics)
	}
}

func WithMetrics(m *metrics.Metrics) ReservationServiceOption {
	return func(s *ReservationService) {
		s.metrics = m
		s.retrier.metrics = m
	}
}

// WithAvailabilityRule подключает внешнее правило доступности прибора
func WithAvailabilityRule(rule AvailabilityRule) ReservationServiceOption {
	return func(s *ReservationService) {
		s.availability = rule
	}
}

func NewReservationService(
	store ReservationStore,
	resources ResourceCatalog,
	actors ActorDirectory,
	audit AuditEmitter,
	notifier Notifier,
	logger *zap.Logger,
	opts ...ReservationServiceOption,
) *ReservationService {
	s := &ReservationService{
		store:     store,
		resources: resources,
		actors:    actors,
		audit:     audit,
		notifier:  notifier,
		clock:     clock.NewSystem(),
		location:  time.UTC,
		logger:    logger,
	}
	s.retrier = NewRetrier(DefaultRetryConfig(), logger, nil)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RequestInput struct {
	ResourceID  int64
	RequesterID int64
	StartTime   time.Time
	EndTime     time.Time
	Notes       string
}

// RequestReservation решает судьбу заявки: pending, waitlisted или отказ.
// Проверка конфликтов и запись выполняются в одной serializable транзакции
// под блокировкой строки прибора.
func (s *ReservationService) RequestReservation(ctx context.Context, in RequestInput) (*model.Reservation, error) {
	if err := validateRequest(in); err != nil {
		s.metrics.Admission("invalid")
		return nil, err
	}

	// Доступность прибора проверяем до открытия транзакции
	bookable, err := s.resources.IsResourceBookable(ctx, in.ResourceID)
	if err != nil {
		if errors.Is(err, model.ErrResourceNotFound) {
			s.metrics.Admission("unavailable")
		} else {
			s.metrics.Admission("error")
		}
		return nil, fmt.Errorf("check resource: %w", err)
	}
	if !bookable {
		s.metrics.Admission("unavailable")
		return nil, fmt.Errorf("resource %d: %w", in.ResourceID, model.ErrResourceUnavailable)
	}

	interval := model.Interval{Start: in.StartTime.UTC(), End: in.EndTime.UTC()}
	if s.availability != nil {
		ok, err := s.availability.Allows(ctx, in.ResourceID, interval)
		if err != nil {
			s.metrics.Admission("error")
			return nil, fmt.Errorf("check availability: %w", err)
		}
		if !ok {
			s.metrics.Admission("unavailable")
			return nil, fmt.Errorf("resource %d is closed for the requested interval: %w", in.ResourceID, model.ErrResourceUnavailable)
		}
	}

	var created *model.Reservation
	err = s.retrier.Do(ctx, "request", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(txCtx context.Context) error {
			res, err := s.admit(txCtx, in, interval)
			if err != nil {
				return err
			}
			created = res
			return nil
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrConflictRefused):
			s.metrics.Admission("refused")
			s.logger.Info("Reservation refused",
				zap.Int64("resource_id", in.ResourceID),
				zap.Int64("requester_id", in.RequesterID),
				zap.Time("start", interval.Start),
				zap.Time("end", interval.End),
			)
		case errors.Is(err, model.ErrResourceUnavailable), errors.Is(err, model.ErrResourceNotFound):
			s.metrics.Admission("unavailable")
		default:
			s.metrics.Admission("error")
		}
		return nil, err
	}

	s.metrics.Admission(string(created.Status))
	s.logger.Info("Reservation admitted",
		zap.String("reservation_id", created.ID.String()),
		zap.Int64("resource_id", created.ResourceID),
		zap.Int64("requester_id", created.RequesterID),
		zap.String("status", string(created.Status)),
	)

	s.emitAudit(ctx, AuditEvent{
		ActorID:   created.RequesterID,
		Action:    AuditRequested,
		EntityRef: EntityRef(created.ID),
		Details: map[string]any{
			"resource_id":    created.ResourceID,
			"requester_id":   created.RequesterID,
			"reservation_id": created.ID.String(),
			"status":         string(created.Status),
		},
	})
	s.notify(ctx, s.admissionNotification(created))

	return created, nil
}

// admit выполняется внутри транзакции
func (s *ReservationService) admit(ctx context.Context, in RequestInput, interval model.Interval) (*model.Reservation, error) {
	if err := s.store.LockResource(ctx, in.ResourceID); err != nil {
		return nil, err
	}

	// Повторная проверка под блокировкой: прибор мог выйти из строя
	bookable, err := s.resources.IsResourceBookable(ctx, in.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("check resource: %w", err)
	}
	if !bookable {
		return nil, fmt.Errorf("resource %d: %w", in.ResourceID, model.ErrResourceUnavailable)
	}

	candidates, err := s.store.ListAllocatingOverlapping(ctx, in.ResourceID, interval.Start, interval.End)
	if err != nil {
		return nil, err
	}

	status := model.ReservationStatusPending
	if conflictsWith(interval, candidates) {
		queueing, err := s.resources.AllowsQueueing(ctx, in.ResourceID)
		if err != nil {
			return nil, fmt.Errorf("check queueing: %w", err)
		}
		if !queueing {
			return nil, fmt.Errorf("resource %d: %w", in.ResourceID, model.ErrConflictRefused)
		}
		status = model.ReservationStatusWaitlisted
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate reservation id: %w", err)
	}

	now := s.clock.Now().Truncate(time.Microsecond)
	res := &model.Reservation{
		ID:          id,
		ResourceID:  in.ResourceID,
		RequesterID: in.RequesterID,
		StartTime:   interval.Start,
		EndTime:     interval.End,
		Status:      status,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Create(ctx, res); err != nil {
		return nil, err
	}

	return res, nil
}

// ApproveReservation переводит pending в confirmed (только заведующий)
func (s *ReservationService) ApproveReservation(ctx context.Context, id uuid.UUID, actorID int64) error {
	res, _, err := s.transition(ctx, id, actorID, ActionApprove)
	if err != nil {
		return err
	}

	s.emitAudit(ctx, AuditEvent{
		ActorID:   actorID,
		Action:    AuditApproved,
		EntityRef: EntityRef(res.ID),
		Details:   map[string]any{"resource_id": res.ResourceID},
	})
	s.notify(ctx, Notification{
		UserID:  res.RequesterID,
		Title:   "Бронь подтверждена",
		Message: fmt.Sprintf("Бронь прибора #%d на %s подтверждена.", res.ResourceID, s.formatInterval(res.Interval())),
		LinkRef: EntityRef(res.ID),
	})

	return nil
}

// RejectReservation отклоняет бронь (только заведующий).
// Если бронь занимала прибор, запускается продвижение очереди.
func (s *ReservationService) RejectReservation(ctx context.Context, id uuid.UUID, actorID int64) error {
	res, prior, err := s.transition(ctx, id, actorID, ActionReject)
	if err != nil {
		return err
	}

	s.emitAudit(ctx, AuditEvent{
		ActorID:   actorID,
		Action:    AuditRejected,
		EntityRef: EntityRef(res.ID),
		Details:   map[string]any{"resource_id": res.ResourceID, "prior_status": string(prior)},
	})
	s.notify(ctx, Notification{
		UserID:  res.RequesterID,
		Title:   "Бронь отклонена",
		Message: fmt.Sprintf("Бронь прибора #%d на %s отклонена.", res.ResourceID, s.formatInterval(res.Interval())),
		LinkRef: EntityRef(res.ID),
	})

	if prior.HoldsAllocation() {
		s.promoteAfterRelease(ctx, res)
	}
	return nil
}

// CancelReservation отменяет бронь (владелец или заведующий).
// Если бронь занимала прибор, запускается продвижение очереди.
func (s *ReservationService) CancelReservation(ctx context.Context, id uuid.UUID, actorID int64) error {
	res, prior, err := s.transition(ctx, id, actorID, ActionCancel)
	if err != nil {
		return err
	}

	s.emitAudit(ctx, AuditEvent{
		ActorID:   actorID,
		Action:    AuditCancelled,
		EntityRef: EntityRef(res.ID),
		Details:   map[string]any{"resource_id": res.ResourceID, "prior_status": string(prior)},
	})
	if actorID != res.RequesterID {
		s.notify(ctx, Notification{
			UserID:  res.RequesterID,
			Title:   "Бронь отменена",
			Message: fmt.Sprintf("Бронь прибора #%d на %s отменена заведующим.", res.ResourceID, s.formatInterval(res.Interval())),
			LinkRef: EntityRef(res.ID),
		})
	}

	if prior.HoldsAllocation() {
		s.promoteAfterRelease(ctx, res)
	}
	return nil
}

// transition выполняет проверенный переход статуса одной атомарной операцией.
// Возвращает бронь после перехода и статус до него.
func (s *ReservationService) transition(ctx context.Context, id uuid.UUID, actorID int64, action Action) (*model.Reservation, model.ReservationStatus, error) {
	if id == uuid.Nil {
		return nil, "", fmt.Errorf("%w: reservation id is required", model.ErrValidation)
	}
	if actorID <= 0 {
		return nil, "", fmt.Errorf("%w: actor id is required", model.ErrValidation)
	}

	user, err := s.actors.GetByID(ctx, actorID)
	if err != nil {
		return nil, "", fmt.Errorf("get actor: %w", err)
	}
	if user == nil {
		return nil, "", fmt.Errorf("actor %d: %w", actorID, model.ErrActorNotFound)
	}
	actor := ActorFromUser(user)

	var (
		after model.Reservation
		prior model.ReservationStatus
	)
	err = s.retrier.Do(ctx, string(action), func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(txCtx context.Context) error {
			res, err := s.store.GetByID(txCtx, id)
			if err != nil {
				return err
			}
			if res == nil {
				return fmt.Errorf("reservation %s: %w", id, model.ErrReservationNotFound)
			}

			to, err := ValidateTransition(res, action, actor)
			if err != nil {
				return err
			}

			now := s.clock.Now().Truncate(time.Microsecond)
			ok, err := s.store.CompareAndSetStatus(txCtx, res.ID, res.Status, to, now)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("reservation %s expected %s: %w", id, res.Status, model.ErrStaleState)
			}

			prior = res.Status
			after = *res
			after.Status = to
			after.UpdatedAt = now
			return nil
		})
	})
	if err != nil {
		s.metrics.Transition(string(action), transitionResult(err))
		return nil, "", err
	}

	s.metrics.Transition(string(action), "ok")
	s.logger.Info("Reservation status changed",
		zap.String("reservation_id", after.ID.String()),
		zap.Int64("resource_id", after.ResourceID),
		zap.Int64("actor_id", actorID),
		zap.String("action", string(action)),
		zap.String("from", string(prior)),
		zap.String("to", string(after.Status)),
	)

	return &after, prior, nil
}

// GetReservation получает бронь по ID
func (s *ReservationService) GetReservation(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	res, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	if res == nil {
		return nil, fmt.Errorf("reservation %s: %w", id, model.ErrReservationNotFound)
	}
	return res, nil
}

// ListByRequester получает брони пользователя
func (s *ReservationService) ListByRequester(ctx context.Context, requesterID int64) ([]*model.Reservation, error) {
	return s.store.ListByRequester(ctx, requesterID)
}

// ListWaitlist получает очередь прибора в порядке продвижения
func (s *ReservationService) ListWaitlist(ctx context.Context, resourceID int64) ([]*model.Reservation, error) {
	return s.store.ListWaitlisted(ctx, resourceID)
}

func validateRequest(in RequestInput) error {
	var problems []string
	if in.ResourceID <= 0 {
		problems = append(problems, "resource id is required")
	}
	if in.RequesterID <= 0 {
		problems = append(problems, "requester id is required")
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		problems = append(problems, "start and end time are required")
	} else if !(model.Interval{Start: in.StartTime, End: in.EndTime}).Valid() {
		problems = append(problems, "end time must be after start time")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", model.ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

func conflictsWith(interval model.Interval, allocations []*model.Reservation) bool {
	for _, other := range allocations {
		if other.Status.HoldsAllocation() && interval.Overlaps(other.Interval()) {
			return true
		}
	}
	return false
}

func transitionResult(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidTransition):
		return "invalid"
	case errors.Is(err, model.ErrStaleState):
		return "stale"
	case errors.Is(err, model.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, model.ErrReservationNotFound):
		return "not_found"
	default:
		return "error"
	}
}
