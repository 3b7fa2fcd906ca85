package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/Freeeeeet/lab_reservations/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const reservationColumns = `id, resource_id, requester_id, start_time, end_time, status, notes, created_at, updated_at`

type ReservationRepository struct {
	*base.Repository
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{Repository: base.NewRepository(pool)}
}

// LockResource берёт блокировку строки прибора до конца транзакции.
// Все изменения броней одного прибора сериализуются на этой строке.
func (r *ReservationRepository) LockResource(ctx context.Context, resourceID int64) error {
	query := `SELECT id FROM resources WHERE id = $1 FOR UPDATE`

	var id int64
	err := r.Conn(ctx).QueryRow(ctx, query, resourceID).Scan(&id)
	if err != nil {
		if base.IsNotFound(err) {
			return model.ErrResourceNotFound
		}
		return fmt.Errorf("lock resource: %w", base.Classify(err))
	}

	return nil
}

// Create создаёт новую бронь
func (r *ReservationRepository) Create(ctx context.Context, res *model.Reservation) error {
	query := `
		INSERT INTO reservations (id, resource_id, requester_id, start_time, end_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING updated_at
	`

	err := r.Conn(ctx).QueryRow(
		ctx, query,
		res.ID,
		res.ResourceID,
		res.RequesterID,
		res.StartTime,
		res.EndTime,
		string(res.Status),
		res.Notes,
		res.CreatedAt,
	).Scan(&res.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create reservation: %w", base.Classify(err))
	}

	return nil
}

// GetByID получает бронь по ID
func (r *ReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

	res, err := scanReservation(r.Conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation by id: %w", base.Classify(err))
	}

	return res, nil
}

// ListAllocatingOverlapping получает pending/confirmed брони прибора, пересекающие интервал
func (r *ReservationRepository) ListAllocatingOverlapping(ctx context.Context, resourceID int64, start, end time.Time) ([]*model.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE resource_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time ASC
	`

	rows, err := r.Conn(ctx).Query(ctx, query, resourceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get overlapping reservations: %w", base.Classify(err))
	}

	return collectReservations(rows, "overlapping reservations")
}

// ListAllocating получает все pending/confirmed брони прибора
func (r *ReservationRepository) ListAllocating(ctx context.Context, resourceID int64) ([]*model.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE resource_id = $1 AND status IN ('pending', 'confirmed')
		ORDER BY start_time ASC
	`

	rows, err := r.Conn(ctx).Query(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("get allocating reservations: %w", base.Classify(err))
	}

	return collectReservations(rows, "allocating reservations")
}

// ListWaitlisted получает очередь прибора в порядке FIFO
func (r *ReservationRepository) ListWaitlisted(ctx context.Context, resourceID int64) ([]*model.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE resource_id = $1 AND status = 'waitlisted'
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.Conn(ctx).Query(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("get waitlist: %w", base.Classify(err))
	}

	return collectReservations(rows, "waitlist")
}

// ListByRequester получает все брони пользователя
func (r *ReservationRepository) ListByRequester(ctx context.Context, requesterID int64) ([]*model.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE requester_id = $1
		ORDER BY start_time DESC
	`

	rows, err := r.Conn(ctx).Query(ctx, query, requesterID)
	if err != nil {
		return nil, fmt.Errorf("get reservations by requester: %w", base.Classify(err))
	}

	return collectReservations(rows, "requester reservations")
}

// ResourcesWithWaitlist получает ID приборов, у которых есть очередь
func (r *ReservationRepository) ResourcesWithWaitlist(ctx context.Context) ([]int64, error) {
	query := `
		SELECT DISTINCT resource_id
		FROM reservations
		WHERE status = 'waitlisted'
		ORDER BY resource_id
	`

	rows, err := r.Conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get resources with waitlist: %w", base.Classify(err))
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan resource ids: %w", base.Classify(err))
	}

	return ids, nil
}

// CompareAndSetStatus меняет статус только если текущий равен from.
// Возвращает false, если строка уже в другом состоянии.
func (r *ReservationRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to model.ReservationStatus, at time.Time) (bool, error) {
	query := `
		UPDATE reservations
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	affected, err := r.ExecAffected(ctx, query, string(to), at, id, string(from))
	if err != nil {
		return false, fmt.Errorf("update reservation status: %w", err)
	}

	return affected == 1, nil
}

func scanReservation(row rowScanner) (*model.Reservation, error) {
	var (
		res    model.Reservation
		status string
	)
	err := row.Scan(
		&res.ID,
		&res.ResourceID,
		&res.RequesterID,
		&res.StartTime,
		&res.EndTime,
		&status,
		&res.Notes,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	res.Status, err = model.ParseReservationStatus(status)
	if err != nil {
		return nil, err
	}

	return &res, nil
}

func collectReservations(rows pgx.Rows, what string) ([]*model.Reservation, error) {
	defer rows.Close()

	var reservations []*model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		reservations = append(reservations, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", what, base.Classify(err))
	}

	return reservations, nil
}
