package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/Freeeeeet/lab_reservations/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResourceRepository каталог приборов. Управление приборами живёт вне движка,
// здесь только то, что нужно для допуска броней.
type ResourceRepository struct {
	*base.Repository
}

func NewResourceRepository(pool *pgxpool.Pool) *ResourceRepository {
	return &ResourceRepository{Repository: base.NewRepository(pool)}
}

// GetByID получает прибор по ID
func (r *ResourceRepository) GetByID(ctx context.Context, id int64) (*model.Resource, error) {
	query := `
		SELECT id, name, lab, is_bookable, allow_queueing, created_at
		FROM resources
		WHERE id = $1
	`

	var res model.Resource
	err := r.Conn(ctx).QueryRow(ctx, query, id).Scan(
		&res.ID,
		&res.Name,
		&res.Lab,
		&res.IsBookable,
		&res.AllowQueueing,
		&res.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get resource by id: %w", base.Classify(err))
	}

	return &res, nil
}

// IsResourceBookable проверяет что прибор существует и исправен
func (r *ResourceRepository) IsResourceBookable(ctx context.Context, id int64) (bool, error) {
	res, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if res == nil {
		return false, model.ErrResourceNotFound
	}
	return res.IsBookable, nil
}

// AllowsQueueing проверяет разрешена ли очередь на прибор
func (r *ResourceRepository) AllowsQueueing(ctx context.Context, id int64) (bool, error) {
	res, err := r.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if res == nil {
		return false, model.ErrResourceNotFound
	}
	return res.AllowQueueing, nil
}
