package model

import "errors"

// Ошибки, видимые вызывающей стороне
var (
	ErrValidation             = errors.New("validation error")
	ErrResourceNotFound       = errors.New("resource not found")
	ErrResourceUnavailable    = errors.New("resource unavailable")
	ErrConflictRefused        = errors.New("conflicting reservation exists and queueing is disabled")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrActorNotFound          = errors.New("actor not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrStaleState             = errors.New("reservation state changed concurrently")
	ErrUnauthorized           = errors.New("actor is not allowed to perform this transition")
	ErrTemporarilyUnavailable = errors.New("temporarily unavailable")
)

// Сигналы хранилища, повторяются внутри сервиса и наружу не попадают
var (
	ErrSerializationConflict = errors.New("serialization conflict")
	ErrAllocationOverlap     = errors.New("allocation overlap")
)

// IsRetryable проверяет что транзакцию можно повторить
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerializationConflict) || errors.Is(err, ErrAllocationOverlap)
}
