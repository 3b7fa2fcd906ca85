package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationStatusPending    ReservationStatus = "pending"    // Слот выделен, ждёт одобрения
	ReservationStatusConfirmed  ReservationStatus = "confirmed"  // Одобрено заведующим лабораторией
	ReservationStatusWaitlisted ReservationStatus = "waitlisted" // В очереди на занятый слот
	ReservationStatusCancelled  ReservationStatus = "cancelled"  // Отменено или отклонено (терминальный)
)

// Valid проверяет что статус входит в закрытый набор значений
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusPending, ReservationStatusConfirmed, ReservationStatusWaitlisted, ReservationStatusCancelled:
		return true
	}
	return false
}

// HoldsAllocation возвращает true для статусов, занимающих ресурс
func (s ReservationStatus) HoldsAllocation() bool {
	return s == ReservationStatusPending || s == ReservationStatusConfirmed
}

// ParseReservationStatus разбирает статус из строки
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	s := ReservationStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown reservation status %q", raw)
	}
	return s, nil
}

type Reservation struct {
	ID          uuid.UUID         `json:"id"`
	ResourceID  int64             `json:"resource_id"`
	RequesterID int64             `json:"requester_id"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time"`
	Status      ReservationStatus `json:"status"`
	Notes       string            `json:"notes"`
	CreatedAt   time.Time         `json:"created_at"` // Ключ FIFO для очереди
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Interval возвращает полуоткрытый интервал брони
func (r *Reservation) Interval() Interval {
	return Interval{Start: r.StartTime, End: r.EndTime}
}

// WaitlistBefore задаёт порядок очереди: created_at, затем id
func WaitlistBefore(a, b *Reservation) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}
