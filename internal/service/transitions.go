package service

import (
	"fmt"

	"github.com/Freeeeeet/lab_reservations/internal/model"
)

// Action запрошенное изменение статуса брони
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
	ActionPromote Action = "promote"
)

// Actor кто выполняет переход
type Actor struct {
	ID         int64
	Privileged bool
	Internal   bool // Сам движок (продвижение очереди)
}

// ActorFromUser строит Actor из пользователя
func ActorFromUser(u *model.User) Actor {
	return Actor{ID: u.ID, Privileged: u.CanManage()}
}

// SystemActor движок, продвигающий очередь
var SystemActor = Actor{Internal: true}

type transitionRule struct {
	from    []model.ReservationStatus
	to      model.ReservationStatus
	allowed func(res *model.Reservation, actor Actor) bool
}

func privilegedOnly(_ *model.Reservation, actor Actor) bool {
	return actor.Privileged
}

func ownerOrPrivileged(res *model.Reservation, actor Actor) bool {
	return actor.Privileged || (actor.ID != 0 && actor.ID == res.RequesterID)
}

func internalOnly(_ *model.Reservation, actor Actor) bool {
	return actor.Internal
}

var transitionRules = map[Action]transitionRule{
	ActionApprove: {
		from:    []model.ReservationStatus{model.ReservationStatusPending},
		to:      model.ReservationStatusConfirmed,
		allowed: privilegedOnly,
	},
	ActionReject: {
		from: []model.ReservationStatus{
			model.ReservationStatusPending,
			model.ReservationStatusConfirmed,
			model.ReservationStatusWaitlisted,
		},
		to:      model.ReservationStatusCancelled,
		allowed: privilegedOnly,
	},
	ActionCancel: {
		from: []model.ReservationStatus{
			model.ReservationStatusPending,
			model.ReservationStatusConfirmed,
			model.ReservationStatusWaitlisted,
		},
		to:      model.ReservationStatusCancelled,
		allowed: ownerOrPrivileged,
	},
	ActionPromote: {
		from:    []model.ReservationStatus{model.ReservationStatusWaitlisted},
		to:      model.ReservationStatusPending,
		allowed: internalOnly,
	},
}

// ValidateTransition проверяет переход и права и возвращает целевой статус.
// Сначала проверяется допустимость из текущего статуса, затем права.
func ValidateTransition(res *model.Reservation, action Action, actor Actor) (model.ReservationStatus, error) {
	rule, ok := transitionRules[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", model.ErrInvalidTransition, action)
	}

	// Продвижение доступно только движку, для остальных такого перехода нет
	if action == ActionPromote && !actor.Internal {
		return "", fmt.Errorf("%w: %s -> %s is internal", model.ErrInvalidTransition, res.Status, rule.to)
	}

	if !statusIn(res.Status, rule.from) {
		return "", fmt.Errorf("%w: cannot %s reservation in status %s", model.ErrInvalidTransition, action, res.Status)
	}

	if !rule.allowed(res, actor) {
		return "", fmt.Errorf("%w: actor %d cannot %s reservation", model.ErrUnauthorized, actor.ID, action)
	}

	return rule.to, nil
}

func statusIn(s model.ReservationStatus, set []model.ReservationStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
