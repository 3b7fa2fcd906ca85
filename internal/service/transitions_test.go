package service

import (
	"testing"

	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	const owner int64 = 7

	var (
		ownerActor = Actor{ID: owner}
		stranger   = Actor{ID: 8}
		labManager = Actor{ID: 9, Privileged: true}
	)

	tests := []struct {
		name    string
		from    model.ReservationStatus
		action  Action
		actor   Actor
		want    model.ReservationStatus
		wantErr error
	}{
		{"approve pending", model.ReservationStatusPending, ActionApprove, labManager, model.ReservationStatusConfirmed, nil},
		{"approve by owner", model.ReservationStatusPending, ActionApprove, ownerActor, "", model.ErrUnauthorized},
		{"approve confirmed", model.ReservationStatusConfirmed, ActionApprove, labManager, "", model.ErrInvalidTransition},
		{"approve waitlisted", model.ReservationStatusWaitlisted, ActionApprove, labManager, "", model.ErrInvalidTransition},

		{"reject pending", model.ReservationStatusPending, ActionReject, labManager, model.ReservationStatusCancelled, nil},
		{"reject confirmed", model.ReservationStatusConfirmed, ActionReject, labManager, model.ReservationStatusCancelled, nil},
		{"reject waitlisted", model.ReservationStatusWaitlisted, ActionReject, labManager, model.ReservationStatusCancelled, nil},
		{"reject by owner", model.ReservationStatusPending, ActionReject, ownerActor, "", model.ErrUnauthorized},
		{"reject cancelled", model.ReservationStatusCancelled, ActionReject, labManager, "", model.ErrInvalidTransition},

		{"cancel by owner", model.ReservationStatusConfirmed, ActionCancel, ownerActor, model.ReservationStatusCancelled, nil},
		{"cancel waitlisted by owner", model.ReservationStatusWaitlisted, ActionCancel, ownerActor, model.ReservationStatusCancelled, nil},
		{"cancel by manager", model.ReservationStatusPending, ActionCancel, labManager, model.ReservationStatusCancelled, nil},
		{"cancel by stranger", model.ReservationStatusPending, ActionCancel, stranger, "", model.ErrUnauthorized},
		{"cancel cancelled", model.ReservationStatusCancelled, ActionCancel, ownerActor, "", model.ErrInvalidTransition},
		{"stranger cancels cancelled", model.ReservationStatusCancelled, ActionCancel, stranger, "", model.ErrInvalidTransition},

		{"promote by engine", model.ReservationStatusWaitlisted, ActionPromote, SystemActor, model.ReservationStatusPending, nil},
		{"promote pending", model.ReservationStatusPending, ActionPromote, SystemActor, "", model.ErrInvalidTransition},
		{"promote by manager", model.ReservationStatusWaitlisted, ActionPromote, labManager, "", model.ErrInvalidTransition},
		{"promote by owner", model.ReservationStatusWaitlisted, ActionPromote, ownerActor, "", model.ErrInvalidTransition},

		{"unknown action", model.ReservationStatusPending, Action("extend"), labManager, "", model.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &model.Reservation{RequesterID: owner, Status: tt.from}

			got, err := ValidateTransition(res, tt.action, tt.actor)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActorFromUser(t *testing.T) {
	assert.Equal(t, Actor{ID: 3}, ActorFromUser(&model.User{ID: 3}))
	assert.Equal(t, Actor{ID: 4, Privileged: true}, ActorFromUser(&model.User{ID: 4, IsLabManager: true}))
}
