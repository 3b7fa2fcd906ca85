package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func seed(env *testEnv, resourceID, requesterID int64, start, end time.Time, status model.ReservationStatus, createdAt time.Time) model.Reservation {
	res := model.Reservation{
		ID:          uuid.Must(uuid.NewV7()),
		ResourceID:  resourceID,
		RequesterID: requesterID,
		StartTime:   start,
		EndTime:     end,
		Status:      status,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
	env.store.put(res)
	return res
}

func TestPromoteNext_FIFO(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := day.Add(-time.Hour)

	a := seed(env, resourceX, alice, at(9, 0), at(10, 0), model.ReservationStatusPending, created)
	w2 := seed(env, resourceX, carol, at(9, 0), at(10, 0), model.ReservationStatusWaitlisted, created.Add(2*time.Minute))
	w1 := seed(env, resourceX, bob, at(9, 30), at(10, 30), model.ReservationStatusWaitlisted, created.Add(time.Minute))

	require.NoError(t, env.svc.CancelReservation(ctx, a.ID, alice))

	assert.Equal(t, model.ReservationStatusPending, env.store.status(w1.ID))
	assert.Equal(t, model.ReservationStatusWaitlisted, env.store.status(w2.ID))
	env.assertNoOverlappingAllocations(t, resourceX)
}

func TestPromoteNext_TieBreakByID(t *testing.T) {
	env := newTestEnv(t)
	created := day.Add(-time.Hour)

	first := seed(env, resourceX, bob, at(9, 0), at(10, 0), model.ReservationStatusWaitlisted, created)
	second := seed(env, resourceX, carol, at(9, 0), at(10, 0), model.ReservationStatusWaitlisted, created)
	ids := []string{first.ID.String(), second.ID.String()}
	sort.Strings(ids)

	promoted, err := env.svc.PromoteNext(context.Background(), resourceX, at(9, 0), at(10, 0))
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, ids[0], promoted.ID.String())
	assert.Equal(t, model.ReservationStatusPending, promoted.Status)
}

func TestPromoteNext_SkipsCandidatesStillBlocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := day.Add(-time.Hour)

	a := seed(env, resourceX, alice, at(9, 0), at(10, 0), model.ReservationStatusPending, created)
	seed(env, resourceX, alice, at(10, 0), at(11, 0), model.ReservationStatusConfirmed, created)
	blocked := seed(env, resourceX, bob, at(9, 30), at(10, 30), model.ReservationStatusWaitlisted, created.Add(time.Minute))
	fits := seed(env, resourceX, carol, at(9, 0), at(9, 45), model.ReservationStatusWaitlisted, created.Add(2*time.Minute))

	require.NoError(t, env.svc.CancelReservation(ctx, a.ID, alice))

	assert.Equal(t, model.ReservationStatusWaitlisted, env.store.status(blocked.ID))
	assert.Equal(t, model.ReservationStatusPending, env.store.status(fits.ID))
	env.assertNoOverlappingAllocations(t, resourceX)
}

func TestPromoteNext_FillsAllFreedRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := day.Add(-time.Hour)

	long := seed(env, resourceX, alice, at(9, 0), at(12, 0), model.ReservationStatusConfirmed, created)
	morning := seed(env, resourceX, bob, at(9, 0), at(10, 0), model.ReservationStatusWaitlisted, created.Add(time.Minute))
	noon := seed(env, resourceX, carol, at(11, 0), at(12, 0), model.ReservationStatusWaitlisted, created.Add(2*time.Minute))
	clash := seed(env, resourceX, carol, at(9, 30), at(11, 30), model.ReservationStatusWaitlisted, created.Add(3*time.Minute))

	require.NoError(t, env.svc.CancelReservation(ctx, long.ID, manager))

	assert.Equal(t, model.ReservationStatusPending, env.store.status(morning.ID))
	assert.Equal(t, model.ReservationStatusPending, env.store.status(noon.ID))
	assert.Equal(t, model.ReservationStatusWaitlisted, env.store.status(clash.ID))
	assert.Len(t, env.audit.actions(AuditPromoted), 2)
	env.assertNoOverlappingAllocations(t, resourceX)
}

func TestPromoteNext_NothingToPromote(t *testing.T) {
	env := newTestEnv(t)

	promoted, err := env.svc.PromoteNext(context.Background(), resourceX, at(9, 0), at(10, 0))
	require.NoError(t, err)
	assert.Nil(t, promoted)
	assert.Empty(t, env.audit.events)
}

func TestPromoteNext_SkipsCandidateCancelledConcurrently(t *testing.T) {
	env := newTestEnv(t)
	created := day.Add(-time.Hour)

	gone := seed(env, resourceX, bob, at(9, 0), at(10, 0), model.ReservationStatusWaitlisted, created)
	next := seed(env, resourceX, carol, at(13, 0), at(14, 0), model.ReservationStatusWaitlisted, created.Add(time.Minute))
	env.store.casMiss = func(id uuid.UUID) bool { return id == gone.ID }

	promoted, err := env.svc.PromoteNext(context.Background(), resourceX, at(9, 0), at(10, 0))
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, next.ID, promoted.ID)
}

func TestPromoteNext_ConcurrentReleases(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	created := day.Add(-time.Hour)

	a := seed(env, resourceX, alice, at(9, 0), at(10, 0), model.ReservationStatusConfirmed, created)
	b := seed(env, resourceX, bob, at(10, 0), at(11, 0), model.ReservationStatusConfirmed, created)

	var waitlisted []model.Reservation
	for i := 0; i < 6; i++ {
		waitlisted = append(waitlisted, seed(env, resourceX, carol,
			at(9, 15*i%60), at(10, 30), model.ReservationStatusWaitlisted, created.Add(time.Duration(i+1)*time.Minute)))
	}

	var g errgroup.Group
	g.Go(func() error { return env.svc.CancelReservation(ctx, a.ID, manager) })
	g.Go(func() error { return env.svc.CancelReservation(ctx, b.ID, manager) })
	require.NoError(t, g.Wait())

	env.assertNoOverlappingAllocations(t, resourceX)

	promoted := env.audit.actions(AuditPromoted)
	require.NotEmpty(t, promoted)
	seen := make(map[string]bool)
	for _, e := range promoted {
		assert.False(t, seen[e.EntityRef], "promoted twice: %s", e.EntityRef)
		seen[e.EntityRef] = true
	}

	// Все заявки пересекаются между собой, поэтому слот получает ровно одна, самая ранняя
	assert.Len(t, promoted, 1)
	assert.Equal(t, model.ReservationStatusPending, env.store.status(waitlisted[0].ID))
}

func TestSweepWaitlists(t *testing.T) {
	env := newTestEnv(t)
	created := day.Add(-time.Hour)

	x1 := seed(env, resourceX, bob, at(9, 0), at(10, 0), model.ReservationStatusWaitlisted, created)
	x2 := seed(env, resourceX, carol, at(9, 30), at(10, 30), model.ReservationStatusWaitlisted, created.Add(time.Minute))
	y1 := seed(env, resourceY, alice, at(14, 0), at(15, 0), model.ReservationStatusWaitlisted, created)

	n, err := env.svc.SweepWaitlists(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, model.ReservationStatusPending, env.store.status(x1.ID))
	assert.Equal(t, model.ReservationStatusWaitlisted, env.store.status(x2.ID))
	assert.Equal(t, model.ReservationStatusPending, env.store.status(y1.ID))

	n, err = env.svc.SweepWaitlists(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepWaitlists_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	seed(env, resourceX, bob, at(9, 0), at(10, 0), model.ReservationStatusWaitlisted, day)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := env.svc.SweepWaitlists(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
