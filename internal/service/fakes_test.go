package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/model"
	"github.com/google/uuid"
)

type fakeTxKey struct{}

// fakeStore хранилище в памяти. WithTx сериализует транзакции одним мьютексом
// и откатывает изменения при ошибке.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	rows map[uuid.UUID]model.Reservation

	// Хуки для внедрения сбоев
	createErr  func(res *model.Reservation) error
	casMiss    func(id uuid.UUID) bool
	txCount    int
	lockCalls  map[int64]int
	missingRes map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rows:       make(map[uuid.UUID]model.Reservation),
		lockCalls:  make(map[int64]int),
		missingRes: make(map[int64]bool),
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}

	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	f.txCount++
	snapshot := make(map[uuid.UUID]model.Reservation, len(f.rows))
	for k, v := range f.rows {
		snapshot[k] = v
	}
	f.mu.Unlock()

	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		f.mu.Lock()
		f.rows = snapshot
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) LockResource(_ context.Context, resourceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missingRes[resourceID] {
		return model.ErrResourceNotFound
	}
	f.lockCalls[resourceID]++
	return nil
}

func (f *fakeStore) Create(_ context.Context, res *model.Reservation) error {
	if f.createErr != nil {
		if err := f.createErr(res); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// То же, что exclusion constraint в Postgres
	if res.Status.HoldsAllocation() {
		for _, other := range f.rows {
			if other.ResourceID == res.ResourceID && other.Status.HoldsAllocation() && res.Interval().Overlaps(other.Interval()) {
				return model.ErrAllocationOverlap
			}
		}
	}

	res.UpdatedAt = res.CreatedAt
	f.rows[res.ID] = *res
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (f *fakeStore) filter(keep func(model.Reservation) bool) []*model.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Reservation
	for _, r := range f.rows {
		if keep(r) {
			r := r
			out = append(out, &r)
		}
	}
	return out
}

func (f *fakeStore) ListAllocatingOverlapping(_ context.Context, resourceID int64, start, end time.Time) ([]*model.Reservation, error) {
	out := f.filter(func(r model.Reservation) bool {
		return r.ResourceID == resourceID && r.Status.HoldsAllocation() && model.Overlaps(r.StartTime, r.EndTime, start, end)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeStore) ListAllocating(_ context.Context, resourceID int64) ([]*model.Reservation, error) {
	out := f.filter(func(r model.Reservation) bool {
		return r.ResourceID == resourceID && r.Status.HoldsAllocation()
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeStore) ListWaitlisted(_ context.Context, resourceID int64) ([]*model.Reservation, error) {
	out := f.filter(func(r model.Reservation) bool {
		return r.ResourceID == resourceID && r.Status == model.ReservationStatusWaitlisted
	})
	sort.Slice(out, func(i, j int) bool { return model.WaitlistBefore(out[i], out[j]) })
	return out, nil
}

func (f *fakeStore) ListByRequester(_ context.Context, requesterID int64) ([]*model.Reservation, error) {
	out := f.filter(func(r model.Reservation) bool { return r.RequesterID == requesterID })
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (f *fakeStore) ResourcesWithWaitlist(_ context.Context) ([]int64, error) {
	seen := make(map[int64]bool)
	for _, r := range f.filter(func(r model.Reservation) bool { return r.Status == model.ReservationStatusWaitlisted }) {
		seen[r.ResourceID] = true
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeStore) CompareAndSetStatus(_ context.Context, id uuid.UUID, from, to model.ReservationStatus, at time.Time) (bool, error) {
	if f.casMiss != nil && f.casMiss(id) {
		return false, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.rows[id]
	if !ok || res.Status != from {
		return false, nil
	}
	res.Status = to
	res.UpdatedAt = at
	f.rows[id] = res
	return true, nil
}

// put кладёт бронь в обход движка
func (f *fakeStore) put(res model.Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[res.ID] = res
}

func (f *fakeStore) status(id uuid.UUID) model.ReservationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].Status
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeResource struct {
	bookable bool
	queueing bool
}

type fakeCatalog struct {
	mu        sync.Mutex
	resources map[int64]fakeResource
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{resources: make(map[int64]fakeResource)}
}

func (c *fakeCatalog) add(id int64, bookable, queueing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[id] = fakeResource{bookable: bookable, queueing: queueing}
}

func (c *fakeCatalog) IsResourceBookable(_ context.Context, id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.resources[id]
	if !ok {
		return false, model.ErrResourceNotFound
	}
	return r.bookable, nil
}

func (c *fakeCatalog) AllowsQueueing(_ context.Context, id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.resources[id]
	if !ok {
		return false, model.ErrResourceNotFound
	}
	return r.queueing, nil
}

type fakeActors map[int64]*model.User

func (a fakeActors) GetByID(_ context.Context, id int64) (*model.User, error) {
	return a[id], nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []AuditEvent
	fail   bool
}

func (r *recordingAudit) EmitAuditEvent(_ context.Context, event AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	if r.fail {
		return errors.New("audit sink down")
	}
	return nil
}

func (r *recordingAudit) actions(action string) []AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AuditEvent
	for _, e := range r.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	fail bool
}

func (r *recordingNotifier) EmitNotification(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	if r.fail {
		return errors.New("telegram unavailable")
	}
	return nil
}

func (r *recordingNotifier) forUser(userID int64) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type closedRule struct {
	closed model.Interval
}

func (c closedRule) Allows(_ context.Context, _ int64, interval model.Interval) (bool, error) {
	return !interval.Overlaps(c.closed), nil
}
