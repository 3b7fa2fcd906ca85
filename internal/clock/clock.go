package clock

import (
	"sync"
	"time"
)

// Clock источник времени для сервисов
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// NewSystem возвращает часы на time.Now в UTC
func NewSystem() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Manual часы для тестов: время двигается только вручную
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual создаёт часы, стоящие на t
func NewManual(t time.Time) *Manual {
	return &Manual{now: t.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance сдвигает время вперёд на d
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}
