package lease

import (
	"context"
	"sync"
	"time"
)

type memoryLease struct {
	mu   sync.Mutex
	now  func() time.Time
	held map[string]memoryHold
}

type memoryHold struct {
	holder    string
	expiresAt time.Time
}

func NewMemoryLease(now func() time.Time) Lease {
	if now == nil {
		now = time.Now
	}
	return &memoryLease{
		now:  now,
		held: make(map[string]memoryHold),
	}
}

func (m *memoryLease) Acquire(_ context.Context, name, holder string, ttl time.Duration) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.held[name]; ok && now.Before(current.expiresAt) && current.holder != holder {
		return false, nil
	}
	m.held[name] = memoryHold{holder: holder, expiresAt: now.Add(ttl)}
	return true, nil
}

func (m *memoryLease) Release(_ context.Context, name, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.held[name]
	if !ok || current.holder != holder || !m.now().Before(current.expiresAt) {
		return ErrNotHeld
	}
	delete(m.held, name)
	return nil
}
