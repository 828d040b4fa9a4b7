// Package linkcache remembers which account a chat identity is linked to, so
// bot updates can skip the store on the hot path. Only positive lookups are
// cached; link and unlink keep entries in step with the store.
package linkcache

import (
	"context"
	"sync"
	"time"
)

type Cache interface {
	Get(ctx context.Context, externalID string) (accountID string, ok bool, err error)
	Set(ctx context.Context, externalID, accountID string) error
	Delete(ctx context.Context, externalID string) error
}

type entry struct {
	accountID string
	expiresAt time.Time
}

// Memory is a process-local Cache. A zero ttl keeps entries until deleted.
type Memory struct {
	mu   sync.RWMutex
	data map[string]entry
	ttl  time.Duration
	now  func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{data: make(map[string]entry), ttl: ttl, now: time.Now}
}

func (m *Memory) Get(_ context.Context, externalID string) (string, bool, error) {
	m.mu.RLock()
	e, ok := m.data[externalID]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		m.mu.Lock()
		delete(m.data, externalID)
		m.mu.Unlock()
		return "", false, nil
	}
	return e.accountID, true, nil
}

func (m *Memory) Set(_ context.Context, externalID, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := entry{accountID: accountID}
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}
	m.data[externalID] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, externalID)
	return nil
}

// Nop never caches anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Nop) Set(context.Context, string, string) error         { return nil }
func (Nop) Delete(context.Context, string) error              { return nil }
