package identity

import (
	"context"
	"sync"
	"time"

	"github.com/warp/enterprise-dashboard/generic"
)

// MemoryStore is an in-process Store for tests and development.
type MemoryStore struct {
	mu       sync.RWMutex
	byEmail  map[string]Credentials
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byEmail:  make(map[string]Credentials),
		sessions: make(map[string]Session),
	}
}

func (m *MemoryStore) CreateCredentials(_ context.Context, c Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[c.Email]; taken {
		return generic.NewValidationError("email", "taken")
	}
	m.byEmail[c.Email] = c
	return nil
}

func (m *MemoryStore) GetCredentials(_ context.Context, email string) (*Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryStore) DeleteCredentials(_ context.Context, email string) error {
	m.mu.Lock()
	delete(m.byEmail, email)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) CreateSession(_ context.Context, s Session) error {
	m.mu.Lock()
	m.sessions[s.Token] = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, token string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for token, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

var (
	_ Store                = (*MemoryStore)(nil)
	_ ExpiredSessionPurger = (*MemoryStore)(nil)
)
