// Package session persists the client's bearer token and the signed-in user.
//
// A Store is deliberately dumb: it keeps whatever it is given and never checks
// that token and user belong together. Keeping the pair consistent is the job
// of the auth controller, which writes both with SetSession and removes both
// with Clear.
package session

import (
	"sync"

	"secondhand/internal/domain"
)

// Change describes one mutation. Cleared is set when both values were removed.
type Change struct {
	Token   string
	User    *domain.User
	Cleared bool
}

type Store interface {
	Token() (string, bool)
	SetToken(token string) error
	User() (*domain.User, bool)
	SetUser(u domain.User) error
	// SetSession writes token and user in one step.
	SetSession(token string, u domain.User) error
	// Clear removes token and user in one step.
	Clear() error
	// ReplaceUser stores u only while token is still the stored token.
	ReplaceUser(token string, u domain.User) (bool, error)
	// ClearIf clears the pair only while token is still the stored token.
	ClearIf(token string) (bool, error)
	// Subscribe registers fn for every later mutation and returns its cancel func.
	// fn runs synchronously after the write, outside any store lock.
	Subscribe(fn func(Change)) (unsubscribe func())
}

type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Change)
}

func (s *subscribers) add(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = map[int]func(Change){}
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) emit(c Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	user  *domain.User
	subs  subscribers
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

func (m *MemoryStore) User() (*domain.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyUser(m.user), m.user != nil
}

func (m *MemoryStore) SetToken(token string) error {
	m.mu.Lock()
	m.token = token
	u := copyUser(m.user)
	m.mu.Unlock()
	m.subs.emit(Change{Token: token, User: u})
	return nil
}

func (m *MemoryStore) SetUser(u domain.User) error {
	m.mu.Lock()
	m.user = &u
	tok := m.token
	m.mu.Unlock()
	m.subs.emit(Change{Token: tok, User: copyUser(&u)})
	return nil
}

func (m *MemoryStore) SetSession(token string, u domain.User) error {
	m.mu.Lock()
	m.token, m.user = token, &u
	m.mu.Unlock()
	m.subs.emit(Change{Token: token, User: copyUser(&u)})
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	m.token, m.user = "", nil
	m.mu.Unlock()
	m.subs.emit(Change{Cleared: true})
	return nil
}

func (m *MemoryStore) ReplaceUser(token string, u domain.User) (bool, error) {
	m.mu.Lock()
	if token == "" || m.token != token {
		m.mu.Unlock()
		return false, nil
	}
	m.user = &u
	m.mu.Unlock()
	m.subs.emit(Change{Token: token, User: copyUser(&u)})
	return true, nil
}

func (m *MemoryStore) ClearIf(token string) (bool, error) {
	m.mu.Lock()
	if m.token != token {
		m.mu.Unlock()
		return false, nil
	}
	m.token, m.user = "", nil
	m.mu.Unlock()
	m.subs.emit(Change{Cleared: true})
	return true, nil
}

func (m *MemoryStore) Subscribe(fn func(Change)) func() { return m.subs.add(fn) }
