package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryItem struct {
	user    User
	expires time.Time
}

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	codes    map[string]memoryItem
	sessions map[string]memoryItem
}

// NewMemoryStore creates an empty store whose sessions live for ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		codes:    make(map[string]memoryItem),
		sessions: make(map[string]memoryItem),
	}
}

// AddSession registers a fixed token for u that never expires.
func (s *MemoryStore) AddSession(token string, u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = memoryItem{user: u}
}

func (s *MemoryStore) IssueCode(_ context.Context, u User) (string, error) {
	code := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = memoryItem{user: u, expires: s.now().Add(CodeTTL)}
	return code, nil
}

func (s *MemoryStore) Redeem(_ context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.codes[code]
	delete(s.codes, code)
	if !ok || s.expired(item) {
		return "", ErrInvalidCode
	}
	token := uuid.NewString()
	s.sessions[token] = memoryItem{user: item.user, expires: s.now().Add(s.ttl)}
	return token, nil
}

func (s *MemoryStore) Session(_ context.Context, token string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.sessions[token]
	if !ok || s.expired(item) {
		delete(s.sessions, token)
		return User{}, ErrUnauthenticated
	}
	return item.user, nil
}

func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *MemoryStore) expired(item memoryItem) bool {
	return !item.expires.IsZero() && s.now().After(item.expires)
}
