// Package user provides credential-record stores. The in-memory store backs
// tests and single-instance development; Postgres is the durable option.
package user

import (
	"context"
	"sync"

	"keyward/internal/identity/models"
	"keyward/pkg/platform/sentinel"
)

// InMemoryStore keeps credential records in process memory. Lookups by email
// and username hash go through secondary indexes so they stay O(1).
type InMemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]*models.User
	byEmail    map[string]string // email hash -> id
	byUsername map[string]string // username hash -> id
}

// New creates an empty in-memory store.
func New() *InMemoryStore {
	return &InMemoryStore{
		byID:       make(map[string]*models.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

// Insert adds a new record. Returns sentinel.ErrConflict when the ID, email
// hash, or username hash is already taken.
func (s *InMemoryStore) Insert(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := u.ID.String()
	if _, exists := s.byID[id]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byEmail[u.EmailHash]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byUsername[u.UsernameHash]; exists {
		return sentinel.ErrConflict
	}

	s.byID[id] = u.Clone()
	s.byEmail[u.EmailHash] = id
	s.byUsername[u.UsernameHash] = id
	return nil
}

// FindByID returns the record for id or sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return u.Clone(), nil
}

// FindByEmailHash returns the record whose email lookup hash matches.
func (s *InMemoryStore) FindByEmailHash(_ context.Context, hash string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[hash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// FindByUsernameHash returns the record whose username lookup hash matches.
func (s *InMemoryStore) FindByUsernameHash(_ context.Context, hash string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[hash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// Update replaces an existing record in full and maintains the lookup
// indexes. Returns sentinel.ErrNotFound for unknown IDs and
// sentinel.ErrConflict when a changed username hash collides with another
// record.
func (s *InMemoryStore) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := u.ID.String()
	current, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if u.UsernameHash != current.UsernameHash {
		if owner, taken := s.byUsername[u.UsernameHash]; taken && owner != id {
			return sentinel.ErrConflict
		}
		delete(s.byUsername, current.UsernameHash)
		s.byUsername[u.UsernameHash] = id
	}
	if u.EmailHash != current.EmailHash {
		if owner, taken := s.byEmail[u.EmailHash]; taken && owner != id {
			return sentinel.ErrConflict
		}
		delete(s.byEmail, current.EmailHash)
		s.byEmail[u.EmailHash] = id
	}

	s.byID[id] = u.Clone()
	return nil
}
