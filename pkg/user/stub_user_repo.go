package user

import (
	"context"
	"sync"
	"time"
)

type StubUserRepository struct {
	mu     sync.Mutex
	nextId int64
	data   map[string]User
	// Err, when set, is returned by every call.
	Err error
}

func NewStubUserRepository() *StubUserRepository {
	return &StubUserRepository{nextId: 1, data: map[string]User{}}
}

func (s *StubUserRepository) CreateIfAbsent(ctx context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.data[user.ExternalId]; ok {
		return nil
	}
	user.Id = s.nextId
	user.CreatedAt = time.Now()
	s.nextId++
	s.data[user.ExternalId] = user
	return nil
}

func (s *StubUserRepository) GetByExternalId(ctx context.Context, externalId string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return User{}, s.Err
	}
	user, ok := s.data[externalId]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *StubUserRepository) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
