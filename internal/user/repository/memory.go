package repository

import (
	"context"
	"sync"

	"github.com/psytech/auth-backend/internal/user/domain"
)

// MemoryRepository keeps users in process memory. Used for local development
// and tests when no database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[domain.UserID]domain.User
	byPhone map[string]domain.UserID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[domain.UserID]domain.User),
		byPhone: make(map[string]domain.UserID),
	}
}

func (r *MemoryRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPhone[user.PhoneNumber]; exists {
		return ErrPhoneAlreadyExists
	}

	r.byID[user.ID] = user
	r.byPhone[user.PhoneNumber] = user.ID
	return nil
}

func (r *MemoryRepository) FindByPhone(_ context.Context, phoneNumber string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPhone[phoneNumber]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id domain.UserID) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}
