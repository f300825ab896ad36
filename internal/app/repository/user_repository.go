package repository

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sifan077/ShortLife/internal/app/model"
)

var (
	// ErrUserNotFound signals that no account matches the lookup key.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken signals that the username is already registered.
	ErrUsernameTaken = errors.New("username already taken")
)

// UserRepository defines the data access contract for accounts.
type UserRepository interface {
	Create(user *model.User) error
	GetByUsername(username string) (*model.User, error)
	GetByID(id uuid.UUID) (*model.User, error)
}

type userRepository struct {
	mu         sync.RWMutex
	byUsername map[string]*model.User
	byID       map[uuid.UUID]*model.User
}

// NewUserRepository returns an in-memory UserRepository.
func NewUserRepository() UserRepository {
	return &userRepository{
		byUsername: make(map[string]*model.User),
		byID:       make(map[uuid.UUID]*model.User),
	}
}

func (r *userRepository) Create(user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[user.Username]; ok {
		return ErrUsernameTaken
	}
	stored := *user
	r.byUsername[user.Username] = &stored
	r.byID[user.ID] = &stored
	return nil
}

func (r *userRepository) GetByUsername(username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}

func (r *userRepository) GetByID(id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *user
	return &out, nil
}
