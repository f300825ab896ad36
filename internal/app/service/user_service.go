package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/ShortLife/internal/app/model"
	"github.com/sifan077/ShortLife/internal/app/repository"
	"go.uber.org/zap"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = repository.ErrUserNotFound
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = errors.New("username and password cannot be empty")
)

// UserService is the in-process identity provider. It hands out owner ids; the link
// engine only ever sees those ids.
type UserService interface {
	Register(ctx context.Context, username, password string) (uuid.UUID, error)
	Login(ctx context.Context, username, password string) (uuid.UUID, error)
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type userService struct {
	logger *zap.Logger
	repo   repository.UserRepository
}

// NewUserService returns an identity provider backed by the given repository.
func NewUserService(logger *zap.Logger, repo repository.UserRepository) UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &userService{logger: logger.Named("users"), repo: repo}
}

func (s *userService) Register(ctx context.Context, username, password string) (uuid.UUID, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return uuid.Nil, ErrInvalidUsername
	}

	user := &model.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hashPassword(password),
		CreatedAt:    time.Now(),
	}
	if err := s.repo.Create(user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return uuid.Nil, ErrUserExists
		}
		return uuid.Nil, fmt.Errorf("register user: %w", err)
	}

	s.logger.Info("user registered", zap.String("username", username), zap.String("owner_id", user.ID.String()))
	return user.ID, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (uuid.UUID, error) {
	user, err := s.repo.GetByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return uuid.Nil, ErrInvalidCredentials
		}
		return uuid.Nil, fmt.Errorf("login: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(hashPassword(password))) != 1 {
		s.logger.Warn("login failed", zap.String("username", user.Username))
		return uuid.Nil, ErrInvalidCredentials
	}
	return user.ID, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// hashPassword is a plain digest; credential security is out of scope for this tool.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
