package model

import (
	"time"

	"github.com/google/uuid"
)

// User is an account known to the in-process identity provider.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
