package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrLinkExpired signals that the link outlived its expiry time.
	ErrLinkExpired = errors.New("link expired")
	// ErrLimitExhausted signals that the link used up its access limit.
	ErrLimitExhausted = errors.New("link access limit exhausted")
)

// Link describes the core short-link entity held in the link store.
// Token, TargetURL, OwnerID, ExpiresAt and CreatedAt never change after creation.
type Link struct {
	Token       string
	TargetURL   string
	OwnerID     uuid.UUID
	AccessLimit int
	AccessCount int
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// DeadReason reports why the link can no longer be accessed at now, or nil while it is live.
// A link whose lifetime ends exactly at now is already expired, so a zero lifetime never
// yields a usable link.
func (l *Link) DeadReason(now time.Time) error {
	if !now.Before(l.ExpiresAt) {
		return ErrLinkExpired
	}
	if l.AccessCount >= l.AccessLimit {
		return ErrLimitExhausted
	}
	return nil
}

// IsDead reports whether the link is expired or exhausted at now.
func (l *Link) IsDead(now time.Time) bool {
	return l.DeadReason(now) != nil
}

// Remaining returns how many successful accesses are left.
func (l *Link) Remaining() int {
	if l.AccessCount >= l.AccessLimit {
		return 0
	}
	return l.AccessLimit - l.AccessCount
}
