package session

import (
	"context"
	"time"

	"github.com/billbatista/acasinha-pots/apperrors"
	"github.com/google/uuid"
)

var (
	ErrInvalidSession = apperrors.Authorization("SESSION_INVALID", "invalid session")
	ErrExpiredSession = apperrors.Authorization("SESSION_EXPIRED", "session expired")
)

const (
	DefaultTTL = 7 * 24 * time.Hour
	CookieName = "session_token"
)

type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

type Option func(*repository)

// WithTTL sets how long new sessions stay valid. Non-positive values keep
// DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *repository) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

type Repository interface {
	Create(ctx context.Context, userID uuid.UUID) (*Session, error)
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}
