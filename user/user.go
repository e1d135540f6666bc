package user

import (
	"context"
	"time"

	"github.com/billbatista/acasinha-pots/apperrors"
	"github.com/google/uuid"
)

var (
	ErrEmailExists        = apperrors.Conflict("USER_EMAIL_EXISTS", "email already exists")
	ErrInvalidEmail       = apperrors.Validation("USER_EMAIL_INVALID", "invalid email format")
	ErrBlankPassword      = apperrors.Validation("USER_PASSWORD_BLANK", "password can't be blank")
	ErrBlankName          = apperrors.Validation("USER_NAME_BLANK", "name can't be blank")
	ErrNotFound           = apperrors.NotFound("USER_NOT_FOUND", "user not found")
	ErrInvalidCredentials = apperrors.Authorization("USER_INVALID_CREDENTIALS", "invalid email or password")
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the public part of a user shown next to pot members and
// transactions.
type Profile struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

func (u User) Profile() Profile {
	return Profile{UserID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
}

type Repository interface {
	Register(ctx context.Context, email, password string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	VerifyPassword(hashedPassword, password string) error
	UpdateName(ctx context.Context, userID uuid.UUID, name string) error
	UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) error
	Profiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Profile, error)
}
