package session

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/billbatista/acasinha-pots/sqldb"
	"github.com/google/uuid"
)

type repository struct {
	db  *sqldb.DB
	ttl time.Duration
	now func() time.Time
}

func NewRepository(db *sqldb.DB, opts ...Option) *repository {
	r := &repository{db: db, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *repository) Create(ctx context.Context, userID uuid.UUID) (*Session, error) {
	token, err := generateSecureToken()
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	session := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: now,
	}

	query := `
        INSERT INTO sessions (id, user_id, token, expires_at, created_at)
        VALUES (?, ?, ?, ?, ?)
    `

	_, err = r.db.ExecContext(ctx, r.db.Rebind(query),
		session.ID,
		session.UserID,
		session.Token,
		sqldb.ToMillis(session.ExpiresAt),
		sqldb.ToMillis(session.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	return session, nil
}

// GetByToken retrieves a session by token and validates it's not expired
func (r *repository) GetByToken(ctx context.Context, token string) (*Session, error) {
	var session Session
	var expiresAt, createdAt int64

	query := `
        SELECT id, user_id, token, expires_at, created_at
        FROM sessions
        WHERE token = ?
    `

	err := r.db.QueryRowContext(ctx, r.db.Rebind(query), token).Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&expiresAt,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	session.ExpiresAt = sqldb.FromMillis(expiresAt)
	session.CreatedAt = sqldb.FromMillis(createdAt)

	if session.Expired(r.now()) {
		return nil, ErrExpiredSession
	}

	return &session, nil
}

// Delete removes a session (logout)
func (r *repository) Delete(ctx context.Context, token string) error {
	query := `DELETE FROM sessions WHERE token = ?`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query), token)
	return err
}

// DeleteByUserID removes all sessions for a user
func (r *repository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM sessions WHERE user_id = ?`
	_, err := r.db.ExecContext(ctx, r.db.Rebind(query), userID)
	return err
}

func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
