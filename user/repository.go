package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/billbatista/acasinha-pots/sqldb"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type repository struct {
	db   *sqldb.DB
	cost int
}

func NewRepository(db *sqldb.DB) *repository {
	return &repository{db: db, cost: bcrypt.DefaultCost}
}

func (r *repository) Register(ctx context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	if password == "" {
		return nil, ErrBlankPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now().UTC(),
	}

	query := `INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, r.db.Rebind(query), user.ID, user.Email, user.PasswordHash, sqldb.ToMillis(user.CreatedAt))
	if err != nil {
		if sqldb.IsUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	return user, nil
}

// Authenticate looks the user up by email and checks the password. Unknown
// emails and wrong passwords fail the same way.
func (r *repository) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := r.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidEmail) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := r.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, full_name, email, avatar_url, password_hash, created_at FROM users WHERE email = ?`
	return r.getOne(ctx, query, email)
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT id, full_name, email, avatar_url, password_hash, created_at FROM users WHERE id = ?`
	return r.getOne(ctx, query, id)
}

func (r *repository) UpdateName(ctx context.Context, userID uuid.UUID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrBlankName
	}
	query := `UPDATE users SET full_name = ? WHERE id = ?`
	return r.exec(ctx, query, name, userID)
}

func (r *repository) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func (r *repository) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) error {
	query := `UPDATE users SET avatar_url = ? WHERE id = ?`
	return r.exec(ctx, query, strings.TrimSpace(avatarURL), userID)
}

// Profiles returns the public profile of every known id. Unknown ids are
// left out of the map.
func (r *repository) Profiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Profile, error) {
	profiles := make(map[uuid.UUID]Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := `SELECT id, full_name, avatar_url FROM users WHERE id IN (` + placeholders + `)`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.UserID, &p.Name, &p.AvatarURL); err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles[p.UserID] = p
	}

	return profiles, rows.Err()
}

func (r *repository) getOne(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	var createdAt int64
	err := r.db.QueryRowContext(ctx, r.db.Rebind(query), arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.AvatarURL,
		&user.PasswordHash,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}
	user.CreatedAt = sqldb.FromMillis(createdAt)

	return &user, nil
}

func (r *repository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
