package pot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/billbatista/acasinha-pots/apperrors"
	"github.com/billbatista/acasinha-pots/invitecode"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const DefaultMaxCodeAttempts = 5

type Repository interface {
	// CreateWithOwner stores the pot and its owner membership as one unit.
	// It returns ErrShareCodeTaken when the share code is already used.
	CreateWithOwner(ctx context.Context, p Pot, owner Membership) error
	GetByID(ctx context.Context, id uuid.UUID) (Pot, error)
	GetByShareCode(ctx context.Context, code string) (Pot, error)
	ListByMember(ctx context.Context, userID uuid.UUID) ([]Pot, error)
	// UpdateStatus and UpdateDetails write only their own columns and
	// return ErrNotAllowed unless actorID is an owner or admin at write time.
	UpdateStatus(ctx context.Context, id, actorID uuid.UUID, status Status) error
	UpdateDetails(ctx context.Context, id, actorID uuid.UUID, in UpdateInput) error
	// Delete removes the pot with every membership and transaction it owns.
	Delete(ctx context.Context, id uuid.UUID) error
	MemberRole(ctx context.Context, potID, userID uuid.UUID) (Role, bool, error)
}

type CreateInput struct {
	Name         string
	TargetAmount decimal.Decimal
	Currency     string
	OwnerID      uuid.UUID
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Name         *string
	TargetAmount *decimal.Decimal
}

type Registry struct {
	repo            Repository
	generateCode    func() (string, error)
	maxCodeAttempts int
	now             func() time.Time
	logger          *slog.Logger
}

type Option func(*Registry)

func WithCodeGenerator(fn func() (string, error)) Option {
	return func(r *Registry) {
		r.generateCode = fn
	}
}

func WithMaxCodeAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxCodeAttempts = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func NewRegistry(repo Repository, opts ...Option) *Registry {
	r := &Registry{
		repo:            repo,
		generateCode:    invitecode.Generate,
		maxCodeAttempts: DefaultMaxCodeAttempts,
		now:             time.Now,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreatePot validates the input, allocates a unique share code and stores
// the pot together with its owner membership.
func (r *Registry) CreatePot(ctx context.Context, in CreateInput) (Pot, error) {
	p, err := NewPot(in.Name, in.TargetAmount, in.Currency, in.OwnerID, r.now())
	if err != nil {
		return Pot{}, err
	}
	owner := Membership{
		PotID:    p.ID,
		UserID:   in.OwnerID,
		Role:     RoleOwner,
		JoinedAt: p.CreatedAt,
	}

	for attempt := 1; attempt <= r.maxCodeAttempts; attempt++ {
		code, err := r.generateCode()
		if err != nil {
			return Pot{}, fmt.Errorf("generating share code: %w", err)
		}
		p.ShareCode = invitecode.Normalize(code)

		err = r.repo.CreateWithOwner(ctx, p, owner)
		if errors.Is(err, ErrShareCodeTaken) {
			r.logger.Warn("share code collision", "attempt", attempt, "max_attempts", r.maxCodeAttempts)
			continue
		}
		if err != nil {
			return Pot{}, apperrors.FromStore("creating pot", err)
		}
		return p, nil
	}

	return Pot{}, ErrShareCodeExhausted
}

func (r *Registry) Get(ctx context.Context, potID uuid.UUID) (Pot, error) {
	p, err := r.repo.GetByID(ctx, potID)
	if err != nil {
		return Pot{}, apperrors.FromStore("loading pot", err)
	}
	return p, nil
}

// FindByShareCode looks a pot up by code without any membership check, so
// that non-members can join.
func (r *Registry) FindByShareCode(ctx context.Context, code string) (Pot, error) {
	code = invitecode.Normalize(code)
	if !invitecode.Valid(code) {
		return Pot{}, ErrNotFound
	}
	p, err := r.repo.GetByShareCode(ctx, code)
	if err != nil {
		return Pot{}, apperrors.FromStore("finding pot by code", err)
	}
	return p, nil
}

// ListForUser returns the pots userID belongs to, newest first.
func (r *Registry) ListForUser(ctx context.Context, userID uuid.UUID) ([]Pot, error) {
	pots, err := r.repo.ListByMember(ctx, userID)
	if err != nil {
		return nil, apperrors.FromStore("listing pots", err)
	}
	return pots, nil
}

// SetStatus archives or reactivates a pot. Setting the current status again
// is a no-op.
func (r *Registry) SetStatus(ctx context.Context, potID uuid.UUID, status Status, actorID uuid.UUID) (Pot, error) {
	if !status.Valid() {
		return Pot{}, ErrInvalidStatus
	}
	p, err := r.Get(ctx, potID)
	if err != nil {
		return Pot{}, err
	}
	if err := r.requireWriter(ctx, potID, actorID); err != nil {
		return Pot{}, err
	}
	if p.Status == status {
		return p, nil
	}

	if err := r.repo.UpdateStatus(ctx, potID, actorID, status); err != nil {
		return Pot{}, apperrors.FromStore("updating pot status", err)
	}
	r.logger.Info("pot status changed", "pot_id", potID, "status", status, "actor_id", actorID)
	return r.Get(ctx, potID)
}

// UpdateDetails renames or retargets a pot.
func (r *Registry) UpdateDetails(ctx context.Context, potID, actorID uuid.UUID, in UpdateInput) (Pot, error) {
	p, err := r.Get(ctx, potID)
	if err != nil {
		return Pot{}, err
	}
	if err := r.requireWriter(ctx, potID, actorID); err != nil {
		return Pot{}, err
	}

	var update UpdateInput
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Pot{}, ErrEmptyName
		}
		update.Name = &name
	}
	if in.TargetAmount != nil {
		if in.TargetAmount.IsNegative() {
			return Pot{}, ErrNegativeTarget
		}
		if err := CheckScale(*in.TargetAmount, p.Scale()); err != nil {
			return Pot{}, err
		}
		update.TargetAmount = in.TargetAmount
	}

	if err := r.repo.UpdateDetails(ctx, potID, actorID, update); err != nil {
		return Pot{}, apperrors.FromStore("updating pot", err)
	}
	return r.Get(ctx, potID)
}

// DeletePot removes the pot and everything it owns. Only the owner may do it.
func (r *Registry) DeletePot(ctx context.Context, potID, actorID uuid.UUID) error {
	p, err := r.Get(ctx, potID)
	if err != nil {
		return err
	}
	if p.OwnerID != actorID {
		return ErrOwnerOnly
	}
	if err := r.repo.Delete(ctx, potID); err != nil {
		return apperrors.FromStore("deleting pot", err)
	}
	r.logger.Info("pot deleted", "pot_id", potID, "actor_id", actorID)
	return nil
}

func (r *Registry) requireWriter(ctx context.Context, potID, actorID uuid.UUID) error {
	role, ok, err := r.repo.MemberRole(ctx, potID, actorID)
	if err != nil {
		return apperrors.FromStore("loading member role", err)
	}
	if !ok || !CanWrite(role) {
		return ErrNotAllowed
	}
	return nil
}
