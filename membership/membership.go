// Package membership manages who belongs to a pot and with which role.
package membership

import (
	"context"
	"log/slog"
	"time"

	"github.com/billbatista/acasinha-pots/apperrors"
	"github.com/billbatista/acasinha-pots/pot"
	"github.com/google/uuid"
)

var (
	ErrNotMember        = apperrors.NotFound("MEMBER_NOT_FOUND", "user is not a member of this pot")
	ErrOwnerCannotLeave = apperrors.Authorization("MEMBER_OWNER_CANNOT_LEAVE", "the owner can't leave the pot, delete it instead")
	ErrOwnerImmutable   = apperrors.Authorization("MEMBER_OWNER_IMMUTABLE", "the owner's membership can't be changed")
	ErrNotAllowed       = apperrors.Authorization("MEMBER_NOT_ALLOWED", "not allowed to manage members of this pot")
)

type Repository interface {
	// Add inserts the membership unless the pair already exists, and returns
	// whichever row is stored. created reports whether this call inserted it.
	Add(ctx context.Context, m pot.Membership) (stored pot.Membership, created bool, err error)
	Get(ctx context.Context, potID, userID uuid.UUID) (pot.Membership, error)
	List(ctx context.Context, potID uuid.UUID) ([]pot.Membership, error)
	SetRole(ctx context.Context, potID, userID uuid.UUID, role pot.Role) error
	Remove(ctx context.Context, potID, userID uuid.UUID) error
}

// PotFinder is the slice of the pot registry the join flow needs.
type PotFinder interface {
	FindByShareCode(ctx context.Context, code string) (pot.Pot, error)
}

type Service struct {
	repo   Repository
	pots   PotFinder
	now    func() time.Time
	logger *slog.Logger
}

func NewService(repo Repository, pots PotFinder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pots: pots, now: time.Now, logger: logger}
}

// JoinByCode adds userID to the pot behind code as a plain member. Joining
// twice returns the existing membership with joined=false.
func (s *Service) JoinByCode(ctx context.Context, code string, userID uuid.UUID) (pot.Membership, bool, error) {
	p, err := s.pots.FindByShareCode(ctx, code)
	if err != nil {
		return pot.Membership{}, false, err
	}

	m, created, err := s.repo.Add(ctx, pot.Membership{
		PotID:    p.ID,
		UserID:   userID,
		Role:     pot.RoleMember,
		JoinedAt: s.now().UTC(),
	})
	if err != nil {
		return pot.Membership{}, false, apperrors.FromStore("joining pot", err)
	}
	if created {
		s.logger.Info("member joined pot", "pot_id", p.ID, "user_id", userID)
	}
	return m, created, nil
}

// Leave removes userID from the pot. The owner can't leave.
func (s *Service) Leave(ctx context.Context, potID, userID uuid.UUID) error {
	m, err := s.get(ctx, potID, userID)
	if err != nil {
		return err
	}
	if m.Role == pot.RoleOwner {
		return ErrOwnerCannotLeave
	}
	if err := s.repo.Remove(ctx, potID, userID); err != nil {
		return apperrors.FromStore("leaving pot", err)
	}
	return nil
}

// ListMembers returns members in join order.
func (s *Service) ListMembers(ctx context.Context, potID uuid.UUID) ([]pot.Membership, error) {
	members, err := s.repo.List(ctx, potID)
	if err != nil {
		return nil, apperrors.FromStore("listing members", err)
	}
	return members, nil
}

// RoleOf returns the role of userID in the pot, and false for non-members.
func (s *Service) RoleOf(ctx context.Context, potID, userID uuid.UUID) (pot.Role, bool, error) {
	m, err := s.repo.Get(ctx, potID, userID)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return "", false, nil
		}
		return "", false, apperrors.FromStore("loading membership", err)
	}
	return m.Role, true, nil
}

// SetRole promotes or demotes a member. Only the owner may do it and the
// owner role itself never moves.
func (s *Service) SetRole(ctx context.Context, potID, actorID, userID uuid.UUID, role pot.Role) (pot.Membership, error) {
	if role != pot.RoleAdmin && role != pot.RoleMember {
		return pot.Membership{}, pot.ErrInvalidRole
	}
	actor, err := s.RequireRole(ctx, potID, actorID)
	if err != nil {
		return pot.Membership{}, err
	}
	if actor != pot.RoleOwner {
		return pot.Membership{}, ErrNotAllowed
	}

	target, err := s.get(ctx, potID, userID)
	if err != nil {
		return pot.Membership{}, err
	}
	if target.Role == pot.RoleOwner {
		return pot.Membership{}, ErrOwnerImmutable
	}
	if target.Role == role {
		return target, nil
	}

	if err := s.repo.SetRole(ctx, potID, userID, role); err != nil {
		return pot.Membership{}, apperrors.FromStore("setting member role", err)
	}
	target.Role = role
	return target, nil
}

// Remove takes userID out of the pot on behalf of actorID. The owner may
// remove anyone else; admins may only remove plain members.
func (s *Service) Remove(ctx context.Context, potID, actorID, userID uuid.UUID) error {
	actor, err := s.RequireRole(ctx, potID, actorID)
	if err != nil {
		return err
	}
	if !pot.CanWrite(actor) {
		return ErrNotAllowed
	}

	target, err := s.get(ctx, potID, userID)
	if err != nil {
		return err
	}
	if target.Role == pot.RoleOwner {
		return ErrOwnerImmutable
	}
	if actor == pot.RoleAdmin && target.Role != pot.RoleMember {
		return ErrNotAllowed
	}

	if err := s.repo.Remove(ctx, potID, userID); err != nil {
		return apperrors.FromStore("removing member", err)
	}
	return nil
}

// RequireRole returns the caller's role, failing with an authorization
// error when the caller is not a member at all.
func (s *Service) RequireRole(ctx context.Context, potID, userID uuid.UUID) (pot.Role, error) {
	role, ok, err := s.RoleOf(ctx, potID, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotAllowed
	}
	return role, nil
}

func (s *Service) get(ctx context.Context, potID, userID uuid.UUID) (pot.Membership, error) {
	m, err := s.repo.Get(ctx, potID, userID)
	if err != nil {
		return pot.Membership{}, apperrors.FromStore("loading membership", err)
	}
	return m, nil
}
