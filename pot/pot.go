// Package pot holds the pot aggregate (pots and their memberships) and the
// registry that creates, archives and deletes pots.
package pot

import (
	"strings"
	"time"

	"github.com/billbatista/acasinha-pots/apperrors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusArchived
}

// Pot is a shared savings/expense goal. CurrentAmount is never stored: it is
// derived from the pot's transactions whenever a pot is read.
type Pot struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Currency      string          `json:"currency"`
	ShareCode     string          `json:"share_code"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

var (
	ErrEmptyName          = apperrors.Validation("POT_NAME_EMPTY", "name can't be empty")
	ErrNegativeTarget     = apperrors.Validation("POT_TARGET_NEGATIVE", "target amount can't be negative")
	ErrInvalidCurrency    = apperrors.Validation("POT_CURRENCY_INVALID", "currency must be an ISO 4217 code")
	ErrTooPrecise         = apperrors.Validation("AMOUNT_TOO_PRECISE", "amount has more decimal places than the currency allows")
	ErrInvalidStatus      = apperrors.Validation("POT_STATUS_INVALID", "status must be active or archived")
	ErrInvalidRole        = apperrors.Validation("POT_ROLE_INVALID", "role must be admin or member")
	ErrNotFound           = apperrors.NotFound("POT_NOT_FOUND", "pot not found")
	ErrNotAllowed         = apperrors.Authorization("POT_NOT_ALLOWED", "not allowed to change this pot")
	ErrOwnerOnly          = apperrors.Authorization("POT_OWNER_ONLY", "only the pot owner can do that")
	ErrShareCodeTaken     = apperrors.Conflict("POT_SHARE_CODE_TAKEN", "share code already in use")
	ErrShareCodeExhausted = apperrors.Conflict("POT_SHARE_CODE_EXHAUSTED", "could not allocate a unique share code")
)

// NewPot validates the input and builds an active pot with no share code yet.
func NewPot(name string, target decimal.Decimal, currencyCode string, ownerID uuid.UUID, now time.Time) (Pot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Pot{}, ErrEmptyName
	}

	code, scale, err := ParseCurrency(currencyCode)
	if err != nil {
		return Pot{}, err
	}

	if target.IsNegative() {
		return Pot{}, ErrNegativeTarget
	}
	if err := CheckScale(target, scale); err != nil {
		return Pot{}, err
	}

	return Pot{
		ID:            uuid.New(),
		Name:          name,
		TargetAmount:  target,
		CurrentAmount: decimal.Zero,
		Currency:      code,
		OwnerID:       ownerID,
		Status:        StatusActive,
		CreatedAt:     now.UTC(),
	}, nil
}

// Scale is the number of decimal places the pot's currency allows.
func (p Pot) Scale() int32 {
	_, scale, err := ParseCurrency(p.Currency)
	if err != nil {
		return 2
	}
	return scale
}

// MinorUnit is the smallest amount representable in the pot's currency.
func (p Pot) MinorUnit() decimal.Decimal {
	return decimal.New(1, -p.Scale())
}
