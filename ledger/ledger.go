// Package ledger records a pot's deposits and expenses and turns the
// transaction history into per-member balances.
package ledger

import (
	"bytes"
	"slices"
	"strings"
	"time"

	"github.com/billbatista/acasinha-pots/apperrors"
	"github.com/billbatista/acasinha-pots/pot"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SplitDetails maps a member id to the share of an expense they owe.
type SplitDetails map[uuid.UUID]decimal.Decimal

func (s SplitDetails) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, share := range s {
		sum = sum.Add(share)
	}
	return sum
}

// Members returns the split keys in a stable order.
func (s SplitDetails) Members() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Transaction is a signed monetary event: positive amounts are deposits,
// negative amounts are expenses.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	PotID       uuid.UUID       `json:"pot_id"`
	UserID      uuid.UUID       `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Splits      SplitDetails    `json:"split_details,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Seq         int64           `json:"-"` // Insertion order, breaks CreatedAt ties
}

func (t Transaction) IsDeposit() bool {
	return t.Amount.IsPositive()
}

func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

var (
	ErrZeroAmount       = apperrors.Validation("TX_AMOUNT_ZERO", "amount can't be zero")
	ErrSplitOnDeposit   = apperrors.Validation("TX_SPLIT_ON_DEPOSIT", "deposits can't carry split details")
	ErrNegativeShare    = apperrors.Validation("TX_SPLIT_NEGATIVE", "split shares can't be negative")
	ErrSplitMismatch    = apperrors.Validation("TX_SPLIT_MISMATCH", "split shares must add up to the expense amount")
	ErrSplitNonMember   = apperrors.Validation("TX_SPLIT_NON_MEMBER", "split includes someone who is not a member of the pot")
	ErrNoMembersToSplit = apperrors.Validation("TX_SPLIT_EMPTY", "no members to split expense")
	ErrPotArchived      = apperrors.Validation("TX_POT_ARCHIVED", "archived pots can't take new ledger changes")
	ErrNotFound         = apperrors.NotFound("TX_NOT_FOUND", "transaction not found")
	ErrNotMember        = apperrors.Authorization("TX_NOT_MEMBER", "only pot members can record transactions")
	ErrNotAllowed       = apperrors.Authorization("TX_NOT_ALLOWED", "only the owner or an admin can change recorded transactions")
)

// NewTransaction validates the shape of a transaction. An expense with no
// split is attributed entirely to the payer.
func NewTransaction(potID, userID uuid.UUID, amount decimal.Decimal, title, description, category string, splits SplitDetails, scale int32, now time.Time) (Transaction, error) {
	if amount.IsZero() {
		return Transaction{}, ErrZeroAmount
	}
	if err := pot.CheckScale(amount, scale); err != nil {
		return Transaction{}, err
	}

	t := Transaction{
		ID:          uuid.New(),
		PotID:       potID,
		UserID:      userID,
		Amount:      amount,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Category:    strings.TrimSpace(category),
		CreatedAt:   now.UTC(),
	}

	if t.IsDeposit() {
		if len(splits) > 0 {
			return Transaction{}, ErrSplitOnDeposit
		}
		return t, nil
	}

	if len(splits) == 0 {
		t.Splits = SplitDetails{userID: amount.Abs()}
		return t, nil
	}

	t.Splits = make(SplitDetails, len(splits))
	for id, share := range splits {
		if share.IsNegative() {
			return Transaction{}, ErrNegativeShare
		}
		if err := pot.CheckScale(share, scale); err != nil {
			return Transaction{}, err
		}
		t.Splits[id] = share
	}
	return t, nil
}

// ValidateSplits checks that every key is allowed and that the shares add up
// to the expense cost within epsilon.
func ValidateSplits(amount decimal.Decimal, splits SplitDetails, allowed map[uuid.UUID]bool, epsilon decimal.Decimal) error {
	for id := range splits {
		if !allowed[id] {
			return ErrSplitNonMember
		}
	}
	if splits.Sum().Sub(amount.Abs()).Abs().GreaterThanOrEqual(epsilon) {
		return ErrSplitMismatch
	}
	return nil
}

// SplitEvenly divides cost across memberIDs in whole minor units. Leftover
// units go one each to the first members in id order, so the shares always
// add up to cost exactly.
func SplitEvenly(cost decimal.Decimal, memberIDs []uuid.UUID, scale int32) (SplitDetails, error) {
	ids := slices.Clone(memberIDs)
	sortIDs(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return nil, ErrNoMembersToSplit
	}
	if err := pot.CheckScale(cost, scale); err != nil {
		return nil, err
	}

	units := cost.Abs().Shift(scale)
	baseUnits, remainder := units.QuoRem(decimal.NewFromInt(int64(len(ids))), 0)
	leftover := remainder.IntPart()

	splits := make(SplitDetails, len(ids))
	for i, id := range ids {
		share := baseUnits
		if int64(i) < leftover {
			share = share.Add(decimal.NewFromInt(1))
		}
		splits[id] = share.Shift(-scale)
	}
	return splits, nil
}

func sortIDs(ids []uuid.UUID) {
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
}
