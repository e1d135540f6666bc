package ledger

import (
	"github.com/billbatista/acasinha-pots/pot"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CalculateBalances computes each member's net position from the full
// transaction history. Positive means the pot owes the member, negative
// means the member owes the pot. The result does not depend on the order of
// txs.
func CalculateBalances(memberIDs []uuid.UUID, txs []Transaction) map[uuid.UUID]decimal.Decimal {
	balances := make(map[uuid.UUID]decimal.Decimal, len(memberIDs))

	// Initialize all members with 0 balance
	for _, userID := range memberIDs {
		balances[userID] = decimal.Zero
	}

	for _, t := range txs {
		switch {
		case t.IsDeposit():
			balances[t.UserID] = balances[t.UserID].Add(t.Amount)
		case t.IsExpense():
			cost := t.Amount.Abs()
			balances[t.UserID] = balances[t.UserID].Add(cost)
			if len(t.Splits) == 0 {
				// Solo withdrawal: the payer carries the whole cost.
				balances[t.UserID] = balances[t.UserID].Sub(cost)
				continue
			}
			for memberID, share := range t.Splits {
				balances[memberID] = balances[memberID].Sub(share)
			}
		}
	}

	return balances
}

// Total is the pot's cash position: the sum of every transaction amount.
func Total(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}

// Progress is how far the pot is toward its target, as a percentage clamped
// to [0, 100]. A pot without a target reports 0.
func Progress(p pot.Pot) decimal.Decimal {
	if !p.TargetAmount.IsPositive() {
		return decimal.Zero
	}
	pct := p.CurrentAmount.Mul(hundred).Div(p.TargetAmount)
	switch {
	case pct.IsNegative():
		return decimal.Zero
	case pct.GreaterThan(hundred):
		return hundred
	}
	return pct.Round(2)
}
