package ledger

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/billbatista/acasinha-pots/apperrors"
	"github.com/billbatista/acasinha-pots/pot"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func expense(payer uuid.UUID, amount string, splits SplitDetails) Transaction {
	return Transaction{ID: uuid.New(), UserID: payer, Amount: d(amount).Neg(), Splits: splits}
}

func deposit(payer uuid.UUID, amount string) Transaction {
	return Transaction{ID: uuid.New(), UserID: payer, Amount: d(amount)}
}

func TestCalculateBalancesClosure(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	txs := []Transaction{
		deposit(a, "100"),
		expense(a, "60", SplitDetails{a: d("30"), b: d("30")}),
	}

	balances := CalculateBalances([]uuid.UUID{a, b}, txs)
	if !balances[a].Equal(d("130")) {
		t.Fatalf("balance[a] = %s, want 130", balances[a])
	}
	if !balances[b].Equal(d("-30")) {
		t.Fatalf("balance[b] = %s, want -30", balances[b])
	}
	if total := Total(txs); !total.Equal(d("40")) {
		t.Fatalf("total = %s, want 40", total)
	}
}

func TestCalculateBalancesOrderIndependent(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	members := []uuid.UUID{a, b, c}
	txs := []Transaction{
		deposit(a, "100"),
		deposit(b, "12.34"),
		expense(a, "60", SplitDetails{a: d("30"), b: d("30")}),
		expense(c, "10.01", SplitDetails{a: d("3.34"), b: d("3.34"), c: d("3.33")}),
		expense(b, "7.50", nil),
	}
	want := CalculateBalances(members, txs)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		shuffled := append([]Transaction(nil), txs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := CalculateBalances(members, shuffled)
		for _, id := range members {
			if !got[id].Equal(want[id]) {
				t.Fatalf("balance[%s] = %s after shuffle, want %s", id, got[id], want[id])
			}
		}
	}
}

func TestCalculateBalancesUntouchedMembersAreSettled(t *testing.T) {
	a, idle := uuid.New(), uuid.New()
	balances := CalculateBalances([]uuid.UUID{a, idle}, []Transaction{deposit(a, "5")})
	if !balances[idle].IsZero() {
		t.Fatalf("balance[idle] = %s, want 0", balances[idle])
	}
	if len(balances) != 2 {
		t.Fatalf("len(balances) = %d, want 2", len(balances))
	}
}

// An expense stored without splits is a solo withdrawal and moves no debt,
// unlike splitting the same cost across every member.
func TestEmptySplitFallbackDiffersFromEvenSplit(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	members := []uuid.UUID{a, b}

	solo := CalculateBalances(members, []Transaction{expense(a, "60", nil)})
	if !solo[a].IsZero() || !solo[b].IsZero() {
		t.Fatalf("solo balances = %v, want both 0", solo)
	}

	splits, err := SplitEvenly(d("60"), members, 2)
	if err != nil {
		t.Fatalf("split evenly: %v", err)
	}
	shared := CalculateBalances(members, []Transaction{expense(a, "60", splits)})
	if !shared[a].Equal(d("30")) || !shared[b].Equal(d("-30")) {
		t.Fatalf("shared balances = %v, want a=30 b=-30", shared)
	}
}

func TestSplitEvenlyAssignsRemainderInIDOrder(t *testing.T) {
	ids := []uuid.UUID{
		uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		uuid.MustParse("22222222-2222-2222-2222-222222222222"),
	}

	splits, err := SplitEvenly(d("10.00"), ids, 2)
	if err != nil {
		t.Fatalf("split evenly: %v", err)
	}
	want := map[uuid.UUID]string{
		ids[1]: "3.34",
		ids[2]: "3.33",
		ids[0]: "3.33",
	}
	for id, share := range want {
		if !splits[id].Equal(d(share)) {
			t.Fatalf("share[%s] = %s, want %s", id, splits[id], share)
		}
	}
	if !splits.Sum().Equal(d("10")) {
		t.Fatalf("sum = %s, want 10", splits.Sum())
	}
}

func TestSplitEvenlyWholeUnitCurrency(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	splits, err := SplitEvenly(d("1001"), []uuid.UUID{a, b, a}, 0)
	if err != nil {
		t.Fatalf("split evenly: %v", err)
	}
	if len(splits) != 2 {
		t.Fatalf("len(splits) = %d, want 2 after dedupe", len(splits))
	}
	if !splits.Sum().Equal(d("1001")) {
		t.Fatalf("sum = %s, want 1001", splits.Sum())
	}
}

func TestSplitEvenlyBeyondInt64(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	cost := d("100000000000000000000.00")
	splits, err := SplitEvenly(cost, []uuid.UUID{a, b, c}, 2)
	if err != nil {
		t.Fatalf("split evenly: %v", err)
	}
	if !splits.Sum().Equal(cost) {
		t.Fatalf("sum = %s, want %s", splits.Sum(), cost)
	}
	allowed := map[uuid.UUID]bool{a: true, b: true, c: true}
	if err := ValidateSplits(cost.Neg(), splits, allowed, d("0.01")); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestSplitEvenlyNoMembers(t *testing.T) {
	if _, err := SplitEvenly(d("10"), nil, 2); !errors.Is(err, ErrNoMembersToSplit) {
		t.Fatalf("err = %v, want ErrNoMembersToSplit", err)
	}
}

func TestValidateSplits(t *testing.T) {
	a, b, stranger := uuid.New(), uuid.New(), uuid.New()
	allowed := map[uuid.UUID]bool{a: true, b: true}
	epsilon := d("0.01")

	tests := []struct {
		name   string
		splits SplitDetails
		want   error
	}{
		{name: "exact", splits: SplitDetails{a: d("25"), b: d("25")}},
		{name: "short", splits: SplitDetails{a: d("25"), b: d("20")}, want: ErrSplitMismatch},
		{name: "over", splits: SplitDetails{a: d("25"), b: d("25.01")}, want: ErrSplitMismatch},
		{name: "stranger", splits: SplitDetails{a: d("25"), stranger: d("25")}, want: ErrSplitNonMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSplits(d("-50"), tt.splits, allowed, epsilon)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("err = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Fatalf("err = %v, want a validation error", err)
			}
		})
	}
}

func TestNewTransaction(t *testing.T) {
	potID, payer, other := uuid.New(), uuid.New(), uuid.New()
	now := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)

	if _, err := NewTransaction(potID, payer, decimal.Zero, "x", "", "", nil, 2, now); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("zero err = %v, want ErrZeroAmount", err)
	}
	if _, err := NewTransaction(potID, payer, d("1.005"), "x", "", "", nil, 2, now); !errors.Is(err, pot.ErrTooPrecise) {
		t.Fatalf("precision err = %v, want ErrTooPrecise", err)
	}
	if _, err := NewTransaction(potID, payer, d("10"), "x", "", "", SplitDetails{payer: d("10")}, 2, now); !errors.Is(err, ErrSplitOnDeposit) {
		t.Fatalf("deposit split err = %v, want ErrSplitOnDeposit", err)
	}
	if _, err := NewTransaction(potID, payer, d("-10"), "x", "", "", SplitDetails{payer: d("11"), other: d("-1")}, 2, now); !errors.Is(err, ErrNegativeShare) {
		t.Fatalf("negative share err = %v, want ErrNegativeShare", err)
	}

	tx, err := NewTransaction(potID, payer, d("-42.50"), "  Groceries ", "", "food", nil, 2, now)
	if err != nil {
		t.Fatalf("new expense: %v", err)
	}
	if tx.Title != "Groceries" {
		t.Fatalf("title = %q, want trimmed", tx.Title)
	}
	if len(tx.Splits) != 1 || !tx.Splits[payer].Equal(d("42.50")) {
		t.Fatalf("splits = %v, want the payer carrying 42.50", tx.Splits)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		current, target, want string
	}{
		{"140", "1000", "14"},
		{"0", "0", "0"},
		{"50", "0", "0"},
		{"-20", "100", "0"},
		{"1500", "1000", "100"},
		{"1", "3", "33.33"},
	}
	for _, tt := range tests {
		p := pot.Pot{CurrentAmount: d(tt.current), TargetAmount: d(tt.target)}
		if got := Progress(p); !got.Equal(d(tt.want)) {
			t.Fatalf("Progress(%s/%s) = %s, want %s", tt.current, tt.target, got, tt.want)
		}
	}
}

func TestEventDataListsSplitsInOrder(t *testing.T) {
	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	tx := expense(a, "60", SplitDetails{b: d("30"), a: d("30")})

	data := tx.EventData()
	want := a.String() + "=30," + b.String() + "=30"
	if data["splits"] != want {
		t.Fatalf("splits = %q, want %q", data["splits"], want)
	}
	if data["amount"] != "-60" {
		t.Fatalf("amount = %q, want -60", data["amount"])
	}
}
