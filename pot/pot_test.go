package pot

import (
	"errors"
	"testing"
	"time"

	"github.com/billbatista/acasinha-pots/apperrors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestNewPotValidation(t *testing.T) {
	owner := uuid.New()
	now := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		potName  string
		target   string
		currency string
		want     error
	}{
		{"empty name", "   ", "100", "GBP", ErrEmptyName},
		{"negative target", "Trip", "-1", "GBP", ErrNegativeTarget},
		{"unknown currency", "Trip", "100", "ZZZ", ErrInvalidCurrency},
		{"too precise", "Trip", "10.005", "GBP", ErrTooPrecise},
		{"yen has no minor unit", "Trip", "10.5", "JPY", ErrTooPrecise},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPot(tc.potName, decimal.RequireFromString(tc.target), tc.currency, owner, now)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if !errors.Is(err, apperrors.ErrValidation) {
				t.Fatalf("err = %v, want a validation error", err)
			}
		})
	}
}

func TestNewPotDefaults(t *testing.T) {
	owner := uuid.New()
	now := time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)

	p, err := NewPot("  Holiday  ", decimal.Zero, "gbp", owner, now)
	if err != nil {
		t.Fatalf("new pot: %v", err)
	}
	if p.Name != "Holiday" {
		t.Fatalf("name = %q, want Holiday", p.Name)
	}
	if p.Currency != "GBP" {
		t.Fatalf("currency = %q, want GBP", p.Currency)
	}
	if p.Status != StatusActive {
		t.Fatalf("status = %q, want active", p.Status)
	}
	if !p.CurrentAmount.IsZero() {
		t.Fatalf("current amount = %s, want 0", p.CurrentAmount)
	}
	if !p.MinorUnit().Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("minor unit = %s, want 0.01", p.MinorUnit())
	}
}

func TestParseCurrencyScale(t *testing.T) {
	cases := map[string]int32{"GBP": 2, "USD": 2, "JPY": 0, "KWD": 3}
	for code, want := range cases {
		got, scale, err := ParseCurrency(code)
		if err != nil {
			t.Fatalf("parse %s: %v", code, err)
		}
		if got != code || scale != want {
			t.Fatalf("ParseCurrency(%s) = %s, %d; want %s, %d", code, got, scale, code, want)
		}
	}
}

func TestCanWrite(t *testing.T) {
	if !CanWrite(RoleOwner) || !CanWrite(RoleAdmin) {
		t.Fatal("owner and admin must be able to write")
	}
	if CanWrite(RoleMember) || CanWrite(Role("")) {
		t.Fatal("member and unknown roles must not be able to write")
	}
}
