package pot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/billbatista/acasinha-pots/apperrors"
	"github.com/billbatista/acasinha-pots/sqldb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *sqldb.DB) {
	t.Helper()
	db, err := sqldb.OpenSQLite(t.TempDir() + "/pots.db")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRegistry(NewRepository(db), opts...), db
}

func fixedCodes(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		code := codes[i%len(codes)]
		i++
		return code, nil
	}
}

func createTestPot(t *testing.T, r *Registry, owner uuid.UUID) Pot {
	t.Helper()
	p, err := r.CreatePot(context.Background(), CreateInput{
		Name:         "Holiday",
		TargetAmount: decimal.NewFromInt(1000),
		Currency:     "GBP",
		OwnerID:      owner,
	})
	if err != nil {
		t.Fatalf("create pot: %v", err)
	}
	return p
}

func addMember(t *testing.T, db *sqldb.DB, potID, userID uuid.UUID, role Role) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO pot_members (pot_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`,
		potID, userID, role, sqldb.ToMillis(time.Now()),
	)
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
}

func TestCreatePotStoresOwnerMembership(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	owner := uuid.New()

	p := createTestPot(t, r, owner)
	if len(p.ShareCode) != 6 {
		t.Fatalf("share code = %q, want 6 chars", p.ShareCode)
	}

	role, ok, err := r.repo.MemberRole(ctx, p.ID, owner)
	if err != nil {
		t.Fatalf("member role: %v", err)
	}
	if !ok || role != RoleOwner {
		t.Fatalf("role = %q (%v), want owner", role, ok)
	}

	got, err := r.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Holiday" || got.Currency != "GBP" || !got.TargetAmount.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("stored pot = %+v", got)
	}
	if !got.CurrentAmount.IsZero() {
		t.Fatalf("current amount = %s, want 0", got.CurrentAmount)
	}
}

func TestCreatePotRetriesOnShareCodeCollision(t *testing.T) {
	r, _ := newTestRegistry(t, WithCodeGenerator(fixedCodes("AAAAAA", "AAAAAA", "BBBBBB")))
	owner := uuid.New()

	first := createTestPot(t, r, owner)
	second := createTestPot(t, r, owner)
	if first.ShareCode != "AAAAAA" {
		t.Fatalf("first code = %q, want AAAAAA", first.ShareCode)
	}
	if second.ShareCode != "BBBBBB" {
		t.Fatalf("second code = %q, want BBBBBB", second.ShareCode)
	}
}

func TestCreatePotFailsWhenCodesExhausted(t *testing.T) {
	r, _ := newTestRegistry(t, WithCodeGenerator(fixedCodes("AAAAAA")), WithMaxCodeAttempts(3))
	ctx := context.Background()
	owner := uuid.New()
	createTestPot(t, r, owner)

	_, err := r.CreatePot(ctx, CreateInput{Name: "Again", TargetAmount: decimal.Zero, Currency: "GBP", OwnerID: owner})
	if !errors.Is(err, ErrShareCodeExhausted) {
		t.Fatalf("err = %v, want ErrShareCodeExhausted", err)
	}
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("err = %v, want conflict kind", err)
	}

	pots, err := r.ListForUser(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pots) != 1 {
		t.Fatalf("pots = %d, want 1 (no partial pot left behind)", len(pots))
	}
}

func TestFindByShareCodeIsCaseInsensitive(t *testing.T) {
	r, _ := newTestRegistry(t, WithCodeGenerator(fixedCodes("AB12CD")))
	ctx := context.Background()
	p := createTestPot(t, r, uuid.New())

	got, err := r.FindByShareCode(ctx, " ab12cd ")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("found %s, want %s", got.ID, p.ID)
	}

	for _, code := range []string{"ZZZZZZ", "short", ""} {
		if _, err := r.FindByShareCode(ctx, code); !errors.Is(err, ErrNotFound) {
			t.Fatalf("find %q err = %v, want ErrNotFound", code, err)
		}
	}
}

func TestSetStatus(t *testing.T) {
	r, db := newTestRegistry(t)
	ctx := context.Background()
	owner, admin, member := uuid.New(), uuid.New(), uuid.New()
	p := createTestPot(t, r, owner)
	addMember(t, db, p.ID, admin, RoleAdmin)
	addMember(t, db, p.ID, member, RoleMember)

	if _, err := r.SetStatus(ctx, p.ID, StatusArchived, member); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("member archive err = %v, want ErrNotAllowed", err)
	}
	if _, err := r.SetStatus(ctx, p.ID, StatusArchived, uuid.New()); !errors.Is(err, apperrors.ErrAuthorization) {
		t.Fatalf("stranger archive err = %v, want authorization error", err)
	}
	if _, err := r.SetStatus(ctx, p.ID, Status("deleted"), owner); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("bad status err = %v, want ErrInvalidStatus", err)
	}

	got, err := r.SetStatus(ctx, p.ID, StatusArchived, admin)
	if err != nil {
		t.Fatalf("admin archive: %v", err)
	}
	if got.Status != StatusArchived {
		t.Fatalf("status = %q, want archived", got.Status)
	}

	again, err := r.SetStatus(ctx, p.ID, StatusArchived, owner)
	if err != nil {
		t.Fatalf("idempotent archive: %v", err)
	}
	if again.Status != StatusArchived {
		t.Fatalf("status = %q, want archived", again.Status)
	}

	back, err := r.SetStatus(ctx, p.ID, StatusActive, owner)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if back.Status != StatusActive {
		t.Fatalf("status = %q, want active", back.Status)
	}
}

func TestUpdateDetails(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	owner := uuid.New()
	p := createTestPot(t, r, owner)

	name := "Ski trip"
	target := decimal.RequireFromString("2500.50")
	got, err := r.UpdateDetails(ctx, p.ID, owner, UpdateInput{Name: &name, TargetAmount: &target})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != name || !got.TargetAmount.Equal(target) {
		t.Fatalf("updated pot = %+v", got)
	}

	blank := " "
	if _, err := r.UpdateDetails(ctx, p.ID, owner, UpdateInput{Name: &blank}); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("blank name err = %v, want ErrEmptyName", err)
	}
	tooFine := decimal.RequireFromString("1.001")
	if _, err := r.UpdateDetails(ctx, p.ID, owner, UpdateInput{TargetAmount: &tooFine}); !errors.Is(err, ErrTooPrecise) {
		t.Fatalf("precise target err = %v, want ErrTooPrecise", err)
	}
}

// hookedRepository calls before ahead of each details write, after the
// registry has done its own reads.
type hookedRepository struct {
	Repository
	before func()
}

func (h hookedRepository) UpdateDetails(ctx context.Context, id, actorID uuid.UUID, in UpdateInput) error {
	h.before()
	return h.Repository.UpdateDetails(ctx, id, actorID, in)
}

func TestRenameDuringArchiveKeepsBothChanges(t *testing.T) {
	db, err := sqldb.OpenSQLite(t.TempDir() + "/pots.db")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	owner := uuid.New()

	plain := NewRegistry(NewRepository(db))
	p := createTestPot(t, plain, owner)

	hooked := NewRegistry(hookedRepository{
		Repository: NewRepository(db),
		before: func() {
			if _, err := plain.SetStatus(ctx, p.ID, StatusArchived, owner); err != nil {
				t.Fatalf("archive: %v", err)
			}
		},
	})

	name := "Renamed"
	got, err := hooked.UpdateDetails(ctx, p.ID, owner, UpdateInput{Name: &name})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got.Name != "Renamed" || got.Status != StatusArchived {
		t.Fatalf("after rename: name = %q status = %q, want Renamed and archived", got.Name, got.Status)
	}

	stored, err := plain.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusArchived {
		t.Fatalf("stored status = %q, want archived", stored.Status)
	}
	if !stored.TargetAmount.Equal(p.TargetAmount) {
		t.Fatalf("target = %s, want untouched %s", stored.TargetAmount, p.TargetAmount)
	}
}

func TestUpdateDetailsRechecksRoleAtWriteTime(t *testing.T) {
	db, err := sqldb.OpenSQLite(t.TempDir() + "/pots.db")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	owner, admin := uuid.New(), uuid.New()

	plain := NewRegistry(NewRepository(db))
	p := createTestPot(t, plain, owner)
	addMember(t, db, p.ID, admin, RoleAdmin)

	hooked := NewRegistry(hookedRepository{
		Repository: NewRepository(db),
		before: func() {
			if _, err := db.Exec(`UPDATE pot_members SET role = ? WHERE pot_id = ? AND user_id = ?`, RoleMember, p.ID, admin); err != nil {
				t.Fatalf("demote: %v", err)
			}
		},
	})

	name := "Renamed"
	if _, err := hooked.UpdateDetails(ctx, p.ID, admin, UpdateInput{Name: &name}); !errors.Is(err, ErrNotAllowed) {
		t.Fatalf("demoted admin rename err = %v, want ErrNotAllowed", err)
	}
	stored, err := plain.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Name != p.Name {
		t.Fatalf("name = %q, want unchanged %q", stored.Name, p.Name)
	}
}

func TestDeletePotCascades(t *testing.T) {
	r, db := newTestRegistry(t)
	ctx := context.Background()
	owner, admin := uuid.New(), uuid.New()
	p := createTestPot(t, r, owner)
	addMember(t, db, p.ID, admin, RoleAdmin)

	txID := uuid.New()
	if _, err := db.Exec(
		`INSERT INTO transactions (id, pot_id, user_id, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
		txID, p.ID, owner, "-20", sqldb.ToMillis(time.Now()),
	); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO transaction_splits (transaction_id, user_id, amount) VALUES (?, ?, ?)`,
		txID, owner, "20",
	); err != nil {
		t.Fatalf("insert split: %v", err)
	}

	if err := r.DeletePot(ctx, p.ID, admin); !errors.Is(err, ErrOwnerOnly) {
		t.Fatalf("admin delete err = %v, want ErrOwnerOnly", err)
	}
	if err := r.DeletePot(ctx, p.ID, owner); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for _, table := range []string{"pots", "pot_members", "transactions", "transaction_splits"} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Fatalf("%s rows = %d, want 0", table, count)
		}
	}

	if _, err := r.Get(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted err = %v, want ErrNotFound", err)
	}
}

func TestCurrentAmountIsDerivedFromTransactions(t *testing.T) {
	r, db := newTestRegistry(t)
	ctx := context.Background()
	owner := uuid.New()
	p := createTestPot(t, r, owner)

	for i, amount := range []string{"200", "-60", "0.50"} {
		if _, err := db.Exec(
			`INSERT INTO transactions (id, pot_id, user_id, amount, created_at) VALUES (?, ?, ?, ?, ?)`,
			uuid.New(), p.ID, owner, amount, int64(i),
		); err != nil {
			t.Fatalf("insert transaction: %v", err)
		}
	}

	got, err := r.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CurrentAmount.Equal(decimal.RequireFromString("140.50")) {
		t.Fatalf("current amount = %s, want 140.50", got.CurrentAmount)
	}

	pots, err := r.ListForUser(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pots) != 1 || !pots[0].CurrentAmount.Equal(got.CurrentAmount) {
		t.Fatalf("listed pots = %+v", pots)
	}
}

func TestListForUserNewestFirst(t *testing.T) {
	clock := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r, _ := newTestRegistry(t, WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	owner := uuid.New()
	older := createTestPot(t, r, owner)
	newer := createTestPot(t, r, owner)
	createTestPot(t, r, uuid.New())

	pots, err := r.ListForUser(context.Background(), owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pots) != 2 {
		t.Fatalf("pots = %d, want 2", len(pots))
	}
	if pots[0].ID != newer.ID || pots[1].ID != older.ID {
		t.Fatalf("order = [%s %s], want newest first", pots[0].ID, pots[1].ID)
	}
}
