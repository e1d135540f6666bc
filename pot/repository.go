package pot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/billbatista/acasinha-pots/sqldb"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type repository struct {
	db *sqldb.DB
}

func NewRepository(db *sqldb.DB) *repository {
	return &repository{db: db}
}

// potColumns is joined with every transaction amount of the pot so the
// current amount is summed from a single consistent read.
const potColumns = `p.id, p.name, p.target_amount, p.currency, p.share_code, p.owner_id, p.status, p.created_at, t.amount`

func (r *repository) CreateWithOwner(ctx context.Context, p Pot, owner Membership) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		insertPot := `INSERT INTO pots (id, name, target_amount, currency, share_code, owner_id, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := tx.ExecContext(
			ctx,
			r.db.Rebind(insertPot),
			p.ID,
			p.Name,
			p.TargetAmount,
			p.Currency,
			p.ShareCode,
			p.OwnerID,
			p.Status,
			sqldb.ToMillis(p.CreatedAt),
		)
		if err != nil {
			if sqldb.IsUniqueViolation(err) {
				return ErrShareCodeTaken
			}
			return fmt.Errorf("inserting pot: %w", err)
		}

		insertOwner := `INSERT INTO pot_members (pot_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)`
		_, err = tx.ExecContext(ctx, r.db.Rebind(insertOwner), owner.PotID, owner.UserID, owner.Role, sqldb.ToMillis(owner.JoinedAt))
		if err != nil {
			return fmt.Errorf("inserting owner membership: %w", err)
		}
		return nil
	})
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (Pot, error) {
	query := `SELECT ` + potColumns + `
              FROM pots p
              LEFT JOIN transactions t ON t.pot_id = p.id
              WHERE p.id = ?`
	return r.getOne(ctx, query, id)
}

func (r *repository) GetByShareCode(ctx context.Context, code string) (Pot, error) {
	query := `SELECT ` + potColumns + `
              FROM pots p
              LEFT JOIN transactions t ON t.pot_id = p.id
              WHERE p.share_code = ?`
	return r.getOne(ctx, query, code)
}

func (r *repository) ListByMember(ctx context.Context, userID uuid.UUID) ([]Pot, error) {
	query := `SELECT ` + potColumns + `
              FROM pots p
              INNER JOIN pot_members m ON m.pot_id = p.id AND m.user_id = ?
              LEFT JOIN transactions t ON t.pot_id = p.id
              ORDER BY p.created_at DESC, p.id`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), userID)
	if err != nil {
		return nil, fmt.Errorf("querying pots: %w", err)
	}
	defer rows.Close()

	return scanPots(rows)
}

// UpdateStatus writes only the status column, after checking under lock that
// actorID may still change the pot.
func (r *repository) UpdateStatus(ctx context.Context, id, actorID uuid.UUID, status Status) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := r.requireWriter(ctx, tx, id, actorID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, r.db.Rebind(`UPDATE pots SET status = ? WHERE id = ?`), status, id)
		if err != nil {
			return fmt.Errorf("updating pot status: %w", err)
		}
		return requireOneRow(res)
	})
}

// UpdateDetails writes the name and target columns that are set in in and
// leaves every other column alone.
func (r *repository) UpdateDetails(ctx context.Context, id, actorID uuid.UUID, in UpdateInput) error {
	var sets []string
	var args []any
	if in.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *in.Name)
	}
	if in.TargetAmount != nil {
		sets = append(sets, "target_amount = ?")
		args = append(args, *in.TargetAmount)
	}
	args = append(args, id)

	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := r.requireWriter(ctx, tx, id, actorID); err != nil {
			return err
		}
		if len(sets) == 0 {
			return nil
		}
		query := `UPDATE pots SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
		res, err := tx.ExecContext(ctx, r.db.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("updating pot: %w", err)
		}
		return requireOneRow(res)
	})
}

// Delete cascades explicitly so the result does not depend on foreign key
// enforcement being switched on.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		statements := []string{
			`DELETE FROM transaction_splits WHERE transaction_id IN (SELECT id FROM transactions WHERE pot_id = ?)`,
			`DELETE FROM transactions WHERE pot_id = ?`,
			`DELETE FROM pot_members WHERE pot_id = ?`,
		}
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, r.db.Rebind(stmt), id); err != nil {
				return fmt.Errorf("deleting pot children: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM pots WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("deleting pot: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deleting pot: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *repository) MemberRole(ctx context.Context, potID, userID uuid.UUID) (Role, bool, error) {
	return r.memberRole(ctx, r.db, potID, userID)
}

func (r *repository) memberRole(ctx context.Context, q sqldb.Querier, potID, userID uuid.UUID) (Role, bool, error) {
	query := `SELECT role FROM pot_members WHERE pot_id = ? AND user_id = ?`

	var role Role
	err := q.QueryRowContext(ctx, r.db.Rebind(r.db.ForShare(query)), potID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("querying member role: %w", err)
	}
	return role, true, nil
}

// requireWriter holds a share lock on the actor's membership row, so a role
// change or removal can't commit until the write it guards has finished.
func (r *repository) requireWriter(ctx context.Context, tx *sql.Tx, potID, actorID uuid.UUID) error {
	role, ok, err := r.memberRole(ctx, tx, potID, actorID)
	if err != nil {
		return err
	}
	if !ok || !CanWrite(role) {
		return ErrNotAllowed
	}
	return nil
}

func (r *repository) getOne(ctx context.Context, query string, arg any) (Pot, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), arg)
	if err != nil {
		return Pot{}, fmt.Errorf("querying pot: %w", err)
	}
	defer rows.Close()

	pots, err := scanPots(rows)
	if err != nil {
		return Pot{}, err
	}
	if len(pots) == 0 {
		return Pot{}, ErrNotFound
	}
	return pots[0], nil
}

// scanPots folds one row per (pot, transaction) into pots, keeping the
// order in which pots first appear.
func scanPots(rows *sql.Rows) ([]Pot, error) {
	var pots []Pot
	index := make(map[uuid.UUID]int)

	for rows.Next() {
		var p Pot
		var createdAt int64
		var amount decimal.NullDecimal
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.TargetAmount,
			&p.Currency,
			&p.ShareCode,
			&p.OwnerID,
			&p.Status,
			&createdAt,
			&amount,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning pot: %w", err)
		}

		i, seen := index[p.ID]
		if !seen {
			p.CreatedAt = sqldb.FromMillis(createdAt)
			p.CurrentAmount = decimal.Zero
			pots = append(pots, p)
			i = len(pots) - 1
			index[p.ID] = i
		}
		if amount.Valid {
			pots[i].CurrentAmount = pots[i].CurrentAmount.Add(amount.Decimal)
		}
	}

	return pots, rows.Err()
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
