package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/billbatista/acasinha-pots/pot"
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

const transactionColumns = `t.id, t.pot_id, t.user_id, t.amount, t.title, t.description, t.category, t.created_at, t.seq, s.user_id, s.amount`

func (r *repository) Insert(ctx context.Context, t Transaction, guard Guard) (Transaction, error) {
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := r.check(ctx, tx, t.PotID, guard); err != nil {
			return err
		}

		query := `INSERT INTO transactions (id, pot_id, user_id, amount, title, description, category, created_at)
                  VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING seq`
		err := tx.QueryRowContext(
			ctx,
			r.db.Rebind(query),
			t.ID,
			t.PotID,
			t.UserID,
			t.Amount,
			t.Title,
			t.Description,
			t.Category,
			sqldb.ToMillis(t.CreatedAt),
		).Scan(&t.Seq)
		if err != nil {
			if sqldb.IsForeignKeyViolation(err) {
				return pot.ErrNotFound
			}
			return fmt.Errorf("inserting transaction: %w", err)
		}
		return r.insertSplits(ctx, tx, t)
	})
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// Replace rewrites the mutable fields and the split rows of t in one go.
func (r *repository) Replace(ctx context.Context, t Transaction, guard Guard) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := r.check(ctx, tx, t.PotID, guard); err != nil {
			return err
		}

		query := `UPDATE transactions SET amount = ?, title = ?, description = ?, category = ? WHERE id = ? AND pot_id = ?`
		res, err := tx.ExecContext(ctx, r.db.Rebind(query), t.Amount, t.Title, t.Description, t.Category, t.ID, t.PotID)
		if err != nil {
			return fmt.Errorf("updating transaction: %w", err)
		}
		if err := requireOneRow(res); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM transaction_splits WHERE transaction_id = ?`), t.ID); err != nil {
			return fmt.Errorf("clearing splits: %w", err)
		}
		return r.insertSplits(ctx, tx, t)
	})
}

func (r *repository) Delete(ctx context.Context, potID, id uuid.UUID, guard Guard) error {
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := r.check(ctx, tx, potID, guard); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM transaction_splits WHERE transaction_id = ?`), id); err != nil {
			return fmt.Errorf("deleting splits: %w", err)
		}
		res, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM transactions WHERE id = ? AND pot_id = ?`), id, potID)
		if err != nil {
			return fmt.Errorf("deleting transaction: %w", err)
		}
		return requireOneRow(res)
	})
}

// check reads the pot's status and members with share locks held until tx
// ends, then hands them to guard. A status change, role change or removal
// racing the write waits for it instead of slipping in between.
func (r *repository) check(ctx context.Context, tx *sql.Tx, potID uuid.UUID, guard Guard) error {
	var st WriteState
	err := tx.QueryRowContext(ctx, r.db.Rebind(r.db.ForShare(`SELECT status FROM pots WHERE id = ?`)), potID).Scan(&st.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pot.ErrNotFound
		}
		return fmt.Errorf("locking pot: %w", err)
	}

	rows, err := tx.QueryContext(ctx, r.db.Rebind(r.db.ForShare(`SELECT user_id, role FROM pot_members WHERE pot_id = ?`)), potID)
	if err != nil {
		return fmt.Errorf("locking members: %w", err)
	}
	defer rows.Close()

	st.Members = make(map[uuid.UUID]pot.Role)
	for rows.Next() {
		var userID uuid.UUID
		var role pot.Role
		if err := rows.Scan(&userID, &role); err != nil {
			return fmt.Errorf("scanning member: %w", err)
		}
		st.Members[userID] = role
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("locking members: %w", err)
	}
	if guard == nil {
		return nil
	}
	return guard(st)
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	query := `SELECT ` + transactionColumns + `
              FROM transactions t
              LEFT JOIN transaction_splits s ON s.transaction_id = t.id
              WHERE t.id = ?`

	txs, err := r.query(ctx, query, id)
	if err != nil {
		return Transaction{}, err
	}
	if len(txs) == 0 {
		return Transaction{}, ErrNotFound
	}
	return txs[0], nil
}

// ListByPot returns the pot's transactions newest first, using insertion
// order to break ties between equal timestamps.
func (r *repository) ListByPot(ctx context.Context, potID uuid.UUID) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + `
              FROM transactions t
              LEFT JOIN transaction_splits s ON s.transaction_id = t.id
              WHERE t.pot_id = ?
              ORDER BY t.created_at DESC, t.seq DESC`
	return r.query(ctx, query, potID)
}

func (r *repository) insertSplits(ctx context.Context, tx *sql.Tx, t Transaction) error {
	query := r.db.Rebind(`INSERT INTO transaction_splits (transaction_id, user_id, amount) VALUES (?, ?, ?)`)
	for _, userID := range t.Splits.Members() {
		if _, err := tx.ExecContext(ctx, query, t.ID, userID, t.Splits[userID]); err != nil {
			return fmt.Errorf("inserting split: %w", err)
		}
	}
	return nil
}

// query folds one row per (transaction, split) back into transactions,
// keeping the row order of the statement.
func (r *repository) query(ctx context.Context, query string, arg any) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), arg)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txs []Transaction
	index := make(map[uuid.UUID]int)

	for rows.Next() {
		var t Transaction
		var createdAt int64
		var splitUser uuid.NullUUID
		var splitAmount decimal.NullDecimal
		err := rows.Scan(
			&t.ID,
			&t.PotID,
			&t.UserID,
			&t.Amount,
			&t.Title,
			&t.Description,
			&t.Category,
			&createdAt,
			&t.Seq,
			&splitUser,
			&splitAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		i, seen := index[t.ID]
		if !seen {
			t.CreatedAt = sqldb.FromMillis(createdAt)
			txs = append(txs, t)
			i = len(txs) - 1
			index[t.ID] = i
		}
		if splitUser.Valid && splitAmount.Valid {
			if txs[i].Splits == nil {
				txs[i].Splits = make(SplitDetails)
			}
			txs[i].Splits[splitUser.UUID] = splitAmount.Decimal
		}
	}

	return txs, rows.Err()
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
