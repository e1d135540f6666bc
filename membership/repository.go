package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/billbatista/acasinha-pots/pot"
	"github.com/billbatista/acasinha-pots/sqldb"
	"github.com/google/uuid"
)

type repository struct {
	db *sqldb.DB
}

func NewRepository(db *sqldb.DB) *repository {
	return &repository{db: db}
}

// Add relies on the (pot_id, user_id) primary key: two racing joins both
// end up reading the single stored row.
func (r *repository) Add(ctx context.Context, m pot.Membership) (pot.Membership, bool, error) {
	var stored pot.Membership
	var created bool

	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		insert := `INSERT INTO pot_members (pot_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
                   ON CONFLICT (pot_id, user_id) DO NOTHING`
		res, err := tx.ExecContext(ctx, r.db.Rebind(insert), m.PotID, m.UserID, m.Role, sqldb.ToMillis(m.JoinedAt))
		if err != nil {
			if sqldb.IsForeignKeyViolation(err) {
				return pot.ErrNotFound
			}
			return fmt.Errorf("inserting membership: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("inserting membership: %w", err)
		}
		created = n == 1

		stored, err = r.get(ctx, tx, m.PotID, m.UserID)
		return err
	})
	if err != nil {
		return pot.Membership{}, false, err
	}
	return stored, created, nil
}

func (r *repository) Get(ctx context.Context, potID, userID uuid.UUID) (pot.Membership, error) {
	return r.get(ctx, r.db, potID, userID)
}

func (r *repository) List(ctx context.Context, potID uuid.UUID) ([]pot.Membership, error) {
	query := `SELECT pot_id, user_id, role, joined_at
              FROM pot_members
              WHERE pot_id = ?
              ORDER BY joined_at ASC, user_id ASC`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), potID)
	if err != nil {
		return nil, fmt.Errorf("querying members: %w", err)
	}
	defer rows.Close()

	var members []pot.Membership
	for rows.Next() {
		var m pot.Membership
		var joinedAt int64
		if err := rows.Scan(&m.PotID, &m.UserID, &m.Role, &joinedAt); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		m.JoinedAt = sqldb.FromMillis(joinedAt)
		members = append(members, m)
	}

	return members, rows.Err()
}

func (r *repository) SetRole(ctx context.Context, potID, userID uuid.UUID, role pot.Role) error {
	query := `UPDATE pot_members SET role = ? WHERE pot_id = ? AND user_id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), role, potID, userID)
	if err != nil {
		return fmt.Errorf("updating member role: %w", err)
	}
	return requireOneRow(res)
}

func (r *repository) Remove(ctx context.Context, potID, userID uuid.UUID) error {
	query := `DELETE FROM pot_members WHERE pot_id = ? AND user_id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), potID, userID)
	if err != nil {
		return fmt.Errorf("deleting membership: %w", err)
	}
	return requireOneRow(res)
}

func (r *repository) get(ctx context.Context, q sqldb.Querier, potID, userID uuid.UUID) (pot.Membership, error) {
	query := `SELECT pot_id, user_id, role, joined_at FROM pot_members WHERE pot_id = ? AND user_id = ?`

	var m pot.Membership
	var joinedAt int64
	err := q.QueryRowContext(ctx, r.db.Rebind(query), potID, userID).Scan(&m.PotID, &m.UserID, &m.Role, &joinedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pot.Membership{}, ErrNotMember
		}
		return pot.Membership{}, fmt.Errorf("querying membership: %w", err)
	}
	m.JoinedAt = sqldb.FromMillis(joinedAt)
	return m, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotMember
	}
	return nil
}
