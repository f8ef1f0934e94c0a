package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/JonMunkholm/donfundy/internal/core"
)

// txStore implements core.Tx on top of a database/sql transaction.
type txStore struct {
	tx *sql.Tx
}

var _ core.Tx = (*txStore)(nil)

func (t *txStore) FindDonorByEmail(ctx context.Context, email string) (core.Donor, error) {
	var (
		d      core.Donor
		userID sql.NullInt64
	)
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, email, first_name, last_name, user_id FROM donor WHERE email = ?", email,
	).Scan(&d.ID, &d.Email, &d.FirstName, &d.LastName, &userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Donor{}, core.ErrDonorNotFound
	}
	if err != nil {
		return core.Donor{}, err
	}
	if userID.Valid {
		d.UserID = &userID.Int64
	}
	return d, nil
}

func (t *txStore) CreateDonor(ctx context.Context, d core.Donor) (core.Donor, error) {
	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO donor (email, first_name, last_name, user_id) VALUES (?, ?, ?, ?)",
		d.Email, d.FirstName, d.LastName, d.UserID,
	)
	if err != nil {
		return core.Donor{}, err
	}
	if d.ID, err = res.LastInsertId(); err != nil {
		return core.Donor{}, err
	}
	return d, nil
}

// ExecBatch prepares statement once and executes it for every binding.
func (t *txStore) ExecBatch(ctx context.Context, statement string, bindings [][]any) error {
	if len(bindings) == 0 {
		return nil
	}

	stmt, err := t.tx.PrepareContext(ctx, statement)
	if err != nil {
		return fmt.Errorf("prepare batch statement: %w", err)
	}
	defer stmt.Close()

	for i, args := range bindings {
		values := make([]any, len(args))
		for j, a := range args {
			values[j] = bindValue(a)
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("batch statement %d: %w", i+1, err)
		}
	}
	return nil
}

// LockCampaign reads the campaign. The write lock is already held since
// the transaction began with BEGIN IMMEDIATE.
func (t *txStore) LockCampaign(ctx context.Context, id int64) (core.Campaign, error) {
	return findCampaign(ctx, t.tx, id)
}

func (t *txStore) SaveCampaign(ctx context.Context, c core.Campaign) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE campaign SET raised_amount = ?, status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		nullDecimalValue(c.RaisedAmount), string(c.Status), c.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("campaign %d: %w", c.ID, core.ErrCampaignNotFound)
	}
	return nil
}
