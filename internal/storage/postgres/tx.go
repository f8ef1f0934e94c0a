package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/donfundy/internal/core"
	"github.com/jackc/pgx/v5"
)

// txStore implements core.Tx on top of a pgx transaction.
type txStore struct {
	tx pgx.Tx
}

var _ core.Tx = (*txStore)(nil)

func (t *txStore) FindDonorByEmail(ctx context.Context, email string) (core.Donor, error) {
	var d core.Donor
	err := t.tx.QueryRow(ctx,
		"SELECT id, email, first_name, last_name, user_id FROM donor WHERE email = $1", email,
	).Scan(&d.ID, &d.Email, &d.FirstName, &d.LastName, &d.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Donor{}, core.ErrDonorNotFound
	}
	if err != nil {
		return core.Donor{}, err
	}
	return d, nil
}

func (t *txStore) CreateDonor(ctx context.Context, d core.Donor) (core.Donor, error) {
	err := t.tx.QueryRow(ctx,
		"INSERT INTO donor (email, first_name, last_name, user_id) VALUES ($1, $2, $3, $4) RETURNING id",
		d.Email, d.FirstName, d.LastName, d.UserID,
	).Scan(&d.ID)
	if err != nil {
		return core.Donor{}, err
	}
	return d, nil
}

// ExecBatch sends every binding in one round trip. The first failing
// statement aborts the batch, and with it the transaction.
func (t *txStore) ExecBatch(ctx context.Context, statement string, bindings [][]any) error {
	if len(bindings) == 0 {
		return nil
	}

	batch, err := buildBatch(statement, bindings)
	if err != nil {
		return err
	}

	br := t.tx.SendBatch(ctx, batch)
	for i := range bindings {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("batch statement %d: %w", i+1, err)
		}
	}
	return br.Close()
}

// buildBatch queues statement once per binding, converting placeholders
// and values for pgx.
func buildBatch(statement string, bindings [][]any) (*pgx.Batch, error) {
	sql := rebind(statement)
	batch := &pgx.Batch{}
	for n, args := range bindings {
		values := make([]any, len(args))
		for i, a := range args {
			v, err := pgValue(a)
			if err != nil {
				return nil, fmt.Errorf("batch statement %d argument %d: %w", n+1, i+1, err)
			}
			values[i] = v
		}
		batch.Queue(sql, values...)
	}
	return batch, nil
}

func (t *txStore) LockCampaign(ctx context.Context, id int64) (core.Campaign, error) {
	return findCampaign(ctx, t.tx, id, true)
}

func (t *txStore) SaveCampaign(ctx context.Context, c core.Campaign) error {
	raised, err := toPgNullNumeric(c.RaisedAmount)
	if err != nil {
		return fmt.Errorf("campaign %d raised amount: %w", c.ID, err)
	}

	tag, err := t.tx.Exec(ctx,
		"UPDATE campaign SET raised_amount = $2, status = $3, updated_at = now() WHERE id = $1",
		c.ID, raised, string(c.Status),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("campaign %d: %w", c.ID, core.ErrCampaignNotFound)
	}
	return nil
}
