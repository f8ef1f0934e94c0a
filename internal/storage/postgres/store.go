// Package postgres implements the import pipeline's persistence on
// PostgreSQL using pgx.
//
// The import transaction runs at READ COMMITTED. Campaign read-modify-write
// is made safe by reloading each campaign with SELECT ... FOR UPDATE, so
// concurrent imports touching the same campaign are serialized on its row.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/donfundy/internal/config"
	"github.com/JonMunkholm/donfundy/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Store implements core.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open creates a pool from cfg and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return New(pool), nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// FindCampaign loads a campaign without locking it.
func (s *Store) FindCampaign(ctx context.Context, id int64) (core.Campaign, error) {
	return findCampaign(ctx, s.pool, id, false)
}

// WithinTx runs fn in a READ COMMITTED transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(core.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

// CreateCampaign inserts a campaign and returns it with its ID.
func (s *Store) CreateCampaign(ctx context.Context, c core.Campaign) (core.Campaign, error) {
	goal, err := toPgNumeric(c.GoalAmount)
	if err != nil {
		return core.Campaign{}, fmt.Errorf("campaign goal amount: %w", err)
	}
	raised, err := toPgNullNumeric(c.RaisedAmount)
	if err != nil {
		return core.Campaign{}, fmt.Errorf("campaign raised amount: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		"INSERT INTO campaign (name, goal_amount, raised_amount, status) VALUES ($1, $2, $3, $4) RETURNING id",
		c.Name, goal, raised, string(c.Status),
	).Scan(&c.ID)
	if err != nil {
		return core.Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}
	return c, nil
}

const campaignColumns = "id, name, goal_amount::text, raised_amount::text, status"

func findCampaign(ctx context.Context, db DBTX, id int64, forUpdate bool) (core.Campaign, error) {
	query := "SELECT " + campaignColumns + " FROM campaign WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	var (
		c      core.Campaign
		goal   string
		raised *string
		status string
	)
	err := db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &goal, &raised, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Campaign{}, core.ErrCampaignNotFound
	}
	if err != nil {
		return core.Campaign{}, err
	}

	if c.GoalAmount, err = decimalFromText(goal); err != nil {
		return core.Campaign{}, fmt.Errorf("campaign %d goal amount: %w", id, err)
	}
	if c.RaisedAmount, err = nullDecimalFromText(raised); err != nil {
		return core.Campaign{}, fmt.Errorf("campaign %d raised amount: %w", id, err)
	}
	c.Status = core.CampaignStatus(status)
	return c, nil
}

// RecordImport stores an import summary.
func (s *Store) RecordImport(ctx context.Context, rec core.ImportRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO donation_import
			(id, file_name, source, state, total_rows, success_count, failure_count, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pgtype.UUID{Bytes: rec.ID, Valid: true},
		rec.FileName,
		string(rec.Source),
		string(rec.State),
		rec.TotalRows,
		rec.SuccessCount,
		rec.FailureCount,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert import record: %w", err)
	}
	return nil
}

const importColumns = "id, file_name, source, state, total_rows, success_count, failure_count, started_at, finished_at"

// ListImports returns the newest import records first.
func (s *Store) ListImports(ctx context.Context, limit int) ([]core.ImportRecord, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+importColumns+" FROM donation_import ORDER BY started_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("query import records: %w", err)
	}
	defer rows.Close()

	records := []core.ImportRecord{}
	for rows.Next() {
		rec, err := scanImport(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetImport returns one import record.
func (s *Store) GetImport(ctx context.Context, id uuid.UUID) (core.ImportRecord, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+importColumns+" FROM donation_import WHERE id = $1", pgtype.UUID{Bytes: id, Valid: true})
	rec, err := scanImport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ImportRecord{}, core.ErrImportNotFound
	}
	return rec, err
}

func scanImport(row pgx.Row) (core.ImportRecord, error) {
	var (
		rec    core.ImportRecord
		id     pgtype.UUID
		source string
		state  string
	)
	err := row.Scan(&id, &rec.FileName, &source, &state,
		&rec.TotalRows, &rec.SuccessCount, &rec.FailureCount, &rec.StartedAt, &rec.FinishedAt)
	if err != nil {
		return core.ImportRecord{}, err
	}
	rec.ID = uuid.UUID(id.Bytes)
	rec.Source = core.ImportSource(source)
	rec.State = core.ImportPhase(state)
	return rec, nil
}
