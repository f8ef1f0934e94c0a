// Package sqlite implements the import pipeline's persistence on SQLite
// using the pure-Go modernc.org/sqlite driver.
//
// Write transactions start with BEGIN IMMEDIATE, which takes the database
// write lock up front. Concurrent imports are therefore fully serialized,
// and the campaign read-modify-write cannot lose updates.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/donfundy/internal/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements core.Store.
type Store struct {
	db *sql.DB
}

var _ core.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// embedded migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("storage path is required")
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite store: %w", err)
	}

	s := &Store{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindCampaign loads a campaign.
func (s *Store) FindCampaign(ctx context.Context, id int64) (core.Campaign, error) {
	return findCampaign(ctx, s.db, id)
}

// WithinTx runs fn in an immediate write transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(core.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateCampaign inserts a campaign and returns it with its ID.
func (s *Store) CreateCampaign(ctx context.Context, c core.Campaign) (core.Campaign, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO campaign (name, goal_amount, raised_amount, status) VALUES (?, ?, ?, ?)",
		c.Name, c.GoalAmount.String(), nullDecimalValue(c.RaisedAmount), string(c.Status),
	)
	if err != nil {
		return core.Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}
	return c, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findCampaign(ctx context.Context, q queryer, id int64) (core.Campaign, error) {
	var (
		c      core.Campaign
		goal   string
		raised sql.NullString
		status string
	)
	err := q.QueryRowContext(ctx,
		"SELECT id, name, goal_amount, raised_amount, status FROM campaign WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &goal, &raised, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Campaign{}, core.ErrCampaignNotFound
	}
	if err != nil {
		return core.Campaign{}, err
	}

	if c.GoalAmount, err = decimal.NewFromString(goal); err != nil {
		return core.Campaign{}, fmt.Errorf("campaign %d goal amount: %w", id, err)
	}
	if raised.Valid {
		d, err := decimal.NewFromString(raised.String)
		if err != nil {
			return core.Campaign{}, fmt.Errorf("campaign %d raised amount: %w", id, err)
		}
		c.RaisedAmount = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	c.Status = core.CampaignStatus(status)
	return c, nil
}

// RecordImport stores an import summary.
func (s *Store) RecordImport(ctx context.Context, rec core.ImportRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donation_import
			(id, file_name, source, state, total_rows, success_count, failure_count, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(),
		rec.FileName,
		string(rec.Source),
		string(rec.State),
		rec.TotalRows,
		rec.SuccessCount,
		rec.FailureCount,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.FinishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert import record: %w", err)
	}
	return nil
}

const importColumns = "id, file_name, source, state, total_rows, success_count, failure_count, started_at, finished_at"

// ListImports returns the newest import records first.
func (s *Store) ListImports(ctx context.Context, limit int) ([]core.ImportRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+importColumns+" FROM donation_import ORDER BY started_at DESC LIMIT ?", limit)
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
	row := s.db.QueryRowContext(ctx,
		"SELECT "+importColumns+" FROM donation_import WHERE id = ?", id.String())
	rec, err := scanImport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ImportRecord{}, core.ErrImportNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImport(row scanner) (core.ImportRecord, error) {
	var (
		rec                 core.ImportRecord
		id, source, state   string
		startedAt, finished string
	)
	err := row.Scan(&id, &rec.FileName, &source, &state,
		&rec.TotalRows, &rec.SuccessCount, &rec.FailureCount, &startedAt, &finished)
	if err != nil {
		return core.ImportRecord{}, err
	}

	if rec.ID, err = uuid.Parse(id); err != nil {
		return core.ImportRecord{}, fmt.Errorf("import id %q: %w", id, err)
	}
	if rec.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return core.ImportRecord{}, fmt.Errorf("import %s started_at: %w", id, err)
	}
	if rec.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return core.ImportRecord{}, fmt.Errorf("import %s finished_at: %w", id, err)
	}
	rec.Source = core.ImportSource(source)
	rec.State = core.ImportPhase(state)
	return rec, nil
}
