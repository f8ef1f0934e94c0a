package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/donfundy/internal/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "campaignId,amount,donorEmail,donorFirstName,donorLastName,paymentMethod,message\n"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "donfundy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedCampaign(t *testing.T, s *Store, goal string, raised *string, status core.CampaignStatus) core.Campaign {
	t.Helper()
	c := core.Campaign{
		Name:       "Clean Water",
		GoalAmount: decimal.RequireFromString(goal),
		Status:     status,
	}
	if raised != nil {
		c.RaisedAmount = decimal.NewNullDecimal(decimal.RequireFromString(*raised))
	}
	c, err := s.CreateCampaign(context.Background(), c)
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string { return &s }

type donationRow struct {
	CampaignID    int64
	DonorID       int64
	Amount        string
	Date          string
	Message       *string
	PaymentMethod string
}

func donations(t *testing.T, s *Store) []donationRow {
	t.Helper()
	rows, err := s.db.Query(
		"SELECT campaign_id, donor_id, amount, donation_date, message, payment_method FROM donation ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	var out []donationRow
	for rows.Next() {
		var d donationRow
		require.NoError(t, rows.Scan(&d.CampaignID, &d.DonorID, &d.Amount, &d.Date, &d.Message, &d.PaymentMethod))
		out = append(out, d)
	}
	require.NoError(t, rows.Err())
	return out
}

func donorEmails(t *testing.T, s *Store) []string {
	t.Helper()
	rows, err := s.db.Query("SELECT email FROM donor ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var e string
		require.NoError(t, rows.Scan(&e))
		out = append(out, e)
	}
	require.NoError(t, rows.Err())
	return out
}

// ============================================================================
// Store operations
// ============================================================================

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "donfundy.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var applied int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 2, applied)
}

func TestDSN(t *testing.T) {
	assert.True(t, strings.HasPrefix(dsn("/tmp/a.db"), "/tmp/a.db?_pragma="))
	assert.True(t, strings.HasPrefix(dsn("file:a.db?mode=rwc"), "file:a.db?mode=rwc&_pragma="))
	assert.Contains(t, dsn("a.db"), "_txlock=immediate")
}

func TestFindCampaign(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fresh := seedCampaign(t, s, "1000.00", nil, core.CampaignActive)
	got, err := s.FindCampaign(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "Clean Water", got.Name)
	assert.True(t, got.GoalAmount.Equal(decimal.NewFromInt(1000)))
	assert.False(t, got.RaisedAmount.Valid)
	assert.Equal(t, core.CampaignActive, got.Status)

	funded := seedCampaign(t, s, "500", strPtr("120.75"), core.CampaignPending)
	got, err = s.FindCampaign(ctx, funded.ID)
	require.NoError(t, err)
	assert.True(t, got.RaisedAmount.Valid)
	assert.True(t, got.RaisedAmount.Decimal.Equal(decimal.RequireFromString("120.75")))

	_, err = s.FindCampaign(ctx, 424242)
	assert.ErrorIs(t, err, core.ErrCampaignNotFound)
}

func TestWithinTx_DonorsAndRollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx core.Tx) error {
		_, err := tx.FindDonorByEmail(ctx, "a@x.com")
		require.ErrorIs(t, err, core.ErrDonorNotFound)

		created, err := tx.CreateDonor(ctx, core.Donor{Email: "a@x.com", FirstName: "A", LastName: "B"})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)

		found, err := tx.FindDonorByEmail(ctx, "a@x.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Nil(t, found.UserID)
		return nil
	})
	require.NoError(t, err)

	rollback := assert.AnError
	err = s.WithinTx(ctx, func(tx core.Tx) error {
		_, err := tx.CreateDonor(ctx, core.Donor{Email: "b@x.com", FirstName: "B", LastName: "C"})
		require.NoError(t, err)
		return rollback
	})
	require.ErrorIs(t, err, rollback)

	assert.Equal(t, []string{"a@x.com"}, donorEmails(t, s))
}

func TestExecBatch_ConvertsValues(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := seedCampaign(t, s, "1000", nil, core.CampaignActive)

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	err := s.WithinTx(ctx, func(tx core.Tx) error {
		d, err := tx.CreateDonor(ctx, core.Donor{Email: "a@x.com", FirstName: "A", LastName: "B"})
		require.NoError(t, err)
		return tx.ExecBatch(ctx,
			"INSERT INTO donation (campaign_id, donor_id, amount, donation_date, message, payment_method) VALUES (?, ?, ?, ?, ?, ?)",
			[][]any{
				{c.ID, d.ID, decimal.RequireFromString("10.50"), day, strPtr("hi"), "CARD"},
				{c.ID, d.ID, decimal.RequireFromString("0.01"), day, (*string)(nil), "PAYPAL"},
			})
	})
	require.NoError(t, err)

	rows := donations(t, s)
	require.Len(t, rows, 2)
	assert.Equal(t, "10.5", rows[0].Amount)
	assert.Equal(t, "2024-03-15", rows[0].Date)
	require.NotNil(t, rows[0].Message)
	assert.Equal(t, "hi", *rows[0].Message)
	assert.Nil(t, rows[1].Message)
	assert.Equal(t, "PAYPAL", rows[1].PaymentMethod)
}

func TestExecBatch_FailureAbortsTransaction(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := seedCampaign(t, s, "1000", nil, core.CampaignActive)

	err := s.WithinTx(ctx, func(tx core.Tx) error {
		d, err := tx.CreateDonor(ctx, core.Donor{Email: "a@x.com", FirstName: "A", LastName: "B"})
		require.NoError(t, err)
		return tx.ExecBatch(ctx,
			"INSERT INTO donation (campaign_id, donor_id, amount, donation_date, message, payment_method) VALUES (?, ?, ?, ?, ?, ?)",
			[][]any{
				{c.ID, d.ID, "1", "2024-01-01", nil, "CARD"},
				{c.ID, d.ID, "1", "2024-01-01", nil, "BITCOIN"},
			})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch statement 2")

	assert.Empty(t, donations(t, s))
	assert.Empty(t, donorEmails(t, s))
}

func TestSaveCampaign(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := seedCampaign(t, s, "100", nil, core.CampaignActive)

	err := s.WithinTx(ctx, func(tx core.Tx) error {
		locked, err := tx.LockCampaign(ctx, c.ID)
		require.NoError(t, err)
		locked.RaisedAmount = decimal.NewNullDecimal(decimal.RequireFromString("100.00"))
		locked.Status = core.CampaignCompleted
		return tx.SaveCampaign(ctx, locked)
	})
	require.NoError(t, err)

	got, err := s.FindCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, core.CampaignCompleted, got.Status)
	assert.True(t, got.RaisedAmount.Decimal.Equal(decimal.NewFromInt(100)))

	err = s.WithinTx(ctx, func(tx core.Tx) error {
		return tx.SaveCampaign(ctx, core.Campaign{ID: 999, Status: core.CampaignActive})
	})
	assert.ErrorIs(t, err, core.ErrCampaignNotFound)
}

func TestImportHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 15, 9, 0, 0, 123456789, time.UTC)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		rec := core.ImportRecord{
			ID:           uuid.New(),
			FileName:     "batch.csv",
			Source:       core.SourceHTTP,
			State:        core.PhaseDone,
			TotalRows:    10 + i,
			SuccessCount: 9,
			FailureCount: 1 + i,
			StartedAt:    base.Add(time.Duration(i) * time.Hour),
			FinishedAt:   base.Add(time.Duration(i)*time.Hour + time.Second),
		}
		require.NoError(t, s.RecordImport(ctx, rec))
		ids = append(ids, rec.ID)
	}

	list, err := s.ListImports(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)

	got, err := s.GetImport(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "batch.csv", got.FileName)
	assert.Equal(t, core.SourceHTTP, got.Source)
	assert.Equal(t, core.PhaseDone, got.State)
	assert.Equal(t, 10, got.TotalRows)
	assert.True(t, got.StartedAt.Equal(base))
	assert.True(t, got.FinishedAt.Equal(base.Add(time.Second)))

	_, err = s.GetImport(ctx, uuid.New())
	assert.ErrorIs(t, err, core.ErrImportNotFound)
}

// ============================================================================
// End-to-end imports
// ============================================================================

func newService(t *testing.T, s *Store) *core.Service {
	t.Helper()
	svc, err := core.NewService(s, core.ServiceConfig{MaxConcurrent: 4, MaxWait: 5 * time.Second})
	require.NoError(t, err)
	return svc
}

func importCSV(t *testing.T, svc *core.Service, body string) *core.ImportRun {
	t.Helper()
	run, err := svc.ImportDonations(context.Background(),
		core.ImportRequest{FileName: "donations.csv", Source: core.SourceCLI}, strings.NewReader(body))
	require.NoError(t, err)
	return run
}

func TestImport_TwoValidRows(t *testing.T) {
	s := openTestStore(t)
	svc := newService(t, s)
	c := seedCampaign(t, s, "10000", strPtr("500"), core.CampaignActive)

	run := importCSV(t, svc, header+
		"1,100.00,Alice@Example.com,Alice,Smith,CARD,Good luck\n"+
		"1,250.50,,,,BANK_TRANSFER,\n")

	assert.Equal(t, core.PhaseDone, run.Phase)
	assert.Equal(t, 2, run.Result.SuccessCount)
	assert.Equal(t, 0, run.Result.FailureCount)

	got, err := s.FindCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, got.RaisedAmount.Decimal.Equal(decimal.RequireFromString("850.50")))
	assert.Equal(t, core.CampaignActive, got.Status)

	rows := donations(t, s)
	require.Len(t, rows, 2)
	today := time.Now().Format(dateLayout)
	assert.Equal(t, today, rows[0].Date)
	assert.Equal(t, "BANK_TRANSFER", rows[1].PaymentMethod)
	assert.Equal(t, []string{core.AnonymousEmail, "alice@example.com"}, donorEmails(t, s))

	rec, err := svc.GetImport(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.SuccessCount)
}

func TestImport_MixedFailures(t *testing.T) {
	s := openTestStore(t)
	svc := newService(t, s)
	seedCampaign(t, s, "10000", nil, core.CampaignActive)

	run := importCSV(t, svc, header+
		"1,100.00,a@x.com,A,A,CARD,\n"+
		"999999,10.00,b@x.com,B,B,CARD,\n"+
		"1,-50.00,c@x.com,C,C,CARD,\n"+
		"1,10.00,d@x.com,D,D,INVALID_METHOD,\n")

	assert.Equal(t, 4, run.Result.TotalRows)
	assert.Equal(t, 1, run.Result.SuccessCount)
	assert.Equal(t, []string{
		"Row 3: Campaign not found: 999999",
		"Row 4: Amount must be greater than zero",
		"Row 5: Invalid payment method: INVALID_METHOD",
	}, run.Result.Errors)
	assert.Equal(t, core.OutcomePartial, run.Result.Outcome())

	assert.Len(t, donations(t, s), 1)
	assert.Equal(t, []string{core.AnonymousEmail, "a@x.com"}, donorEmails(t, s))
}

func TestImport_AmountOutsideColumnFailsOnlyItsRow(t *testing.T) {
	s := openTestStore(t)
	svc := newService(t, s)
	c := seedCampaign(t, s, "10000", nil, core.CampaignActive)

	run := importCSV(t, svc, header+
		"1,12.345,,,,,\n"+
		"1,0.004,,,,,\n"+
		"1,100000000,,,,,\n"+
		"1,10.10,,,,,\n"+
		"1,2.500,,,,,\n")

	assert.Equal(t, core.PhaseDone, run.Phase)
	assert.Equal(t, 5, run.Result.TotalRows)
	assert.Equal(t, 2, run.Result.SuccessCount)
	assert.Equal(t, []string{
		"Row 2: Amount must have at most 2 decimal places: 12.345",
		"Row 3: Amount must have at most 2 decimal places: 0.004",
		"Row 4: Amount exceeds maximum of 99999999.99: 100000000",
	}, run.Result.Errors)

	sum := decimal.Zero
	for _, d := range donations(t, s) {
		sum = sum.Add(decimal.RequireFromString(d.Amount))
	}
	got, err := s.FindCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.RequireFromString("12.60")), sum.String())
	assert.True(t, got.RaisedAmount.Decimal.Equal(sum), got.RaisedAmount.Decimal.String())
}

func TestImport_CompletesCampaign(t *testing.T) {
	s := openTestStore(t)
	svc := newService(t, s)
	c := seedCampaign(t, s, "200", strPtr("0"), core.CampaignActive)

	run := importCSV(t, svc, header+"1,150.00,,,,,\n1,100.00,,,,,\n")
	require.Equal(t, 2, run.Result.SuccessCount)

	got, err := s.FindCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, got.RaisedAmount.Decimal.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, core.CampaignCompleted, got.Status)
}

func TestImport_EmptyFileTouchesNothing(t *testing.T) {
	s := openTestStore(t)
	svc := newService(t, s)
	seedCampaign(t, s, "200", nil, core.CampaignActive)

	run := importCSV(t, svc, header)
	assert.Equal(t, 0, run.Result.TotalRows)
	assert.Equal(t, 0, run.Result.SuccessCount)
	assert.Empty(t, donations(t, s))
	assert.Empty(t, donorEmails(t, s))
}

func TestImport_ExistingDonorKeepsName(t *testing.T) {
	s := openTestStore(t)
	svc := newService(t, s)
	seedCampaign(t, s, "10000", nil, core.CampaignActive)

	importCSV(t, svc, header+"1,10,a@x.com,First,Version,,\n")
	importCSV(t, svc, header+"1,10,A@X.COM,Second,Version,,\n")

	var first string
	require.NoError(t, s.db.QueryRow("SELECT first_name FROM donor WHERE email = 'a@x.com'").Scan(&first))
	assert.Equal(t, "First", first)
	assert.Equal(t, []string{core.AnonymousEmail, "a@x.com"}, donorEmails(t, s))
}

func TestImport_ConcurrentImportsDoNotLoseUpdates(t *testing.T) {
	s := openTestStore(t)
	svc := newService(t, s)
	c := seedCampaign(t, s, "1000000", nil, core.CampaignActive)

	const imports = 6
	var wg sync.WaitGroup
	for i := 0; i < imports; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run, err := svc.ImportDonations(context.Background(), core.ImportRequest{FileName: "c.csv"},
				strings.NewReader(header+"1,10.00,,,,,\n1,5.25,,,,,\n"))
			if assert.NoError(t, err) {
				assert.Equal(t, core.PhaseDone, run.Phase, run.Result.Errors)
			}
		}()
	}
	wg.Wait()

	got, err := s.FindCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, got.RaisedAmount.Decimal.Equal(decimal.RequireFromString("91.50")),
		"raised = %s", got.RaisedAmount.Decimal)
	assert.Len(t, donations(t, s), imports*2)
	assert.Equal(t, []string{core.AnonymousEmail}, donorEmails(t, s))
}
