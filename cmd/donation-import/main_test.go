package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/JonMunkholm/donfundy/internal/core"
	"github.com/JonMunkholm/donfundy/internal/storage/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "campaignId,amount,donorEmail,donorFirstName,donorLastName,paymentMethod,message\n"

// ============================================================================
// Test helpers
// ============================================================================

// setupDB creates a SQLite database with one active campaign and points the
// CLI configuration at it.
func setupDB(t *testing.T) (path string, campaignID int64) {
	t.Helper()
	path = filepath.Join(t.TempDir(), "cli.db")

	s, err := sqlite.Open(path)
	require.NoError(t, err)
	c, err := s.CreateCampaign(context.Background(), core.Campaign{
		Name:       "Library Fund",
		GoalAmount: decimal.NewFromInt(1000),
		Status:     core.CampaignActive,
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", path)
	t.Setenv("LOG_LEVEL", "error")
	return path, c.ID
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = execute(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

// ============================================================================
// Exit codes
// ============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", errors.New("boom"), exitFailed},
		{"partial", withCode(exitPartial, nil), exitPartial},
		{"wrapped", errors.Join(errors.New("ctx"), withCode(exitPartial, nil)), exitPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestOutcomeError(t *testing.T) {
	assert.NoError(t, outcomeError(core.OutcomeCreated))
	assert.Equal(t, exitPartial, exitCode(outcomeError(core.OutcomePartial)))
	assert.Equal(t, exitFailed, exitCode(outcomeError(core.OutcomeRejected)))
	assert.Empty(t, outcomeError(core.OutcomeRejected).Error())
}

// ============================================================================
// run
// ============================================================================

func TestRun_AllRowsImported(t *testing.T) {
	_, id := setupDB(t)
	file := writeFile(t, "gifts.csv", header+
		itoa(id)+",100.00,ann@example.com,Ann,Lee,CARD,\n"+
		itoa(id)+",25.50,,,,,\n")

	code, stdout, _ := runCLI(t, "run", file, "--json")
	require.Equal(t, exitOK, code)

	var result core.ImportResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)
	assert.Empty(t, result.Errors)
}

func TestRun_PartialExitsTwo(t *testing.T) {
	_, id := setupDB(t)
	file := writeFile(t, "gifts.csv", header+
		itoa(id)+",100.00,,,,,\n"+
		"999,10.00,,,,,\n")

	code, stdout, stderr := runCLI(t, "run", file)
	assert.Equal(t, exitPartial, code)
	assert.Contains(t, stdout, "rows: 2  imported: 1  failed: 1")
	assert.Contains(t, stdout, "Row 3: Campaign not found: 999")
	assert.NotContains(t, stderr, "error:")
}

func TestRun_AllRowsFailedExitsOne(t *testing.T) {
	setupDB(t)
	file := writeFile(t, "gifts.csv", header+"999,10.00,,,,,\n")

	code, stdout, _ := runCLI(t, "run", file)
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, "imported: 0  failed: 1")
}

func TestRun_RejectedUpload(t *testing.T) {
	setupDB(t)

	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"empty file", "empty.csv", "", "Row 0: File is empty"},
		{"not csv", "gifts.txt", header, "Row 0: Only CSV files are allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, _ := runCLI(t, "run", writeFile(t, tt.file, tt.content))
			assert.Equal(t, exitFailed, code)
			assert.Contains(t, stdout, "Import rejected")
			assert.Contains(t, stdout, tt.want)
		})
	}
}

func TestRun_MissingFile(t *testing.T) {
	setupDB(t)

	code, _, stderr := runCLI(t, "run", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "error:")
}

func TestRun_RequiresFileArgument(t *testing.T) {
	setupDB(t)

	code, _, stderr := runCLI(t, "run")
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "accepts 1 arg")
}

func TestRun_FlagsOverrideEnvironment(t *testing.T) {
	path, id := setupDB(t)
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://unused")

	file := writeFile(t, "gifts.csv", header+itoa(id)+",5.00,,,,,\n")
	code, _, stderr := runCLI(t, "--driver", "sqlite", "--database-url", path, "run", file)
	assert.Equal(t, exitOK, code, stderr)
}

// ============================================================================
// history / migrate
// ============================================================================

func TestHistory_ListsRuns(t *testing.T) {
	_, id := setupDB(t)
	file := writeFile(t, "october.csv", header+itoa(id)+",5.00,,,,,\n")

	code, _, _ := runCLI(t, "run", file)
	require.Equal(t, exitOK, code)

	code, stdout, _ := runCLI(t, "history", "--limit", "5")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "ID")
	assert.Contains(t, stdout, "october.csv")
	assert.Contains(t, stdout, "cli")
	assert.Contains(t, stdout, "done")
}

func TestMigrate(t *testing.T) {
	setupDB(t)

	code, stdout, _ := runCLI(t, "migrate")
	assert.Equal(t, exitOK, code)
	assert.Equal(t, "migrations applied (sqlite)\n", stdout)
}

func TestMissingConfiguration(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	code, _, stderr := runCLI(t, "migrate")
	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stderr, "DATABASE_URL is required")
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
