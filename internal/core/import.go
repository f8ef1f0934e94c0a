package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/donfundy/internal/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrEmptyFile rejects an upload with no content.
	ErrEmptyFile = errors.New("import file is empty")

	// ErrNotCSV rejects an upload whose name does not end in .csv.
	ErrNotCSV = errors.New("import file is not a csv file")
)

// CheckUpload rejects uploads that must not reach the pipeline.
func CheckUpload(fileName string, size int64) error {
	if size == 0 {
		return ErrEmptyFile
	}
	if !strings.EqualFold(filepath.Ext(fileName), ".csv") {
		return ErrNotCSV
	}
	return nil
}

// RejectedResult builds the result returned for an upload refused by CheckUpload.
func RejectedResult(err error) *ImportResult {
	result := NewImportResult()
	switch {
	case errors.Is(err, ErrEmptyFile):
		result.AddError(0, "File is empty")
	case errors.Is(err, ErrNotCSV):
		result.AddError(0, "Only CSV files are allowed")
	default:
		result.AddError(0, err.Error())
	}
	return result
}

// Outcome classifies a finished import for callers that report status.
type Outcome int

const (
	// OutcomeCreated means no row failed.
	OutcomeCreated Outcome = iota
	// OutcomePartial means some rows failed and some were imported.
	OutcomePartial
	// OutcomeRejected means nothing was imported and at least one failure occurred.
	OutcomeRejected
)

// Outcome classifies r.
func (r *ImportResult) Outcome() Outcome {
	switch {
	case r.FailureCount > 0 && r.SuccessCount == 0:
		return OutcomeRejected
	case r.FailureCount > 0:
		return OutcomePartial
	default:
		return OutcomeCreated
	}
}

// ImportRun is a finished import: its ID, terminal phase and result.
type ImportRun struct {
	ID       uuid.UUID
	Phase    ImportPhase
	Result   *ImportResult
	Duration time.Duration
}

// ImportDonations runs the import pipeline over a CSV stream.
//
// The returned error is non-nil only when the import could not start
// (no free slot or ctx already done). Everything that happens once the
// pipeline runs, including storage failures, is reported in the result.
func (s *Service) ImportDonations(ctx context.Context, req ImportRequest, r io.Reader) (*ImportRun, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	run := &ImportRun{ID: uuid.New()}
	started := s.now()

	logger := logging.WithFields(ctx,
		"import_id", run.ID.String(),
		"file", req.FileName,
		"source", string(req.Source),
	)
	logger.Info("import started", "size", req.Size)

	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	runCtx, span := s.tracer.Start(runCtx, "import")
	span.SetAttributes(
		attribute.String("import.id", run.ID.String()),
		attribute.String("import.file", req.FileName),
	)

	run.Result, run.Phase = s.runPipeline(runCtx, logger, r)

	span.SetAttributes(
		attribute.Int("import.total_rows", run.Result.TotalRows),
		attribute.Int("import.success_count", run.Result.SuccessCount),
		attribute.Int("import.failure_count", run.Result.FailureCount),
	)
	if run.Phase == PhaseFailed {
		span.SetStatus(codes.Error, "import failed")
	}
	span.End()

	finished := s.now()
	run.Duration = finished.Sub(started)

	logger.Info("import finished",
		"state", string(run.Phase),
		"total_rows", run.Result.TotalRows,
		"success", run.Result.SuccessCount,
		"failed", run.Result.FailureCount,
		"duration_ms", run.Duration.Milliseconds(),
	)

	s.recordImport(ctx, logger, ImportRecord{
		ID:           run.ID,
		FileName:     req.FileName,
		Source:       req.Source,
		State:        run.Phase,
		TotalRows:    run.Result.TotalRows,
		SuccessCount: run.Result.SuccessCount,
		FailureCount: run.Result.FailureCount,
		StartedAt:    started,
		FinishedAt:   finished,
	})

	return run, nil
}

// runPipeline parses every row, then persists the valid ones in one
// transaction. It never returns a nil result.
func (s *Service) runPipeline(ctx context.Context, logger *slog.Logger, r io.Reader) (*ImportResult, ImportPhase) {
	result := NewImportResult()

	logger.Debug("import phase", "phase", PhaseParsing)
	var candidates []DonationCandidate
	err := s.stage(ctx, "parse", func(ctx context.Context) error {
		var err error
		candidates, err = s.parseRecords(ctx, logger, r, result)
		return err
	})
	if err != nil {
		logger.Error("import failed while parsing", "error", err)
		result.AddError(0, "Failed to process file: "+err.Error())
		return result, PhaseFailed
	}

	if len(candidates) == 0 {
		logger.Warn("no valid rows to import", "failed", result.FailureCount)
		return result, PhaseDone
	}

	err = s.store.WithinTx(ctx, func(tx Tx) error {
		return s.persist(ctx, logger, tx, candidates)
	})
	if err != nil {
		logger.Error("import rolled back", "error", err, "candidates", len(candidates))
		result.AddError(0, "Failed to process file: "+err.Error())
		return result, PhaseFailed
	}

	result.SuccessCount = len(candidates)
	return result, PhaseDone
}

// parseRecords reads the CSV stream and validates every data row. Row
// failures go into result; the returned error means the stream itself
// could not be processed.
func (s *Service) parseRecords(ctx context.Context, logger *slog.Logger, r io.Reader, result *ImportResult) ([]DonationCandidate, error) {
	counter := WrapForStreaming(r)
	reader := csv.NewReader(counter)
	reader.FieldsPerRecord = -1
	// A quote only opens a quoted field at the start of a field; donors
	// write things like: Thanks for the "match" gift.
	reader.LazyQuotes = true

	processedOn := s.now()

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	var parseErr *csv.ParseError
	if err != nil && !errors.As(err, &parseErr) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err == nil && !equalHeaders(header, ImportColumns) {
		logger.Warn("unexpected import header, columns are read by position", "header", header)
	}

	var candidates []DonationCandidate
	// Row 1 is the header.
	for row := 2; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.As(err, &parseErr) {
				result.TotalRows++
				result.AddError(row, "Malformed CSV record: "+parseErr.Err.Error())
				continue
			}
			return nil, fmt.Errorf("read row %d: %w", row, err)
		}

		result.TotalRows++
		c, err := ParseRow(ctx, s.store, record, processedOn)
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				result.AddError(row, rowErr.Message)
				continue
			}
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		candidates = append(candidates, c)
	}

	logger.Debug("parsed import file",
		"rows", result.TotalRows,
		"valid", len(candidates),
		"bytes", counter.BytesRead,
	)
	return candidates, nil
}

// persist resolves donors, writes the batch and updates campaigns inside tx.
func (s *Service) persist(ctx context.Context, logger *slog.Logger, tx Tx, candidates []DonationCandidate) error {
	cache := make(donorCache)

	logger.Debug("import phase", "phase", PhaseResolving)
	var donors []Donor
	err := s.stage(ctx, "resolve_donors", func(ctx context.Context) error {
		var err error
		donors, err = resolveDonors(ctx, tx, cache, candidates)
		return err
	})
	if err != nil {
		return err
	}

	logger.Debug("import phase", "phase", PhaseWriting, "donors", len(cache))
	err = s.stage(ctx, "write_batch", func(ctx context.Context) error {
		return writeDonations(ctx, tx, candidates, donors)
	})
	if err != nil {
		return err
	}

	logger.Debug("import phase", "phase", PhaseAggregate)
	return s.stage(ctx, "aggregate", func(ctx context.Context) error {
		campaigns, err := aggregateCampaigns(ctx, tx, candidates)
		if err != nil {
			return err
		}
		for _, c := range campaigns {
			logger.Debug("campaign updated",
				"campaign_id", c.ID,
				"raised", c.RaisedAmount.Decimal.String(),
				"status", string(c.Status),
			)
		}
		return nil
	})
}

// stage runs fn inside a child span named name.
func (s *Service) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// recordImport stores the run summary. Failures are logged only.
func (s *Service) recordImport(ctx context.Context, logger *slog.Logger, rec ImportRecord) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.store.RecordImport(ctx, rec); err != nil {
		logger.Warn("failed to record import history", "error", err)
	}
}
