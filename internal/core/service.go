package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ServiceConfig tunes the import service.
type ServiceConfig struct {
	// MaxConcurrent is the number of imports allowed to run at once.
	MaxConcurrent int
	// MaxWait is how long an import waits for a free slot.
	MaxWait time.Duration
	// Timeout bounds a single import run. Zero means no limit.
	Timeout time.Duration
	// HistoryLimit caps how many import records one listing returns.
	HistoryLimit int
}

const defaultHistoryLimit = 50

// Service runs donation imports against a Store.
type Service struct {
	store        Store
	limiter      *ImportLimiter
	tracer       trace.Tracer
	now          func() time.Time
	timeout      time.Duration
	historyLimit int
}

// NewService creates a Service backed by store.
func NewService(store Store, cfg ServiceConfig) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}

	return &Service{
		store:        store,
		limiter:      NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		tracer:       otel.Tracer("github.com/JonMunkholm/donfundy/internal/core"),
		now:          time.Now,
		timeout:      cfg.Timeout,
		historyLimit: historyLimit,
	}, nil
}

// ImportLimiterStatus reports how many import slots are in use.
func (s *Service) ImportLimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// RecentImports lists finished imports, newest first. limit is clamped to
// the configured history limit.
func (s *Service) RecentImports(ctx context.Context, limit int) ([]ImportRecord, error) {
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	return s.store.ListImports(ctx, limit)
}

// GetImport returns one import record or ErrImportNotFound.
func (s *Service) GetImport(ctx context.Context, id uuid.UUID) (ImportRecord, error) {
	return s.store.GetImport(ctx, id)
}
