package core

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrCampaignNotFound is returned by stores when no campaign has the requested ID.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrDonorNotFound is returned by stores when no donor has the requested email.
	ErrDonorNotFound = errors.New("donor not found")

	// ErrImportNotFound is returned when no import record has the requested ID.
	ErrImportNotFound = errors.New("import not found")
)

// Store is the persistence boundary of the import pipeline.
type Store interface {
	// FindCampaign loads a campaign outside of any import transaction.
	// It returns ErrCampaignNotFound if the campaign does not exist.
	FindCampaign(ctx context.Context, id int64) (Campaign, error)

	// WithinTx runs fn in one transaction. The transaction commits only if
	// fn returns nil.
	WithinTx(ctx context.Context, fn func(Tx) error) error

	RecordImport(ctx context.Context, rec ImportRecord) error
	ListImports(ctx context.Context, limit int) ([]ImportRecord, error)
	GetImport(ctx context.Context, id uuid.UUID) (ImportRecord, error)

	Ping(ctx context.Context) error
}

// Tx is the set of operations available inside the atomic write unit.
type Tx interface {
	DonorStore
	BatchExecutor
	CampaignWriter
}

// DonorStore looks up and creates donors.
type DonorStore interface {
	// FindDonorByEmail returns ErrDonorNotFound if no donor has the email.
	FindDonorByEmail(ctx context.Context, email string) (Donor, error)

	// CreateDonor inserts d and returns it with its assigned ID.
	CreateDonor(ctx context.Context, d Donor) (Donor, error)
}

// BatchExecutor submits one statement with many sets of positional
// arguments as a single operation. Statements use '?' placeholders.
type BatchExecutor interface {
	ExecBatch(ctx context.Context, statement string, bindings [][]any) error
}
