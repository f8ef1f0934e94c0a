package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignPending   CampaignStatus = "PENDING"
	CampaignActive    CampaignStatus = "ACTIVE"
	CampaignCompleted CampaignStatus = "COMPLETED"
	CampaignCancelled CampaignStatus = "CANCELLED"
)

// PaymentMethod is how a donation was paid.
type PaymentMethod string

const (
	PaymentCard         PaymentMethod = "CARD"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentPayPal       PaymentMethod = "PAYPAL"
)

// DefaultPaymentMethod is used when a row leaves paymentMethod blank.
const DefaultPaymentMethod = PaymentCard

var paymentMethods = []PaymentMethod{PaymentCard, PaymentBankTransfer, PaymentPayPal}

// ParsePaymentMethod matches s case-insensitively against the known methods.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	for _, m := range paymentMethods {
		if strings.EqualFold(s, string(m)) {
			return m, true
		}
	}
	return "", false
}

// Anonymous donor identity shared by every row without a usable email.
const (
	AnonymousEmail     = "anonymous@donfundy.com"
	AnonymousFirstName = "Anonymous"
	AnonymousLastName  = "Donor"
)

// Campaign is the subset of a campaign the import pipeline reads and updates.
type Campaign struct {
	ID         int64
	Name       string
	GoalAmount decimal.Decimal
	// RaisedAmount is NULL for campaigns that never received a donation.
	RaisedAmount decimal.NullDecimal
	Status       CampaignStatus
}

// Donor is a donor identity. Email is the resolution key.
type Donor struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	UserID    *int64
}

// DonationCandidate is a validated row, ready to be persisted.
type DonationCandidate struct {
	CampaignID     int64
	Amount         decimal.Decimal
	DonorEmail     string
	DonorFirstName string
	DonorLastName  string
	PaymentMethod  PaymentMethod
	Message        *string
	DonationDate   time.Time
}

// ImportResult summarizes one import run. It is returned to the caller as is.
type ImportResult struct {
	TotalRows    int      `json:"totalRows"`
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
	Errors       []string `json:"errors"`
}

// NewImportResult returns an empty result with a non-nil error list.
func NewImportResult() *ImportResult {
	return &ImportResult{Errors: []string{}}
}

// AddError records a failure for the given row. Row 0 is used for
// failures that are not tied to a CSV row.
func (r *ImportResult) AddError(row int, reason string) {
	r.Errors = append(r.Errors, fmt.Sprintf("Row %d: %s", row, reason))
	r.FailureCount++
}

// ImportPhase is the pipeline stage an import is in.
type ImportPhase string

const (
	PhaseStarting  ImportPhase = "starting"
	PhaseParsing   ImportPhase = "parsing"
	PhaseResolving ImportPhase = "resolving_donors"
	PhaseWriting   ImportPhase = "writing_batch"
	PhaseAggregate ImportPhase = "aggregating"
	PhaseDone      ImportPhase = "done"
	PhaseFailed    ImportPhase = "failed"
)

// ImportSource identifies what started an import.
type ImportSource string

const (
	SourceHTTP ImportSource = "http"
	SourceCLI  ImportSource = "cli"
)

// ImportRecord is the persisted summary of a finished import run.
// The per-row error list is not stored.
type ImportRecord struct {
	ID           uuid.UUID    `json:"id"`
	FileName     string       `json:"fileName"`
	Source       ImportSource `json:"source"`
	State        ImportPhase  `json:"state"`
	TotalRows    int          `json:"totalRows"`
	SuccessCount int          `json:"successCount"`
	FailureCount int          `json:"failureCount"`
	StartedAt    time.Time    `json:"startedAt"`
	FinishedAt   time.Time    `json:"finishedAt"`
}

// ImportRequest describes one upload handed to the pipeline.
type ImportRequest struct {
	FileName string
	Source   ImportSource
	// Size is the declared body size, used only for logging. Zero if unknown.
	Size int64
}
