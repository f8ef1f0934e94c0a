package core

// parser.go turns one raw CSV record into a DonationCandidate.
//
// Rules are checked in a fixed order and the first violation wins. The
// messages produced here are returned to API clients verbatim, so their
// wording is part of the import contract.

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column positions in an import file. The header row is skipped, not mapped.
const (
	colCampaignID = iota
	colAmount
	colDonorEmail
	colDonorFirstName
	colDonorLastName
	colPaymentMethod
	colMessage
)

// ImportColumns is the expected header of an import file.
var ImportColumns = []string{
	"campaignId",
	"amount",
	"donorEmail",
	"donorFirstName",
	"donorLastName",
	"paymentMethod",
	"message",
}

// Donation amounts are stored as NUMERIC(10, 2).
const AmountScale = 2

// MaxAmount is the largest amount a single donation row may carry.
var MaxAmount = decimal.RequireFromString("99999999.99")

// RowError is a validation failure for a single row. Error returns only
// the message, which becomes the text after "Row N: ".
type RowError struct {
	Field   string
	Value   string
	Message string
}

func (e *RowError) Error() string {
	return e.Message
}

func rowErr(field, value, format string, args ...any) *RowError {
	return &RowError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)}
}

// CampaignLookup loads campaigns by ID.
type CampaignLookup interface {
	FindCampaign(ctx context.Context, id int64) (Campaign, error)
}

// ParseRow validates record and builds a candidate dated processedOn.
//
// Validation failures are returned as *RowError. Any other error comes
// from the campaign lookup and should abort the import.
func ParseRow(ctx context.Context, campaigns CampaignLookup, record []string, processedOn time.Time) (DonationCandidate, error) {
	rawCampaign := field(record, colCampaignID)
	if rawCampaign == "" {
		return DonationCandidate{}, rowErr(ImportColumns[colCampaignID], "", "Campaign ID is required")
	}
	campaignID, err := strconv.ParseInt(rawCampaign, 10, 64)
	if err != nil {
		return DonationCandidate{}, rowErr(ImportColumns[colCampaignID], rawCampaign, "Invalid campaign ID: %s", rawCampaign)
	}

	campaign, err := campaigns.FindCampaign(ctx, campaignID)
	if errors.Is(err, ErrCampaignNotFound) {
		return DonationCandidate{}, rowErr(ImportColumns[colCampaignID], rawCampaign, "Campaign not found: %d", campaignID)
	}
	if err != nil {
		return DonationCandidate{}, fmt.Errorf("find campaign %d: %w", campaignID, err)
	}
	if campaign.Status != CampaignActive {
		return DonationCandidate{}, rowErr(ImportColumns[colCampaignID], rawCampaign, "Campaign is not active: %d", campaignID)
	}

	rawAmount := field(record, colAmount)
	if rawAmount == "" {
		return DonationCandidate{}, rowErr(ImportColumns[colAmount], "", "Amount is required")
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return DonationCandidate{}, rowErr(ImportColumns[colAmount], rawAmount, "Invalid amount: %s", rawAmount)
	}
	if !amount.IsPositive() {
		return DonationCandidate{}, rowErr(ImportColumns[colAmount], rawAmount, "Amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(AmountScale)) {
		return DonationCandidate{}, rowErr(ImportColumns[colAmount], rawAmount, "Amount must have at most 2 decimal places: %s", rawAmount)
	}
	if amount.GreaterThan(MaxAmount) {
		return DonationCandidate{}, rowErr(ImportColumns[colAmount], rawAmount, "Amount exceeds maximum of %s: %s", MaxAmount.StringFixed(AmountScale), rawAmount)
	}
	amount = amount.Round(AmountScale)

	c := DonationCandidate{
		CampaignID:   campaignID,
		Amount:       amount,
		DonationDate: dateOnly(processedOn),
	}

	email := field(record, colDonorEmail)
	if email == "" || strings.EqualFold(email, "anonymous") {
		c.DonorEmail = AnonymousEmail
		c.DonorFirstName = AnonymousFirstName
		c.DonorLastName = AnonymousLastName
	} else {
		c.DonorEmail = strings.ToLower(email)
		c.DonorFirstName = orDefault(field(record, colDonorFirstName), "Unknown")
		c.DonorLastName = orDefault(field(record, colDonorLastName), "Donor")
	}

	rawMethod := field(record, colPaymentMethod)
	if rawMethod == "" {
		c.PaymentMethod = DefaultPaymentMethod
	} else {
		method, ok := ParsePaymentMethod(rawMethod)
		if !ok {
			return DonationCandidate{}, rowErr(ImportColumns[colPaymentMethod], rawMethod, "Invalid payment method: %s", rawMethod)
		}
		c.PaymentMethod = method
	}

	if msg := field(record, colMessage); msg != "" {
		c.Message = &msg
	}

	return c, nil
}

// field returns the trimmed value at pos, or "" when the record is short.
func field(record []string, pos int) string {
	if pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// dateOnly truncates t to midnight UTC of its calendar date in t's location.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
