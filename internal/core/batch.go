package core

import (
	"context"
	"fmt"
)

// insertDonationSQL is submitted once with one binding per donation.
const insertDonationSQL = "INSERT INTO donation (campaign_id, donor_id, amount, donation_date, message, payment_method) VALUES (?, ?, ?, ?, ?, ?)"

// donationBindings builds the positional arguments for insertDonationSQL.
// donors must be aligned with candidates.
func donationBindings(candidates []DonationCandidate, donors []Donor) [][]any {
	bindings := make([][]any, len(candidates))
	for i, c := range candidates {
		bindings[i] = []any{
			c.CampaignID,
			donors[i].ID,
			c.Amount,
			c.DonationDate,
			c.Message,
			string(c.PaymentMethod),
		}
	}
	return bindings
}

// writeDonations persists all candidates with a single batch operation.
// Candidates are assumed valid.
func writeDonations(ctx context.Context, exec BatchExecutor, candidates []DonationCandidate, donors []Donor) error {
	if len(candidates) == 0 {
		return nil
	}
	if len(donors) != len(candidates) {
		return fmt.Errorf("write donations: %d candidates but %d donors", len(candidates), len(donors))
	}

	if err := exec.ExecBatch(ctx, insertDonationSQL, donationBindings(candidates, donors)); err != nil {
		return fmt.Errorf("insert donations batch: %w", err)
	}
	return nil
}
