package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// CampaignWriter reloads and saves campaigns inside the import transaction.
type CampaignWriter interface {
	// LockCampaign reloads a campaign and holds it against concurrent
	// writers until the transaction ends.
	LockCampaign(ctx context.Context, id int64) (Campaign, error)
	SaveCampaign(ctx context.Context, c Campaign) error
}

type campaignTotal struct {
	CampaignID int64
	Sum        decimal.Decimal
}

// sumByCampaign groups candidate amounts by campaign, ordered by campaign ID
// so that concurrent imports lock campaigns in the same order.
func sumByCampaign(candidates []DonationCandidate) []campaignTotal {
	sums := make(map[int64]decimal.Decimal)
	for _, c := range candidates {
		sums[c.CampaignID] = sums[c.CampaignID].Add(c.Amount)
	}

	totals := make([]campaignTotal, 0, len(sums))
	for id, sum := range sums {
		totals = append(totals, campaignTotal{CampaignID: id, Sum: sum})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].CampaignID < totals[j].CampaignID })
	return totals
}

// applyDonations adds sum to the raised amount and completes an active
// campaign that reached its goal.
func applyDonations(c Campaign, sum decimal.Decimal) Campaign {
	raised := decimal.Zero
	if c.RaisedAmount.Valid {
		raised = c.RaisedAmount.Decimal
	}
	raised = raised.Add(sum)
	c.RaisedAmount = decimal.NullDecimal{Decimal: raised, Valid: true}

	if c.Status == CampaignActive && raised.GreaterThanOrEqual(c.GoalAmount) {
		c.Status = CampaignCompleted
	}
	return c
}

// aggregateCampaigns rolls the candidates up into their campaigns and
// returns the saved campaigns.
func aggregateCampaigns(ctx context.Context, w CampaignWriter, candidates []DonationCandidate) ([]Campaign, error) {
	totals := sumByCampaign(candidates)
	updated := make([]Campaign, 0, len(totals))

	for _, t := range totals {
		c, err := w.LockCampaign(ctx, t.CampaignID)
		if err != nil {
			return nil, fmt.Errorf("reload campaign %d: %w", t.CampaignID, err)
		}

		c = applyDonations(c, t.Sum)
		if err := w.SaveCampaign(ctx, c); err != nil {
			return nil, fmt.Errorf("save campaign %d: %w", t.CampaignID, err)
		}
		updated = append(updated, c)
	}
	return updated, nil
}
