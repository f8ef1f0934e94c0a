package core

import (
	"context"
	"errors"
	"fmt"
)

// donorCache holds donors already resolved during one import run, keyed by
// normalized email. A cache must never outlive the run that created it.
type donorCache map[string]Donor

// resolveDonor returns the donor for email, creating it with the given
// names if none exists. Names of an existing donor are left untouched.
func resolveDonor(ctx context.Context, store DonorStore, cache donorCache, email, firstName, lastName string) (Donor, error) {
	if d, ok := cache[email]; ok {
		return d, nil
	}

	d, err := store.FindDonorByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, ErrDonorNotFound):
		d, err = store.CreateDonor(ctx, Donor{
			Email:     email,
			FirstName: firstName,
			LastName:  lastName,
		})
		if err != nil {
			return Donor{}, fmt.Errorf("create donor %s: %w", email, err)
		}
	default:
		return Donor{}, fmt.Errorf("find donor %s: %w", email, err)
	}

	cache[email] = d
	return d, nil
}

// ensureAnonymousDonor makes sure the shared anonymous donor exists and is cached.
func ensureAnonymousDonor(ctx context.Context, store DonorStore, cache donorCache) (Donor, error) {
	return resolveDonor(ctx, store, cache, AnonymousEmail, AnonymousFirstName, AnonymousLastName)
}

// resolveDonors resolves the donor of every candidate. The returned slice is
// aligned with candidates.
func resolveDonors(ctx context.Context, store DonorStore, cache donorCache, candidates []DonationCandidate) ([]Donor, error) {
	if _, err := ensureAnonymousDonor(ctx, store, cache); err != nil {
		return nil, err
	}

	donors := make([]Donor, len(candidates))
	for i, c := range candidates {
		d, err := resolveDonor(ctx, store, cache, c.DonorEmail, c.DonorFirstName, c.DonorLastName)
		if err != nil {
			return nil, err
		}
		donors[i] = d
	}
	return donors, nil
}
