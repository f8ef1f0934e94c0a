package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory Store. WithinTx serializes transactions and
// restores the previous state when fn fails.
type memStore struct {
	mu sync.Mutex

	campaigns map[int64]Campaign
	donors    map[string]Donor
	donations []memDonation
	imports   []ImportRecord
	nextDonor int64

	// Injected failures.
	findCampaignErr error
	batchErr        error
	saveErr         error
	recordErr       error
	// dropOnLock deletes a campaign right before it is locked.
	dropOnLock int64

	// Call tracking.
	createdDonors []string
	batchCalls    int
	lastStatement string
	lastBindings  [][]any
}

type memDonation struct {
	CampaignID    int64
	DonorID       int64
	Amount        decimal.Decimal
	Message       *string
	PaymentMethod string
}

func newMemStore(campaigns ...Campaign) *memStore {
	s := &memStore{
		campaigns: make(map[int64]Campaign),
		donors:    make(map[string]Donor),
		nextDonor: 1,
	}
	for _, c := range campaigns {
		s.campaigns[c.ID] = c
	}
	return s
}

func activeCampaign(id int64, goal string) Campaign {
	return Campaign{
		ID:         id,
		Name:       fmt.Sprintf("Campaign %d", id),
		GoalAmount: decimal.RequireFromString(goal),
		Status:     CampaignActive,
	}
}

func (s *memStore) addDonor(email, first, last string) Donor {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := Donor{ID: s.nextDonor, Email: email, FirstName: first, LastName: last}
	s.nextDonor++
	s.donors[email] = d
	return d
}

func (s *memStore) campaign(id int64) Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.campaigns[id]
}

func (s *memStore) donationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.donations)
}

func (s *memStore) donorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.donors)
}

func (s *memStore) FindCampaign(_ context.Context, id int64) (Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findCampaignErr != nil {
		return Campaign{}, s.findCampaignErr
	}
	c, ok := s.campaigns[id]
	if !ok {
		return Campaign{}, ErrCampaignNotFound
	}
	return c, nil
}

func (s *memStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	campaigns := make(map[int64]Campaign, len(s.campaigns))
	for k, v := range s.campaigns {
		campaigns[k] = v
	}
	donors := make(map[string]Donor, len(s.donors))
	for k, v := range s.donors {
		donors[k] = v
	}
	donations := append([]memDonation(nil), s.donations...)
	nextDonor := s.nextDonor

	if err := fn(&memTx{s: s}); err != nil {
		s.campaigns = campaigns
		s.donors = donors
		s.donations = donations
		s.nextDonor = nextDonor
		return err
	}
	return nil
}

func (s *memStore) RecordImport(_ context.Context, rec ImportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.imports = append(s.imports, rec)
	return nil
}

func (s *memStore) ListImports(_ context.Context, limit int) ([]ImportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]ImportRecord(nil), s.imports...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) GetImport(_ context.Context, id uuid.UUID) (ImportRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.imports {
		if rec.ID == id {
			return rec, nil
		}
	}
	return ImportRecord{}, ErrImportNotFound
}

func (s *memStore) Ping(context.Context) error { return nil }

// memTx runs with memStore.mu held by WithinTx.
type memTx struct {
	s *memStore
}

func (t *memTx) FindDonorByEmail(_ context.Context, email string) (Donor, error) {
	d, ok := t.s.donors[email]
	if !ok {
		return Donor{}, ErrDonorNotFound
	}
	return d, nil
}

func (t *memTx) CreateDonor(_ context.Context, d Donor) (Donor, error) {
	if _, ok := t.s.donors[d.Email]; ok {
		return Donor{}, errors.New("duplicate key value violates unique constraint \"donor_email_key\"")
	}
	d.ID = t.s.nextDonor
	t.s.nextDonor++
	t.s.donors[d.Email] = d
	t.s.createdDonors = append(t.s.createdDonors, d.Email)
	return d, nil
}

func (t *memTx) ExecBatch(_ context.Context, statement string, bindings [][]any) error {
	t.s.batchCalls++
	t.s.lastStatement = statement
	t.s.lastBindings = bindings
	if t.s.batchErr != nil {
		return t.s.batchErr
	}
	for _, b := range bindings {
		t.s.donations = append(t.s.donations, memDonation{
			CampaignID:    b[0].(int64),
			DonorID:       b[1].(int64),
			Amount:        b[2].(decimal.Decimal),
			Message:       b[4].(*string),
			PaymentMethod: b[5].(string),
		})
	}
	return nil
}

func (t *memTx) LockCampaign(_ context.Context, id int64) (Campaign, error) {
	if t.s.dropOnLock == id {
		delete(t.s.campaigns, id)
	}
	c, ok := t.s.campaigns[id]
	if !ok {
		return Campaign{}, ErrCampaignNotFound
	}
	return c, nil
}

func (t *memTx) SaveCampaign(_ context.Context, c Campaign) error {
	if t.s.saveErr != nil {
		return t.s.saveErr
	}
	if _, ok := t.s.campaigns[c.ID]; !ok {
		return ErrCampaignNotFound
	}
	t.s.campaigns[c.ID] = c
	return nil
}
