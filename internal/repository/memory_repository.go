package repository

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	appErrors "github.com/unclebandit/fundraiser-backend/internal/errors"
	"github.com/unclebandit/fundraiser-backend/internal/model"
)

// MemoryRepository keeps everything in process. It backs the server when no
// database is configured and stands in for Postgres in tests.
type MemoryRepository struct {
	mu          sync.Mutex
	nextID      model.FundraiserID
	rows        []model.FundraiserState
	index       map[model.FundraiserID]int
	withdrawals map[model.FundraiserID][]model.Withdrawal
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		index:       map[model.FundraiserID]int{},
		withdrawals: map[model.FundraiserID][]model.Withdrawal{},
	}
}

func (r *MemoryRepository) CreateFundraiser(_ context.Context, f *model.Fundraiser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	f.ID = r.nextID
	f.TotalDonations = decimal.Zero
	f.Balance = decimal.Zero
	f.DonationsCount = 0

	r.index[f.ID] = len(r.rows)
	r.rows = append(r.rows, model.FundraiserState{
		Fundraiser: *f,
		Donations:  map[model.Address][]model.Donation{},
	})
	return nil
}

func (r *MemoryRepository) GetFundraiser(_ context.Context, id model.FundraiserID) (*model.Fundraiser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return nil, appErrors.NewFundraiserNotFound(int64(id))
	}
	f := r.rows[i].Fundraiser
	return &f, nil
}

func (r *MemoryRepository) LoadFundraisers(_ context.Context) ([]model.FundraiserState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.FundraiserState, len(r.rows))
	for i, s := range r.rows {
		donations := make(map[model.Address][]model.Donation, len(s.Donations))
		for donor, history := range s.Donations {
			donations[donor] = append([]model.Donation(nil), history...)
		}
		out[i] = model.FundraiserState{Fundraiser: s.Fundraiser, Donations: donations}
	}
	return out, nil
}

func (r *MemoryRepository) SaveDonation(_ context.Context, id model.FundraiserID, d model.Donation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.row(id)
	if err != nil {
		return err
	}
	s.Donations[d.Donor] = append(s.Donations[d.Donor], d)
	s.DonationsCount++
	s.TotalDonations = s.TotalDonations.Add(d.Value)
	s.Balance = s.Balance.Add(d.Value)
	return nil
}

func (r *MemoryRepository) SaveWithdrawal(_ context.Context, id model.FundraiserID, w model.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.row(id)
	if err != nil {
		return err
	}
	s.Balance = s.Balance.Sub(w.Amount)
	r.withdrawals[id] = append(r.withdrawals[id], w)
	return nil
}

func (r *MemoryRepository) SaveBeneficiary(_ context.Context, id model.FundraiserID, beneficiary model.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.row(id)
	if err != nil {
		return err
	}
	s.Beneficiary = beneficiary
	return nil
}

// Withdrawals returns the recorded withdrawals of id.
func (r *MemoryRepository) Withdrawals(id model.FundraiserID) []model.Withdrawal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Withdrawal(nil), r.withdrawals[id]...)
}

func (r *MemoryRepository) row(id model.FundraiserID) (*model.FundraiserState, error) {
	i, ok := r.index[id]
	if !ok {
		return nil, appErrors.NewFundraiserNotFound(int64(id))
	}
	return &r.rows[i], nil
}

var _ FundraiserRepositoryInterface = (*MemoryRepository)(nil)
