// internal/service/fundraiser_service.go
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	appErrors "github.com/unclebandit/fundraiser-backend/internal/errors"
	"github.com/unclebandit/fundraiser-backend/internal/fundraiser"
	"github.com/unclebandit/fundraiser-backend/internal/model"
	"github.com/unclebandit/fundraiser-backend/internal/registry"
	"github.com/unclebandit/fundraiser-backend/internal/repository"
)

type FundraiserService struct {
	Registry *registry.Registry
	// Receipts is optional; ListReceipts returns an empty list without it.
	Receipts repository.ReceiptRepositoryInterface
}

type CreateFundraiserRequest struct {
	Name        string        `json:"name"`
	URL         string        `json:"url"`
	ImageURL    string        `json:"image_url"`
	Description string        `json:"description"`
	Beneficiary model.Address `json:"beneficiary"`
}

// FundraiserDetails is the read view of a fundraiser. IsOwner is relative
// to the caller that asked for it.
type FundraiserDetails struct {
	ID             model.FundraiserID `json:"id"`
	Name           string             `json:"name"`
	URL            string             `json:"url"`
	ImageURL       string             `json:"image_url"`
	Description    string             `json:"description"`
	Owner          model.Address      `json:"owner"`
	Beneficiary    model.Address      `json:"beneficiary"`
	TotalDonations decimal.Decimal    `json:"total_donations"`
	DonationsCount int64              `json:"donations_count"`
	Balance        decimal.Decimal    `json:"balance"`
	CreatedAt      time.Time          `json:"created_at"`
	IsOwner        bool               `json:"is_owner"`
}

type FundraiserPage struct {
	Fundraisers []FundraiserDetails `json:"fundraisers"`
	Pagination  map[string]int      `json:"pagination"`
}

// MyDonations mirrors the ledger's parallel value and date lists.
type MyDonations struct {
	Count  int               `json:"count"`
	Values []decimal.Decimal `json:"values"`
	Dates  []time.Time       `json:"dates"`
}

type WithdrawResult struct {
	FundraiserID model.FundraiserID `json:"fundraiser_id"`
	Beneficiary  model.Address      `json:"beneficiary"`
	Amount       decimal.Decimal    `json:"amount"`
}

func detailsOf(f *fundraiser.Fundraiser, caller model.Address) FundraiserDetails {
	s := f.Snapshot()
	return FundraiserDetails{
		ID:             s.ID,
		Name:           s.Name,
		URL:            s.URL,
		ImageURL:       s.ImageURL,
		Description:    s.Description,
		Owner:          s.Owner,
		Beneficiary:    s.Beneficiary,
		TotalDonations: s.TotalDonations,
		DonationsCount: s.DonationsCount,
		Balance:        s.Balance,
		CreatedAt:      s.CreatedAt,
		IsOwner:        caller != "" && caller == s.Owner,
	}
}

func (s *FundraiserService) CreateFundraiser(ctx context.Context, caller model.Address, req CreateFundraiserRequest) (*FundraiserDetails, error) {
	id, err := s.Registry.CreateFundraiser(ctx, caller, registry.CreateParams{
		Name:        req.Name,
		URL:         req.URL,
		ImageURL:    req.ImageURL,
		Description: req.Description,
		Beneficiary: req.Beneficiary,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Stringer("fundraiser_id", id).Stringer("owner", caller).Msg("fundraiser created")
	return s.FundraiserDetails(id, caller)
}

// ListFundraisers returns one registry page with the details of each entry.
func (s *FundraiserService) ListFundraisers(limit, offset int, caller model.Address) (*FundraiserPage, error) {
	ids, err := s.Registry.Fundraisers(limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]FundraiserDetails, 0, len(ids))
	for _, id := range ids {
		f, err := s.Registry.Fundraiser(id)
		if err != nil {
			return nil, err
		}
		items = append(items, detailsOf(f, caller))
	}

	return &FundraiserPage{
		Fundraisers: items,
		Pagination: map[string]int{
			"limit":       limit,
			"offset":      offset,
			"returned":    len(items),
			"total_count": s.Registry.FundraisersCount(),
		},
	}, nil
}

func (s *FundraiserService) FundraisersCount() int {
	return s.Registry.FundraisersCount()
}

func (s *FundraiserService) FundraiserDetails(id model.FundraiserID, caller model.Address) (*FundraiserDetails, error) {
	f, err := s.Registry.Fundraiser(id)
	if err != nil {
		return nil, err
	}
	d := detailsOf(f, caller)
	return &d, nil
}

func (s *FundraiserService) Donate(ctx context.Context, id model.FundraiserID, donor model.Address, value decimal.Decimal) (*FundraiserDetails, error) {
	f, err := s.Registry.Fundraiser(id)
	if err != nil {
		return nil, err
	}
	if err := f.Donate(ctx, donor, value); err != nil {
		return nil, err
	}
	log.Debug().Stringer("fundraiser_id", id).Stringer("donor", donor).Stringer("value", value).Msg("donation accepted")
	d := detailsOf(f, donor)
	return &d, nil
}

// Receive is a bare value transfer to the fundraiser.
func (s *FundraiserService) Receive(ctx context.Context, id model.FundraiserID, from model.Address, value decimal.Decimal) (*FundraiserDetails, error) {
	f, err := s.Registry.Fundraiser(id)
	if err != nil {
		return nil, err
	}
	if err := f.Receive(ctx, from, value); err != nil {
		return nil, err
	}
	d := detailsOf(f, from)
	return &d, nil
}

func (s *FundraiserService) Withdraw(ctx context.Context, id model.FundraiserID, caller model.Address) (*WithdrawResult, error) {
	f, err := s.Registry.Fundraiser(id)
	if err != nil {
		return nil, err
	}
	amount, err := f.Withdraw(ctx, caller)
	if err != nil {
		return nil, err
	}
	log.Info().Stringer("fundraiser_id", id).Stringer("amount", amount).Msg("funds withdrawn")
	return &WithdrawResult{FundraiserID: id, Beneficiary: f.Beneficiary(), Amount: amount}, nil
}

func (s *FundraiserService) SetBeneficiary(ctx context.Context, id model.FundraiserID, caller, beneficiary model.Address) (*FundraiserDetails, error) {
	f, err := s.Registry.Fundraiser(id)
	if err != nil {
		return nil, err
	}
	if err := f.SetBeneficiary(ctx, caller, beneficiary); err != nil {
		return nil, err
	}
	d := detailsOf(f, caller)
	return &d, nil
}

func (s *FundraiserService) MyDonations(id model.FundraiserID, donor model.Address) (*MyDonations, error) {
	f, err := s.Registry.Fundraiser(id)
	if err != nil {
		return nil, err
	}
	values, dates := f.MyDonations(donor)
	return &MyDonations{Count: len(values), Values: values, Dates: dates}, nil
}

// Receipt renders the receipt of donor's index-th donation to id.
func (s *FundraiserService) Receipt(id model.FundraiserID, donor model.Address, index int) (*model.Receipt, error) {
	f, err := s.Registry.Fundraiser(id)
	if err != nil {
		return nil, err
	}
	values, dates := f.MyDonations(donor)
	if index < 0 || index >= len(values) {
		return nil, appErrors.ErrDonationNotFound
	}
	return NewReceipt(id, f.Name(), donor, values[index], dates[index]), nil
}

// ListReceipts returns the stored receipts of donor, newest first.
func (s *FundraiserService) ListReceipts(ctx context.Context, donor model.Address, limit int) ([]model.Receipt, error) {
	if s.Receipts == nil {
		return []model.Receipt{}, nil
	}
	if limit <= 0 || limit > registry.MaxLimit {
		limit = registry.MaxLimit
	}
	return s.Receipts.ListReceipts(ctx, donor, limit)
}
