// Package fundraiser holds the per-campaign ledger: metadata, donation
// history, running totals and the owner-gated withdraw and beneficiary
// operations.
package fundraiser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	appErrors "github.com/unclebandit/fundraiser-backend/internal/errors"
	"github.com/unclebandit/fundraiser-backend/internal/event"
	"github.com/unclebandit/fundraiser-backend/internal/model"
)

// Store persists ledger mutations. Each call must be atomic: either the whole
// change is durable or nothing is.
type Store interface {
	SaveDonation(ctx context.Context, id model.FundraiserID, d model.Donation) error
	SaveWithdrawal(ctx context.Context, id model.FundraiserID, w model.Withdrawal) error
	SaveBeneficiary(ctx context.Context, id model.FundraiserID, beneficiary model.Address) error
}

// Params are the creation-time fields of a fundraiser.
type Params struct {
	Name        string
	URL         string
	ImageURL    string
	Description string
	Beneficiary model.Address
	Owner       model.Address
}

type Option func(*Fundraiser)

// WithStore persists every mutation before it is applied.
func WithStore(s Store) Option {
	return func(f *Fundraiser) { f.store = s }
}

// WithSink receives the event of every committed mutation.
func WithSink(s event.Sink) Option {
	return func(f *Fundraiser) { f.sink = s }
}

// WithClock overrides the donation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(f *Fundraiser) { f.now = now }
}

type Fundraiser struct {
	id          model.FundraiserID
	name        string
	url         string
	imageURL    string
	description string
	owner       model.Address
	createdAt   time.Time

	mu             sync.RWMutex
	beneficiary    model.Address
	totalDonations decimal.Decimal
	donationsCount int64
	balance        decimal.Decimal
	donations      map[model.Address][]model.Donation

	store Store
	sink  event.Sink
	now   func() time.Time
}

// New creates an empty ledger. Owner and beneficiary must be valid
// addresses; checksum casing is normalised.
func New(id model.FundraiserID, p Params, opts ...Option) (*Fundraiser, error) {
	owner, err := model.ParseAddress(string(p.Owner))
	if err != nil {
		return nil, err
	}
	beneficiary, err := model.ParseAddress(string(p.Beneficiary))
	if err != nil {
		return nil, err
	}

	f := &Fundraiser{
		id:             id,
		name:           p.Name,
		url:            p.URL,
		imageURL:       p.ImageURL,
		description:    p.Description,
		owner:          owner,
		beneficiary:    beneficiary,
		totalDonations: decimal.Zero,
		balance:        decimal.Zero,
		donations:      make(map[model.Address][]model.Donation),
		store:          nopStore{},
		sink:           event.Discard,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.createdAt = f.timestamp()
	return f, nil
}

// Restore rebuilds a ledger from persisted state without emitting events.
func Restore(s model.FundraiserState, opts ...Option) (*Fundraiser, error) {
	f, err := New(s.ID, Params{
		Name:        s.Name,
		URL:         s.URL,
		ImageURL:    s.ImageURL,
		Description: s.Description,
		Beneficiary: s.Beneficiary,
		Owner:       s.Owner,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore fundraiser %d: %w", s.ID, err)
	}

	f.createdAt = s.CreatedAt
	f.totalDonations = s.TotalDonations
	f.donationsCount = s.DonationsCount
	f.balance = s.Balance
	for donor, history := range s.Donations {
		f.donations[donor] = append([]model.Donation(nil), history...)
	}
	return f, nil
}

func (f *Fundraiser) isOwner(caller model.Address) bool {
	c, err := model.ParseAddress(string(caller))
	return err == nil && c == f.owner
}

func (f *Fundraiser) timestamp() time.Time {
	return f.now().UTC().Truncate(time.Second)
}

// Donate records value from donor and emits DonationReceived.
func (f *Fundraiser) Donate(ctx context.Context, donor model.Address, value decimal.Decimal) error {
	if !value.IsPositive() {
		return appErrors.ErrZeroDonation
	}
	if !value.IsInteger() {
		return appErrors.ErrInvalidAmount
	}
	donor, err := model.ParseAddress(string(donor))
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	d := model.Donation{Donor: donor, Value: value, Date: f.timestamp()}
	if err := f.store.SaveDonation(ctx, f.id, d); err != nil {
		return fmt.Errorf("donate to fundraiser %d: %w", f.id, err)
	}

	f.donations[donor] = append(f.donations[donor], d)
	f.donationsCount++
	f.totalDonations = f.totalDonations.Add(value)
	f.balance = f.balance.Add(value)

	f.sink.Emit(event.New(f.id, d.Date, event.DonationReceived{Donor: donor, Value: value}))
	return nil
}

// Receive handles a bare value transfer. It is a donation in every respect.
func (f *Fundraiser) Receive(ctx context.Context, from model.Address, value decimal.Decimal) error {
	return f.Donate(ctx, from, value)
}

// Withdraw moves the whole balance to the beneficiary and returns the amount.
// A zero balance is a valid withdrawal of zero.
func (f *Fundraiser) Withdraw(ctx context.Context, caller model.Address) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isOwner(caller) {
		return decimal.Zero, appErrors.ErrNotOwner
	}

	w := model.Withdrawal{Beneficiary: f.beneficiary, Amount: f.balance, Date: f.timestamp()}
	if err := f.store.SaveWithdrawal(ctx, f.id, w); err != nil {
		return decimal.Zero, fmt.Errorf("withdraw from fundraiser %d: %w", f.id, err)
	}

	f.balance = decimal.Zero

	f.sink.Emit(event.New(f.id, w.Date, event.Withdraw{Amount: w.Amount}))
	return w.Amount, nil
}

// SetBeneficiary replaces the beneficiary. Same-value and zero-address
// updates are accepted. No event is emitted; the change is only visible
// through Beneficiary and the store.
func (f *Fundraiser) SetBeneficiary(ctx context.Context, caller, beneficiary model.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isOwner(caller) {
		return appErrors.ErrNotOwner
	}
	beneficiary, err := model.ParseAddress(string(beneficiary))
	if err != nil {
		return err
	}

	if err := f.store.SaveBeneficiary(ctx, f.id, beneficiary); err != nil {
		return fmt.Errorf("set beneficiary of fundraiser %d: %w", f.id, err)
	}
	f.beneficiary = beneficiary
	return nil
}

// MyDonations returns donor's history as parallel value and date slices.
func (f *Fundraiser) MyDonations(donor model.Address) ([]decimal.Decimal, []time.Time) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	history := f.donations[donor]
	values := make([]decimal.Decimal, len(history))
	dates := make([]time.Time, len(history))
	for i, d := range history {
		values[i] = d.Value
		dates[i] = d.Date
	}
	return values, dates
}

func (f *Fundraiser) MyDonationsCount(donor model.Address) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.donations[donor])
}

func (f *Fundraiser) ID() model.FundraiserID { return f.id }
func (f *Fundraiser) Name() string           { return f.name }
func (f *Fundraiser) URL() string            { return f.url }
func (f *Fundraiser) ImageURL() string       { return f.imageURL }
func (f *Fundraiser) Description() string    { return f.description }
func (f *Fundraiser) Owner() model.Address   { return f.owner }

func (f *Fundraiser) Beneficiary() model.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.beneficiary
}

func (f *Fundraiser) TotalDonations() decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.totalDonations
}

func (f *Fundraiser) DonationsCount() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.donationsCount
}

func (f *Fundraiser) Balance() decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.balance
}

// Snapshot returns every field read under a single lock.
func (f *Fundraiser) Snapshot() model.Fundraiser {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return model.Fundraiser{
		ID:             f.id,
		Name:           f.name,
		URL:            f.url,
		ImageURL:       f.imageURL,
		Description:    f.description,
		Owner:          f.owner,
		Beneficiary:    f.beneficiary,
		TotalDonations: f.totalDonations,
		DonationsCount: f.donationsCount,
		Balance:        f.balance,
		CreatedAt:      f.createdAt,
	}
}

type nopStore struct{}

func (nopStore) SaveDonation(context.Context, model.FundraiserID, model.Donation) error {
	return nil
}

func (nopStore) SaveWithdrawal(context.Context, model.FundraiserID, model.Withdrawal) error {
	return nil
}

func (nopStore) SaveBeneficiary(context.Context, model.FundraiserID, model.Address) error {
	return nil
}
