// Package registry creates fundraisers and serves paginated listings over
// them in creation order.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	appErrors "github.com/unclebandit/fundraiser-backend/internal/errors"
	"github.com/unclebandit/fundraiser-backend/internal/event"
	"github.com/unclebandit/fundraiser-backend/internal/fundraiser"
	"github.com/unclebandit/fundraiser-backend/internal/model"
)

// MaxLimit caps every page regardless of the requested limit.
const MaxLimit = 20

// Store persists fundraisers and their mutations.
type Store interface {
	fundraiser.Store

	// CreateFundraiser inserts f and sets f.ID.
	CreateFundraiser(ctx context.Context, f *model.Fundraiser) error
	// LoadFundraisers returns every fundraiser in creation order.
	LoadFundraisers(ctx context.Context) ([]model.FundraiserState, error)
}

// CreateParams are the caller-supplied fields of a new fundraiser.
type CreateParams struct {
	Name        string
	URL         string
	ImageURL    string
	Description string
	Beneficiary model.Address
}

type Registry struct {
	// createMu serializes creations so ids append in store order; mu only
	// guards the collection and is never held across a store call.
	createMu    sync.Mutex
	mu          sync.RWMutex
	ids         []model.FundraiserID
	fundraisers map[model.FundraiserID]*fundraiser.Fundraiser

	store Store
	sink  event.Sink
	now   func() time.Time
}

func New(store Store, sink event.Sink) *Registry {
	if sink == nil {
		sink = event.Discard
	}
	return &Registry{
		fundraisers: make(map[model.FundraiserID]*fundraiser.Fundraiser),
		store:       store,
		sink:        sink,
		now:         time.Now,
	}
}

func (r *Registry) ledgerOptions() []fundraiser.Option {
	return []fundraiser.Option{
		fundraiser.WithStore(r.store),
		fundraiser.WithSink(r.sink),
		fundraiser.WithClock(r.now),
	}
}

// Load replaces the in-memory collection with the store's contents.
func (r *Registry) Load(ctx context.Context) error {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	states, err := r.store.LoadFundraisers(ctx)
	if err != nil {
		return fmt.Errorf("load fundraisers: %w", err)
	}

	ids := make([]model.FundraiserID, 0, len(states))
	byID := make(map[model.FundraiserID]*fundraiser.Fundraiser, len(states))
	for _, s := range states {
		f, err := fundraiser.Restore(s, r.ledgerOptions()...)
		if err != nil {
			return err
		}
		ids = append(ids, s.ID)
		byID[s.ID] = f
	}

	r.mu.Lock()
	r.ids = ids
	r.fundraisers = byID
	r.mu.Unlock()

	log.Info().Int("fundraisers", len(ids)).Msg("registry loaded")
	return nil
}

// CreateFundraiser registers a fundraiser owned by caller and emits
// FundraiserCreated. The new id sits at position FundraisersCount()-1.
// Addresses are normalised, so checksum casing is accepted.
func (r *Registry) CreateFundraiser(ctx context.Context, caller model.Address, p CreateParams) (model.FundraiserID, error) {
	owner, err := model.ParseAddress(string(caller))
	if err != nil {
		return 0, err
	}
	beneficiary, err := model.ParseAddress(string(p.Beneficiary))
	if err != nil {
		return 0, err
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	row := &model.Fundraiser{
		Name:        p.Name,
		URL:         p.URL,
		ImageURL:    p.ImageURL,
		Description: p.Description,
		Owner:       owner,
		Beneficiary: beneficiary,
		CreatedAt:   r.now().UTC().Truncate(time.Second),
	}
	if err := r.store.CreateFundraiser(ctx, row); err != nil {
		return 0, fmt.Errorf("create fundraiser: %w", err)
	}

	f, err := fundraiser.Restore(model.FundraiserState{Fundraiser: *row}, r.ledgerOptions()...)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, row.ID)
	r.fundraisers[row.ID] = f

	r.sink.Emit(event.New(row.ID, row.CreatedAt, event.FundraiserCreated{Fundraiser: row.ID, Owner: owner}))
	return row.ID, nil
}

func (r *Registry) FundraisersCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Fundraisers returns up to min(limit, MaxLimit) ids starting at offset.
// An offset past the end of a non-empty registry is an error; an empty
// registry yields an empty page for any offset.
func (r *Registry) Fundraisers(limit, offset int) ([]model.FundraiserID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := len(r.ids)
	if offset < 0 || (count > 0 && offset >= count) {
		return nil, appErrors.ErrOffsetOutOfBounds
	}
	if count == 0 || limit <= 0 {
		return []model.FundraiserID{}, nil
	}

	size := min(limit, MaxLimit, count-offset)
	page := make([]model.FundraiserID, size)
	copy(page, r.ids[offset:offset+size])
	return page, nil
}

// Fundraiser resolves id to its ledger.
func (r *Registry) Fundraiser(id model.FundraiserID) (*fundraiser.Fundraiser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.fundraisers[id]
	if !ok {
		return nil, appErrors.NewFundraiserNotFound(int64(id))
	}
	return f, nil
}
