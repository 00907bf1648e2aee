package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/unclebandit/fundraiser-backend/internal/event"
	"github.com/unclebandit/fundraiser-backend/internal/model"
	"github.com/unclebandit/fundraiser-backend/internal/repository"
)

// FundraiserLookup resolves the fund name printed on a receipt.
type FundraiserLookup interface {
	GetFundraiser(ctx context.Context, id model.FundraiserID) (*model.Fundraiser, error)
}

// ReceiptWorker turns DonationReceived events into stored receipts
type ReceiptWorker struct {
	Fundraisers FundraiserLookup
	Receipts    repository.ReceiptRepositoryInterface
	Events      <-chan event.Event
}

// Constructor
func NewReceiptWorker(fundraisers FundraiserLookup, receipts repository.ReceiptRepositoryInterface, events <-chan event.Event) *ReceiptWorker {
	return &ReceiptWorker{
		Fundraisers: fundraisers,
		Receipts:    receipts,
		Events:      events,
	}
}

// Start handles events until the channel is closed or ctx is done.
func (w *ReceiptWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.Events:
			if !ok {
				return
			}
			if err := w.Handle(ctx, e); err != nil {
				log.Error().Err(err).Str("event_id", e.ID.String()).Msg("failed to store receipt")
			}
		}
	}
}

// Handle stores the receipt of a DonationReceived event. Other kinds are
// ignored. Replaying an event is a no-op.
func (w *ReceiptWorker) Handle(ctx context.Context, e event.Event) error {
	donation, ok := e.Payload.(event.DonationReceived)
	if !ok {
		return nil
	}

	f, err := w.Fundraisers.GetFundraiser(ctx, e.Source)
	if err != nil {
		return fmt.Errorf("lookup fundraiser %d: %w", e.Source, err)
	}

	rc := NewReceipt(e.Source, f.Name, donation.Donor, donation.Value, e.OccurredAt)
	rc.EventID = e.ID.String()

	created, err := w.Receipts.CreateReceipt(ctx, rc)
	if err != nil {
		return err
	}
	if !created {
		log.Debug().Str("event_id", rc.EventID).Msg("receipt already stored")
		return nil
	}
	log.Info().Stringer("fundraiser_id", e.Source).Stringer("donor", donation.Donor).Int("receipt_id", rc.ID).Msg("receipt stored")
	return nil
}
