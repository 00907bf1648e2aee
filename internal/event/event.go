package event

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unclebandit/fundraiser-backend/internal/model"
)

type Kind string

const (
	KindFundraiserCreated Kind = "FundraiserCreated"
	KindDonationReceived  Kind = "DonationReceived"
	KindWithdraw          Kind = "Withdraw"
)

// Payload is the kind-specific body of an Event.
type Payload interface {
	Kind() Kind
}

// FundraiserCreated is emitted by the registry.
type FundraiserCreated struct {
	Fundraiser model.FundraiserID `json:"fundraiser"`
	Owner      model.Address      `json:"owner"`
}

func (FundraiserCreated) Kind() Kind { return KindFundraiserCreated }

// DonationReceived is emitted by a fundraiser for every accepted donation.
type DonationReceived struct {
	Donor model.Address   `json:"donor"`
	Value decimal.Decimal `json:"value"`
}

func (DonationReceived) Kind() Kind { return KindDonationReceived }

// Withdraw carries the amount moved to the beneficiary, possibly zero.
type Withdraw struct {
	Amount decimal.Decimal `json:"amount"`
}

func (Withdraw) Kind() Kind { return KindWithdraw }

// Event is one committed state change. Source is the fundraiser that
// changed; for FundraiserCreated it is the new fundraiser.
type Event struct {
	ID         uuid.UUID          `json:"id"`
	Kind       Kind               `json:"kind"`
	Source     model.FundraiserID `json:"source"`
	OccurredAt time.Time          `json:"occurred_at"`
	Payload    Payload            `json:"payload"`
}

func New(source model.FundraiserID, at time.Time, payload Payload) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       payload.Kind(),
		Source:     source,
		OccurredAt: at,
		Payload:    payload,
	}
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         uuid.UUID          `json:"id"`
		Kind       Kind               `json:"kind"`
		Source     model.FundraiserID `json:"source"`
		OccurredAt time.Time          `json:"occurred_at"`
		Payload    json.RawMessage    `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var payload Payload
	switch raw.Kind {
	case KindFundraiserCreated:
		var p FundraiserCreated
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		payload = p
	case KindDonationReceived:
		var p DonationReceived
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		payload = p
	case KindWithdraw:
		var p Withdraw
		if err := json.Unmarshal(raw.Payload, &p); err != nil {
			return err
		}
		payload = p
	default:
		return fmt.Errorf("unknown event kind %q", raw.Kind)
	}

	*e = Event{
		ID:         raw.ID,
		Kind:       raw.Kind,
		Source:     raw.Source,
		OccurredAt: raw.OccurredAt,
		Payload:    payload,
	}
	return nil
}

// Sink receives events synchronously, in commit order. Emit must not block
// for long since it runs under the emitter's lock.
type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Fanout delivers each event to every sink in order.
type Fanout []Sink

func (f Fanout) Emit(e Event) {
	for _, s := range f {
		s.Emit(e)
	}
}

// Recorder keeps the ordered event log for in-process observers. Positions
// are absolute for the life of the process: they survive trimming but not a
// restart.
type Recorder struct {
	mu      sync.RWMutex
	events  []Event
	max     int
	dropped int
}

// NewRecorder returns a recorder that keeps every event.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// NewBoundedRecorder keeps only the size most recent events. A non-positive
// size keeps everything.
func NewBoundedRecorder(size int) *Recorder {
	return &Recorder{max: size}
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	if r.max > 0 && len(r.events) > r.max {
		r.events[0] = Event{}
		r.events = r.events[1:]
		r.dropped++
	}
	r.mu.Unlock()
}

// Events returns a copy of everything still retained.
func (r *Recorder) Events() []Event {
	events, _ := r.Read(0)
	return events
}

// Since returns the retained events at positions >= n.
func (r *Recorder) Since(n int) []Event {
	events, _ := r.Read(n)
	return events
}

// Read returns the retained events at positions >= n together with the
// position of the first one. first > n means older events were trimmed.
func (r *Recorder) Read(n int) (events []Event, first int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	first = max(n, r.dropped)
	i := first - r.dropped
	if i >= len(r.events) {
		return []Event{}, first
	}
	events = make([]Event, len(r.events)-i)
	copy(events, r.events[i:])
	return events, first
}

// Len is the number of events ever recorded, trimmed ones included.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped + len(r.events)
}
