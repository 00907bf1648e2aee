package queue

import (
	"github.com/rs/zerolog/log"

	"github.com/unclebandit/fundraiser-backend/internal/event"
)

// DefaultTopic carries every committed fundraiser event.
const DefaultTopic = "fundraiser_events"

// Forwarder is an event.Sink that publishes each event to Topic. A failed
// publish is logged; the mutation that produced the event stays committed.
type Forwarder struct {
	Queue Queue
	Topic string
}

func NewForwarder(q Queue, topic string) *Forwarder {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Forwarder{Queue: q, Topic: topic}
}

func (f *Forwarder) Emit(e event.Event) {
	if err := f.Queue.Publish(f.Topic, e); err != nil {
		log.Warn().Err(err).Str("topic", f.Topic).Str("event_id", e.ID.String()).Str("kind", string(e.Kind)).Msg("failed to forward event")
	}
}

var _ event.Sink = (*Forwarder)(nil)
