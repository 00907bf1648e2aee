package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unclebandit/fundraiser-backend/internal/event"
)

// Metrics counts committed ledger activity. It is an event.Sink, so every
// counter moves exactly once per commit.
type Metrics struct {
	fundraisersCreated prometheus.Counter
	donations          prometheus.Counter
	donatedValue       prometheus.Counter
	withdrawals        prometheus.Counter
	withdrawnValue     prometheus.Counter
	httpErrors         *prometheus.CounterVec
	queueFailures      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		fundraisersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "fundraiser_created_total",
			Help: "fundraisers created",
		}),
		donations: factory.NewCounter(prometheus.CounterOpts{
			Name: "fundraiser_donations_total",
			Help: "donations accepted",
		}),
		donatedValue: factory.NewCounter(prometheus.CounterOpts{
			Name: "fundraiser_donated_value_total",
			Help: "sum of accepted donations in base units",
		}),
		withdrawals: factory.NewCounter(prometheus.CounterOpts{
			Name: "fundraiser_withdrawals_total",
			Help: "withdrawals performed, including zero-amount ones",
		}),
		withdrawnValue: factory.NewCounter(prometheus.CounterOpts{
			Name: "fundraiser_withdrawn_value_total",
			Help: "sum of withdrawn amounts in base units",
		}),
		httpErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fundraiser_http_errors_total",
			Help: "error responses by status code",
		}, []string{"status"}),
		queueFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fundraiser_queue_failures_total",
			Help: "jobs dropped after exhausting retries",
		}, []string{"topic"}),
	}
}

func (m *Metrics) Emit(e event.Event) {
	switch p := e.Payload.(type) {
	case event.FundraiserCreated:
		m.fundraisersCreated.Inc()
	case event.DonationReceived:
		m.donations.Inc()
		m.donatedValue.Add(p.Value.InexactFloat64())
	case event.Withdraw:
		m.withdrawals.Inc()
		m.withdrawnValue.Add(p.Amount.InexactFloat64())
	}
}

func (m *Metrics) HTTPError(status int) {
	m.httpErrors.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *Metrics) QueueFailure(topic string) {
	m.queueFailures.WithLabelValues(topic).Inc()
}

var _ event.Sink = (*Metrics)(nil)
