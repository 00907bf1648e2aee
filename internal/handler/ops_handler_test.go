package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/fundraiser-backend/internal/event"
	"github.com/unclebandit/fundraiser-backend/internal/handler"
	"github.com/unclebandit/fundraiser-backend/internal/model"
)

func newRouter(h *handler.OpsHandler) http.Handler {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func TestListEventsSince(t *testing.T) {
	rec := event.NewRecorder()
	donor := model.Address("0x00000000000000000000000000000000000000d0")
	rec.Emit(event.New(1, time.Now(), event.FundraiserCreated{Fundraiser: 1, Owner: donor}))
	rec.Emit(event.New(1, time.Now(), event.DonationReceived{Donor: donor, Value: decimal.NewFromInt(3)}))

	router := newRouter(&handler.OpsHandler{Events: rec, Gatherer: prometheus.NewRegistry()})

	req := httptest.NewRequest(http.MethodGet, "/events?since=1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Events []event.Event `json:"events"`
		Next   int           `json:"next"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Events, 1)
	assert.Equal(t, event.KindDonationReceived, body.Events[0].Kind)
	assert.Equal(t, 2, body.Next)
}

func TestListEventsReportsTrimmedLog(t *testing.T) {
	rec := event.NewBoundedRecorder(2)
	for i := 1; i <= 4; i++ {
		rec.Emit(event.New(model.FundraiserID(i), time.Now(), event.Withdraw{Amount: decimal.Zero}))
	}
	router := newRouter(&handler.OpsHandler{Events: rec, Gatherer: prometheus.NewRegistry()})

	req := httptest.NewRequest(http.MethodGet, "/events?since=0", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Events []event.Event `json:"events"`
		First  int           `json:"first"`
		Next   int           `json:"next"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Events, 2)
	assert.Equal(t, model.FundraiserID(3), body.Events[0].Source)
	assert.Equal(t, 2, body.First)
	assert.Equal(t, 4, body.Next)
}

func TestListEventsRejectsBadSince(t *testing.T) {
	router := newRouter(&handler.OpsHandler{Events: event.NewRecorder(), Gatherer: prometheus.NewRegistry()})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events?since=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealth(t *testing.T) {
	h := &handler.OpsHandler{Events: event.NewRecorder(), Gatherer: prometheus.NewRegistry()}
	router := newRouter(h)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	h.Ready = func() error { return errors.New("db down") }
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "probe_total", Help: "probe"})
	reg.MustRegister(c)
	c.Inc()

	router := newRouter(&handler.OpsHandler{Events: event.NewRecorder(), Gatherer: reg})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "probe_total 1")
}
