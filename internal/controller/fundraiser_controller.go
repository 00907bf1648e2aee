// internal/controller/fundraiser_controller.go
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	appErrors "github.com/unclebandit/fundraiser-backend/internal/errors"
	"github.com/unclebandit/fundraiser-backend/internal/model"
	"github.com/unclebandit/fundraiser-backend/internal/service"
)

// CallerHeader carries the identity of the account making the request.
const CallerHeader = "X-Caller-Address"

// ErrorCounter observes error responses by status code.
type ErrorCounter interface {
	HTTPError(status int)
}

type FundraiserController struct {
	FundraiserService *service.FundraiserService
	Errors            ErrorCounter
}

// Routes mounts every fundraiser endpoint on r.
func (c *FundraiserController) Routes(r chi.Router) {
	r.Route("/fundraisers", func(r chi.Router) {
		r.Post("/", c.CreateFundraiser)
		r.Get("/", c.ListFundraisers)
		r.Get("/count", c.FundraisersCount)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", c.GetFundraiser)
			r.Post("/", c.Receive)
			r.Post("/donations", c.Donate)
			r.Get("/donations/mine", c.MyDonations)
			r.Get("/donations/mine/{index}/receipt", c.Receipt)
			r.Post("/withdraw", c.Withdraw)
			r.Put("/beneficiary", c.SetBeneficiary)
		})
	})
	r.Get("/receipts", c.ListReceipts)
}

func (c *FundraiserController) CreateFundraiser(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	var body struct {
		Name        string `json:"name"`
		URL         string `json:"url"`
		ImageURL    string `json:"image_url"`
		Description string `json:"description"`
		Beneficiary string `json:"beneficiary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	beneficiary, err := model.ParseAddress(body.Beneficiary)
	if err != nil {
		c.writeError(w, err)
		return
	}

	details, err := c.FundraiserService.CreateFundraiser(r.Context(), caller, service.CreateFundraiserRequest{
		Name:        body.Name,
		URL:         body.URL,
		ImageURL:    body.ImageURL,
		Description: body.Description,
		Beneficiary: beneficiary,
	})
	if err != nil {
		c.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, details)
}

func (c *FundraiserController) ListFundraisers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}
	caller, err := optionalCaller(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	page, err := c.FundraiserService.ListFundraisers(limit, offset, caller)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (c *FundraiserController) FundraisersCount(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": c.FundraiserService.FundraisersCount()})
}

func (c *FundraiserController) GetFundraiser(w http.ResponseWriter, r *http.Request) {
	id, err := fundraiserID(r)
	if err != nil {
		http.Error(w, "invalid fundraiser id", http.StatusBadRequest)
		return
	}
	caller, err := optionalCaller(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	details, err := c.FundraiserService.FundraiserDetails(id, caller)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type valueBody struct {
	Value decimal.Decimal `json:"value"`
}

func (c *FundraiserController) Donate(w http.ResponseWriter, r *http.Request) {
	c.transfer(w, r, c.FundraiserService.Donate)
}

// Receive accepts a bare value transfer to the fundraiser.
func (c *FundraiserController) Receive(w http.ResponseWriter, r *http.Request) {
	c.transfer(w, r, c.FundraiserService.Receive)
}

func (c *FundraiserController) transfer(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id model.FundraiserID, from model.Address, value decimal.Decimal) (*service.FundraiserDetails, error),
) {
	id, err := fundraiserID(r)
	if err != nil {
		http.Error(w, "invalid fundraiser id", http.StatusBadRequest)
		return
	}
	caller, err := requireCaller(r)
	if err != nil {
		c.writeError(w, err)
		return
	}
	var body valueBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	details, err := fn(r.Context(), id, caller, body.Value)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, details)
}

func (c *FundraiserController) MyDonations(w http.ResponseWriter, r *http.Request) {
	id, err := fundraiserID(r)
	if err != nil {
		http.Error(w, "invalid fundraiser id", http.StatusBadRequest)
		return
	}
	caller, err := requireCaller(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	mine, err := c.FundraiserService.MyDonations(id, caller)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mine)
}

func (c *FundraiserController) Receipt(w http.ResponseWriter, r *http.Request) {
	id, err := fundraiserID(r)
	if err != nil {
		http.Error(w, "invalid fundraiser id", http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid donation index", http.StatusBadRequest)
		return
	}
	caller, err := requireCaller(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	rc, err := c.FundraiserService.Receipt(id, caller, index)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (c *FundraiserController) Withdraw(w http.ResponseWriter, r *http.Request) {
	id, err := fundraiserID(r)
	if err != nil {
		http.Error(w, "invalid fundraiser id", http.StatusBadRequest)
		return
	}
	caller, err := requireCaller(r)
	if err != nil {
		c.writeError(w, err)
		return
	}

	res, err := c.FundraiserService.Withdraw(r.Context(), id, caller)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *FundraiserController) SetBeneficiary(w http.ResponseWriter, r *http.Request) {
	id, err := fundraiserID(r)
	if err != nil {
		http.Error(w, "invalid fundraiser id", http.StatusBadRequest)
		return
	}
	caller, err := requireCaller(r)
	if err != nil {
		c.writeError(w, err)
		return
	}
	var body struct {
		Beneficiary string `json:"beneficiary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	beneficiary, err := model.ParseAddress(body.Beneficiary)
	if err != nil {
		c.writeError(w, err)
		return
	}

	details, err := c.FundraiserService.SetBeneficiary(r.Context(), id, caller, beneficiary)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (c *FundraiserController) ListReceipts(w http.ResponseWriter, r *http.Request) {
	caller, err := requireCaller(r)
	if err != nil {
		c.writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		http.Error(w, "invalid limit", http.StatusBadRequest)
		return
	}

	receipts, err := c.FundraiserService.ListReceipts(r.Context(), caller, limit)
	if err != nil {
		c.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": receipts})
}

// StatusOf maps a domain error to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, appErrors.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, appErrors.ErrMissingCaller):
		return http.StatusUnauthorized
	case errors.Is(err, appErrors.ErrOffsetOutOfBounds),
		errors.Is(err, appErrors.ErrZeroDonation),
		errors.Is(err, appErrors.ErrInvalidAmount),
		appErrors.IsInvalidAddress(err):
		return http.StatusBadRequest
	case errors.Is(err, appErrors.ErrDonationNotFound), appErrors.IsNotFound(err):
		return http.StatusNotFound
	case appErrors.IsTransient(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (c *FundraiserController) writeError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if c.Errors != nil {
		c.Errors.HTTPError(status)
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func fundraiserID(r *http.Request) (model.FundraiserID, error) {
	return model.ParseFundraiserID(chi.URLParam(r, "id"))
}

func requireCaller(r *http.Request) (model.Address, error) {
	v := r.Header.Get(CallerHeader)
	if v == "" {
		return "", appErrors.ErrMissingCaller
	}
	return model.ParseAddress(v)
}

func optionalCaller(r *http.Request) (model.Address, error) {
	if r.Header.Get(CallerHeader) == "" {
		return "", nil
	}
	return requireCaller(r)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
