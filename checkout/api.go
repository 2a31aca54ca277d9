package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// API is the HTTP API for the checkout service.
type API struct {
	checkout *Service
}

func NewAPI(checkout *Service) *API {
	return &API{
		checkout: checkout,
	}
}

func (a *API) AppendRoutes(r chi.Router) {
	r.Route("/checkout", func(r chi.Router) {
		r.Get("/context", a.checkoutContext)
		r.Post("/quote", a.quote)
		r.Post("/prepare", a.prepare)
	})
	r.Get("/payments/callback", a.paymentCallback)
}

func (a *API) checkoutContext(w http.ResponseWriter, r *http.Request) {
	cc, err := a.checkout.LoadCheckoutContext(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(cc)
}

func (a *API) quote(w http.ResponseWriter, r *http.Request) {
	req := QuoteRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := a.checkout.Quote(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (a *API) prepare(w http.ResponseWriter, r *http.Request) {
	req := PrepareRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := a.checkout.Prepare(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// paymentCallback is the gateway return URL. Every outcome is a redirect:
// settlement details on success, code+message on the failure page. A raw
// error never surfaces here.
func (a *API) paymentCallback(w http.ResponseWriter, r *http.Request) {
	params, failure := ParseCallback(r.URL.Query())
	if failure != nil {
		http.Redirect(w, r, a.checkout.FailureRedirectURL(failure), http.StatusSeeOther)
		return
	}

	result, failure := a.checkout.HandleCallback(r.Context(), params)
	if failure != nil {
		http.Redirect(w, r, a.checkout.FailureRedirectURL(failure), http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, a.checkout.SuccessRedirectURL(result), http.StatusSeeOther)
}
