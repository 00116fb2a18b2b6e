package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/deliajin33/stablecoin/api/middleware"
	"github.com/deliajin33/stablecoin/api/responses"
	"github.com/deliajin33/stablecoin/api/validators"
	"github.com/deliajin33/stablecoin/internal/paymentrequests"
	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
	"github.com/deliajin33/stablecoin/pkg/logger"
)

const requestIDParam = "requestId"

type createPaymentRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Currency    string           `json:"currency" validate:"required"`
	Description string           `json:"description" validate:"max=140"`
	Static      bool             `json:"static"`
}

type settlePaymentRequest struct {
	PayerRef string           `json:"payerRef" validate:"required,max=128"`
	Amount   *decimal.Decimal `json:"amount"`
	Currency string           `json:"currency" validate:"required"`
}

type settleResponse struct {
	Transaction paymentrequests.TransactionView    `json:"transaction"`
	Request     paymentrequests.PaymentRequestView `json:"request"`
}

// CreatePaymentRequest issues a new request for the merchant in X-Merchant-Id.
func CreatePaymentRequest(svc paymentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID := middleware.MerchantIDFromContext(r.Context())
		if merchantID == "" {
			responses.WriteError(r.Context(), logg, w, missingMerchant())
			return
		}

		var body createPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Create(r.Context(), paymentrequests.CreateInput{
			MerchantID:  merchantID,
			Amount:      body.Amount,
			Currency:    body.Currency,
			Description: body.Description,
			Static:      body.Static,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, svc.View(req))
	}
}

// GetPaymentRequest returns the current state of a request. Anyone holding the
// id may read it, so payers can poll.
func GetPaymentRequest(svc paymentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := svc.Get(r.Context(), chi.URLParam(r, requestIDParam))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, svc.View(req))
	}
}

// SettlePaymentRequest records a payer's settlement against a pending request.
func SettlePaymentRequest(svc paymentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body settlePaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id := chi.URLParam(r, requestIDParam)
		tx, err := svc.Settle(r.Context(), paymentrequests.SettleInput{
			RequestID: id,
			PayerRef:  body.PayerRef,
			Amount:    body.Amount,
			Currency:  body.Currency,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settleResponse{
			Transaction: paymentrequests.NewTransactionView(tx),
			Request:     svc.View(req),
		})
	}
}

// CancelPaymentRequest withdraws a pending request owned by the caller.
func CancelPaymentRequest(svc paymentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID := middleware.MerchantIDFromContext(r.Context())
		if merchantID == "" {
			responses.WriteError(r.Context(), logg, w, missingMerchant())
			return
		}

		id := chi.URLParam(r, requestIDParam)
		if err := svc.Cancel(r.Context(), id, merchantID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, svc.View(req))
	}
}

func missingMerchant() error {
	return pkgerrors.New(pkgerrors.CodeForbidden, "merchant context missing")
}
