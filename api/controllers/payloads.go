package controllers

import (
	"net/http"
	"time"

	"github.com/deliajin33/stablecoin/api/responses"
	"github.com/deliajin33/stablecoin/api/validators"
	"github.com/deliajin33/stablecoin/internal/paymentrequests"
	"github.com/deliajin33/stablecoin/pkg/enums"
	"github.com/deliajin33/stablecoin/pkg/logger"
	"github.com/deliajin33/stablecoin/pkg/paycode"
)

type decodePayloadRequest struct {
	Payload string `json:"payload" validate:"required,max=2048"`
}

type decodedPayload struct {
	RequestID  string         `json:"requestId"`
	MerchantID string         `json:"merchantId"`
	Currency   enums.Currency `json:"currency"`
	Amount     *string        `json:"amount,omitempty"`
	ExpiresAt  time.Time      `json:"expiresAt"`
}

type decodePayloadResponse struct {
	Payload decodedPayload                     `json:"payload"`
	Request paymentrequests.PaymentRequestView `json:"request"`
}

// DecodePayload reads a scanned code and returns what it encodes alongside the
// request's current state. The payload itself grants nothing; the stored
// request is the source of truth.
func DecodePayload(svc paymentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body decodePayloadRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fields, err := paycode.Decode(body.Payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Get(r.Context(), fields.RequestID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decoded := decodedPayload{
			RequestID:  fields.RequestID,
			MerchantID: fields.MerchantID,
			Currency:   fields.Currency,
			ExpiresAt:  fields.ExpiresAt,
		}
		if fields.Amount != nil {
			amt := paycode.FormatAmount(*fields.Amount)
			decoded.Amount = &amt
		}
		responses.WriteSuccess(w, decodePayloadResponse{Payload: decoded, Request: svc.View(req)})
	}
}
