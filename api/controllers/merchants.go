package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deliajin33/stablecoin/api/middleware"
	"github.com/deliajin33/stablecoin/api/responses"
	"github.com/deliajin33/stablecoin/api/validators"
	"github.com/deliajin33/stablecoin/internal/paymentrequests"
	"github.com/deliajin33/stablecoin/pkg/enums"
	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
	"github.com/deliajin33/stablecoin/pkg/logger"
)

const merchantIDParam = "merchantId"

// MerchantPaymentRequests lists a merchant's request history. Callers may only
// list their own merchant.
func MerchantPaymentRequests(svc paymentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, err := ownMerchant(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := validators.ParseQueryEnum(r, "status", enums.ParsePaymentRequestStatus, "unknown status")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := paymentrequests.ListParams{
			MerchantID: merchantID,
			Status:     status,
			Limit:      page.Limit,
			Cursor:     page.Cursor,
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// MerchantTransactions lists a merchant's settled transactions.
func MerchantTransactions(svc paymentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		merchantID, err := ownMerchant(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, err := validators.ParseQueryEnum(r, "currency", enums.ParseCurrency, "currency must be USDT or USDC")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := paymentrequests.TransactionListParams{
			MerchantID: merchantID,
			Currency:   currency,
			Limit:      page.Limit,
			Cursor:     page.Cursor,
		}

		result, err := svc.ListTransactions(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ownMerchant(r *http.Request) (string, error) {
	caller := middleware.MerchantIDFromContext(r.Context())
	if caller == "" {
		return "", missingMerchant()
	}
	if chi.URLParam(r, merchantIDParam) != caller {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "merchant mismatch")
	}
	return caller, nil
}
