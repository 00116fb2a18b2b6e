package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/deliajin33/stablecoin/internal/paymentrequests"
	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
)

func TestMerchantPaymentRequests(t *testing.T) {
	f := newFixture(t)
	first := f.createVia(t, `{"currency":"USDT"}`)
	second := f.createVia(t, `{"amount":"2","currency":"USDC"}`)
	if err := f.svc.Cancel(context.Background(), first.ID, "merchant-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	handler := MerchantPaymentRequests(f.svc, f.logg)
	own := map[string]string{merchantIDParam: "merchant-1"}

	rec := serve(handler, call{method: http.MethodGet, target: "/", merchant: "merchant-1", params: own})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var page paymentrequests.ListResult
	decodeData(t, rec, &page)
	if len(page.Items) != 2 {
		t.Fatalf("expected both requests, got %d", len(page.Items))
	}

	rec = serve(handler, call{method: http.MethodGet, target: "/?status=pending", merchant: "merchant-1", params: own})
	decodeData(t, rec, &page)
	if len(page.Items) != 1 || page.Items[0].ID != second.ID {
		t.Fatalf("status filter failed: %+v", page.Items)
	}

	rec = serve(handler, call{method: http.MethodGet, target: "/?status=settled", merchant: "merchant-1", params: own})
	expectError(t, rec, http.StatusBadRequest, string(pkgerrors.CodeValidation))

	rec = serve(handler, call{method: http.MethodGet, target: "/?limit=0", merchant: "merchant-1", params: own})
	expectError(t, rec, http.StatusBadRequest, string(pkgerrors.CodeValidation))

	rec = serve(handler, call{method: http.MethodGet, target: "/", merchant: "merchant-2", params: own})
	expectError(t, rec, http.StatusForbidden, string(pkgerrors.CodeForbidden))
}

func TestMerchantTransactions(t *testing.T) {
	f := newFixture(t)
	created := f.createVia(t, `{"amount":"10","currency":"USDC"}`)
	amount := decimal.RequireFromString("10")
	if _, err := f.svc.Settle(context.Background(), paymentrequests.SettleInput{RequestID: created.ID, PayerRef: "p", Amount: &amount, Currency: "USDC"}); err != nil {
		t.Fatalf("settle: %v", err)
	}
	handler := MerchantTransactions(f.svc, f.logg)
	own := map[string]string{merchantIDParam: "merchant-1"}

	rec := serve(handler, call{method: http.MethodGet, target: "/?currency=usdc", merchant: "merchant-1", params: own})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var page paymentrequests.TransactionListResult
	decodeData(t, rec, &page)
	if len(page.Items) != 1 || page.Items[0].RequestID != created.ID || page.Items[0].NetAmount != "9.9" {
		t.Fatalf("unexpected transactions %+v", page.Items)
	}

	rec = serve(handler, call{method: http.MethodGet, target: "/?currency=USDT", merchant: "merchant-1", params: own})
	decodeData(t, rec, &page)
	if len(page.Items) != 0 {
		t.Fatalf("expected no USDT transactions, got %d", len(page.Items))
	}

	rec = serve(handler, call{method: http.MethodGet, target: "/?currency=EUR", merchant: "merchant-1", params: own})
	expectError(t, rec, http.StatusBadRequest, string(pkgerrors.CodeValidation))
}
