package controllers

import (
	"encoding/json"
	"net/http"
	"testing"

	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
)

func TestDecodePayload(t *testing.T) {
	f := newFixture(t)
	created := f.createVia(t, `{"amount":"3.10","currency":"USDC"}`)
	handler := DecodePayload(f.svc, f.logg)

	body, _ := json.Marshal(map[string]string{"payload": created.Payload})
	rec := serve(handler, call{method: http.MethodPost, target: "/", body: string(body)})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp decodePayloadResponse
	decodeData(t, rec, &resp)
	if resp.Payload.RequestID != created.ID || resp.Payload.Amount == nil || *resp.Payload.Amount != "3.10" {
		t.Fatalf("unexpected payload %+v", resp.Payload)
	}
	if !resp.Payload.ExpiresAt.Equal(created.ExpiresAt) {
		t.Fatalf("expiry mismatch: %s vs %s", resp.Payload.ExpiresAt, created.ExpiresAt)
	}
	if resp.Request.Status != created.Status {
		t.Fatalf("expected current request state, got %+v", resp.Request)
	}
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	handler := DecodePayload(f.svc, f.logg)

	rec := serve(handler, call{method: http.MethodPost, target: "/", body: `{"payload":"hello"}`})
	expectError(t, rec, http.StatusBadRequest, string(pkgerrors.CodeMalformedPayload))

	rec = serve(handler, call{method: http.MethodPost, target: "/", body: `{}`})
	expectError(t, rec, http.StatusBadRequest, string(pkgerrors.CodeValidation))
}
