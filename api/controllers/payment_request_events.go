package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/deliajin33/stablecoin/api/responses"
	"github.com/deliajin33/stablecoin/internal/paymentrequests"
	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
	"github.com/deliajin33/stablecoin/pkg/logger"
)

const (
	DefaultEventHeartbeat = 15 * time.Second
	snapshotEvent         = "snapshot"
)

// PaymentRequestEvents streams status changes for one request as Server-Sent
// Events. The first event is a snapshot of the current view; the stream ends
// after a terminal status or when the client goes away.
func PaymentRequestEvents(svc paymentrequests.Service, logg *logger.Logger, heartbeat time.Duration) http.HandlerFunc {
	if heartbeat <= 0 {
		heartbeat = DefaultEventHeartbeat
	}
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		ctx := r.Context()
		req, sub, err := svc.Subscribe(ctx, chi.URLParam(r, requestIDParam))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		defer sub.Close()

		header := w.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		if err := writeEvent(w, snapshotEvent, svc.View(req)); err != nil {
			return
		}
		flusher.Flush()
		if req.Status.IsTerminal() {
			return
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case event, open := <-sub.Events():
				if !open {
					return
				}
				if err := writeEvent(w, event.EventType(), event); err != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "event stream write failed")
					return
				}
				flusher.Flush()
				if event.Terminal() {
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
	return err
}
