package controllers

import (
	"context"
	"net/http"

	"github.com/deliajin33/stablecoin/api/responses"
	"github.com/deliajin33/stablecoin/internal/cron"
	"github.com/deliajin33/stablecoin/internal/paymentrequests"
	pkgerrors "github.com/deliajin33/stablecoin/pkg/errors"
	"github.com/deliajin33/stablecoin/pkg/logger"
)

// CycleRunner runs one maintenance cycle on demand.
type CycleRunner interface {
	RunNow(ctx context.Context) (*cron.CycleReport, error)
}

func AdminSummary(svc paymentrequests.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := svc.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// AdminRunCron triggers the expiry and retention jobs immediately. A cycle
// already in progress yields a report with skipped set.
func AdminRunCron(runner CycleRunner, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "cron disabled"))
			return
		}
		report, err := runner.RunNow(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "run cron cycle"))
			return
		}
		responses.WriteSuccess(w, report)
	}
}
