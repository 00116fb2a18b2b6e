package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/deliajin33/stablecoin/pkg/clock"
	"github.com/deliajin33/stablecoin/pkg/logger"
)

// RequestExpiryJobName labels the sweeper in logs and metrics.
const RequestExpiryJobName = "request-expiry"

type expirySweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

type RequestExpiryJobParams struct {
	Logger  *logger.Logger
	Sweeper expirySweeper
	Clock   clock.Clock
}

// NewRequestExpiryJob builds the job that expires stale pending requests.
func NewRequestExpiryJob(params RequestExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &requestExpiryJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		clock:   clk,
	}, nil
}

type requestExpiryJob struct {
	logg    *logger.Logger
	sweeper expirySweeper
	clock   clock.Clock
}

func (j *requestExpiryJob) Name() string { return RequestExpiryJobName }

func (j *requestExpiryJob) Run(ctx context.Context) error {
	now := j.clock.Now()
	expired, err := j.sweeper.SweepExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("sweep expired requests (%d expired): %w", expired, err)
	}
	if expired > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"as_of":   now,
			"expired": expired,
		})
		j.logg.Info(logCtx, "expired stale payment requests")
	}
	return nil
}
