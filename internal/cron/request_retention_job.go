package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/deliajin33/stablecoin/pkg/clock"
	"github.com/deliajin33/stablecoin/pkg/logger"
)

const (
	RequestRetentionJobName = "request-retention"

	defaultRequestRetention = 7 * 24 * time.Hour
)

type closedPruner interface {
	PruneClosed(ctx context.Context, cutoff time.Time) (int, error)
}

type RequestRetentionJobParams struct {
	Logger    *logger.Logger
	Pruner    closedPruner
	Clock     clock.Clock
	Retention time.Duration
}

// NewRequestRetentionJob builds the job that drops requests closed longer than
// the retention period.
func NewRequestRetentionJob(params RequestRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Pruner == nil {
		return nil, fmt.Errorf("pruner required")
	}
	clk := params.Clock
	if clk == nil {
		clk = clock.System()
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRequestRetention
	}
	return &requestRetentionJob{
		logg:      params.Logger,
		pruner:    params.Pruner,
		clock:     clk,
		retention: retention,
	}, nil
}

type requestRetentionJob struct {
	logg      *logger.Logger
	pruner    closedPruner
	clock     clock.Clock
	retention time.Duration
}

func (j *requestRetentionJob) Name() string { return RequestRetentionJobName }

func (j *requestRetentionJob) Run(ctx context.Context) error {
	cutoff := j.clock.Now().Add(-j.retention)
	pruned, err := j.pruner.PruneClosed(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune closed requests: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"retention": j.retention.String(),
		"pruned":    pruned,
	})
	j.logg.Debug(logCtx, "request retention complete")
	return nil
}
