package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/deliajin33/stablecoin/pkg/logger"
	"github.com/deliajin33/stablecoin/pkg/metrics"
)

const defaultInterval = 30 * time.Second

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	// Lock defaults to a LocalLock.
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service executes registered cron jobs on a fixed cadence.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

// JobResult is the outcome of one job within a cycle.
type JobResult struct {
	Name       string `json:"name"`
	DurationMS int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// CycleReport summarizes a cycle. Skipped is set when another cycle held the
// lock and nothing ran.
type CycleReport struct {
	StartedAt time.Time   `json:"startedAt"`
	Skipped   bool        `json:"skipped"`
	Jobs      []JobResult `json:"jobs"`
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{}
	}
	lock := params.Lock
	if lock == nil {
		lock = NewLocalLock()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     lock,
		metrics:  params.Metrics,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if _, err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// RunNow runs one cycle immediately, e.g. from an admin trigger. Job failures
// are reported in the result, not returned.
func (s *Service) RunNow(ctx context.Context) (*CycleReport, error) {
	return s.runCycle(s.logg.WithField(ctx, "trigger", "manual"))
}

// Interval is the delay between scheduled cycles.
func (s *Service) Interval() time.Duration {
	return s.interval
}

func (s *Service) runCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{StartedAt: s.now().UTC(), Jobs: []JobResult{}}
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(ctx, "previous cron cycle still running; skipping this cycle")
		s.metrics.IncSkipped()
		report.Skipped = true
		return report, nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	s.logg.Debug(ctx, "scheduled run starting")
	for _, job := range s.registry.Jobs() {
		report.Jobs = append(report.Jobs, s.runJob(ctx, job))
	}
	s.logg.Debug(ctx, "scheduled run complete")
	return report, nil
}

func (s *Service) runJob(ctx context.Context, job Job) JobResult {
	jobCtx := s.logg.WithEvent(s.logg.WithField(ctx, "job", job.Name()), "cron.job")
	start := s.now()
	err := job.Run(jobCtx)
	duration := s.now().Sub(start)
	s.metrics.ObserveDuration(job.Name(), duration)

	result := JobResult{Name: job.Name(), DurationMS: duration.Milliseconds()}
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", result.DurationMS)
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		result.Error = err.Error()
		return result
	}
	s.logg.Debug(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
	return result
}
