package sla

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the health monitor and approval sweeper on their own
// cadences via robfig/cron/v3, grounded on the teacher's job scheduler
// package (itself built on the same library for interval/standard cron
// expressions).
type Scheduler struct {
	cron    *cron.Cron
	health  *HealthMonitor
	sweeper *ApprovalSweeper
	logger  *slog.Logger
}

// NewScheduler builds a Scheduler. healthSweepInterval is a plain
// interval (config.SLAConfig.HealthSweepInterval); approvalSweepCron is a
// standard 5-field cron expression (config.SLAConfig.ApprovalSweepCron,
// e.g. "*/1 * * * *").
func NewScheduler(health *HealthMonitor, sweeper *ApprovalSweeper, healthSweepInterval time.Duration, approvalSweepCron string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := cron.New()

	healthSpec := "@every " + healthSweepInterval.String()
	if _, err := c.AddFunc(healthSpec, func() {
		if _, err := health.Sweep(context.Background()); err != nil {
			logger.Warn("health sweep failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule health sweep %q: %w", healthSpec, err)
	}

	if _, err := c.AddFunc(approvalSweepCron, func() {
		if _, err := sweeper.Sweep(context.Background()); err != nil {
			logger.Warn("approval sweep failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule approval sweep %q: %w", approvalSweepCron, err)
	}

	return &Scheduler{cron: c, health: health, sweeper: sweeper, logger: logger}, nil
}

// Start begins running both sweeps on their schedules. Non-blocking.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
