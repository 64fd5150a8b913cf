package spool

import (
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically sweeps stale artifacts out of the spool. It exists for
// the paths no defer can cover: artifacts orphaned by a crash or kill between
// creation and cleanup.
type Janitor struct {
	spool    *Spool
	schedule string
	maxAge   time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewJanitor creates a janitor sweeping artifacts older than maxAge on the
// given cron schedule ("@every 10m" style descriptors work).
func NewJanitor(s *Spool, schedule string, maxAge time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		spool:    s,
		schedule: schedule,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Start begins the sweep schedule. Returns an error for an invalid schedule.
func (j *Janitor) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, j.sweep); err != nil {
		return err
	}
	j.cron = c
	c.Start()
	j.logger.Debug("janitor started", "schedule", j.schedule, "max_age", j.maxAge)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// sweep runs one pass. A tick that fires while the previous sweep is still
// running is skipped rather than queued.
func (j *Janitor) sweep() {
	if !j.mu.TryLock() {
		j.logger.Warn("janitor: sweep still running, skipping tick")
		return
	}
	defer j.mu.Unlock()

	if removed := j.spool.SweepOlderThan(j.maxAge); removed > 0 {
		j.logger.Info("janitor: removed stale artifacts", "count", removed)
	}
}
