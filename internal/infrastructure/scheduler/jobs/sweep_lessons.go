// Package jobs contains the periodic jobs of the progress engine.
package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/eduaid/eduaid-hub/internal/application/session"
	"github.com/eduaid/eduaid-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP LESSONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// Sweeper runs the expiration sweep over every open session.
type Sweeper interface {
	SweepAll(ctx context.Context) (session.SweepStats, error)
}

// SweepObserver receives the size of every sweep. Optional.
type SweepObserver interface {
	ObserveSweep(sessions int)
}

// SweepLessonsJob expires abandoned lessons and sends due-date reminders
// for every learner with an open session.
type SweepLessonsJob struct {
	sweeper  Sweeper
	observer SweepObserver
	logger   *logger.Logger

	lastRunStats atomic.Value // *SweepLessonsStats
}

// SweepLessonsStats contains statistics from the last run.
type SweepLessonsStats struct {
	session.SweepStats
	StartedAt time.Time
	Duration  time.Duration
}

// NewSweepLessonsJob creates the job.
func NewSweepLessonsJob(sweeper Sweeper, observer SweepObserver, log *logger.Logger) *SweepLessonsJob {
	if log == nil {
		log = logger.Nop()
	}
	return &SweepLessonsJob{
		sweeper:  sweeper,
		observer: observer,
		logger:   log.With(logger.Component("sweep_lessons_job")),
	}
}

// Name implements scheduler.Job.
func (j *SweepLessonsJob) Name() string { return "sweep_lessons" }

// Description implements scheduler.Job.
func (j *SweepLessonsJob) Description() string {
	return "Expires lessons idle past their window and sends due-date reminders"
}

// Run implements scheduler.Job.
func (j *SweepLessonsJob) Run(ctx context.Context) error {
	started := time.Now()

	stats, err := j.sweeper.SweepAll(ctx)

	j.lastRunStats.Store(&SweepLessonsStats{
		SweepStats: stats,
		StartedAt:  started,
		Duration:   time.Since(started),
	})
	if j.observer != nil {
		j.observer.ObserveSweep(stats.Sessions)
	}

	if err != nil {
		return err
	}

	if stats.Expired > 0 || stats.Reminded > 0 || stats.Skipped > 0 {
		j.logger.Info("sweep finished",
			logger.Int("sessions", stats.Sessions),
			logger.Int("expired", stats.Expired),
			logger.Int("reminded", stats.Reminded),
			logger.Int("skipped", stats.Skipped),
		)
	}
	return nil
}

// LastRunStats returns statistics from the last run, or nil.
func (j *SweepLessonsJob) LastRunStats() *SweepLessonsStats {
	if v := j.lastRunStats.Load(); v != nil {
		return v.(*SweepLessonsStats)
	}
	return nil
}
