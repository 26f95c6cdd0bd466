package jobs

import (
	"context"
	"time"

	"github.com/eduaid/eduaid-hub/internal/application/session"
	"github.com/eduaid/eduaid-hub/pkg/logger"
	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVICT IDLE SESSIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// SessionRegistry is the part of session.Manager the eviction job needs.
type SessionRegistry interface {
	UserIDs() []string
	Get(userID string) (*session.Session, bool)
	Close(userID string) bool
}

// EvictIdleConfig contains configuration for the eviction job.
type EvictIdleConfig struct {
	// IdleAfter is how long a session may go without operations.
	IdleAfter time.Duration
}

// EvictIdleJob closes sessions nobody has touched for a while; the next
// request reloads their stored state. Sessions with pending delayed notices
// are kept until those fire, and sessions whose state could not be saved
// are kept until a save succeeds.
type EvictIdleJob struct {
	registry SessionRegistry
	clock    timeutil.Clock
	config   EvictIdleConfig
	logger   *logger.Logger
}

// NewEvictIdleJob creates the job.
func NewEvictIdleJob(registry SessionRegistry, clock timeutil.Clock, config EvictIdleConfig, log *logger.Logger) *EvictIdleJob {
	if clock == nil {
		clock = timeutil.NewRealClock()
	}
	if config.IdleAfter <= 0 {
		config.IdleAfter = 30 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EvictIdleJob{
		registry: registry,
		clock:    clock,
		config:   config,
		logger:   log.With(logger.Component("evict_idle_job")),
	}
}

// Name implements scheduler.Job.
func (j *EvictIdleJob) Name() string { return "evict_idle_sessions" }

// Description implements scheduler.Job.
func (j *EvictIdleJob) Description() string {
	return "Closes learner sessions idle for longer than " + j.config.IdleAfter.String()
}

// Run implements scheduler.Job.
func (j *EvictIdleJob) Run(ctx context.Context) error {
	cutoff := j.clock.Now().Add(-j.config.IdleAfter)
	evicted, unsaved := 0, 0

	for _, id := range j.registry.UserIDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, ok := j.registry.Get(id)
		if !ok {
			continue
		}
		if s.PendingNotices() > 0 || s.IdleSince().After(cutoff) {
			continue
		}
		if err := s.Flush(ctx); err != nil {
			unsaved++
			j.logger.Warn("keeping idle session with unsaved state",
				logger.UserID(id), logger.Err(err))
			continue
		}
		if j.registry.Close(id) {
			evicted++
		}
	}

	if evicted > 0 || unsaved > 0 {
		j.logger.Info("idle sessions evicted",
			logger.Int("count", evicted),
			logger.Int("kept_unsaved", unsaved),
		)
	}
	return nil
}
