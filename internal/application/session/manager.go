package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/eduaid/eduaid-hub/config"
	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"
	"github.com/eduaid/eduaid-hub/pkg/logger"
	"github.com/eduaid/eduaid-hub/pkg/retry"
	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// OPTIONS
// ══════════════════════════════════════════════════════════════════════════════

// Features reports whether a feature flag is on for a learner.
type Features interface {
	IsEnabled(featureName, userID string) bool
}

// Options configures a Manager.
type Options struct {
	// Tracker applies progress transitions. Required.
	Tracker *progress.Tracker

	// Store persists learner state. Nil keeps state in memory only.
	Store progress.Store

	// Publisher receives domain events. Optional.
	Publisher shared.EventPublisher

	// Clock defaults to the real UTC clock.
	Clock timeutil.Clock

	// Features defaults to the built-in flag defaults.
	Features Features

	// Retrier wraps store calls. Defaults to PersistenceRetrier.
	Retrier *retry.Retrier

	// SaveTimeout bounds a single persist including retries.
	SaveTimeout time.Duration

	Logger *logger.Logger
}

// PersistenceRetrier retries store calls on any error except
// cancellation and missing state.
func PersistenceRetrier(opts ...retry.Option) *retry.Retrier {
	base := []retry.Option{
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(50 * time.Millisecond),
		retry.WithMaxDelay(time.Second),
		retry.WithMultiplier(2.0),
		retry.WithJitter(0.05),
		retry.WithRetryIf(isTransient),
	}
	return retry.New(append(base, opts...)...)
}

func isTransient(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, shared.ErrStateNotFound) &&
		!shared.IsValidation(err)
}

type env struct {
	tracker     *progress.Tracker
	store       progress.Store
	publisher   shared.EventPublisher
	clock       timeutil.Clock
	features    Features
	retrier     *retry.Retrier
	saveTimeout time.Duration
	log         *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// MANAGER
// ══════════════════════════════════════════════════════════════════════════════

// Manager keeps one Session per learner.
type Manager struct {
	env *env

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Tracker == nil {
		return nil, shared.NewDomainError("session", "NewManager", shared.ErrInvalidInput, "tracker is required")
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.NewRealClock()
	}
	if opts.Features == nil {
		opts.Features = config.NewFeatureFlags()
	}
	if opts.Retrier == nil {
		opts.Retrier = PersistenceRetrier()
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	return &Manager{
		env: &env{
			tracker:     opts.Tracker,
			store:       opts.Store,
			publisher:   opts.Publisher,
			clock:       opts.Clock,
			features:    opts.Features,
			retrier:     opts.Retrier,
			saveTimeout: opts.SaveTimeout,
			log:         opts.Logger.With(logger.Component("session")),
		},
		sessions: make(map[string]*Session),
	}, nil
}

// Tracker returns the tracker shared by all sessions.
func (m *Manager) Tracker() *progress.Tracker { return m.env.tracker }

// Open returns the learner's session, loading the stored state on first use.
// A learner without stored state starts from a fresh state.
func (m *Manager) Open(ctx context.Context, userID string) (*Session, error) {
	uid, err := shared.NewUserID(userID)
	if err != nil {
		return nil, err
	}
	userID = uid.String()

	if s, ok := m.Get(userID); ok {
		return s, nil
	}

	st, err := m.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s, nil
	}
	s := newSession(userID, st, m.env)
	m.sessions[userID] = s
	m.env.log.Debug("session opened", logger.UserID(userID), logger.Int("sessions", len(m.sessions)))
	return s, nil
}

func (m *Manager) load(ctx context.Context, userID string) (*progress.State, error) {
	if m.env.store == nil {
		return m.env.tracker.NewState(), nil
	}

	var st *progress.State
	err := m.env.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		st, err = m.env.store.Load(ctx, userID)
		return err
	})
	switch {
	case errors.Is(err, shared.ErrStateNotFound):
		return m.env.tracker.NewState(), nil
	case err != nil:
		return nil, shared.WrapError("session", "Open", shared.ErrServiceUnavailable, "failed to load progress state", err)
	}
	return st, nil
}

// Get returns an already open session.
func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Close closes and forgets the learner's session (logout).
// Pending delayed notices are dropped.
func (m *Manager) Close(userID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	m.env.log.Debug("session closed", logger.UserID(userID))
	return true
}

// CloseAll closes every session (shutdown).
func (m *Manager) CloseAll() int {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	return len(sessions)
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// UserIDs returns the learners with open sessions, sorted.
func (m *Manager) UserIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SweepStats summarizes one SweepAll pass.
type SweepStats struct {
	Sessions int
	Expired  int
	Reminded int
	Skipped  int
}

// SweepAll runs the sweep on every open session.
// It stops early when ctx is cancelled.
func (m *Manager) SweepAll(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	for _, id := range m.UserIDs() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		s, ok := m.Get(id)
		if !ok {
			continue
		}
		res, err := s.Sweep(ctx)
		if err != nil {
			// closed between listing and sweeping
			continue
		}
		stats.Sessions++
		stats.Expired += len(res.Expired)
		stats.Reminded += len(res.Reminded)
		stats.Skipped += len(res.Skipped)
	}
	return stats, nil
}
