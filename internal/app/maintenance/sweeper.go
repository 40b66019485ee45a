package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/retroboardhq/retroboard/pkg/logger"
)

const (
	defaultSweepSpec = "@every 1m"
	defaultMinIdle   = 2 * time.Minute
)

// ParticipantSweeper is the slice of the participant service the sweep needs.
type ParticipantSweeper interface {
	DeactivateExcept(ctx context.Context, liveRetroIDs []string, idleSince time.Time) (int64, error)
}

// LiveSessions reports the session IDs that currently hold at least one
// websocket connection.
type LiveSessions interface {
	ActiveSessions() []string
}

// Sweeper periodically reconciles participant presence rows against the set
// of live sessions. Deactivation writes at disconnect time are best-effort;
// the sweep repairs the rows those writes missed.
type Sweeper struct {
	participants ParticipantSweeper
	live         LiveSessions
	cron         *cron.Cron
	now          func() time.Time
	log          *zap.Logger

	schedule string
	minIdle  time.Duration
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for the idle cutoff.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the presence sweep.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithMinIdle adjusts how long a participant row must sit untouched before
// the sweep will deactivate it.
func WithMinIdle(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.minIdle = d
		}
	}
}

// NewSweeper constructs a Sweeper with sensible defaults.
func NewSweeper(participants ParticipantSweeper, live LiveSessions, opts ...Option) *Sweeper {
	sweeper := &Sweeper{
		participants: participants,
		live:         live,
		now:          time.Now,
		schedule:     defaultSweepSpec,
		minIdle:      defaultMinIdle,
		log:          logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(sweeper)
	}

	if sweeper.cron == nil {
		sweeper.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return sweeper
}

// Start registers the sweep with the cron scheduler and launches it.
func (s *Sweeper) Start() error {
	if s.participants == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.log.Warn("presence sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running sweep to complete.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes a single reconciliation pass. Used by the scheduler and
// directly in tests and during graceful shutdown.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.participants == nil {
		return nil
	}

	var liveIDs []string
	if s.live != nil {
		liveIDs = s.live.ActiveSessions()
	}

	var errs error
	swept, err := s.participants.DeactivateExcept(ctx, liveIDs, s.now().Add(-s.minIdle))
	if err != nil {
		errs = multierr.Append(errs, err)
	} else if swept > 0 {
		s.log.Info("presence sweep reconciled participants",
			zap.Int64("deactivated", swept),
			zap.Int("live_sessions", len(liveIDs)))
	}

	return errs
}
