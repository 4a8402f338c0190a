// Package sweeper expires pending invitations and sessions past their expiry
// by publishing the matching events on a schedule.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/projection"
)

const jobTag = "expiry-sweep"

// Publisher applies and stores a batch of events as one unit.
type Publisher interface {
	Snapshot() projection.State
	PublishAll(ctx context.Context, envs []events.Envelope) ([]events.Envelope, error)
}

type Sweeper struct {
	pub       Publisher
	sender    string
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
	scheduler *gocron.Scheduler
}

// New returns a sweeper that publishes as sender every interval.
func New(pub Publisher, sender string, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		pub:      pub,
		sender:   sender,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules the sweep. The first run happens right away; runs never
// overlap. ctx bounds every run.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", s.interval)
	}

	s.scheduler = gocron.NewScheduler(time.UTC)
	s.scheduler.SingletonModeAll()

	_, err := s.scheduler.Every(s.interval).Tag(jobTag).Do(func() {
		n, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Warn("expiry sweep incomplete", zap.Int("published", n), zap.Error(err))
			return
		}
		if n > 0 {
			s.logger.Info("expiry sweep", zap.Int("published", n))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule expiry sweep: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info("expiry sweeper started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// Sweep publishes one pass of expiry events and returns how many were
// accepted. Each session's expiries go out as one batch, invitations before
// the session end, so a session never ends with invitations left pending.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()

	var (
		published int
		errs      error
	)
	for _, ss := range s.pub.Snapshot().Sessions {
		if ss.Status == domain.SessionStatusEnded {
			continue
		}

		due := make([]events.Event, 0)
		for _, inv := range ss.Invitations {
			if inv.IsExpired(now) {
				due = append(due, events.InvitationRespondedEvent{
					SessionID:    ss.ID,
					InvitationID: inv.ID,
					Status:       domain.InvitationExpired,
				})
			}
		}
		if ss.IsExpired(now) {
			due = append(due, events.SessionStatusChangedEvent{
				SessionID: ss.ID,
				Status:    domain.SessionStatusEnded,
			})
		}
		if len(due) == 0 {
			continue
		}

		if err := s.publish(ctx, now, ss.ID, due); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		published += len(due)
	}
	return published, errs
}

func (s *Sweeper) publish(ctx context.Context, now time.Time, sessionID string, due []events.Event) error {
	envs := make([]events.Envelope, 0, len(due))
	for _, e := range due {
		env, err := events.Wrap(s.sender, now, e)
		if err != nil {
			return err
		}
		envs = append(envs, env)
	}
	if _, err := s.pub.PublishAll(ctx, envs); err != nil {
		return fmt.Errorf("expire session %s: %w", sessionID, err)
	}
	return nil
}
