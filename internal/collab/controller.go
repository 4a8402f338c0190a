// Package collab is the client side of collaboration: local actions are sent
// on the channel and only take effect when the echo comes back through the
// subscription handler, which is the single writer of local state.
package collab

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/channel"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/projection"
)

const (
	DefaultTypingTimeout = 2 * time.Second
	DefaultInvitationTTL = 7 * 24 * time.Hour
)

var (
	ErrNotHost          = errors.New("only the session host can do this")
	ErrMergeNotAllowed  = errors.New("review must be approved before it can be merged")
	ErrReviewNotFound   = errors.New("review not found")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionExpired   = errors.New("session has expired")
	ErrNotParticipant   = errors.New("not a participant of this session")
	ErrNothingRecording = errors.New("no recording in progress")
)

type Config struct {
	User          domain.UserRef
	TypingTimeout time.Duration
	InvitationTTL time.Duration
}

// Store holds the projected state. Only the subscription handler writes it.
type Store struct {
	mu    sync.RWMutex
	state projection.State
}

func (s *Store) Snapshot() projection.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) apply(env events.Envelope, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := projection.Apply(s.state, projection.MetaOf(env), e)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

type Controller struct {
	ch        channel.Channel
	store     *Store
	templates domain.Templates
	notifier  Notifier
	drops     DropReporter
	logger    *zap.Logger

	user          domain.UserRef
	typingTimeout time.Duration
	invitationTTL time.Duration
	now           func() time.Time

	typingMu  sync.Mutex
	typing    map[string]typingTimer
	typingGen uint64

	unsubscribe func()
}

func New(
	ch channel.Channel,
	templates domain.Templates,
	notifier Notifier,
	drops DropReporter,
	logger *zap.Logger,
	cfg Config,
) *Controller {
	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = DefaultTypingTimeout
	}
	if cfg.InvitationTTL <= 0 {
		cfg.InvitationTTL = DefaultInvitationTTL
	}

	c := &Controller{
		ch:            ch,
		store:         &Store{},
		templates:     templates,
		notifier:      notifier,
		drops:         drops,
		logger:        logger.With(zap.String("user_id", cfg.User.ID)),
		user:          cfg.User,
		typingTimeout: cfg.TypingTimeout,
		invitationTTL: cfg.InvitationTTL,
		now:           time.Now,
		typing:        make(map[string]typingTimer),
	}
	c.unsubscribe = ch.SubscribeAll(c.handle)
	return c
}

// Close stops receiving events and cancels pending typing timers.
func (c *Controller) Close() {
	c.unsubscribe()

	c.typingMu.Lock()
	for id, t := range c.typing {
		t.timer.Stop()
		delete(c.typing, id)
	}
	c.typingMu.Unlock()
}

func (c *Controller) Snapshot() projection.State {
	return c.store.Snapshot()
}

// handle applies a received envelope. Rejected events are logged and
// counted; the user is not told.
func (c *Controller) handle(env events.Envelope) {
	e, err := events.Decode(env)
	if err == nil {
		err = c.store.apply(env, e)
	}
	if err != nil {
		c.logger.Warn("dropping event",
			zap.String("event_id", env.ID),
			zap.String("event", string(env.Event)),
			zap.String("sender", env.Sender),
			zap.Error(err),
		)
		c.drops.EventDropped(env.Event, err)
		return
	}
	c.drops.EventApplied(env.Event)
}

// send wraps e and hands it to the channel. Failures are shown to the user
// and returned; they are not retried.
func (c *Controller) send(ctx context.Context, e events.Event) error {
	if err := e.Validate(); err != nil {
		return c.fail(e.Name(), err)
	}
	env, err := events.Wrap(c.user.ID, c.now(), e)
	if err == nil {
		err = c.ch.Send(ctx, env)
	}
	if err != nil {
		return c.fail(e.Name(), err)
	}
	return nil
}

func (c *Controller) fail(name events.Name, err error) error {
	c.logger.Error("local action failed", zap.String("event", string(name)), zap.Error(err))
	c.notifier.Notify(LevelError, fmt.Sprintf("%s failed: %v", name, err))
	return err
}

func (c *Controller) review(name events.Name, id string) (domain.Review, error) {
	r, ok := c.store.Snapshot().Review(id)
	if !ok {
		return domain.Review{}, c.fail(name, fmt.Errorf("%w: %s", ErrReviewNotFound, id))
	}
	return r, nil
}

func (c *Controller) session(name events.Name, id string) (domain.Session, error) {
	ss, ok := c.store.Snapshot().Session(id)
	if !ok {
		return domain.Session{}, c.fail(name, fmt.Errorf("%w: %s", ErrSessionNotFound, id))
	}
	return ss, nil
}

// hostSession returns the session when the local user hosts it.
func (c *Controller) hostSession(name events.Name, id string) (domain.Session, error) {
	ss, err := c.session(name, id)
	if err != nil {
		return domain.Session{}, err
	}
	if !ss.IsHost(c.user.ID) {
		return domain.Session{}, c.fail(name, ErrNotHost)
	}
	return ss, nil
}
