package service

//go:generate mockgen -source=service.go -destination=../mocks/service.go -package=mocks .

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/projection"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/repository"
)

// SystemSender is the sender of events the service publishes itself, such as
// expiry sweeps. It passes every authorization check.
const SystemSender = "system"

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000

	restorePageSize = 500

	// maxAppendAttempts bounds how often a publish catches up and retries
	// when other instances keep appending first.
	maxAppendAttempts = 3
	broadcastTimeout  = 5 * time.Second
)

var (
	ErrReviewNotFound  = errors.New("review not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrForbidden       = errors.New("sender is not allowed to publish this event")
	ErrRejected        = errors.New("event rejected")
	ErrInvalidEvent    = errors.New("invalid event")
	ErrDuplicateEvent  = errors.New("event already published")
	ErrBusy            = errors.New("event log kept advancing, retry later")
)

// EventStore is the durable, ordered event log shared by every instance.
type EventStore interface {
	// AppendEvents stores envs only while the log head is still afterSeq and
	// fails with repository.ErrLogAdvanced otherwise.
	AppendEvents(ctx context.Context, afterSeq int64, envs []events.Envelope) ([]int64, error)
	ListEvents(ctx context.Context, afterSeq int64, limit int) ([]events.Envelope, error)
	ListRoomEvents(ctx context.Context, room string, afterSeq int64, limit int) ([]events.Envelope, error)
}

// Broadcaster delivers applied events to connected clients.
type Broadcaster interface {
	Publish(ctx context.Context, env events.Envelope) error
}

// Relay forwards applied events to the other service instances.
type Relay interface {
	Publish(ctx context.Context, env events.Envelope) error
}

type Recorder interface {
	EventApplied(name events.Name)
	EventDropped(name events.Name, err error)
}

type ReviewFilter struct {
	Status   domain.ReviewStatus
	Reviewer string
}

// Service is the authority over collaboration state. Every event is checked
// against the current projection before it is stored and broadcast.
type Service struct {
	store    EventStore
	hub      Broadcaster
	relay    Relay
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time

	// writeMu serializes publishing and catching up on this instance. Across
	// instances the log head check in AppendEvents keeps log order the apply
	// order.
	writeMu sync.Mutex

	mu      sync.RWMutex
	state   projection.State
	lastSeq int64
}

func New(store EventStore, hub Broadcaster, recorder Recorder, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		hub:      hub,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// WithRelay makes the service forward every applied event to relay.
func (s *Service) WithRelay(relay Relay) *Service {
	s.relay = relay
	return s
}

// Restore rebuilds the projection from the event log. Logged events the
// reducer refuses are skipped.
func (s *Service) Restore(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var (
		state    projection.State
		after    int64
		total    int
		rejected int
	)
	for {
		page, err := s.store.ListEvents(ctx, after, restorePageSize)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		if len(page) == 0 {
			break
		}

		next, skipped, err := projection.Fold(state, page)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		for _, err := range skipped {
			s.logger.Warn("skipping logged event", zap.Error(err))
		}
		state = next
		after = page[len(page)-1].Seq
		total += len(page)
		rejected += len(skipped)

		if len(page) < restorePageSize {
			break
		}
	}

	s.mu.Lock()
	s.state = state
	s.lastSeq = after
	s.mu.Unlock()

	s.logger.Info("projection restored",
		zap.Int("events", total),
		zap.Int("rejected", rejected),
		zap.Int64("last_seq", after),
		zap.Int("reviews", len(state.Reviews)),
		zap.Int("sessions", len(state.Sessions)),
	)
	return nil
}

// Publish validates env, authorizes its sender, applies it and, unless it is
// ephemeral, appends it to the log. The stored envelope, carrying its seq, is
// broadcast and returned.
func (s *Service) Publish(ctx context.Context, env events.Envelope) (events.Envelope, error) {
	out, err := s.PublishAll(ctx, []events.Envelope{env})
	if err != nil {
		return events.Envelope{}, err
	}
	return out[0], nil
}

type pending struct {
	env   events.Envelope
	event events.Event
}

// PublishAll publishes envs as one unit. Either every event is applied and
// the logged ones are appended in one transaction, or nothing changes.
//
// Before a durable publish the service catches up with the log, so the
// sender is checked against every event other instances stored first. When
// another instance appends in between, the publish catches up and is decided
// again.
func (s *Service) PublishAll(ctx context.Context, envs []events.Envelope) ([]events.Envelope, error) {
	if len(envs) == 0 {
		return nil, nil
	}

	batch := make([]pending, 0, len(envs))
	durable := false
	for _, env := range envs {
		env, e, err := s.normalize(env)
		if err != nil {
			s.recorder.EventDropped(env.Event, err)
			return nil, err
		}
		durable = durable || !env.Event.Ephemeral()
		batch = append(batch, pending{env: env, event: e})
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for attempt := 1; ; attempt++ {
		if durable {
			if _, err := s.catchUpLocked(ctx); err != nil {
				return nil, err
			}
		}

		out, next, err := s.reduce(s.Snapshot(), batch)
		if err != nil {
			return nil, err
		}

		head, err := s.appendLogged(ctx, out)
		if errors.Is(err, repository.ErrLogAdvanced) {
			if attempt < maxAppendAttempts {
				s.logger.Debug("event log advanced, catching up", zap.Int("attempt", attempt))
				continue
			}
			return nil, fmt.Errorf("%w: %w", ErrBusy, err)
		}
		if err != nil {
			return nil, err
		}

		s.commit(next, head)
		for _, env := range out {
			s.recorder.EventApplied(env.Event)
			s.fanOut(ctx, env, true)
		}
		return out, nil
	}
}

// reduce authorizes and applies batch against state, in order.
func (s *Service) reduce(state projection.State, batch []pending) ([]events.Envelope, projection.State, error) {
	out := make([]events.Envelope, 0, len(batch))
	for _, p := range batch {
		if err := authorize(state, p.env.Sender, p.event); err != nil {
			s.recorder.EventDropped(p.env.Event, err)
			return nil, state, err
		}
		next, err := projection.Apply(state, projection.MetaOf(p.env), p.event)
		if err != nil {
			s.recorder.EventDropped(p.env.Event, err)
			return nil, state, fmt.Errorf("%w: %w", ErrRejected, err)
		}
		state = next
		out = append(out, p.env)
	}
	return out, state, nil
}

// appendLogged stores the logged events of out on top of the applied head, sets
// their seqs and returns the new head.
func (s *Service) appendLogged(ctx context.Context, out []events.Envelope) (int64, error) {
	head := s.LastSeq()

	idx := make([]int, 0, len(out))
	durable := make([]events.Envelope, 0, len(out))
	for i, env := range out {
		if !env.Event.Ephemeral() {
			idx = append(idx, i)
			durable = append(durable, env)
		}
	}
	if len(durable) == 0 {
		return head, nil
	}

	seqs, err := s.store.AppendEvents(ctx, head, durable)
	if err != nil {
		if errors.Is(err, repository.ErrEventExists) {
			return 0, fmt.Errorf("%w: %w", ErrDuplicateEvent, err)
		}
		return 0, err
	}
	for i, seq := range seqs {
		out[idx[i]].Seq = seq
	}
	return seqs[len(seqs)-1], nil
}

// ApplyRemote handles an event relayed by another instance. Ephemeral events
// are applied as they arrive. A logged event only tells this instance the
// log moved: it catches up from the log, so events are applied in seq order
// whatever order the relay delivers them in, and missed messages are
// recovered with the next one.
func (s *Service) ApplyRemote(ctx context.Context, env events.Envelope) error {
	if !env.Event.Ephemeral() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		if env.Seq > 0 && env.Seq <= s.LastSeq() {
			return nil
		}
		_, err := s.catchUpLocked(ctx)
		return err
	}

	e, err := events.Decode(env)
	if err != nil {
		s.recorder.EventDropped(env.Event, err)
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, err := projection.Apply(s.Snapshot(), projection.MetaOf(env), e)
	if err != nil {
		s.recorder.EventDropped(env.Event, err)
		return fmt.Errorf("%w: %w", ErrRejected, err)
	}

	s.commit(next, 0)
	s.recorder.EventApplied(env.Event)
	s.fanOut(ctx, env, false)
	return nil
}

// Sync applies the events other instances appended since this instance last
// read the log and returns how many it applied.
func (s *Service) Sync(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.catchUpLocked(ctx)
}

// catchUpLocked applies logged events past the applied head, in seq order,
// and hands them to local clients. Events the reducer refuses are skipped the
// way Restore skips them. The caller holds writeMu.
func (s *Service) catchUpLocked(ctx context.Context) (int, error) {
	var applied int
	for {
		page, err := s.store.ListEvents(ctx, s.LastSeq(), restorePageSize)
		if err != nil {
			return applied, fmt.Errorf("catch up: %w", err)
		}
		if len(page) == 0 {
			return applied, nil
		}

		state := s.Snapshot()
		accepted := make([]events.Envelope, 0, len(page))
		for _, env := range page {
			next, err := applyLogged(state, env)
			if err != nil {
				s.logger.Warn("skipping logged event",
					zap.Int64("seq", env.Seq),
					zap.String("event", string(env.Event)),
					zap.Error(err),
				)
				continue
			}
			state = next
			accepted = append(accepted, env)
		}

		s.commit(state, page[len(page)-1].Seq)
		for _, env := range accepted {
			s.recorder.EventApplied(env.Event)
			s.fanOut(ctx, env, false)
		}
		applied += len(accepted)

		if len(page) < restorePageSize {
			return applied, nil
		}
	}
}

func applyLogged(state projection.State, env events.Envelope) (projection.State, error) {
	e, err := events.Decode(env)
	if err != nil {
		return state, err
	}
	return projection.Apply(state, projection.MetaOf(env), e)
}

func (s *Service) Snapshot() projection.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) LastSeq() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

func (s *Service) ListReviews(f ReviewFilter) []domain.Review {
	state := s.Snapshot()
	if f.Reviewer == "" {
		return state.ReviewsByStatus(f.Status)
	}

	out := make([]domain.Review, 0)
	for _, r := range state.ReviewsForReviewer(f.Reviewer) {
		if f.Status == "" || r.Status == f.Status {
			out = append(out, r)
		}
	}
	return out
}

func (s *Service) GetReview(id string) (domain.Review, error) {
	r, ok := s.Snapshot().Review(id)
	if !ok {
		return domain.Review{}, ErrReviewNotFound
	}
	return r, nil
}

func (s *Service) ListSessions(activeOnly bool) []domain.Session {
	state := s.Snapshot()
	if activeOnly {
		return state.ActiveSessions()
	}
	out := make([]domain.Session, len(state.Sessions))
	copy(out, state.Sessions)
	return out
}

func (s *Service) GetSession(id string) (domain.Session, error) {
	ss, ok := s.Snapshot().Session(id)
	if !ok {
		return domain.Session{}, ErrSessionNotFound
	}
	return ss, nil
}

func (s *Service) TypingUsers(sessionID string) []string {
	return s.Snapshot().TypingUsers(sessionID)
}

// EventsSince pages through the log after seq.
func (s *Service) EventsSince(ctx context.Context, after int64, limit int) ([]events.Envelope, error) {
	return s.store.ListEvents(ctx, after, pageSize(limit))
}

// RoomEvents pages through the logged events of one room.
func (s *Service) RoomEvents(ctx context.Context, room string, after int64, limit int) ([]events.Envelope, error) {
	return s.store.ListRoomEvents(ctx, room, after, pageSize(limit))
}

// normalize fills in what a publisher may leave out and decodes the payload.
func (s *Service) normalize(env events.Envelope) (events.Envelope, events.Event, error) {
	if env.ID == "" {
		env.ID = uuid.NewString()
	} else if _, err := uuid.Parse(env.ID); err != nil {
		return env, nil, fmt.Errorf("%w: id %q is not a uuid", ErrInvalidEvent, env.ID)
	}
	if env.Sender == "" {
		return env, nil, fmt.Errorf("%w: sender is required", ErrInvalidEvent)
	}
	if env.At.IsZero() {
		env.At = s.now()
	}
	env.At = env.At.UTC()
	env.Seq = 0

	e, err := events.Decode(env)
	if err != nil {
		return env, nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	env.Namespace, env.Room = events.Route(e)
	return env, e, nil
}

func (s *Service) commit(state projection.State, seq int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if seq > s.lastSeq {
		s.lastSeq = seq
	}
}

// fanOut hands an applied event to local clients and, for local events, to
// the other instances. The event is already applied, so failures are logged.
// A lost relay message is recovered by the other instances' next catch up.
func (s *Service) fanOut(ctx context.Context, env events.Envelope, relay bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), broadcastTimeout)
	defer cancel()

	if err := s.hub.Publish(ctx, env); err != nil {
		s.logger.Warn("broadcast failed",
			zap.String("event_id", env.ID),
			zap.String("event", string(env.Event)),
			zap.Error(err),
		)
	}
	if !relay || s.relay == nil {
		return
	}
	if err := s.relay.Publish(ctx, env); err != nil {
		s.logger.Warn("relay publish failed",
			zap.String("event_id", env.ID),
			zap.String("event", string(env.Event)),
			zap.Error(err),
		)
	}
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}
