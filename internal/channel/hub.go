package channel

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

const DefaultBuffer = 256

var _ Channel = (*Hub)(nil)

// Hub is an in-process Channel. Envelopes are queued by Send or Publish and
// delivered in queue order by the goroutine running Start.
type Hub struct {
	ch    chan events.Envelope
	hooks hooks

	mu     sync.RWMutex
	nextID int
	named  map[events.Name]map[int]Handler
	all    map[int]Handler
	rooms  map[string]map[string]Presence

	now func() time.Time
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		ch:    make(chan events.Envelope, buffer),
		named: make(map[events.Name]map[int]Handler),
		all:   make(map[int]Handler),
		rooms: make(map[string]map[string]Presence),
		now:   time.Now,
	}
}

// Start delivers queued envelopes until ctx is done.
func (h *Hub) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-h.ch:
			h.dispatch(env)
		}
	}
}

// Send queues env without blocking. A full queue drops the envelope.
func (h *Hub) Send(ctx context.Context, env events.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case h.ch <- env:
		h.runOnPublish(env)
		return nil
	default:
		h.runOnDrop(env)
		return ErrBufferFull
	}
}

// Publish queues env, waiting for room while the queue is full. It fails
// only when ctx ends first, and then counts the envelope as dropped.
func (h *Hub) Publish(ctx context.Context, env events.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case h.ch <- env:
		h.runOnPublish(env)
		return nil
	case <-ctx.Done():
		h.runOnDrop(env)
		return ctx.Err()
	}
}

func (h *Hub) Subscribe(name events.Name, fn Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	if h.named[name] == nil {
		h.named[name] = make(map[int]Handler)
	}
	h.named[name][id] = fn

	return func() {
		h.mu.Lock()
		delete(h.named[name], id)
		h.mu.Unlock()
	}
}

func (h *Hub) SubscribeAll(fn Handler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.all[id] = fn

	return func() {
		h.mu.Lock()
		delete(h.all, id)
		h.mu.Unlock()
	}
}

func (h *Hub) JoinRoom(_ context.Context, room, user string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[room]
	if members == nil {
		members = make(map[string]Presence)
		h.rooms[room] = members
	}
	if _, ok := members[user]; !ok {
		members[user] = Presence{UserID: user, JoinedAt: h.now()}
	}
	return nil
}

func (h *Hub) LeaveRoom(_ context.Context, room, user string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.rooms[room], user)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
	return nil
}

// Presence returns a copy of the room's members keyed by user id.
func (h *Hub) Presence(room string) map[string]Presence {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := maps.Clone(h.rooms[room])
	if out == nil {
		out = map[string]Presence{}
	}
	return out
}

// InRoom reports whether user has joined room.
func (h *Hub) InRoom(room, user string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][user]
	return ok
}

func (h *Hub) dispatch(env events.Envelope) {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.named[env.Event])+len(h.all))
	for _, fn := range h.named[env.Event] {
		handlers = append(handlers, fn)
	}
	for _, fn := range h.all {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		h.call(fn, env)
	}
}

func (h *Hub) call(fn Handler, env events.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			h.runOnPanic(env, r)
		}
	}()
	fn(env)
}
