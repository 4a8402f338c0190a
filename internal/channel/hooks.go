package channel

import (
	"slices"
	"sync"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

type hooks struct {
	mu        sync.RWMutex
	onPublish []func(events.Envelope)
	onDrop    []func(events.Envelope)
	onPanic   []func(events.Envelope, any)
}

// OnPublish registers a hook that fires after an envelope is queued.
func (h *Hub) OnPublish(fn func(events.Envelope)) {
	h.hooks.mu.Lock()
	h.hooks.onPublish = append(h.hooks.onPublish, fn)
	h.hooks.mu.Unlock()
}

// OnDrop registers a hook that fires when the queue is full.
func (h *Hub) OnDrop(fn func(events.Envelope)) {
	h.hooks.mu.Lock()
	h.hooks.onDrop = append(h.hooks.onDrop, fn)
	h.hooks.mu.Unlock()
}

// OnPanic registers a hook that fires when a handler panics.
func (h *Hub) OnPanic(fn func(events.Envelope, any)) {
	h.hooks.mu.Lock()
	h.hooks.onPanic = append(h.hooks.onPanic, fn)
	h.hooks.mu.Unlock()
}

func (h *Hub) runOnPublish(env events.Envelope) {
	h.hooks.mu.RLock()
	fns := slices.Clone(h.hooks.onPublish)
	h.hooks.mu.RUnlock()
	for _, fn := range fns {
		fn(env)
	}
}

func (h *Hub) runOnDrop(env events.Envelope) {
	h.hooks.mu.RLock()
	fns := slices.Clone(h.hooks.onDrop)
	h.hooks.mu.RUnlock()
	for _, fn := range fns {
		fn(env)
	}
}

func (h *Hub) runOnPanic(env events.Envelope, recovered any) {
	h.hooks.mu.RLock()
	fns := slices.Clone(h.hooks.onPanic)
	h.hooks.mu.RUnlock()
	for _, fn := range fns {
		func() {
			defer func() { recover() }() //nolint:errcheck
			fn(env, recovered)
		}()
	}
}
