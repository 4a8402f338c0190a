package collab

import (
	"context"
	"time"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

// typingTimer is the pending typing-stop of one session. gen tells a timer
// that fired late apart from the one that replaced it.
type typingTimer struct {
	timer *time.Timer
	gen   uint64
}

// KeyPress marks the local user as typing in the session. The first key
// sends typing-start; typing-stop follows once no key arrived for the typing
// timeout.
func (c *Controller) KeyPress(ctx context.Context, sessionID string) error {
	c.typingMu.Lock()
	t, active := c.typing[sessionID]
	if active {
		t.timer.Stop()
	}
	c.typingGen++
	gen := c.typingGen
	c.typing[sessionID] = typingTimer{
		timer: time.AfterFunc(c.typingTimeout, func() { c.typingExpired(sessionID, gen) }),
		gen:   gen,
	}
	c.typingMu.Unlock()

	if active {
		return nil
	}
	return c.send(ctx, events.TypingStartEvent{TypingEvent: c.typingEvent(sessionID)})
}

// StopTyping sends typing-stop right away if a typing-start is outstanding.
func (c *Controller) StopTyping(ctx context.Context, sessionID string) error {
	if !c.cancelTyping(sessionID, 0) {
		return nil
	}
	return c.sendTypingStop(ctx, sessionID)
}

// typingExpired runs when the timer of generation gen fires. A key pressed
// since then has replaced the timer and the call does nothing.
func (c *Controller) typingExpired(sessionID string, gen uint64) {
	if !c.cancelTyping(sessionID, gen) {
		return
	}
	_ = c.sendTypingStop(context.Background(), sessionID)
}

// cancelTyping drops the session's timer. A non-zero gen only matches the
// timer of that generation.
func (c *Controller) cancelTyping(sessionID string, gen uint64) bool {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()

	t, ok := c.typing[sessionID]
	if !ok || (gen != 0 && t.gen != gen) {
		return false
	}
	t.timer.Stop()
	delete(c.typing, sessionID)
	return true
}

func (c *Controller) sendTypingStop(ctx context.Context, sessionID string) error {
	return c.send(ctx, events.TypingStopEvent{TypingEvent: c.typingEvent(sessionID)})
}

func (c *Controller) typingEvent(sessionID string) events.TypingEvent {
	return events.TypingEvent{SessionID: sessionID, UserID: c.user.ID}
}
