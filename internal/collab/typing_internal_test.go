package collab

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/channel"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

type quietNotifier struct{}

func (quietNotifier) Notify(Level, string) {}

type quietDrops struct{}

func (quietDrops) EventApplied(events.Name)        {}
func (quietDrops) EventDropped(events.Name, error) {}

type sentNames struct {
	mu    sync.Mutex
	names []events.Name
}

func (s *sentNames) handle(env events.Envelope) {
	s.mu.Lock()
	s.names = append(s.names, env.Event)
	s.mu.Unlock()
}

func (s *sentNames) get() []events.Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Name(nil), s.names...)
}

func (c *Controller) typingGenOf(sessionID string) (uint64, bool) {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()
	t, ok := c.typing[sessionID]
	return t.gen, ok
}

func TestTypingExpired_LateTimerKeepsNewerOne(t *testing.T) {
	hub := channel.NewHub(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Start(ctx)

	sent := &sentNames{}
	hub.SubscribeAll(sent.handle)

	c := New(hub, domain.DefaultTemplates(), quietNotifier{}, quietDrops{}, zap.NewNop(), Config{
		User:          domain.UserRef{ID: "u-alice", Username: "alice"},
		TypingTimeout: time.Hour,
	})
	defer c.Close()

	require.NoError(t, c.KeyPress(ctx, "s1"))
	first, ok := c.typingGenOf("s1")
	require.True(t, ok)
	require.NoError(t, c.KeyPress(ctx, "s1"))

	// the first timer fired just as the second key arrived
	c.typingExpired("s1", first)
	current, ok := c.typingGenOf("s1")
	require.True(t, ok, "the newer timer is still pending")
	assert.Greater(t, current, first)

	c.typingExpired("s1", current)
	_, ok = c.typingGenOf("s1")
	assert.False(t, ok)

	require.Eventually(t, func() bool { return len(sent.get()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []events.Name{events.TypingStart, events.TypingStop}, sent.get())
}
