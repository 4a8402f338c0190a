package httpserver

import (
	"context"
	"net/http"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/channel"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/domain"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/service"
)

type Service interface {
	Publish(ctx context.Context, env events.Envelope) (events.Envelope, error)
	ListReviews(f service.ReviewFilter) []domain.Review
	GetReview(id string) (domain.Review, error)
	ListSessions(activeOnly bool) []domain.Session
	GetSession(id string) (domain.Session, error)
	TypingUsers(sessionID string) []string
	EventsSince(ctx context.Context, after int64, limit int) ([]events.Envelope, error)
	RoomEvents(ctx context.Context, room string, after int64, limit int) ([]events.Envelope, error)
}

// Rooms is the server side of the channel: applied events arrive through
// SubscribeAll and presence is tracked per room.
type Rooms interface {
	SubscribeAll(h channel.Handler) func()
	JoinRoom(ctx context.Context, room, user string) error
	LeaveRoom(ctx context.Context, room, user string) error
	Presence(room string) map[string]channel.Presence
}

type Metrics interface {
	Handler() http.Handler
	ConnectionOpened()
	ConnectionClosed()
}
