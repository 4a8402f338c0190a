// Package channel carries event envelopes between collaborators. Hub is the
// in-process bus, WSClient talks to a remote hub over a websocket and
// RedisRelay fans accepted events out to other server instances.
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

var (
	ErrBufferFull = errors.New("channel buffer is full")
	ErrClosed     = errors.New("channel is closed")
)

// Handler receives envelopes. Handlers registered on one Hub never run
// concurrently with each other.
type Handler func(env events.Envelope)

type Presence struct {
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Channel interface {
	Subscribe(name events.Name, h Handler) (unsubscribe func())
	SubscribeAll(h Handler) (unsubscribe func())
	Send(ctx context.Context, env events.Envelope) error
	JoinRoom(ctx context.Context, room, user string) error
	LeaveRoom(ctx context.Context, room, user string) error
	Presence(room string) map[string]Presence
}

type FrameType string

const (
	FrameEvent FrameType = "event"
	FrameJoin  FrameType = "join"
	FrameLeave FrameType = "leave"
	FrameError FrameType = "error"
)

// Frame is one websocket message in either direction.
type Frame struct {
	Type     FrameType        `json:"type"`
	Room     string           `json:"room,omitempty"`
	Envelope *events.Envelope `json:"envelope,omitempty"`
	Code     string           `json:"code,omitempty"`
	Message  string           `json:"message,omitempty"`
}
