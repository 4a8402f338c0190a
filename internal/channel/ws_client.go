package channel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
)

const writeWait = 10 * time.Second

var _ Channel = (*WSClient)(nil)

// WSClient is a Channel backed by a server's /ws endpoint. Received
// envelopes are delivered through an embedded Hub, so subscriptions and
// ordering behave as they do in process.
type WSClient struct {
	*Hub

	conn   *websocket.Conn
	user   string
	logger *zap.Logger

	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

// Dial connects to the websocket endpoint at rawURL as user.
func Dial(ctx context.Context, rawURL, user string, buffer int, logger *zap.Logger) (*WSClient, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket url: %w", err)
	}
	q := u.Query()
	q.Set("user", user)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}

	return &WSClient{
		Hub:    NewHub(buffer),
		conn:   conn,
		user:   user,
		logger: logger,
		closed: make(chan struct{}),
	}, nil
}

// Run delivers received envelopes until the connection drops or ctx ends.
func (c *WSClient) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.Hub.Start(ctx)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.closed:
		}
	}()

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil || errors.Is(err, websocket.ErrCloseSent) ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		switch f.Type {
		case FrameEvent:
			if f.Envelope == nil {
				continue
			}
			// Reading stalls while local handlers catch up, so the server
			// sees backpressure instead of events getting lost here.
			if err := c.Hub.Publish(ctx, *f.Envelope); err != nil {
				return nil
			}
		case FrameError:
			c.logger.Warn("server rejected event",
				zap.String("code", f.Code),
				zap.String("message", f.Message),
			)
		default:
			c.logger.Debug("ignoring frame", zap.String("type", string(f.Type)))
		}
	}
}

func (c *WSClient) Send(_ context.Context, env events.Envelope) error {
	return c.write(Frame{Type: FrameEvent, Envelope: &env})
}

func (c *WSClient) JoinRoom(ctx context.Context, room, user string) error {
	if err := c.write(Frame{Type: FrameJoin, Room: room}); err != nil {
		return err
	}
	return c.Hub.JoinRoom(ctx, room, user)
}

func (c *WSClient) LeaveRoom(ctx context.Context, room, user string) error {
	if err := c.write(Frame{Type: FrameLeave, Room: room}); err != nil {
		return err
	}
	return c.Hub.LeaveRoom(ctx, room, user)
}

func (c *WSClient) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *WSClient) write(f Frame) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := c.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("write %s frame: %w", f.Type, err)
	}
	return nil
}
