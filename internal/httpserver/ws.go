package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/channel"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/events"
	"github.com/HefnerHoldings/AIChatBrowser-v3-sub004/internal/service"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxFrameSize = 1 << 20
	sendBuffer   = 256
)

// wsHandler serves /ws. Every connection receives the review namespace and
// session announcements, plus the events of the session rooms it joined.
type wsHandler struct {
	svc     Service
	rooms   Rooms
	metrics Metrics
	logger  *zap.Logger

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[*wsConn]struct{}

	unsubscribe func()
}

func newWSHandler(svc Service, rooms Rooms, metrics Metrics, allowedOrigins []string, logger *zap.Logger) *wsHandler {
	h := &wsHandler{
		svc:     svc,
		rooms:   rooms,
		metrics: metrics,
		logger:  logger,
		conns:   make(map[*wsConn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
	h.unsubscribe = rooms.SubscribeAll(h.deliver)
	return h
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if len(allowed) == 0 {
			return u.Host == r.Host
		}
		return slices.Contains(allowed, u.Host)
	}
}

func (h *wsHandler) serveWS(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		writeValidationError(w, errors.New("user query parameter is required"))
		return
	}
	var after int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			writeValidationError(w, errors.New("after must be a non-negative integer"))
			return
		}
		after = v
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("user", user), zap.Error(err))
		return
	}

	ctx := r.Context()
	c := &wsConn{
		user:   user,
		conn:   conn,
		send:   make(chan channel.Frame, sendBuffer),
		rooms:  make(map[string]int64),
		done:   make(chan struct{}),
		logger: h.logger.With(zap.String("user", user)),
	}

	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()

	go c.writePump()

	if err := h.register(ctx, c, after); err != nil {
		c.logger.Error("websocket history replay failed", zap.Error(err))
		h.unregister(c)
		c.shutdown()
		<-c.done
		return
	}
	c.logger.Info("websocket connected", zap.Int64("after", after))

	h.readPump(ctx, c)

	h.unregister(c)
	for _, room := range c.shutdown() {
		_ = h.rooms.LeaveRoom(context.Background(), room, user)
	}
	<-c.done
	c.logger.Info("websocket disconnected")
}

// register adds c and replays the announcements it missed since after.
// Holding c.mu keeps live events queued behind the replay.
func (h *wsHandler) register(ctx context.Context, c *wsConn, after int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	c.lobbyFloor = after
	for {
		page, err := h.svc.EventsSince(ctx, c.lobbyFloor, service.MaxPageSize)
		if err != nil {
			return err
		}
		for _, env := range page {
			if announced(env) {
				c.replayLocked(channel.Frame{Type: channel.FrameEvent, Envelope: &env})
			}
			c.lobbyFloor = env.Seq
		}
		if len(page) < service.MaxPageSize {
			return nil
		}
	}
}

func (h *wsHandler) unregister(c *wsConn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// deliver runs on the hub for every applied event.
func (h *wsHandler) deliver(env events.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		c.offer(env)
	}
}

// close drops every connection.
func (h *wsHandler) close() {
	h.unsubscribe()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		_ = c.conn.Close()
	}
}

func (h *wsHandler) readPump(ctx context.Context, c *wsConn) {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var f channel.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.sendError("INVALID_FRAME", err.Error(), nil)
			continue
		}
		h.handleFrame(ctx, c, f)
	}
}

func (h *wsHandler) handleFrame(ctx context.Context, c *wsConn, f channel.Frame) {
	switch f.Type {
	case channel.FrameJoin:
		if f.Room == "" {
			c.sendError("INVALID_FRAME", "join needs a room", nil)
			return
		}
		if f.Room == events.ReviewsRoom {
			return
		}
		if err := h.rooms.JoinRoom(ctx, f.Room, c.user); err != nil {
			c.sendError("INTERNAL", err.Error(), nil)
			return
		}
		if err := h.join(ctx, c, f.Room); err != nil {
			c.logger.Error("room history replay failed", zap.String("room", f.Room), zap.Error(err))
			c.sendError("INTERNAL", "room history unavailable", nil)
		}

	case channel.FrameLeave:
		c.leave(f.Room)
		if err := h.rooms.LeaveRoom(ctx, f.Room, c.user); err != nil {
			c.sendError("INTERNAL", err.Error(), nil)
		}

	case channel.FrameEvent:
		if f.Envelope == nil {
			c.sendError("INVALID_FRAME", "event frame without envelope", nil)
			return
		}
		env := *f.Envelope
		if env.Sender == "" {
			env.Sender = c.user
		}
		if env.Sender != c.user {
			c.sendError("FORBIDDEN", "sender does not match the connected user", &env)
			return
		}
		if _, err := h.svc.Publish(ctx, env); err != nil {
			status, code := mapServiceError(err)
			if status >= http.StatusInternalServerError {
				c.logger.Error("publish failed", zap.String("event_id", env.ID), zap.Error(err))
			}
			c.sendError(code, err.Error(), &env)
		}

	default:
		c.sendError("INVALID_FRAME", "unknown frame type "+string(f.Type), nil)
	}
}

// join replays the logged events of room to c. Session announcements were
// already delivered with the lobby and are skipped.
func (h *wsHandler) join(ctx context.Context, c *wsConn, room string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.rooms[room]; ok {
		return nil
	}
	c.rooms[room] = 0

	for {
		page, err := h.svc.RoomEvents(ctx, room, c.rooms[room], service.MaxPageSize)
		if err != nil {
			return err
		}
		for _, env := range page {
			if !announced(env) {
				c.replayLocked(channel.Frame{Type: channel.FrameEvent, Envelope: &env})
			}
			c.rooms[room] = env.Seq
		}
		if len(page) < service.MaxPageSize {
			return nil
		}
	}
}

// announced events go to every connection.
func announced(env events.Envelope) bool {
	return env.Namespace == events.NamespaceReviews || env.Event == events.SessionCreated
}

type wsConn struct {
	user   string
	conn   *websocket.Conn
	logger *zap.Logger
	done   chan struct{}

	mu         sync.Mutex
	send       chan channel.Frame
	closed     bool
	lobbyFloor int64
	// rooms maps each joined room to the last seq replayed into it.
	rooms map[string]int64
}

// offer queues env when c should see it. Logged events at or below the
// replay floor were already sent.
func (c *wsConn) offer(env events.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	floor, joined := c.rooms[env.Room]
	switch {
	case announced(env):
		floor = c.lobbyFloor
	case !joined:
		return
	}
	if env.Seq > 0 && env.Seq <= floor {
		return
	}
	c.enqueueLocked(channel.Frame{Type: channel.FrameEvent, Envelope: &env})
}

func (c *wsConn) leave(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

func (c *wsConn) sendError(code, message string, env *events.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueueLocked(channel.Frame{Type: channel.FrameError, Code: code, Message: message, Envelope: env})
}

// enqueueLocked drops the connection when its buffer is full.
func (c *wsConn) enqueueLocked(f channel.Frame) {
	if c.closed {
		return
	}
	select {
	case c.send <- f:
	default:
		c.logger.Warn("websocket send buffer full, disconnecting")
		c.closed = true
		close(c.send)
	}
}

// replayLocked waits for buffer space instead of dropping the connection.
func (c *wsConn) replayLocked(f channel.Frame) {
	if c.closed {
		return
	}
	select {
	case c.send <- f:
	case <-c.done:
	}
}

// shutdown stops the writer and returns the rooms c was in.
func (c *wsConn) shutdown() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return rooms
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case f, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(f); err != nil {
				c.logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
