// Package realtime pushes events to the websocket connections of signed in users.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/user"
)

var (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = int64(8 << 10)
	sendBufferSize = 32
	handlerTimeout = 10 * time.Second

	ErrUnknownFrame = errors.New("unknown frame type")
)

type (
	// Frame is a message received from a client.
	Frame struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}

	// HandlerFunc processes an incoming frame of `usr`. A returned error is sent back as an error event.
	HandlerFunc func(ctx context.Context, usr user.User, payload json.RawMessage) error

	// ConnectFunc runs after a connection of `usr` joins its room.
	ConnectFunc func(ctx context.Context, usr user.User)

	Hub struct {
		mu        sync.RWMutex
		rooms     map[int]map[*client]struct{} // user ID -> connections
		handlers  map[string]HandlerFunc
		onConnect []ConnectFunc
		upgrader  websocket.Upgrader
		logger    core.Logger
		closed    bool
	}

	client struct {
		hub  *Hub
		usr  user.User
		conn *websocket.Conn

		mu     sync.Mutex
		send   chan core.RealtimeEvent
		closed bool
	}
)

var _ core.Publisher = (*Hub)(nil) // interface compliance check

func NewHub(conf *core.Config, logger core.Logger) (*Hub, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
	).Check(); err != nil {
		return nil, err
	}
	hub := &Hub{
		rooms:    make(map[int]map[*client]struct{}),
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
	hub.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(conf),
	}
	return hub, nil
}

// originChecker accepts any origin in debug/test, otherwise same-host requests and the frontend.
func originChecker(conf *core.Config) func(r *http.Request) bool {
	if conf.Debug || conf.TestMode {
		return func(r *http.Request) bool { return true }
	}
	var frontendHost string
	if u, err := url.Parse(conf.FrontendBaseURL); err == nil {
		frontendHost = u.Host
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host) || (frontendHost != "" && strings.EqualFold(u.Host, frontendHost))
	}
}

// HandleFunc registers the handler of incoming frames of type `typ`.
func (hub *Hub) HandleFunc(typ string, fn HandlerFunc) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.handlers[typ] = fn
}

func (hub *Hub) OnConnect(fn ConnectFunc) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.onConnect = append(hub.onConnect, fn)
}

// Room is the name of the room of `userID`.
func Room(userID int) string {
	return fmt.Sprintf("user_%d", userID)
}

// Connections returns the number of live connections of `userID`.
func (hub *Hub) Connections(userID int) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.rooms[userID])
}

// Publish queues `evt` on every connection of `userID`. Connections that cannot keep up are dropped.
func (hub *Hub) Publish(userID int, evt core.RealtimeEvent) {
	hub.mu.RLock()
	clients := make([]*client, 0, len(hub.rooms[userID]))
	for c := range hub.rooms[userID] {
		clients = append(clients, c)
	}
	hub.mu.RUnlock()

	for _, c := range clients {
		if !c.trySend(evt) {
			hub.logger.Warn(fmt.Sprintf("realtime: dropping slow connection of %s", Room(userID)))
			c.close()
		}
	}
}

// ServeWS upgrades the request of the authenticated `usr` and serves the connection until it closes.
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request, usr user.User) error {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}
	c := &client{
		hub:  hub,
		usr:  usr,
		conn: conn,
		send: make(chan core.RealtimeEvent, sendBufferSize),
	}
	if !hub.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), time.Now().Add(writeWait))
		return conn.Close()
	}

	go c.writePump()
	hub.mu.RLock()
	onConnect := hub.onConnect
	hub.mu.RUnlock()
	for _, fn := range onConnect {
		ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
		fn(ctx, usr)
		cancel()
	}
	c.readPump()
	return nil
}

// Close disconnects every client. Later connections are refused.
func (hub *Hub) Close() {
	hub.mu.Lock()
	hub.closed = true
	clients := make([]*client, 0)
	for _, room := range hub.rooms {
		for c := range room {
			clients = append(clients, c)
		}
	}
	hub.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (hub *Hub) register(c *client) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.closed {
		return false
	}
	room, ok := hub.rooms[c.usr.ID]
	if !ok {
		room = make(map[*client]struct{})
		hub.rooms[c.usr.ID] = room
	}
	room[c] = struct{}{}
	return true
}

func (hub *Hub) unregister(c *client) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if room, ok := hub.rooms[c.usr.ID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(hub.rooms, c.usr.ID)
		}
	}
}

func (hub *Hub) dispatch(c *client, frame Frame) {
	hub.mu.RLock()
	fn, ok := hub.handlers[frame.Type]
	hub.mu.RUnlock()
	if !ok {
		c.sendError(ErrUnknownFrame)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := fn(ctx, c.usr, frame.Payload); err != nil {
		if core.IsValidation(err) || core.IsNotFound(err) || core.IsPermissionDenied(err) {
			c.sendError(err)
			return
		}
		hub.logger.Error(fmt.Sprintf("realtime: handling %q: %v", frame.Type, err), err, c.usr)
		c.sendError(errors.New("internal error"))
	}
}

// trySend queues `evt` without blocking. Returns false if the buffer is full.
func (c *client) trySend(evt core.RealtimeEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	c.hub.unregister(c)
}

func (c *client) sendError(err error) {
	c.trySend(core.RealtimeEvent{Type: core.EventError, Payload: map[string]string{"error": err.Error()}})
}

// readPump reads frames until the connection fails or closes.
func (c *client) readPump() {
	defer func() {
		c.close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.hub.logger.Debug(fmt.Sprintf("realtime: %s read: %v", Room(c.usr.ID), err))
			}
			switch err.(type) {
			case *json.SyntaxError, *json.UnmarshalTypeError:
				c.sendError(errors.New("malformed frame"))
				continue
			}
			return
		}
		c.hub.dispatch(c, frame)
	}
}

// writePump writes queued events and pings until the send channel is closed.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
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
