// Package ws streams order events to the admin dashboard over
// gorilla/websocket.
//
//	hub := ws.NewHub(config.CORSOrigins())
//	go hub.Run(ctx)
//	hub.Publish(eventJSON)
//
// The feed is one-way. Whatever a client sends is read and thrown away so
// that pings and close frames keep being processed.
package ws

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shashiranjanraj/foodie/pkg/logger"
)

const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	pingEvery    = idleTimeout * 9 / 10
	readLimit    = 4 << 10
	backlog      = 64
)

// ErrHubClosed is returned by Upgrade once Run has returned.
var ErrHubClosed = errors.New("ws: hub closed")

// Hub keeps the connected clients. A client that falls backlog messages
// behind is disconnected instead of slowing the rest.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*conn]struct{}
	closed  bool
}

// NewHub accepts browsers whose Origin is in origins ("*" allows any).
// Requests without an Origin header, such as CLI tools, are always allowed.
func NewHub(origins []string) *Hub {
	h := &Hub{clients: make(map[*conn]struct{})}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || slices.Contains(origins, "*") || slices.Contains(origins, o)
		},
	}
	return h
}

// Run blocks until ctx is done and then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()
}

// Publish hands msg to every client without blocking and reports whether
// the hub is still open.
func (h *Hub) Publish(msg []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	for c := range h.clients {
		select {
		case c.out <- msg:
		default:
			logger.Warn("ws: dropping slow client", "remote", c.ws.RemoteAddr().String())
			h.removeLocked(c)
		}
	}
	return true
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Upgrade switches the request to a websocket and joins it to the hub.
// On error the response has already been written.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) error {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithCtx(r.Context()).Warn("ws: upgrade refused", "error", err)
		return err
	}
	c := &conn{ws: sock, out: make(chan []byte, backlog)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		sock.Close()
		return ErrHubClosed
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	logger.Info("ws: client joined", "clients", n)

	go c.write()
	go h.read(c)
	return nil
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

// removeLocked closes c's outbox once; its writer then says goodbye.
func (h *Hub) removeLocked(c *conn) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.out)
}

type conn struct {
	ws  *websocket.Conn
	out chan []byte
}

func (h *Hub) read(c *conn) {
	defer func() {
		h.remove(c)
		c.ws.Close()
	}()
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(idleTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(idleTimeout))
	})
	for {
		if _, _, err := c.ws.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws: client gone", "error", err)
			}
			return
		}
	}
}

func (c *conn) write() {
	ping := time.NewTicker(pingEvery)
	defer func() {
		ping.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case msg, open := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !open {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
