// Package ws streams store subscriptions over websockets.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"lobbysync/internal/store"
)

const (
	sendBuffer   = 64
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	maxReadBytes = 512
)

type Client struct {
	send chan []byte
	path string

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

type Server struct {
	store    store.Store
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*Client]bool
}

func NewServer(st store.Store) *Server {
	return &Server{
		store:    st,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  map[*Client]bool{},
	}
}

// Active returns the number of open subscription streams.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// HandleSubscribe upgrades the request and streams Frames for the path query
// parameter until the peer goes away.
func (s *Server) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	metricSubscribeTotal.Add(1)
	path := r.URL.Query().Get("path")
	if _, err := store.Split(path); err != nil {
		metricSubscribeErrors.Add(1)
		writeError(w, http.StatusBadRequest, "invalid_path")
		return
	}

	c := &Client{send: make(chan []byte, sendBuffer), path: path}
	sub, err := s.store.Subscribe(r.Context(), path, func(snap store.Snapshot) { s.deliver(c, snap) })
	if err != nil {
		metricSubscribeErrors.Add(1)
		if errors.Is(err, store.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	defer sub.Unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		metricSubscribeErrors.Add(1)
		safeClose(c.send)
		return
	}
	c.attach(conn)
	s.register(c)
	log.Debug().Str("path", path).Msg("store subscriber connected")

	go s.writeLoop(c)
	s.readLoop(c)
	s.unregister(c)
	log.Debug().Str("path", path).Msg("store subscriber disconnected")
}

func (s *Server) deliver(c *Client, snap store.Snapshot) {
	msg, err := json.Marshal(Frame{Path: snap.Path, Exists: snap.Exists, Value: snap.Value})
	if err != nil {
		log.Error().Err(err).Str("path", snap.Path).Msg("encode frame")
		return
	}
	if !safeSend(c.send, msg) {
		// The reader will reconnect and resync from the first frame.
		metricSlowSubscribers.Add(1)
		log.Warn().Str("path", c.path).Msg("store subscriber too slow, closing")
		c.close()
	}
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()
	metricSubscribersLive.Add(1)
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	metricSubscribersLive.Add(-1)
	safeClose(c.send)
	c.close()
}

// readLoop drains the peer so control frames are processed. Anything the
// peer sends is ignored.
func (s *Server) readLoop(c *Client) {
	c.conn.SetReadLimit(maxReadBytes)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
			metricFramesDelivered.Add(1)
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

// attach binds the upgraded connection. A client closed before it was
// attached closes the connection straight away.
func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
	if c.closed {
		_ = conn.Close()
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Shutdown closes every open stream.
func (s *Server) Shutdown(context.Context) {
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

// safeSend queues msg without blocking. It reports false only when the
// buffer is full; a send after the stream closed is dropped.
func safeSend(ch chan []byte, msg []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = true
		}
	}()
	select {
	case ch <- msg:
		return true
	default:
		return false
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorFrame{Error: code})
}
