package storeclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"lobbysync/internal/store"
	"lobbysync/internal/ws"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

// Unsubscribe stops delivery and reconnection. It does not wait for a
// callback that is already running, so it may be called from inside one.
func (s *subscription) Unsubscribe() {
	s.cancel()
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()
}

func (s *subscription) swap(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

// Subscribe opens a websocket for path. The first frame of every connection
// is the full current value, so a reconnect is also a resync. Frames are
// delivered to fn in order from a single goroutine.
func (c *Client) Subscribe(ctx context.Context, path string, fn func(store.Snapshot)) (store.Subscription, error) {
	conn, err := c.dial(ctx, path)
	if err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{cancel: cancel, done: make(chan struct{}), conn: conn}
	go c.run(runCtx, sub, path, fn, conn)
	return sub, nil
}

func (c *Client) run(ctx context.Context, sub *subscription, path string, fn func(store.Snapshot), conn *websocket.Conn) {
	defer close(sub.done)
	for {
		err := readFrames(ctx, conn, fn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Warn().Err(err).Str("path", path).Msg("store subscription lost, reconnecting")

		conn, err = c.redial(ctx, path)
		if err != nil {
			if ctx.Err() == nil {
				log.Error().Err(err).Str("path", path).Msg("store subscription abandoned")
			}
			return
		}
		sub.swap(conn)
		if ctx.Err() != nil {
			_ = conn.Close()
			return
		}
		log.Info().Str("path", path).Msg("store subscription resumed")
		if c.onResume != nil {
			c.onResume(path)
		}
	}
}

func readFrames(ctx context.Context, conn *websocket.Conn, fn func(store.Snapshot)) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var f ws.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			log.Warn().Err(err).Msg("decode store frame")
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fn(store.Snapshot{Path: f.Path, Value: f.Value, Exists: f.Exists})
	}
}

func (c *Client) redial(ctx context.Context, path string) (*websocket.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = c.maxInterval
	return backoff.Retry(ctx, func() (*websocket.Conn, error) {
		conn, err := c.dial(ctx, path)
		if errors.Is(err, store.ErrInvalidPath) {
			return nil, backoff.Permanent(err)
		}
		return conn, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Debug().Err(err).Str("path", path).Dur("retry_in", d).Msg("store subscription redial")
		}),
	)
}

func (c *Client) dial(ctx context.Context, path string) (*websocket.Conn, error) {
	scheme := "ws"
	if c.base.Scheme == "https" {
		scheme = "wss"
	}
	target := c.endpoint(scheme, "/api/store/subscribe", url.Values{"path": {path}})
	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if err == nil {
		return conn, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if resp != nil {
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, responseError(resp)
		}
	}
	return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
