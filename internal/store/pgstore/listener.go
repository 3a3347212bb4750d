package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// Listen relays changes written by other processes to local subscribers until
// ctx is done. A dropped connection is retried with exponential backoff and
// every watched path is re-published once the listener is back, so
// subscribers converge on whatever they missed.
func (s *Store) Listen(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 10 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.listenOnce(ctx, b.Reset)
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn().Err(err).Dur("retry_in", wait).Msg("store listener disconnected")
		}),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Store) listenOnce(ctx context.Context, connected func()) error {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return unavailable(err)
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		return unavailable(err)
	}
	connected()
	s.resync(ctx)
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return unavailable(err)
		}
		var msg notification
		if err := json.Unmarshal([]byte(n.Payload), &msg); err != nil {
			log.Warn().Err(err).Str("payload", n.Payload).Msg("bad store notification")
			continue
		}
		if msg.Origin == s.origin {
			continue
		}
		s.mu.Lock()
		s.notifyLocked(ctx, []string{msg.Path})
		s.mu.Unlock()
	}
}

func (s *Store) resync(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyLocked(ctx, []string{""})
}
