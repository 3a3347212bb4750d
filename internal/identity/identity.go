// Package identity allocates participant ids and waits for an external
// identity source to settle.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrNotReady = errors.New("identity_not_ready")

const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 100 * time.Millisecond
)

// Source reports the current participant id, or "" while it is unknown.
type Source interface {
	Current(ctx context.Context) (string, error)
}

type SourceFunc func(ctx context.Context) (string, error)

func (f SourceFunc) Current(ctx context.Context) (string, error) { return f(ctx) }

// Static is a Source that is ready immediately.
func Static(id string) Source {
	return SourceFunc(func(context.Context) (string, error) { return id, nil })
}

// Identity is the outcome of Wait. Degraded is set when the source never
// produced an id and a local one was allocated instead.
type Identity struct {
	ID       string
	Degraded bool
}

// New returns a fresh random participant id.
func New() string {
	return uuid.NewString()
}

// Wait polls src every interval until it yields an id. After timeout it
// falls back to a fresh local id. Only cancellation of ctx is an error.
func Wait(ctx context.Context, src Source, timeout, interval time.Duration) (Identity, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	id, err := backoff.Retry(ctx, func() (string, error) {
		id, err := src.Current(ctx)
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", ErrNotReady
		}
		return id, nil
	}, backoff.WithBackOff(backoff.NewConstantBackOff(interval)), backoff.WithMaxElapsedTime(timeout))
	if err == nil {
		return Identity{ID: id}, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Identity{}, ctxErr
	}
	local := New()
	log.Warn().Err(err).Str("participant_id", local).Dur("timeout", timeout).Msg("identity wait timed out, using local id")
	return Identity{ID: local, Degraded: true}, nil
}
