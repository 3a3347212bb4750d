// Package pgstore is the Postgres backend for the key-path store. Every leaf
// of the tree is one row keyed by its full path; change notifications travel
// between processes over LISTEN/NOTIFY.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"lobbysync/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Channel is the NOTIFY channel carrying changed paths.
const Channel = "kp_changes"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kp_nodes (
	path       TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store implements store.Store on a pgx pool.
type Store struct {
	Pool *pgxpool.Pool

	origin   string
	now      func() time.Time
	mu       sync.Mutex
	watchers *store.Watchers
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	s := &Store{
		Pool:     pool,
		origin:   store.NewID(),
		now:      time.Now,
		watchers: store.NewWatchers(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() {
	s.watchers.Close()
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

// EnsureSchema creates the node table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, schemaSQL); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, path string) (any, bool, error) {
	segs, err := store.Split(path)
	if err != nil {
		return nil, false, err
	}
	return s.read(ctx, s.Pool, store.Join(segs...))
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) read(ctx context.Context, q querier, path string) (any, bool, error) {
	rows, err := q.Query(ctx, `
		SELECT path, value FROM kp_nodes
		WHERE $1 = '' OR path = $1 OR starts_with(path, $1 || '/')`, path)
	if err != nil {
		return nil, false, unavailable(err)
	}
	defer rows.Close()
	leaves := map[string]any{}
	for rows.Next() {
		var (
			p   string
			raw []byte
		)
		if err := rows.Scan(&p, &raw); err != nil {
			return nil, false, unavailable(err)
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, false, fmt.Errorf("decode %s: %w", p, err)
		}
		leaves[p] = v
	}
	if err := rows.Err(); err != nil {
		return nil, false, unavailable(err)
	}
	if len(leaves) == 0 {
		return nil, false, nil
	}
	v, ok := store.Unflatten(path, leaves)
	return v, ok, nil
}

func (s *Store) Write(ctx context.Context, path string, value any) error {
	return s.Update(ctx, path, map[string]any{"": value})
}

func (s *Store) Remove(ctx context.Context, path string) error {
	return s.Write(ctx, path, nil)
}

func (s *Store) Update(ctx context.Context, path string, patch map[string]any) error {
	if _, err := store.Split(path); err != nil {
		return err
	}
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	type change struct {
		path  string
		segs  []string
		value any
	}
	now := s.now().UnixMilli()
	changes := make([]change, 0, len(keys))
	for _, k := range keys {
		full := store.Join(path, k)
		segs, err := store.Split(full)
		if err != nil {
			return err
		}
		v, _, err := store.Prepare(patch[k], now)
		if err != nil {
			return err
		}
		if _, isMap := v.(map[string]any); full == "" && v != nil && !isMap {
			return fmt.Errorf("%w: root must hold a map", store.ErrInvalidPath)
		}
		changes = append(changes, change{path: full, segs: segs, value: v})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return unavailable(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	changed := make([]string, 0, len(changes))
	for _, c := range changes {
		if _, err := tx.Exec(ctx, `
			DELETE FROM kp_nodes
			WHERE $1 = '' OR path = $1 OR starts_with(path, $1 || '/') OR path = ANY($2)`,
			c.path, ancestors(c.segs)); err != nil {
			return unavailable(err)
		}
		for leafPath, leaf := range store.Flatten(c.path, c.value) {
			raw, err := json.Marshal(leaf)
			if err != nil {
				return fmt.Errorf("encode %s: %w", leafPath, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO kp_nodes (path, value, updated_at) VALUES ($1, $2, now())
				ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
				leafPath, raw); err != nil {
				return unavailable(err)
			}
		}
		payload, _ := json.Marshal(notification{Origin: s.origin, Path: c.path})
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, Channel, string(payload)); err != nil {
			return unavailable(err)
		}
		changed = append(changed, c.path)
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable(err)
	}
	s.notifyLocked(ctx, changed)
	return nil
}

// Push allocates a time-ordered key. Nothing is written.
func (s *Store) Push(_ context.Context, path string) (string, error) {
	if _, err := store.Split(path); err != nil {
		return "", err
	}
	return store.NewIDAt(s.now()), nil
}

func (s *Store) Query(ctx context.Context, path string, q store.Query) ([]store.Child, error) {
	parent, _, err := s.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	return store.ApplyQuery(parent, q)
}

func (s *Store) Subscribe(ctx context.Context, path string, fn func(store.Snapshot)) (store.Subscription, error) {
	segs, err := store.Split(path)
	if err != nil {
		return nil, err
	}
	path = store.Join(segs...)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok, err := s.read(ctx, s.Pool, path)
	if err != nil {
		return nil, err
	}
	sub, registered := s.watchers.Watch(path, fn)
	if !registered {
		return nil, store.ErrUnavailable
	}
	s.watchers.Deliver(sub, store.Snapshot{Path: path, Value: v, Exists: ok})
	return sub, nil
}

// notifyLocked re-reads every watched path touched by changed and publishes
// it. Callers hold s.mu.
func (s *Store) notifyLocked(ctx context.Context, changed []string) {
	for _, p := range s.watchers.Paths(changed...) {
		v, ok, err := s.read(ctx, s.Pool, p)
		if err != nil {
			continue
		}
		s.watchers.Publish(store.Snapshot{Path: p, Value: v, Exists: ok})
	}
}

type notification struct {
	Origin string `json:"origin"`
	Path   string `json:"path"`
}

func ancestors(segs []string) []string {
	out := make([]string, 0, len(segs))
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], "/"))
	}
	return out
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
