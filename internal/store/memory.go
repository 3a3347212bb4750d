package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is a process-local Store. It is the backend for tests and for a
// single-node lobby server.
type Memory struct {
	mu       sync.Mutex
	root     any
	now      func() time.Time
	watchers *Watchers
}

type MemoryOption func(*Memory)

// WithClock overrides the clock used for server timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{now: time.Now, watchers: NewWatchers()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Read(ctx context.Context, path string) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	segs, err := Split(path)
	if err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := getAt(m.root, segs)
	return deepCopy(v), ok, nil
}

func (m *Memory) Write(ctx context.Context, path string, value any) error {
	return m.Update(ctx, path, map[string]any{"": value})
}

func (m *Memory) Update(ctx context.Context, path string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := Split(path); err != nil {
		return err
	}
	type change struct {
		path   string
		segs   []string
		value  any
		exists bool
	}
	now := m.now().UnixMilli()
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	changes := make([]change, 0, len(keys))
	for _, k := range keys {
		full := Join(path, k)
		segs, err := Split(full)
		if err != nil {
			return err
		}
		v, ok, err := Prepare(patch[k], now)
		if err != nil {
			return err
		}
		changes = append(changes, change{path: full, segs: segs, value: v, exists: ok})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	changed := make([]string, 0, len(changes))
	for _, c := range changes {
		m.root, _ = setAt(m.root, c.segs, c.value, c.exists)
		changed = append(changed, c.path)
	}
	m.notifyLocked(changed)
	return nil
}

func (m *Memory) Remove(ctx context.Context, path string) error {
	return m.Write(ctx, path, nil)
}

func (m *Memory) Push(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := Split(path); err != nil {
		return "", err
	}
	return NewIDAt(m.now()), nil
}

func (m *Memory) Query(ctx context.Context, path string, q Query) ([]Child, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	segs, err := Split(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	parent, _ := getAt(m.root, segs)
	children, err := ApplyQuery(parent, q)
	m.mu.Unlock()
	return children, err
}

func (m *Memory) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	segs, err := Split(path)
	if err != nil {
		return nil, err
	}
	path = Join(segs...)
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.watchers.Watch(path, fn)
	if !ok {
		return nil, ErrUnavailable
	}
	v, exists := getAt(m.root, segs)
	m.watchers.Deliver(sub, Snapshot{Path: path, Value: deepCopy(v), Exists: exists})
	return sub, nil
}

// Close detaches every subscription. Reads and writes keep working.
func (m *Memory) Close() {
	m.watchers.Close()
}

func (m *Memory) notifyLocked(changed []string) {
	for _, p := range m.watchers.Paths(changed...) {
		segs, _ := Split(p)
		v, ok := getAt(m.root, segs)
		m.watchers.Publish(Snapshot{Path: p, Value: v, Exists: ok})
	}
}
