package store

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Watchers fans snapshots out to path subscriptions. Each subscription has
// its own ordered queue drained by one goroutine, so callbacks never run while
// a backend holds its own locks and a slow callback only delays itself.
type Watchers struct {
	mu       sync.Mutex
	nextID   uint64
	watchers map[uint64]*watcher
	closed   bool
}

type watcher struct {
	id     uint64
	path   string
	fn     func(Snapshot)
	owner  *Watchers
	mu     sync.Mutex
	queue  []Snapshot
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func NewWatchers() *Watchers {
	return &Watchers{watchers: map[uint64]*watcher{}}
}

// Watch registers fn for path. The caller is expected to Deliver the initial
// snapshot for the returned subscription.
func (ws *Watchers) Watch(path string, fn func(Snapshot)) (Subscription, bool) {
	w := &watcher{
		path:   path,
		fn:     fn,
		owner:  ws,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		return w, false
	}
	ws.nextID++
	w.id = ws.nextID
	ws.watchers[w.id] = w
	ws.mu.Unlock()
	go w.run()
	return w, true
}

// Deliver queues a snapshot for a single subscription returned by Watch.
func (ws *Watchers) Deliver(sub Subscription, snap Snapshot) {
	if w, ok := sub.(*watcher); ok {
		w.enqueue(snap)
	}
}

// Paths lists the distinct watched paths overlapping any of changed.
func (ws *Watchers) Paths(changed ...string) []string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, w := range ws.watchers {
		if seen[w.path] {
			continue
		}
		for _, c := range changed {
			if Overlaps(w.path, c) {
				seen[w.path] = true
				out = append(out, w.path)
				break
			}
		}
	}
	return out
}

// Publish queues snap for every subscription watching exactly snap.Path.
func (ws *Watchers) Publish(snap Snapshot) {
	ws.mu.Lock()
	targets := make([]*watcher, 0, len(ws.watchers))
	for _, w := range ws.watchers {
		if w.path == snap.Path {
			targets = append(targets, w)
		}
	}
	ws.mu.Unlock()
	for _, w := range targets {
		w.enqueue(Snapshot{Path: snap.Path, Value: deepCopy(snap.Value), Exists: snap.Exists})
	}
}

func (ws *Watchers) Len() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.watchers)
}

// Close detaches every subscription.
func (ws *Watchers) Close() {
	ws.mu.Lock()
	all := make([]*watcher, 0, len(ws.watchers))
	for _, w := range ws.watchers {
		all = append(all, w)
	}
	ws.closed = true
	ws.mu.Unlock()
	for _, w := range all {
		w.Unsubscribe()
	}
}

func (w *watcher) Unsubscribe() {
	w.once.Do(func() {
		w.owner.mu.Lock()
		delete(w.owner.watchers, w.id)
		w.owner.mu.Unlock()
		close(w.done)
	})
}

func (w *watcher) enqueue(snap Snapshot) {
	w.mu.Lock()
	w.queue = append(w.queue, snap)
	w.mu.Unlock()
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case <-w.signal:
		}
		for {
			w.mu.Lock()
			if len(w.queue) == 0 {
				w.mu.Unlock()
				break
			}
			snap := w.queue[0]
			w.queue = w.queue[1:]
			w.mu.Unlock()
			select {
			case <-w.done:
				return
			default:
			}
			w.call(snap)
		}
	}
}

func (w *watcher) call(snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("path", w.path).Msg("store subscriber panicked")
		}
	}()
	w.fn(snap)
}
