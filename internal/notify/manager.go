// Package notify pushes session lifecycle events to chat and webhook
// targets through a small worker pool with retries and a per-target
// circuit breaker.
package notify

import (
	"context"
	"sync"
	"time"

	"lobbysync/internal/notify/platforms"

	"github.com/rs/zerolog/log"
)

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

type Manager struct {
	cfg      Config
	adapters map[string]platforms.Adapter

	dispatchCh chan job
	retryQ     *retryQueue
	done       chan struct{}

	mu           sync.Mutex
	started      bool
	breakerByKey map[string]breakerState
}

func NewManager(cfg Config) *Manager {
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	adapters := map[string]platforms.Adapter{
		"discord": platforms.NewDiscordAdapter(client),
		"feishu":  platforms.NewFeishuAdapter(client),
		"webhook": platforms.NewWebhookAdapter(client),
	}
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}

	m := &Manager{
		cfg:          cfg,
		adapters:     adapters,
		dispatchCh:   make(chan job, cfg.DispatchBuffer),
		done:         make(chan struct{}),
		breakerByKey: map[string]breakerState{},
	}
	m.retryQ = newRetryQueue(m.dispatchCh, m.done)
	return m
}

// Start runs the workers until ctx is done. It is a no-op when disabled or
// already started.
func (m *Manager) Start(ctx context.Context) error {
	if !m.cfg.Enabled {
		return nil
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	for i := 0; i < m.cfg.Workers; i++ {
		go m.worker(ctx)
	}
	go func() {
		<-ctx.Done()
		close(m.done)
	}()
	log.Info().Int("targets", len(m.cfg.Targets)).Int("workers", m.cfg.Workers).Msg("notify manager started")
	return nil
}

// Notify queues ev for every matching target. It never blocks; events are
// dropped when the queue is full.
func (m *Manager) Notify(ev Event) {
	if !m.cfg.Enabled {
		return
	}
	if ev.ServerTS == 0 {
		ev.ServerTS = time.Now().UnixMilli()
	}
	targets := matchTargets(m.cfg.Targets, ev)
	if len(targets) == 0 {
		return
	}
	formatted, ok := FormatMessage(ev)
	if !ok {
		return
	}
	for _, target := range targets {
		if !m.enqueue(job{Target: target, Event: ev, Formatted: formatted}) {
			metricNotifyDroppedTotal.Add(1)
		}
	}
}

func (m *Manager) enqueue(j job) bool {
	select {
	case <-m.done:
		return false
	default:
	}
	select {
	case m.dispatchCh <- j:
		metricNotifyQueuedTotal.Add(1)
		metricNotifyQueueLen.Set(int64(len(m.dispatchCh)))
		return true
	default:
		return false
	}
}
