package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"lobbysync/internal/config"
	"lobbysync/internal/game"
	"lobbysync/internal/notify/platforms"
)

type recordAdapter struct {
	mu    sync.Mutex
	calls int
	fail  bool
	last  platforms.Message
}

func (a *recordAdapter) Name() string { return "record" }

func (a *recordAdapter) Send(_ context.Context, _ string, _ string, msg platforms.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.last = msg
	if a.fail {
		return errors.New("failed")
	}
	return nil
}

func (a *recordAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func waitCalls(t *testing.T, a *recordAdapter, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for a.Calls() < want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d calls, got %d", want, a.Calls())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConfigFromServerFiltersTargets(t *testing.T) {
	scfg := config.ServerConfig{
		NotifyEnabled:     true,
		NotifyWorkers:     2,
		NotifyRetryMax:    3,
		NotifyRetryBaseMS: 200,
		NotifyTargetsJSON: `[
		  {"platform":"Discord","endpoint":"https://a","scope_type":"all","enabled":true},
		  {"platform":"feishu","endpoint":"","scope_type":"all","enabled":true},
		  {"platform":"discord","endpoint":"https://b","scope_type":"room","enabled":true},
		  {"platform":"webhook","endpoint":"https://c","enabled":false}
		]`,
	}
	cfg, err := ConfigFromServer(scfg)
	if err != nil {
		t.Fatalf("config parse failed: %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Platform != "discord" {
		t.Fatalf("targets = %+v", cfg.Targets)
	}
	if cfg.RetryBase != 200*time.Millisecond {
		t.Fatalf("retry base = %v", cfg.RetryBase)
	}
}

func TestConfigFromServerUsesPathFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	if err := os.WriteFile(path, []byte(`[{"platform":"webhook","endpoint":"https://from-file","enabled":true}]`), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	cfg, err := ConfigFromServer(config.ServerConfig{
		NotifyEnabled:     true,
		NotifyTargetsPath: path,
		NotifyTargetsJSON: `[{"platform":"webhook","endpoint":"https://from-env","enabled":true}]`,
	})
	if err != nil {
		t.Fatalf("config parse failed: %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Endpoint != "https://from-file" || cfg.Targets[0].ScopeType != "session" {
		t.Fatalf("targets = %+v", cfg.Targets)
	}

	if _, err := ConfigFromServer(config.ServerConfig{NotifyEnabled: true, NotifyTargetsPath: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatal("expected read error for missing path")
	}
}

func TestMatchTargets(t *testing.T) {
	targets := []Target{
		{Platform: "webhook", Endpoint: "a", ScopeType: "all", Enabled: true},
		{Platform: "webhook", Endpoint: "b", ScopeType: "session", ScopeValue: "s1", Enabled: true},
		{Platform: "webhook", Endpoint: "c", ScopeType: "game_type", ScopeValue: "DicePoker", Enabled: true},
		{Platform: "webhook", Endpoint: "d", ScopeType: "all", EventAllowlist: []string{"game_started"}, Enabled: true},
	}
	got := matchTargets(targets, Event{Type: EventGameFinished, SessionID: "s1", GameType: "dicepoker"})
	var endpoints []string
	for _, tg := range got {
		endpoints = append(endpoints, tg.Endpoint)
	}
	if strings.Join(endpoints, ",") != "a,b,c" {
		t.Fatalf("matched = %v", endpoints)
	}
}

func TestFormatMessage(t *testing.T) {
	msg, ok := FormatMessage(Event{
		Type:      EventGameFinished,
		SessionID: "session-abcdefghijk",
		GameType:  game.GameShutTheBox,
		Winner:    "bob",
		Rankings:  []game.Ranking{{Rank: 1, PlayerID: "bob", Score: 4}, {Rank: 2, PlayerID: "alice", Score: 12}},
		ServerTS:  1_700_000_000_000,
	})
	if !ok {
		t.Fatal("expected game_finished to format")
	}
	if !strings.Contains(msg.Title, "session-ab") || msg.Content != "bob won" {
		t.Fatalf("msg = %+v", msg)
	}
	if msg.Fields[2].Value != "1. bob (4)\n2. alice (12)" {
		t.Fatalf("standings = %q", msg.Fields[2].Value)
	}
	if _, ok := FormatMessage(Event{Type: "turn_changed"}); ok {
		t.Fatal("unknown events should not format")
	}
}

func TestNotifyDeliversToMatchingTargets(t *testing.T) {
	cfg := Config{
		Enabled: true,
		Targets: []Target{{Platform: "record", Endpoint: "https://example.com", ScopeType: "all", Enabled: true}},
		Workers: 1,
	}
	m := NewManager(cfg)
	adapter := &recordAdapter{}
	m.adapters = map[string]platforms.Adapter{"record": adapter}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	m.Notify(Event{Type: EventGameStarted, SessionID: "s1", TurnOrder: []string{"a", "b"}})
	waitCalls(t, adapter, 1)

	adapter.mu.Lock()
	data, _ := adapter.last.Data.(Event)
	adapter.mu.Unlock()
	if data.SessionID != "s1" || data.ServerTS == 0 {
		t.Fatalf("event = %+v", data)
	}
}

func TestRetryStopsAtMaxAttempts(t *testing.T) {
	cfg := Config{
		Enabled:   true,
		Targets:   []Target{{Platform: "record", Endpoint: "https://example.com", ScopeType: "all", Enabled: true}},
		Workers:   1,
		RetryMax:  1,
		RetryBase: 5 * time.Millisecond,
	}
	m := NewManager(cfg)
	adapter := &recordAdapter{fail: true}
	m.adapters = map[string]platforms.Adapter{"record": adapter}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start manager: %v", err)
	}
	m.Notify(Event{Type: EventGameFinished, SessionID: "s1"})
	waitCalls(t, adapter, 2)
	time.Sleep(50 * time.Millisecond)
	if got := adapter.Calls(); got != 2 {
		t.Fatalf("expected 2 calls (initial + 1 retry), got %d", got)
	}
}

func TestCircuitOpensAfterThreshold(t *testing.T) {
	m := NewManager(Config{Enabled: true, FailureThreshold: 2, CircuitOpenDuration: time.Minute})
	now := time.Now()
	m.afterFailure("k", now)
	if err := m.beforeSend("k", now); err != nil {
		t.Fatalf("breaker opened early: %v", err)
	}
	m.afterFailure("k", now)
	if err := m.beforeSend("k", now.Add(time.Second)); !errors.Is(err, errCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	m.afterSuccess("k")
	if err := m.beforeSend("k", now.Add(time.Second)); err != nil {
		t.Fatalf("breaker should reset on success: %v", err)
	}
}

func TestDisabledManagerIgnoresEvents(t *testing.T) {
	m := NewManager(Config{})
	adapter := &recordAdapter{}
	m.adapters = map[string]platforms.Adapter{"record": adapter}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.Notify(Event{Type: EventGameStarted})
	if len(m.dispatchCh) != 0 {
		t.Fatal("disabled manager queued an event")
	}
}
