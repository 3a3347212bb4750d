// Package store defines the key-path store contract shared by every backend
// and ships the in-memory implementation.
//
// Values are JSON shaped: map[string]any, []any, string, float64, bool.
// Maps are the only containers that can be addressed by path; arrays are
// stored and returned as leaf values. Empty maps and nil values are pruned,
// so writing an empty map at a path is the same as removing it.
package store

import (
	"context"
	"errors"
)

var (
	ErrUnavailable = errors.New("store_unavailable")
	ErrInvalidPath = errors.New("invalid_path")
)

// Snapshot is the full value at a subscribed path.
type Snapshot struct {
	Path   string `json:"path"`
	Value  any    `json:"value"`
	Exists bool   `json:"exists"`
}

// Child is one direct child returned by Query.
type Child struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Query selects the direct children of a path. Children are ordered by the
// value of OrderByChild (then by key); EqualTo filters on that value when set;
// LimitToLast keeps the last N after ordering (0 keeps all).
type Query struct {
	OrderByChild string
	EqualTo      any
	LimitToLast  int
}

type Subscription interface {
	Unsubscribe()
}

type Store interface {
	Read(ctx context.Context, path string) (any, bool, error)
	Write(ctx context.Context, path string, value any) error
	// Update replaces each named child of path. Keys may contain "/" to
	// address nested children; siblings that are not named are untouched.
	Update(ctx context.Context, path string, patch map[string]any) error
	Remove(ctx context.Context, path string) error
	// Push allocates a fresh, time-ordered child key under path without
	// writing anything.
	Push(ctx context.Context, path string) (string, error)
	Query(ctx context.Context, path string, q Query) ([]Child, error)
	// Subscribe calls fn with the current value at path and again after
	// every change that touches path, one of its ancestors or descendants.
	Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Subscription, error)
}

const serverValueKey = ".sv"

// ServerTimestamp returns the sentinel replaced by the store clock, in Unix
// milliseconds, when it is written.
func ServerTimestamp() map[string]any {
	return map[string]any{serverValueKey: "timestamp"}
}

func isServerTimestamp(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	return m[serverValueKey] == "timestamp"
}
