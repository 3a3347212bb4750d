package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Encode normalizes a Go value into the JSON shape stored by every backend.
func Encode(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return out, nil
}

// Decode converts a stored value into out using json field tags. Numbers are
// converted between float64 and integer fields.
func Decode(value any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	return nil
}

// Prepare normalizes v for writing: it is encoded, server timestamps are
// replaced by nowMs, and nil leaves and empty maps are pruned. The boolean is
// false when nothing is left to store.
func Prepare(v any, nowMs int64) (any, bool, error) {
	enc, err := Encode(v)
	if err != nil {
		return nil, false, err
	}
	out, ok := prune(resolveServerValues(enc, nowMs))
	return out, ok, nil
}

func resolveServerValues(v any, now int64) any {
	if isServerTimestamp(v) {
		return float64(now)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	for k, child := range m {
		m[k] = resolveServerValues(child, now)
	}
	return m
}

// prune drops nil leaves and empty maps. The boolean is false when nothing
// is left.
func prune(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		for k, child := range t {
			pruned, ok := prune(child)
			if !ok {
				delete(t, k)
				continue
			}
			t[k] = pruned
		}
		return t, len(t) > 0
	default:
		return v, true
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = deepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return v
	}
}

func getAt(node any, segs []string) (any, bool) {
	for _, seg := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return node, node != nil
}

// setAt replaces the value at segs inside node, creating maps on the way and
// collapsing any map left empty. A leaf on the way is replaced by a map.
func setAt(node any, segs []string, value any, exists bool) (any, bool) {
	if len(segs) == 0 {
		return value, exists
	}
	m, ok := node.(map[string]any)
	if !ok {
		if !exists {
			return node, node != nil
		}
		m = map[string]any{}
	}
	child, ok := setAt(m[segs[0]], segs[1:], value, exists)
	if ok {
		m[segs[0]] = child
	} else {
		delete(m, segs[0])
	}
	return m, len(m) > 0
}

// Flatten lists every leaf under v keyed by its full path.
func Flatten(prefix string, v any) map[string]any {
	out := map[string]any{}
	flattenInto(out, strings.Trim(prefix, "/"), v)
	return out
}

func flattenInto(out map[string]any, prefix string, v any) {
	m, ok := v.(map[string]any)
	if !ok {
		if v != nil {
			out[prefix] = v
		}
		return
	}
	for k, child := range m {
		flattenInto(out, Join(prefix, k), child)
	}
}

// Unflatten rebuilds the value at base from leaves keyed by full path.
func Unflatten(base string, leaves map[string]any) (any, bool) {
	base = strings.Trim(base, "/")
	if v, ok := leaves[base]; ok && base != "" {
		return v, true
	}
	var root any
	exists := false
	keys := make([]string, 0, len(leaves))
	for k := range leaves {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, full := range keys {
		rel := full
		if base != "" {
			if !strings.HasPrefix(full, base+"/") {
				continue
			}
			rel = full[len(base)+1:]
		}
		segs := strings.Split(rel, "/")
		root, exists = setAt(root, segs, leaves[full], true)
	}
	return root, exists
}
