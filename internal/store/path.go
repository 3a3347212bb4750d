package store

import (
	"fmt"
	"strings"
)

const forbiddenSegmentChars = ".#$[]"

// Split validates path and returns its segments. The empty path addresses
// the root.
func Split(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, nil
	}
	segs := strings.Split(path, "/")
	for _, seg := range segs {
		if err := ValidSegment(seg); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// ValidSegment reports whether seg can be used as a single path segment.
func ValidSegment(seg string) error {
	if seg == "" || strings.ContainsAny(seg, forbiddenSegmentChars+"/") {
		return ErrInvalidPath
	}
	return nil
}

func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

// Sanitize lowercases s and drops everything that is not a-z or 0-9.
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Overlaps reports whether a change at changed is visible from a
// subscription at watched.
func Overlaps(watched, changed string) bool {
	watched = strings.Trim(watched, "/")
	changed = strings.Trim(changed, "/")
	if watched == "" || changed == "" || watched == changed {
		return true
	}
	return strings.HasPrefix(changed, watched+"/") || strings.HasPrefix(watched, changed+"/")
}
