package store

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewID returns a ULID stamped with the wall clock.
func NewID() string {
	return NewIDAt(time.Now())
}

// NewIDAt returns a ULID stamped with at. Within one process, ids stamped in
// the same millisecond still sort in allocation order, which is what "most
// recent" queries over pushed keys rely on.
func NewIDAt(at time.Time) string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), idEntropy).String()
}
