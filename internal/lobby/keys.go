package lobby

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// KeyAlphabet has 32 symbols and leaves out I, O, 0 and 1.
const KeyAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const KeyLength = 6

type keySource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newKeySource(rng *rand.Rand) *keySource {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &keySource{rng: rng}
}

func (k *keySource) key() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	b := make([]byte, KeyLength)
	for i := range b {
		b[i] = KeyAlphabet[k.rng.Intn(len(KeyAlphabet))]
	}
	return string(b)
}

// botSuffix mirrors the 9 base36 characters used for bot ids.
func (k *keySource) botSuffix() string {
	const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"
	k.mu.Lock()
	defer k.mu.Unlock()
	b := make([]byte, 9)
	for i := range b {
		b[i] = base36[k.rng.Intn(len(base36))]
	}
	return string(b)
}

// ValidKey reports whether s is a well formed join key.
func ValidKey(s string) bool {
	if len(s) != KeyLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(KeyAlphabet, r) {
			return false
		}
	}
	return true
}
