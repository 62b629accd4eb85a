package llm

import (
	"errors"
	"sync"
	"time"
)

// ErrExhausted is returned when every configured API key is cooling down.
var ErrExhausted = errors.New("all api keys exhausted")

// KeyRotator hands out API keys round-robin, skipping keys that recently
// failed until their cooldown elapses.
type KeyRotator struct {
	mu       sync.Mutex
	keys     []string
	next     int
	failed   map[string]time.Time
	cooldown time.Duration
	now      func() time.Time
}

// NewKeyRotator builds a rotator over the given key pool.
func NewKeyRotator(keys []string, cooldown time.Duration) *KeyRotator {
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &KeyRotator{
		keys:     append([]string(nil), keys...),
		failed:   make(map[string]time.Time),
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Get returns the next usable key. Keys marked failed stay excluded until
// their cooldown has passed.
func (r *KeyRotator) Get() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.keys) == 0 {
		return "", ErrExhausted
	}
	now := r.now()
	for i := 0; i < len(r.keys); i++ {
		key := r.keys[r.next%len(r.keys)]
		r.next++
		failedAt, bad := r.failed[key]
		if !bad {
			return key, nil
		}
		if now.Sub(failedAt) >= r.cooldown {
			delete(r.failed, key)
			return key, nil
		}
	}
	return "", ErrExhausted
}

// MarkFailed records the key as unusable starting now.
func (r *KeyRotator) MarkFailed(key string) {
	if key == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed[key] = r.now()
}

// Size reports the number of configured keys.
func (r *KeyRotator) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}
