package utils

import (
	"sync"
	"time"
)

// KeyLock hands out short-lived locks per key, e.g. to reject a second slot
// request for the same user while the first is still creating its channel.
type KeyLock struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	locks map[string]time.Time
}

func NewKeyLock(ttl time.Duration) *KeyLock {
	return &KeyLock{ttl: ttl, now: time.Now, locks: make(map[string]time.Time)}
}

// TryLock takes the lock for key and returns true, or returns false when the
// key was locked less than ttl ago.
func (l *KeyLock) TryLock(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if at, ok := l.locks[key]; ok && now.Sub(at) < l.ttl {
		return false // Locked
	}
	for k, at := range l.locks {
		if now.Sub(at) >= l.ttl {
			delete(l.locks, k)
		}
	}
	l.locks[key] = now
	return true
}

// Unlock releases key before its ttl runs out.
func (l *KeyLock) Unlock(key string) {
	l.mu.Lock()
	delete(l.locks, key)
	l.mu.Unlock()
}
