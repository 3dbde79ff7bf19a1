// Package session serializes writes against individual sessions. The
// engine core is pure and does not arbitrate concurrent callers; this
// package is the required integration piece that does.
package session

import (
	"sync"
	"time"

	"github.com/openboard/engine/internal/domain"
)

// Locker hands out one mutex per registered session. Sessions are
// registered when they come into use and unregistered when they are torn
// down, so the map does not grow without bound.
type Locker struct {
	mu       sync.Mutex
	sessions map[string]*entry

	// SyncRateLimitPerMinute caps task re-syncs per session. Zero disables
	// the limit.
	SyncRateLimitPerMinute int
}

type entry struct {
	lock sync.Mutex
	rate rateBucket
}

type rateBucket struct {
	count       int
	windowStart int64
}

// NewLocker creates a Locker with the given per-session sync rate limit.
func NewLocker(syncRateLimitPerMinute int) *Locker {
	return &Locker{
		sessions:               make(map[string]*entry),
		SyncRateLimitPerMinute: syncRateLimitPerMinute,
	}
}

// Register makes a session known to the locker. Registering twice is a
// no-op.
func (l *Locker) Register(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sessions[name]; !ok {
		l.sessions[name] = &entry{}
	}
}

// Unregister drops a session's lock state.
func (l *Locker) Unregister(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, name)
}

// Lock acquires the session's write lock, returning an unlock func. The
// session must be registered first.
func (l *Locker) Lock(name string) (func(), error) {
	e, err := l.entry(name)
	if err != nil {
		return nil, err
	}
	e.lock.Lock()
	return e.lock.Unlock, nil
}

// CheckSyncRate enforces a per-session sliding window on task re-syncs.
// The window is 60 seconds.
func (l *Locker) CheckSyncRate(name string) error {
	if l.SyncRateLimitPerMinute <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.sessions[name]
	if !ok {
		return domain.ErrSessionNotRegistered
	}

	now := time.Now().Unix()
	if now-e.rate.windowStart > 60 {
		e.rate.count = 1
		e.rate.windowStart = now
		return nil
	}
	if e.rate.count >= l.SyncRateLimitPerMinute {
		return domain.ErrRateLimitExceeded
	}
	e.rate.count++
	return nil
}

func (l *Locker) entry(name string) (*entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.sessions[name]
	if !ok {
		return nil, domain.ErrSessionNotRegistered
	}
	return e, nil
}
