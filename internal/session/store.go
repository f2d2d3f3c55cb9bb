package session

import (
	"log/slog"
	"sync"
	"time"
)

// Store is keyed conversation memory with lazy TTL expiry.
//
// A single mutex serializes all map mutations so that interleaved requests
// for the same key cannot lose an append. Reads return a copy of the
// history; callers never alias the store's internal slices.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*record

	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Test use only.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store sweeping sessions idle for longer than ttl.
// A non-positive ttl falls back to 24 hours.
func NewStore(ttl time.Duration, logger *slog.Logger, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		sessions: make(map[string]*record),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns the ordered turns for key, creating an empty session on
// first access. Reads never expire a session; only writes sweep.
func (s *Store) History(key string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[key]
	if !ok {
		rec = &record{lastTouched: s.now()}
		s.sessions[key] = rec
	}

	copied := make([]Turn, len(rec.turns))
	copy(copied, rec.turns)
	return copied
}

// Append adds one completed exchange to key's history, refreshes its
// last-touched timestamp, then sweeps every expired session. The sweep is
// O(live sessions) and runs on every write, which is acceptable because the
// session count tracks concurrent users, not lifetime traffic.
func (s *Store) Append(key, userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.sessions[key]
	if !ok {
		rec = &record{}
		s.sessions[key] = rec
	}
	rec.turns = append(rec.turns, Turn{User: userText, Assistant: assistantText})
	rec.lastTouched = now

	s.sweepLocked(now)
}

// Len reports the number of live sessions. Used by the readiness probe.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// sweepLocked removes every session idle for longer than the TTL.
// Caller must hold s.mu.
func (s *Store) sweepLocked(now time.Time) {
	for key, rec := range s.sessions {
		if now.Sub(rec.lastTouched) > s.ttl {
			delete(s.sessions, key)
			s.logger.Debug("expired session swept", "session", key)
		}
	}
}
