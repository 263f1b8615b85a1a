package session

import (
	"context"
	"sync"
	"time"

	"github.com/sitebot/backend/internal/metrics"
)

// MemoryStore is the default Store: a mutex-guarded map with a periodic
// sweep that drops sessions idle longer than the TTL.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	ticker   *time.Ticker
	done     chan struct{}
}

func NewMemoryStore(ttl, sweepInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	s := &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		ticker:   time.NewTicker(sweepInterval),
		done:     make(chan struct{}),
	}

	go s.sweep()

	return s
}

func (s *MemoryStore) Touch(_ context.Context, sessionID, chatbotID string) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[sessionID]; ok {
		existing.LastSeen = now
		return nil
	}

	s.sessions[sessionID] = &Session{
		ID:        sessionID,
		ChatbotID: chatbotID,
		CreatedAt: now,
		LastSeen:  now,
	}
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *sess
	return &copied, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	return nil
}

func (s *MemoryStore) Close() error {
	s.ticker.Stop()
	close(s.done)
	return nil
}

func (s *MemoryStore) sweep() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.expire(time.Now())
		}
	}
}

// expire removes sessions idle past the TTL as of now; split out so tests
// can trigger a sweep without waiting for the ticker.
func (s *MemoryStore) expire(now time.Time) {
	cutoff := now.Add(-s.ttl)
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.LastSeen.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	s.mu.Unlock()
}
