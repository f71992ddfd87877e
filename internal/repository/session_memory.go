package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Bouza1/cloned-it/internal/domain"
)

// MemorySessionStore is an in-process SessionStore for tests and local
// development. It honors the same contract as the Redis store, including
// idempotent deletes and bounded sweep batches.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domain.Session)}
}

func (s *MemorySessionStore) Create(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemorySessionStore) UpdateLastActive(_ context.Context, sessionID string, lastActive time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	sess.LastActive = lastActive
	s.sessions[sessionID] = sess
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}

func (s *MemorySessionStore) DeleteInactiveBefore(_ context.Context, cutoff time.Time, batchSize int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []string
	for id, sess := range s.sessions {
		if sess.LastActive.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	// Deterministic order keeps batch boundaries stable for tests.
	sort.Strings(stale)
	var total int64
	for i := 0; i < len(stale); i += batchSize {
		end := i + batchSize
		if end > len(stale) {
			end = len(stale)
		}
		for _, id := range stale[i:end] {
			delete(s.sessions, id)
			total++
		}
	}
	return total, nil
}

func (s *MemorySessionStore) Overview(_ context.Context, now time.Time) (Overview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ov Overview
	for _, sess := range s.sessions {
		ov.Total++
		if sess.IsExpired(now) {
			ov.Expired++
		} else {
			ov.Active++
		}
	}
	return ov, nil
}

func (s *MemorySessionStore) Ping(context.Context) error { return nil }

// Len reports the number of stored sessions; test helper.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
