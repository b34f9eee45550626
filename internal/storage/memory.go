package storage

import (
	"context"
	"sync"
	"time"

	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
)

type memQueueEntry struct {
	userID     string
	enqueuedAt time.Time
}

type memPair struct {
	partner string
	setAt   time.Time
}

// MemoryStore is the in-process state backend: a mutex around a FIFO
// slice and two maps. It is the zero-infrastructure deployment variant
// and the substrate for deterministic engine tests.
type MemoryStore struct {
	mu       sync.Mutex
	queue    []memQueueEntry
	pairs    map[string]memPair
	presence map[string]string

	queueTTL time.Duration
	pairTTL  time.Duration // 0 = pairs never expire

	// now is swappable in tests.
	now func() time.Time
}

// NewMemoryStore creates a MemoryStore. pairTTL of 0 disables pair
// expiry (the durable-variant behaviour).
func NewMemoryStore(queueTTL, pairTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		pairs:    make(map[string]memPair),
		presence: make(map[string]string),
		queueTTL: queueTTL,
		pairTTL:  pairTTL,
		now:      time.Now,
	}
}

// SetClock replaces the store's time source. Test helper.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) expired(e memQueueEntry) bool {
	return s.queueTTL > 0 && s.now().Sub(e.enqueuedAt) > s.queueTTL
}

// pruneLocked drops expired entries from the queue front-to-back.
// Caller holds s.mu.
func (s *MemoryStore) pruneLocked() {
	kept := s.queue[:0]
	dropped := 0
	for _, e := range s.queue {
		if s.expired(e) {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	s.queue = kept
	if dropped > 0 {
		metrics.RecordQueueExpiry(dropped)
	}
}

func (s *MemoryStore) Enqueue(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, memQueueEntry{userID: userID, enqueuedAt: s.now()})
	return nil
}

func (s *MemoryStore) DequeueSkipping(_ context.Context, selfID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	for len(s.queue) > 0 {
		head := s.queue[0]
		s.queue = s.queue[1:]
		if head.userID == selfID {
			continue
		}
		return head.userID, true, nil
	}
	return "", false, nil
}

func (s *MemoryStore) RemoveFromQueue(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.queue[:0]
	for _, e := range s.queue {
		if e.userID == userID {
			continue
		}
		kept = append(kept, e)
	}
	s.queue = kept
	return nil
}

func (s *MemoryStore) IsQueued(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.queue {
		if e.userID == userID && !s.expired(e) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) QueueDepth(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	return len(s.queue), nil
}

func (s *MemoryStore) pairLocked(userID string) (string, bool) {
	p, ok := s.pairs[userID]
	if !ok {
		return "", false
	}
	if s.pairTTL > 0 && s.now().Sub(p.setAt) > s.pairTTL {
		delete(s.pairs, userID)
		delete(s.pairs, p.partner)
		return "", false
	}
	return p.partner, true
}

func (s *MemoryStore) SetPair(_ context.Context, a, b string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := s.now()
	s.pairs[a] = memPair{partner: b, setAt: at}
	s.pairs[b] = memPair{partner: a, setAt: at}
	return nil
}

func (s *MemoryStore) GetPartner(_ context.Context, userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	partner, ok := s.pairLocked(userID)
	return partner, ok, nil
}

func (s *MemoryStore) ClearPair(_ context.Context, userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	partner, ok := s.pairLocked(userID)
	if !ok {
		return "", false, nil
	}
	delete(s.pairs, userID)
	delete(s.pairs, partner)
	return partner, true, nil
}

func (s *MemoryStore) PairCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for userID := range s.pairs {
		if _, ok := s.pairLocked(userID); ok {
			count++
		}
	}
	// Обидві сторони пари присутні в мапі.
	return count / 2, nil
}

func (s *MemoryStore) SetPresence(_ context.Context, userID, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[userID] = state
	return nil
}

func (s *MemoryStore) GetPresence(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.presence[userID]; ok {
		return state, nil
	}
	return models.PresenceOffline, nil
}
