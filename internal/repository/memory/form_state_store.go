package memory

import (
	"context"
	"sync"
	"time"

	"contact-form-service/internal/domain"
)

type entry struct {
	state     domain.FormState
	expiresAt time.Time
}

// FormStateStore keeps form states in process memory. It is the fallback
// when Redis is not configured; states do not survive a restart.
type FormStateStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry

	stop     chan struct{}
	stopOnce sync.Once
}

// NewFormStateStore creates a store whose entries expire ttl after their
// last update. Expired entries are swept every cleanupInterval; a
// non-positive interval disables the sweeper.
func NewFormStateStore(ttl, cleanupInterval time.Duration) *FormStateStore {
	s := &FormStateStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.cleanup(cleanupInterval)
	}
	return s
}

func (s *FormStateStore) Get(_ context.Context, sessionID string) (domain.FormState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(sessionID)
	if !ok {
		return domain.FormState{}, false, nil
	}
	return e.state, true, nil
}

func (s *FormStateStore) Update(ctx context.Context, sessionID string, fn func(domain.FormState) (domain.FormState, error)) (domain.FormState, error) {
	if err := ctx.Err(); err != nil {
		return domain.FormState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := domain.NewFormState()
	if e, ok := s.live(sessionID); ok {
		current = e.state
	}

	next, err := fn(current)
	if err != nil {
		return domain.FormState{}, err
	}

	s.entries[sessionID] = entry{state: next, expiresAt: s.now().Add(s.ttl)}
	return next, nil
}

func (s *FormStateStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired or not.
func (s *FormStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close stops the sweeper.
func (s *FormStateStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// live returns the entry for id if it has not expired. Callers hold mu.
func (s *FormStateStore) live(id string) (entry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return entry{}, false
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, id)
		return entry{}, false
	}
	return e, true
}

func (s *FormStateStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *FormStateStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}
