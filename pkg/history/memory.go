package history

import (
	"context"
	"os"
	"sync"
)

// MemoryStore keeps the ledger in process memory. It only protects
// against duplicates within one watch session; use the redis backend
// when the ledger must survive restarts.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry

	// order holds signatures oldest first.
	order []string
}

// NewMemoryStore creates an empty in-process ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// MarkProcessed records an entry. Re-marking a known signature
// refreshes the entry and moves it to the most recent position.
func (s *MemoryStore) MarkProcessed(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.entries[e.Signature]; known {
		for i, sig := range s.order {
			if sig == e.Signature {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.entries[e.Signature] = e
	s.order = append(s.order, e.Signature)
	return nil
}

// Lookup returns the entry for a fingerprint, os.ErrNotExist when
// the fingerprint was never processed.
func (s *MemoryStore) Lookup(_ context.Context, signature string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[signature]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &e, nil
}

// Recent returns up to limit entries, most recent first.
func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	out := make([]Entry, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[s.order[i]])
	}
	return out, nil
}

// Close is a no-op for the in-process ledger.
func (s *MemoryStore) Close() error {
	return nil
}
