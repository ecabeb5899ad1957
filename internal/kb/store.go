package kb

import (
	"sync"
	"time"

	"Corsgo/internal/scanner"
)

// Entry is one recorded finding.
type Entry struct {
	Scope      string          `json:"scope"`
	Kind       string          `json:"kind"`
	Finding    scanner.Finding `json:"finding"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Store is an in-memory, append-only knowledge base safe for concurrent use.
type Store struct {
	entries []Entry
	mu      sync.RWMutex
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Record appends f under scope and kind.
func (s *Store) Record(scope, kind string, f scanner.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, Entry{Scope: scope, Kind: kind, Finding: f, RecordedAt: s.now()})
}

// All returns a copy of every entry in recording order.
func (s *Store) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Findings returns the recorded findings of scope in recording order.
func (s *Store) Findings(scope string) []scanner.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []scanner.Finding
	for _, e := range s.entries {
		if e.Scope == scope {
			out = append(out, e.Finding)
		}
	}
	return out
}

// ByKind returns the findings recorded under kind, across scopes.
func (s *Store) ByKind(kind string) []scanner.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []scanner.Finding
	for _, e := range s.entries {
		if e.Kind == kind {
			out = append(out, e.Finding)
		}
	}
	return out
}

// Len returns the number of recorded entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
