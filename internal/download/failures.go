package download

import (
	"encoding/json"
	"sync"
)

// Failure pairs an entry with the error of its latest attempt.
type Failure struct {
	Entry Entry `json:"entry"`
	Err   error `json:"-"`
}

// Message returns the error text, or "" when Err is nil.
func (f Failure) Message() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// MarshalJSON adds the error kind and message to the entry.
func (f Failure) MarshalJSON() ([]byte, error) {
	var kind string
	if k := Kind(f.Err); k != nil {
		kind = k.Error()
	}
	return json.Marshal(struct {
		Entry   Entry  `json:"entry"`
		Kind    string `json:"kind,omitempty"`
		Message string `json:"message,omitempty"`
	}{f.Entry, kind, f.Message()})
}

// FailureSet collects failures from concurrent transfers within one round.
// It is the only state written by more than one goroutine.
type FailureSet struct {
	mu    sync.Mutex
	items []Failure
}

// NewFailureSet creates a FailureSet with the specified initial capacity.
func NewFailureSet(capacity int) *FailureSet {
	if capacity < 0 {
		capacity = 0
	}
	return &FailureSet{items: make([]Failure, 0, capacity)}
}

// Add records a failure.
func (s *FailureSet) Add(f Failure) {
	s.mu.Lock()
	s.items = append(s.items, f)
	s.mu.Unlock()
}

// Len returns the number of recorded failures.
func (s *FailureSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Snapshot returns a copy of the recorded failures.
func (s *FailureSet) Snapshot() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Failure, len(s.items))
	copy(out, s.items)
	return out
}

// Drain returns the recorded failures and empties the set.
func (s *FailureSet) Drain() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.items
	s.items = make([]Failure, 0, len(out))
	return out
}

// Reset empties the set.
func (s *FailureSet) Reset() {
	s.mu.Lock()
	s.items = s.items[:0]
	s.mu.Unlock()
}
