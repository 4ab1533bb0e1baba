package remote

import (
	"sync"

	"github.com/gregLibert/simota/pkg/ota"
)

// CounterStore keeps the last replay counter used for each TAR. It is safe
// for concurrent use and holds its state in memory only.
type CounterStore struct {
	mu       sync.Mutex
	counters map[ota.TAR]ota.Counter
}

// NewCounterStore returns an empty store: every TAR starts at zero.
func NewCounterStore() *CounterStore {
	return &CounterStore{counters: make(map[ota.TAR]ota.Counter)}
}

// Next increments the counter of tar and returns the new value. The stored
// value is left unchanged on error.
func (s *CounterStore) Next(tar ota.TAR) (ota.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.counters[tar].Next()
	if err != nil {
		return ota.Counter{}, err
	}
	s.counters[tar] = next
	return next, nil
}

// Set records c as the last counter used for tar, e.g. after reading it
// back from the card.
func (s *CounterStore) Set(tar ota.TAR, c ota.Counter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[tar] = c
}

// Current returns the last counter used for tar.
func (s *CounterStore) Current(tar ota.TAR) ota.Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[tar]
}
