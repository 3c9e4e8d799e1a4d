// SPDX-License-Identifier: MPL-2.0

package collector

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store keeps reports in arrival order. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	reports []Report
	now     func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Add assigns r an ID and a receive time, stores a copy and returns it.
func (s *Store) Add(r Report) Report {
	r = r.clone()
	r.ID = uuid.NewString()
	r.ReceivedAt = s.now()

	s.mu.Lock()
	s.reports = append(s.reports, r)
	s.mu.Unlock()
	return r.clone()
}

// Reports returns a copy of every stored report.
func (s *Store) Reports() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Report, len(s.reports))
	for i, r := range s.reports {
		out[i] = r.clone()
	}
	return out
}

// Len returns the number of stored reports.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}
