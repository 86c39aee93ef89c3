package ledger

import (
	"context"
	"sync"
	"time"

	"papertrends/internal/ports"
)

// Memory is an in-process ledger used by tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

var _ ports.Ledger = (*Memory)(nil)

// NewMemory builds an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{entries: map[string]time.Time{}}
}

// Seed pre-populates the ledger, standing in for previous runs.
func (m *Memory) Seed(paperIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range paperIDs {
		m.entries[id] = time.Now().UTC()
	}
}

// Snapshot copies the current announced set.
func (m *Memory) Snapshot(_ context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string]bool, len(m.entries))
	for id := range m.entries {
		snapshot[id] = true
	}
	return snapshot, nil
}

// Record marks a paper as announced, keeping the first timestamp.
func (m *Memory) Record(_ context.Context, paperID string, announcedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[paperID]; !ok {
		m.entries[paperID] = announcedAt
	}
	return nil
}

// Contains reports whether the paper was recorded; test helper.
func (m *Memory) Contains(paperID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[paperID]
	return ok
}
