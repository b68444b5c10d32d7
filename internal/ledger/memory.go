package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// Memory is a process-local Ledger. Entries do not survive a restart.
type Memory struct {
	now func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

var _ Ledger = (*Memory)(nil)

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

// Record inserts or updates the entry for e.Key.
func (m *Memory) Record(_ context.Context, e Entry) (Entry, error) {
	if e.Key == "" {
		return Entry{}, errors.New("ledger: empty key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var stored *Entry
	if prev, ok := m.entries[e.Key]; ok {
		stored = &prev
	}
	out := merge(stored, e, m.now())
	m.entries[e.Key] = out
	return out, nil
}

// Get returns a copy of the entry for key, or ErrEntryNotFound.
func (m *Memory) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &e, nil
}

// Pending lists pending entries, oldest first.
func (m *Memory) Pending(_ context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for _, e := range m.entries {
		if e.Status == StatusPending {
			out = append(out, e)
		}
	}
	sortByCreated(out)
	return out, nil
}

// Resolve marks the entry settled by orderID.
func (m *Memory) Resolve(_ context.Context, key string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return ErrEntryNotFound
	}
	e.Status = StatusResolved
	e.OrderID = orderID
	e.UpdatedAt = m.now()
	m.entries[key] = e
	return nil
}

func sortByCreated(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.Key < b.Key {
			return -1
		}
		if a.Key > b.Key {
			return 1
		}
		return 0
	})
}
