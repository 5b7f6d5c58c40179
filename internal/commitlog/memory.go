package commitlog

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryLog is an in-memory, thread-safe Log implementation.
// It is primarily useful for testing and for single-process deployments
// that do not require durable persistence across restarts.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []*Entry
	now     func() time.Time
}

// NewMemoryLog creates a MemoryLog initialised with the canonical genesis entry.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		entries: []*Entry{genesisEntry()},
		now:     time.Now,
	}
}

// Append implements Log.
func (l *MemoryLog) Append(_ context.Context, c Commitment) (*Entry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := newEntry(l.entries[len(l.entries)-1], c, l.now())
	l.entries = append(l.entries, entry)
	return copyEntry(entry), nil
}

// Get implements Log.
func (l *MemoryLog) Get(_ context.Context, index int) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.entries) {
		return nil, fmt.Errorf("%w: index %d out of range", ErrNotFound, index)
	}
	return copyEntry(l.entries[index]), nil
}

// Len implements Log.
func (l *MemoryLog) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries), nil
}

// Verify implements Log.
func (l *MemoryLog) Verify(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i, curr := range l.entries {
		if i == 0 {
			if err := checkGenesis(curr); err != nil {
				return err
			}
			continue
		}
		if err := checkLink(l.entries[i-1], curr); err != nil {
			return err
		}
	}
	return nil
}

// Head implements Log.
func (l *MemoryLog) Head(_ context.Context) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[len(l.entries)-1].Hash, nil
}

// Entries are handed out by value so callers cannot rewrite stored history.
func copyEntry(e *Entry) *Entry {
	c := *e
	return &c
}
