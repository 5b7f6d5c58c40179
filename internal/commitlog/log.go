package commitlog

import "context"

// Log is the interface for the append-only commitment log.
// Both MemoryLog and PostgresLog implement this interface.
type Log interface {
	// Append validates c and adds it as a new entry chained to the previous one.
	Append(ctx context.Context, c Commitment) (*Entry, error)

	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Len returns the total number of entries (including the genesis entry).
	Len(ctx context.Context) (int, error)

	// Verify walks the entire chain and checks links, hashes and signatures.
	// Returns nil if the chain is intact.
	Verify(ctx context.Context) error

	// Head returns the hash of the most recent entry (the chain tip).
	Head(ctx context.Context) (string, error)
}
