package commitlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey is a stable PostgreSQL advisory lock key used to serialise
// concurrent Append calls. The value is arbitrary but must be consistent
// across all commitd instances.
const advisoryLockKey = int64(1_159_876_544)

const entryColumns = `idx, timestamp, root, tx_count, signer, signature, prev_hash, hash`

// PostgresLog persists the commitment log to a PostgreSQL database.
// It implements the Log interface.
type PostgresLog struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLog creates a PostgresLog backed by the given connection pool.
func NewPostgresLog(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLog {
	return &PostgresLog{pool: pool, logger: logger}
}

// EnsureGenesis inserts the genesis entry if the table is empty.
func (l *PostgresLog) EnsureGenesis(ctx context.Context) error {
	g := genesisEntry()
	if _, err := l.pool.Exec(ctx,
		`INSERT INTO commit_log (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (idx) DO NOTHING`,
		g.Index, g.Timestamp, g.Root, g.TxCount, g.Signer, g.Signature, g.PrevHash, g.Hash,
	); err != nil {
		return fmt.Errorf("insert genesis entry: %w", err)
	}
	return nil
}

// Append implements Log.
// It acquires a PostgreSQL advisory lock, reads the chain tail, computes the
// new entry hash, and inserts it, all within a single transaction.
func (l *PostgresLog) Append(ctx context.Context, c Commitment) (*Entry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The lock is released when the transaction commits or rolls back.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	prev, err := scanEntry(tx.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM commit_log ORDER BY idx DESC LIMIT 1`,
	))
	if err != nil {
		return nil, fmt.Errorf("read log tail: %w", err)
	}

	entry := newEntry(prev, c, time.Now())
	if _, err := tx.Exec(ctx,
		`INSERT INTO commit_log (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.Index, entry.Timestamp, entry.Root, entry.TxCount,
		entry.Signer, entry.Signature, entry.PrevHash, entry.Hash,
	); err != nil {
		return nil, fmt.Errorf("insert log entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit log tx: %w", err)
	}

	l.logger.Debug("commitment appended",
		zap.Int("idx", entry.Index),
		zap.String("root", entry.Root),
		zap.Int("tx_count", entry.TxCount),
	)
	return entry, nil
}

// Get implements Log.
func (l *PostgresLog) Get(ctx context.Context, index int) (*Entry, error) {
	entry, err := scanEntry(l.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM commit_log WHERE idx = $1`, index,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: index %d", ErrNotFound, index)
		}
		return nil, fmt.Errorf("get log entry %d: %w", index, err)
	}
	return entry, nil
}

// Len implements Log.
func (l *PostgresLog) Len(ctx context.Context) (int, error) {
	var n int
	if err := l.pool.QueryRow(ctx, "SELECT COUNT(*) FROM commit_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("count log entries: %w", err)
	}
	return n, nil
}

// Verify implements Log. It streams all rows ordered by idx and validates
// the chain. O(n) in log length; may be slow for very large logs.
func (l *PostgresLog) Verify(ctx context.Context) error {
	rows, err := l.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM commit_log ORDER BY idx ASC`,
	)
	if err != nil {
		return fmt.Errorf("query log: %w", err)
	}
	defer rows.Close()

	var prev *Entry
	for rows.Next() {
		curr, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("scan log row: %w", err)
		}
		if prev == nil {
			if err := checkGenesis(curr); err != nil {
				return err
			}
		} else if err := checkLink(prev, curr); err != nil {
			return err
		}
		prev = curr
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if prev == nil {
		return errors.New("log is empty: genesis entry missing")
	}
	return nil
}

// Head implements Log.
func (l *PostgresLog) Head(ctx context.Context) (string, error) {
	var hash string
	if err := l.pool.QueryRow(ctx,
		"SELECT hash FROM commit_log ORDER BY idx DESC LIMIT 1",
	).Scan(&hash); err != nil {
		return "", fmt.Errorf("get log head: %w", err)
	}
	return hash, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	e := &Entry{}
	if err := row.Scan(
		&e.Index, &e.Timestamp, &e.Root, &e.TxCount,
		&e.Signer, &e.Signature, &e.PrevHash, &e.Hash,
	); err != nil {
		return nil, err
	}
	// timestamptz scans in the session zone; hashes use UTC.
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}
