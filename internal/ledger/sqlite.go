package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/deploywatch/internal/core/ports"
)

// SQLite persists claims so de-duplication survives restarts of a single instance.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// NewSQLite opens (or creates) the ledger database at dbPath.
func NewSQLite(dbPath string, ttl time.Duration) (*SQLite, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Purge and insert must not interleave across connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS delivery_claims (
		delivery_id TEXT PRIMARY KEY,
		expires_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLite{db: db, ttl: ttl, Now: time.Now}, nil
}

func (l *SQLite) Claim(ctx context.Context, deliveryID string) (bool, error) {
	id, err := normalizeID(deliveryID)
	if err != nil {
		return false, err
	}
	now := l.Now()

	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM delivery_claims WHERE expires_at <= ?`, now.UnixNano()); err != nil {
		return false, fmt.Errorf("failed to purge expired claims: %w", err)
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO delivery_claims (delivery_id, expires_at) VALUES (?, ?)
		 ON CONFLICT(delivery_id) DO NOTHING`,
		id, now.Add(l.ttl).UnixNano())
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim delivery: %w", err)
	}
	return n == 1, nil
}

func (l *SQLite) Release(ctx context.Context, deliveryID string) error {
	id, err := normalizeID(deliveryID)
	if err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, `DELETE FROM delivery_claims WHERE delivery_id = ?`, id); err != nil {
		return fmt.Errorf("failed to release delivery: %w", err)
	}
	return nil
}

func (l *SQLite) Close() error {
	return l.db.Close()
}

var _ ports.Ledger = (*SQLite)(nil)
