package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/deploywatch/internal/core/domain"
	"github.com/tjfontaine/deploywatch/internal/storage"
)

// Store is a SQLite implementation of DeliveryStore
type Store struct {
	db *sql.DB
}

var _ storage.DeliveryStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS deliveries (
			id TEXT PRIMARY KEY,
			delivery_id TEXT NOT NULL,
			event_type TEXT,
			email_id TEXT,
			outcome TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			content_fetch_failed INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			duration_ns INTEGER,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_delivery_id ON deliveries(delivery_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_outcome ON deliveries(outcome)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_created ON deliveries(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) RecordDelivery(ctx context.Context, rec *domain.DeliveryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO deliveries (id, delivery_id, event_type, email_id, outcome, status_code,
	          content_fetch_failed, error_message, duration_ns, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.DeliveryID, rec.EventType, rec.EmailID, string(rec.Outcome), rec.StatusCode,
		rec.ContentFetchFailed, rec.Error, int64(rec.Duration), rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}

	return nil
}

func (s *Store) ListDeliveries(ctx context.Context, opts storage.DeliveryListOptions) ([]*domain.DeliveryRecord, error) {
	var (
		where []string
		args  []any
	)
	if opts.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(opts.Outcome))
	}
	if opts.DeliveryID != "" {
		where = append(where, "delivery_id = ?")
		args = append(args, opts.DeliveryID)
	}

	query := `SELECT id, delivery_id, event_type, email_id, outcome, status_code,
	          content_fetch_failed, error_message, duration_ns, created_at
	          FROM deliveries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var records []*domain.DeliveryRecord
	for rows.Next() {
		var (
			rec        domain.DeliveryRecord
			eventType  sql.NullString
			emailID    sql.NullString
			outcome    string
			errMessage sql.NullString
			durationNS sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.DeliveryID, &eventType, &emailID, &outcome, &rec.StatusCode,
			&rec.ContentFetchFailed, &errMessage, &durationNS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		rec.EventType = eventType.String
		rec.EmailID = emailID.String
		rec.Outcome = domain.Outcome(outcome)
		rec.Error = errMessage.String
		rec.Duration = time.Duration(durationNS.Int64)
		records = append(records, &rec)
	}

	return records, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
