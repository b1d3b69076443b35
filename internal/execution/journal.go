package execution

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tickcandles-v1/internal/model"
)

// Journal persists forwarded orders to SQLite for audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) the journal database at dbPath.
func NewJournal(dbPath string) (*Journal, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		client_order_id  TEXT NOT NULL,
		action           TEXT NOT NULL,
		symbol           TEXT NOT NULL,
		quantity         REAL NOT NULL,
		upstream_status  INTEGER NOT NULL DEFAULT 0,
		error            TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
	CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	slog.Info("order journal opened", "component", "journal", "path", dbPath)
	return &Journal{db: db}, nil
}

// RecordOrder appends one forwarding attempt.
func (j *Journal) RecordOrder(ctx context.Context, rec model.OrderRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO orders (client_order_id, action, symbol, quantity, upstream_status, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ClientOrderID,
		rec.Action,
		rec.Symbol,
		rec.Quantity,
		rec.UpstreamStatus,
		rec.Error,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Recent returns up to limit orders, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]model.OrderRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, client_order_id, action, symbol, quantity, upstream_status, error, created_at
		 FROM orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.OrderRecord{}
	for rows.Next() {
		var (
			r  model.OrderRecord
			ts string
		)
		if err := rows.Scan(&r.ID, &r.ClientOrderID, &r.Action, &r.Symbol, &r.Quantity,
			&r.UpstreamStatus, &r.Error, &ts); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping checks the database is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
