// Package sqlite persists the admission ledger on disk. With the in-memory
// guard a daemon restart forgets every admitted order, so a notification
// redelivered after a crash would dispense again; the ledger closes that
// window.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/ieee-uottawa/vending-machine/internal/platform/storage/sqlitemigrate"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/guard"
	"github.com/ieee-uottawa/vending-machine/internal/services/dispenser/guard/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed admission ledger.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the admission ledger at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Admit records orderID and reports whether this call was the first to do
// so. The insert is the atomic check: a duplicate order id changes no rows.
func (s *Store) Admit(ctx context.Context, orderID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("ledger is not configured")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return false, guard.ErrEmptyOrderID
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT OR IGNORE INTO admitted_orders (order_id, admitted_at) VALUES (?, ?)
`,
		orderID,
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("record admission: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check admission: %w", err)
	}
	return rows == 1, nil
}

var _ guard.Store = (*Store)(nil)
