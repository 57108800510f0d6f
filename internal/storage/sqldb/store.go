// Package sqldb persists fault records in a SQL database through sqlx.
package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/actiondispatch/internal/core/domain"
	"github.com/tjfontaine/actiondispatch/internal/core/ports"
	"github.com/tjfontaine/actiondispatch/internal/storage/dialect"
)

// DefaultListLimit caps ListFaults when the caller passes no limit.
const DefaultListLimit = 100

// Store is a SQL implementation of ports.FaultStore that supports multiple
// database dialects.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ ports.FaultStore = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.Name() == string(dialect.SQLite) {
		// One connection keeps ":memory:" databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range d.PragmaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db, dialect: d}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect being used
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *Store) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS faults (
id TEXT PRIMARY KEY,
request_id TEXT NOT NULL DEFAULT '',
method TEXT NOT NULL DEFAULT '',
url TEXT NOT NULL DEFAULT '',
catch_block TEXT NOT NULL,
sub_request %s NOT NULL DEFAULT 0,
message TEXT NOT NULL,
stack TEXT NOT NULL DEFAULT '',
created_at %s NOT NULL
)`, s.dialect.BooleanType(), s.dialect.TimestampType()),
		`CREATE INDEX IF NOT EXISTS idx_faults_created ON faults(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_faults_request ON faults(request_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// SaveFault implements ports.FaultStore.
func (s *Store) SaveFault(ctx context.Context, rec *domain.FaultRecord) error {
	if rec == nil {
		return &domain.ArgumentError{Name: "rec"}
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx, `INSERT INTO faults (
id, request_id, method, url, catch_block, sub_request, message, stack, created_at
) VALUES (
:id, :request_id, :method, :url, :catch_block, :sub_request, :message, :stack, :created_at
)`, rec)
	if err != nil {
		return fmt.Errorf("failed to save fault: %w", err)
	}
	return nil
}

// ListFaults implements ports.FaultStore. Records are newest first.
func (s *Store) ListFaults(ctx context.Context, limit int) ([]*domain.FaultRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := s.dialect.Rebind(`SELECT id, request_id, method, url, catch_block, sub_request, message, stack, created_at
FROM faults ORDER BY created_at DESC, id DESC LIMIT ?`)

	var records []*domain.FaultRecord
	if err := s.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list faults: %w", err)
	}
	return records, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
