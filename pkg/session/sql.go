package session

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sptgo/gameserver/pkg/mongoid"
)

// SQLStore keeps activity in a SQL table.
// It works with any database/sql compatible driver (PostgreSQL, MySQL, SQLite).
// Requires a table with schema (see CreateTable):
//
//	CREATE TABLE spt_session_activity (
//	    id CHAR(24) PRIMARY KEY,
//	    last_active BIGINT NOT NULL
//	);
//	CREATE INDEX idx_spt_session_activity_last ON spt_session_activity(last_active);
type SQLStore struct {
	db        *sql.DB
	tableName string
	dialect   SQLDialect
	closed    atomic.Bool
}

// SQLDialect represents the SQL dialect for query generation.
type SQLDialect int

const (
	// DialectPostgreSQL uses PostgreSQL syntax ($1, $2 placeholders).
	DialectPostgreSQL SQLDialect = iota
	// DialectMySQL uses MySQL syntax (? placeholders).
	DialectMySQL
	// DialectSQLite uses SQLite syntax (? placeholders).
	DialectSQLite
)

// ParseDialect maps a driver name to a dialect.
func ParseDialect(driver string) (SQLDialect, error) {
	switch driver {
	case "postgres", "pgx", "postgresql":
		return DialectPostgreSQL, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	default:
		return 0, fmt.Errorf("session: unknown sql dialect %q", driver)
	}
}

// SQLStoreOption configures SQLStore behavior.
type SQLStoreOption func(*sqlStoreConfig)

type sqlStoreConfig struct {
	tableName string
	dialect   SQLDialect
}

// WithSQLTableName sets the table name.
// Default: "spt_session_activity".
func WithSQLTableName(name string) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.tableName = name
	}
}

// WithSQLDialect sets the SQL dialect for query generation.
// Default: DialectPostgreSQL.
func WithSQLDialect(dialect SQLDialect) SQLStoreOption {
	return func(c *sqlStoreConfig) {
		c.dialect = dialect
	}
}

// NewSQLStore creates a SQL-backed activity store.
func NewSQLStore(db *sql.DB, opts ...SQLStoreOption) *SQLStore {
	cfg := &sqlStoreConfig{
		tableName: "spt_session_activity",
		dialect:   DialectPostgreSQL,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &SQLStore{
		db:        db,
		tableName: cfg.tableName,
		dialect:   cfg.dialect,
	}
}

// placeholder returns the placeholder syntax for the dialect.
func (s *SQLStore) placeholder(n int) string {
	switch s.dialect {
	case DialectPostgreSQL:
		return fmt.Sprintf("$%d", n)
	default:
		return "?"
	}
}

// CreateTable creates the activity table and index if missing.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id CHAR(24) PRIMARY KEY,
			last_active BIGINT NOT NULL
		)`, s.tableName),
	}
	if s.dialect != DialectMySQL {
		stmts = append(stmts, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_%s_last ON %s(last_active)`, s.tableName, s.tableName))
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("session: create table: %w", err)
		}
	}
	return nil
}

// SetActivity implements Store. The stored value only moves forward.
func (s *SQLStore) SetActivity(ctx context.Context, id mongoid.ID, at time.Time) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	var query string
	switch s.dialect {
	case DialectPostgreSQL:
		query = fmt.Sprintf(`
			INSERT INTO %[1]s (id, last_active)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET
				last_active = GREATEST(%[1]s.last_active, EXCLUDED.last_active)
		`, s.tableName)
	case DialectMySQL:
		query = fmt.Sprintf(`
			INSERT INTO %s (id, last_active)
			VALUES (?, ?)
			ON DUPLICATE KEY UPDATE
				last_active = GREATEST(last_active, VALUES(last_active))
		`, s.tableName)
	case DialectSQLite:
		query = fmt.Sprintf(`
			INSERT INTO %s (id, last_active)
			VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET
				last_active = MAX(last_active, excluded.last_active)
		`, s.tableName)
	}

	_, err := s.db.ExecContext(ctx, query, id.String(), at.UnixMilli())
	return err
}

// GetActivity implements Store.
func (s *SQLStore) GetActivity(ctx context.Context, id mongoid.ID) (time.Time, bool, error) {
	if s.closed.Load() {
		return time.Time{}, false, ErrStoreClosed
	}

	query := fmt.Sprintf(`SELECT last_active FROM %s WHERE id = %s`, s.tableName, s.placeholder(1))
	var ms int64
	err := s.db.QueryRowContext(ctx, query, id.String()).Scan(&ms)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// ActiveSince implements Store.
func (s *SQLStore) ActiveSince(ctx context.Context, since time.Time) ([]mongoid.ID, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	query := fmt.Sprintf(`SELECT id FROM %s WHERE last_active >= %s`, s.tableName, s.placeholder(1))
	rows, err := s.db.QueryContext(ctx, query, since.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []mongoid.ID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := mongoid.Parse(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Prune implements Store.
func (s *SQLStore) Prune(ctx context.Context, before time.Time) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE last_active < %s`, s.tableName, s.placeholder(1))
	_, err := s.db.ExecContext(ctx, query, before.UnixMilli())
	return err
}

// Close implements Store. The database handle is owned by the caller.
func (s *SQLStore) Close() error {
	s.closed.Store(true)
	return nil
}
