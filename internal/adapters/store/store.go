// Package store implements core.Store over database/sql for SQLite and
// Postgres.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver

	"github.com/hugo-lorenzo-mato/scorecard/internal/core"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

var _ core.Store = (*Store)(nil)

// Options configures Open.
type Options struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string
	// Path is the SQLite database file.
	Path string
	// DSN is the Postgres connection string.
	DSN string
	// BusyTimeout is the SQLite busy timeout.
	BusyTimeout time.Duration
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists templates, criteria, versions, and audit entries. A Store
// returned by Open is bound to the pool; RunInTx hands callbacks a Store
// bound to the transaction.
type Store struct {
	db   *sql.DB
	q    querier
	d    dialect
	inTx bool
}

// Open connects to the configured backend and applies pending migrations.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var (
		d   dialect
		dsn string
	)
	switch opts.Driver {
	case "", DriverSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite path is required")
		}
		d = sqliteDialect
		busy := opts.BusyTimeout
		if busy <= 0 {
			busy = 5 * time.Second
		}
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)",
			opts.Path, busy.Milliseconds())
	case DriverPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres dsn is required")
		}
		d = postgresDialect
		dsn = opts.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := sql.Open(d.sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", d.name, err)
	}
	if d.name == DriverSQLite {
		// One writer connection serializes transactions.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", d.name, err)
	}

	s := &Store{db: db, q: db, d: d}
	if err := s.migrate(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Driver returns the backend name.
func (s *Store) Driver() string {
	return s.d.name
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool. It is a no-op on transaction-bound stores.
func (s *Store) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}

// RunInTx runs fn in a transaction bound to ctx. Cancelling ctx rolls the
// transaction back. Nested calls reuse the open transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(core.Repository) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{db: s.db, q: tx, d: s.d, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.d.rebind(query), args...)
}

type migration struct {
	version int
	name    string
}

// migrate applies embedded migrations newer than the recorded version.
func (s *Store) migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at %s NOT NULL
	)`, s.d.timestamp)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	pending, err := s.pendingMigrations(current)
	if err != nil {
		return err
	}
	for _, m := range pending {
		body, err := migrationsFS.ReadFile(m.name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", m.name, err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", m.version, err)
		}
		record := s.d.rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)")
		if _, err := tx.ExecContext(ctx, record, m.version, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *Store) pendingMigrations(current int) ([]migration, error) {
	files, err := fs.Glob(migrationsFS, path.Join("migrations", s.d.name, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}
	var out []migration
	for _, f := range files {
		base := path.Base(f)
		prefix, _, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s has no version prefix", base)
		}
		v, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: %w", base, err)
		}
		if v > current {
			out = append(out, migration{version: v, name: f})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.queryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func nullableBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

// checkAffected returns NotFound when an update or delete touched no row.
func checkAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound(resource, id)
	}
	return nil
}
