package store

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect captures the SQL differences between the supported backends.
type dialect struct {
	name       string
	sqlDriver  string
	numbered   bool   // $1, $2 placeholders instead of ?
	forUpdate  string // row lock suffix for SELECT
	orgLock    string // transaction-scoped lock keyed by organization
	timestamp  string // column type used by schema_migrations
	uniqueCode func(error) bool
}

var sqliteDialect = dialect{
	name:       DriverSQLite,
	sqlDriver:  "sqlite",
	timestamp:  "TIMESTAMP",
	uniqueCode: isSQLiteUnique,
}

var postgresDialect = dialect{
	name:       DriverPostgres,
	sqlDriver:  "pgx",
	numbered:   true,
	forUpdate:  " FOR UPDATE",
	orgLock:    "SELECT pg_advisory_xact_lock(hashtext(?))",
	timestamp:  "TIMESTAMPTZ",
	uniqueCode: isPostgresUnique,
}

// rebind rewrites ? placeholders for backends that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d dialect) isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return d.uniqueCode(err)
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// 23505 is unique_violation.
func isPostgresUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
