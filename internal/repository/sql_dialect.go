package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/RealZimboGuy/gopherstep/internal/config"
)

// Dialect names the SQL flavour a repository speaks. Its values match the
// GSTEP_DATABASE_TYPE setting.
type Dialect string

const (
	Postgres Dialect = config.DATABASE_TYPE_POSTGRES
	MySQL    Dialect = config.DATABASE_TYPE_MYSQL
	SQLite   Dialect = config.DATABASE_TYPE_SQLLITE
)

// DialectFromConfig reads GSTEP_DATABASE_TYPE.
func DialectFromConfig() (Dialect, error) {
	d := Dialect(config.GetSystemSettingString(config.DATABASE_TYPE))
	switch d {
	case Postgres, MySQL, SQLite:
		return d, nil
	}
	return "", fmt.Errorf("unsupported database type %q", d)
}

// placeholder returns the correct bind variable for the given index.
// Postgres uses $1, $2... while MySQL and SQLite use ?
func (d Dialect) placeholder(i int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// placeholders returns n bind variables starting at from, comma separated.
func (d Dialect) placeholders(from, n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ", "
		}
		s += d.placeholder(from + i)
	}
	return s
}

func (d Dialect) supportsReturning() bool {
	return d == Postgres
}

func (d Dialect) formatDate(t time.Time) string {
	switch d {
	case SQLite:
		return t.UTC().Format("2006-01-02 15:04:05.000")
	case MySQL:
		return t.UTC().Format("2006-01-02 15:04:05.000000")
	}
	// PostgreSQL supports RFC3339
	return t.UTC().Format(time.RFC3339Nano)
}

func (d Dialect) formatNullDate(t sql.NullTime) any {
	if !t.Valid {
		return nil
	}
	return d.formatDate(t.Time)
}

// before returns a predicate checking that column is strictly before the
// timestamp bound to the given placeholder. SQLite compares through
// julianday() so TEXT timestamps order correctly.
func (d Dialect) before(column, param string) string {
	if d == SQLite {
		return fmt.Sprintf("julianday(%s) < julianday(%s)", column, param)
	}
	return fmt.Sprintf("%s < %s", column, param)
}

// sameInstant is the equality form of before.
func (d Dialect) sameInstant(column, param string) string {
	if d == SQLite {
		return fmt.Sprintf("julianday(%s) = julianday(%s)", column, param)
	}
	return fmt.Sprintf("%s = %s", column, param)
}

// migrationsDir is the embedded migrations directory for the dialect.
func (d Dialect) migrationsDir() string {
	switch d {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	}
	return "sqlite3"
}
