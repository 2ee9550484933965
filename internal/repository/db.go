package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/RealZimboGuy/gopherstep/internal/migrations"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open migrates the database to the latest schema and returns a pool.
//
// dsn is a postgres:// URL for Postgres, a mysql:// URL containing
// parseTime=true for MySQL, and a file name for SQLite.
func Open(d Dialect, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("a connection string is required for %s", d)
	}
	var driver, migrateURL, openDSN string
	switch d {
	case Postgres:
		driver, migrateURL, openDSN = "postgres", dsn, dsn
	case MySQL:
		if !strings.Contains(dsn, "parseTime=true") {
			return nil, errors.New("the MySQL url must contain 'parseTime=true'")
		}
		if !strings.HasPrefix(dsn, "mysql://") {
			return nil, errors.New("the MySQL url must start with 'mysql://'")
		}
		driver, migrateURL, openDSN = "mysql", dsn, strings.Replace(dsn, "mysql://", "", 1)
	case SQLite:
		driver, migrateURL, openDSN = "sqlite3", "sqlite3://"+dsn, dsn
	default:
		return nil, fmt.Errorf("unsupported database type %q", d)
	}

	slog.Info("Running migrations", "database", string(d))
	if err := RunMigrations(d, migrateURL); err != nil {
		return nil, fmt.Errorf("migrating %s: %w", d, err)
	}

	slog.Info("Opening database", "database", string(d))
	db, err := sql.Open(driver, openDSN)
	if err != nil {
		return nil, err
	}
	if d == SQLite {
		// one writer at a time, otherwise concurrent workers see "database is locked"
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		db.SetConnMaxIdleTime(10 * time.Minute)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// RunMigrations applies the embedded migrations for the dialect.
func RunMigrations(d Dialect, dbURL string) error {
	sub, err := fs.Sub(migrations.FS, d.migrationsDir())
	if err != nil {
		return err
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
