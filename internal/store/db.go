// Package store provides the durable message log backing the chat relay:
// database setup, schema migrations, and the Store data access layer.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/chaos-ds/pychat/internal/store/migrations"

	_ "modernc.org/sqlite"
)

// NewDB opens the SQLite database at dbPath, applies any pending schema
// migrations, and returns the connection pool. Databases created before the
// attachment column existed are upgraded in place without touching existing
// rows.
func NewDB(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite does not support concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := applyMigrations(db.DB); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database connected and migrations applied", "path", dbPath)
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing database connection", "error", err)
	} else {
		slog.Info("Database connection closed")
	}
}

func applyMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create embed source driver: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite3 database driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	baseline, err := legacyBaseline(db)
	if err != nil {
		return fmt.Errorf("failed to inspect existing schema: %w", err)
	}
	if baseline > 0 {
		slog.Info("Adopting database that predates versioned migrations", "baseline", baseline)
		if err := migrator.Force(baseline); err != nil {
			return fmt.Errorf("failed to baseline migration version: %w", err)
		}
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Debug("No database migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database migrations applied")
	return nil
}

// legacyBaseline inspects a database with no migration bookkeeping and
// reports the migration version its schema already embodies, or 0 when the
// normal migration path applies. Databases written by pre-migration
// deployments may already carry the attachment column; running the ALTER
// against them would fail, so they are baselined past it instead.
func legacyBaseline(db *sql.DB) (int, error) {
	var tracked int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations'`).Scan(&tracked)
	if err != nil {
		return 0, fmt.Errorf("failed to check migration bookkeeping: %w", err)
	}
	if tracked > 0 {
		return 0, nil
	}

	rows, err := db.Query(`SELECT name FROM pragma_table_info('messages')`)
	if err != nil {
		return 0, fmt.Errorf("failed to read messages table info: %w", err)
	}
	defer rows.Close()

	hasAttachment := false
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return 0, fmt.Errorf("failed to scan column name: %w", err)
		}
		if name == "attachment" {
			hasAttachment = true
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate messages table info: %w", err)
	}

	// A messages table that already has the attachment column matches the
	// schema as of migration 2. Without the column (or without the table at
	// all) the regular migration path handles it.
	if hasAttachment {
		return 2, nil
	}
	return 0, nil
}
