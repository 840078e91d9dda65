package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Migrator applies the SQL files under the configured source to the analytics database.
type Migrator struct {
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// NewMigrator binds sourceURL (for example file://migrations) to an open connection.
func NewMigrator(db *sqlx.DB, sourceURL string, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return &Migrator{migrate: m, logger: logger}, nil
}

// Up applies all pending migrations. Being already current is not an error.
func (m *Migrator) Up() error {
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	m.logVersion()
	return nil
}

// Down rolls back every migration.
func (m *Migrator) Down() error {
	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migrations: %w", err)
	}
	m.logVersion()
	return nil
}

// Steps applies n migrations forward (n > 0) or backward (n < 0).
func (m *Migrator) Steps(n int) error {
	if err := m.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %d steps: %w", n, err)
	}
	m.logVersion()
	return nil
}

// Close releases the source; the database handle stays owned by the caller.
func (m *Migrator) Close() error {
	srcErr, _ := m.migrate.Close()
	return srcErr
}

func (m *Migrator) logVersion() {
	version, dirty, err := m.migrate.Version()
	if err != nil {
		if !errors.Is(err, migrate.ErrNilVersion) {
			m.logger.Warn("read migration version", zap.Error(err))
		}
		return
	}
	m.logger.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
}
