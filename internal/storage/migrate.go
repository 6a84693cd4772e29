package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrationResult reports the schema version after Migrate.
type MigrationResult struct {
	Version uint
	Dirty   bool
	Changed bool
}

// Migrate applies every pending embedded migration through the given pool.
func Migrate(pool *pgxpool.Pool, logger zerolog.Logger) (MigrationResult, error) {
	if pool == nil {
		return MigrationResult{}, ErrNotConfigured
	}
	log := logger.With().Str("component", "migrate").Logger()

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return MigrationResult{}, fmt.Errorf("open embedded migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = db.Close()
		return MigrationResult{}, fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return MigrationResult{}, fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source_err", srcErr).AnErr("db_err", dbErr).Msg("close migrator")
		}
	}()

	var res MigrationResult
	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info().Msg("schema already up to date")
	case err != nil:
		return MigrationResult{}, fmt.Errorf("apply migrations: %w", err)
	default:
		res.Changed = true
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationResult{}, fmt.Errorf("read schema version: %w", err)
	}
	res.Version, res.Dirty = version, dirty
	log.Info().Uint("version", version).Bool("dirty", dirty).Bool("changed", res.Changed).Msg("migrations applied")
	return res, nil
}
