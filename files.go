package auth

import (
	"context"
	"embed"
	"io/fs"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// Migrate applies pending migrations and returns the names of the ones it ran.
func Migrate(ctx context.Context, db *bun.DB, logger Logger) ([]string, error) {
	logger = normalizeLogger(logger)

	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open migrations")
	}

	migrations := migrate.NewMigrations()
	if err := migrations.Discover(sub); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to discover migrations")
	}

	migrator := migrate.NewMigrator(db, migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to init migrator")
	}

	if err := migrator.Lock(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to lock migrations")
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			logger.Warn("failed to unlock migrations", "error", err)
		}
	}()

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to run migrations")
	}

	if group.IsZero() {
		logger.Info("no new migrations to run")
		return nil, nil
	}

	applied := make([]string, 0, len(group.Migrations))
	for _, m := range group.Migrations {
		applied = append(applied, m.Name)
	}
	logger.Info("migrated", "group", group.String(), "count", len(applied))
	return applied, nil
}
