package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/laddering/backend/internal/util"
	"github.com/OFFIS-RIT/laddering/backend/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const defaultMigrationsPath = "migrations"

// SourceURL turns a migrations directory into a file source URL.
func SourceURL(path string) string {
	if path == "" {
		path = defaultMigrationsPath
	}
	if strings.HasPrefix(path, "file://") {
		return path
	}
	return "file://" + path
}

// Migrate applies all pending up migrations from MIGRATIONS_PATH to
// DATABASE_URL.
func Migrate() error {
	return MigrateURL(util.GetEnv("DATABASE_URL"), util.GetEnvString("MIGRATIONS_PATH", defaultMigrationsPath))
}

func MigrateURL(databaseURL string, path string) error {
	if databaseURL == "" {
		return errors.New("database url is empty")
	}

	m, err := migrate.New(SourceURL(path), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("[DB] Failed to close migrator", "source_err", srcErr, "db_err", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("[DB] Schema up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("[DB] Applied migrations", "version", version, "dirty", dirty)
	return nil
}
