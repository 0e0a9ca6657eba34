package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/file"
	pkgerrors "github.com/pkg/errors"
)

type MigrationConfig struct {
	// Dir holds NNNNNN_name.up.sql / .down.sql files for one dialect.
	Dir string
	// Version pins the schema; 0 migrates to the newest file.
	Version uint
	// Force marks the schema as Version N before migrating, clearing a dirty flag.
	Force int
	// AutoRollback clears the dirty flag back to the last good version after a failed migration.
	AutoRollback bool
}

// Migrator keeps the fern_records schema at the version shipped with the binary.
type Migrator struct {
	config MigrationConfig
	logger ectologger.Logger
}

func NewMigrator(logger ectologger.Logger, config MigrationConfig) *Migrator {
	return &Migrator{config: config, logger: logger}
}

type migrateLogger struct {
	logger ectologger.Logger
}

func (l migrateLogger) Verbose() bool { return false }

func (l migrateLogger) Printf(format string, v ...any) {
	l.logger.Debugf(strings.TrimSuffix(format, "\n"), v...)
}

func driverFor(driverName string, db *sql.DB) (database.Driver, error) {
	switch driverName {
	case DriverPostgres:
		return migratepostgres.WithInstance(db, &migratepostgres.Config{})
	case DriverMySQL:
		return migratemysql.WithInstance(db, &migratemysql.Config{})
	case DriverSQLite:
		return migratesqlite.WithInstance(db, &migratesqlite.Config{})
	}
	return nil, fmt.Errorf("no migration driver for %q", driverName)
}

func (m *Migrator) dir() (string, error) {
	dir, err := filepath.Abs(m.config.Dir)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", pkgerrors.Errorf("migrations directory %s not found", dir)
	}
	return dir, nil
}

// Apply migrates the open database. A failed migration leaves the error in place even when
// AutoRollback cleared the dirty flag.
func (m *Migrator) Apply(db *DatabaseInstance) error {
	dir, err := m.dir()
	if err != nil {
		return err
	}
	driver, err := driverFor(db.DriverName(), db.DB.DB)
	if err != nil {
		return err
	}

	mig, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(dir), db.DriverName(), driver)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to open migrations")
	}
	mig.Log = migrateLogger{logger: m.logger}

	if m.config.Force != 0 {
		if err := mig.Force(m.config.Force); err != nil {
			return pkgerrors.Wrapf(err, "failed to force schema version %d", m.config.Force)
		}
	}

	before, _, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return pkgerrors.Wrap(err, "failed to read schema version")
	}

	start := time.Now()
	if m.config.Version != 0 {
		err = mig.Migrate(m.config.Version)
	} else {
		err = mig.Up()
	}

	logger := m.logger.WithFields(map[string]any{"driver": db.DriverName(), "from_version": before})
	switch {
	case err == nil:
		after, _, _ := mig.Version()
		logger.WithField("to_version", after).Infof("Schema migrated in %s", time.Since(start))
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("Schema is up to date")
		return nil
	case strings.Contains(err.Error(), "no migration found for version"):
		// the database is ahead of this binary; pin it to our newest file
		latest, latestErr := latestVersion(dir)
		if latestErr != nil {
			return err
		}
		logger.Warnf("Schema version %d is unknown here, forcing %d", before, latest)
		return mig.Force(int(latest))
	}

	logger.WithError(err).Error("Schema migration failed")
	m.rollback(mig, before)
	return err
}

func (m *Migrator) rollback(mig *migrate.Migrate, before uint) {
	if !m.config.AutoRollback {
		return
	}
	current, dirty, err := mig.Version()
	if err != nil || !dirty {
		return
	}
	target := int(before)
	if before == 0 {
		target = int(current) - 1
	}
	if target <= 0 {
		// nothing applied cleanly before; -1 is migrate's "no version"
		target = -1
	}
	m.logger.Warnf("Schema dirty at version %d, resetting to %d", current, target)
	if err := mig.Force(target); err != nil {
		m.logger.WithError(err).Errorf("Failed to reset schema to version %d", target)
	}
}

// latestVersion walks the migration files and returns the highest version.
func latestVersion(dir string) (uint, error) {
	src, err := (&file.File{}).Open("file://" + filepath.ToSlash(dir))
	if err != nil {
		return 0, err
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "no migrations in %s", dir)
	}
	for {
		next, err := src.Next(version)
		if errors.Is(err, os.ErrNotExist) {
			return version, nil
		}
		if err != nil {
			return 0, err
		}
		version = next
	}
}
