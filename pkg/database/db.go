package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	_ "github.com/go-sql-driver/mysql"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type DB interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
	Close() error
	DriverName() string
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	PingContext(ctx context.Context) error
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	Rebind(query string) string
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	Flavor() sqlbuilder.Flavor
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
	flavor sqlbuilder.Flavor
}

// Open connects with the named driver and checks the connection.
func Open(ctx context.Context, config Config, logger ectologger.Logger) (*DatabaseInstance, error) {
	if _, err := FlavorFor(config.Driver); err != nil {
		return nil, err
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("a DSN is required for driver %s", config.Driver)
	}

	db, err := sqlx.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", config.Driver, err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", config.Driver, err)
	}

	logger.Infof("Connected to %s database", config.Driver)
	return NewDatabaseInstance(db, logger), nil
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) *DatabaseInstance {
	flavor, err := FlavorFor(db.DriverName())
	if err != nil {
		flavor = sqlbuilder.PostgreSQL
	}
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
		flavor: flavor,
	}
}

// FlavorFor maps a database/sql driver name to its SQL dialect.
func FlavorFor(driver string) (sqlbuilder.Flavor, error) {
	switch driver {
	case DriverPostgres:
		return sqlbuilder.PostgreSQL, nil
	case DriverMySQL:
		return sqlbuilder.MySQL, nil
	case DriverSQLite:
		return sqlbuilder.SQLite, nil
	default:
		return 0, fmt.Errorf("unsupported SQL driver %q (use postgres, mysql or sqlite)", driver)
	}
}

func (db *DatabaseInstance) Flavor() sqlbuilder.Flavor {
	return db.flavor
}

func (db *DatabaseInstance) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return RunInTx(ctx, db.logger, db, fn)
}
