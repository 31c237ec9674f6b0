package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/hellconnon/llvm-flow/internal/config"
	"github.com/hellconnon/llvm-flow/internal/migrate"
)

// Store holds the connection to the flow database. It owns no schema
// itself; the migrate package creates and drops tables through a Runner.
type Store struct {
	db      *sql.DB
	dialect migrate.Dialect
	dbPath  string // sqlite file path, empty for postgres
}

// Open connects to the database selected by the configuration.
func Open(cfg *config.Config) (*Store, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite, "":
		return openSQLite(cfg.Database.Path)
	case config.DriverPostgres:
		return openPostgres(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func openSQLite(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Pragmas apply per connection, so keep the pool at one connection.
	// SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	// Foreign keys are off by default in SQLite; the cascade semantics
	// of the schema depend on this pragma.
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	return &Store{db: db, dialect: migrate.DialectSQLite, dbPath: dbPath}, nil
}

func openPostgres(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres driver selected but no DSN configured")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Store{db: db, dialect: migrate.DialectPostgres}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL dialect the connection speaks.
func (s *Store) Dialect() migrate.Dialect {
	return s.dialect
}

// DBPath returns the path to the database file (sqlite only).
func (s *Store) DBPath() string {
	return s.dbPath
}

// Runner returns a migration runner bound to this store's connection.
func (s *Store) Runner() (*migrate.Runner, error) {
	return migrate.NewRunner(s.db, s.dialect)
}
