package migrate

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Dialect selects the SQL flavor a migration emits.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Migration is a single reversible schema revision. Revisions form a linear
// chain: DownRevision names the predecessor, and the empty string marks the
// root revision.
type Migration struct {
	Revision     string
	DownRevision string
	Name         string
	Up           func(d Dialect) []string
	Down         func(d Dialect) []string
}

var registry []Migration

func register(m Migration) {
	registry = append(registry, m)
}

// ErrNothingToRollback is returned by Down when no revision is applied.
var ErrNothingToRollback = errors.New("no migrations applied")

// Runner applies and rolls back registered migrations against a database,
// tracking applied revisions in the schema_migrations table.
type Runner struct {
	db         *sql.DB
	dialect    Dialect
	migrations []Migration // chain order, root first
}

// NewRunner builds a runner for the registered migrations. It fails if the
// registered revisions do not form a single linear chain.
func NewRunner(db *sql.DB, dialect Dialect) (*Runner, error) {
	chain, err := orderChain(registry)
	if err != nil {
		return nil, err
	}
	return &Runner{db: db, dialect: dialect, migrations: chain}, nil
}

// orderChain links migrations root-first by following DownRevision pointers.
func orderChain(ms []Migration) ([]Migration, error) {
	if len(ms) == 0 {
		return nil, errors.New("no migrations registered")
	}

	byDown := make(map[string]Migration, len(ms))
	seen := make(map[string]bool, len(ms))
	for _, m := range ms {
		if seen[m.Revision] {
			return nil, fmt.Errorf("duplicate revision %q", m.Revision)
		}
		seen[m.Revision] = true
		if _, ok := byDown[m.DownRevision]; ok {
			return nil, fmt.Errorf("revision %q has more than one successor", m.DownRevision)
		}
		byDown[m.DownRevision] = m
	}

	chain := make([]Migration, 0, len(ms))
	cursor := "" // root
	for {
		m, ok := byDown[cursor]
		if !ok {
			break
		}
		chain = append(chain, m)
		cursor = m.Revision
	}
	if len(chain) != len(ms) {
		return nil, errors.New("migrations do not form a single linear chain")
	}
	return chain, nil
}

// Migrations returns the chain in apply order.
func (r *Runner) Migrations() []Migration {
	return r.migrations
}

func (r *Runner) ensureVersionTable() error {
	ddl := `CREATE TABLE IF NOT EXISTS schema_migrations (
    revision   TEXT PRIMARY KEY,
    applied_at BIGINT NOT NULL
)`
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}
	return nil
}

// applied returns the set of revisions recorded in schema_migrations.
func (r *Runner) applied() (map[string]bool, error) {
	if err := r.ensureVersionTable(); err != nil {
		return nil, err
	}
	rows, err := r.db.Query(`SELECT revision FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("querying applied revisions: %w", err)
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var rev string
		if err := rows.Scan(&rev); err != nil {
			return nil, fmt.Errorf("scanning revision: %w", err)
		}
		set[rev] = true
	}
	return set, rows.Err()
}

// Current returns the latest applied revision, or "" if none is applied.
// Applied revisions must form a prefix of the registered chain.
func (r *Runner) Current() (string, error) {
	set, err := r.applied()
	if err != nil {
		return "", err
	}

	current := ""
	for _, m := range r.migrations {
		if !set[m.Revision] {
			break
		}
		current = m.Revision
		delete(set, m.Revision)
	}
	for rev := range set {
		return "", fmt.Errorf("applied revision %q is not a prefix of the migration chain", rev)
	}
	return current, nil
}

// Pending returns the migrations not yet applied, in apply order.
func (r *Runner) Pending() ([]Migration, error) {
	current, err := r.Current()
	if err != nil {
		return nil, err
	}
	for i, m := range r.migrations {
		if m.Revision == current {
			return r.migrations[i+1:], nil
		}
	}
	return r.migrations, nil
}

// Up applies all pending migrations in chain order and returns how many
// were applied. Each revision runs in its own transaction: the DDL
// statements plus the bookkeeping row commit or roll back together.
func (r *Runner) Up() (int, error) {
	pending, err := r.Pending()
	if err != nil {
		return 0, err
	}

	for i, m := range pending {
		if err := r.apply(m); err != nil {
			return i, fmt.Errorf("applying %s: %w", m.Revision, err)
		}
	}
	return len(pending), nil
}

func (r *Runner) apply(m Migration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range m.Up(r.dialect) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	if _, err := tx.Exec(r.insertRevisionSQL(), m.Revision, time.Now().Unix()); err != nil {
		return fmt.Errorf("recording revision: %w", err)
	}
	return tx.Commit()
}

// Down rolls back the most recently applied migration and returns its
// revision. It returns ErrNothingToRollback when the chain is empty.
func (r *Runner) Down() (string, error) {
	current, err := r.Current()
	if err != nil {
		return "", err
	}
	if current == "" {
		return "", ErrNothingToRollback
	}

	var m Migration
	for _, c := range r.migrations {
		if c.Revision == current {
			m = c
			break
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range m.Down(r.dialect) {
		if _, err := tx.Exec(stmt); err != nil {
			return "", fmt.Errorf("rolling back %s: exec %q: %w", m.Revision, firstLine(stmt), err)
		}
	}
	if _, err := tx.Exec(r.deleteRevisionSQL(), m.Revision); err != nil {
		return "", fmt.Errorf("removing revision record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return m.Revision, nil
}

// lib/pq uses numbered placeholders, modernc.org/sqlite uses ?.
func (r *Runner) insertRevisionSQL() string {
	if r.dialect == DialectPostgres {
		return `INSERT INTO schema_migrations (revision, applied_at) VALUES ($1, $2)`
	}
	return `INSERT INTO schema_migrations (revision, applied_at) VALUES (?, ?)`
}

func (r *Runner) deleteRevisionSQL() string {
	if r.dialect == DialectPostgres {
		return `DELETE FROM schema_migrations WHERE revision = $1`
	}
	return `DELETE FROM schema_migrations WHERE revision = ?`
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}
