package migrate

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "flow.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	// Pragmas apply per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRunner(t *testing.T) (*sql.DB, *Runner) {
	t.Helper()

	db := openTestDB(t)
	runner, err := NewRunner(db, DialectSQLite)
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	return db, runner
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()

	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	return count > 0
}

func TestUpCreatesAllTables(t *testing.T) {
	db, runner := newTestRunner(t)

	n, err := runner.Up()
	if err != nil {
		t.Fatalf("failed to migrate up: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 applied revision, got %d", n)
	}

	for _, table := range []string{"identifiers", "user", "files", "passes"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s was not created", table)
		}
	}

	// One lookup index per primary key plus the unique user indexes.
	var indexes int
	err = db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'ix_%'",
	).Scan(&indexes)
	if err != nil {
		t.Fatalf("failed to count indexes: %v", err)
	}
	if indexes != 6 {
		t.Errorf("expected 6 indexes, got %d", indexes)
	}

	current, err := runner.Current()
	if err != nil {
		t.Fatalf("failed to get current revision: %v", err)
	}
	if current != "0001_init" {
		t.Errorf("expected current revision 0001_init, got %q", current)
	}
}

func TestUpIsNoOpWhenCurrent(t *testing.T) {
	_, runner := newTestRunner(t)

	if _, err := runner.Up(); err != nil {
		t.Fatalf("failed to migrate up: %v", err)
	}

	n, err := runner.Up()
	if err != nil {
		t.Fatalf("second up failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no revisions applied on second up, got %d", n)
	}
}

func TestRoundTripLeavesNoSchemaBehind(t *testing.T) {
	db, runner := newTestRunner(t)

	if _, err := runner.Up(); err != nil {
		t.Fatalf("failed to migrate up: %v", err)
	}

	rev, err := runner.Down()
	if err != nil {
		t.Fatalf("failed to migrate down: %v", err)
	}
	if rev != "0001_init" {
		t.Errorf("expected to roll back 0001_init, got %q", rev)
	}

	for _, table := range []string{"identifiers", "user", "files", "passes"} {
		if tableExists(t, db, table) {
			t.Errorf("table %s still exists after rollback", table)
		}
	}

	var indexes int
	err = db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'ix_%'",
	).Scan(&indexes)
	if err != nil {
		t.Fatalf("failed to count indexes: %v", err)
	}
	if indexes != 0 {
		t.Errorf("expected no indexes after rollback, got %d", indexes)
	}

	current, err := runner.Current()
	if err != nil {
		t.Fatalf("failed to get current revision: %v", err)
	}
	if current != "" {
		t.Errorf("expected empty current revision after rollback, got %q", current)
	}
}

func TestDownWithNothingApplied(t *testing.T) {
	_, runner := newTestRunner(t)

	if _, err := runner.Down(); !errors.Is(err, ErrNothingToRollback) {
		t.Errorf("expected ErrNothingToRollback, got %v", err)
	}
}

func TestUpFailsOnExistingTable(t *testing.T) {
	db, runner := newTestRunner(t)

	// passes is the last table the revision creates, so everything before
	// it runs and must be rolled back with the failed transaction.
	if _, err := db.Exec("CREATE TABLE passes (id INTEGER PRIMARY KEY)"); err != nil {
		t.Fatalf("failed to pre-create table: %v", err)
	}

	if _, err := runner.Up(); err == nil {
		t.Fatal("expected up to fail on existing table")
	}

	if tableExists(t, db, "identifiers") {
		t.Error("identifiers table survived a failed migration")
	}

	current, err := runner.Current()
	if err != nil {
		t.Fatalf("failed to get current revision: %v", err)
	}
	if current != "" {
		t.Errorf("expected no recorded revision after failure, got %q", current)
	}
}

func TestCurrentRejectsUnknownRevision(t *testing.T) {
	db, runner := newTestRunner(t)

	if _, err := runner.Up(); err != nil {
		t.Fatalf("failed to migrate up: %v", err)
	}
	_, err := db.Exec(
		"INSERT INTO schema_migrations (revision, applied_at) VALUES ('9999_bogus', 0)",
	)
	if err != nil {
		t.Fatalf("failed to insert bogus revision: %v", err)
	}

	if _, err := runner.Current(); err == nil {
		t.Error("expected error for revision outside the chain")
	}
}

func noStatements(d Dialect) []string { return nil }

func TestOrderChain(t *testing.T) {
	mk := func(rev, down string) Migration {
		return Migration{Revision: rev, DownRevision: down, Up: noStatements, Down: noStatements}
	}

	t.Run("orders root first", func(t *testing.T) {
		chain, err := orderChain([]Migration{
			mk("0003_c", "0002_b"),
			mk("0001_a", ""),
			mk("0002_b", "0001_a"),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := []string{chain[0].Revision, chain[1].Revision, chain[2].Revision}
		want := []string{"0001_a", "0002_b", "0003_c"}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
			}
		}
	})

	t.Run("rejects duplicate revisions", func(t *testing.T) {
		_, err := orderChain([]Migration{mk("0001_a", ""), mk("0001_a", "")})
		if err == nil {
			t.Error("expected error for duplicate revision")
		}
	})

	t.Run("rejects forked chains", func(t *testing.T) {
		_, err := orderChain([]Migration{
			mk("0001_a", ""),
			mk("0002_b", "0001_a"),
			mk("0002_x", "0001_a"),
		})
		if err == nil {
			t.Error("expected error for fork")
		}
	})

	t.Run("rejects broken chains", func(t *testing.T) {
		_, err := orderChain([]Migration{
			mk("0001_a", ""),
			mk("0003_c", "0002_missing"),
		})
		if err == nil {
			t.Error("expected error for unreachable revision")
		}
	})

	t.Run("rejects empty registry", func(t *testing.T) {
		if _, err := orderChain(nil); err == nil {
			t.Error("expected error for empty registry")
		}
	})
}
